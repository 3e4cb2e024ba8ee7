package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, storage string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SNUG_STORAGE", storage)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestArchiveExtractValidateViaCLI(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "hello.txt"), []byte("hello cli"), 0o644))

	storage := t.TempDir()
	archivePath := filepath.Join(t.TempDir(), "out.snug")

	_, err := runCmd(t, storage, "archive", src, archivePath)
	require.NoError(t, err)
	require.FileExists(t, archivePath)

	dst := t.TempDir()
	_, err = runCmd(t, storage, "extract", archivePath, dst)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dst, "hello.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello cli", string(got))

	out, err := runCmd(t, storage, "validate", archivePath)
	require.NoError(t, err)
	require.Contains(t, out, "OK")
}

func TestValidateExitsNonZeroOnMissingChunk(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "only.txt"), []byte("irreplaceable"), 0o644))

	storage := t.TempDir()
	archivePath := filepath.Join(t.TempDir(), "out.snug")

	_, err := runCmd(t, storage, "archive", src, archivePath)
	require.NoError(t, err)

	entries, err := os.ReadDir(storage)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	require.NoError(t, os.RemoveAll(filepath.Join(storage, entries[0].Name())))

	_, err = runCmd(t, storage, "validate", archivePath)
	require.Error(t, err)
	require.Equal(t, exitValidateFail, exitCodeFor(err))
}

func TestListAndInfo(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("aaa"), 0o644))

	storage := t.TempDir()
	archivePath := filepath.Join(t.TempDir(), "out.snug")

	_, err := runCmd(t, storage, "archive", src, archivePath)
	require.NoError(t, err)

	out, err := runCmd(t, storage, "list", archivePath)
	require.NoError(t, err)
	require.Contains(t, out, "a.txt")

	out, err = runCmd(t, storage, "info", archivePath)
	require.NoError(t, err)
	require.Contains(t, out, "format:")
	require.Contains(t, out, "snug")
}

func TestArchiveRejectsBadHashAlgorithm(t *testing.T) {
	src := t.TempDir()
	storage := t.TempDir()
	archivePath := filepath.Join(t.TempDir(), "out.snug")

	_, err := runCmd(t, storage, "archive", "--hash-algorithm", "crc32", src, archivePath)
	require.Error(t, err)
	require.Equal(t, exitUsage, exitCodeFor(err))
}
