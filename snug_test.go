package snug

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	digest "github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// TestArchiveExtractRoundTrip covers scenario A from the testable
// properties: archive a small tree, extract it elsewhere, and confirm
// byte-identical file contents.
func TestArchiveExtractRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeFixture(t, filepath.Join(src, "readme.txt"), "hello world")
	writeFixture(t, filepath.Join(src, "nested", "data.bin"), "binary-ish content")
	require.NoError(t, os.Symlink("data.bin", filepath.Join(src, "nested", "alias")))

	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	a := NewArchiver(store, nil)
	m, err := a.Archive(context.Background(), src)
	require.NoError(t, err)

	archiveBytes, err := EmitManifest(m)
	require.NoError(t, err)

	parsed, err := ParseManifest(archiveBytes)
	require.NoError(t, err)

	dst := t.TempDir()
	x := NewExtractor(store)
	require.NoError(t, x.ExtractManifest(context.Background(), parsed, dst))

	got, err := os.ReadFile(filepath.Join(dst, "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	got, err = os.ReadFile(filepath.Join(dst, "nested", "data.bin"))
	require.NoError(t, err)
	assert.Equal(t, "binary-ish content", string(got))

	target, err := os.Readlink(filepath.Join(dst, "nested", "alias"))
	require.NoError(t, err)
	assert.Equal(t, "data.bin", target)
}

// TestArchiveThenValidateStrict covers scenario B: a freshly archived tree
// must validate cleanly at every level.
func TestArchiveThenValidateStrict(t *testing.T) {
	src := t.TempDir()
	writeFixture(t, filepath.Join(src, "a.txt"), "content a")
	writeFixture(t, filepath.Join(src, "b.txt"), "content b")

	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	a := NewArchiver(store, nil)
	m, err := a.Archive(context.Background(), src)
	require.NoError(t, err)

	v := NewValidator(store)
	report, err := v.ValidateManifest(context.Background(), m, ValidateStrict)
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.Empty(t, report.Missing)
	assert.Empty(t, report.Mismatched)
	assert.Empty(t, report.BadPaths)
}

// TestValidateDetectsDeletedChunk covers scenario C: removing a chunk after
// archiving must surface as a missing reference under Default validation.
func TestValidateDetectsDeletedChunk(t *testing.T) {
	src := t.TempDir()
	writeFixture(t, filepath.Join(src, "only.txt"), "irreplaceable")

	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	a := NewArchiver(store, nil)
	m, err := a.Archive(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, m.Entries, 1)
	digestHex := m.Entries[0].Hash
	require.NotEmpty(t, digestHex)

	d := digest.NewDigestFromEncoded(digest.SHA256, digestHex)
	require.NoError(t, store.Delete(context.Background(), d))

	v := NewValidator(store)
	report, err := v.ValidateManifest(context.Background(), m, ValidateDefault)
	require.NoError(t, err)
	assert.False(t, report.OK)
	assert.Contains(t, report.Missing, digestHex)
}
