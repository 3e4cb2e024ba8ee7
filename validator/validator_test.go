package validator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickhohler/snug/chunkstore"
	"github.com/rickhohler/snug/hash"
	"github.com/rickhohler/snug/manifest"
)

func validManifest(t *testing.T, store chunkstore.Store) manifest.Manifest {
	t.Helper()
	data := []byte("validate me")
	d, err := hash.Bytes(hash.SHA256, data)
	require.NoError(t, err)
	_, err = store.Write(context.Background(), d, data, chunkstore.Metadata{})
	require.NoError(t, err)

	return manifest.Manifest{
		Format: manifest.FormatName, Version: manifest.CurrentVersion, HashAlgorithm: "sha256",
		Hashes: map[string]manifest.HashRef{d.Encoded(): {Size: int64(len(data)), Algorithm: "sha256"}},
		Entries: []manifest.Entry{
			{Type: manifest.EntryFile, Path: "file.txt", Hash: d.Encoded(), Size: int64(len(data))},
		},
	}
}

func TestQuickValidationPassesWithoutStoreAccess(t *testing.T) {
	store, err := chunkstore.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	m := validManifest(t, store)

	v := New(store)
	report, err := v.ValidateManifest(context.Background(), m, Quick)
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.Equal(t, 1, report.Counts.Files)
}

func TestQuickValidationCatchesMissingHashReference(t *testing.T) {
	store, err := chunkstore.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	m := manifest.Manifest{
		Format: manifest.FormatName, Version: manifest.CurrentVersion,
		Hashes: map[string]manifest.HashRef{},
		Entries: []manifest.Entry{
			{Type: manifest.EntryFile, Path: "orphan.txt", Hash: "deadbeef"},
		},
	}

	v := New(store)
	report, err := v.ValidateManifest(context.Background(), m, Quick)
	require.NoError(t, err)
	assert.False(t, report.OK)
	assert.Contains(t, report.Missing, "deadbeef")
}

func TestDefaultValidationCatchesMissingChunk(t *testing.T) {
	store, err := chunkstore.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	m := manifest.Manifest{
		Format: manifest.FormatName, Version: manifest.CurrentVersion,
		Hashes: map[string]manifest.HashRef{"deadbeef": {Size: 3, Algorithm: "sha256"}},
		Entries: []manifest.Entry{
			{Type: manifest.EntryFile, Path: "gone.txt", Hash: "deadbeef", Size: 3},
		},
	}

	v := New(store)
	report, err := v.ValidateManifest(context.Background(), m, Default)
	require.NoError(t, err)
	assert.False(t, report.OK)
	assert.Contains(t, report.Missing, "deadbeef")
}

func TestStrictValidationPassesUnmodifiedChunk(t *testing.T) {
	store, err := chunkstore.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	m := validManifest(t, store)

	v := New(store)
	report, err := v.ValidateManifest(context.Background(), m, Strict)
	require.NoError(t, err)
	assert.True(t, report.OK, "unmodified chunk must pass strict re-hash")
}

func TestStrictValidationDetectsCorruption(t *testing.T) {
	storeDir := t.TempDir()
	store, err := chunkstore.NewDiskStore(storeDir)
	require.NoError(t, err)
	m := validManifest(t, store)

	data := []byte("validate me")
	d, err := hash.Bytes(hash.SHA256, data)
	require.NoError(t, err)

	chunkPath := filepath.Join(storeDir, chunkstore.GitStyle(2).Path(d))
	require.NoError(t, os.WriteFile(chunkPath, []byte("tampered content!!"), 0o640))

	v := New(store)
	report, err := v.ValidateManifest(context.Background(), m, Strict)
	require.NoError(t, err)
	assert.False(t, report.OK, "a chunk whose on-disk bytes no longer match its digest must fail strict validation")
	assert.Contains(t, report.Mismatched, d.Encoded())
}
