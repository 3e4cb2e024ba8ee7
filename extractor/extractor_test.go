package extractor

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

func buildTestManifest(t *testing.T, store chunkstore.Store) manifest.Manifest {
	t.Helper()
	data := []byte("round trip content")
	d, err := hash.Bytes(hash.SHA256, data)
	require.NoError(t, err)
	_, err = store.Write(context.Background(), d, data, chunkstore.Metadata{Size: int64(len(data)), ContentHash: d, HashAlgorithm: hash.SHA256})
	require.NoError(t, err)

	return manifest.Manifest{
		Format:        manifest.FormatName,
		Version:       manifest.CurrentVersion,
		HashAlgorithm: "sha256",
		Hashes: map[string]manifest.HashRef{
			d.Encoded(): {Size: int64(len(data)), Algorithm: "sha256"},
		},
		Entries: []manifest.Entry{
			{Type: manifest.EntryDirectory, Path: "dir", Permissions: "0755"},
			{Type: manifest.EntryFile, Path: "dir/file.txt", Hash: d.Encoded(), Size: int64(len(data)), Permissions: "0644"},
			{Type: manifest.EntrySymlink, Path: "dir/link", Target: "file.txt"},
		},
	}
}

func TestExtractManifestWritesFilesDirectoriesSymlinks(t *testing.T) {
	store, err := chunkstore.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	m := buildTestManifest(t, store)

	dst := t.TempDir()
	x := New(store)
	require.NoError(t, x.ExtractManifest(context.Background(), m, dst))

	data, err := os.ReadFile(filepath.Join(dst, "dir", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "round trip content", string(data))

	info, err := os.Lstat(filepath.Join(dst, "dir", "link"))
	require.NoError(t, err)
	assert.True(t, info.Mode()&os.ModeSymlink != 0)

	target, err := os.Readlink(filepath.Join(dst, "dir", "link"))
	require.NoError(t, err)
	assert.Equal(t, "file.txt", target)
}

func TestExtractRejectsPathEscape(t *testing.T) {
	store, err := chunkstore.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	m := manifest.Manifest{
		Format: manifest.FormatName, Version: manifest.CurrentVersion,
		Hashes: map[string]manifest.HashRef{},
		Entries: []manifest.Entry{
			{Type: manifest.EntryDirectory, Path: "../escape"},
		},
	}

	x := New(store)
	err = x.ExtractManifest(context.Background(), m, t.TempDir())
	assert.ErrorIs(t, err, ErrPathEscape)
}

func TestExtractFailsOnMissingChunk(t *testing.T) {
	store, err := chunkstore.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	m := manifest.Manifest{
		Format: manifest.FormatName, Version: manifest.CurrentVersion,
		Hashes: map[string]manifest.HashRef{
			"deadbeef": {Size: 3, Algorithm: "sha256"},
		},
		Entries: []manifest.Entry{
			{Type: manifest.EntryFile, Path: "missing.txt", Hash: "deadbeef", Size: 3},
		},
	}

	x := New(store)
	err = x.ExtractManifest(context.Background(), m, t.TempDir())
	assert.ErrorIs(t, err, ErrMissingChunk)
}

func TestExtractRefusesOverwriteByDefault(t *testing.T) {
	store, err := chunkstore.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	m := buildTestManifest(t, store)

	dst := t.TempDir()
	x := New(store)
	require.NoError(t, x.ExtractManifest(context.Background(), m, dst))

	err = x.ExtractManifest(context.Background(), m, dst)
	assert.Error(t, err)
}

func TestExtractOverwriteReplacesExisting(t *testing.T) {
	store, err := chunkstore.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	m := buildTestManifest(t, store)

	dst := t.TempDir()
	x := New(store, WithOverwrite(true))
	require.NoError(t, x.ExtractManifest(context.Background(), m, dst))
	require.NoError(t, x.ExtractManifest(context.Background(), m, dst))
}

func TestTopologicalOrderPutsDirectoriesBeforeFilesBeforeSymlinks(t *testing.T) {
	entries := []manifest.Entry{
		{Type: manifest.EntrySymlink, Path: "a/link"},
		{Type: manifest.EntryFile, Path: "a/file.txt"},
		{Type: manifest.EntryDirectory, Path: "a"},
	}
	ordered := topologicalOrder(entries)
	assert.Equal(t, manifest.EntryDirectory, ordered[0].Type)
	assert.Equal(t, manifest.EntryFile, ordered[1].Type)
	assert.Equal(t, manifest.EntrySymlink, ordered[2].Type)
}
