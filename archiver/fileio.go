package archiver

import (
	"errors"
	"os"

	digest "github.com/opencontainers/go-digest"

	"github.com/rickhohler/snug/hash"
	"github.com/rickhohler/snug/internal/pathutil"
	"github.com/rickhohler/snug/walk"
)

// errPermission sentinels a permission-denied fault surfaced during
// per-file hashing, distinct from the walker's own permission handling
// (which governs directory traversal, not file reads during hashing).
var errPermission = errors.New("archiver: permission denied")

func (a *Archiver) hashFile(e walk.Entry) (digest.Digest, error) {
	f, err := os.Open(e.URL) //nolint:gosec // path comes from a tree walk rooted by the caller
	if err != nil {
		if os.IsPermission(err) {
			return "", errPermission
		}
		return "", err
	}
	defer f.Close()

	return hash.Stream(a.cfg.hashAlgorithm, f)
}

func readAll(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from a tree walk rooted by the caller
	if err != nil {
		if os.IsPermission(err) {
			return nil, errPermission
		}
		return nil, err
	}
	return data, nil
}

func basename(relPath string) string {
	return pathutil.Base(relPath)
}
