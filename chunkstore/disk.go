package chunkstore

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	digest "github.com/opencontainers/go-digest"

	"github.com/rickhohler/snug/hash"
	"github.com/rickhohler/snug/internal/atomicfile"
)

const (
	sidecarSuffix = ".meta"
	lockStripes   = 256
	dirPerm       = 0o750
	filePerm      = 0o640
)

// DiskStore is a filesystem-backed Store using a pluggable
// OrganizationStrategy and sharded per-digest locks for sidecar merges.
//
// It generalizes core/cache/disk/cache.go's sharded disk cache: the same
// temp-file-then-rename write discipline, extended with a JSON sidecar and
// a metadata merge law that cache has no notion of.
type DiskStore struct {
	root     string
	strategy OrganizationStrategy
	verify   bool
	logger   *slog.Logger

	stripes [lockStripes]sync.Mutex
}

// Option configures a DiskStore.
type Option func(*DiskStore)

// WithStrategy overrides the default GitStyle(2) organization.
func WithStrategy(s OrganizationStrategy) Option {
	return func(d *DiskStore) { d.strategy = s }
}

// WithVerifyOnWrite controls whether Write re-hashes data to confirm it
// matches the claimed digest. Enabled by default.
func WithVerifyOnWrite(enabled bool) Option {
	return func(d *DiskStore) { d.verify = enabled }
}

// WithLogger attaches a logger; operations fall back to a discard logger
// when none is set, matching core/create.go's convention.
func WithLogger(logger *slog.Logger) Option {
	return func(d *DiskStore) { d.logger = logger }
}

// NewDiskStore creates a Store rooted at dir, creating it if necessary.
func NewDiskStore(dir string, opts ...Option) (*DiskStore, error) {
	if dir == "" {
		return nil, errors.New("chunkstore: root dir is empty")
	}
	s := &DiskStore{
		root:     dir,
		strategy: GitStyle(2),
		verify:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DiskStore) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

func (s *DiskStore) chunkPath(d digest.Digest) string {
	return filepath.Join(s.root, s.strategy.Path(d))
}

func (s *DiskStore) sidecarPath(d digest.Digest) string {
	return s.chunkPath(d) + sidecarSuffix
}

// stripe returns the mutex guarding digest d's sidecar merges.
func (s *DiskStore) stripe(d digest.Digest) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(d.String())) //nolint:errcheck // hash.Hash.Write never fails
	return &s.stripes[h.Sum32()%lockStripes]
}

// Write implements Store.
func (s *DiskStore) Write(ctx context.Context, d digest.Digest, data []byte, metadata Metadata) (digest.Digest, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.verify {
		algo, ok := algorithmOf(d)
		if ok {
			got, err := hash.Bytes(algo, data)
			if err != nil {
				return "", err
			}
			if got != d {
				return "", ErrIntegrityMismatch
			}
		}
	}

	if metadata.ContentHash == "" {
		metadata.ContentHash = d
	}

	mu := s.stripe(d)
	mu.Lock()
	defer mu.Unlock()

	path := s.chunkPath(d)
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		if mkErr := os.MkdirAll(filepath.Dir(path), dirPerm); mkErr != nil {
			return "", mkErr
		}
		if err := atomicfile.WriteBytes(path, data, filePerm); err != nil {
			return "", err
		}
	}

	if err := s.mergeSidecar(d, metadata); err != nil {
		return "", err
	}
	return d, nil
}

// algorithmOf maps a go-digest Digest back to a hash.Algorithm for
// self-verification. Unrecognized algorithms skip verification rather than
// failing, since the store's job is integrity, not algorithm policing —
// archiver.Archive enforces which primary algorithms are acceptable.
func algorithmOf(d digest.Digest) (hash.Algorithm, bool) {
	switch d.Algorithm() {
	case digest.SHA256:
		return hash.SHA256, true
	case digest.SHA1:
		return hash.SHA1, true
	case digest.Algorithm("md5"):
		return hash.MD5, true
	default:
		return "", false
	}
}

// mergeSidecar reads any existing sidecar, merges metadata per the
// ChunkMetadata merge law, and writes the result back atomically. Caller
// must hold the per-digest stripe lock.
func (s *DiskStore) mergeSidecar(d digest.Digest, incoming Metadata) error {
	sidecar := s.sidecarPath(d)

	existing, err := readSidecar(sidecar)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	merged := MergeMetadata(existing, incoming)
	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return err
	}
	return atomicfile.WriteBytes(sidecar, data, filePerm)
}

func readSidecar(path string) (Metadata, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path derived from digest, not user input
	if err != nil {
		return Metadata{}, err
	}
	var m Metadata
	if jsonErr := json.Unmarshal(data, &m); jsonErr != nil {
		return Metadata{}, jsonErr
	}
	return m, nil
}

// Read implements Store.
func (s *DiskStore) Read(_ context.Context, d digest.Digest) ([]byte, error) {
	data, err := os.ReadFile(s.chunkPath(d)) //nolint:gosec // path derived from digest
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// ReadRange implements Store.
func (s *DiskStore) ReadRange(_ context.Context, d digest.Digest, offset, length int64) ([]byte, error) {
	f, err := os.Open(s.chunkPath(d)) //nolint:gosec // path derived from digest
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if offset > size {
		return nil, ErrOutOfRange
	}
	if offset < 0 {
		offset = 0
	}
	if length < 0 || offset+length > size {
		length = size - offset
	}

	buf := make([]byte, length)
	if length == 0 {
		return buf, nil
	}
	if _, err := f.ReadAt(buf, offset); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf, nil
}

// Exists implements Store.
func (s *DiskStore) Exists(_ context.Context, d digest.Digest) (bool, error) {
	_, err := os.Stat(s.chunkPath(d))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// ExistsBatch implements Store.
func (s *DiskStore) ExistsBatch(ctx context.Context, ds []digest.Digest) (map[digest.Digest]bool, error) {
	result := make(map[digest.Digest]bool, len(ds))
	for _, d := range ds {
		ok, err := s.Exists(ctx, d)
		if err != nil {
			return nil, err
		}
		result[d] = ok
	}
	return result, nil
}

// Size implements Store.
func (s *DiskStore) Size(_ context.Context, d digest.Digest) (int64, error) {
	info, err := os.Stat(s.chunkPath(d))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return info.Size(), nil
}

// Metadata implements Store.
func (s *DiskStore) Metadata(_ context.Context, d digest.Digest) (Metadata, error) {
	m, err := readSidecar(s.sidecarPath(d))
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, ErrNotFound
		}
		return Metadata{}, err
	}
	return m, nil
}

// Delete implements Store. It is idempotent.
func (s *DiskStore) Delete(_ context.Context, d digest.Digest) error {
	mu := s.stripe(d)
	mu.Lock()
	defer mu.Unlock()

	if err := atomicfile.Remove(s.chunkPath(d)); err != nil {
		return err
	}
	if err := atomicfile.Remove(s.sidecarPath(d)); err != nil {
		return err
	}
	s.log().Debug("deleted chunk", "digest", d.String())
	return nil
}

// ListDigests implements Store by walking the store root and recognizing
// every non-sidecar file by the contentHash recorded in its sidecar. A file
// whose sidecar is missing or unreadable is not listed.
func (s *DiskStore) ListDigests(_ context.Context) ([]digest.Digest, error) {
	var digests []digest.Digest
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if filepath.Ext(name) == sidecarSuffix {
			return nil
		}
		meta, metaErr := readSidecar(path + sidecarSuffix)
		if metaErr != nil {
			return nil //nolint:nilerr // chunk without a readable sidecar is skipped, not fatal
		}
		if meta.ContentHash != "" {
			digests = append(digests, meta.ContentHash)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return digests, nil
}

var _ Store = (*DiskStore)(nil)
