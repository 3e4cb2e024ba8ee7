// Package archiver drives walk.Walk, hash.Stream, hashcache.Cache, and
// chunkstore.Store to produce an archive manifest. It generalizes
// core/create.go's Create from "write file bytes + build a FlatBuffers
// index" to "write content-addressed chunks + build a YAML manifest", and
// follows internal/batch/batch.go's shape for bounded concurrent per-file
// hashing.
package archiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	digest "github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/rickhohler/snug/chunkstore"
	"github.com/rickhohler/snug/hash"
	"github.com/rickhohler/snug/hashcache"
	"github.com/rickhohler/snug/ignore"
	"github.com/rickhohler/snug/manifest"
	"github.com/rickhohler/snug/walk"
)

// ErrTooManyFiles bounds archive size, mirroring core/create.go's
// DefaultMaxFiles/ErrTooManyFiles guard.
var ErrTooManyFiles = errors.New("archiver: too many files")

// ErrUnsupportedPrimaryAlgorithm is returned when md5 is requested as the
// archive's primary hash algorithm. md5 is accepted by manifest.Parse and
// chunkstore for interoperability with externally supplied checksums, but
// an archiver never originates one.
var ErrUnsupportedPrimaryAlgorithm = errors.New("archiver: md5 cannot be used as the primary hash algorithm")

// DefaultMaxFiles matches core/create.go's default.
const DefaultMaxFiles = 200_000

// Config holds archiver options, set via functional Option values.
type Config struct {
	hashAlgorithm        hash.Algorithm
	ignorePatterns       []string
	followSymlinks       bool
	skipPermissionErrors bool
	skipHiddenFiles      bool
	includeSpecialFiles  bool
	maxFiles             int
	workers              int
	logger               *slog.Logger
}

// Option configures the Archiver.
type Option func(*Config)

func WithHashAlgorithm(algo hash.Algorithm) Option { return func(c *Config) { c.hashAlgorithm = algo } }
func WithIgnorePatterns(patterns []string) Option  { return func(c *Config) { c.ignorePatterns = patterns } }
func WithFollowSymlinks(v bool) Option             { return func(c *Config) { c.followSymlinks = v } }
func WithSkipPermissionErrors(v bool) Option       { return func(c *Config) { c.skipPermissionErrors = v } }
func WithSkipHiddenFiles(v bool) Option            { return func(c *Config) { c.skipHiddenFiles = v } }
func WithIncludeSpecialFiles(v bool) Option        { return func(c *Config) { c.includeSpecialFiles = v } }
func WithMaxFiles(n int) Option                    { return func(c *Config) { c.maxFiles = n } }
func WithWorkers(n int) Option                     { return func(c *Config) { c.workers = n } }
func WithLogger(logger *slog.Logger) Option        { return func(c *Config) { c.logger = logger } }

// Archiver drives a tree walk into a manifest, writing bytes to a
// chunkstore.Store and consulting a hashcache.Cache to avoid re-hashing
// unchanged files.
type Archiver struct {
	store chunkstore.Store
	cache *hashcache.Cache
	cfg   Config
}

// New constructs an Archiver writing chunks to store and memoizing digests
// in cache (a fresh cache is created if nil).
func New(store chunkstore.Store, cache *hashcache.Cache, opts ...Option) *Archiver {
	cfg := Config{
		hashAlgorithm: hash.SHA256,
		maxFiles:      DefaultMaxFiles,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cache == nil {
		cache = hashcache.New(hashcache.WithAlgorithm(cfg.hashAlgorithm))
	}
	return &Archiver{store: store, cache: cache, cfg: cfg}
}

func (a *Archiver) log() *slog.Logger {
	if a.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.cfg.logger
}

// Archive walks root and produces a fully-resolved manifest.Manifest. It
// does not write the manifest file; callers pass the result to
// manifest.Emit and write it atomically.
func (a *Archiver) Archive(ctx context.Context, root string) (manifest.Manifest, error) {
	if a.cfg.hashAlgorithm == hash.MD5 {
		return manifest.Manifest{}, ErrUnsupportedPrimaryAlgorithm
	}
	matcher := ignore.New(a.cfg.ignorePatterns)

	entries, err := walk.Walk(ctx, root,
		walk.WithFollowSymlinks(a.cfg.followSymlinks),
		walk.WithSkipPermissionErrors(a.cfg.skipPermissionErrors),
		walk.WithSkipHiddenFiles(a.cfg.skipHiddenFiles),
		walk.WithIncludeSpecialFiles(a.cfg.includeSpecialFiles),
		walk.WithLogger(a.cfg.logger),
	)
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("archiver: walk: %w", err)
	}

	filtered := make([]walk.Entry, 0, len(entries))
	for _, e := range entries {
		if matcher.IsIgnored(e.RelPath, e.Kind == walk.Directory) {
			continue
		}
		filtered = append(filtered, e)
	}

	if a.cfg.maxFiles > 0 && countFiles(filtered) > a.cfg.maxFiles {
		return manifest.Manifest{}, ErrTooManyFiles
	}

	m := manifest.Manifest{
		Format:        manifest.FormatName,
		Version:       manifest.CurrentVersion,
		HashAlgorithm: string(a.cfg.hashAlgorithm),
		Hashes:        make(map[string]manifest.HashRef),
		Entries:       make([]manifest.Entry, 0, len(filtered)),
	}

	regularIdx := make([]int, 0, len(filtered))
	for i, e := range filtered {
		if e.Kind == walk.Regular {
			regularIdx = append(regularIdx, i)
		}
	}
	digests, err := a.hashFilesConcurrently(ctx, filtered, regularIdx)
	if err != nil {
		return manifest.Manifest{}, err
	}

	var mu sync.Mutex
	for i, e := range filtered {
		switch e.Kind {
		case walk.Directory:
			m.Entries = append(m.Entries, directoryEntry(e))
		case walk.Symlink:
			m.Entries = append(m.Entries, symlinkEntry(e))
		case walk.Regular:
			d := digests[i]
			if d == "" && a.cfg.skipPermissionErrors {
				// hashFilesConcurrently left no digest because the file was
				// skipped on a permission error; the entry is omitted.
				continue
			}
			entry, storeErr := a.storeAndRecord(ctx, e, d, &mu, &m)
			if storeErr != nil {
				return manifest.Manifest{}, storeErr
			}
			m.Entries = append(m.Entries, entry)
		case walk.Special:
			m.Entries = append(m.Entries, specialEntry(e))
		}
	}

	return m, nil
}

func countFiles(entries []walk.Entry) int {
	n := 0
	for _, e := range entries {
		if e.Kind == walk.Regular {
			n++
		}
	}
	return n
}

func directoryEntry(e walk.Entry) manifest.Entry {
	return manifest.Entry{
		Type:        manifest.EntryDirectory,
		Path:        e.RelPath,
		Permissions: fmt.Sprintf("%04o", e.Stat.Mode.Perm()),
		Owner:       fmt.Sprintf("%d", e.Stat.UID),
		Group:       fmt.Sprintf("%d", e.Stat.GID),
		Modified:    e.Stat.ModTime.Format(time.RFC3339),
	}
}

func symlinkEntry(e walk.Entry) manifest.Entry {
	return manifest.Entry{
		Type:     manifest.EntrySymlink,
		Path:     e.RelPath,
		Target:   e.Target,
		Modified: e.Stat.ModTime.Format(time.RFC3339),
	}
}

func specialEntry(e walk.Entry) manifest.Entry {
	return manifest.Entry{
		Type:     manifest.EntryFile,
		Path:     e.RelPath,
		Size:     0,
		Modified: e.Stat.ModTime.Format(time.RFC3339),
		Extra:    map[string]any{"chunkType": "special"},
	}
}

// hashFilesConcurrently computes digests for every Regular entry, bounded
// to cfg.workers goroutines (0 = GOMAXPROCS*2). Follows
// internal/batch/batch.go's processEntriesParallel, which bounds fan-out
// with an errgroup.Group paired with a semaphore.Weighted rather than a
// hand-rolled worker pool; a permission error with skipPermissionErrors
// set is swallowed rather than propagated to the group, leaving that
// entry's digest empty so Archive omits it.
func (a *Archiver) hashFilesConcurrently(ctx context.Context, entries []walk.Entry, regularIdx []int) ([]digest.Digest, error) {
	digests := make([]digest.Digest, len(entries))
	if len(regularIdx) == 0 {
		return digests, nil
	}

	workers := a.cfg.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0) * 2
	}
	if workers > len(regularIdx) {
		workers = len(regularIdx)
	}
	if workers < 1 {
		workers = 1
	}

	sem := semaphore.NewWeighted(int64(workers))
	g, gctx := errgroup.WithContext(ctx)

	for _, idx := range regularIdx {
		idx := idx
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			d, err := a.hashOneWithRetry(gctx, entries[idx])
			if err != nil {
				if a.cfg.skipPermissionErrors && isPermissionDenied(err) {
					return nil
				}
				return err
			}
			digests[idx] = d
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return digests, nil
}

// hashOneWithRetry implements a "retry once, then fail" policy, consulting
// the HashCache before falling back to a fresh hash.Stream.
func (a *Archiver) hashOneWithRetry(ctx context.Context, e walk.Entry) (digest.Digest, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if d, ok := a.cache.Get(e.URL, hashcache.Stat{Size: e.Stat.Size, ModTime: e.Stat.ModTime}); ok {
		return d, nil
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		d, err := a.hashFile(e)
		if err == nil {
			a.cache.Put(e.URL, d, hashcache.Stat{Size: e.Stat.Size, ModTime: e.Stat.ModTime})
			return d, nil
		}
		lastErr = err
		a.log().Debug("hash attempt failed", "path", e.URL, "attempt", attempt, "error", err)
	}
	return "", fmt.Errorf("archiver: hash %s: %w", e.RelPath, lastErr)
}

func isPermissionDenied(err error) bool {
	return errors.Is(err, errPermission)
}

func (a *Archiver) storeAndRecord(ctx context.Context, e walk.Entry, d digest.Digest, mu *sync.Mutex, m *manifest.Manifest) (manifest.Entry, error) {
	data, err := readAll(e.URL)
	if err != nil {
		return manifest.Entry{}, fmt.Errorf("archiver: read %s: %w", e.RelPath, err)
	}

	meta := chunkstore.Metadata{
		Size:             e.Stat.Size,
		ContentHash:      d,
		HashAlgorithm:    a.cfg.hashAlgorithm,
		OriginalFilename: basename(e.RelPath),
		OriginalPaths:    []string{e.RelPath},
		Created:          e.Stat.ModTime,
		Modified:         e.Stat.ModTime,
	}
	if _, err := a.store.Write(ctx, d, data, meta); err != nil {
		return manifest.Entry{}, fmt.Errorf("archiver: store %s: %w", e.RelPath, err)
	}

	mu.Lock()
	if _, ok := m.Hashes[d.Encoded()]; !ok {
		m.Hashes[d.Encoded()] = manifest.HashRef{Size: e.Stat.Size, Algorithm: string(a.cfg.hashAlgorithm)}
	}
	mu.Unlock()

	return manifest.Entry{
		Type:        manifest.EntryFile,
		Path:        e.RelPath,
		Hash:        d.Encoded(),
		Size:        e.Stat.Size,
		Permissions: fmt.Sprintf("%04o", e.Stat.Mode.Perm()),
		Owner:       fmt.Sprintf("%d", e.Stat.UID),
		Group:       fmt.Sprintf("%d", e.Stat.GID),
		Modified:    e.Stat.ModTime.Format(time.RFC3339),
	}, nil
}
