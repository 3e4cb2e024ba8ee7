// Package mirror composes a set of chunkstore.Store primaries and glaciers
// into one logical store: writes fan out across primaries synchronously
// and replicate to glaciers on a detached goroutine. The fan-out shape
// (sync.WaitGroup + atomic.Bool stop flag + mutex-guarded first error)
// follows internal/batch/batch.go's worker pool, retargeted from parallel
// decompression to parallel replica writes.
package mirror

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	digest "github.com/opencontainers/go-digest"

	"github.com/rickhohler/snug/chunkstore"
)

// Store composes primaries and glaciers into a single chunkstore.Store.
type Store struct {
	primaries []chunkstore.Store
	glaciers  []chunkstore.Store
	logger    *slog.Logger

	glacierCtx    context.Context
	cancelGlacier context.CancelFunc
	inflight      sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithLogger attaches a logger for glacier-replication diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New composes primaries (synchronous replicas) and glaciers (lazy
// backups). At least one primary is required.
func New(primaries, glaciers []chunkstore.Store, opts ...Option) (*Store, error) {
	if len(primaries) == 0 {
		return nil, errNoPrimaries
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		primaries:     primaries,
		glaciers:      glaciers,
		glacierCtx:    ctx,
		cancelGlacier: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Close cancels any in-flight detached glacier replication and waits for the
// goroutines to observe cancellation. Already-accepted bytes on any store
// are left intact; cancellation is best-effort, never corrupting.
func (s *Store) Close() {
	s.cancelGlacier()
	s.inflight.Wait()
}

// Write implements chunkstore.Store. It attempts every primary and succeeds
// iff at least one accepts; it then dispatches a detached task replicating
// to every glacier, best-effort.
func (s *Store) Write(ctx context.Context, d digest.Digest, data []byte, metadata chunkstore.Metadata) (digest.Digest, error) {
	var stop atomic.Bool
	var succeeded atomic.Bool
	var firstErr error
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i, p := range s.primaries {
		wg.Add(1)
		go func(idx int, store chunkstore.Store) {
			defer wg.Done()
			if stop.Load() {
				return
			}
			if _, err := store.Write(ctx, d, data, metadata); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				s.log().Warn("primary write failed", "primary", idx, "digest", d.String(), "error", err)
				return
			}
			succeeded.Store(true)
		}(i, p)
	}
	wg.Wait()

	if !succeeded.Load() {
		if firstErr != nil {
			return "", firstErr
		}
		return "", chunkstore.ErrStorageUnavailable
	}

	s.replicateToGlaciersAsync(d, data, metadata)
	return d, nil
}

// replicateToGlaciersAsync dispatches a detached goroutine per glacier,
// tracked by s.inflight so Close can wait for them to observe cancellation.
func (s *Store) replicateToGlaciersAsync(d digest.Digest, data []byte, metadata chunkstore.Metadata) {
	for i, g := range s.glaciers {
		s.inflight.Add(1)
		go func(idx int, store chunkstore.Store) {
			defer s.inflight.Done()
			select {
			case <-s.glacierCtx.Done():
				return
			default:
			}
			if _, err := store.Write(s.glacierCtx, d, data, metadata); err != nil {
				s.log().Warn("glacier replication failed", "glacier", idx, "digest", d.String(), "error", err)
			}
		}(i, g)
	}
}

// Read tries primaries in order, then glaciers, returning the first
// successful read.
func (s *Store) Read(ctx context.Context, d digest.Digest) ([]byte, error) {
	for _, p := range s.primaries {
		data, err := p.Read(ctx, d)
		if err == nil {
			return data, nil
		}
	}
	for _, g := range s.glaciers {
		data, err := g.Read(ctx, d)
		if err == nil {
			return data, nil
		}
	}
	return nil, chunkstore.ErrNotFound
}

// ReadRange tries primaries in order, then glaciers.
func (s *Store) ReadRange(ctx context.Context, d digest.Digest, offset, length int64) ([]byte, error) {
	var lastOutOfRange error
	for _, p := range s.primaries {
		data, err := p.ReadRange(ctx, d, offset, length)
		if err == nil {
			return data, nil
		}
		if err == chunkstore.ErrOutOfRange { //nolint:errorlint // sentinel comparison mirrors chunkstore's own convention
			lastOutOfRange = err
		}
	}
	for _, g := range s.glaciers {
		data, err := g.ReadRange(ctx, d, offset, length)
		if err == nil {
			return data, nil
		}
		if err == chunkstore.ErrOutOfRange { //nolint:errorlint
			lastOutOfRange = err
		}
	}
	if lastOutOfRange != nil {
		return nil, lastOutOfRange
	}
	return nil, chunkstore.ErrNotFound
}

// Exists is affirmative if any primary or glacier affirms.
func (s *Store) Exists(ctx context.Context, d digest.Digest) (bool, error) {
	for _, p := range s.primaries {
		if ok, err := p.Exists(ctx, d); err == nil && ok {
			return true, nil
		}
	}
	for _, g := range s.glaciers {
		if ok, err := g.Exists(ctx, d); err == nil && ok {
			return true, nil
		}
	}
	return false, nil
}

// ExistsBatch reports presence for every digest in ds.
func (s *Store) ExistsBatch(ctx context.Context, ds []digest.Digest) (map[digest.Digest]bool, error) {
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

// Size is affirmative if any primary or glacier affirms.
func (s *Store) Size(ctx context.Context, d digest.Digest) (int64, error) {
	for _, p := range s.primaries {
		if size, err := p.Size(ctx, d); err == nil {
			return size, nil
		}
	}
	for _, g := range s.glaciers {
		if size, err := g.Size(ctx, d); err == nil {
			return size, nil
		}
	}
	return 0, chunkstore.ErrNotFound
}

// Metadata returns the first affirmative sidecar found across primaries,
// then glaciers.
func (s *Store) Metadata(ctx context.Context, d digest.Digest) (chunkstore.Metadata, error) {
	for _, p := range s.primaries {
		if m, err := p.Metadata(ctx, d); err == nil {
			return m, nil
		}
	}
	for _, g := range s.glaciers {
		if m, err := g.Metadata(ctx, d); err == nil {
			return m, nil
		}
	}
	return chunkstore.Metadata{}, chunkstore.ErrNotFound
}

// Delete removes d from every primary and glacier. It is idempotent; the
// first non-nil error from any underlying store is returned after all
// deletes have been attempted.
func (s *Store) Delete(ctx context.Context, d digest.Digest) error {
	var firstErr error
	for _, p := range s.primaries {
		if err := p.Delete(ctx, d); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, g := range s.glaciers {
		if err := g.Delete(ctx, d); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ListDigests unions the digests visible across every primary (glaciers are
// excluded since they may lag and are not authoritative for enumeration).
func (s *Store) ListDigests(ctx context.Context) ([]digest.Digest, error) {
	seen := make(map[digest.Digest]struct{})
	var out []digest.Digest
	for _, p := range s.primaries {
		ds, err := p.ListDigests(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range ds {
			if _, ok := seen[d]; !ok {
				seen[d] = struct{}{}
				out = append(out, d)
			}
		}
	}
	return out, nil
}

var _ chunkstore.Store = (*Store)(nil)
