// Package chunkstore implements a content-addressable byte store keyed by
// cryptographic digest, generalized from core/cache/disk/cache.go's sharded
// disk cache to also carry merged sidecar metadata and an
// atomicity/verification contract.
package chunkstore

import (
	"context"
	"io"

	digest "github.com/opencontainers/go-digest"
)

// Store is the content-addressable primitive every higher layer (the
// archiver, the extractor, MirroredStore) is built on.
type Store interface {
	// Write atomically persists data under d and merges metadata into any
	// existing sidecar, per the ChunkMetadata merge law. The caller
	// guarantees d == hash(data, metadata.HashAlgorithm); implementations
	// that verify this MUST return ErrIntegrityMismatch on mismatch.
	Write(ctx context.Context, d digest.Digest, data []byte, metadata Metadata) (digest.Digest, error)

	// Read returns the full chunk, or ErrNotFound if absent.
	Read(ctx context.Context, d digest.Digest) ([]byte, error)

	// ReadRange returns a partial read. It returns ErrNotFound if d is
	// absent, ErrOutOfRange if offset exceeds the chunk's size, and trims
	// the result at the chunk's size if offset+length overflows it.
	ReadRange(ctx context.Context, d digest.Digest, offset, length int64) ([]byte, error)

	// Exists reports whether d is present.
	Exists(ctx context.Context, d digest.Digest) (bool, error)

	// ExistsBatch reports presence for every digest in ds.
	ExistsBatch(ctx context.Context, ds []digest.Digest) (map[digest.Digest]bool, error)

	// Size returns the byte length of the chunk, or ErrNotFound if absent.
	Size(ctx context.Context, d digest.Digest) (int64, error)

	// Metadata returns the merged sidecar for d, or ErrNotFound if absent.
	Metadata(ctx context.Context, d digest.Digest) (Metadata, error)

	// Delete removes the chunk and its sidecar. It is idempotent: deleting
	// an absent digest is not an error.
	Delete(ctx context.Context, d digest.Digest) error

	// ListDigests enumerates every digest currently stored, for garbage
	// collection callers outside the core contract.
	ListDigests(ctx context.Context) ([]digest.Digest, error)
}

// ChunkReader provides three access patterns over a single chunk: full
// read, ranged read, and bounded-prefix read. Store implementations MAY
// expose one via Open; it is an optimization over Read/ReadRange for
// callers who want to avoid loading an entire chunk when only a prefix is
// needed.
type ChunkReader interface {
	io.Closer
	ReadFull() ([]byte, error)
	ReadRange(offset, length int64) ([]byte, error)
	ReadPrefix(maxBytes int64) ([]byte, error)
}

// OrganizationStrategy maps a digest to its on-disk path fragment, pluggable
// behind a small interface.
type OrganizationStrategy interface {
	// Path returns the path, relative to the store root, of the chunk file
	// for d's hex encoding.
	Path(d digest.Digest) string
}
