package chunkstore

import (
	"sort"
	"time"

	digest "github.com/opencontainers/go-digest"

	"github.com/rickhohler/snug/hash"
)

// Metadata is the sidecar document stored alongside each chunk.
type Metadata struct {
	Size             int64         `json:"size"`
	ContentHash      digest.Digest `json:"contentHash"`
	HashAlgorithm    hash.Algorithm `json:"hashAlgorithm"`
	OriginalFilename string        `json:"originalFilename,omitempty"`
	OriginalPaths    []string      `json:"originalPaths,omitempty"`
	Created          time.Time     `json:"created"`
	Modified         time.Time     `json:"modified"`
	ContentType      string        `json:"contentType,omitempty"`
	ChunkType        string        `json:"chunkType,omitempty"`
	CompressionInfo  string        `json:"compressionInfo,omitempty"`
}

// MergeMetadata merges incoming metadata into an existing sidecar record:
// the new metadata never replaces the existing record, it merges into it.
// originalPaths is the union (deduplicated, sorted for determinism);
// created is the minimum of the two; modified is the maximum;
// originalFilename takes the incoming value when set, otherwise the
// existing one is preserved.
func MergeMetadata(existing, incoming Metadata) Metadata {
	merged := existing

	merged.Size = incoming.Size
	merged.ContentHash = incoming.ContentHash
	merged.HashAlgorithm = incoming.HashAlgorithm

	if incoming.OriginalFilename != "" {
		merged.OriginalFilename = incoming.OriginalFilename
	}

	merged.OriginalPaths = unionPaths(existing.OriginalPaths, incoming.OriginalPaths)

	merged.Created = earlier(existing.Created, incoming.Created)
	merged.Modified = later(existing.Modified, incoming.Modified)

	if incoming.ContentType != "" {
		merged.ContentType = incoming.ContentType
	}
	if incoming.ChunkType != "" {
		merged.ChunkType = incoming.ChunkType
	}
	if incoming.CompressionInfo != "" {
		merged.CompressionInfo = incoming.CompressionInfo
	}

	return merged
}

func unionPaths(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, p := range a {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	for _, p := range b {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func earlier(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if a.Before(b) {
		return a
	}
	return b
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
