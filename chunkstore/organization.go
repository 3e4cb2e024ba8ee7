package chunkstore

import (
	"path/filepath"

	digest "github.com/opencontainers/go-digest"
)

// gitStyle shards chunks into nested two-hex-character directories, the
// same layout git uses for loose objects. depth controls how many
// directory levels precede the full digest filename.
type gitStyle struct {
	depth int
}

// GitStyle returns an OrganizationStrategy that nests chunks depth levels
// deep using two hex characters per level (depth must be 1, 2, or 3; 2 is
// the recommended default, yielding ~65,536 buckets).
func GitStyle(depth int) OrganizationStrategy {
	if depth < 1 {
		depth = 1
	}
	if depth > 3 {
		depth = 3
	}
	return gitStyle{depth: depth}
}

func (g gitStyle) Path(d digest.Digest) string {
	hex := d.Encoded()
	parts := make([]string, 0, g.depth+1)
	pos := 0
	for level := 0; level < g.depth; level++ {
		end := pos + 2
		if end > len(hex) {
			end = len(hex)
		}
		if pos >= len(hex) {
			break
		}
		parts = append(parts, hex[pos:end])
		pos = end
	}
	parts = append(parts, hex)
	return filepath.Join(parts...)
}

// flat stores every chunk directly under the store root. Only suitable for
// small stores (tens of thousands of chunks at most, since most
// filesystems slow down with very large single directories).
type flat struct{}

// Flat returns an OrganizationStrategy that stores every chunk in a single
// directory.
func Flat() OrganizationStrategy {
	return flat{}
}

func (flat) Path(d digest.Digest) string {
	return d.Encoded()
}
