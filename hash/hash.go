// Package hash computes content digests over a small, closed set of
// algorithms and exposes them as github.com/opencontainers/go-digest values.
package hash

import (
	"crypto/md5"  //nolint:gosec // md5 is accepted read-only, per spec
	"crypto/sha1" //nolint:gosec // sha1 is accepted as a legacy write algorithm
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"

	digest "github.com/opencontainers/go-digest"
)

// Algorithm identifies a supported hashing algorithm. The set is closed:
// sha256 is the mandatory default, sha1 is an optional legacy write
// algorithm, and md5 is accepted read-only for externally supplied
// checksums.
type Algorithm string

// Supported algorithms.
const (
	SHA256 Algorithm = "sha256"
	SHA1   Algorithm = "sha1"
	MD5    Algorithm = "md5"
)

// ErrUnsupportedAlgorithm is returned when an algorithm outside the closed
// enumeration is requested.
var ErrUnsupportedAlgorithm = errors.New("hash: unsupported algorithm")

// Digest returns the go-digest algorithm corresponding to a.
func (a Algorithm) Digest() digest.Algorithm {
	switch a {
	case SHA256:
		return digest.SHA256
	case SHA1:
		return digest.SHA1
	case MD5:
		return digest.Algorithm("md5")
	default:
		return ""
	}
}

// Valid reports whether a is one of the recognized algorithms.
func (a Algorithm) Valid() bool {
	switch a {
	case SHA256, SHA1, MD5:
		return true
	default:
		return false
	}
}

// ParseAlgorithm validates a user-supplied algorithm name (as taken from a
// CLI flag or config document) against the closed enumeration.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, s)
	}
	return a, nil
}

// newHasher returns a fresh hash.Hash for the given algorithm.
func newHasher(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case SHA256:
		return sha256.New(), nil
	case SHA1:
		return sha1.New(), nil //nolint:gosec // legacy, read/write-optional per spec
	case MD5:
		return md5.New(), nil //nolint:gosec // read-only usage enforced by callers
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algo)
	}
}

// Bytes computes the digest of an in-memory byte slice.
func Bytes(algo Algorithm, data []byte) (digest.Digest, error) {
	h, err := newHasher(algo)
	if err != nil {
		return "", err
	}
	h.Write(data) //nolint:errcheck // hash.Hash.Write never fails
	return digest.NewDigestFromBytes(algo.Digest(), h.Sum(nil)), nil
}

// blockSize is the fixed read size used by Stream so that arbitrarily large
// inputs are hashed without holding the whole input in memory.
const blockSize = 64 * 1024

// Stream computes the digest of r by reading it in fixed-size blocks. It
// does not require the whole input in memory. I/O errors from r are
// propagated unchanged.
func Stream(algo Algorithm, r io.Reader) (digest.Digest, error) {
	h, err := newHasher(algo)
	if err != nil {
		return "", err
	}
	buf := make([]byte, blockSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return digest.NewDigestFromBytes(algo.Digest(), h.Sum(nil)), nil
}

// NewHashingReader wraps r, computing algo's digest over every byte read.
// Use Sum after draining r to EOF to obtain the final digest.
type HashingReader struct {
	r io.Reader
	h hash.Hash
}

// NewHashingReader constructs a HashingReader for the given algorithm.
func NewHashingReader(r io.Reader, algo Algorithm) (*HashingReader, error) {
	h, err := newHasher(algo)
	if err != nil {
		return nil, err
	}
	return &HashingReader{r: r, h: h}, nil
}

// Read implements io.Reader.
func (hr *HashingReader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	if n > 0 {
		hr.h.Write(p[:n]) //nolint:errcheck // hash writes never fail
	}
	return n, err
}

// Sum returns the digest of all bytes read so far.
func (hr *HashingReader) Sum(algo Algorithm) digest.Digest {
	return digest.NewDigestFromBytes(algo.Digest(), hr.h.Sum(nil))
}
