// Package extractor consumes an archive manifest and materializes a tree
// on disk. Writes follow the atomic discipline from core/save.go
// (generalized into internal/atomicfile) and path safety follows copy.go's
// CopyTo checks.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	digest "github.com/opencontainers/go-digest"

	"github.com/rickhohler/snug/chunkstore"
	"github.com/rickhohler/snug/internal/atomicfile"
	"github.com/rickhohler/snug/manifest"
)

// Sentinel errors for extractor failure modes.
var (
	ErrPathEscape   = errors.New("extractor: path escapes output root")
	ErrMissingChunk = errors.New("extractor: referenced chunk is missing from the store")
)

// Options configures extraction. PreservePermissions and PreserveTimestamps
// default to true.
type Options struct {
	Overwrite             bool
	PreservePermissions   bool
	PreserveTimestamps    bool
	ErrorOnBrokenSymlinks bool
}

// Option mutates Options.
type Option func(*Options)

func WithOverwrite(v bool) Option             { return func(o *Options) { o.Overwrite = v } }
func WithPreservePermissions(v bool) Option   { return func(o *Options) { o.PreservePermissions = v } }
func WithPreserveTimestamps(v bool) Option    { return func(o *Options) { o.PreserveTimestamps = v } }
func WithErrorOnBrokenSymlinks(v bool) Option { return func(o *Options) { o.ErrorOnBrokenSymlinks = v } }

// Extractor materializes an manifest.Manifest's entries under a destination
// root, reading chunk bytes from a chunkstore.Store.
type Extractor struct {
	store chunkstore.Store
	opts  Options
}

// New constructs an Extractor with sane extraction defaults.
func New(store chunkstore.Store, opts ...Option) *Extractor {
	o := Options{PreservePermissions: true, PreserveTimestamps: true}
	for _, opt := range opts {
		opt(&o)
	}
	return &Extractor{store: store, opts: o}
}

// Extract parses archiveBytes and reconstructs the tree under dstRoot.
func (x *Extractor) Extract(ctx context.Context, archiveBytes []byte, dstRoot string) error {
	m, err := manifest.Parse(archiveBytes)
	if err != nil {
		return fmt.Errorf("extractor: %w", err)
	}
	return x.ExtractManifest(ctx, m, dstRoot)
}

// ExtractManifest reconstructs an already-parsed manifest under dstRoot.
func (x *Extractor) ExtractManifest(ctx context.Context, m manifest.Manifest, dstRoot string) error {
	for _, e := range m.Entries {
		if err := validatePathSafety(e.Path); err != nil {
			return err
		}
	}

	ordered := topologicalOrder(m.Entries)

	for _, e := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := filepath.Join(dstRoot, filepath.FromSlash(e.Path))
		if !withinRoot(dstRoot, target) {
			return fmt.Errorf("%w: %s", ErrPathEscape, e.Path)
		}

		var err error
		switch e.Type {
		case manifest.EntryDirectory:
			err = x.materializeDirectory(target, e)
		case manifest.EntryFile:
			err = x.materializeFile(ctx, m, target, e)
		case manifest.EntrySymlink:
			err = x.materializeSymlink(target, e)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// topologicalOrder sorts entries by path depth (shallow to deep), and
// within a depth: directories, then files, then symlinks. Sort is stable,
// preserving the codec's ancestor-before-descendant order as the tiebreak.
func topologicalOrder(entries []manifest.Entry) []manifest.Entry {
	ordered := make([]manifest.Entry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		di, dj := depth(ordered[i].Path), depth(ordered[j].Path)
		if di != dj {
			return di < dj
		}
		return typeRank(ordered[i].Type) < typeRank(ordered[j].Type)
	})
	return ordered
}

func depth(p string) int {
	return strings.Count(path.Clean(p), "/")
}

func typeRank(t manifest.EntryType) int {
	switch t {
	case manifest.EntryDirectory:
		return 0
	case manifest.EntryFile:
		return 1
	case manifest.EntrySymlink:
		return 2
	default:
		return 3
	}
}

func validatePathSafety(p string) error {
	if p == "" || path.IsAbs(p) || strings.HasPrefix(p, "/") {
		return fmt.Errorf("%w: %q", ErrPathEscape, p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return fmt.Errorf("%w: %q", ErrPathEscape, p)
		}
	}
	return nil
}

func withinRoot(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "..")
}

func (x *Extractor) materializeDirectory(target string, e manifest.Entry) error {
	perm := parsePerm(e.Permissions, 0o755)
	if _, err := os.Stat(target); err == nil {
		if !x.opts.Overwrite {
			return nil
		}
		return os.Chmod(target, perm)
	}
	return os.MkdirAll(target, perm)
}

func (x *Extractor) materializeFile(ctx context.Context, m manifest.Manifest, target string, e manifest.Entry) error {
	if _, ok := m.Hashes[e.Hash]; e.Hash != "" && !ok {
		return fmt.Errorf("extractor: %q: %w", e.Path, ErrMissingChunk)
	}
	var data []byte
	if e.Hash != "" {
		d, err := chunkstoreDigest(m.HashAlgorithm, e.Hash)
		if err != nil {
			// A hash key that is not a well-formed digest cannot name any
			// chunk in the store.
			return fmt.Errorf("extractor: %q: %w: %w", e.Path, ErrMissingChunk, err)
		}
		data, err = x.store.Read(ctx, d)
		if err != nil {
			if errors.Is(err, chunkstore.ErrNotFound) {
				return fmt.Errorf("extractor: %q: %w", e.Path, ErrMissingChunk)
			}
			return err
		}
	}

	if !x.opts.Overwrite {
		if _, err := os.Stat(target); err == nil {
			return fmt.Errorf("extractor: %q already exists", e.Path)
		}
	}

	perm := parsePerm(e.Permissions, 0o644)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := atomicfile.WriteBytes(target, data, perm); err != nil {
		return fmt.Errorf("extractor: write %q: %w", e.Path, err)
	}

	if x.opts.PreservePermissions {
		if err := os.Chmod(target, perm); err != nil {
			return err
		}
	}
	if x.opts.PreserveTimestamps {
		if t := e.ModifiedTime(); !t.IsZero() {
			if err := os.Chtimes(target, t, t); err != nil {
				return err
			}
		}
	}
	return nil
}

func (x *Extractor) materializeSymlink(target string, e manifest.Entry) error {
	if x.opts.Overwrite {
		_ = os.Remove(target) //nolint:errcheck // best-effort: absence is not an error
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := os.Symlink(e.Target, target); err != nil {
		return fmt.Errorf("extractor: symlink %q: %w", e.Path, err)
	}
	if x.opts.ErrorOnBrokenSymlinks {
		if _, err := os.Stat(target); err != nil {
			return fmt.Errorf("extractor: broken symlink %q -> %q", e.Path, e.Target)
		}
	}
	return nil
}

func parsePerm(octal string, fallback os.FileMode) os.FileMode {
	if octal == "" {
		return fallback
	}
	v, err := strconv.ParseUint(octal, 8, 32)
	if err != nil {
		return fallback
	}
	return os.FileMode(v)
}

// chunkstoreDigest reconstructs a digest.Digest from a manifest's algorithm
// tag and hex key; it is the inverse of the hex key the archiver stores
// File entries under (digest.Digest.Encoded()).
func chunkstoreDigest(algorithm, hex string) (digest.Digest, error) {
	var alg digest.Algorithm
	switch algorithm {
	case "sha256", "":
		alg = digest.SHA256
	case "sha1":
		alg = digest.SHA1
	case "md5":
		alg = digest.Algorithm("md5")
	default:
		alg = digest.Algorithm(algorithm)
	}
	d := digest.NewDigestFromEncoded(alg, hex)
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("extractor: invalid digest %s:%s: %w", algorithm, hex, err)
	}
	return d, nil
}
