package manifest

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"gopkg.in/yaml.v3"
)

// Parse unwraps the gzip envelope and decodes the inner YAML document into a
// fully-resolved Manifest. Every hash reference is validated against the
// hashes table and every path is validated before returning.
func Parse(data []byte) (Manifest, error) {
	if len(data) < 2 || data[0] != 0x1F || data[1] != 0x8B {
		return Manifest{}, fmt.Errorf("%w: missing gzip magic bytes", ErrInvalidFormat)
	}

	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	defer gr.Close()

	inner, err := io.ReadAll(gr)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(inner, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	if m.Format != FormatName {
		return Manifest{}, fmt.Errorf("%w: format %q", ErrInvalidFormat, m.Format)
	}
	if m.Version != CurrentVersion {
		return Manifest{}, fmt.Errorf("%w: version %d", ErrVersionUnsupported, m.Version)
	}
	if err := validate(m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Emit produces the compressed wire form of m: the hashes table is the
// single source of truth for digest->size/algorithm, referenced by hex key
// from every File entry, and the result is gzip-compressed so it begins
// with the standard 0x1F 0x8B magic bytes.
func Emit(m Manifest) ([]byte, error) {
	if err := validate(m); err != nil {
		return nil, err
	}

	inner, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(inner); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// validate enforces the manifest well-formedness invariant: every non-special
// File.hash appears in hashes, every entry path is unique and safe. A special
// file (device, socket, FIFO) carries no hash and is exempt.
func validate(m Manifest) error {
	seen := make(map[string]struct{}, len(m.Entries))
	for _, e := range m.Entries {
		if err := validatePath(e.Path); err != nil {
			return err
		}
		if _, dup := seen[e.Path]; dup {
			return fmt.Errorf("%w: duplicate path %q", ErrInvalidFormat, e.Path)
		}
		seen[e.Path] = struct{}{}

		if e.Type == EntryFile {
			if e.Hash == "" {
				if !e.IsSpecial() {
					return fmt.Errorf("%w: file entry %q has no hash", ErrMissingHashReference, e.Path)
				}
			} else if _, ok := m.Hashes[e.Hash]; !ok {
				return fmt.Errorf("%w: %q references %q", ErrMissingHashReference, e.Path, e.Hash)
			}
		}
	}
	return nil
}

func validatePath(p string) error {
	if p == "" {
		return fmt.Errorf("%w: empty path", ErrBadPath)
	}
	if path.IsAbs(p) || strings.HasPrefix(p, "/") {
		return fmt.Errorf("%w: absolute path %q", ErrBadPath, p)
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == ".." {
			return fmt.Errorf("%w: %q contains \"..\"", ErrBadPath, p)
		}
	}
	return nil
}
