// Package validator re-reads an archive manifest and checks referenced
// hashes exist and (optionally) re-hashes chunk contents. The re-hash-and-
// compare path follows internal/batch/batch.go's
// verifyUncompressed/streamDecompressVerify, which hashes and compares
// against a recorded digest the same way.
package validator

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	digest "github.com/opencontainers/go-digest"

	"github.com/rickhohler/snug/chunkstore"
	"github.com/rickhohler/snug/hash"
	"github.com/rickhohler/snug/manifest"
)

// Level is the closed enumeration of validation strictness.
type Level int

const (
	// Quick parses the manifest and checks structural invariants only.
	Quick Level = iota
	// Default additionally checks store.Exists for every referenced digest.
	Default
	// Strict additionally reads and re-hashes every chunk's bytes.
	Strict
)

// Counts tallies entries by kind.
type Counts struct {
	Entries  int
	Files    int
	Dirs     int
	Symlinks int
}

// Report is the structured validation result. Validator never returns an
// error for validation failures; Report.OK reflects that instead. An error
// is returned only for parser or store I/O failures.
type Report struct {
	OK         bool
	Missing    []string
	Mismatched []string
	BadPaths   []string
	Counts     Counts
}

// Validator checks an archive manifest against a chunkstore.Store.
type Validator struct {
	store chunkstore.Store
}

// New constructs a Validator backed by store.
func New(store chunkstore.Store) *Validator {
	return &Validator{store: store}
}

// Validate parses archiveBytes and validates at the given level.
func (v *Validator) Validate(ctx context.Context, archiveBytes []byte, level Level) (Report, error) {
	m, err := manifest.Parse(archiveBytes)
	if err != nil {
		return Report{}, fmt.Errorf("validator: %w", err)
	}
	return v.ValidateManifest(ctx, m, level)
}

// ValidateManifest validates an already-parsed manifest at the given level.
func (v *Validator) ValidateManifest(ctx context.Context, m manifest.Manifest, level Level) (Report, error) {
	report := Report{OK: true}

	for _, e := range m.Entries {
		switch e.Type {
		case manifest.EntryFile:
			report.Counts.Files++
		case manifest.EntryDirectory:
			report.Counts.Dirs++
		case manifest.EntrySymlink:
			report.Counts.Symlinks++
		}
		report.Counts.Entries++

		if err := validatePath(e.Path); err != nil {
			report.BadPaths = append(report.BadPaths, e.Path)
			report.OK = false
			continue
		}
		if e.Type != manifest.EntryFile {
			continue
		}
		if e.Hash == "" {
			if !e.IsSpecial() {
				report.BadPaths = append(report.BadPaths, e.Path)
				report.OK = false
			}
			continue
		}
		if _, ok := m.Hashes[e.Hash]; !ok {
			report.Missing = append(report.Missing, e.Hash)
			report.OK = false
		}
	}

	if level == Quick {
		return report, nil
	}

	for hex := range m.Hashes {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		d, err := digestFromHex(m.HashAlgorithm, hex)
		if err != nil {
			// A key that is not a well-formed digest cannot name any chunk
			// in the store, so it is reported as missing.
			report.Missing = appendUnique(report.Missing, hex)
			report.OK = false
			continue
		}

		exists, err := v.store.Exists(ctx, d)
		if err != nil {
			return Report{}, fmt.Errorf("validator: exists %s: %w", hex, err)
		}
		if !exists {
			report.Missing = appendUnique(report.Missing, hex)
			report.OK = false
			continue
		}

		if level != Strict {
			continue
		}
		if err := v.rehashAndCompare(ctx, d); err != nil {
			if errors.Is(err, errMismatch) {
				report.Mismatched = append(report.Mismatched, hex)
				report.OK = false
				continue
			}
			return Report{}, fmt.Errorf("validator: read %s: %w", hex, err)
		}
	}

	return report, nil
}

var errMismatch = errors.New("validator: recomputed digest does not match")

func (v *Validator) rehashAndCompare(ctx context.Context, d digest.Digest) error {
	data, err := v.store.Read(ctx, d)
	if err != nil {
		return err
	}
	algo, ok := algorithmOf(d)
	if !ok {
		return nil
	}
	recomputed, err := hash.Bytes(algo, data)
	if err != nil {
		return err
	}
	if recomputed != d {
		return errMismatch
	}
	return nil
}

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

func digestFromHex(algorithm, hex string) (digest.Digest, error) {
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
		return "", err
	}
	return d, nil
}

func validatePath(p string) error {
	if p == "" || path.IsAbs(p) || strings.HasPrefix(p, "/") {
		return errBadPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return errBadPath
		}
	}
	return nil
}

var errBadPath = errors.New("validator: invalid path")

func appendUnique(slice []string, v string) []string {
	for _, existing := range slice {
		if existing == v {
			return slice
		}
	}
	return append(slice, v)
}
