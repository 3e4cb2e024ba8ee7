package manifest

import "errors"

// Sentinel errors covering the manifest codec's failure modes.
var (
	// ErrInvalidFormat covers a malformed compression envelope or document structure.
	ErrInvalidFormat = errors.New("manifest: invalid format")

	// ErrVersionUnsupported is returned when the version field is not one this codec understands.
	ErrVersionUnsupported = errors.New("manifest: unsupported version")

	// ErrMissingHashReference is returned when an entry's hash hex is absent from the hashes table.
	ErrMissingHashReference = errors.New("manifest: entry references a hash not present in hashes table")

	// ErrBadPath is returned when an entry path is absolute, empty, or contains "..".
	ErrBadPath = errors.New("manifest: invalid entry path")
)
