package snug

import (
	"github.com/rickhohler/snug/archiver"
	"github.com/rickhohler/snug/chunkstore"
	"github.com/rickhohler/snug/extractor"
	"github.com/rickhohler/snug/manifest"
)

// Sentinel errors re-exported from chunkstore.
var (
	ErrNotFound           = chunkstore.ErrNotFound
	ErrIntegrityMismatch  = chunkstore.ErrIntegrityMismatch
	ErrStorageUnavailable = chunkstore.ErrStorageUnavailable
	ErrOutOfRange         = chunkstore.ErrOutOfRange
)

// Sentinel errors re-exported from manifest.
var (
	ErrInvalidFormat        = manifest.ErrInvalidFormat
	ErrVersionUnsupported   = manifest.ErrVersionUnsupported
	ErrMissingHashReference = manifest.ErrMissingHashReference
	ErrBadPath              = manifest.ErrBadPath
)

// Sentinel errors re-exported from extractor.
var (
	ErrPathEscape   = extractor.ErrPathEscape
	ErrMissingChunk = extractor.ErrMissingChunk
)

// Sentinel errors re-exported from archiver.
var (
	ErrTooManyFiles                = archiver.ErrTooManyFiles
	ErrUnsupportedPrimaryAlgorithm = archiver.ErrUnsupportedPrimaryAlgorithm
)
