package main

import (
	"errors"

	snug "github.com/rickhohler/snug"
	"github.com/rickhohler/snug/extractor"
	"github.com/rickhohler/snug/walk"
)

// Exit codes: 0 success, 1 operation failure, 2 bad arguments. A handful
// of well-known sentinel errors get their own code so scripts can
// distinguish "nothing to do here" from "something broke".
const (
	exitOK           = 0
	exitFailure      = 1
	exitUsage        = 2
	exitNotFound     = 3
	exitValidateFail = 4
)

// exitCodeFor maps a returned error to a stable CLI exit code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errBadArgs):
		return exitUsage
	case errors.Is(err, snug.ErrNotFound):
		return exitNotFound
	case errors.Is(err, errValidationFailed):
		return exitValidateFail
	case errors.Is(err, snug.ErrUnsupportedPrimaryAlgorithm):
		return exitUsage
	case errors.Is(err, snug.ErrInvalidFormat),
		errors.Is(err, snug.ErrVersionUnsupported),
		errors.Is(err, snug.ErrBadPath),
		errors.Is(err, snug.ErrMissingHashReference),
		errors.Is(err, snug.ErrTooManyFiles),
		errors.Is(err, extractor.ErrPathEscape),
		errors.Is(err, extractor.ErrMissingChunk),
		errors.Is(err, walk.ErrBrokenSymlink):
		return exitFailure
	default:
		return exitFailure
	}
}

var (
	errBadArgs          = errors.New("bad arguments")
	errValidationFailed = errors.New("validation failed")
)
