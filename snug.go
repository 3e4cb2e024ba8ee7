package snug

import (
	"github.com/rickhohler/snug/archiver"
	"github.com/rickhohler/snug/chunkstore"
	"github.com/rickhohler/snug/extractor"
	"github.com/rickhohler/snug/hash"
	"github.com/rickhohler/snug/manifest"
	"github.com/rickhohler/snug/validator"
)

// Re-export the hash algorithm enumeration for callers who only need the
// top-level package.
type Algorithm = hash.Algorithm

const (
	SHA256 = hash.SHA256
	SHA1   = hash.SHA1
	MD5    = hash.MD5
)

// Store is the content-addressable primitive every archive operation is
// built on; re-exported from chunkstore for top-level convenience.
type Store = chunkstore.Store

// Manifest is the fully-resolved archive document.
type Manifest = manifest.Manifest

// NewDiskStore constructs a filesystem-backed Store rooted at dir.
var NewDiskStore = chunkstore.NewDiskStore

// NewArchiver constructs an Archiver writing chunks to store.
var NewArchiver = archiver.New

// NewExtractor constructs an Extractor reading chunks from store.
var NewExtractor = extractor.New

// NewValidator constructs a Validator checking a manifest against store.
var NewValidator = validator.New

// Parse and Emit re-export the manifest codec's two operations.
var (
	ParseManifest = manifest.Parse
	EmitManifest  = manifest.Emit
)

// Validation levels, re-exported from validator.
const (
	ValidateQuick   = validator.Quick
	ValidateDefault = validator.Default
	ValidateStrict  = validator.Strict
)
