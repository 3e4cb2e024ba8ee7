// Package manifest implements archive manifest parsing and emission: a
// gzip-wrapped YAML document. The deduplication discipline (one entry per
// unique value, referenced by key) follows core/create.go's buildIndex,
// translated from a FlatBuffers index to a YAML document, implemented with
// gopkg.in/yaml.v3 and github.com/klauspost/compress/gzip.
package manifest

import "time"

// EntryType is the closed enumeration of ArchiveEntry variants.
type EntryType string

const (
	EntryFile      EntryType = "file"
	EntryDirectory EntryType = "directory"
	EntrySymlink   EntryType = "symlink"
)

// HashRef is the hashes-table entry an entry's hash hex key resolves to.
type HashRef struct {
	Size      int64  `yaml:"size"`
	Algorithm string `yaml:"algorithm"`
}

// Defaults carries the optional default-attribute block.
type Defaults struct {
	Owner     string `yaml:"owner,omitempty"`
	Group     string `yaml:"group,omitempty"`
	FilePerms string `yaml:"filePerms,omitempty"`
	DirPerms  string `yaml:"dirPerms,omitempty"`
}

// Entry is a tagged union of File, Directory, or Symlink. Extra carries any
// unknown fields encountered on parse, so they round-trip unmodified.
type Entry struct {
	Type        EntryType      `yaml:"type"`
	Path        string         `yaml:"path"`
	Hash        string         `yaml:"hash,omitempty"`
	Target      string         `yaml:"target,omitempty"`
	Size        int64          `yaml:"size,omitempty"`
	Permissions string         `yaml:"permissions,omitempty"`
	Owner       string         `yaml:"owner,omitempty"`
	Group       string         `yaml:"group,omitempty"`
	Modified    string         `yaml:"modified,omitempty"`
	Created     string         `yaml:"created,omitempty"`
	Extra       map[string]any `yaml:",inline"`
}

// ModifiedTime parses the ISO-8601 Modified field, returning the zero time
// if unset or malformed.
func (e Entry) ModifiedTime() time.Time {
	t, err := time.Parse(time.RFC3339, e.Modified)
	if err != nil {
		return time.Time{}
	}
	return t
}

// CreatedTime parses the ISO-8601 Created field, returning the zero time if
// unset or malformed.
func (e Entry) CreatedTime() time.Time {
	t, err := time.Parse(time.RFC3339, e.Created)
	if err != nil {
		return time.Time{}
	}
	return t
}

// IsSpecial reports whether e is a File entry standing in for a device,
// socket, or FIFO: recorded with size 0 and no hash, since special files
// have no stable byte content to hash.
func (e Entry) IsSpecial() bool {
	v, ok := e.Extra["chunkType"]
	return ok && v == "special"
}

// Manifest is the fully-resolved, in-memory form of an archive's manifest.
type Manifest struct {
	Format        string             `yaml:"format"`
	Version       int                `yaml:"version"`
	HashAlgorithm string             `yaml:"hashAlgorithm"`
	Hashes        map[string]HashRef `yaml:"hashes"`
	Defaults      *Defaults          `yaml:"defaults,omitempty"`
	Entries       []Entry            `yaml:"entries"`
}

// CurrentVersion is the manifest format version this codec emits.
const CurrentVersion = 1

// FormatName is the literal required value of the format field.
const FormatName = "snug"
