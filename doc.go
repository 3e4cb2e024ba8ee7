// Package snug provides a content-addressable archive engine: a tree of
// files is hashed into deduplicated chunks, written to a pluggable
// content-addressable store, and described by a compact YAML manifest that
// can be re-extracted or validated independently of the original tree.
//
// # Quick start
//
//	store, err := chunkstore.NewDiskStore("/var/snug/store")
//	a := archiver.New(store, nil)
//	m, err := a.Archive(ctx, "./src")
//	data, err := manifest.Emit(m)
//
// Extract an archive back onto disk:
//
//	m, err := manifest.Parse(data)
//	x := extractor.New(store)
//	err = x.ExtractManifest(ctx, m, "./dst")
//
// # Packages
//
//   - hash: digest computation over a closed algorithm enumeration
//     (sha256, sha1, md5).
//   - hashcache: LRU-bounded path-to-digest memoization.
//   - chunkstore: content-addressable byte storage with merged sidecar
//     metadata.
//   - chunkstore/mirror: primary/glacier replication across multiple
//     chunkstore.Store backends.
//   - manifest: the archive wire format.
//   - ignore: gitignore-style path exclusion.
//   - walk: tree enumeration.
//   - archiver, extractor, validator: the three top-level operations.
//
// cmd/snug wraps these packages in a thin CLI: archive, extract, validate,
// list, info.
package snug
