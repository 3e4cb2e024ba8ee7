package walk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rickhohler/snug/internal/platform"
)

// Options configures a walk. The zero value is the conservative default:
// symlinks are preserved (not followed), broken symlinks are skipped,
// special files are skipped, permission errors are fatal, hidden files are
// included.
type Options struct {
	BasePath              string
	FollowSymlinks        bool
	ErrorOnBrokenSymlinks bool
	IncludeSpecialFiles   bool
	SkipPermissionErrors  bool
	SkipHiddenFiles       bool
	Logger                *slog.Logger
}

// Option mutates Options, matching the functional-options convention the
// rest of this module follows.
type Option func(*Options)

func WithBasePath(p string) Option           { return func(o *Options) { o.BasePath = p } }
func WithFollowSymlinks(v bool) Option        { return func(o *Options) { o.FollowSymlinks = v } }
func WithErrorOnBrokenSymlinks(v bool) Option { return func(o *Options) { o.ErrorOnBrokenSymlinks = v } }
func WithIncludeSpecialFiles(v bool) Option   { return func(o *Options) { o.IncludeSpecialFiles = v } }
func WithSkipPermissionErrors(v bool) Option  { return func(o *Options) { o.SkipPermissionErrors = v } }
func WithSkipHiddenFiles(v bool) Option       { return func(o *Options) { o.SkipHiddenFiles = v } }
func WithLogger(logger *slog.Logger) Option   { return func(o *Options) { o.Logger = logger } }

// ErrBrokenSymlink is returned (or logged, per ErrorOnBrokenSymlinks) when a
// symlink's target cannot be resolved.
var ErrBrokenSymlink = errors.New("walk: broken symlink")

type walker struct {
	opts    Options
	visited map[string]struct{} // canonicalized paths of directories entered through a followed symlink, for cycle detection
}

// Walk enumerates root depth-first, lexicographic by basename within each
// directory, returning every entry in traversal order.
func Walk(ctx context.Context, root string, opts ...Option) ([]Entry, error) {
	cfg := Options{}
	for _, opt := range opts {
		opt(&cfg)
	}
	w := &walker{opts: cfg, visited: make(map[string]struct{})}

	var entries []Entry
	err := w.walkDir(ctx, root, "", &entries)
	return entries, err
}

func (w *walker) log() *slog.Logger {
	if w.opts.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.opts.Logger
}

func (w *walker) relPath(rel string) string {
	if w.opts.BasePath == "" {
		return rel
	}
	if rel == "" {
		return w.opts.BasePath
	}
	return w.opts.BasePath + "/" + rel
}

// walkDir recursively walks dirPath (an absolute or root-relative
// filesystem path); rel is the tree-relative path accumulated so far
// (empty at the root).
func (w *walker) walkDir(ctx context.Context, dirPath, rel string, out *[]Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dirEntries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsPermission(err) && w.opts.SkipPermissionErrors {
			w.log().Warn("skipped directory: permission denied", "path", dirPath)
			return nil
		}
		return err
	}

	names := make([]string, len(dirEntries))
	for i, de := range dirEntries {
		names[i] = de.Name()
	}
	sort.Strings(names)
	byName := make(map[string]fs.DirEntry, len(dirEntries))
	for _, de := range dirEntries {
		byName[de.Name()] = de
	}

	for _, name := range names {
		if w.opts.SkipHiddenFiles && strings.HasPrefix(name, ".") {
			continue
		}
		de := byName[name]
		childPath := filepath.Join(dirPath, name)
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}
		if err := w.visit(ctx, childPath, childRel, de, out); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) visit(ctx context.Context, path, rel string, de fs.DirEntry, out *[]Entry) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsPermission(err) && w.opts.SkipPermissionErrors {
			w.log().Warn("skipped entry: permission denied", "path", path)
			return nil
		}
		return err
	}

	mode := info.Mode()
	switch {
	case mode&fs.ModeSymlink != 0:
		return w.visitSymlink(ctx, path, rel, out)
	case mode.IsDir():
		*out = append(*out, Entry{
			Kind:    Directory,
			URL:     path,
			RelPath: w.relPath(rel),
			Stat:    statFrom(info),
		})
		return w.walkDir(ctx, path, rel, out)
	case mode.IsRegular():
		*out = append(*out, Entry{
			Kind:    Regular,
			URL:     path,
			RelPath: w.relPath(rel),
			Stat:    statFrom(info),
		})
		return nil
	default:
		return w.visitSpecial(path, rel, info, out)
	}
}

func (w *walker) visitSymlink(ctx context.Context, path, rel string, out *[]Entry) error {
	target, err := os.Readlink(path)
	if err != nil {
		return fmt.Errorf("walk: readlink %s: %w", path, err)
	}

	targetInfo, statErr := os.Stat(path) // follows the link
	broken := statErr != nil

	if !w.opts.FollowSymlinks || broken {
		if broken {
			if w.opts.ErrorOnBrokenSymlinks {
				return fmt.Errorf("%w: %s -> %s", ErrBrokenSymlink, path, target)
			}
			w.log().Warn("skipped broken symlink", "path", path, "target", target)
			return nil
		}
		linkInfo, err := os.Lstat(path)
		if err != nil {
			return err
		}
		*out = append(*out, Entry{
			Kind:    Symlink,
			URL:     path,
			RelPath: w.relPath(rel),
			Stat:    statFrom(linkInfo),
			Target:  target,
		})
		return nil
	}

	if !targetInfo.IsDir() {
		*out = append(*out, Entry{
			Kind:    Regular,
			URL:     path,
			RelPath: w.relPath(rel),
			Stat:    statFrom(targetInfo),
		})
		return nil
	}

	canonical, err := filepath.EvalSymlinks(path)
	if err != nil {
		return fmt.Errorf("walk: resolve %s: %w", path, err)
	}
	if _, seen := w.visited[canonical]; seen {
		w.log().Debug("skipped cyclic symlink", "path", path, "canonical", canonical)
		return nil
	}
	w.visited[canonical] = struct{}{}

	*out = append(*out, Entry{
		Kind:    Directory,
		URL:     path,
		RelPath: w.relPath(rel),
		Stat:    statFrom(targetInfo),
	})
	return w.walkDir(ctx, path, rel, out)
}

func (w *walker) visitSpecial(path, rel string, info os.FileInfo, out *[]Entry) error {
	if !w.opts.IncludeSpecialFiles {
		return nil
	}
	kind := SpecialUnknown
	mode := info.Mode()
	switch {
	case mode&fs.ModeDevice != 0 && mode&fs.ModeCharDevice != 0:
		kind = SpecialCharDevice
	case mode&fs.ModeDevice != 0:
		kind = SpecialDevice
	case mode&fs.ModeSocket != 0:
		kind = SpecialSocket
	case mode&fs.ModeNamedPipe != 0:
		kind = SpecialNamedPipe
	}
	*out = append(*out, Entry{
		Kind:        Special,
		URL:         path,
		RelPath:     w.relPath(rel),
		Stat:        statFrom(info),
		SpecialKind: kind,
	})
	return nil
}

func statFrom(info os.FileInfo) Stat {
	uid, gid := platform.FileOwner(info)
	return Stat{
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
		UID:     uid,
		GID:     gid,
	}
}
