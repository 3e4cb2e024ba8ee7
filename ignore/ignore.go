// Package ignore implements gitignore-style pattern matching over
// tree-relative paths, purely syntactic and filesystem-free. Matching is
// built on github.com/bmatcuk/doublestar/v4 for ** recursive-glob
// semantics that stdlib path/filepath.Match does not support.
package ignore

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// rule is one compiled pattern.
type rule struct {
	pattern string
	negate  bool
	dirOnly bool
}

// Matcher evaluates an ordered list of gitignore-style patterns. Later
// patterns override earlier ones (negation).
type Matcher struct {
	rules []rule
}

// New compiles patterns in the order given. Blank lines and lines starting
// with "#" are ignored, matching familiar .gitignore conventions.
func New(patterns []string) *Matcher {
	m := &Matcher{}
	for _, raw := range patterns {
		p := strings.TrimRight(raw, "\r\n")
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		r := rule{pattern: p}
		if strings.HasPrefix(p, "!") {
			r.negate = true
			p = p[1:]
		}
		if strings.HasSuffix(p, "/") {
			r.dirOnly = true
			p = strings.TrimSuffix(p, "/")
		}
		p = strings.TrimPrefix(p, "/")
		if !strings.Contains(p, "/") {
			// Unanchored single-segment patterns match at any depth.
			p = "**/" + p
		}
		r.pattern = p
		m.rules = append(m.rules, r)
	}
	return m
}

// IsIgnored reports whether relPath (forward-slash, tree-relative) is
// excluded. The last matching rule wins, implementing negation precedence.
//
// A dirOnly rule matches both the directory itself and anything nested
// beneath it: "build/" excludes the directory named build as well as every
// file and subdirectory under it, the same way a .gitignore directory
// pattern does.
func (m *Matcher) IsIgnored(relPath string, isDir bool) bool {
	relPath = strings.TrimPrefix(relPath, "/")
	ignored := false
	for _, r := range m.rules {
		if !m.ruleMatches(r, relPath, isDir) {
			continue
		}
		ignored = !r.negate
	}
	return ignored
}

func (m *Matcher) ruleMatches(r rule, relPath string, isDir bool) bool {
	if r.dirOnly {
		if isDir {
			if ok, err := doublestar.Match(r.pattern, relPath); err == nil && ok {
				return true
			}
		}
		ok, err := doublestar.Match(r.pattern+"/**", relPath)
		return err == nil && ok
	}
	ok, err := doublestar.Match(r.pattern, relPath)
	return err == nil && ok
}
