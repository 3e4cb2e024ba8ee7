package ignore

import "testing"

func TestBasicGlobMatch(t *testing.T) {
	m := New([]string{"*.log"})
	if !m.IsIgnored("debug.log", false) {
		t.Fatal("expected debug.log to be ignored")
	}
	if !m.IsIgnored("nested/dir/debug.log", false) {
		t.Fatal("expected unanchored pattern to match at any depth")
	}
	if m.IsIgnored("debug.txt", false) {
		t.Fatal("did not expect debug.txt to be ignored")
	}
}

func TestDirectoryOnlyPattern(t *testing.T) {
	m := New([]string{"build/"})
	if !m.IsIgnored("build", true) {
		t.Fatal("expected build/ to match directory build")
	}
	if m.IsIgnored("build", false) {
		t.Fatal("did not expect build/ to match a regular file named build")
	}
	if !m.IsIgnored("build/file.txt", false) {
		t.Fatal("expected a file nested under an ignored directory to be ignored")
	}
	if !m.IsIgnored("build/nested/deep.txt", false) {
		t.Fatal("expected a file nested multiple levels under an ignored directory to be ignored")
	}
	if !m.IsIgnored("build/sub", true) {
		t.Fatal("expected a subdirectory of an ignored directory to be ignored")
	}
}

func TestNegationOverridesEarlierPattern(t *testing.T) {
	m := New([]string{"*.log", "!important.log"})
	if m.IsIgnored("important.log", false) {
		t.Fatal("expected negation to un-ignore important.log")
	}
	if !m.IsIgnored("other.log", false) {
		t.Fatal("expected other.log to remain ignored")
	}
}

func TestLaterPatternWins(t *testing.T) {
	m := New([]string{"!keep.txt", "keep.txt"})
	if !m.IsIgnored("keep.txt", false) {
		t.Fatal("expected the later, more specific pattern to win")
	}
}

func TestDoubleStarRecursiveMatch(t *testing.T) {
	m := New([]string{"vendor/**/testdata"})
	if !m.IsIgnored("vendor/a/b/testdata", true) {
		t.Fatal("expected ** to match intermediate path segments")
	}
}

func TestBlankAndCommentLinesIgnored(t *testing.T) {
	m := New([]string{"", "# a comment", "*.tmp"})
	if len(m.rules) != 1 {
		t.Fatalf("expected exactly one compiled rule, got %d", len(m.rules))
	}
}
