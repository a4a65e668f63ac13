package server

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

// traversalDepth is a string based depth counter that resolve is checked
// against. It reports how many levels below root the candidate path lands
// when interpreted relative to current. Both current and root are
// absolute paths and current must be inside root. A candidate starting
// with "/" is taken relative to root instead of current.
//
// The walk stops at the first ".." that would leave root, so a path such
// as "../x" from root is rejected even though its final depth is zero.
func traversalDepth(current, root, candidate string) (int, error) {
	base := len(splitPath(current)) - len(splitPath(root))
	if base < 0 {
		return 0, ErrEscapesRoot
	}
	if strings.HasPrefix(candidate, "/") {
		base = 0
	}
	depth := base
	for _, seg := range splitPath(candidate) {
		if seg == ".." {
			depth--
			if depth < 0 {
				return depth, ErrEscapesRoot
			}
			continue
		}
		depth++
	}
	return depth, nil
}

func TestTraversalDepth(t *testing.T) {
	tests := []struct {
		name      string
		current   string
		candidate string
		want      int
		escapes   bool
	}{
		{"Root self", "/srv", ".", 0, false},
		{"Child", "/srv", "sub", 1, false},
		{"Nested", "/srv", "a/b/c", 3, false},
		{"Up from child", "/srv/a", "..", 0, false},
		{"Up past root", "/srv", "..", -1, true},
		{"Sideways", "/srv/a", "../b", 1, false},
		{"Escape then return", "/srv", "../srv/x", -1, true},
		{"Buried escape", "/srv/a", "b/../../../etc", -1, true},
		{"Deep escape", "/srv", "../../../etc", -1, true},
		{"Absolute from depth", "/srv/a/b", "/c", 1, false},
		{"Absolute escape", "/srv/a/b", "/..", -1, true},
		{"Empty segments", "/srv", "a//b/", 2, false},
		{"Dot segments", "/srv/a", "./././b", 2, false},
		{"Empty candidate", "/srv/a/b", "", 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := traversalDepth(tt.current, "/srv", tt.candidate)
			if tt.escapes {
				if !errors.Is(err, ErrEscapesRoot) {
					t.Fatalf("traversalDepth(%q, %q) error = %v, want ErrEscapesRoot", tt.current, tt.candidate, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("traversalDepth(%q, %q) unexpected error: %v", tt.current, tt.candidate, err)
			}
			if got != tt.want {
				t.Errorf("traversalDepth(%q, %q) = %d, want %d", tt.current, tt.candidate, got, tt.want)
			}
		})
	}
}

func TestTraversalDepthCurrentOutsideRoot(t *testing.T) {
	if _, err := traversalDepth("/", "/srv", "x"); !errors.Is(err, ErrEscapesRoot) {
		t.Errorf("expected ErrEscapesRoot, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		cwd       []string
		candidate string
		want      []string
		escapes   bool
	}{
		{nil, "sub", []string{"sub"}, false},
		{[]string{"a"}, "b/c", []string{"a", "b", "c"}, false},
		{[]string{"a", "b"}, "..", []string{"a"}, false},
		{[]string{"a", "b"}, "/x", []string{"x"}, false},
		{[]string{"a"}, "/", nil, false},
		{nil, "..", nil, true},
		{[]string{"a"}, "../../etc", nil, true},
		{[]string{"a"}, "x/../../..", nil, true},
	}

	for _, tt := range tests {
		got, err := resolve(tt.cwd, tt.candidate)
		if tt.escapes {
			if !errors.Is(err, ErrEscapesRoot) {
				t.Errorf("resolve(%v, %q) error = %v, want ErrEscapesRoot", tt.cwd, tt.candidate, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("resolve(%v, %q) unexpected error: %v", tt.cwd, tt.candidate, err)
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("resolve(%v, %q) = %v, want %v", tt.cwd, tt.candidate, got, tt.want)
		}
	}
}

// resolve and traversalDepth must agree on every input.
func TestResolveMatchesDepth(t *testing.T) {
	cwds := [][]string{nil, {"a"}, {"a", "b"}}
	candidates := []string{".", "..", "../..", "x/..", "/", "/..", "a/../b", "../../../c", "./x/./y", "x/../../y"}

	for _, cwd := range cwds {
		current := "/srv" + virtualPath(cwd)
		for _, c := range candidates {
			segs, rerr := resolve(cwd, c)
			depth, derr := traversalDepth(current, "/srv", c)
			if (rerr != nil) != (derr != nil) {
				t.Errorf("cwd %v candidate %q: resolve err %v, depth err %v", cwd, c, rerr, derr)
				continue
			}
			if rerr == nil && len(segs) != depth {
				t.Errorf("cwd %v candidate %q: resolve gives depth %d, traversalDepth %d", cwd, c, len(segs), depth)
			}
		}
	}
}

func TestVirtualPath(t *testing.T) {
	if got := virtualPath(nil); got != "/" {
		t.Errorf("virtualPath(nil) = %q", got)
	}
	if got := virtualPath([]string{"a", "b"}); got != "/a/b" {
		t.Errorf("virtualPath = %q", got)
	}
}

func TestIsPrefix(t *testing.T) {
	if !isPrefix([]string{"a"}, []string{"a", "b"}) {
		t.Error("a should be an ancestor of a/b")
	}
	if !isPrefix([]string{"a", "b"}, []string{"a", "b"}) {
		t.Error("a/b should match itself")
	}
	if isPrefix([]string{"a", "c"}, []string{"a", "b"}) {
		t.Error("a/c is not an ancestor of a/b")
	}
	if isPrefix([]string{"a", "b", "c"}, []string{"a", "b"}) {
		t.Error("deeper path is not an ancestor")
	}
}
