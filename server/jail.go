package server

import (
	"errors"
	"path"
	"strings"
)

// ErrEscapesRoot is returned when a client path would climb above the
// jail root.
var ErrEscapesRoot = errors.New("path escapes root directory")

// splitPath breaks a slash separated path into its segments, dropping
// empty and "." segments.
func splitPath(p string) []string {
	var segs []string
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." {
			continue
		}
		segs = append(segs, seg)
	}
	return segs
}

// resolve applies candidate to the working directory cwd, both expressed
// as segments below root, and returns the resulting segments. A candidate
// starting with "/" is taken relative to root. The walk stops with
// ErrEscapesRoot at the first ".." that would leave root, so "../x" from
// root is rejected even though its final depth is zero.
func resolve(cwd []string, candidate string) ([]string, error) {
	var out []string
	if !strings.HasPrefix(candidate, "/") {
		out = append(out, cwd...)
	}
	for _, seg := range splitPath(candidate) {
		if seg == ".." {
			if len(out) == 0 {
				return nil, ErrEscapesRoot
			}
			out = out[:len(out)-1]
			continue
		}
		out = append(out, seg)
	}
	return out, nil
}

// virtualPath renders segments as the absolute path a client sees.
func virtualPath(segs []string) string {
	return "/" + path.Join(segs...)
}

// isPrefix reports whether dir equals or is an ancestor of p.
func isPrefix(dir, p []string) bool {
	if len(dir) > len(p) {
		return false
	}
	for i := range dir {
		if dir[i] != p[i] {
			return false
		}
	}
	return true
}
