// Package sequence resolves a wildcarded package selector into a
// deterministic, shardable, failure-prioritised execution request.
package sequence

import (
	"fmt"
	"strings"
)

// Selector is a dot-separated package pattern. A bare "*" segment matches
// exactly one package segment, "prefix*" matches a segment beginning with
// the prefix, and a final segment ending in "*" matches sub-packages
// recursively at that position.
type Selector struct {
	segments []string
	wildcard bool
}

// ParseSelector validates and compiles a pattern.
func ParseSelector(pattern string) (*Selector, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("sequence: empty package selector")
	}
	segments := strings.Split(pattern, ".")
	wildcard := false
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("sequence: malformed selector %q: empty segment", pattern)
		}
		if i := strings.Index(seg, "*"); i >= 0 {
			if i != len(seg)-1 {
				return nil, fmt.Errorf("sequence: malformed selector %q: %q has a non-trailing wildcard", pattern, seg)
			}
			wildcard = true
		}
	}
	return &Selector{segments: segments, wildcard: wildcard}, nil
}

// MatchesClass reports whether a fully qualified class name's package is
// selected by the pattern.
//
// The final pattern segment matches by prefix when the pattern carries a
// wildcard anywhere, so "a.b.*.includesub" selects both a.b.x.includesub1
// and a.b.x.includesub2. A wholly literal pattern requires exact package
// equality and never descends into sub-packages.
func (s *Selector) MatchesClass(classFQN string) bool {
	pkg := classFQN
	if i := strings.LastIndex(classFQN, "."); i >= 0 {
		pkg = classFQN[:i]
	} else {
		pkg = "" // default package
	}
	pkgSegs := strings.Split(pkg, ".")
	if pkg == "" {
		pkgSegs = nil
	}

	last := len(s.segments) - 1
	for i, seg := range s.segments {
		if i >= len(pkgSegs) {
			return false
		}
		final := i == last
		switch {
		case seg == "*" && !final:
			// any single segment
		case strings.HasSuffix(seg, "*"):
			prefix := strings.TrimSuffix(seg, "*")
			if !strings.HasPrefix(pkgSegs[i], prefix) {
				return false
			}
			if final {
				// recursive: deeper sub-packages allowed
				return true
			}
		default:
			if final {
				if s.wildcard {
					if !strings.HasPrefix(pkgSegs[i], seg) {
						return false
					}
				} else if pkgSegs[i] != seg {
					return false
				}
				return i == len(pkgSegs)-1
			}
			if pkgSegs[i] != seg {
				return false
			}
		}
	}
	return false
}
