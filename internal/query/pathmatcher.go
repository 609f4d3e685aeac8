package query

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// PathMatcher applies path include/exclude glob filters as a
// post-filter over hit paths, since glob semantics don't compile into
// the inverted index the way term/range predicates do.
type PathMatcher struct {
	includes []string
	excludes []string
}

// NewPathMatcher builds a PathMatcher from the PathFilter list parsed
// out of --path=/--exclude-path= flags.
func NewPathMatcher(filters []PathFilter) *PathMatcher {
	pm := &PathMatcher{}
	for _, f := range filters {
		if f.Exclude {
			pm.excludes = append(pm.excludes, f.Pattern)
		} else {
			pm.includes = append(pm.includes, f.Pattern)
		}
	}
	return pm
}

// Match reports whether path survives the matcher: it must match at
// least one include pattern (when any are configured; no includes
// means everything passes the include stage) and must not match any
// exclude pattern.
func (pm *PathMatcher) Match(path string) bool {
	normalized := strings.ReplaceAll(path, "\\", "/")

	if len(pm.includes) > 0 {
		matched := false
		for _, pat := range pm.includes {
			if ok, _ := doublestar.Match(pat, normalized); ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, pat := range pm.excludes {
		if ok, _ := doublestar.Match(pat, normalized); ok {
			return false
		}
	}

	return true
}

// Empty reports whether the matcher has no configured patterns at
// all, letting callers skip the post-filter pass entirely.
func (pm *PathMatcher) Empty() bool {
	return len(pm.includes) == 0 && len(pm.excludes) == 0
}
