package channel

import (
	"path"
	"strings"
	"sync"

	"github.com/moby/patternmatcher"
)

// Matcher reports whether a root-relative path matches a set of glob patterns.
//
// Patterns follow .dockerignore rules: '*' and '?' stay within one path
// segment, '**' crosses segments, a leading '!' re-excludes paths matched by
// earlier patterns, and a pattern that matches a parent directory matches
// everything below it.
type Matcher struct {
	// patternmatcher compiles lazily and is not safe for concurrent use.
	mu       sync.Mutex
	pm       *patternmatcher.PatternMatcher
	patterns []string
}

// Compile builds a Matcher from glob patterns. Empty patterns are rejected.
func Compile(patterns ...string) (*Matcher, error) {
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			return nil, errEmptyPattern
		}
	}

	pm, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, err
	}

	return &Matcher{
		pm:       pm,
		patterns: append([]string(nil), patterns...),
	}, nil
}

// Match reports whether the slash-separated relative path matches.
// A Matcher without patterns matches nothing.
func (m *Matcher) Match(p string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}
	p = strings.TrimPrefix(path.Clean(p), "/")
	if p == "." || p == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	matched, err := m.pm.MatchesOrParentMatches(p)
	if err != nil {
		return false
	}
	return matched
}

// Patterns returns a copy of the patterns the matcher was compiled from.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}
