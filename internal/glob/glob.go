package glob

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrBadPattern is returned by Validate for patterns that can never match.
var ErrBadPattern = doublestar.ErrBadPattern

// Match reports whether name matches pattern. Malformed patterns match nothing.
func Match(name, pattern string) bool {
	if name == "" || pattern == "" {
		return false
	}
	ok, err := doublestar.Match(pattern, name)
	if err != nil {
		return false
	}
	return ok
}

// MatchAny returns true if name matches any of the given patterns.
func MatchAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if Match(name, p) {
			return true
		}
	}
	return false
}

// Validate returns an error wrapping ErrBadPattern if pattern is malformed.
func Validate(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: empty pattern", ErrBadPattern)
	}
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("%w: %q", ErrBadPattern, pattern)
	}
	return nil
}
