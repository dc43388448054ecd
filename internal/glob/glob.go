// Package glob isolates glob matching behind a small API so the matching
// backend can change without touching watch or config code.
//
// Patterns use doublestar syntax: "*" matches within a path segment, "**"
// matches across segments, "?" matches one character and "[...]" a class.
// All paths are matched in slash form.
package glob

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// HasMeta reports whether pattern contains glob metacharacters.
func HasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// Match reports whether name matches pattern. Both are normalised to slash
// form first. An invalid pattern never matches.
func Match(name, pattern string) bool {
	matched, err := doublestar.Match(filepath.ToSlash(pattern), filepath.ToSlash(name))
	return err == nil && matched
}

// MatchAny reports whether name matches any of patterns.
func MatchAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if Match(name, pattern) {
			return true
		}
	}
	return false
}

// Validate returns an error when pattern is not a valid glob.
func Validate(pattern string) error {
	if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
		return doublestar.ErrBadPattern
	}
	return nil
}

// Base returns the longest leading directory of pattern that contains no
// metacharacters. "src/**/*.ts" yields "src", "*.ts" yields ".", and a
// pattern without metacharacters is returned cleaned.
func Base(pattern string) string {
	slashed := filepath.ToSlash(pattern)
	if !HasMeta(slashed) {
		return filepath.Clean(pattern)
	}

	base, _ := doublestar.SplitPattern(slashed)
	if base == "" {
		base = "."
	}
	return filepath.FromSlash(path.Clean(base))
}
