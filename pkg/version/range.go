package version

import (
	"fmt"
	"strings"

	msemver "github.com/Masterminds/semver/v3"
)

// Any is the range expression that matches every version.
const Any = "*"

// Range is a parsed version range. The zero value matches everything.
//
// Matching is done by [msemver.Constraints], so a prerelease only satisfies a
// range that itself names a prerelease. The one exception is a wildcard
// alternative ("*", "x"), which matches every published version, prereleases
// included.
type Range struct {
	raw string
	c   *msemver.Constraints
}

// ParseRange parses a range expression. An empty expression is the same as "*".
func ParseRange(s string) (Range, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		raw = Any
	}
	wild := false
	for _, alt := range strings.Split(raw, "||") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			return Range{}, fmt.Errorf("invalid version range %q: empty alternative", s)
		}
		if isWildcard(alt) {
			wild = true
		}
	}
	c, err := msemver.NewConstraint(raw)
	if err != nil {
		return Range{}, fmt.Errorf("invalid version range %q: %w", s, err)
	}
	if wild {
		return Range{raw: raw}, nil
	}
	return Range{raw: raw, c: c}, nil
}

// MustParseRange is like [ParseRange] but panics on error.
func MustParseRange(s string) Range {
	r, err := ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// String returns the expression the range was parsed from.
func (r Range) String() string {
	if r.raw == "" {
		return Any
	}
	return r.raw
}

// IsAny reports whether the range matches every version.
func (r Range) IsAny() bool { return r.c == nil }

// Match reports whether v satisfies the range.
func (r Range) Match(v Version) bool {
	if v.IsZero() {
		return false
	}
	if r.IsAny() {
		return true
	}
	mv, err := msemver.NewVersion(v.canonical)
	if err != nil {
		return false
	}
	return r.c.Check(mv)
}

// Satisfies parses both arguments and reports whether version is within expr.
func Satisfies(expr, version string) (bool, error) {
	r, err := ParseRange(expr)
	if err != nil {
		return false, err
	}
	v, err := Parse(version)
	if err != nil {
		return false, err
	}
	return r.Match(v), nil
}

func isWildcard(s string) bool {
	switch s {
	case "*", "x", "X":
		return true
	}
	return false
}
