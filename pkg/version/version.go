// Package version implements semantic versions and the range expressions used in
// dependency declarations.
//
// Versions are compared with [golang.org/x/mod/semver] and spelled without the
// leading "v" in manifests. Ranges are parsed by Masterminds semver constraints:
//
//	*, x, ""            any version
//	1.2.3, =1.2.3       exact (partial versions like "1.2" act as x-ranges)
//	1.x, 1.2.*          x-ranges
//	^1.2.3, ~1.2.3      caret / tilde ranges
//	>=1.0.0 <2.0.0      comparator sets (space or comma separated, ANDed)
//	1.0.0 - 1.4         hyphen ranges
//	^1.0.0 || ^2.0.0    alternatives (ORed)
package version

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is a parsed semantic version. The zero value is invalid.
type Version struct {
	raw       string
	canonical string
}

// Parse parses s as a semantic version. A leading "v" is optional, and missing
// minor or patch components default to zero ("1.2" is "1.2.0").
func Parse(s string) (Version, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Version{}, fmt.Errorf("invalid version %q: empty", s)
	}
	v := raw
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	return Version{raw: strings.TrimPrefix(raw, "v"), canonical: semver.Canonical(v)}, nil
}

// MustParse is like [Parse] but panics on error. Intended for tests and constants.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsValid reports whether s parses as a version.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// String returns the version as written, without a leading "v".
func (v Version) String() string { return v.raw }

// Canonical returns the normalized "vMAJOR.MINOR.PATCH[-PRERELEASE]" form.
func (v Version) Canonical() string { return v.canonical }

// IsZero reports whether v is the zero Version.
func (v Version) IsZero() bool { return v.canonical == "" }

// Compare returns -1, 0, or +1 depending on whether v is lower than, equal to,
// or greater than o. Build metadata is ignored.
func (v Version) Compare(o Version) int {
	return semver.Compare(v.canonical, o.canonical)
}

// Equal reports whether v and o have the same precedence.
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// Sort orders versions from lowest to highest.
func Sort(vs []Version) {
	slices.SortStableFunc(vs, func(a, b Version) int { return a.Compare(b) })
}

// Highest returns the highest version in vs that satisfies every range, and
// false if there is none.
func Highest(vs []Version, ranges ...Range) (Version, bool) {
	var best Version
	found := false
	for _, v := range vs {
		if !matchAll(v, ranges) {
			continue
		}
		if !found || v.Compare(best) > 0 {
			best, found = v, true
		}
	}
	return best, found
}

func matchAll(v Version, ranges []Range) bool {
	for _, r := range ranges {
		if !r.Match(v) {
			return false
		}
	}
	return true
}
