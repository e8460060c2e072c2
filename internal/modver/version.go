// Package modver implements the versioning rules shared across the
// registry: a requested version r is satisfied by a provided version p
// iff p.Major == r.Major and (p.Minor, p.Patch) >= (r.Minor, r.Patch).
//
// Parsing is delegated to github.com/Masterminds/semver/v3, which the
// teacher repository already leans on for constraint handling
// (internal/packagemanager/resolver.go, registry.go); the compatibility
// predicate itself is hand-written since the rule above is narrower than
// a general semver range/caret/tilde constraint.
package modver

import (
	"fmt"

	semver "github.com/Masterminds/semver/v3"
)

// Version is major.minor.patch[+build].
type Version struct {
	Major int
	Minor int
	Patch int
	Build string
}

// Parse parses a version string of the form "major.minor.patch[+build]".
func Parse(s string) (Version, error) {
	sv, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("modver: invalid version %q: %w", s, err)
	}

	return Version{
		Major: int(sv.Major()),
		Minor: int(sv.Minor()),
		Patch: int(sv.Patch()),
		Build: sv.Metadata(),
	}, nil
}

// MustParse is Parse but panics on error; reserved for literals in tests
// and for compiled-in default versions.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return v
}

// String renders the canonical "major.minor.patch[+build]" form.
func (v Version) String() string {
	base := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Build != "" {
		base += "+" + v.Build
	}

	return base
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other, ordering by (Major, Minor, Patch) only — build metadata never
// participates in ordering or compatibility, matching semver semantics.
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		return cmp(v.Major, other.Major)
	}

	if v.Minor != other.Minor {
		return cmp(v.Minor, other.Minor)
	}

	return cmp(v.Patch, other.Patch)
}

func cmp(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Satisfies reports whether a requested version r is satisfied by a
// provided version p: p.Major == r.Major and (p.Minor, p.Patch) >=
// (r.Minor, r.Patch).
func Satisfies(requested, provided Version) bool {
	if provided.Major != requested.Major {
		return false
	}

	if provided.Minor != requested.Minor {
		return provided.Minor > requested.Minor
	}

	return provided.Patch >= requested.Patch
}
