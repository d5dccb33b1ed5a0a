package formula

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is a dotted numeric version such as an OS or SDK release. The
// zero Version means "unset".
type Version struct {
	raw   string
	canon string
}

// ParseVersion parses "MAJOR[.MINOR[.PATCH]]".
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "v") {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	v := "v" + s
	if !semver.IsValid(v) || semver.Prerelease(v) != "" || semver.Build(v) != "" {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	return Version{raw: s, canon: semver.Canonical(v)}, nil
}

// MustParseVersion is like ParseVersion but panics on malformed input.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsZero reports whether v is unset.
func (v Version) IsZero() bool { return v.canon == "" }

// String returns the version as it was written.
func (v Version) String() string { return v.raw }

// Compare returns -1, 0 or +1 as v is lower, equal or higher than w.
func (v Version) Compare(w Version) int {
	return semver.Compare(v.canon, w.canon)
}

// Less reports whether v < w.
func (v Version) Less(w Version) bool { return v.Compare(w) < 0 }
