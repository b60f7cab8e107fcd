// Package versions implements the version ordering used to decide whether a
// component version falls inside a vulnerability's affected range. Two
// comparators are provided: an extended semantic-version order (optional
// numeric epoch prefix, short versions padded) and the RPM label order.
package versions

import (
	"errors"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrUnparseable is returned when a version string cannot be interpreted
// even after normalization.
var ErrUnparseable = errors.New("unparseable version")

// ExtendedVersion is a parsed semantic version with an optional epoch prefix.
type ExtendedVersion struct {
	Epoch int
	// canonical carries the "v"-prefixed form understood by x/mod/semver.
	canonical string
}

// ParseExtended parses a version of the form "[epoch:]semver". Versions with
// one or two components are right-padded with ".0"; a bare "0" becomes
// "0.0.0". A leading "v" or "V" is tolerated.
func ParseExtended(s string) (ExtendedVersion, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ExtendedVersion{}, ErrUnparseable
	}

	epoch := 0
	if idx := strings.Index(s, ":"); idx > 0 {
		parsed, err := strconv.Atoi(s[:idx])
		if err != nil || parsed < 0 {
			return ExtendedVersion{}, ErrUnparseable
		}
		epoch = parsed
		s = s[idx+1:]
	}

	if len(s) > 0 && (s[0] == 'v' || s[0] == 'V') {
		s = s[1:]
	}

	normalized := padCore(s)
	canonical := "v" + normalized
	if !semver.IsValid(canonical) {
		return ExtendedVersion{}, ErrUnparseable
	}
	return ExtendedVersion{Epoch: epoch, canonical: canonical}, nil
}

// padCore right-pads a 1- or 2-component core version with ".0" while leaving
// any pre-release or build suffix in place.
func padCore(s string) string {
	core := s
	suffix := ""
	if idx := strings.IndexAny(s, "-+"); idx >= 0 {
		core = s[:idx]
		suffix = s[idx:]
	}
	switch strings.Count(core, ".") {
	case 0:
		core += ".0.0"
	case 1:
		core += ".0"
	}
	return core + suffix
}

// Compare orders two extended versions: epoch first, then standard semantic
// version precedence.
func (v ExtendedVersion) Compare(other ExtendedVersion) int {
	if v.Epoch != other.Epoch {
		if v.Epoch < other.Epoch {
			return -1
		}
		return 1
	}
	return semver.Compare(v.canonical, other.canonical)
}

// String returns the canonical form without the "v" prefix.
func (v ExtendedVersion) String() string {
	if v.Epoch != 0 {
		return strconv.Itoa(v.Epoch) + ":" + strings.TrimPrefix(v.canonical, "v")
	}
	return strings.TrimPrefix(v.canonical, "v")
}

// CompareExtended compares two "[epoch:]semver" strings, returning -1, 0 or 1.
// It fails with ErrUnparseable if either side cannot be normalized into a
// valid semantic version.
func CompareExtended(a, b string) (int, error) {
	va, err := ParseExtended(a)
	if err != nil {
		return 0, err
	}
	vb, err := ParseExtended(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}
