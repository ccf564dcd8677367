// Package version implements the three-digit applet version scheme. Each
// component is a single decimal digit; bumping carries from patch into minor
// and from minor into major, so version strings order lexically.
package version

import (
	"errors"
	"fmt"
	"strings"
)

// Initial is the version assigned to a newly created applet.
const Initial = "1.0.0"

var (
	// ErrInvalid reports a malformed version string.
	ErrInvalid = errors.New("invalid version")
	// ErrOverflow reports a bump past 9.9.9.
	ErrOverflow = errors.New("version overflow")
)

// Bump selects which component a version increment targets.
type Bump string

// Bump policies. BumpNone leaves the version unchanged.
const (
	BumpNone  Bump = "none"
	BumpPatch Bump = "patch"
	BumpMinor Bump = "minor"
	BumpMajor Bump = "major"
)

// ParseBump maps a policy name to a Bump. The empty string selects patch.
func ParseBump(s string) (Bump, error) {
	switch b := Bump(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BumpPatch, nil
	case BumpNone, BumpPatch, BumpMinor, BumpMajor:
		return b, nil
	default:
		return "", fmt.Errorf("unknown bump policy %q", s)
	}
}

// Version is a parsed a.b.c version.
type Version struct {
	Major, Minor, Patch int
}

// Parse reads "a.b.c" where each component is a single digit.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	var digits [3]int
	for i, p := range parts {
		if len(p) != 1 || p[0] < '0' || p[0] > '9' {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		digits[i] = int(p[0] - '0')
	}
	return Version{Major: digits[0], Minor: digits[1], Patch: digits[2]}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 as v is lower than, equal to, or higher than o.
func (v Version) Compare(o Version) int {
	switch {
	case v.ordinal() < o.ordinal():
		return -1
	case v.ordinal() > o.ordinal():
		return 1
	}
	return 0
}

func (v Version) ordinal() int { return v.Major*100 + v.Minor*10 + v.Patch }

// Next returns the version after v under bump. Patch bumps carry into minor
// and major; minor bumps reset patch; major bumps reset minor and patch.
func (v Version) Next(bump Bump) (Version, error) {
	n := v
	switch bump {
	case BumpNone:
		return v, nil
	case BumpPatch, "":
		n.Patch++
	case BumpMinor:
		n.Minor++
		n.Patch = 0
	case BumpMajor:
		n.Major++
		n.Minor, n.Patch = 0, 0
	default:
		return Version{}, fmt.Errorf("unknown bump policy %q", bump)
	}
	if n.Patch == 10 {
		n.Patch = 0
		n.Minor++
	}
	if n.Minor == 10 {
		n.Minor = 0
		n.Major++
	}
	if n.Major == 10 {
		return Version{}, fmt.Errorf("%w: %s bump of %s", ErrOverflow, bump, v)
	}
	return n, nil
}

// Next parses previous and returns the next version string under bump.
func Next(previous string, bump Bump) (string, error) {
	v, err := Parse(previous)
	if err != nil {
		return "", err
	}
	n, err := v.Next(bump)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}

// Less reports whether a orders before b. Unparseable versions order last.
func Less(a, b string) bool {
	va, errA := Parse(a)
	vb, errB := Parse(b)
	switch {
	case errA != nil && errB != nil:
		return a < b
	case errA != nil:
		return false
	case errB != nil:
		return true
	}
	return va.Compare(vb) < 0
}
