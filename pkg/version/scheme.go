package version

import (
	"strings"

	version2 "github.com/hashicorp/go-version"
	rpmversion "github.com/knqyf263/go-rpm-version"
	"github.com/pkg/errors"
)

// Scheme selects the ordering rules used for a table of versions.
type Scheme string

const (
	// Numeric is the strict dotted-integer grammar of Parse.
	Numeric Scheme = "numeric"
	// RPM orders distro package strings like "3.10.0-327.36.3.el7"
	// or "3.16.36-1+deb8u2" with rpmvercmp segment rules.
	RPM Scheme = "rpm"
	// Semver is used for upstream product releases.
	Semver Scheme = "semver"
)

// ErrUnknownScheme is a catalog error, never a probe error.
var ErrUnknownScheme = errors.New("unknown version scheme")

func ParseScheme(s string) (Scheme, error) {
	switch sc := Scheme(strings.ToLower(strings.TrimSpace(s))); sc {
	case "":
		return Numeric, nil
	case Numeric, RPM, Semver:
		return sc, nil
	default:
		return "", errors.Wrapf(ErrUnknownScheme, "%q", s)
	}
}

// Compare orders a and b under the scheme and returns -1, 0 or 1.
func (sc Scheme) Compare(a, b string) (int, error) {
	switch sc {
	case RPM:
		if !hasDigit(a) || !hasDigit(b) {
			return 0, errors.Wrapf(ErrMalformed, "rpm versions %q and %q", a, b)
		}
		k1 := rpmversion.NewVersion(strings.TrimSpace(a))
		k2 := rpmversion.NewVersion(strings.TrimSpace(b))
		return k1.Compare(k2), nil

	case Semver:
		k1, err := version2.NewVersion(strings.TrimSpace(a))
		if err != nil {
			return 0, errors.Wrapf(ErrMalformed, "%q: %v", a, err)
		}
		k2, err := version2.NewVersion(strings.TrimSpace(b))
		if err != nil {
			return 0, errors.Wrapf(ErrMalformed, "%q: %v", b, err)
		}
		return k1.Compare(k2), nil

	case Numeric, "":
		k1, err := Parse(a)
		if err != nil {
			return 0, err
		}
		k2, err := Parse(b)
		if err != nil {
			return 0, err
		}
		return Compare(k1, k2), nil

	default:
		return 0, errors.Wrapf(ErrUnknownScheme, "%q", string(sc))
	}
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}
