package version

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformed is returned for version strings that do not follow
// the [epoch:]upstream[-revision] numeric grammar.
var ErrMalformed = errors.New("malformed version")

// Spec is a parsed numeric version such as "5.10.140-1" or "1:2.3".
// Missing trailing components compare as zero, an absent epoch is zero.
type Spec struct {
	Raw      string
	Epoch    int
	Upstream []int
	Revision []int
}

func (s Spec) String() string {
	return s.Raw
}

// Parse builds a Spec. Empty strings and non-numeric components are
// rejected so that garbage never compares equal to a real version.
func Parse(v string) (Spec, error) {
	raw := strings.TrimSpace(v)
	if raw == "" {
		return Spec{}, errors.Wrap(ErrMalformed, "empty version")
	}

	spec := Spec{Raw: raw}
	rest := raw

	if index := strings.Index(rest, ":"); index > -1 {
		epoch, err := number(rest[:index])
		if err != nil {
			return Spec{}, errors.Wrapf(ErrMalformed, "epoch of %q", raw)
		}
		spec.Epoch = epoch
		rest = rest[index+1:]
	}

	upstream, revision := rest, ""
	hasRevision := false
	if index := strings.Index(rest, "-"); index > -1 {
		upstream, revision = rest[:index], rest[index+1:]
		hasRevision = true
	}

	var err error
	spec.Upstream, err = components(upstream)
	if err != nil {
		return Spec{}, errors.Wrapf(err, "upstream of %q", raw)
	}

	if hasRevision {
		spec.Revision, err = components(revision)
		if err != nil {
			return Spec{}, errors.Wrapf(err, "revision of %q", raw)
		}
	}

	return spec, nil
}

// MustParse is for package level tables and tests.
func MustParse(v string) Spec {
	s, err := Parse(v)
	if err != nil {
		panic(err)
	}
	return s
}

// Compare returns -1, 0 or 1.
func Compare(a, b Spec) int {
	if a.Epoch != b.Epoch {
		return sign(a.Epoch - b.Epoch)
	}

	if c := compareComponents(a.Upstream, b.Upstream); c != 0 {
		return c
	}

	return compareComponents(a.Revision, b.Revision)
}

func Less(a, b Spec) bool {
	return Compare(a, b) < 0
}

func Equal(a, b Spec) bool {
	return Compare(a, b) == 0
}

func compareComponents(a, b []int) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}

	for i := 0; i < n; i++ {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			return sign(x - y)
		}
	}

	return 0
}

func components(s string) ([]int, error) {
	if s == "" {
		return nil, ErrMalformed
	}

	fields := strings.Split(s, ".")
	parts := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := number(f)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformed, "component %q", f)
		}
		parts = append(parts, n)
	}

	return parts, nil
}

func number(s string) (int, error) {
	if s == "" {
		return 0, ErrMalformed
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrMalformed
		}
	}

	return strconv.Atoi(s)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
