package version

import (
	"strings"

	"github.com/kvesta/vigil/pkg/verdict"
)

// PatchTable maps a distribution identifier such as "Debian 11"
// to the first release that carries the fix.
type PatchTable struct {
	Scheme  Scheme
	Entries map[string]string
}

func (pt PatchTable) Lookup(key string) (string, bool) {
	v, ok := pt.Entries[key]
	return v, ok
}

// Keys is used for remediation text; the order is not significant.
func (pt PatchTable) Keys() []string {
	keys := make([]string, 0, len(pt.Entries))
	for k := range pt.Entries {
		keys = append(keys, k)
	}
	return keys
}

// IsPatched answers whether candidate is at or above the fixed release
// for key. Unknown keys and unparsable versions are Unsupported.
func IsPatched(candidate string, table PatchTable, key string) verdict.Result {
	fixed, ok := table.Lookup(key)
	if !ok {
		return verdict.Unsupported
	}

	c, err := table.Scheme.Compare(candidate, fixed)
	if err != nil {
		return verdict.Unsupported
	}

	return verdict.FromBool(c >= 0)
}

// IsPatchedSeries checks a candidate against one fixed release per
// maintenance branch, the branch being the first two components.
// A candidate on a branch newer than every listed fix is patched, one on
// an older unlisted branch is not.
func IsPatchedSeries(candidate string, patched []string, scheme Scheme) verdict.Result {
	if len(patched) == 0 {
		return verdict.Unsupported
	}

	newest := true
	for _, p := range patched {
		c, err := scheme.Compare(candidate, p)
		if err != nil {
			return verdict.Unsupported
		}

		if branch(candidate) == branch(p) {
			return verdict.FromBool(c >= 0)
		}

		if c < 0 {
			newest = false
		}
	}

	return verdict.FromBool(newest)
}

// InRange reports min <= candidate < fixed. An empty min means no lower bound.
func InRange(candidate, min, fixed string, scheme Scheme) verdict.Result {
	if min != "" {
		c, err := scheme.Compare(candidate, min)
		if err != nil {
			return verdict.Unsupported
		}
		if c < 0 {
			return verdict.False
		}
	}

	c, err := scheme.Compare(candidate, fixed)
	if err != nil {
		return verdict.Unsupported
	}

	return verdict.FromBool(c < 0)
}

// AtLeastMajor compares the major number of a runtime version with min.
// Legacy "1.x" java versions are read as major x.
func AtLeastMajor(candidate string, min int) verdict.Result {
	major, ok := majorOf(candidate)
	if !ok {
		return verdict.Unsupported
	}

	return verdict.FromBool(major >= min)
}

func majorOf(v string) (int, bool) {
	fields := strings.FieldsFunc(strings.TrimSpace(v), func(r rune) bool {
		return r == '.' || r == '_' || r == '+' || r == '-'
	})
	if len(fields) == 0 {
		return 0, false
	}

	major, err := number(fields[0])
	if err != nil {
		return 0, false
	}

	if major == 1 && len(fields) > 1 {
		if legacy, err := number(fields[1]); err == nil {
			return legacy, true
		}
	}

	return major, true
}

func branch(v string) string {
	parts := strings.SplitN(strings.TrimSpace(v), ".", 3)
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, ".")
}
