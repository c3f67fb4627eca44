package verdict

// Result is the outcome of a single gate. Unsupported means the evidence
// could not be obtained and is never the same thing as False.
// The zero value is Unsupported.
type Result int8

const (
	Unsupported Result = iota
	False
	True
)

func (r Result) String() string {
	switch r {
	case True:
		return "Yes"
	case False:
		return "No"
	default:
		return "Unsupported"
	}
}

// FromBool lifts a definite answer into a Result.
func FromBool(b bool) Result {
	if b {
		return True
	}
	return False
}

// Not swaps True and False and leaves Unsupported alone.
func (r Result) Not() Result {
	switch r {
	case True:
		return False
	case False:
		return True
	default:
		return Unsupported
	}
}

// Verdict is the final answer for one CVE on one target.
// The values are ordered so that aggregation is a maximum.
type Verdict int8

const (
	NotVulnerable Verdict = iota
	NotDetermined
	Vulnerable
)

func (v Verdict) String() string {
	switch v {
	case Vulnerable:
		return "Vulnerable"
	case NotVulnerable:
		return "Not Vulnerable"
	default:
		return "Not Determined"
	}
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Aggregate folds per-process verdicts into the target verdict:
// Vulnerable dominates NotDetermined, which dominates NotVulnerable.
// An empty input is NotVulnerable.
func Aggregate(vs ...Verdict) Verdict {
	agg := NotVulnerable
	for _, v := range vs {
		if v > agg {
			agg = v
		}
	}

	return agg
}
