package verdict

import "testing"

func TestAggregate(t *testing.T) {
	tests := []struct {
		name string
		args []Verdict
		want Verdict
	}{
		{
			name: "empty",
			args: nil,
			want: NotVulnerable,
		},
		{
			name: "vulnerableDominates",
			args: []Verdict{Vulnerable, NotDetermined},
			want: Vulnerable,
		},
		{
			name: "vulnerableDominatesReversed",
			args: []Verdict{NotDetermined, NotVulnerable, Vulnerable},
			want: Vulnerable,
		},
		{
			name: "notDetermined",
			args: []Verdict{NotDetermined, NotVulnerable},
			want: NotDetermined,
		},
		{
			name: "notVulnerable",
			args: []Verdict{NotVulnerable, NotVulnerable},
			want: NotVulnerable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Aggregate(tt.args...); got != tt.want {
				t.Errorf("Aggregate() got = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResultNot(t *testing.T) {
	if True.Not() != False || False.Not() != True {
		t.Errorf("Not() must swap definite answers")
	}

	if Unsupported.Not() != Unsupported {
		t.Errorf("Not() must keep Unsupported")
	}
}

func TestResultZero(t *testing.T) {
	var r Result
	if r != Unsupported {
		t.Errorf("zero Result = %v, want Unsupported", r)
	}

	if FromBool(false) != False || FromBool(true) != True {
		t.Errorf("FromBool() must give definite answers")
	}
}
