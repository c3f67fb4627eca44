package report

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/kvesta/vigil/config"
	"github.com/kvesta/vigil/pkg/catalog"
	"github.com/kvesta/vigil/pkg/engine"
	"github.com/kvesta/vigil/pkg/target"
	"github.com/kvesta/vigil/pkg/verdict"
)

// Result is the verdict of one CVE on one target with the evidence
// gathered for it.
type Result struct {
	Entry   *catalog.Entry
	Target  target.Target
	Outcome *engine.Outcome
	Facts   map[string]string
}

// ResolveVerdicts prints every verdict with its rationale followed by a
// summary table.
func ResolveVerdicts(ctx context.Context, w io.Writer, results []*Result) error {
	vulnerable, safe, undetermined := 0, 0, 0

	for _, r := range results {
		switch r.Outcome.Verdict {
		case verdict.Vulnerable:
			vulnerable += 1
		case verdict.NotVulnerable:
			safe += 1
		default:
			undetermined += 1
		}

		resolveVerdict(w, r)
	}

	fmt.Fprintf(w, "\nValidated %s vulnerabilities | "+
		"Vulnerable: %s Not Vulnerable: %s Not Determined: %s\n\n",
		config.Yellow(len(results)),
		config.Red(vulnerable),
		config.Green(safe),
		config.Yellow(undetermined))

	if len(results) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "CVE", "Name", "Target", "Verdict", "Detail"})
	table.SetRowLine(true)
	table.SetAutoWrapText(false)

	for i, r := range results {
		table.Append([]string{
			strconv.Itoa(i + 1), r.Entry.ID, r.Entry.Name, r.Target.String(),
			judgeVerdict(r.Outcome.Verdict), detail(r.Outcome),
		})
	}

	table.Render()

	return nil
}

func resolveVerdict(w io.Writer, r *Result) {
	out := r.Outcome

	fmt.Fprintf(w, "\n%s - %s on %s\n", r.Entry.ID, r.Entry.Name, r.Target)
	for _, line := range out.Rationale {
		fmt.Fprintf(w, "  %s\n", line)
	}

	if len(out.Processes) > 0 {
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"PID", "Runtime", "Module", "Library", "Verdict", "Detail"})
		table.SetAutoWrapText(false)

		for _, p := range out.Processes {
			table.Append([]string{
				strconv.Itoa(int(p.Info.PID)), p.Info.Runtime, p.Info.Module, p.Info.Library,
				judgeVerdict(p.Verdict), detail(&p.Outcome),
			})
		}
		table.Render()
	}

	switch out.Verdict {
	case verdict.Vulnerable:
		fmt.Fprintf(w, "%s is %s to %s\n", r.Target, config.Red("vulnerable"), r.Entry.ID)
		if r.Entry.Remediation != "" {
			fmt.Fprintf(w, "Remediation: %s\n", r.Entry.Remediation)
		}
		if r.Entry.Mitigation != "" {
			fmt.Fprintf(w, "Mitigation: %s\n", r.Entry.Mitigation)
		}

	case verdict.NotVulnerable:
		fmt.Fprintf(w, "%s is %s to %s\n", r.Target, config.Green("not vulnerable"), r.Entry.ID)

	default:
		fmt.Fprintf(w, "%s\n", config.Yellow(fmt.Sprintf("Could not determine the vulnerability status of %s on %s", r.Entry.ID, r.Target)))
	}
}

func detail(out *engine.Outcome) string {
	switch {
	case out.Verdict == verdict.NotDetermined && out.Undetermined != "":
		return "unanswered: " + out.Undetermined
	case len(out.Processes) > 0:
		counts := map[verdict.Verdict]int{}
		for _, p := range out.Processes {
			counts[p.Verdict] += 1
		}
		return fmt.Sprintf("%d process(es), %d vulnerable, %d not determined",
			len(out.Processes), counts[verdict.Vulnerable], counts[verdict.NotDetermined])
	case len(out.Path) > 0:
		last := out.Path[len(out.Path)-1]
		return fmt.Sprintf("%s %s", last.From, strings.ToLower(last.Label))
	case len(out.Rationale) > 0:
		return out.Rationale[len(out.Rationale)-1]
	}
	return ""
}

func judgeVerdict(v verdict.Verdict) string {
	switch v {
	case verdict.Vulnerable:
		return config.Red(v.String())
	case verdict.NotVulnerable:
		return config.Green(v.String())
	default:
		return config.Yellow(v.String())
	}
}
