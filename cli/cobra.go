package cli

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var cveID = regexp.MustCompile(`(?i)^CVE-\d{4}-\d{4,}$`)

// noArgs is cobra.NoArgs with a pointer to the command help.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return errors.Errorf("%v\nSee '%s --help' or run 'vigil list' for the known CVEs.", err, cmd.CommandPath())
	}
	return nil
}

// cveArgs accepts between min and max CVE ids, max < 0 means no limit.
func cveArgs(min, max int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < min || (max >= 0 && len(args) > max) {
			return errors.Errorf("%q expects %s, got %d.\nSee '%s --help'.\n\nUsage:  %s",
				cmd.CommandPath(), expected(min, max), len(args), cmd.CommandPath(), cmd.UseLine())
		}

		for _, arg := range args {
			if !cveID.MatchString(strings.TrimSpace(arg)) {
				return errors.Errorf("%q is not a CVE id such as CVE-2021-44228", arg)
			}
		}

		return nil
	}
}

func expected(min, max int) string {
	switch {
	case min == 1 && max == 1:
		return "one CVE id"
	case max < 0:
		return fmt.Sprintf("at least %d CVE ids", min)
	case min == max:
		return fmt.Sprintf("%d CVE ids", min)
	}
	return fmt.Sprintf("%d to %d CVE ids", min, max)
}
