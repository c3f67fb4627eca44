package cves

import (
	"context"
	"strings"

	"github.com/kvesta/vigil/pkg/catalog"
	"github.com/kvesta/vigil/pkg/engine"
	"github.com/kvesta/vigil/pkg/verdict"
	"github.com/kvesta/vigil/pkg/version"
)

func isLinux(yes engine.Node) *engine.Gate {
	return &engine.Gate{
		Question: "Is it Linux?",
		Check: func(ctx context.Context, s *engine.Scope) verdict.Result {
			return s.IsLinux(ctx)
		},
		Yes: yes,
		No:  engine.NotVulnerable("The vulnerability only affects Linux"),
	}
}

func javaProcesses(rt *catalog.Runtime, each engine.Node) *engine.EachProcess {
	return &engine.EachProcess{
		Question: "Are there running Java processes?",
		Process:  rt.Process,
		Each:     each,
		None:     engine.NotVulnerable("No running " + rt.Process + " process"),
	}
}

// javaVersionAffected compares the JDK of the process with the first
// affected major release.
func javaVersionAffected(min int, yes engine.Node) *engine.Gate {
	return &engine.Gate{
		Question: "Is java version affected?",
		Check: func(ctx context.Context, s *engine.Scope) verdict.Result {
			v, r := s.RuntimeVersion(ctx, s.PID)
			if r != verdict.True {
				s.Explain("Unsupported VM.version value for process %d", s.PID)
				return verdict.Unsupported
			}

			affected := version.AtLeastMajor(v, min)
			switch affected {
			case verdict.True:
				s.Explain("The minimum affected java version is: %d, the process`s java version which is: %s, is affected", min, v)
			case verdict.False:
				s.Explain("The minimum affected java version is: %d, the process`s java version which is: %s, is not affected", min, v)
			}

			return affected
		},
		Yes: yes,
		No:  engine.NotVulnerable(""),
	}
}

func usesClasses(question string, classes []catalog.Class, yes engine.Node) *engine.Gate {
	return &engine.Gate{
		Question: question,
		Check: func(ctx context.Context, s *engine.Scope) verdict.Result {
			label, r := s.LoadedModules(ctx, s.PID, classes)
			if r == verdict.True {
				s.Explain("The %d process uses the %s dependency", s.PID, label)
			}
			return r
		},
		Yes: yes,
		No:  engine.NotVulnerable(""),
	}
}

func labels(classes []catalog.Class) string {
	var ls []string
	seen := map[string]bool{}
	for _, c := range classes {
		if !seen[c.Label] {
			seen[c.Label] = true
			ls = append(ls, c.Label)
		}
	}
	return strings.Join(ls, " or ")
}
