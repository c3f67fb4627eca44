package internal

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kvesta/vigil/config"
	"github.com/kvesta/vigil/internal/cves"
	"github.com/kvesta/vigil/internal/report"
	"github.com/kvesta/vigil/pkg/catalog"
	"github.com/kvesta/vigil/pkg/engine"
	"github.com/kvesta/vigil/pkg/probe"
	"github.com/kvesta/vigil/pkg/target"
	"github.com/kvesta/vigil/pkg/verdict"
)

const reachability = "Is the target reachable?"

// DoValidate validates the CVEs named by ids, or all of them, against
// the target selected in the options of ctx. Only configuration errors
// are returned, every other failure ends up as Not Determined.
func DoValidate(ctx context.Context, ids []string) error {
	opts := config.OptionsFrom(ctx)

	cat, err := catalog.Load()
	if err != nil {
		return err
	}

	modules, err := cves.Load(cat, ids)
	if err != nil {
		return err
	}

	if opts.Describe {
		for _, m := range modules {
			fmt.Printf("\n%s", m.Entry.Describe())
		}
	}

	t, err := selectTarget(opts)
	if err != nil {
		return err
	}

	log.Printf(config.Green(fmt.Sprintf("Start validating %d CVE(s) on %s", len(modules), t)))

	var results []*report.Result
	runner, err := target.NewRunner(ctx, t, target.Options{Timeout: opts.Timeout, Kubeconfig: opts.Kubeconfig})
	if err != nil {
		log.Printf("Cannot reach %s, error: %v", t, err)
		results = unreachable(modules, t, err)
	} else {
		results = Validate(ctx, modules, runner, opts.Workers)
	}

	if opts.Graph {
		for _, m := range modules {
			if _, err := DrawGraph(m, opts.GraphDir); err != nil {
				log.Printf("Graph error %v", err)
			}
		}
	}

	err = report.ResolveVerdicts(ctx, os.Stdout, results)
	if err != nil {
		log.Printf("Report error %v", err)
	}

	err = report.VerdictsToJson(ctx, results)
	if err != nil {
		log.Printf("Saving error %v", err)
	}

	return nil
}

// Validate runs every module against one target. The target is pinged
// once; when it cannot be reached no gate runs at all.
func Validate(ctx context.Context, modules []*cves.Module, runner target.Runner, workers int) []*report.Result {
	c := probe.NewCollector(runner)

	if err := c.Reachable(ctx); err != nil {
		log.Printf("Cannot reach %s, error: %v", runner.Target(), err)
		return unreachable(modules, runner.Target(), err)
	}

	results := make([]*report.Result, 0, len(modules))
	for _, m := range modules {
		log.Debugf("validating %s", m.Entry.ID)

		out := m.Evaluate(ctx, c, engine.WithWorkers(workers))
		results = append(results, &report.Result{
			Entry:   m.Entry,
			Target:  runner.Target(),
			Outcome: out,
			Facts:   c.Evidence().Facts(),
		})
	}

	return results
}

func unreachable(modules []*cves.Module, t target.Target, err error) []*report.Result {
	reason := err.Error()
	if !errors.Is(err, target.ErrUnreachable) {
		reason = errors.Wrap(target.ErrUnreachable, reason).Error()
	}

	results := make([]*report.Result, 0, len(modules))
	for _, m := range modules {
		results = append(results, &report.Result{
			Entry:  m.Entry,
			Target: t,
			Outcome: &engine.Outcome{
				Verdict:      verdict.NotDetermined,
				Rationale:    []string{reason},
				Undetermined: reachability,
			},
		})
	}

	return results
}
