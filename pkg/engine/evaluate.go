package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kvesta/vigil/pkg/probe"
	"github.com/kvesta/vigil/pkg/verdict"
)

// Outcome is the result of one walk. Undetermined names the question
// that could not be answered when the verdict is NotDetermined.
type Outcome struct {
	Verdict      verdict.Verdict  `json:"verdict"`
	Rationale    []string         `json:"rationale"`
	Path         []Edge           `json:"path"`
	Undetermined string           `json:"undetermined,omitempty"`
	Processes    []ProcessOutcome `json:"processes,omitempty"`
}

type ProcessOutcome struct {
	Outcome
	Info probe.ProcessInfo `json:"info"`
}

type trace struct {
	mu      sync.Mutex
	outcome *Outcome
}

func (t *trace) explain(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outcome.Rationale = append(t.outcome.Rationale, fmt.Sprintf(format, args...))
}

func (t *trace) step(from Node, label string, to Node) {
	t.explain("%s %s", from.name(), label)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.outcome.Path = append(t.outcome.Path, edge(from, label, to))
}

func (t *trace) undetermined(n Node) verdict.Verdict {
	t.explain("%s could not be determined", n.name())

	t.mu.Lock()
	defer t.mu.Unlock()
	t.outcome.Undetermined = n.name()
	return verdict.NotDetermined
}

type options struct {
	workers int
}

type Option func(*options)

// WithWorkers bounds how many processes are evaluated at once.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// Evaluate walks the tree from root against the target of c. It always
// produces exactly one verdict; an Unsupported answer stops the walk at
// NotDetermined.
func Evaluate(ctx context.Context, root Node, c *probe.Collector, opts ...Option) *Outcome {
	o := options{workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&o)
	}

	e := &evaluator{opts: o}
	out := &Outcome{}
	out.Verdict = e.walk(ctx, root, &Scope{Collector: c, trace: &trace{outcome: out}})

	return out
}

type evaluator struct {
	opts options
}

func (e *evaluator) walk(ctx context.Context, n Node, s *Scope) verdict.Verdict {
	for {
		switch node := n.(type) {
		case *Leaf:
			if node.Reason != "" {
				s.Explain("%s", node.Reason)
			}
			return node.Verdict

		case *Gate:
			r := node.Check(ctx, s)
			log.Debugf("%s: %s", node.Question, r)

			switch r {
			case verdict.True:
				s.trace.step(node, Yes, node.Yes)
				n = node.Yes
			case verdict.False:
				s.trace.step(node, No, node.No)
				n = node.No
			default:
				return s.trace.undetermined(node)
			}

		case *EachProcess:
			pids, r := s.Processes(ctx, node.Process)
			if r != verdict.True {
				return s.trace.undetermined(node)
			}

			if len(pids) == 0 {
				s.trace.step(node, No, node.None)
				n = node.None
				continue
			}

			s.trace.step(node, Yes, node.Each)
			s.Explain("%d %s process(es) found", len(pids), node.Process)

			return e.fanOut(ctx, node, pids, s)

		default:
			log.Errorf("unknown node %T", n)
			return verdict.NotDetermined
		}
	}
}

// fanOut evaluates Each once per pid. Results are stored by index so the
// order of completion does not matter.
func (e *evaluator) fanOut(ctx context.Context, node *EachProcess, pids []int32, s *Scope) verdict.Verdict {
	outcomes := make([]ProcessOutcome, len(pids))

	g := errgroup.Group{}
	g.SetLimit(e.opts.workers)

	for i, pid := range pids {
		i, pid := i, pid
		g.Go(func() error {
			out := &outcomes[i].Outcome
			ps := &Scope{Collector: s.Collector, PID: pid, trace: &trace{outcome: out}}
			out.Verdict = e.walk(ctx, node.Each, ps)
			return nil
		})
	}
	_ = g.Wait()

	verdicts := make([]verdict.Verdict, len(outcomes))
	for i := range outcomes {
		outcomes[i].Info, _ = s.Evidence().Process(pids[i])
		verdicts[i] = outcomes[i].Verdict
	}

	s.trace.mu.Lock()
	s.trace.outcome.Processes = outcomes
	s.trace.mu.Unlock()

	return verdict.Aggregate(verdicts...)
}
