package engine

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kvesta/vigil/pkg/probe"
	"github.com/kvesta/vigil/pkg/verdict"
)

const (
	Yes = "Yes"
	No  = "No"
)

// ErrInvalidTree is returned by Validate.
var ErrInvalidTree = errors.New("invalid decision tree")

// Node is one of *Leaf, *Gate or *EachProcess.
type Node interface {
	name() string
}

// Leaf ends a walk. Reason, when set, is added to the rationale.
type Leaf struct {
	Verdict verdict.Verdict
	Reason  string
}

// Check answers a gate question from the evidence in scope.
type Check func(ctx context.Context, s *Scope) verdict.Result

type Gate struct {
	Question string
	Check    Check
	Yes      Node
	No       Node
}

// EachProcess lists the processes named Process. With none running the
// walk continues at None, otherwise Each is evaluated once per pid.
type EachProcess struct {
	Question string
	Process  string
	Each     Node
	None     Node
}

func (l *Leaf) name() string        { return l.Verdict.String() }
func (g *Gate) name() string        { return g.Question }
func (e *EachProcess) name() string { return e.Question }

// Name is the label of a node: its question, or its verdict for leaves.
func Name(n Node) string {
	return n.name()
}

func Vulnerable(reason string) *Leaf {
	return &Leaf{Verdict: verdict.Vulnerable, Reason: reason}
}

func NotVulnerable(reason string) *Leaf {
	return &Leaf{Verdict: verdict.NotVulnerable, Reason: reason}
}

// Edge is one Yes/No transition of a tree.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
	Sink  bool   `json:"-"`
}

func edge(from Node, label string, to Node) Edge {
	_, sink := to.(*Leaf)
	return Edge{From: from.name(), To: to.name(), Label: label, Sink: sink}
}

// Edges lists every transition of the tree once, depth first, Yes
// before No.
func Edges(root Node) []Edge {
	var edges []Edge

	var walk func(n Node)
	walk = func(n Node) {
		switch node := n.(type) {
		case *Gate:
			edges = append(edges, edge(node, Yes, node.Yes), edge(node, No, node.No))
			walk(node.Yes)
			walk(node.No)
		case *EachProcess:
			edges = append(edges, edge(node, Yes, node.Each), edge(node, No, node.None))
			walk(node.Each)
			walk(node.None)
		}
	}
	walk(root)

	return edges
}

// Validate rejects trees the engine cannot evaluate or draw faithfully.
func Validate(root Node) error {
	seen := map[string]bool{}

	var check func(n Node, fanOut bool) error
	check = func(n Node, fanOut bool) error {
		switch node := n.(type) {
		case nil:
			return errors.Wrap(ErrInvalidTree, "missing node")

		case *Leaf:
			if node == nil {
				return errors.Wrap(ErrInvalidTree, "missing leaf")
			}
			if node.Verdict != verdict.Vulnerable && node.Verdict != verdict.NotVulnerable {
				return errors.Wrapf(ErrInvalidTree, "leaf with verdict %s", node.Verdict)
			}
			return nil

		case *Gate:
			if node == nil || node.Question == "" || node.Check == nil {
				return errors.Wrap(ErrInvalidTree, "gate needs a question and a check")
			}
			if seen[node.Question] {
				return errors.Wrapf(ErrInvalidTree, "question %q asked twice", node.Question)
			}
			seen[node.Question] = true

			if err := check(node.Yes, fanOut); err != nil {
				return errors.WithMessagef(err, "%q yes", node.Question)
			}
			if err := check(node.No, fanOut); err != nil {
				return errors.WithMessagef(err, "%q no", node.Question)
			}
			return nil

		case *EachProcess:
			if node == nil || node.Question == "" || node.Process == "" {
				return errors.Wrap(ErrInvalidTree, "fan-out needs a question and a process name")
			}
			if fanOut {
				return errors.Wrapf(ErrInvalidTree, "nested fan-out %q", node.Question)
			}
			if seen[node.Question] {
				return errors.Wrapf(ErrInvalidTree, "question %q asked twice", node.Question)
			}
			seen[node.Question] = true

			leaf, ok := node.None.(*Leaf)
			if !ok || leaf.Verdict != verdict.NotVulnerable {
				return errors.Wrapf(ErrInvalidTree, "%q must end at Not Vulnerable without processes", node.Question)
			}

			return check(node.Each, true)

		default:
			return errors.Wrapf(ErrInvalidTree, "unknown node %T", n)
		}
	}

	return check(root, false)
}

// Scope is what a check sees: the collector of the target and, inside a
// fan-out, the pid under evaluation.
type Scope struct {
	*probe.Collector
	PID int32

	trace *trace
}

// Explain adds a line to the rationale of the current walk.
func (s *Scope) Explain(format string, args ...interface{}) {
	s.trace.explain(format, args...)
}
