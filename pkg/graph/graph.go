package graph

import (
	"os"
	"path/filepath"

	"github.com/emicklei/dot"
	"github.com/pkg/errors"

	"github.com/kvesta/vigil/pkg/engine"
	"github.com/kvesta/vigil/pkg/verdict"
)

// Build draws the tree the engine walks: one box per question, one node
// per verdict and one labelled edge per transition.
func Build(name string, root engine.Node) *dot.Graph {
	g := dot.NewGraph(dot.Directed)
	g.Attr("label", name)
	g.Attr("labelloc", "t")

	node := func(id string, sink bool) dot.Node {
		n := g.Node(id)
		if !sink {
			return n.Box()
		}

		color := "palegreen"
		if id == verdict.Vulnerable.String() {
			color = "salmon"
		}
		return n.Attr("shape", "ellipse").Attr("style", "filled").Attr("fillcolor", color)
	}

	_, sink := root.(*engine.Leaf)
	node(engine.Name(root), sink)

	for _, e := range engine.Edges(root) {
		g.Edge(node(e.From, false), node(e.To, e.Sink), e.Label)
	}

	return g
}

// WriteFile stores g as <id>.gv under dir and returns the file path.
func WriteFile(dir, id string, g *dot.Graph) (string, error) {
	if dir == "" {
		dir = "."
	}

	path := filepath.Join(dir, id+".gv")
	if err := os.WriteFile(path, []byte(g.String()), 0644); err != nil {
		return "", errors.Wrapf(err, "write graph %s", path)
	}

	return path, nil
}
