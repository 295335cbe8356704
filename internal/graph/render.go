package graph

import (
	"github.com/emicklei/dot"

	"github.com/descry-io/descry/internal/ir"
)

// Format selects the rendered graph dialect.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for markdown rendering.
	FormatMermaid Format = "mermaid"
)

// Render draws the dependency graph of a descriptor. Pipe DOT output to
// `dot -Tpng` for an image; Mermaid renders directly on GitHub.
func Render(d *ir.Descriptor, format Format) (string, error) {
	dag, err := Build(d.Resources)
	if err != nil {
		return "", err
	}

	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", "BT")
	g.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
	})

	for _, res := range d.Resources {
		n := g.Node(res.Addr())
		if res.Provider == "cloudflare" {
			n.Attr("style", "dashed")
		}
	}

	for _, res := range d.Resources {
		from := g.Node(res.Addr())
		for _, dep := range dag.Dependencies(res.Addr()) {
			g.Edge(from, g.Node(dep))
		}
	}

	if format == FormatMermaid {
		return dot.MermaidGraph(g, dot.MermaidBottomToTop), nil
	}
	return g.String(), nil
}
