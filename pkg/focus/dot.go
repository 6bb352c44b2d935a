package focus

import (
	"fmt"
	"io"
	"strings"
)

const (
	colorHighlight = "#dc2626"
	colorDimmed    = "#d1d5db"
	colorAnomalous = "#f97316"
)

func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s) + `"`
}

func visualAttrs(v Visual) []string {
	attrs := []string{}
	switch {
	case v.Has(Highlighted):
		attrs = append(attrs, "color="+quote(colorHighlight), "fontcolor="+quote(colorHighlight), "penwidth=2.5")
	case v.Has(Dimmed):
		attrs = append(attrs, "color="+quote(colorDimmed), "fontcolor="+quote(colorDimmed))
	}
	if v.Has(Pulse) {
		attrs = append(attrs, "peripheries=2", "style=bold")
	}
	return attrs
}

func (n Node) toDot(w io.Writer, v Visual) error {
	attrs := append([]string{"label=" + quote(n.Label)}, visualAttrs(v)...)
	_, err := fmt.Fprintf(w, "\t%s [%s];\n", quote(n.Id), strings.Join(attrs, " "))
	return err
}

func (e Edge) toDot(w io.Writer, v Visual) error {
	label := e.Label
	attrs := []string{}
	if e.Anomalous() {
		label = fmt.Sprintf("%s (score %.2f)", label, e.Score)
		if !v.Has(Highlighted) && !v.Has(Dimmed) {
			attrs = append(attrs, "color="+quote(colorAnomalous), "style=dashed")
		}
	}
	attrs = append([]string{"label=" + quote(strings.TrimSpace(label))}, attrs...)
	attrs = append(attrs, visualAttrs(v)...)

	_, err := fmt.Fprintf(
		w, "\t%s -> %s [%s];\n",
		quote(e.Source), quote(e.Target), strings.Join(attrs, " "),
	)
	return err
}

// GenerateDot writes the graph in Graphviz DOT, with visual state of a.
func (g *Graph) GenerateDot(w io.Writer, a Annotations) error {
	if _, err := io.WriteString(w, `digraph G {
	node [shape=ellipse fontsize=10]
	edge [fontsize=10]

`); err != nil {
		return err
	}

	for _, n := range g.nodes {
		if err := n.toDot(w, a.Nodes[n.Id]); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	for _, e := range g.edges {
		if err := e.toDot(w, a.Edges[e.Id]); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, "}\n")
	return err
}
