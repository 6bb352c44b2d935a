package focus

import (
	"slices"
	"strings"
)

// Visual is a set of visual states of a graph element.
type Visual uint8

const (
	Highlighted Visual = 1 << iota
	Dimmed
	Pulse
)

func (v Visual) Has(f Visual) bool {
	return v&f == f
}

func (v Visual) String() string {
	names := []string{}
	for _, f := range []struct {
		v    Visual
		name string
	}{
		{Highlighted, "highlighted"},
		{Dimmed, "dimmed"},
		{Pulse, "focus-pulse"},
	} {
		if v.Has(f.v) {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}

// Annotations are visual states over a graph.
//
// Elements not in the maps have no visual state.
type Annotations struct {
	Nodes map[string]Visual
	Edges map[string]Visual

	// Entities of the focused anomaly resolved to nodes, as (entity -> node id).
	Resolved map[string]string

	// Entities of the focused anomaly which are not in the graph.
	Unresolved []string
}

func emptyAnnotations() Annotations {
	return Annotations{
		Nodes:    map[string]Visual{},
		Edges:    map[string]Visual{},
		Resolved: map[string]string{},
	}
}

// Empty tells no element has visual state.
func (a Annotations) Empty() bool {
	return len(a.Nodes) == 0 && len(a.Edges) == 0
}

// Highlighted returns ids of highlighted nodes and edges, in the order of the graph.
func (a Annotations) Highlighted(g *Graph) (nodes []string, edges []string) {
	for _, n := range g.Nodes() {
		if a.Nodes[n.Id].Has(Highlighted) {
			nodes = append(nodes, n.Id)
		}
	}
	for _, e := range g.Edges() {
		if a.Edges[e.Id].Has(Highlighted) {
			edges = append(edges, e.Id)
		}
	}
	return nodes, edges
}

func (a Annotations) Equal(o Annotations) bool {
	eqmap := func(x, y map[string]Visual) bool {
		if len(x) != len(y) {
			return false
		}
		for k, v := range x {
			if w, ok := y[k]; !ok || v != w {
				return false
			}
		}
		return true
	}
	if len(a.Resolved) != len(o.Resolved) {
		return false
	}
	for k, v := range a.Resolved {
		if o.Resolved[k] != v {
			return false
		}
	}
	return eqmap(a.Nodes, o.Nodes) && eqmap(a.Edges, o.Edges) &&
		slices.Equal(a.Unresolved, o.Unresolved)
}

func dimAll(g *Graph, a Annotations) {
	for _, n := range g.Nodes() {
		a.Nodes[n.Id] = Dimmed
	}
	for _, e := range g.Edges() {
		a.Edges[e.Id] = Dimmed
	}
}

// Annotate computes visual states of g for the selection.
//
// It always starts from a blank state, so nothing of previous selections remains.
//
//   - Cleared: no visual state.
//   - ByAnomaly: everything is dimmed, then nodes resolved from the entities are
//     highlighted and pulsing, and edges whose both endpoints are resolved are highlighted.
//     Edges are matched on resolved node ids, not on the entities as given,
//     so an entity resolved by its label brings its edges too.
//   - ByNode: everything is dimmed, then the node, its adjacent nodes and incident edges are highlighted.
//   - ByEdge: everything is dimmed, then the edge and its endpoints are highlighted.
//
// Selections of elements not in g yield no visual state.
func Annotate(g *Graph, s Selection) Annotations {
	a := emptyAnnotations()
	if g == nil {
		return a
	}

	switch s.Trigger {
	case ByAnomaly:
		entities := s.Entities()
		if len(entities) == 0 {
			return a
		}
		dimAll(g, a)

		members := map[string]struct{}{}
		for _, entity := range entities {
			n, ok := g.Resolve(entity)
			if !ok {
				a.Unresolved = append(a.Unresolved, entity)
				continue
			}
			a.Resolved[entity] = n.Id
			a.Nodes[n.Id] = Highlighted | Pulse
			members[n.Id] = struct{}{}
		}
		for _, e := range g.Edges() {
			_, src := members[e.Source]
			_, dst := members[e.Target]
			if src && dst {
				a.Edges[e.Id] = Highlighted
			}
		}
	case ByNode:
		if _, ok := g.Node(s.ElementId); !ok {
			return a
		}
		dimAll(g, a)
		a.Nodes[s.ElementId] = Highlighted
		nodes, edges := g.Neighborhood(s.ElementId)
		for _, n := range nodes {
			a.Nodes[n] = Highlighted
		}
		for _, e := range edges {
			a.Edges[e] = Highlighted
		}
	case ByEdge:
		e, ok := g.Edge(s.ElementId)
		if !ok {
			return a
		}
		dimAll(g, a)
		a.Edges[e.Id] = Highlighted
		a.Nodes[e.Source] = Highlighted
		a.Nodes[e.Target] = Highlighted
	}
	return a
}
