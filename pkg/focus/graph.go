package focus

import (
	"fmt"

	"github.com/poec-forensics/console/pkg/api/types/analysis"
)

// AnomalyThreshold is the detection score above which an edge is anomalous.
const AnomalyThreshold = 0.6

type Node struct {
	Id    string
	Label string
}

type Edge struct {
	Id     string
	Source string
	Target string
	Label  string

	Score  float64
	Amount float64
	Types  []string
	Dates  []string
}

// Anomalous tells the detection score of the edge is above AnomalyThreshold.
func (e Edge) Anomalous() bool {
	return AnomalyThreshold < e.Score
}

// Graph is the rendered transaction graph.
//
// It is immutable once built. Visual state lives in Annotations, not here.
type Graph struct {
	nodes     []Node
	nodeIndex map[string]int
	edges     []Edge
	edgeIndex map[string]int

	// node id -> indices of incident edges
	incident map[string][]int
}

// NewGraph builds a graph. Duplicated ids are merged into the first one.
//
// Edges between unknown nodes are kept, and their endpoints are added as nodes
// labeled with their ids, like diagramming libraries do.
func NewGraph(nodes []Node, edges []Edge) *Graph {
	g := &Graph{
		nodes:     []Node{},
		nodeIndex: map[string]int{},
		edges:     []Edge{},
		edgeIndex: map[string]int{},
		incident:  map[string][]int{},
	}
	for _, n := range nodes {
		g.addNode(n)
	}
	for _, e := range edges {
		if e.Id == "" {
			e.Id = fmt.Sprintf("%s-%s", e.Source, e.Target)
		}
		if _, ok := g.edgeIndex[e.Id]; ok {
			continue
		}
		g.addNode(Node{Id: e.Source, Label: e.Source})
		g.addNode(Node{Id: e.Target, Label: e.Target})

		idx := len(g.edges)
		g.edges = append(g.edges, e)
		g.edgeIndex[e.Id] = idx
		g.incident[e.Source] = append(g.incident[e.Source], idx)
		if e.Target != e.Source {
			g.incident[e.Target] = append(g.incident[e.Target], idx)
		}
	}
	return g
}

func (g *Graph) addNode(n Node) {
	if _, ok := g.nodeIndex[n.Id]; ok {
		return
	}
	g.nodeIndex[n.Id] = len(g.nodes)
	g.nodes = append(g.nodes, n)
}

// FromElements builds a graph from the graph payload of analysis.
func FromElements(elements []analysis.Element) *Graph {
	nodes := []Node{}
	edges := []Edge{}
	for _, el := range elements {
		d := el.Data
		if d.IsEdge() {
			edges = append(edges, Edge{
				Id: d.Id, Source: d.Source, Target: d.Target, Label: d.Label,
				Score: d.GnnScore, Amount: d.Amount, Types: d.Types, Dates: d.Dates,
			})
			continue
		}
		if d.Id == "" {
			continue
		}
		label := d.Label
		if label == "" {
			label = d.Id
		}
		nodes = append(nodes, Node{Id: d.Id, Label: label})
	}
	return NewGraph(nodes, edges)
}

func (g *Graph) Nodes() []Node {
	return g.nodes
}

func (g *Graph) Edges() []Edge {
	return g.edges
}

func (g *Graph) Node(id string) (Node, bool) {
	idx, ok := g.nodeIndex[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[idx], true
}

func (g *Graph) Edge(id string) (Edge, bool) {
	idx, ok := g.edgeIndex[id]
	if !ok {
		return Edge{}, false
	}
	return g.edges[idx], true
}

// Resolve finds a node for an entity identifier.
//
// Exact id match comes first. Otherwise, the first node labeled entity is taken.
func (g *Graph) Resolve(entity string) (Node, bool) {
	if n, ok := g.Node(entity); ok {
		return n, true
	}
	for _, n := range g.nodes {
		if n.Label == entity {
			return n, true
		}
	}
	return Node{}, false
}

// Neighborhood returns adjacent node ids and incident edge ids of the node.
func (g *Graph) Neighborhood(nodeId string) (nodes []string, edges []string) {
	seen := map[string]struct{}{nodeId: {}}
	for _, idx := range g.incident[nodeId] {
		e := g.edges[idx]
		edges = append(edges, e.Id)
		for _, other := range []string{e.Source, e.Target} {
			if _, ok := seen[other]; ok {
				continue
			}
			seen[other] = struct{}{}
			nodes = append(nodes, other)
		}
	}
	return nodes, edges
}
