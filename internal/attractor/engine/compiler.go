package engine

import (
	"github.com/go-attractor/attractor/internal/attractor/model"
)

// Topology is the compiled form of a graph: which nodes are plain
// handler nodes and which target nodes need a synthetic merge point
// because more than one producer edge feeds them.
type Topology struct {
	Graph *model.Graph
	// MergeInputs maps a node id to the number of distinct producer edges
	// that feed it, for every node fed by more than one edge. A node
	// absent from this map has at most one producer and needs no merge.
	MergeInputs map[string]int
}

// Compile inspects every node's incoming edge count and records which
// nodes need a merge point, per the fan-in rule: N>1 producers targeting
// the same node get a synthetic merge inserted ahead of it so the node
// itself still only ever sees one logical input stream.
func Compile(g *model.Graph) *Topology {
	t := &Topology{Graph: g, MergeInputs: make(map[string]int)}
	counts := make(map[string]int)
	for _, e := range g.Edges {
		counts[e.To]++
	}
	for id, n := range counts {
		if n > 1 {
			t.MergeInputs[id] = n
		}
	}
	return t
}

// IsMergeTarget reports whether nodeID needs a merge point ahead of it.
func (t *Topology) IsMergeTarget(nodeID string) bool {
	_, ok := t.MergeInputs[nodeID]
	return ok
}
