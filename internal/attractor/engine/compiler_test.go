package engine

import (
	"testing"

	"github.com/go-attractor/attractor/internal/attractor/model"
)

func TestCompile_NodeWithSingleProducerIsNotAMergeTarget(t *testing.T) {
	g := model.NewGraph("G")
	for _, id := range []string{"a", "b"} {
		if err := g.AddNode(model.NewNode(id)); err != nil {
			t.Fatalf("AddNode(%s): %v", id, err)
		}
	}
	if err := g.AddEdge(model.NewEdge("a", "b")); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	topo := Compile(g)
	if topo.IsMergeTarget("b") {
		t.Fatalf("b has exactly one producer and must not be flagged as a merge target")
	}
	if _, ok := topo.MergeInputs["b"]; ok {
		t.Fatalf("MergeInputs should have no entry for a node with a single producer")
	}
}

func TestCompile_NodeWithNoProducersIsNotAMergeTarget(t *testing.T) {
	g := model.NewGraph("G")
	if err := g.AddNode(model.NewNode("isolated")); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	topo := Compile(g)
	if topo.IsMergeTarget("isolated") {
		t.Fatalf("a node with zero producers must not be flagged as a merge target")
	}
}

func TestCompile_ThreeProducersCountCorrectly(t *testing.T) {
	g := model.NewGraph("G")
	for _, id := range []string{"a", "b", "c", "sink"} {
		if err := g.AddNode(model.NewNode(id)); err != nil {
			t.Fatalf("AddNode(%s): %v", id, err)
		}
	}
	for _, from := range []string{"a", "b", "c"} {
		if err := g.AddEdge(model.NewEdge(from, "sink")); err != nil {
			t.Fatalf("AddEdge(%s->sink): %v", from, err)
		}
	}

	topo := Compile(g)
	if !topo.IsMergeTarget("sink") {
		t.Fatalf("sink has 3 producers and must be flagged as a merge target")
	}
	if topo.MergeInputs["sink"] != 3 {
		t.Fatalf("MergeInputs[sink] = %d, want 3", topo.MergeInputs["sink"])
	}
}
