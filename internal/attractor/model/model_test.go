package model

import "testing"

func TestNode_IsStartIsExit(t *testing.T) {
	shapeStart := NewNode("a")
	shapeStart.Attrs["shape"] = "Mdiamond"
	if !shapeStart.IsStart() {
		t.Fatalf("expected Mdiamond shape node to be start")
	}

	idStart := NewNode("Start")
	if !idStart.IsStart() {
		t.Fatalf("expected id 'Start' (case-insensitive) to be start")
	}

	plain := NewNode("run")
	if plain.IsStart() || plain.IsExit() {
		t.Fatalf("plain node should be neither start nor exit")
	}
}

func TestGraph_StartAndExitNodeIDs(t *testing.T) {
	g := NewGraph("G")
	start := NewNode("start")
	start.Attrs["shape"] = "Mdiamond"
	exit := NewNode("exit")
	exit.Attrs["shape"] = "Msquare"
	mid := NewNode("mid")
	for _, n := range []*Node{start, exit, mid} {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}

	if ids := g.StartNodeIDs(); len(ids) != 1 || ids[0] != "start" {
		t.Fatalf("StartNodeIDs() = %v, want [start]", ids)
	}
	if ids := g.ExitNodeIDs(); len(ids) != 1 || ids[0] != "exit" {
		t.Fatalf("ExitNodeIDs() = %v, want [exit]", ids)
	}
}

func TestGraph_AddNodeRejectsDuplicates(t *testing.T) {
	g := NewGraph("G")
	if err := g.AddNode(NewNode("a")); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := g.AddNode(NewNode("a")); err == nil {
		t.Fatalf("expected duplicate node id error")
	}
}

func TestGraph_OutgoingIncoming(t *testing.T) {
	g := NewGraph("G")
	g.AddEdge(NewEdge("a", "b"))
	g.AddEdge(NewEdge("a", "c"))
	g.AddEdge(NewEdge("b", "c"))

	if out := g.Outgoing("a"); len(out) != 2 {
		t.Fatalf("Outgoing(a) = %d edges, want 2", len(out))
	}
	if in := g.Incoming("c"); len(in) != 2 {
		t.Fatalf("Incoming(c) = %d edges, want 2", len(in))
	}
}

func TestResolveRetryTargetWithSource_Precedence(t *testing.T) {
	g := NewGraph("G")
	g.Attrs["retry_target"] = "graph-target"
	g.Attrs["fallback_retry_target"] = "graph-fallback"

	gated := NewNode("gated")
	g.AddNode(gated)

	target, source := ResolveRetryTargetWithSource(g, "gated")
	if target != "graph-target" || source != "graph.retry_target" {
		t.Fatalf("got (%q, %q), want graph-level retry_target to win when node has none", target, source)
	}

	gated.Attrs["fallback_retry_target"] = "node-fallback"
	target, source = ResolveRetryTargetWithSource(g, "gated")
	if target != "node-fallback" || source != "node.fallback_retry_target" {
		t.Fatalf("got (%q, %q), want node.fallback_retry_target to win over graph attrs", target, source)
	}

	gated.Attrs["retry_target"] = "node-target"
	target, source = ResolveRetryTargetWithSource(g, "gated")
	if target != "node-target" || source != "node.retry_target" {
		t.Fatalf("got (%q, %q), want node.retry_target to win over everything else", target, source)
	}
}

func TestGraph_DefaultMaxRetry(t *testing.T) {
	g := NewGraph("G")
	if got := g.DefaultMaxRetry(); got != 50 {
		t.Fatalf("DefaultMaxRetry() = %d, want 50 when unset", got)
	}
	g.Attrs["default_max_retry"] = "7"
	if got := g.DefaultMaxRetry(); got != 7 {
		t.Fatalf("DefaultMaxRetry() = %d, want 7", got)
	}
}
