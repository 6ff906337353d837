package engine

import (
	"testing"

	"github.com/go-attractor/attractor/internal/attractor/model"
	"github.com/go-attractor/attractor/internal/attractor/runtime"
)

func TestCheckGoalGate_NonGatedNodeNeverBlocks(t *testing.T) {
	g := model.NewGraph("G")
	n := model.NewNode("run")
	g.AddNode(n)

	result := CheckGoalGate(g, n, runtime.Error("", "boom"), NewRetryState())
	if result.Blocked {
		t.Fatalf("non-gated node should never block")
	}
}

func TestCheckGoalGate_OKOutcomeNeverBlocks(t *testing.T) {
	g := model.NewGraph("G")
	n := model.NewNode("run")
	n.Attrs["goal_gate"] = "true"
	g.AddNode(n)

	result := CheckGoalGate(g, n, runtime.Success(""), NewRetryState())
	if result.Blocked {
		t.Fatalf("an ok outcome should never block a goal-gated node")
	}
}

func TestCheckGoalGate_BlocksAndRedirectsToRetryTarget(t *testing.T) {
	g := model.NewGraph("G")
	n := model.NewNode("run")
	n.Attrs["goal_gate"] = "true"
	n.Attrs["retry_target"] = "fix"
	g.AddNode(n)
	g.AddNode(model.NewNode("fix"))

	retries := NewRetryState()
	result := CheckGoalGate(g, n, runtime.Error("", "boom"), retries)
	if !result.Blocked || result.RetryTarget != "fix" {
		t.Fatalf("got %+v, want blocked with retry target fix", result)
	}
	if retries.Count("run") != 1 {
		t.Fatalf("retry count = %d, want 1 after the gate fires", retries.Count("run"))
	}
}

func TestCheckGoalGate_ExhaustedBudgetBlocksWithoutTarget(t *testing.T) {
	g := model.NewGraph("G")
	n := model.NewNode("run")
	n.Attrs["goal_gate"] = "true"
	n.Attrs["retry_target"] = "fix"
	n.Attrs["max_retries"] = "1"
	g.AddNode(n)
	g.AddNode(model.NewNode("fix"))

	retries := NewRetryState()
	first := CheckGoalGate(g, n, runtime.Error("", "boom"), retries)
	if !first.Blocked || first.RetryTarget != "fix" {
		t.Fatalf("first attempt should redirect to fix, got %+v", first)
	}

	second := CheckGoalGate(g, n, runtime.Error("", "boom again"), retries)
	if !second.Blocked || second.RetryTarget != "" {
		t.Fatalf("second attempt should block with an exhausted budget, got %+v", second)
	}
}
