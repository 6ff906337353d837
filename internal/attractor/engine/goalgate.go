package engine

import (
	"github.com/go-attractor/attractor/internal/attractor/model"
	"github.com/go-attractor/attractor/internal/attractor/runtime"
)

// RetryState counts how many times each goal-gated node has been retried
// within a single run, so the budget in MaxRetries / default_max_retry is
// enforced across repeated visits rather than per-step.
type RetryState struct {
	counts map[string]int
}

// NewRetryState returns an empty RetryState.
func NewRetryState() *RetryState {
	return &RetryState{counts: make(map[string]int)}
}

// Count returns how many times nodeID has already been retried.
func (s *RetryState) Count(nodeID string) int {
	return s.counts[nodeID]
}

func (s *RetryState) increment(nodeID string) {
	s.counts[nodeID]++
}

// GoalGateResult describes what a goal-gate check decided.
type GoalGateResult struct {
	// Blocked is true when the node is goal-gated, its outcome was not ok,
	// and the gate fired (either redirecting to a retry target or, if the
	// retry budget is exhausted, blocking without one).
	Blocked bool
	// RetryTarget is the node id to hop to instead of following the normal
	// edge selector. Empty when Blocked is true but the retry budget is
	// exhausted.
	RetryTarget string
	// RetryTargetSource names which attribute supplied RetryTarget, for
	// diagnostics (see model.ResolveRetryTargetWithSource).
	RetryTargetSource string
}

// CheckGoalGate reports whether node's goal gate should intercept normal
// edge selection. A goal gate only fires when the node is marked
// goal_gate=true and its last outcome was not ok; an ok outcome, or a
// non-gated node, never blocks.
func CheckGoalGate(g *model.Graph, node *model.Node, outcome runtime.NodeOutcome, retries *RetryState) GoalGateResult {
	if node == nil || !node.GoalGate() || outcome.Status.IsOK() {
		return GoalGateResult{}
	}

	budget := node.MaxRetries()
	if budget <= 0 {
		budget = g.DefaultMaxRetry()
	}
	if retries.Count(node.ID) >= budget {
		return GoalGateResult{Blocked: true}
	}

	target, source := model.ResolveRetryTargetWithSource(g, node.ID)
	if target == "" {
		return GoalGateResult{Blocked: true}
	}

	retries.increment(node.ID)
	return GoalGateResult{Blocked: true, RetryTarget: target, RetryTargetSource: source}
}
