// Package engine compiles a parsed workflow graph into executable node
// variants and drives them to completion: either one node at a time with
// a durable execution log (stepwise mode), or concurrently over the full
// graph's data dependencies (dataflow mode).
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/go-attractor/attractor/internal/attractor/model"
	"github.com/go-attractor/attractor/internal/attractor/procutil"
	"github.com/go-attractor/attractor/internal/attractor/runtime"
	"github.com/go-attractor/attractor/internal/attractor/validate"
)

// maxSteps bounds the stepwise loop against a misconfigured graph whose
// edge selector never reaches an exit node (e.g. a goal gate with an
// unbounded retry budget looping against a node that keeps failing).
const maxSteps = 1000

// RunOptions configures a single invocation of Run.
type RunOptions struct {
	Graph  *model.Graph
	Config *RunConfig
	// RunID identifies the run on disk. If empty, a new ulid is minted.
	RunID string
	// Resume continues a previous run from its execution log at
	// Config.ExecutionLog instead of starting fresh.
	Resume bool
}

// RunResult is returned once a run reaches a terminal state.
type RunResult struct {
	RunID           string
	FinalStatus     runtime.FinalStatus
	Log             *runtime.ExecutionLog
	Context         map[string]string
	CompletedNodes  []string
	AlreadyComplete bool
}

// Run validates the graph, then drives it to completion in stepwise mode
// when an execution log path is configured, or dataflow mode otherwise.
func Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if opts.Graph == nil {
		return nil, fmt.Errorf("run: graph is nil")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("run: config is nil")
	}
	if err := validate.ValidateOrError(opts.Graph); err != nil {
		return nil, err
	}

	runID := opts.RunID
	if runID == "" {
		runID = ulid.Make().String()
	}

	lockPath := NodeStageDir(opts.Config.StageDir, runID, ".lock")
	lock, err := procutil.AcquireRunLock(lockPath)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	env := &Env{
		AgentCmd: opts.Config.AgentCmd,
		StageDir: opts.Config.StageDir,
		RunID:    runID,
		Policy:   NewArtifactPolicy(opts.Config),
	}

	if opts.Config.ExecutionLog != "" {
		return runStepwise(ctx, opts.Graph, env, opts.Config, runID, opts.Resume)
	}
	return runDataflow(ctx, opts.Graph, env, runID)
}

// runStepwise executes one node at a time, persisting a partial execution
// log after every step and a final one once a terminal node is reached or
// the step budget is exhausted.
func runStepwise(ctx context.Context, g *model.Graph, env *Env, cfg *RunConfig, runID string, resume bool) (*RunResult, error) {
	registry := NewDefaultRegistry()
	runCtx := runtime.NewContext()
	retries := NewRetryState()
	nodeOutcomes := map[string]runtime.NodeOutcome{}

	var log *runtime.ExecutionLog
	var currentID string
	var lastOutcome runtime.NodeOutcome

	if resume {
		existing, err := runtime.LoadExecutionLog(cfg.ExecutionLog)
		if err != nil {
			return nil, fmt.Errorf("resume: %w", err)
		}
		if existing.FinalStatus != runtime.FinalInProgress {
			lastCtx := map[string]string{}
			if n := len(existing.Steps); n > 0 {
				lastCtx = existing.Steps[n-1].ContextAfter
			}
			return &RunResult{RunID: runID, FinalStatus: existing.FinalStatus, Log: existing, Context: lastCtx, CompletedNodes: existing.CompletedNodes, AlreadyComplete: true}, nil
		}
		log = existing
		runCtx, currentID = replayContext(g, existing)
		for _, step := range existing.Steps {
			nodeOutcomes[step.NodeID] = step.Outcome
			lastOutcome = step.Outcome
		}
	} else {
		starts := g.StartNodeIDs()
		currentID = starts[0]
		log = runtime.NewExecutionLog(g.Goal(), nowISO8601())
		runCtx.Set("goal", g.Goal())
		runCtx.Set("graph.goal", g.Goal())
	}

	step := len(log.Steps)
	for ; step < maxSteps; step++ {
		node := g.Nodes[currentID]
		if node == nil {
			return nil, fmt.Errorf("run: unknown node %q", currentID)
		}

		before := runCtx.Snapshot()
		handler := registry.Resolve(node)

		outcome, err := handler.Execute(ctx, env, node, lastOutcome)
		if err != nil {
			return nil, fmt.Errorf("run: node %q: %w", currentID, err)
		}
		outcome, err = outcome.Canonicalize()
		if err != nil {
			return nil, fmt.Errorf("run: node %q: %w", currentID, err)
		}

		runCtx.Set("outcome", string(outcome.Status))
		if outcome.PreferredLabel != "" {
			runCtx.Set("preferred_label", outcome.PreferredLabel)
		}
		for k, v := range outcome.ContextUpdates {
			runCtx.Set(k, v)
		}
		after := runCtx.Snapshot()
		nodeOutcomes[currentID] = outcome
		lastOutcome = outcome

		if !containsString(log.CompletedNodes, currentID) {
			log.CompletedNodes = append(log.CompletedNodes, currentID)
		}

		entry := runtime.ExecutionStepEntry{
			Step:                step,
			NodeID:              currentID,
			HandlerType:         ResolveHandlerType(node),
			ContextBefore:       before,
			Outcome:             outcome,
			ContextAfter:        after,
			CompletedNodesAfter: append([]string(nil), log.CompletedNodes...),
		}

		if node.IsExit() {
			gate := checkAllGoalGates(g, log.CompletedNodes, nodeOutcomes, retries)
			if gate.Blocked && gate.RetryTarget != "" {
				entry.NextNodeID = gate.RetryTarget
				log.Steps = append(log.Steps, entry)
				if err := log.SavePartial(cfg.ExecutionLog); err != nil {
					return nil, err
				}
				currentID = gate.RetryTarget
				continue
			}
			log.Steps = append(log.Steps, entry)
			status := runtime.FinalError
			if outcome.Status.IsOK() {
				status = runtime.FinalSuccess
			}
			if gate.Blocked {
				status = runtime.FinalError
			}
			if err := log.Finalize(cfg.ExecutionLog, nowISO8601(), status); err != nil {
				return nil, err
			}
			res := &RunResult{RunID: runID, FinalStatus: status, Log: log, Context: after, CompletedNodes: log.CompletedNodes}
			if gate.Blocked {
				return res, fmt.Errorf("run: goal gate blocked exit: retry budget exhausted or no retry target configured")
			}
			return res, nil
		}

		next, ok := SelectNext(g, node, runCtx, outcome)
		if !ok {
			entry.NextNodeID = ""
			log.Steps = append(log.Steps, entry)
			if err := log.Finalize(cfg.ExecutionLog, nowISO8601(), runtime.FinalError); err != nil {
				return nil, err
			}
			return &RunResult{RunID: runID, FinalStatus: runtime.FinalError, Log: log, Context: after, CompletedNodes: log.CompletedNodes}, fmt.Errorf("run: node %q has no outgoing edge to follow", currentID)
		}
		entry.NextNodeID = next
		log.Steps = append(log.Steps, entry)
		if err := log.SavePartial(cfg.ExecutionLog); err != nil {
			return nil, err
		}
		currentID = next
	}

	if err := log.Finalize(cfg.ExecutionLog, nowISO8601(), runtime.FinalError); err != nil {
		return nil, err
	}
	return &RunResult{RunID: runID, FinalStatus: runtime.FinalError, Log: log, Context: runCtx.Snapshot(), CompletedNodes: log.CompletedNodes}, fmt.Errorf("run: exceeded %d steps without reaching exit", maxSteps)
}

// checkAllGoalGates runs the goal gate check against every completed node
// that is marked goal_gate=true, using each node's own last recorded
// outcome (not whichever outcome happens to be the most recent in the run
// context). completed lists each node once, at its first completion, and
// is walked from the end, so the blocked gated node that first completed
// latest determines the retry hop; later re-visits do not reorder it.
func checkAllGoalGates(g *model.Graph, completed []string, nodeOutcomes map[string]runtime.NodeOutcome, retries *RetryState) GoalGateResult {
	for i := len(completed) - 1; i >= 0; i-- {
		node := g.Nodes[completed[i]]
		if node == nil || !node.GoalGate() {
			continue
		}
		outcome, ok := nodeOutcomes[completed[i]]
		if !ok {
			continue
		}
		result := CheckGoalGate(g, node, outcome, retries)
		if result.Blocked {
			return result
		}
	}
	return GoalGateResult{}
}

// replayContext reconstructs run context and current position from a
// partially written execution log, so a resumed run continues exactly
// where the last process left off.
func replayContext(g *model.Graph, log *runtime.ExecutionLog) (*runtime.Context, string) {
	ctx := runtime.NewContext()
	currentID := ""
	if len(g.StartNodeIDs()) > 0 {
		currentID = g.StartNodeIDs()[0]
	}
	for _, step := range log.Steps {
		for k, v := range step.ContextAfter {
			ctx.Set(k, v)
		}
		if step.NextNodeID != "" {
			currentID = step.NextNodeID
		}
	}
	return ctx, currentID
}

func containsString(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}

func nowISO8601() string {
	return time.Now().UTC().Format(time.RFC3339)
}
