package engine

import (
	"context"
	"fmt"

	"github.com/go-attractor/attractor/internal/attractor/model"
	"github.com/go-attractor/attractor/internal/attractor/runtime"
)

// payload is what flows along a compiled edge: a context snapshot, the
// outcome of whichever node produced it, and the completed-node sequence
// accumulated so far along this causal path. completedNodes travels with
// the payload rather than living in run-wide state because concurrent
// branches each have their own causal history until one of them wins the
// race at exit (spec.md §4.5's GraphPayload.completed_nodes).
type payload struct {
	ctx            *runtime.Context
	outcome        runtime.NodeOutcome
	completedNodes []string
}

// dataflowRun holds the channels wiring every compiled node together for
// one execution of runDataflow.
type dataflowRun struct {
	topology *Topology
	registry *HandlerRegistry
	env      *Env
	inbound  map[string]chan payload
	result   chan *RunResult
}

// runDataflow executes the graph with no execution log: every node runs
// as soon as its input arrives, nodes with more than one producer handle
// every producer's payload in arrival order, and the first
// payload to reach an exit node wins the race — slower, still in-flight
// branches are abandoned rather than awaited. This is what lets a graph
// contain cycles: a node can be re-entered for as long as upstream
// branches keep feeding it, with no need for fixed-point quiescence.
func runDataflow(ctx context.Context, g *model.Graph, env *Env, runID string) (*RunResult, error) {
	starts := g.StartNodeIDs()
	if len(starts) != 1 {
		return nil, fmt.Errorf("dataflow: graph must have exactly one start node")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	dr := &dataflowRun{
		topology: Compile(g),
		registry: NewDefaultRegistry(),
		env:      env,
		inbound:  make(map[string]chan payload),
		result:   make(chan *RunResult, 1),
	}

	for id := range g.Nodes {
		buf := dr.topology.MergeInputs[id]
		if buf < 1 {
			buf = 1
		}
		dr.inbound[id] = make(chan payload, buf)
	}

	for id, n := range g.Nodes {
		go dr.runNode(runCtx, cancel, id, n)
	}

	initCtx := runtime.NewContext()
	initCtx.Set("goal", g.Goal())
	initCtx.Set("graph.goal", g.Goal())
	dr.inbound[starts[0]] <- payload{ctx: initCtx}

	select {
	case res := <-dr.result:
		res.RunID = runID
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runNode is the goroutine body for a single compiled node. It blocks on
// its inbound channel (or, for a merge target, on however many producer
// sends land there — the channel already aggregates every producer since
// all edges into a node share one inbound channel), executes the node's
// handler on arrival, and forwards the result along the edge the
// selector chooses.
func (dr *dataflowRun) runNode(ctx context.Context, cancel context.CancelFunc, id string, node *model.Node) {
	in := dr.inbound[id]
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-in:
			if !ok {
				return
			}
			dr.handleArrival(ctx, cancel, id, node, p)
		}
	}
}

func (dr *dataflowRun) handleArrival(ctx context.Context, cancel context.CancelFunc, id string, node *model.Node, p payload) {
	runCtx := p.ctx
	if runCtx == nil {
		runCtx = runtime.NewContext()
	}

	handler := dr.registry.Resolve(node)
	outcome, err := handler.Execute(ctx, dr.env, node, p.outcome)
	if err != nil {
		outcome = runtime.Error("", err.Error())
	}
	outcome, canonErr := outcome.Canonicalize()
	if canonErr != nil {
		outcome = runtime.Error("", canonErr.Error())
	}

	runCtx = runCtx.WithUpdates(map[string]string{"outcome": string(outcome.Status)})
	if outcome.PreferredLabel != "" {
		runCtx = runCtx.WithUpdates(map[string]string{"preferred_label": outcome.PreferredLabel})
	}
	runCtx = runCtx.WithUpdates(outcome.ContextUpdates)

	completed := append(append([]string(nil), p.completedNodes...), id)

	if node.IsExit() {
		status := runtime.FinalError
		if outcome.Status.IsOK() {
			status = runtime.FinalSuccess
		}
		select {
		case dr.result <- &RunResult{FinalStatus: status, Context: runCtx.Snapshot(), CompletedNodes: completed}:
			cancel()
		default:
		}
		return
	}

	next, ok := SelectNext(dr.topology.Graph, node, runCtx, outcome)
	if !ok {
		select {
		case dr.result <- &RunResult{FinalStatus: runtime.FinalError, Context: runCtx.Snapshot(), CompletedNodes: completed}:
			cancel()
		default:
		}
		return
	}

	out := dr.inbound[next]
	if out == nil {
		return
	}
	select {
	case out <- payload{ctx: runCtx, outcome: outcome, completedNodes: completed}:
	case <-ctx.Done():
	}
}
