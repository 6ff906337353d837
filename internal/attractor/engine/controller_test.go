package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-attractor/attractor/internal/attractor/dot"
	"github.com/go-attractor/attractor/internal/attractor/runtime"
)

func TestRun_Stepwise_IdentityStartToExit(t *testing.T) {
	src := `digraph G {
		start [shape=Mdiamond]
		exit  [shape=Msquare]
		start -> exit
	}`
	g, err := dot.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	dir := t.TempDir()
	cfg := &RunConfig{
		StageDir:     filepath.Join(dir, "stages"),
		ExecutionLog: filepath.Join(dir, "execution_log.json"),
	}

	res, err := Run(context.Background(), RunOptions{Graph: g, Config: cfg})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FinalStatus != runtime.FinalSuccess {
		t.Fatalf("FinalStatus = %q, want success", res.FinalStatus)
	}
	if len(res.Log.Steps) != 2 {
		t.Fatalf("expected 2 steps (start, exit), got %d", len(res.Log.Steps))
	}
}

func TestRun_Stepwise_ExecSuccessRoutesToExit(t *testing.T) {
	src := `digraph G {
		start [shape=Mdiamond]
		run   [type=exec, command="true"]
		exit  [shape=Msquare]
		start -> run
		run -> exit [condition="outcome=success"]
	}`
	g, err := dot.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	dir := t.TempDir()
	cfg := &RunConfig{
		StageDir:     filepath.Join(dir, "stages"),
		ExecutionLog: filepath.Join(dir, "execution_log.json"),
	}

	res, err := Run(context.Background(), RunOptions{Graph: g, Config: cfg})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FinalStatus != runtime.FinalSuccess {
		t.Fatalf("FinalStatus = %q, want success", res.FinalStatus)
	}
}

// TestRun_Stepwise_ExecFailureRoutesToFixThenExit is spec.md §8 scenario 4:
// start -> fail(exec "false") -> fix(exec "true") [condition="outcome=fail"]
// -> exit. Expected: terminal success, completed_nodes contains both fail
// and fix.
func TestRun_Stepwise_ExecFailureRoutesToFixThenExit(t *testing.T) {
	src := `digraph G {
		start [shape=Mdiamond]
		fail  [type=exec, command="false"]
		fix   [type=exec, command="true"]
		exit  [shape=Msquare]
		start -> fail
		fail -> exit [condition="outcome=success"]
		fail -> fix  [condition="outcome=fail"]
		fix -> exit
	}`
	g, err := dot.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	dir := t.TempDir()
	cfg := &RunConfig{
		StageDir:     filepath.Join(dir, "stages"),
		ExecutionLog: filepath.Join(dir, "execution_log.json"),
	}

	res, err := Run(context.Background(), RunOptions{Graph: g, Config: cfg})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FinalStatus != runtime.FinalSuccess {
		t.Fatalf("FinalStatus = %q, want success once fix recovers", res.FinalStatus)
	}
	var sawFail, sawFix bool
	for _, step := range res.Log.Steps {
		if step.NodeID == "fail" {
			sawFail = true
			if step.Outcome.Status != runtime.StatusError {
				t.Fatalf("fail step outcome = %q, want error (command `false`)", step.Outcome.Status)
			}
		}
		if step.NodeID == "fix" {
			sawFix = true
		}
	}
	if !sawFail || !sawFix {
		t.Fatalf("expected both fail and fix nodes in the log, steps=%+v", res.Log.Steps)
	}
	if !containsString(res.CompletedNodes, "fail") || !containsString(res.CompletedNodes, "fix") {
		t.Fatalf("CompletedNodes = %v, want it to contain both fail and fix", res.CompletedNodes)
	}
}

// TestRun_Stepwise_ExecFailureRoutedToExitIsTerminalError is spec.md §8
// scenario 3: start -> fail(exec "false") -> exit [condition="outcome=fail"].
// Expected: terminal error, completed_nodes contains fail. The exit node is
// an IdentityNode and must forward fail's error outcome rather than
// reporting success merely because exit was reached.
func TestRun_Stepwise_ExecFailureRoutedToExitIsTerminalError(t *testing.T) {
	src := `digraph G {
		start [shape=Mdiamond]
		fail  [type=exec, command="false"]
		exit  [shape=Msquare]
		start -> fail
		fail -> exit [condition="outcome=fail"]
	}`
	g, err := dot.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	dir := t.TempDir()
	cfg := &RunConfig{
		StageDir:     filepath.Join(dir, "stages"),
		ExecutionLog: filepath.Join(dir, "execution_log.json"),
	}

	res, err := Run(context.Background(), RunOptions{Graph: g, Config: cfg})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FinalStatus != runtime.FinalError {
		t.Fatalf("FinalStatus = %q, want error (exit must forward fail's error outcome)", res.FinalStatus)
	}
	if !containsString(res.CompletedNodes, "fail") {
		t.Fatalf("CompletedNodes = %v, want it to contain fail", res.CompletedNodes)
	}
}

func TestRun_Stepwise_ResumeContinuesFromPartialLog(t *testing.T) {
	src := `digraph G {
		start [shape=Mdiamond]
		run   [type=exec, command="true"]
		exit  [shape=Msquare]
		start -> run -> exit
	}`
	g, err := dot.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	dir := t.TempDir()
	logPath := filepath.Join(dir, "execution_log.json")
	cfg := &RunConfig{StageDir: filepath.Join(dir, "stages"), ExecutionLog: logPath}

	first := runtime.NewExecutionLog(g.Goal(), "2026-07-30T00:00:00Z")
	first.Steps = append(first.Steps, runtime.ExecutionStepEntry{
		Step:                0,
		NodeID:              "start",
		ContextBefore:       map[string]string{},
		Outcome:             runtime.Success("start"),
		ContextAfter:        map[string]string{"outcome": "success"},
		NextNodeID:          "run",
		CompletedNodesAfter: []string{"start"},
	})
	first.CompletedNodes = []string{"start"}
	if err := first.SavePartial(logPath); err != nil {
		t.Fatalf("seed partial log: %v", err)
	}

	res, err := Run(context.Background(), RunOptions{Graph: g, Config: cfg, Resume: true})
	if err != nil {
		t.Fatalf("Run (resume): %v", err)
	}
	if res.FinalStatus != runtime.FinalSuccess {
		t.Fatalf("FinalStatus = %q, want success", res.FinalStatus)
	}
	if res.AlreadyComplete {
		t.Fatalf("a resumed in_progress run should not be reported already complete")
	}
	// The resumed run must not redo the "start" step; its steps continue
	// from where the partial log left off.
	if len(res.Log.Steps) != 3 {
		t.Fatalf("expected 3 total steps (start, run, exit), got %d", len(res.Log.Steps))
	}
}

func TestRun_Stepwise_GoalGateRedirectsThenExhaustsBudget(t *testing.T) {
	src := `digraph G {
		start [shape=Mdiamond]
		check [type=exec, command="false", goal_gate=true, retry_target=fix, max_retries=1]
		fix   [shape=box]
		exit  [shape=Msquare]
		start -> check
		check -> exit
		fix -> check
	}`
	g, err := dot.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	dir := t.TempDir()
	cfg := &RunConfig{
		StageDir:     filepath.Join(dir, "stages"),
		ExecutionLog: filepath.Join(dir, "execution_log.json"),
	}

	res, err := Run(context.Background(), RunOptions{Graph: g, Config: cfg})
	if err == nil {
		t.Fatalf("expected the exhausted goal gate to surface as a run result, err was nil")
	}
	if res == nil {
		t.Fatalf("expected a non-nil result alongside the exhausted-budget error")
	}
	if res.FinalStatus != runtime.FinalError {
		t.Fatalf("FinalStatus = %q, want error once the goal gate's retry budget is exhausted", res.FinalStatus)
	}

	var fixVisits int
	for _, step := range res.Log.Steps {
		if step.NodeID == "fix" {
			fixVisits++
		}
	}
	if fixVisits != 1 {
		t.Fatalf("expected exactly 1 redirect through fix before the retry budget is exhausted, got %d", fixVisits)
	}
}

func TestRun_Stepwise_ResumeAlreadyCompletedShortCircuits(t *testing.T) {
	src := `digraph G {
		start [shape=Mdiamond]
		exit  [shape=Msquare]
		start -> exit
	}`
	g, err := dot.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	dir := t.TempDir()
	logPath := filepath.Join(dir, "execution_log.json")
	cfg := &RunConfig{StageDir: filepath.Join(dir, "stages"), ExecutionLog: logPath}

	done := runtime.NewExecutionLog(g.Goal(), "2026-07-30T00:00:00Z")
	if err := done.Finalize(logPath, "2026-07-30T00:01:00Z", runtime.FinalSuccess); err != nil {
		t.Fatalf("seed final log: %v", err)
	}

	res, err := Run(context.Background(), RunOptions{Graph: g, Config: cfg, Resume: true})
	if err != nil {
		t.Fatalf("Run (resume): %v", err)
	}
	if !res.AlreadyComplete {
		t.Fatalf("expected AlreadyComplete for a resume of a finalized log")
	}
}
