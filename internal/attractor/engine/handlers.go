package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-attractor/attractor/internal/attractor/model"
	"github.com/go-attractor/attractor/internal/attractor/runtime"
)

// Env carries everything a Handler needs beyond the node it is executing:
// the compiled options (agent command, stage directory) and a per-run
// identifier used to keep codergen stage subdirectories from colliding.
type Env struct {
	AgentCmd string
	StageDir string
	RunID    string
	Policy   *ArtifactPolicy
}

// Handler executes a single node synchronously and returns its outcome.
// Both the stepwise loop and every dataflow node task call through this
// same interface — the two run modes differ in how they drive it, not in
// what it does. prev is the outcome that produced the payload arriving at
// this node (the zero value at the start node, which has no upstream);
// IdentityHandler is the only handler that looks at it.
type Handler interface {
	Execute(ctx context.Context, env *Env, node *model.Node, prev runtime.NodeOutcome) (runtime.NodeOutcome, error)
}

// shapeToType is the closed shape -> handler-type lookup table. It is not
// an open registry: adding a new handler kind is a compiler-level change,
// not a runtime registration.
func shapeToType(shape string) string {
	switch strings.ToLower(strings.TrimSpace(shape)) {
	case "mdiamond":
		return "start"
	case "msquare":
		return "exit"
	case "box":
		return "codergen"
	case "hexagon":
		return "wait.human"
	case "diamond":
		return "conditional"
	case "component":
		return "parallel"
	case "tripleoctagon":
		return "parallel.fan_in"
	case "parallelogram":
		return "tool"
	case "house":
		return "stack.manager_loop"
	default:
		return "codergen"
	}
}

// ResolveHandlerType returns the descriptive handler type for a node: an
// explicit type= override always wins over shape resolution, and start/exit
// detection (by shape or by id) takes priority over both, since a node
// named "start" with no shape attribute is still a start node.
func ResolveHandlerType(n *model.Node) string {
	if n == nil {
		return "codergen"
	}
	if n.IsStart() {
		return "start"
	}
	if n.IsExit() {
		return "exit"
	}
	if t := strings.TrimSpace(n.TypeOverride()); t != "" {
		return t
	}
	return shapeToType(n.Shape())
}

// nodeVariantKind returns which of the three compiled node variants a node
// materializes as. Only start/exit (identity) and explicit type=exec are
// distinguished; every other handler type compiles to codergen.
func nodeVariantKind(n *model.Node) string {
	if n.IsStart() || n.IsExit() {
		return "identity"
	}
	if strings.TrimSpace(n.TypeOverride()) == "exec" {
		return "exec"
	}
	return "codergen"
}

// IdentityHandler backs start/exit nodes: it forwards whatever outcome
// produced the payload arriving at it unchanged. The start node has no
// upstream outcome to forward, so it reports success on its own behalf.
type IdentityHandler struct{}

func (h *IdentityHandler) Execute(ctx context.Context, env *Env, node *model.Node, prev runtime.NodeOutcome) (runtime.NodeOutcome, error) {
	if node != nil && node.IsStart() {
		return runtime.Success("start"), nil
	}
	return prev, nil
}

// ExecHandler backs nodes whose handler type is exec: it runs the node's
// command attribute through `sh -c`, with inherited stdio, and maps the
// process result to an outcome.
type ExecHandler struct{}

func (h *ExecHandler) Execute(ctx context.Context, env *Env, node *model.Node, prev runtime.NodeOutcome) (runtime.NodeOutcome, error) {
	command := strings.TrimSpace(node.Command())
	if command == "" {
		return runtime.Error("", "exec node has no command"), nil
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return runtime.Success("ok"), nil
	}

	var exitErr *exec.ExitError
	if !asExitError(err, &exitErr) {
		return runtime.Error("", fmt.Sprintf("exec: %v", err)), nil
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return runtime.Error("signal", fmt.Sprintf("signal: %v", ws.Signal())), nil
	}
	return runtime.Error(fmt.Sprintf("exit %d", exitErr.ExitCode()), fmt.Sprintf("exit %d", exitErr.ExitCode())), nil
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

// CodergenHandler backs every node that isn't start/exit/exec: it invokes
// the configured external agent binary with the node's prompt on stdin
// and reads back outcome.json from the node's stage subdirectory.
type CodergenHandler struct{}

func (h *CodergenHandler) Execute(ctx context.Context, env *Env, node *model.Node, prev runtime.NodeOutcome) (runtime.NodeOutcome, error) {
	agentCmd := strings.TrimSpace(env.AgentCmd)
	if agentCmd == "" {
		return runtime.Error("", "agent command not configured"), nil
	}
	argv := strings.Fields(agentCmd)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stdin bytes.Buffer
	stdin.WriteString(node.Prompt())
	stdin.WriteString("\n")
	cmd.Stdin = &stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	runErr := cmd.Run()

	stageDir := NodeStageDir(env.StageDir, env.RunID, node.ID)
	outcomePath := filepath.Join(stageDir, "outcome.json")
	if b, readErr := os.ReadFile(outcomePath); readErr == nil {
		if err := ValidateAgentOutcomeSchema(b); err != nil {
			return runtime.Error("", fmt.Sprintf("outcome.json failed schema validation: %v", err)), nil
		}
		doc, err := runtime.DecodeAgentOutcomeFile(b)
		if err != nil {
			return runtime.Error("", fmt.Sprintf("invalid outcome.json: %v", err)), nil
		}
		outcome := doc.ToNodeOutcome()
		if runErr != nil && outcome.Status != runtime.StatusError {
			// The agent did not report an error but its process exited
			// non-zero; the process exit code is authoritative.
			return runtime.Error("", fmt.Sprintf("agent exited non-zero: %v", runErr)), nil
		}
		if hash, hashErr := HashStageDir(stageDir, env.Policy); hashErr == nil {
			if outcome.ContextUpdates == nil {
				outcome.ContextUpdates = map[string]string{}
			}
			outcome.ContextUpdates[node.ID+".stage_hash"] = hash
		}
		return outcome, nil
	}

	if runErr != nil {
		return runtime.Error("", fmt.Sprintf("agent exited non-zero: %v", runErr)), nil
	}
	return runtime.Success("agent completed with no outcome.json"), nil
}

// HandlerRegistry resolves a node to the Handler that should execute it.
type HandlerRegistry struct {
	identity *IdentityHandler
	exec     *ExecHandler
	codergen *CodergenHandler
}

// NewDefaultRegistry returns the registry backing both the stepwise loop
// and the dataflow node tasks.
func NewDefaultRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		identity: &IdentityHandler{},
		exec:     &ExecHandler{},
		codergen: &CodergenHandler{},
	}
}

// Resolve returns the Handler for node, per nodeVariantKind.
func (r *HandlerRegistry) Resolve(n *model.Node) Handler {
	switch nodeVariantKind(n) {
	case "identity":
		return r.identity
	case "exec":
		return r.exec
	default:
		return r.codergen
	}
}
