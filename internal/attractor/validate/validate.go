// Package validate runs structural checks against a parsed workflow graph
// before the compiler is allowed to touch it.
package validate

import (
	"fmt"
	"strings"

	"github.com/go-attractor/attractor/internal/attractor/model"
)

// Severity classifies a Diagnostic. Only SeverityError diagnostics cause
// ValidateOrError to fail; SeverityWarning is informational.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Diagnostic is a single validation finding.
type Diagnostic struct {
	Rule     string
	Severity Severity
	Message  string
	NodeID   string
	EdgeFrom string
	EdgeTo   string
}

// Rule is the interface for a pluggable lint pass. The four built-in
// rules (exactly one start, exactly one exit, edge endpoints exist, exec
// requires command) are always run; callers may supply additional rules, appended after the
// built-ins, without forking the package.
type Rule interface {
	Name() string
	Apply(g *model.Graph) []Diagnostic
}

// Validate runs every built-in rule plus any extraRules and returns all
// diagnostics, errors and warnings alike.
func Validate(g *model.Graph, extraRules ...Rule) []Diagnostic {
	if g == nil {
		return []Diagnostic{{Rule: "graph_nil", Severity: SeverityError, Message: "graph is nil"}}
	}
	var diags []Diagnostic
	diags = append(diags, lintStartNode(g)...)
	diags = append(diags, lintExitNode(g)...)
	diags = append(diags, lintEdgeTargetsExist(g)...)
	diags = append(diags, lintExecRequiresCommand(g)...)
	for _, rule := range extraRules {
		if rule != nil {
			diags = append(diags, rule.Apply(g)...)
		}
	}
	return diags
}

// ValidateOrError runs Validate and collapses every SeverityError
// diagnostic into a single descriptive error, or returns nil when the
// graph is structurally sound.
func ValidateOrError(g *model.Graph, extraRules ...Rule) error {
	diags := Validate(g, extraRules...)
	var msgs []string
	for _, d := range diags {
		if d.Severity == SeverityError {
			msgs = append(msgs, d.Rule+": "+d.Message)
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("validate: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func lintStartNode(g *model.Graph) []Diagnostic {
	ids := g.StartNodeIDs()
	if len(ids) != 1 {
		return []Diagnostic{{
			Rule:     "start_node",
			Severity: SeverityError,
			Message:  fmt.Sprintf("graph must have exactly one start node (found %d: %v)", len(ids), ids),
		}}
	}
	return nil
}

func lintExitNode(g *model.Graph) []Diagnostic {
	ids := g.ExitNodeIDs()
	if len(ids) != 1 {
		return []Diagnostic{{
			Rule:     "exit_node",
			Severity: SeverityError,
			Message:  fmt.Sprintf("graph must have exactly one exit node (found %d: %v)", len(ids), ids),
		}}
	}
	return nil
}

func lintEdgeTargetsExist(g *model.Graph) []Diagnostic {
	var diags []Diagnostic
	for _, e := range g.Edges {
		if e == nil {
			continue
		}
		if _, ok := g.Nodes[e.From]; !ok {
			diags = append(diags, Diagnostic{
				Rule: "edge_target_exists", Severity: SeverityError,
				Message: "edge references missing from-node", EdgeFrom: e.From, EdgeTo: e.To,
			})
		}
		if _, ok := g.Nodes[e.To]; !ok {
			diags = append(diags, Diagnostic{
				Rule: "edge_target_exists", Severity: SeverityError,
				Message: "edge references missing to-node", EdgeFrom: e.From, EdgeTo: e.To,
			})
		}
	}
	return diags
}

// lintExecRequiresCommand enforces that every node whose resolved handler
// type is "exec" (explicit type= override, since shape never resolves to
// exec on its own) carries a non-empty command attribute.
func lintExecRequiresCommand(g *model.Graph) []Diagnostic {
	var diags []Diagnostic
	for id, n := range g.Nodes {
		if n == nil {
			continue
		}
		if strings.TrimSpace(n.TypeOverride()) != "exec" {
			continue
		}
		if strings.TrimSpace(n.Command()) == "" {
			diags = append(diags, Diagnostic{
				Rule: "exec_requires_command", Severity: SeverityError,
				Message: "node with type=exec must have a non-empty command attribute",
				NodeID:  id,
			})
		}
	}
	return diags
}
