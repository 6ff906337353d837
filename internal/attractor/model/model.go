// Package model holds the workflow AST: the parsed, validated shape of a
// DOT workflow graph. The AST is built once by the dot package and never
// mutated afterwards; everything downstream (validate, engine) treats it
// as read-only.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Graph is the parsed workflow AST (spec WorkflowGraph).
type Graph struct {
	Name  string
	Attrs map[string]string
	Nodes map[string]*Node
	Edges []*Edge
}

// NewGraph returns an empty graph with the given digraph identifier.
func NewGraph(name string) *Graph {
	return &Graph{
		Name:  name,
		Attrs: map[string]string{},
		Nodes: map[string]*Node{},
	}
}

// AddNode registers n, rejecting duplicate ids (node ids are unique per graph).
func (g *Graph) AddNode(n *Node) error {
	if n == nil || strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("model: node id must be non-empty")
	}
	if _, exists := g.Nodes[n.ID]; exists {
		return fmt.Errorf("model: duplicate node id %q", n.ID)
	}
	g.Nodes[n.ID] = n
	return nil
}

// AddEdge appends e to the graph's ordered edge list. Endpoint existence is
// a validator concern, not a construction-time one.
func (g *Graph) AddEdge(e *Edge) error {
	if e == nil {
		return fmt.Errorf("model: nil edge")
	}
	e.Order = len(g.Edges)
	g.Edges = append(g.Edges, e)
	return nil
}

// Outgoing returns the edges leaving nodeID, in declaration order.
func (g *Graph) Outgoing(nodeID string) []*Edge {
	var out []*Edge
	for _, e := range g.Edges {
		if e != nil && e.From == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Incoming returns the edges arriving at nodeID, in declaration order.
func (g *Graph) Incoming(nodeID string) []*Edge {
	var in []*Edge
	for _, e := range g.Edges {
		if e != nil && e.To == nodeID {
			in = append(in, e)
		}
	}
	return in
}

// DefaultMaxRetry returns the graph-level default_max_retry attribute,
// falling back to 50 when absent or unparsable.
func (g *Graph) DefaultMaxRetry() int {
	if g == nil {
		return 50
	}
	v, ok := g.Attrs["default_max_retry"]
	if !ok {
		return 50
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 50
	}
	return n
}

// Goal returns the graph's goal attribute.
func (g *Graph) Goal() string {
	if g == nil {
		return ""
	}
	return g.Attrs["goal"]
}

func isStartShape(shape string) bool {
	return strings.EqualFold(shape, "Mdiamond")
}

func isExitShape(shape string) bool {
	return strings.EqualFold(shape, "Msquare")
}

// IsStart reports whether n is the designated start node: shape Mdiamond
// (case-insensitive) or id "start" (case-insensitive).
func (n *Node) IsStart() bool {
	if n == nil {
		return false
	}
	return isStartShape(n.Shape()) || strings.EqualFold(n.ID, "start")
}

// IsExit reports whether n is the designated exit node: shape Msquare
// (case-insensitive) or id "exit" (case-insensitive).
func (n *Node) IsExit() bool {
	if n == nil {
		return false
	}
	return isExitShape(n.Shape()) || strings.EqualFold(n.ID, "exit")
}

// StartNodeIDs returns every node id that qualifies as a start node.
func (g *Graph) StartNodeIDs() []string {
	var ids []string
	for id, n := range g.Nodes {
		if n.IsStart() {
			ids = append(ids, id)
		}
	}
	return ids
}

// ExitNodeIDs returns every node id that qualifies as an exit node.
func (g *Graph) ExitNodeIDs() []string {
	var ids []string
	for id, n := range g.Nodes {
		if n.IsExit() {
			ids = append(ids, id)
		}
	}
	return ids
}

// Node is a single workflow stage (spec WorkflowNode).
type Node struct {
	ID      string
	Attrs   map[string]string
	Classes []string
	// Order records declaration order as set by the parser; routing never
	// consults it (edge routing order comes from the edge list itself).
	Order int
}

// NewNode returns an empty node with the given id.
func NewNode(id string) *Node {
	return &Node{ID: id, Attrs: map[string]string{}}
}

// Attr returns the attribute value for key, or def when unset.
func (n *Node) Attr(key, def string) string {
	if n == nil {
		return def
	}
	if v, ok := n.Attrs[key]; ok {
		return v
	}
	return def
}

// Shape returns the raw shape attribute (case as written in the source).
func (n *Node) Shape() string { return n.Attr("shape", "") }

// TypeOverride returns the explicit `type=` attribute, which always wins
// over shape-derived handler resolution.
func (n *Node) TypeOverride() string { return n.Attr("type", "") }

// Label returns the node's label attribute.
func (n *Node) Label() string { return n.Attr("label", "") }

// Prompt returns the node's prompt attribute (codergen input).
func (n *Node) Prompt() string { return n.Attr("prompt", "") }

// Command returns the node's command attribute (exec input).
func (n *Node) Command() string { return n.Attr("command", "") }

// ClassList returns the derived CSS-like classes (from enclosing subgraph
// labels) this node belongs to.
func (n *Node) ClassList() []string { return n.Classes }

// GoalGate reports whether this node is marked as a goal gate: its last
// outcome must be ok or the run is not permitted to exit cleanly.
func (n *Node) GoalGate() bool {
	v := strings.ToLower(strings.TrimSpace(n.Attr("goal_gate", "")))
	return v == "true" || v == "yes" || v == "1"
}

// MaxRetries returns the node's max_retries attribute, or 0 when unset or
// unparsable (0 means "fall back to the graph default").
func (n *Node) MaxRetries() int {
	v := strings.TrimSpace(n.Attr("max_retries", ""))
	if v == "" {
		return 0
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return 0
	}
	return i
}

// RetryTarget returns the node-level retry_target attribute.
func (n *Node) RetryTarget() string { return n.Attr("retry_target", "") }

// FallbackRetryTarget returns the node-level fallback_retry_target attribute.
func (n *Node) FallbackRetryTarget() string { return n.Attr("fallback_retry_target", "") }

// Edge is a single directed edge between two nodes (spec WorkflowEdge).
type Edge struct {
	From, To string
	Attrs    map[string]string
	// Order is the position of this edge within the graph's declaration
	// order, as assigned by AddEdge. Edge selection does not read it; its
	// final tie-break is the position in the edge list itself.
	Order int
}

// NewEdge returns an edge from -> to with no attributes.
func NewEdge(from, to string) *Edge {
	return &Edge{From: from, To: to, Attrs: map[string]string{}}
}

// Attr returns the attribute value for key, or def when unset.
func (e *Edge) Attr(key, def string) string {
	if e == nil {
		return def
	}
	if v, ok := e.Attrs[key]; ok {
		return v
	}
	return def
}

// Condition returns the edge's condition attribute.
func (e *Edge) Condition() string { return e.Attr("condition", "") }

// Label returns the edge's label attribute.
func (e *Edge) Label() string { return e.Attr("label", "") }

// Weight returns the edge's weight attribute, defaulting to 0.
func (e *Edge) Weight() int {
	v := strings.TrimSpace(e.Attr("weight", "0"))
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// ResolveRetryTarget returns the first configured retry target for nodeID:
// node retry_target, node fallback_retry_target, graph retry_target, graph
// fallback_retry_target, in that order. Returns "" if none are set.
func ResolveRetryTarget(g *Graph, nodeID string) string {
	target, _ := ResolveRetryTargetWithSource(g, nodeID)
	return target
}

// ResolveRetryTargetWithSource is ResolveRetryTarget plus a label for which
// attribute supplied the target, useful for diagnostics and logging.
func ResolveRetryTargetWithSource(g *Graph, nodeID string) (target, source string) {
	if g == nil {
		return "", ""
	}
	n := g.Nodes[strings.TrimSpace(nodeID)]
	if n != nil {
		if t := strings.TrimSpace(n.RetryTarget()); t != "" {
			return t, "node.retry_target"
		}
		if t := strings.TrimSpace(n.FallbackRetryTarget()); t != "" {
			return t, "node.fallback_retry_target"
		}
	}
	if t := strings.TrimSpace(g.Attrs["retry_target"]); t != "" {
		return t, "graph.retry_target"
	}
	if t := strings.TrimSpace(g.Attrs["fallback_retry_target"]); t != "" {
		return t, "graph.fallback_retry_target"
	}
	return "", ""
}
