package engine

import (
	"regexp"
	"sort"
	"strings"

	"github.com/go-attractor/attractor/internal/attractor/cond"
	"github.com/go-attractor/attractor/internal/attractor/model"
	"github.com/go-attractor/attractor/internal/attractor/runtime"
)

// SelectNext picks the single outgoing edge to follow from node, given the
// context (which already holds the node's recorded outcome) and the
// outcome's preferred label / suggested next ids. It applies six rules in
// order, the first one that produces any candidate wins:
//
//  1. no outgoing edges at all -> no next hop (terminal node)
//  2. edges whose condition evaluates true, best by weight desc then to asc
//  3. the first (in AST edge order) edge whose (normalized) label matches
//     outcome.PreferredLabel
//  4. an edge whose target is in outcome.SuggestedNextIDs, in that order
//  5. unconditional edges (no condition attribute), best by weight desc then to asc
//  6. fallback: every outgoing edge, best by weight desc then to asc
func SelectNext(g *model.Graph, node *model.Node, ctx *runtime.Context, outcome runtime.NodeOutcome) (string, bool) {
	edges := g.Outgoing(node.ID)
	if len(edges) == 0 {
		return "", false
	}

	var matched []*model.Edge
	for _, e := range edges {
		c := strings.TrimSpace(e.Condition())
		if c == "" {
			continue
		}
		if cond.Evaluate(c, ctx) {
			matched = append(matched, e)
		}
	}
	if len(matched) > 0 {
		return bestEdge(matched).To, true
	}

	if label := strings.TrimSpace(outcome.PreferredLabel); label != "" {
		normalizedWant := normalizeLabel(label)
		var byLabel []*model.Edge
		for _, e := range edges {
			if normalizeLabel(e.Label()) == normalizedWant {
				byLabel = append(byLabel, e)
			}
		}
		if len(byLabel) > 0 {
			return byLabel[0].To, true
		}
	}

	for _, id := range outcome.SuggestedNextIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		for _, e := range edges {
			if e.To == id {
				return e.To, true
			}
		}
	}

	var unconditional []*model.Edge
	for _, e := range edges {
		if strings.TrimSpace(e.Condition()) == "" {
			unconditional = append(unconditional, e)
		}
	}
	if len(unconditional) > 0 {
		return bestEdge(unconditional).To, true
	}

	return bestEdge(edges).To, true
}

// bestEdge returns the highest-weight edge, breaking ties by the
// lexicographically smallest target id, so selection is deterministic
// across runs with identical weights.
func bestEdge(edges []*model.Edge) *model.Edge {
	best := edges[0]
	for _, e := range edges[1:] {
		if e.Weight() > best.Weight() {
			best = e
			continue
		}
		if e.Weight() == best.Weight() && e.To < best.To {
			best = e
		}
	}
	return best
}

var labelPrefixPattern = regexp.MustCompile(`^(\[[^\]]*\]\s*|[^\s)]+\)\s*|[^\s-]+\s*-\s*)`)

// normalizeLabel strips a leading "[K] ", "K) " or "K - " style choice
// marker from an edge label before comparing it to an agent-reported
// preferred label, so labels like "[A] Retry" and "A) Retry" both match a
// preferred label of "Retry".
func normalizeLabel(label string) string {
	label = strings.TrimSpace(label)
	stripped := labelPrefixPattern.ReplaceAllString(label, "")
	stripped = strings.TrimSpace(stripped)
	if stripped == "" {
		return strings.ToLower(label)
	}
	return strings.ToLower(stripped)
}

// sortEdgesDeterministic returns a copy of edges ordered by (from, to), a
// stable ordering independent of declaration order. Nothing in the module
// calls it at present.
func sortEdgesDeterministic(edges []*model.Edge) []*model.Edge {
	out := append([]*model.Edge(nil), edges...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}
