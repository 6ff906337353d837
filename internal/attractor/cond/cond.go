// Package cond evaluates the edge condition grammar used by the edge
// selector: outcome=<value> and outcome!=<value>, matched against the
// current run context's recorded outcome. Any other form is false rather
// than an error — an edge selector skips a non-matching edge, it doesn't
// fail the run over a typo'd condition.
package cond

import (
	"strings"

	"github.com/go-attractor/attractor/internal/attractor/runtime"
)

// Evaluate reports whether condition holds given the context's currently
// recorded outcome value. An empty condition is always true (unconditional
// edge).
func Evaluate(condition string, ctx *runtime.Context) bool {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return true
	}
	if idx := strings.Index(condition, "!="); idx >= 0 {
		key := strings.TrimSpace(condition[:idx])
		want := strings.TrimSpace(condition[idx+2:])
		if key != "outcome" {
			return false
		}
		return !outcomeMatches(ctx, want)
	}
	if idx := strings.Index(condition, "="); idx >= 0 {
		key := strings.TrimSpace(condition[:idx])
		want := strings.TrimSpace(condition[idx+1:])
		if key != "outcome" {
			return false
		}
		return outcomeMatches(ctx, want)
	}
	return false
}

// outcomeMatches compares the context's recorded outcome status against
// want, case-insensitively. "fail" and "error" are treated as the same
// canonical value on both sides, per the open question in the
// specification that both legacy and current outcome names must match.
func outcomeMatches(ctx *runtime.Context, want string) bool {
	got := ""
	if ctx != nil {
		got, _ = ctx.Get("outcome")
	}
	return canonicalOutcomeValue(got) == canonicalOutcomeValue(want)
}

func canonicalOutcomeValue(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "fail" {
		return "error"
	}
	return s
}
