package cond

import (
	"testing"

	"github.com/go-attractor/attractor/internal/attractor/runtime"
)

func ctxWithOutcome(status string) *runtime.Context {
	c := runtime.NewContext()
	c.Set("outcome", status)
	return c
}

func TestEvaluate_EmptyConditionIsTrue(t *testing.T) {
	if !Evaluate("", ctxWithOutcome("error")) {
		t.Fatalf("empty condition should be true")
	}
}

func TestEvaluate_OutcomeEquals(t *testing.T) {
	if !Evaluate("outcome=success", ctxWithOutcome("success")) {
		t.Fatalf("expected match")
	}
	if Evaluate("outcome=success", ctxWithOutcome("error")) {
		t.Fatalf("expected no match")
	}
}

func TestEvaluate_OutcomeNotEquals(t *testing.T) {
	if !Evaluate("outcome!=success", ctxWithOutcome("error")) {
		t.Fatalf("expected match")
	}
	if Evaluate("outcome!=success", ctxWithOutcome("success")) {
		t.Fatalf("expected no match")
	}
}

func TestEvaluate_FailAndErrorAreAliases(t *testing.T) {
	if !Evaluate("outcome=fail", ctxWithOutcome("error")) {
		t.Fatalf("outcome=fail should match a recorded error outcome")
	}
	if !Evaluate("outcome=error", ctxWithOutcome("error")) {
		t.Fatalf("outcome=error should match a recorded error outcome")
	}
}

func TestEvaluate_UnknownFormIsFalse(t *testing.T) {
	if Evaluate("bogus", ctxWithOutcome("success")) {
		t.Fatalf("unrecognized condition form must be false")
	}
	if Evaluate("context.foo=bar", ctxWithOutcome("success")) {
		t.Fatalf("only outcome keys are recognized")
	}
}
