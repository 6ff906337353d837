package runtime

import "testing"

func TestParseOutcomeStatus_FailIsAnAliasForError(t *testing.T) {
	st, err := ParseOutcomeStatus("fail")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st != StatusError {
		t.Fatalf("ParseOutcomeStatus(fail) = %q, want %q", st, StatusError)
	}
}

func TestParseOutcomeStatus_RejectsUnknown(t *testing.T) {
	if _, err := ParseOutcomeStatus("bogus"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestOutcomeStatus_IsOK(t *testing.T) {
	cases := map[OutcomeStatus]bool{
		StatusSuccess:        true,
		StatusPartialSuccess: true,
		StatusError:          false,
		StatusRetry:          false,
	}
	for status, want := range cases {
		if got := status.IsOK(); got != want {
			t.Fatalf("%q.IsOK() = %v, want %v", status, got, want)
		}
	}
}

func TestNodeOutcome_Canonicalize(t *testing.T) {
	o := NodeOutcome{Status: "failure"}
	canon, err := o.Canonicalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if canon.Status != StatusError {
		t.Fatalf("Canonicalize() status = %q, want error", canon.Status)
	}
	if canon.ContextUpdates == nil || canon.SuggestedNextIDs == nil {
		t.Fatalf("Canonicalize() should default nil collections to empty")
	}
}

func TestAgentOutcomeFile_ToNodeOutcome_FailForcesError(t *testing.T) {
	doc, err := DecodeAgentOutcomeFile([]byte(`{"outcome":"fail","context_updates":{"k":"v"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	outcome := doc.ToNodeOutcome()
	if outcome.Status != StatusError {
		t.Fatalf("status = %q, want error", outcome.Status)
	}
	if outcome.ContextUpdates["k"] != "v" {
		t.Fatalf("context updates not carried through: %v", outcome.ContextUpdates)
	}
}

func TestAgentOutcomeFile_ToNodeOutcome_Success(t *testing.T) {
	doc, err := DecodeAgentOutcomeFile([]byte(`{"outcome":"success"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if outcome := doc.ToNodeOutcome(); outcome.Status != StatusSuccess {
		t.Fatalf("status = %q, want success", outcome.Status)
	}
}
