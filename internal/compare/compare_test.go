package compare

import (
	"testing"

	"github.com/rawblock/eventlog-pretsa/internal/engine"
)

func records(caseID string, activities ...string) []engine.EventRecordLike {
	out := make([]engine.EventRecordLike, len(activities))
	for i, a := range activities {
		out[i] = engine.EventRecordLike{CaseID: caseID, Activity: a, Duration: float64(i + 1)}
	}
	return out
}

func TestRun_IdenticalConfigurationsAgreePerfectly(t *testing.T) {
	var input []engine.EventRecordLike
	input = append(input, records("c1", "A", "B")...)
	input = append(input, records("c2", "A", "B")...)
	input = append(input, records("c3", "A", "C")...)

	params := engine.ModeParams{K: 1, T: 0.99, Mode: engine.ModeStandard}

	report, err := Run(input, false, 7, params, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.CasesDiverged != 0 {
		t.Errorf("expected zero divergence comparing a configuration against itself, got %d", report.CasesDiverged)
	}
	if report.AdjustedRand != 1 {
		t.Errorf("AdjustedRand = %v, want 1 for identical partitions", report.AdjustedRand)
	}
	if report.CasesTotal != 3 {
		t.Errorf("CasesTotal = %d, want 3", report.CasesTotal)
	}
}

func TestRun_StrictKForcesMergeDivergingFromLenientRun(t *testing.T) {
	var input []engine.EventRecordLike
	input = append(input, records("c1", "A", "B")...)
	input = append(input, records("c2", "A", "B")...)
	input = append(input, records("c3", "A", "C")...)

	lenient := engine.ModeParams{K: 1, T: 0.99, Mode: engine.ModeStandard}
	strict := engine.ModeParams{K: 3, T: 0.99, Mode: engine.ModeStandard}

	report, err := Run(input, false, 7, lenient, strict)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.CasesDiverged == 0 {
		t.Error("expected the strict k=3 run to merge c3 into a different partition than the lenient run")
	}
}

func TestCaseSequences_OrdersByEventNr(t *testing.T) {
	events := []engine.EmittedEvent{
		{CaseID: "c1", Activity: "B", EventNr: 2},
		{CaseID: "c1", Activity: "A", EventNr: 1},
	}
	seqs := caseSequences(events)
	if seqs["c1"] != "@A@B" {
		t.Errorf("caseSequences = %q, want @A@B", seqs["c1"])
	}
}
