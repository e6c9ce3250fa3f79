package engine

import (
	"math/rand"
	"testing"
)

func TestFingerprint_StripsSuffixOnlyWhenRequested(t *testing.T) {
	seq := "@A:1@B:2"
	if got := fingerprint(seq, true); got != "A-B" {
		t.Errorf("fingerprint(stripSuffix=true) = %q, want %q", got, "A-B")
	}
	if got := fingerprint(seq, false); got != "A:1-B:2" {
		t.Errorf("fingerprint(stripSuffix=false) = %q, want %q", got, "A:1-B:2")
	}
}

func TestIsAtRisk_SubstringMatch(t *testing.T) {
	previous := map[string]struct{}{"A-B": {}}
	if !isAtRisk("@A@B@C", previous) {
		t.Error("expected a sequence whose fingerprint contains a previous fingerprint to be at risk")
	}
	if isAtRisk("@C@D", previous) {
		t.Error("unrelated sequence should not be at risk")
	}
}

func TestSequencesFromPreviousLog(t *testing.T) {
	records := []PreviousLogRecord{
		{CaseID: "c1", Activity: "A"},
		{CaseID: "c1", Activity: "B"},
		{CaseID: "c2", Activity: "A"},
	}
	seqs := sequencesFromPreviousLog(records)
	if _, ok := seqs["@A@B"]; !ok {
		t.Error("expected @A@B in reconstructed previous-log sequences")
	}
	if _, ok := seqs["@A"]; !ok {
		t.Error("expected @A in reconstructed previous-log sequences")
	}
}

func TestApplyDifferentialPrivacy_CaseCountStable(t *testing.T) {
	var records []EventRecordLike
	for i := 0; i < 20; i++ {
		records = append(records, events(caseName(i), "@A@B", float64(10+i%5))...)
	}
	tree, err := BuildTree(records, false)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	previous := [][]PreviousLogRecord{{
		{CaseID: "p1", Activity: "A"},
		{CaseID: "p1", Activity: "B"},
	}}

	before := len(tree.caseToSequence)
	rng := rand.New(rand.NewSource(1))
	if _, err := tree.ApplyDifferentialPrivacy(rng, 1.0, previous); err != nil {
		t.Fatalf("ApplyDifferentialPrivacy: %v", err)
	}
	after := len(tree.caseToSequence)
	if before != after {
		t.Errorf("case count changed from %d to %d; DP overlay must preserve case count (P6)", before, after)
	}
}

func caseName(i int) string {
	return string(rune('a'+i%26)) + string(rune('0'+i/26))
}
