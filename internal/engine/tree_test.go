package engine

import "testing"

func events(caseID, trace string, duration float64) []EventRecordLike {
	var out []EventRecordLike
	for _, activity := range tokenize(trace) {
		out = append(out, EventRecordLike{CaseID: caseID, Activity: activity, Duration: duration})
	}
	return out
}

func TestBuildTree_SharedPrefixMerges(t *testing.T) {
	var records []EventRecordLike
	records = append(records, events("c1", "@A@B", 1)...)
	records = append(records, events("c2", "@A@C", 2)...)

	tree, err := BuildTree(records, false)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	rootChildren := tree.at(tree.Root()).children
	if len(rootChildren) != 1 {
		t.Fatalf("expected a single root child (shared activity A), got %d", len(rootChildren))
	}

	aNode := tree.at(rootChildren[0])
	if len(aNode.children) != 2 {
		t.Fatalf("expected A to have 2 children (B and C), got %d", len(aNode.children))
	}
	if len(aNode.cases) != 2 {
		t.Errorf("expected both cases to pass through A, got %d", len(aNode.cases))
	}
}

func TestBuildTree_RejectsNonContiguousCase(t *testing.T) {
	records := []EventRecordLike{
		{CaseID: "c1", Activity: "A"},
		{CaseID: "c2", Activity: "A"},
		{CaseID: "c1", Activity: "B"},
	}
	if _, err := BuildTree(records, false); err == nil {
		t.Fatal("expected an error for non-contiguous case events")
	}
}

func TestBuildTree_SequencesAndActivityMaxDifference(t *testing.T) {
	var records []EventRecordLike
	records = append(records, events("c1", "@A@B", 10)...)
	records = append(records, events("c2", "@A@B", 20)...)

	tree, err := BuildTree(records, false)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if _, ok := tree.Sequences()["@A@B"]; !ok {
		t.Error("expected @A@B in root.sequences")
	}
	if got := tree.ActivityMaxDifference("A"); got != 10 {
		t.Errorf("ActivityMaxDifference(A) = %v, want 10", got)
	}
}

func TestBuildTree_HolderMap(t *testing.T) {
	records := []EventRecordLike{
		{CaseID: "c1", Activity: "A", HolderID: "h1"},
		{CaseID: "c2", Activity: "A", HolderID: "h2"},
	}
	tree, err := BuildTree(records, true)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if h, ok := tree.HolderOf("c1"); !ok || h != "h1" {
		t.Errorf("HolderOf(c1) = (%q, %v), want (h1, true)", h, ok)
	}
}
