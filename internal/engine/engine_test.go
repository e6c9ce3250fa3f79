package engine

import "testing"

func TestEngine_Run_RejectsInvalidParameters(t *testing.T) {
	e := NewSeeded(1)
	records := events("c1", "@A", 1)

	if _, err := e.Run(records, false, 0, 0.5, ModeStandard, false, 0, nil); err == nil {
		t.Error("expected an error for k < 1")
	}
	if _, err := e.Run(records, false, 1, 1.0, ModeStandard, false, 0, nil); err == nil {
		t.Error("expected an error for t >= 1")
	}
	if _, err := e.Run(records, false, 1, 0.5, ModeStandard, true, 0, nil); err == nil {
		t.Error("expected an error for epsilon <= 0 when dp is enabled")
	}
}

func TestEngine_Run_Determinism(t *testing.T) {
	var records []EventRecordLike
	for i := 0; i < 30; i++ {
		records = append(records, events(caseName(i), "@A@B", float64(i%7))...)
	}
	previous := [][]PreviousLogRecord{{
		{CaseID: "p1", Activity: "A"},
		{CaseID: "p1", Activity: "B"},
	}}

	run := func() Result {
		e := NewSeeded(7)
		res, err := e.Run(records, false, 2, 0.9, ModeStandard, true, 1.0, previous)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return res
	}

	a := run()
	b := run()

	if a.CaseCount != b.CaseCount || a.EventCount != b.EventCount || a.Distance != b.Distance {
		t.Fatalf("two seeded runs diverged in summary: %+v vs %+v", a, b)
	}
	if len(a.Events) != len(b.Events) {
		t.Fatalf("event count differs: %d vs %d", len(a.Events), len(b.Events))
	}
	for i := range a.Events {
		if a.Events[i] != b.Events[i] {
			t.Fatalf("event %d diverged: %+v vs %+v", i, a.Events[i], b.Events[i])
		}
	}
}

func TestEngine_Run_DPPreservesCaseCount(t *testing.T) {
	var records []EventRecordLike
	for i := 0; i < 40; i++ {
		records = append(records, events(caseName(i), "@A@B", float64(10+i%5))...)
	}
	previous := [][]PreviousLogRecord{{
		{CaseID: "p1", Activity: "A"},
		{CaseID: "p1", Activity: "B"},
	}}

	e := NewSeeded(3)
	before, err := e.Run(records, false, 2, 0.99, ModeStandard, false, 0, nil)
	if err != nil {
		t.Fatalf("Run (no DP): %v", err)
	}

	e2 := NewSeeded(3)
	after, err := e2.Run(records, false, 2, 0.99, ModeStandard, true, 1.0, previous)
	if err != nil {
		t.Fatalf("Run (DP): %v", err)
	}

	if before.CaseCount != after.CaseCount {
		t.Errorf("DP overlay changed distinct case count: %d -> %d", before.CaseCount, after.CaseCount)
	}
}
