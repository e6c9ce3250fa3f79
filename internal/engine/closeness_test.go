package engine

import "testing"

func TestViolatesKAnonymity(t *testing.T) {
	cases := []struct {
		count, k int
		want     bool
	}{
		{count: 1, k: 2, want: true},
		{count: 2, k: 2, want: false},
		{count: 5, k: 2, want: false},
	}
	for _, c := range cases {
		if got := violatesKAnonymity(c.count, c.k); got != c.want {
			t.Errorf("violatesKAnonymity(%d,%d) = %v, want %v", c.count, c.k, got, c.want)
		}
	}
}

func TestViolatesTCloseness_EmptyNodeValuesNeverViolates(t *testing.T) {
	var records []EventRecordLike
	records = append(records, events("c1", "@A", 1)...)
	tree, err := BuildTree(records, false)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if violatesTCloseness(ModeStandard, "A", nil, tree, 0) {
		t.Error("empty nodeValues must never violate t-closeness")
	}
}

func TestViolatesStandardTCloseness_ConstantActivityNeverViolates(t *testing.T) {
	// max-difference of zero means the denominator in the standard-mode
	// formula is zero, which spec.md §4.2 defines as "not a violation".
	if violatesStandardTCloseness([]float64{5, 5}, []float64{5, 5, 5}, 0.0, 0) {
		t.Error("zero max-difference must never violate t-closeness")
	}
}

func TestViolatesStochasticTCloseness_ConstantDistributionShortCircuits(t *testing.T) {
	var records []EventRecordLike
	for i := 0; i < 6; i++ {
		records = append(records, events("c"+string(rune('0'+i)), "@A", 7)...)
	}
	tree, err := BuildTree(records, false)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if violatesTCloseness(ModeStochastic, "A", []float64{7, 7, 7}, tree, 0.01) {
		t.Error("a constant global distribution must report no stochastic t-violation regardless of t")
	}
}

func TestViolatesStochasticTCloseness_SkewDetected(t *testing.T) {
	global := []float64{0, 10, 20, 30, 40, 50, 60, 70}
	skewed := []float64{0, 0, 0}
	if !violatesStochasticTCloseness(skewed, global, 0.6) {
		t.Error("a node bunched entirely in the low bucket should violate stochastic t-closeness")
	}
}
