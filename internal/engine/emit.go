package engine

import (
	"math/rand"
	"sort"
)

// EmittedEvent is one row of the sanitized output table (spec.md §4.5).
type EmittedEvent struct {
	CaseID   string
	Activity string
	Duration float64
	EventNr  int
	HolderID string
}

// Emit walks the tree and materializes a flat, sorted event table. It is a
// pure read with respect to tree state: no case membership, case->trace
// mapping, or tree structure is mutated. The normality cache is reset
// first so repeated emissions from the same tree agree with each other
// (spec.md §4.5, §9 "Global state"); rng is still consumed to synthesize
// any missing annotation, so determinism depends on a fixed seed, not on
// emission leaving rng untouched.
func (t *Tree) Emit(rng *rand.Rand) []EmittedEvent {
	t.ResetNormalityCache()

	var out []EmittedEvent
	var walk func(idx int)
	walk = func(idx int) {
		n := t.at(idx)
		if idx != rootIndex {
			depth := t.Depth(idx)
			for c := range n.cases {
				duration, ok := n.annotations[c]
				if !ok {
					duration = t.syntheticDuration(rng, n.name)
				}
				holder := ""
				if t.hasHolderCol {
					holder = t.caseToHolder[c]
				}
				out = append(out, EmittedEvent{
					CaseID:   c,
					Activity: n.name,
					Duration: duration,
					EventNr:  depth,
					HolderID: holder,
				})
			}
		}
		for _, child := range n.children {
			walk(child)
		}
	}
	walk(rootIndex)

	sort.Slice(out, func(i, j int) bool {
		if out[i].CaseID != out[j].CaseID {
			return out[i].CaseID < out[j].CaseID
		}
		return out[i].EventNr < out[j].EventNr
	})
	return out
}
