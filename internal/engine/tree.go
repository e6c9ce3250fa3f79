package engine

import (
	"fmt"

	"github.com/rawblock/eventlog-pretsa/internal/stats"
)

// normalityAlpha is the significance threshold below which the D'Agostino
// K² test rejects normality (spec.md §4.4).
const normalityAlpha = 0.05

// rootIndex is the stable id of the root node in the arena. Nodes are
// addressed by integer index rather than pointer, per spec.md §9's
// design note — the upward prune in prune.go becomes index arithmetic
// instead of pointer-cycle bookkeeping, mirroring the teacher's
// map-indexed internal/heuristics/cluster_engine.go Union-Find rather
// than a pointer-linked tree.
const rootIndex = 0

// node is one prefix-tree node (spec.md §3). children preserves insertion
// order so traversal is deterministic (spec.md §4.3 requires children
// visited "in insertion order").
type node struct {
	name     string
	sequence string
	parent   int // -1 for the root
	children []int
	childIdx map[string]int // name -> index into children, for O(1) lookup

	cases       map[string]struct{}
	annotations map[string]float64
}

func newNode(name, sequence string, parent int) *node {
	return &node{
		name:        name,
		sequence:    sequence,
		parent:      parent,
		childIdx:    make(map[string]int),
		cases:       make(map[string]struct{}),
		annotations: make(map[string]float64),
	}
}

func (n *node) depth() int {
	// depth is recovered from the sequence length in tokens; callers that
	// need it frequently should prefer Tree.Depth(idx) which walks parents
	// instead, since sequence re-tokenization is O(depth) either way.
	if n.sequence == "" {
		return 0
	}
	d := 0
	for _, c := range n.sequence {
		if c == '@' {
			d++
		}
	}
	return d
}

// Tree is the arena-backed prefix tree (spec.md §3 "Prefix tree").
type Tree struct {
	arena []*node

	// sequences is the root-side set of distinct full trace strings
	// currently present in the tree (I3).
	sequences map[string]struct{}

	// distances is the symmetric pairwise distance table over the
	// sequences present in the tree at construction time (spec.md §4.1).
	// It is never recomputed; redistribution only looks up sequences
	// still present in it (I3 guarantees they remain a subset).
	distances *stats.DistanceMatrix

	// activityData is the global per-activity duration table (spec.md
	// §3 "Global per-activity table"), frozen once BuildTree returns.
	activityData map[string][]float64
	activityMax  map[string]float64 // max - min, precomputed once

	// caseToSequence is the case -> canonical trace map (spec.md §3).
	caseToSequence map[string]string

	// caseToHolder is the case -> holder_id map, preserved across pruning
	// and DP substitution.
	caseToHolder map[string]string
	hasHolderCol bool

	// constantActivity memoizes, per activity, whether its global duration
	// list is a single repeated value (spec.md §4.2's "is the global
	// distribution constant" memo, used by stochastic t-closeness).
	constantActivity map[string]bool

	// normalityCache memoizes, per activity, whether its global duration
	// list rejects the D'Agostino K² normality null at alpha=0.05
	// (spec.md §4.4). Reset at the start of every DP overlay invocation
	// and every emission (spec.md §9 "Global state").
	normalityCache map[string]bool
}

// ResetNormalityCache clears the per-activity normality memo, per spec.md
// §4.5/§9's requirement that it not leak decisions across calls that use a
// different random draw.
func (t *Tree) ResetNormalityCache() {
	t.normalityCache = make(map[string]bool)
}

func (t *Tree) at(idx int) *node { return t.arena[idx] }

// Root returns the root node's index (always rootIndex, exposed for
// readability at call sites).
func (t *Tree) Root() int { return rootIndex }

// Depth walks parent links to compute a node's depth, used by emit.go for
// Event_Nr (spec.md §4.5).
func (t *Tree) Depth(idx int) int {
	d := 0
	for idx != rootIndex {
		idx = t.arena[idx].parent
		d++
	}
	return d
}

// Sequences returns the current set of distinct full traces in the tree.
func (t *Tree) Sequences() map[string]struct{} { return t.sequences }

// ActivityData returns the frozen global duration list for an activity.
func (t *Tree) ActivityData(activity string) []float64 { return t.activityData[activity] }

// ActivityMaxDifference returns the precomputed max-min for an activity.
func (t *Tree) ActivityMaxDifference(activity string) float64 { return t.activityMax[activity] }

// CaseSequence returns the case's current canonical trace.
func (t *Tree) CaseSequence(caseID string) (string, bool) {
	s, ok := t.caseToSequence[caseID]
	return s, ok
}

// HolderOf returns the holder_id for a case, if the input carried one.
func (t *Tree) HolderOf(caseID string) (string, bool) {
	h, ok := t.caseToHolder[caseID]
	return h, ok
}

// HasHolderColumn reports whether the input table carried a Holder_ID
// column at all (vs. every case simply lacking one).
func (t *Tree) HasHolderColumn() bool { return t.hasHolderCol }

// childByName returns the child index with the given activity name under
// parent idx, and whether it exists.
func (t *Tree) childByName(parentIdx int, name string) (int, bool) {
	idx, ok := t.at(parentIdx).childIdx[name]
	return idx, ok
}

// EventRecordLike is the minimal shape BuildTree consumes — decoupling
// tree construction from pkg/models so the engine package has no import
// cycle back to the table-I/O layer.
type EventRecordLike struct {
	CaseID   string
	Activity string
	Duration float64
	HolderID string
}

// BuildTree walks the flat event table in input order and constructs the
// prefix tree, per spec.md §4.1. Events belonging to one case must be
// contiguous; a case_id reappearing after a different case_id is
// considered malformed input and rejected (spec.md §7).
func BuildTree(records []EventRecordLike, hasHolderColumn bool) (*Tree, error) {
	t := &Tree{
		arena:            []*node{newNode("Root", "", -1)},
		sequences:        make(map[string]struct{}),
		activityData:     make(map[string][]float64),
		activityMax:      make(map[string]float64),
		caseToSequence:   make(map[string]string),
		caseToHolder:     make(map[string]string),
		hasHolderCol:     hasHolderColumn,
		constantActivity: make(map[string]bool),
		normalityCache:   make(map[string]bool),
	}

	seenCases := make(map[string]struct{})
	currentCase := ""
	current := rootIndex
	sequence := ""
	haveCurrent := false

	flush := func() {
		if haveCurrent {
			t.caseToSequence[currentCase] = sequence
			t.sequences[sequence] = struct{}{}
		}
	}

	for _, rec := range records {
		if rec.CaseID != currentCase || !haveCurrent {
			flush()
			if _, dup := seenCases[rec.CaseID]; dup {
				return nil, wrapf(ErrMalformedInput,
					"case %q events are not contiguous in input order", rec.CaseID)
			}
			seenCases[rec.CaseID] = struct{}{}
			currentCase = rec.CaseID
			current = rootIndex
			sequence = ""
			haveCurrent = true
			t.arena[rootIndex].cases[currentCase] = struct{}{}
			if rec.HolderID != "" {
				t.caseToHolder[currentCase] = rec.HolderID
			}
		}

		sequence += "@" + rec.Activity

		childIdx, ok := t.childByName(current, rec.Activity)
		if !ok {
			childIdx = len(t.arena)
			t.arena = append(t.arena, newNode(rec.Activity, sequence, current))
			t.at(current).children = append(t.at(current).children, childIdx)
			t.at(current).childIdx[rec.Activity] = childIdx
		}
		current = childIdx

		t.at(current).cases[currentCase] = struct{}{}
		t.at(current).annotations[currentCase] = rec.Duration
		t.activityData[rec.Activity] = append(t.activityData[rec.Activity], rec.Duration)
	}
	flush()

	for activity, values := range t.activityData {
		if len(values) == 0 {
			t.activityMax[activity] = 0
			continue
		}
		minV, maxV := values[0], values[0]
		for _, v := range values[1:] {
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
		t.activityMax[activity] = maxV - minV
	}

	sequences := make([]string, 0, len(t.sequences))
	for s := range t.sequences {
		sequences = append(sequences, s)
	}
	t.distances = stats.BuildDistanceMatrix(sequences)

	return t, nil
}

// tokenize splits a canonical sequence into its activity tokens. A thin
// wrapper over stats.TokenizeSequence kept local so prune.go and dp.go
// don't need to import stats directly for this one call.
func tokenize(sequence string) []string {
	return stats.TokenizeSequence(sequence)
}

// IsActivityConstant reports whether every recorded duration for an
// activity is identical, memoized per activity (spec.md §4.2).
func (t *Tree) IsActivityConstant(activity string) bool {
	if v, ok := t.constantActivity[activity]; ok {
		return v
	}
	values := t.activityData[activity]
	constant := true
	for i := 1; i < len(values); i++ {
		if values[i] != values[0] {
			constant = false
			break
		}
	}
	t.constantActivity[activity] = constant
	return constant
}

// IsActivityNonNormal reports whether an activity's global duration list
// has at least 8 samples and rejects the D'Agostino K² normality null at
// alpha=0.05, memoized per activity and reset by ResetNormalityCache.
func (t *Tree) IsActivityNonNormal(activity string) bool {
	if v, ok := t.normalityCache[activity]; ok {
		return v
	}
	values := t.activityData[activity]
	nonNormal := len(values) >= 8 && stats.NormalityPValue(values) <= normalityAlpha
	t.normalityCache[activity] = nonNormal
	return nonNormal
}

// String is useful for debugging/test failure messages.
func (t *Tree) String() string {
	return fmt.Sprintf("Tree{nodes=%d sequences=%d cases=%d}",
		len(t.arena), len(t.sequences), len(t.arena[rootIndex].cases))
}
