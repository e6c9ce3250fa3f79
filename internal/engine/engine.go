// Package engine implements the PRETSA-style sanitization core: prefix-tree
// construction, the k-anonymity/t-closeness pruning loop, the
// differential-privacy linkage overlay, and flat log emission.
package engine

import "math/rand"

// Engine owns the one piece of mutable cross-call state the sanitization
// algorithm needs: its RNG streams (spec.md §5). It is not safe for
// concurrent use — callers serialize invocations the way the multi-holder
// coordinator does, behind a single lock.
type Engine struct {
	rng *rand.Rand
}

// New constructs an Engine seeded from a fresh system source, for
// production use where run-to-run determinism is not required.
func New() *Engine {
	return &Engine{rng: rand.New(rand.NewSource(rand.Int63()))}
}

// NewSeeded constructs an Engine whose RNG is deterministic, required by
// spec.md §5 so the testable properties of §8 (P7 in particular) are
// reproducible.
func NewSeeded(seed int64) *Engine {
	return &Engine{rng: rand.New(rand.NewSource(seed))}
}

// Result is the outcome of one Run invocation: the cases redistributed
// during pruning, the accumulated edit-distance spent doing so, and the
// sanitized event table.
type Result struct {
	CutOut        map[string]struct{}
	Distance      float64
	Events        []EmittedEvent
	CaseCount     int
	EventCount    int
	SyntheticCase int
}

// Run performs one full sanitization pass: build the tree, prune to
// enforce k-anonymity/t-closeness, optionally apply the DP overlay, and
// emit the sanitized table (spec.md §6 "Engine call").
//
// previousLogs is read only when dpEnabled is true; pass nil otherwise.
func (e *Engine) Run(records []EventRecordLike, hasHolderColumn bool, k int, t float64, mode Mode, dpEnabled bool, epsilon float64, previousLogs [][]PreviousLogRecord) (Result, error) {
	if k < 1 {
		return Result{}, wrapf(ErrInvalidParameter, "k must be >= 1, got %d", k)
	}
	if t < 0 || t >= 1 {
		return Result{}, wrapf(ErrInvalidParameter, "t must be in [0,1), got %v", t)
	}
	if dpEnabled && epsilon <= 0 {
		return Result{}, wrapf(ErrInvalidParameter, "epsilon must be > 0 when dp is enabled, got %v", epsilon)
	}

	tree, err := BuildTree(records, hasHolderColumn)
	if err != nil {
		return Result{}, err
	}

	cutOut, distance, err := tree.Prune(k, t, mode)
	if err != nil {
		return Result{}, err
	}

	var synthetic int
	if dpEnabled {
		synthetic, err = tree.ApplyDifferentialPrivacy(e.rng, epsilon, previousLogs)
		if err != nil {
			return Result{}, err
		}
	}

	events := tree.Emit(e.rng)

	caseSet := make(map[string]struct{})
	for _, ev := range events {
		caseSet[ev.CaseID] = struct{}{}
	}

	return Result{
		CutOut:        cutOut,
		Distance:      distance,
		Events:        events,
		CaseCount:     len(caseSet),
		EventCount:    len(events),
		SyntheticCase: synthetic,
	}, nil
}
