package engine

import "sort"

// Prune repeatedly removes k/t violators and redistributes their cases
// until no violator remains, per spec.md §4.3. It returns the full set of
// case_ids that were cut out of their original node and redistributed, and
// the accumulated edit-distance spent reattaching them.
func (t *Tree) Prune(k int, tParam float64, mode Mode) (map[string]struct{}, float64, error) {
	globalCutOut := make(map[string]struct{})
	var distanceAccum float64

	for {
		violatorIdx, roundCut := t.findAndCutViolator(k, tParam, mode)
		if violatorIdx == -1 {
			break
		}

		dist, err := t.redistribute(roundCut)
		if err != nil {
			return nil, 0, err
		}
		distanceAccum += dist

		for c := range roundCut {
			globalCutOut[c] = struct{}{}
		}
	}

	return globalCutOut, distanceAccum, nil
}

// findAndCutViolator performs one pre-order traversal (children visited in
// insertion order, root skipped). Cases cut out in earlier rounds are not
// stripped again: by then they have been redistributed, and their new
// memberships along the reattached sequence must survive later rounds. If a
// node violates k-anonymity or t-closeness, its cases become this round's
// cut set, the node is pruned upward, and the traversal stops. Returns
// (-1, nil) if no violator was found.
func (t *Tree) findAndCutViolator(k int, tParam float64, mode Mode) (int, map[string]struct{}) {
	var result int = -1
	var roundCut map[string]struct{}

	var visit func(idx int) bool
	visit = func(idx int) bool {
		if idx != rootIndex {
			n := t.at(idx)

			// A node with no cases has nothing left to move, so it is
			// skipped rather than reported as a k-violation; by I1 its
			// descendants are empty too.
			if len(n.cases) == 0 {
				return false
			}

			if t.nodeViolates(idx, k, tParam, mode) {
				roundCut = make(map[string]struct{}, len(n.cases))
				for c := range n.cases {
					roundCut[c] = struct{}{}
				}
				n.cases = make(map[string]struct{})
				n.annotations = make(map[string]float64)
				t.pruneUpward(idx, roundCut)
				result = idx
				return true
			}
		}

		for _, child := range t.at(idx).children {
			if visit(child) {
				return true
			}
		}
		return false
	}
	visit(rootIndex)

	return result, roundCut
}

// nodeViolates reports whether the node at idx currently violates
// k-anonymity or t-closeness (spec.md §4.2).
func (t *Tree) nodeViolates(idx int, k int, tParam float64, mode Mode) bool {
	n := t.at(idx)
	if violatesKAnonymity(len(n.cases), k) {
		return true
	}

	nodeValues := make([]float64, 0, len(n.annotations))
	for c, v := range n.annotations {
		if _, ok := n.cases[c]; ok {
			nodeValues = append(nodeValues, v)
		}
	}
	return violatesTCloseness(mode, n.name, nodeValues, t, tParam)
}

// pruneUpward excises the violator's entire subtree from the tree, then
// walks its ancestors subtracting the cut set from their cases, detaching
// any ancestor left with no cases in turn (spec.md §4.3 "Upward prune").
//
// By I1 every descendant of the violator has cases ⊆ the violator's cases,
// so once the violator's whole case set is cut out, every descendant's case
// set is cut out too. Mirroring the Python reference's node.parent = None,
// the violator is detached from its own parent before the ancestor walk
// begins, making its subtree unreachable from root in all later
// traversals — findAndCutViolator's pre-order visit and emit.go's walk
// alike — rather than merely clearing the violator's own maps and leaving
// descendants attached with stale entries.
func (t *Tree) pruneUpward(violatorIdx int, cut map[string]struct{}) {
	t.purgeSubtreeSequences(violatorIdx)

	current := violatorIdx
	for current != -1 {
		n := t.at(current)
		for c := range cut {
			delete(n.cases, c)
			delete(n.annotations, c)
		}
		parent := n.parent
		if len(n.cases) == 0 && current != rootIndex {
			t.detachChild(parent, current)
		}
		current = parent
	}
}

// purgeSubtreeSequences removes every full-trace sequence registered in
// root.sequences whose path runs through idx or any of its descendants
// (I3): once idx is excised from the tree, none of those traces can still
// terminate inside it, however deep they were registered.
func (t *Tree) purgeSubtreeSequences(idx int) {
	n := t.at(idx)
	delete(t.sequences, n.sequence)
	for _, child := range n.children {
		t.purgeSubtreeSequences(child)
	}
}

// detachChild removes childIdx from parentIdx's children list and name
// index; the vacated subtree is left unreferenced in the arena.
func (t *Tree) detachChild(parentIdx, childIdx int) {
	n := t.at(parentIdx)
	for i, c := range n.children {
		if c == childIdx {
			n.children = append(n.children[:i], n.children[i+1:]...)
			break
		}
	}
	delete(n.childIdx, t.at(childIdx).name)
}

// redistribute reattaches each cut-out case to the surviving sequence
// nearest its original trace, per spec.md §4.3. Ties are broken by
// ascending string order of the candidate sequence for determinism.
func (t *Tree) redistribute(cut map[string]struct{}) (float64, error) {
	if len(cut) == 0 {
		return 0, nil
	}

	caseIDs := make([]string, 0, len(cut))
	for c := range cut {
		caseIDs = append(caseIDs, c)
	}
	sort.Strings(caseIDs)

	surviving := make([]string, 0, len(t.sequences))
	for s := range t.sequences {
		surviving = append(surviving, s)
	}
	sort.Strings(surviving)

	var distanceAccum float64
	for _, c := range caseIDs {
		original, ok := t.caseToSequence[c]
		if !ok {
			return 0, wrapf(ErrInvariantViolation, "redistributed case %q has no recorded original sequence", c)
		}

		best := ""
		bestDist := infiniteDistanceForEngine
		for _, s := range surviving {
			d, found := t.distances.Distance(original, s)
			if !found {
				return 0, wrapf(ErrInvariantViolation,
					"surviving sequence %q missing from precomputed distance table", s)
			}
			if d < bestDist {
				bestDist = d
				best = s
			}
		}
		if best == "" {
			return 0, wrapf(ErrInvariantViolation, "no surviving sequence to redistribute case %q onto", c)
		}

		t.attachAlong(c, best)
		t.caseToSequence[c] = best
		distanceAccum += float64(bestDist)
	}

	return distanceAccum, nil
}

// infiniteDistanceForEngine mirrors stats' infinite-distance sentinel at
// the engine package boundary, without exporting stats' internal const.
const infiniteDistanceForEngine = 1 << 30

// attachAlong adds case c to root.cases and to the cases set of every
// existing node along sequence s, in order. No new nodes are created
// (spec.md §4.3: "existing children only"); no annotation is written.
func (t *Tree) attachAlong(c, s string) {
	t.at(rootIndex).cases[c] = struct{}{}

	current := rootIndex
	for _, activity := range tokenize(s) {
		childIdx, ok := t.childByName(current, activity)
		if !ok {
			// Invariant violation: s is in root.sequences but its path does
			// not exist. Never reached when the distance table was built
			// from the same tree that owns root.sequences.
			return
		}
		t.at(childIdx).cases[c] = struct{}{}
		current = childIdx
	}
}
