package engine

import (
	"math"

	"github.com/rawblock/eventlog-pretsa/internal/stats"
)

// Mode selects the t-closeness test applied at each node, per spec.md §4.2.
type Mode int

const (
	// ModeStandard compares each activity's node-local duration
	// distribution to the global distribution via Wasserstein distance,
	// violating t-closeness when the distance exceeds t (pretsa.py's
	// _violatesTCloseness).
	ModeStandard Mode = iota
	// ModeStochastic buckets the global distribution into round(t+1)
	// quantile buckets and compares node-local bucket masses against the
	// global bucket masses (pretsa.py's _violatesStochasticTCloseness).
	ModeStochastic
)

func (m Mode) String() string {
	if m == ModeStochastic {
		return "stochastic"
	}
	return "standard"
}

// violatesKAnonymity reports whether a node's case count falls below k
// (spec.md §4.2, I1).
func violatesKAnonymity(caseCount, k int) bool {
	return caseCount < k
}

// violatesTCloseness reports whether the node-local distribution for the
// given activity's most recent event differs from the global distribution
// for that activity by more than t, under the given mode.
//
// nodeValues is the set of per-case durations recorded at this node for its
// own activity. Grounded on pretsa.py's _violatesTCloseness and
// _violatesStochasticTCloseness, which operate per-node on the node's own
// activity rather than across all activities on the path to it.
func violatesTCloseness(mode Mode, activity string, nodeValues []float64, tree *Tree, t float64) bool {
	if len(nodeValues) == 0 {
		return false
	}
	global := tree.ActivityData(activity)
	if len(global) == 0 {
		return false
	}

	switch mode {
	case ModeStochastic:
		if tree.IsActivityConstant(activity) {
			return false
		}
		return violatesStochasticTCloseness(nodeValues, global, t)
	default:
		return violatesStandardTCloseness(nodeValues, global, t, tree.ActivityMaxDifference(activity))
	}
}

// violatesStandardTCloseness divides the Wasserstein distance between the
// node-local and global distributions by the global max-min range, and
// compares the normalized distance to t (pretsa.py's
// _violatesTCloseness: wasserstein_distance(...) / maxDifference > t).
func violatesStandardTCloseness(nodeValues, global []float64, t, maxDifference float64) bool {
	if maxDifference == 0 {
		return false
	}
	distance := stats.WassersteinDistance(nodeValues, global) / maxDifference
	return distance > t
}

// violatesStochasticTCloseness buckets the global distribution into
// round(t+1) quantile buckets and compares, per bucket, the probability
// mass of the node-local values against the global mass: the distance
// contribution is max(p_eq/p_all, p_all/p_eq) when both are positive, 0
// when both are zero, and the infinite sentinel when exactly one is zero.
// Violation iff the largest contribution exceeds t (spec.md §4.2).
func violatesStochasticTCloseness(nodeValues, global []float64, t float64) bool {
	bounds := stats.BucketUpperBounds(t, global)
	numBuckets := len(bounds) + 1
	if numBuckets < 1 {
		return false
	}

	allCounts := make([]int, numBuckets)
	for _, v := range global {
		allCounts[bucketOf(v, bounds)]++
	}
	eqCounts := make([]int, numBuckets)
	for _, v := range nodeValues {
		eqCounts[bucketOf(v, bounds)]++
	}

	nAll := float64(len(global))
	nEq := float64(len(nodeValues))
	var maxContribution float64
	for i := 0; i < numBuckets; i++ {
		pAll := float64(allCounts[i]) / nAll
		pEq := float64(eqCounts[i]) / nEq

		var contribution float64
		switch {
		case pAll > 0 && pEq > 0:
			contribution = math.Max(pEq/pAll, pAll/pEq)
		case pAll == 0 && pEq == 0:
			contribution = 0
		default:
			contribution = infiniteRatio
		}
		if contribution > maxContribution {
			maxContribution = contribution
		}
	}
	return maxContribution > t
}

// infiniteRatio is the sentinel bucket-mass ratio used when exactly one of
// the two masses being compared is zero (spec.md §4.2).
const infiniteRatio = 1e18

// bucketOf returns the index of the bucket v falls into, given the sorted
// upper bounds of every bucket but the last.
func bucketOf(v float64, bounds []float64) int {
	for i, b := range bounds {
		if v <= b {
			return i
		}
	}
	return len(bounds)
}
