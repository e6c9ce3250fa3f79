package stats

import (
	"math"
	"math/rand"
	"sort"
)

// WassersteinDistance computes the 1-D Earth Mover's Distance between two
// empirical distributions: the L1 integral of the difference between the
// two empirical CDFs, evaluated over the intervals between consecutive
// values of both samples merged and sorted (works for unequal sample
// counts).
//
// Grounded on scipy.stats.wasserstein_distance's all-values merge-and-sort
// approach (original_source/pretsa.py calls it directly); reimplemented
// here over plain []float64 since no statistics library is present
// anywhere in the example pack (see DESIGN.md).
func WassersteinDistance(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	as := append([]float64(nil), a...)
	bs := append([]float64(nil), b...)
	sort.Float64s(as)
	sort.Float64s(bs)

	// Merge all distinct values from both samples; integrate |CDF_a - CDF_b|
	// over each interval between consecutive merged values, weighting by
	// interval width, which is the standard 1-D Wasserstein formula.
	all := make([]float64, 0, len(as)+len(bs))
	all = append(all, as...)
	all = append(all, bs...)
	sort.Float64s(all)

	var distance float64
	na, nb := float64(len(as)), float64(len(bs))
	for i := 0; i < len(all)-1; i++ {
		x0, x1 := all[i], all[i+1]
		width := x1 - x0
		if width <= 0 {
			continue
		}
		cdfA := float64(upperBound(as, x0)) / na
		cdfB := float64(upperBound(bs, x0)) / nb
		distance += math.Abs(cdfA-cdfB) * width
	}
	return distance
}

// upperBound returns the count of elements in the sorted slice <= x.
func upperBound(sorted []float64, x float64) int {
	idx := sort.Search(len(sorted), func(i int) bool { return sorted[i] > x })
	return idx
}

// NormalityPValue runs the D'Agostino K² omnibus normality test and
// returns its p-value. Requires at least 8 samples (scipy.stats.normaltest's
// own floor, preserved per original_source/pretsa.py's `len(...) >= 8`
// gate). Callers below that threshold should treat the distribution as
// "not rejected" (spec.md §4.4: p defaults to 1.0 effectively).
func NormalityPValue(samples []float64) float64 {
	n := float64(len(samples))
	if n < 8 {
		return 1.0
	}

	mean, sd := meanStdDev(samples)
	if sd == 0 {
		return 1.0
	}

	var s3, s4 float64
	for _, v := range samples {
		z := (v - mean) / sd
		s3 += z * z * z
		s4 += z * z * z * z
	}
	skew := s3 / n
	kurt := s4/n - 3.0

	zSkew := skewnessZScore(skew, n)
	zKurt := kurtosisZScore(kurt, n)

	k2 := zSkew*zSkew + zKurt*zKurt
	return chiSquaredSurvival(k2, 2)
}

// skewnessZScore transforms the sample skewness into an approximately
// standard-normal Z statistic, following D'Agostino & Pearson (1973).
func skewnessZScore(g1, n float64) float64 {
	y := g1 * math.Sqrt((n+1)*(n+3)/(6*(n-2)))
	beta2 := (3 * (n*n + 27*n - 70) * (n + 1) * (n + 3)) / ((n - 2) * (n + 5) * (n + 7) * (n + 9))
	w2 := -1 + math.Sqrt(2*(beta2-1))
	delta := 1 / math.Sqrt(0.5*math.Log(w2))
	alpha := math.Sqrt(2 / (w2 - 1))
	ratio := y / alpha
	if ratio <= -1 {
		ratio = -1 + 1e-9
	}
	return delta * math.Log(ratio+math.Sqrt(ratio*ratio+1))
}

// kurtosisZScore transforms excess kurtosis into an approximately
// standard-normal Z statistic, following Anscombe & Glynn (1983).
func kurtosisZScore(g2, n float64) float64 {
	ex := 3 * (n - 1) / (n + 1)
	varB2 := 24 * n * (n - 2) * (n - 3) / ((n + 1) * (n + 1) * (n + 3) * (n + 5))
	sqrtB1 := 6 * (n*n - 5*n + 2) / ((n + 7) * (n + 9)) * math.Sqrt(6*(n+3)*(n+5)/(n*(n-2)*(n-3)))
	x := (g2 + 3 - ex) / math.Sqrt(varB2) // g2+3 = b2 (non-excess kurtosis); ex = E[b2]
	beta1 := sqrtB1 * sqrtB1
	a := 6 + 8/sqrtB1*(2/sqrtB1+math.Sqrt(1+4/beta1))
	term := 1 - 2/a
	denom := 1 + x*math.Sqrt(2/(a-4))
	if denom <= 0 {
		denom = 1e-9
	}
	inner := (1 - 2/(9*a)) - math.Cbrt(term/denom)
	return inner / math.Sqrt(2/(9*a))
}

// chiSquaredSurvival returns P(X >= x) for a chi-squared distribution with
// the given integer degrees of freedom, used here only for df=2 where the
// survival function has the closed form exp(-x/2).
func chiSquaredSurvival(x float64, df int) float64 {
	if df == 2 {
		return math.Exp(-x / 2)
	}
	// Not needed by this engine (K² always combines two Z-scores into a
	// df=2 statistic), kept defensive rather than panicking.
	return math.Exp(-x / 2)
}

// MeanStdDev returns the population mean and standard deviation of
// samples, exported for callers that draw from Normal(mean, stdev) fitted
// to an activity's global duration list (spec.md §4.4).
func MeanStdDev(samples []float64) (mean, sd float64) {
	return meanStdDev(samples)
}

func meanStdDev(samples []float64) (mean, sd float64) {
	n := float64(len(samples))
	var sum float64
	for _, v := range samples {
		sum += v
	}
	mean = sum / n
	var sq float64
	for _, v := range samples {
		d := v - mean
		sq += d * d
	}
	sd = math.Sqrt(sq / n)
	return
}

// BucketUpperBounds derives the upper boundary of each quantile bucket
// from a sorted copy of dist, per spec.md §4.2 stochastic mode:
// round(t+1) buckets, width = floor(len/numBuckets), numBuckets-1 upper
// bounds reported (the final, implicit bucket has no upper bound).
func BucketUpperBounds(t float64, dist []float64) []float64 {
	numBuckets := int(math.Round(t + 1))
	if numBuckets < 1 {
		numBuckets = 1
	}
	sorted := append([]float64(nil), dist...)
	sort.Float64s(sorted)

	divider := len(sorted) / numBuckets
	bounds := make([]float64, 0, numBuckets-1)
	for i := 1; i < numBuckets; i++ {
		idx := i * divider
		if idx > len(sorted)-1 {
			idx = len(sorted) - 1
		}
		bounds = append(bounds, sorted[idx])
	}
	return bounds
}

// LaplaceSample draws one sample from Laplace(0, scale) using the inverse
// CDF method, matching np.random.laplace's parameterization
// (original_source/pretsa.py: np.random.laplace(0, 1/epsilon)).
func LaplaceSample(rng *rand.Rand, scale float64) float64 {
	u := rng.Float64() - 0.5
	sign := 1.0
	if u < 0 {
		sign = -1.0
	}
	return -scale * sign * math.Log(1-2*math.Abs(u))
}

// NormalSample draws one N(mean, stdDev) sample.
func NormalSample(rng *rand.Rand, mean, stdDev float64) float64 {
	return rng.NormFloat64()*stdDev + mean
}
