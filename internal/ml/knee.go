package ml

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// KneeSensitivity is the Kneedle S parameter: how many average x-steps the difference
// curve must fall below a local maximum before that maximum counts as a knee.
const KneeSensitivity = 1.0

// FindKnee locates the elbow of a convex, decreasing curve (such as inertia against k)
// with the Kneedle algorithm and returns the first knee found. x must be strictly
// increasing. ok is false when the curve has no knee, e.g. a straight line.
func FindKnee(x, y []float64) (knee float64, ok bool) {
	n := len(x)
	if n < 3 || len(y) != n {
		return 0, false
	}
	xn := normalize(x)
	yn := normalize(y)
	if xn == nil || yn == nil {
		return 0, false
	}
	// Convex decreasing: flip y so the curve becomes concave increasing.
	diff := make([]float64, n)
	for i := range diff {
		diff[i] = (1 - yn[i]) - xn[i]
	}

	steps := make([]float64, n-1)
	for i := 1; i < n; i++ {
		steps[i-1] = xn[i] - xn[i-1]
	}
	delta := KneeSensitivity * stat.Mean(steps, nil)

	maxima := localExtrema(diff, func(a, b float64) bool { return a >= b })
	minima := localExtrema(diff, func(a, b float64) bool { return a <= b })
	isMax := make([]bool, n)
	for _, i := range maxima {
		isMax[i] = true
	}
	isMin := make([]bool, n)
	for _, i := range minima {
		isMin[i] = true
	}

	threshold := 0.0
	thresholdIdx := -1
	for i := 0; i < n; i++ {
		// The last point can only close a knee, never open one.
		if i < maxima[0] {
			continue
		}
		if isMax[i] {
			thresholdIdx = i
			threshold = diff[i] - delta
		}
		if isMin[i] {
			threshold = 0
		}
		if thresholdIdx < 0 || i+1 >= n {
			continue
		}
		if diff[i+1] < threshold {
			return x[thresholdIdx], true
		}
	}
	return 0, false
}

// localExtrema returns the indices where cmp holds against both neighbours. The
// endpoints are compared against themselves, so a monotone edge counts.
func localExtrema(v []float64, cmp func(a, b float64) bool) []int {
	n := len(v)
	var out []int
	for i := 0; i < n; i++ {
		left, right := v[max(i-1, 0)], v[min(i+1, n-1)]
		if cmp(v[i], left) && cmp(v[i], right) {
			out = append(out, i)
		}
	}
	return out
}

func normalize(v []float64) []float64 {
	lo, hi := floats.Min(v), floats.Max(v)
	if hi == lo {
		return nil
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = (x - lo) / (hi - lo)
	}
	return out
}
