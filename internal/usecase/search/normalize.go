package search

import "math"

// zScore standardizes raw scores to zero mean and unit variance over the
// list. Lists with fewer than two elements, or with zero variance, normalize
// to all zeros instead of dividing by zero.
func zScore(xs []float64) []float64 {
	out := make([]float64, len(xs))
	if len(xs) < 2 {
		return out
	}

	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var variance float64
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))

	sigma := math.Sqrt(variance)
	if sigma == 0 {
		return out
	}

	for i, x := range xs {
		out[i] = (x - mean) / sigma
	}
	return out
}
