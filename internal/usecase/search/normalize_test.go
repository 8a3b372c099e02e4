package search

import (
	"math"
	"testing"
)

func TestZScore_MeanAndVariance(t *testing.T) {
	out := zScore([]float64{1, 2, 3, 4, 5})

	var mean float64
	for _, v := range out {
		mean += v
	}
	mean /= float64(len(out))
	if math.Abs(mean) > 1e-9 {
		t.Errorf("expected zero mean, got %f", mean)
	}

	var variance float64
	for _, v := range out {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(out))
	if math.Abs(variance-1) > 1e-9 {
		t.Errorf("expected unit variance, got %f", variance)
	}
}

func TestZScore_PreservesOrder(t *testing.T) {
	out := zScore([]float64{3.5, 1.0, 2.7, 9.9})
	for i := 1; i < len(out); i++ {
		for j := 0; j < i; j++ {
			in := []float64{3.5, 1.0, 2.7, 9.9}
			if (in[i] > in[j]) != (out[i] > out[j]) {
				t.Errorf("order not preserved between index %d and %d", i, j)
			}
		}
	}
}

func TestZScore_ConstantInput(t *testing.T) {
	out := zScore([]float64{7, 7, 7, 7})
	for i, v := range out {
		if v != 0 {
			t.Errorf("expected 0 at index %d, got %f", i, v)
		}
	}
}

func TestZScore_ShortInput(t *testing.T) {
	if out := zScore([]float64{42}); len(out) != 1 || out[0] != 0 {
		t.Errorf("single element should normalize to [0], got %v", out)
	}
	if out := zScore(nil); len(out) != 0 {
		t.Errorf("nil input should yield empty output, got %v", out)
	}
}
