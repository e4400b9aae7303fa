// Package classical implements closed-form significance tests over count
// tables and samples.
package classical

import (
	"math"
	"sort"

	"glyphstat/domain/core"
)

// Result is the outcome of one closed-form test.
type Result struct {
	Name             string  `json:"name"`
	Statistic        float64 `json:"statistic"`
	DegreesOfFreedom float64 `json:"degrees_of_freedom,omitempty"`
	PValue           float64 `json:"p_value"`
	EffectSize       float64 `json:"effect_size"`
	EffectSizeName   string  `json:"effect_size_name"`
	N                int     `json:"n"`
}

func insufficient(subject string, observed, required int) error {
	return &core.InsufficientSampleError{Subject: subject, Observed: observed, Required: required}
}

// ranks returns average ranks (1-based) and the tie correction term
// sum(t^3 - t) over tie groups.
func ranks(values []float64) ([]float64, float64) {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	out := make([]float64, n)
	ties := 0.0
	for i := 0; i < n; {
		j := i + 1
		for j < n && values[idx[j]] == values[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			out[idx[k]] = avg
		}
		t := float64(j - i)
		ties += t*t*t - t
		i = j
	}
	return out, ties
}

func clampP(p float64) float64 {
	if math.IsNaN(p) {
		return 1
	}
	return math.Max(0, math.Min(1, p))
}

func sortedCopy(v []float64) []float64 {
	out := append([]float64(nil), v...)
	sort.Float64s(out)
	return out
}
