package classical

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// OneWayANOVA decomposes variance across groups. Effect size is eta squared,
// the share of total variance explained by group membership. Empty groups are
// ignored.
func OneWayANOVA(groups [][]float64) (Result, error) {
	var kept [][]float64
	var all []float64
	for _, g := range groups {
		if len(g) > 0 {
			kept = append(kept, g)
			all = append(all, g...)
		}
	}
	k, n := len(kept), len(all)
	if k < 2 {
		return Result{}, insufficient("anova groups", k, 2)
	}
	if n <= k {
		return Result{}, insufficient("anova observations", n, k+1)
	}

	grand, err := stats.Mean(all)
	if err != nil {
		return Result{}, err
	}

	ssb, ssw := 0.0, 0.0
	for _, g := range kept {
		m, err := stats.Mean(g)
		if err != nil {
			return Result{}, err
		}
		ssb += float64(len(g)) * (m - grand) * (m - grand)
		for _, v := range g {
			ssw += (v - m) * (v - m)
		}
	}
	sst := ssb + ssw

	df1, df2 := float64(k-1), float64(n-k)
	eta := 0.0
	if sst > 0 {
		eta = ssb / sst
	}

	f, p := 0.0, 1.0
	switch {
	case ssw > 0:
		f = (ssb / df1) / (ssw / df2)
		p = 1 - distuv.F{D1: df1, D2: df2}.CDF(f)
	case ssb > 0:
		f, p = math.Inf(1), 0
	}

	return Result{
		Name:             "one_way_anova",
		Statistic:        f,
		DegreesOfFreedom: df1,
		PValue:           clampP(p),
		EffectSize:       eta,
		EffectSizeName:   "eta_squared",
		N:                n,
	}, nil
}
