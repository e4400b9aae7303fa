package classical

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"glyphstat/domain/core"
)

// AdjustedRandIndex measures agreement between two labelings of the same
// items, corrected for chance: 1 for identical partitions, about 0 for
// independent ones.
func AdjustedRandIndex(a, b []int) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: labelings of length %d and %d", core.ErrInvalidInput, len(a), len(b))
	}
	n := len(a)
	if n < 2 {
		return 0, insufficient("ari items", n, 2)
	}

	type pair struct{ x, y int }
	cells := make(map[pair]int)
	rows := make(map[int]int)
	cols := make(map[int]int)
	for i := range a {
		cells[pair{a[i], b[i]}]++
		rows[a[i]]++
		cols[b[i]]++
	}

	choose2 := func(k int) float64 { return float64(k) * float64(k-1) / 2 }
	index := 0.0
	for _, c := range cells {
		index += choose2(c)
	}
	sumA, sumB := 0.0, 0.0
	for _, c := range rows {
		sumA += choose2(c)
	}
	for _, c := range cols {
		sumB += choose2(c)
	}

	expected := sumA * sumB / choose2(n)
	maxIndex := (sumA + sumB) / 2
	if maxIndex == expected {
		// both partitions trivial
		return 1, nil
	}
	return (index - expected) / (maxIndex - expected), nil
}

// AdjustedRandPermutation scores the agreement of two labelings by ARI and
// estimates its upper-tail p-value by permuting b. src must be seeded by the
// caller for the result to be reproducible.
func AdjustedRandPermutation(a, b []int, permutations int, src *rand.Rand) (Result, error) {
	observed, err := AdjustedRandIndex(a, b)
	if err != nil {
		return Result{}, err
	}
	if permutations < 1 {
		return Result{}, core.NewValidationError("permutations", "must be positive")
	}
	shuffled := append([]int(nil), b...)
	exceed := 0
	for range permutations {
		src.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		v, err := AdjustedRandIndex(a, shuffled)
		if err != nil {
			return Result{}, err
		}
		if v >= observed-1e-12 {
			exceed++
		}
	}
	return Result{
		Name:           "adjusted_rand",
		Statistic:      observed,
		PValue:         float64(exceed+1) / float64(permutations+1),
		EffectSize:     observed,
		EffectSizeName: "ari",
		N:              len(a),
	}, nil
}

// ModelScore is the BIC of one categorical model of an outcome.
type ModelScore struct {
	Name          string  `json:"name"`
	LogLikelihood float64 `json:"log_likelihood"`
	Parameters    int     `json:"parameters"`
	BIC           float64 `json:"bic"`
	DeltaBIC      float64 `json:"delta_bic"`
}

// NullModelName is the intercept-only model included in every comparison.
const NullModelName = "none"

// CompareCategoricalModels scores each categorical predictor of outcome y by
// BIC (lower is better), alongside the intercept-only model. Results are
// sorted by BIC with DeltaBIC relative to the best.
func CompareCategoricalModels(y []int, predictors map[string][]int) ([]ModelScore, error) {
	n := len(y)
	if n < 2 {
		return nil, insufficient("bic observations", n, 2)
	}
	yLevels := distinct(y)
	logN := math.Log(float64(n))

	yCounts := make(map[int]int)
	for _, v := range y {
		yCounts[v]++
	}
	ll := 0.0
	for _, c := range yCounts {
		ll += float64(c) * math.Log(float64(c)/float64(n))
	}
	k := yLevels - 1
	scores := []ModelScore{{Name: NullModelName, LogLikelihood: ll, Parameters: k, BIC: -2*ll + float64(k)*logN}}

	names := make([]string, 0, len(predictors))
	for name := range predictors {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		x := predictors[name]
		if len(x) != n {
			return nil, fmt.Errorf("%w: predictor %q has %d values for %d observations", core.ErrInvalidInput, name, len(x), n)
		}
		joint := make(map[[2]int]int)
		xCounts := make(map[int]int)
		for i := range x {
			joint[[2]int{x[i], y[i]}]++
			xCounts[x[i]]++
		}
		ll := 0.0
		for key, c := range joint {
			ll += float64(c) * math.Log(float64(c)/float64(xCounts[key[0]]))
		}
		k := len(xCounts) * (yLevels - 1)
		scores = append(scores, ModelScore{Name: name, LogLikelihood: ll, Parameters: k, BIC: -2*ll + float64(k)*logN})
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].BIC < scores[j].BIC })
	for i := range scores {
		scores[i].DeltaBIC = scores[i].BIC - scores[0].BIC
	}
	return scores, nil
}

// BICComparison tests whether predictor x improves a categorical model of y
// over the intercept-only model. The statistic is the likelihood-ratio G with
// its chi-square p-value; the effect is the null model's BIC minus the
// predictor model's, positive when x is preferred.
func BICComparison(y, x []int) (Result, error) {
	if len(x) != len(y) {
		return Result{}, fmt.Errorf("%w: predictor has %d values for %d observations", core.ErrInvalidInput, len(x), len(y))
	}
	if levels := distinct(x); levels < 2 {
		return Result{}, insufficient("bic predictor levels", levels, 2)
	}
	scores, err := CompareCategoricalModels(y, map[string][]int{"predictor": x})
	if err != nil {
		return Result{}, err
	}
	var null, model ModelScore
	for _, sc := range scores {
		if sc.Name == NullModelName {
			null = sc
		} else {
			model = sc
		}
	}
	df := model.Parameters - null.Parameters
	if df < 1 {
		return Result{}, insufficient("bic outcome levels", distinct(y), 2)
	}
	g := math.Max(0, 2*(model.LogLikelihood-null.LogLikelihood))
	return Result{
		Name:             "bic_compare",
		Statistic:        g,
		DegreesOfFreedom: float64(df),
		PValue:           clampP(distuv.ChiSquared{K: float64(df)}.Survival(g)),
		EffectSize:       null.BIC - model.BIC,
		EffectSizeName:   "delta_bic",
		N:                len(y),
	}, nil
}

func distinct(v []int) int {
	seen := make(map[int]struct{})
	for _, x := range v {
		seen[x] = struct{}{}
	}
	return len(seen)
}
