package classical

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glyphstat/domain/core"
)

func TestChiSquareIndependence(t *testing.T) {
	r, err := ChiSquareIndependence([][]float64{{10, 20}, {20, 10}})
	require.NoError(t, err)

	assert.InDelta(t, 6.6667, r.Statistic, 1e-3)
	assert.Equal(t, 1.0, r.DegreesOfFreedom)
	assert.InDelta(t, 0.00982, r.PValue, 1e-4)
	assert.InDelta(t, 1.0/3, r.EffectSize, 1e-9)
	assert.Equal(t, 60, r.N)
}

func TestChiSquareIndependence_DropsEmptyMargins(t *testing.T) {
	withEmpty, err := ChiSquareIndependence([][]float64{{10, 0, 20}, {0, 0, 0}, {20, 0, 10}})
	require.NoError(t, err)
	plain, err := ChiSquareIndependence([][]float64{{10, 20}, {20, 10}})
	require.NoError(t, err)
	assert.Equal(t, plain, withEmpty)

	_, err = ChiSquareIndependence([][]float64{{5, 5}, {0, 0}})
	assert.ErrorIs(t, err, core.ErrInsufficientSample)

	_, err = ChiSquareIndependence([][]float64{{5, 5}, {1}})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestChiSquareHomogeneity_IdenticalProfiles(t *testing.T) {
	r, err := ChiSquareHomogeneity([]float64{30, 20, 10}, []float64{60, 40, 20})
	require.NoError(t, err)
	assert.InDelta(t, 0, r.Statistic, 1e-12)
	assert.InDelta(t, 1, r.PValue, 1e-12)
}

func TestFisherExact2x2_TeaTasting(t *testing.T) {
	r, err := FisherExact2x2(3, 1, 1, 3)
	require.NoError(t, err)
	assert.InDelta(t, 0.4857, r.PValue, 1e-4)
	assert.InDelta(t, 9, r.EffectSize, 1e-9)

	r, err = FisherExact2x2(10, 0, 0, 10)
	require.NoError(t, err)
	assert.Less(t, r.PValue, 1e-4)
	assert.Greater(t, r.EffectSize, 1.0)
}

func TestSpearman(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = v * v
	}
	r, err := Spearman(x, y)
	require.NoError(t, err)
	assert.InDelta(t, 1, r.Statistic, 1e-12)
	assert.Less(t, r.PValue, 1e-6)

	rev := make([]float64, len(x))
	for i := range x {
		rev[i] = -y[i]
	}
	r, err = Spearman(x, rev)
	require.NoError(t, err)
	assert.InDelta(t, -1, r.Statistic, 1e-12)

	_, err = Spearman([]float64{1, 2}, []float64{1, 2})
	assert.ErrorIs(t, err, core.ErrInsufficientSample)
}

func TestMannWhitney(t *testing.T) {
	r, err := MannWhitney([]float64{1, 2, 3}, []float64{4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Statistic)
	assert.Equal(t, -1.0, r.EffectSize)
	assert.InDelta(t, 0.0809, r.PValue, 1e-3)

	r, err = MannWhitney([]float64{1, 2, 3, 4}, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 0, r.EffectSize, 1e-12)
	assert.InDelta(t, 1, r.PValue, 1e-12)
}

func TestKolmogorovSmirnov(t *testing.T) {
	same := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
	r, err := KolmogorovSmirnov(same, same)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Statistic)
	assert.Equal(t, 1.0, r.PValue)

	lo := make([]float64, 50)
	hi := make([]float64, 50)
	for i := range lo {
		lo[i] = float64(i) / 100
		hi[i] = 0.5 + float64(i)/100
	}
	r, err = KolmogorovSmirnov(lo, hi)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.Statistic)
	assert.Less(t, r.PValue, 1e-6)
}

func TestOneWayANOVA(t *testing.T) {
	r, err := OneWayANOVA([][]float64{{1, 2, 3}, {4, 5, 6}, {}})
	require.NoError(t, err)
	assert.InDelta(t, 13.5, r.Statistic, 1e-9)
	assert.InDelta(t, 13.5/17.5, r.EffectSize, 1e-9)
	assert.Less(t, r.PValue, 0.05)

	_, err = OneWayANOVA([][]float64{{1, 2, 3}})
	assert.ErrorIs(t, err, core.ErrInsufficientSample)
}

func TestAdjustedRandIndex(t *testing.T) {
	a := []int{0, 0, 0, 1, 1, 1, 2, 2, 2}
	relabeled := []int{5, 5, 5, 3, 3, 3, 9, 9, 9}
	ari, err := AdjustedRandIndex(a, relabeled)
	require.NoError(t, err)
	assert.InDelta(t, 1, ari, 1e-12)

	mixed := []int{0, 1, 2, 0, 1, 2, 0, 1, 2}
	ari, err = AdjustedRandIndex(a, mixed)
	require.NoError(t, err)
	assert.Less(t, ari, 0.0)

	_, err = AdjustedRandIndex(a, a[:3])
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestCompareCategoricalModels(t *testing.T) {
	n := 200
	y := make([]int, n)
	informative := make([]int, n)
	noise := make([]int, n)
	for i := 0; i < n; i++ {
		informative[i] = i % 4
		y[i] = informative[i] / 2
		noise[i] = (i * 7 / 3) % 5
	}

	scores, err := CompareCategoricalModels(y, map[string][]int{
		"prefix": informative,
		"noise":  noise,
	})
	require.NoError(t, err)
	require.Len(t, scores, 3)

	assert.Equal(t, "prefix", scores[0].Name)
	assert.Equal(t, 0.0, scores[0].DeltaBIC)
	assert.InDelta(t, 0, scores[0].LogLikelihood, 1e-9)
	for i := 1; i < len(scores); i++ {
		assert.GreaterOrEqual(t, scores[i].BIC, scores[i-1].BIC)
	}
	assert.False(t, math.IsNaN(scores[2].BIC))
}

func TestAdjustedRandPermutation(t *testing.T) {
	var a, same, noise []int
	for i := range 40 {
		a = append(a, i%4)
		same = append(same, (i%4)+10)
		noise = append(noise, (i*7/3)%4)
	}

	res, err := AdjustedRandPermutation(a, same, 499, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.InDelta(t, 1, res.Statistic, 1e-12)
	assert.InDelta(t, 1.0/500, res.PValue, 1e-12)
	assert.Equal(t, "ari", res.EffectSizeName)

	again, err := AdjustedRandPermutation(a, noise, 499, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	repeat, err := AdjustedRandPermutation(a, noise, 499, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, again, repeat)
	assert.Less(t, again.Statistic, 1.0)
	assert.Greater(t, again.PValue, res.PValue)

	_, err = AdjustedRandPermutation(a, same, 0, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestBICComparison(t *testing.T) {
	n := 200
	y := make([]int, n)
	informative := make([]int, n)
	constant := make([]int, n)
	for i := range n {
		informative[i] = i % 4
		y[i] = informative[i] / 2
	}

	res, err := BICComparison(y, informative)
	require.NoError(t, err)
	assert.Equal(t, "delta_bic", res.EffectSizeName)
	assert.Greater(t, res.EffectSize, 10.0)
	assert.Less(t, res.PValue, 1e-10)
	assert.Equal(t, 3.0, res.DegreesOfFreedom)

	_, err = BICComparison(y, constant)
	assert.ErrorIs(t, err, core.ErrInsufficientSample)
	_, err = BICComparison(y, informative[:10])
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
