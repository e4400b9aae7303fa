package classical

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"glyphstat/domain/core"
)

// Spearman computes the rank correlation of x and y with a t-approximation
// two-sided p-value. Ties receive average ranks.
func Spearman(x, y []float64) (Result, error) {
	if len(x) != len(y) {
		return Result{}, fmt.Errorf("%w: samples of length %d and %d", core.ErrInvalidInput, len(x), len(y))
	}
	n := len(x)
	if n < 3 {
		return Result{}, insufficient("spearman sample", n, 3)
	}

	rx, _ := ranks(x)
	ry, _ := ranks(y)
	rho := stat.Correlation(rx, ry, nil)
	if math.IsNaN(rho) {
		// constant input
		rho = 0
	}
	rho = math.Max(-1, math.Min(1, rho))

	p := 0.0
	if math.Abs(rho) < 1 {
		t := rho * math.Sqrt(float64(n-2)/(1-rho*rho))
		dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
		p = 2 * (1 - dist.CDF(math.Abs(t)))
	}

	return Result{
		Name:             "spearman",
		Statistic:        rho,
		DegreesOfFreedom: float64(n - 2),
		PValue:           clampP(p),
		EffectSize:       rho,
		EffectSizeName:   "rho",
		N:                n,
	}, nil
}

// MannWhitney compares two independent samples by the U statistic of x using
// the tie-corrected normal approximation with continuity correction. Effect
// size is the rank-biserial correlation, positive when x tends to exceed y.
func MannWhitney(x, y []float64) (Result, error) {
	n1, n2 := len(x), len(y)
	if n1 < 1 || n2 < 1 {
		return Result{}, insufficient("mann-whitney group", min(n1, n2), 1)
	}

	pooled := make([]float64, 0, n1+n2)
	pooled = append(pooled, x...)
	pooled = append(pooled, y...)
	r, ties := ranks(pooled)

	r1 := 0.0
	for i := 0; i < n1; i++ {
		r1 += r[i]
	}
	f1, f2 := float64(n1), float64(n2)
	n := f1 + f2
	u1 := r1 - f1*(f1+1)/2

	mean := f1 * f2 / 2
	variance := f1 * f2 / 12 * ((n + 1) - ties/(n*(n-1)))
	p := 1.0
	if variance > 0 {
		z := (math.Abs(u1-mean) - 0.5) / math.Sqrt(variance)
		if z < 0 {
			z = 0
		}
		p = 2 * (1 - distuv.UnitNormal.CDF(z))
	}

	return Result{
		Name:           "mann_whitney_u",
		Statistic:      u1,
		PValue:         clampP(p),
		EffectSize:     2*u1/(f1*f2) - 1,
		EffectSizeName: "rank_biserial",
		N:              n1 + n2,
	}, nil
}

// KolmogorovSmirnov runs the two-sample test with the asymptotic Kolmogorov
// distribution. Effect size is the statistic D itself.
func KolmogorovSmirnov(x, y []float64) (Result, error) {
	n1, n2 := len(x), len(y)
	if n1 < 1 || n2 < 1 {
		return Result{}, insufficient("ks sample", min(n1, n2), 1)
	}
	a := sortedCopy(x)
	b := sortedCopy(y)

	d := 0.0
	i, j := 0, 0
	for i < n1 && j < n2 {
		v := math.Min(a[i], b[j])
		for i < n1 && a[i] <= v {
			i++
		}
		for j < n2 && b[j] <= v {
			j++
		}
		diff := math.Abs(float64(i)/float64(n1) - float64(j)/float64(n2))
		if diff > d {
			d = diff
		}
	}

	ne := float64(n1) * float64(n2) / float64(n1+n2)
	sq := math.Sqrt(ne)
	p := kolmogorovQ((sq + 0.12 + 0.11/sq) * d)

	return Result{
		Name:           "kolmogorov_smirnov",
		Statistic:      d,
		PValue:         clampP(p),
		EffectSize:     d,
		EffectSizeName: "d",
		N:              n1 + n2,
	}, nil
}

// kolmogorovQ is the survival function of the Kolmogorov distribution.
func kolmogorovQ(lambda float64) float64 {
	if lambda < 1e-3 {
		return 1
	}
	sum := 0.0
	sign := 1.0
	for k := 1; k <= 100; k++ {
		term := sign * math.Exp(-2*float64(k*k)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-12 {
			break
		}
		sign = -sign
	}
	return 2 * sum
}
