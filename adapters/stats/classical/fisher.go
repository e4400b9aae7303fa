package classical

import (
	"fmt"
	"math"

	"glyphstat/domain/core"
)

// FisherExact2x2 runs the two-sided Fisher exact test on
//
//	| a b |
//	| c d |
//
// summing every table with the observed margins that is no more probable than
// the observed one. Effect size is the odds ratio with a 0.5 continuity
// correction when any cell is zero.
func FisherExact2x2(a, b, c, d int) (Result, error) {
	if a < 0 || b < 0 || c < 0 || d < 0 {
		return Result{}, fmt.Errorf("%w: negative cell in 2x2 table", core.ErrInvalidInput)
	}
	n := a + b + c + d
	if n == 0 {
		return Result{}, insufficient("2x2 table", 0, 1)
	}

	row1, col1 := a+b, a+c
	lo := max(0, row1+col1-n)
	hi := min(row1, col1)

	observed := hypergeomLogP(a, row1, col1, n)
	p := 0.0
	for x := lo; x <= hi; x++ {
		lp := hypergeomLogP(x, row1, col1, n)
		if lp <= observed+1e-7 {
			p += math.Exp(lp)
		}
	}

	fa, fb, fc, fd := float64(a), float64(b), float64(c), float64(d)
	if a == 0 || b == 0 || c == 0 || d == 0 {
		fa, fb, fc, fd = fa+0.5, fb+0.5, fc+0.5, fd+0.5
	}

	return Result{
		Name:           "fisher_exact",
		Statistic:      float64(a),
		PValue:         clampP(p),
		EffectSize:     (fa * fd) / (fb * fc),
		EffectSizeName: "odds_ratio",
		N:              n,
	}, nil
}

func hypergeomLogP(x, row1, col1, n int) float64 {
	return logChoose(col1, x) + logChoose(n-col1, row1-x) - logChoose(n, row1)
}

func logChoose(n, k int) float64 {
	a, _ := math.Lgamma(float64(n + 1))
	b, _ := math.Lgamma(float64(k + 1))
	c, _ := math.Lgamma(float64(n - k + 1))
	return a - b - c
}
