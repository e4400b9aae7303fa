package classical

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"glyphstat/domain/core"
)

// ChiSquareIndependence tests independence of rows and columns of a count
// table. All-zero rows and columns are dropped first. Effect size is Cramér's V.
func ChiSquareIndependence(table [][]float64) (Result, error) {
	table, err := compact(table)
	if err != nil {
		return Result{}, err
	}
	rows, cols := len(table), len(table[0])
	if rows < 2 || cols < 2 {
		return Result{}, insufficient("contingency table", min(rows, cols), 2)
	}

	rowSum := make([]float64, rows)
	colSum := make([]float64, cols)
	total := 0.0
	for i, row := range table {
		for j, v := range row {
			rowSum[i] += v
			colSum[j] += v
			total += v
		}
	}

	chi := 0.0
	for i, row := range table {
		for j, v := range row {
			expected := rowSum[i] * colSum[j] / total
			d := v - expected
			chi += d * d / expected
		}
	}

	df := float64((rows - 1) * (cols - 1))
	p := distuv.ChiSquared{K: df}.Survival(chi)
	v := math.Sqrt(chi / (total * float64(min(rows, cols)-1)))

	return Result{
		Name:             "chi_square_independence",
		Statistic:        chi,
		DegreesOfFreedom: df,
		PValue:           clampP(p),
		EffectSize:       v,
		EffectSizeName:   "cramers_v",
		N:                int(total),
	}, nil
}

// ChiSquareHomogeneity tests whether two count vectors over the same
// categories come from one distribution.
func ChiSquareHomogeneity(a, b []float64) (Result, error) {
	if len(a) != len(b) {
		return Result{}, fmt.Errorf("%w: category vectors of length %d and %d", core.ErrInvalidInput, len(a), len(b))
	}
	r, err := ChiSquareIndependence([][]float64{a, b})
	if err != nil {
		return Result{}, err
	}
	r.Name = "chi_square_homogeneity"
	return r, nil
}

func compact(table [][]float64) ([][]float64, error) {
	if len(table) == 0 {
		return nil, insufficient("contingency table", 0, 2)
	}
	cols := len(table[0])
	rowKeep := make([]bool, len(table))
	colKeep := make([]bool, cols)
	for i, row := range table {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: ragged contingency table", core.ErrInvalidInput)
		}
		for j, v := range row {
			if v < 0 || math.IsNaN(v) {
				return nil, fmt.Errorf("%w: cell (%d,%d) = %v", core.ErrInvalidInput, i, j, v)
			}
			if v > 0 {
				rowKeep[i] = true
				colKeep[j] = true
			}
		}
	}

	var out [][]float64
	for i, row := range table {
		if !rowKeep[i] {
			continue
		}
		var kept []float64
		for j, v := range row {
			if colKeep[j] {
				kept = append(kept, v)
			}
		}
		out = append(out, kept)
	}
	if len(out) == 0 {
		return nil, insufficient("contingency table", 0, 2)
	}
	return out, nil
}
