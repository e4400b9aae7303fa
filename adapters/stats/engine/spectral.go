package engine

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"glyphstat/domain/core"
)

// Spectrum is the leading eigenstructure of a normalized compatibility matrix.
type Spectrum struct {
	// Eigenvalues sorted by decreasing magnitude, all of them.
	Eigenvalues []float64 `json:"eigenvalues"`
	// ExplainedVariance[r] is the share of squared spectral mass in rank r.
	ExplainedVariance []float64 `json:"explained_variance"`
	// Cumulative[r] is the share captured by ranks 0..r.
	Cumulative []float64 `json:"cumulative"`
	// Embedding holds k coordinates per row of the input.
	Embedding [][]float64 `json:"embedding"`
}

// MinimalRank returns the smallest rank whose cumulative share reaches target.
func (s *Spectrum) MinimalRank(target float64) int {
	for r, c := range s.Cumulative {
		if c >= target {
			return r + 1
		}
	}
	return len(s.Cumulative)
}

// SpectralEmbedding symmetrizes m, normalizes it by degree as
// D^-1/2 S D^-1/2, and returns the top-k eigenvectors by eigenvalue magnitude.
// Rows with zero degree stay zero.
func SpectralEmbedding(m *Matrix, k int) (*Spectrum, error) {
	n, c := m.Dims()
	if n != c {
		return nil, core.NewValidationError("matrix", fmt.Sprintf("spectral embedding needs a square matrix, got %dx%d", n, c))
	}
	if k < 1 || k > n {
		return nil, core.NewValidationError("k", fmt.Sprintf("%d outside [1,%d]", k, n))
	}

	degree := make([]float64, n)
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := (m.At(i, j) + m.At(j, i)) / 2
			if v < 0 {
				return nil, core.NewValidationError("matrix", "negative entry in compatibility matrix")
			}
			sym.SetSym(i, j, v)
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			degree[i] += sym.At(i, j)
		}
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if degree[i] == 0 || degree[j] == 0 {
				sym.SetSym(i, j, 0)
				continue
			}
			sym.SetSym(i, j, sym.At(i, j)/math.Sqrt(degree[i]*degree[j]))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, fmt.Errorf("%w: eigendecomposition did not converge", core.ErrNormalization)
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return math.Abs(values[order[a]]) > math.Abs(values[order[b]])
	})

	spec := &Spectrum{
		Eigenvalues:       make([]float64, n),
		ExplainedVariance: make([]float64, n),
		Cumulative:        make([]float64, n),
		Embedding:         make([][]float64, n),
	}
	mass := 0.0
	for _, v := range values {
		mass += v * v
	}
	running := 0.0
	for r, idx := range order {
		spec.Eigenvalues[r] = values[idx]
		if mass > 0 {
			spec.ExplainedVariance[r] = values[idx] * values[idx] / mass
		}
		running += spec.ExplainedVariance[r]
		spec.Cumulative[r] = running
	}
	for i := 0; i < n; i++ {
		row := make([]float64, k)
		for r := 0; r < k; r++ {
			row[r] = vectors.At(i, order[r])
		}
		spec.Embedding[i] = row
	}
	return spec, nil
}
