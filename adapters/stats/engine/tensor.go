package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"glyphstat/adapters/rng"
	"glyphstat/domain/core"
)

// Tensor is a read-only dense three-way count tensor.
type Tensor struct {
	dims [3]int
	data []float64
}

// NewTensor copies values laid out as data[(i*J+j)*K+k].
func NewTensor(i, j, k int, data []float64) (*Tensor, error) {
	if i < 1 || j < 1 || k < 1 || len(data) != i*j*k {
		return nil, core.NewValidationError("tensor", fmt.Sprintf("%d values for shape %dx%dx%d", len(data), i, j, k))
	}
	for _, v := range data {
		if v < 0 || math.IsNaN(v) {
			return nil, core.NewValidationError("tensor", "entries must be non-negative")
		}
	}
	return &Tensor{dims: [3]int{i, j, k}, data: append([]float64(nil), data...)}, nil
}

// Dims returns the tensor shape.
func (t *Tensor) Dims() (int, int, int) { return t.dims[0], t.dims[1], t.dims[2] }

// At returns one cell.
func (t *Tensor) At(i, j, k int) float64 {
	return t.data[(i*t.dims[1]+j)*t.dims[2]+k]
}

// Total returns the sum of all cells.
func (t *Tensor) Total() float64 {
	s := 0.0
	for _, v := range t.data {
		s += v
	}
	return s
}

// TrigramTensor counts class trigrams inside lines.
func (e *StatsEngine) TrigramTensor(ctx context.Context) (*Tensor, error) {
	return cached(e, e.cacheKey("trigram"), func() (*Tensor, error) {
		k := e.assignment.Len()
		t := &Tensor{dims: [3]int{k, k, k}, data: make([]float64, k*k*k)}
		for _, ln := range e.corpus.Lines() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for i := ln.Start; i+2 < ln.End; i++ {
				a, b, c := e.classOf[i], e.classOf[i+1], e.classOf[i+2]
				t.data[(a*k+b)*k+c]++
			}
		}
		return t, nil
	})
}

// RankFit is one CP decomposition of a tensor.
type RankFit struct {
	Rank       int            `json:"rank"`
	Fit        float64        `json:"fit"`
	Iterations int            `json:"iterations"`
	Factors    [3][][]float64 `json:"factors"`
}

// Factorization reports fit for every rank from 1 to the requested maximum.
type Factorization struct {
	Ranks []RankFit `json:"ranks"`
}

// MinimalRank returns the smallest rank whose fit is within tolerance of the
// best fit observed.
func (f *Factorization) MinimalRank(tolerance float64) int {
	best := 0.0
	for _, r := range f.Ranks {
		best = math.Max(best, r.Fit)
	}
	for _, r := range f.Ranks {
		if r.Fit >= best-tolerance {
			return r.Rank
		}
	}
	return 0
}

const (
	ntfMaxIterations = 500
	ntfTolerance     = 1e-7
	ntfEpsilon       = 1e-12
)

// NonnegativeTensorFactorize fits nonnegative CP decompositions of rank
// 1..maxRank by multiplicative updates. Initial factors are drawn from a
// generator seeded by (seed, rank). Fit is 1 - ||X - Xhat|| / ||X||.
func NonnegativeTensorFactorize(ctx context.Context, t *Tensor, maxRank int, seed int64) (*Factorization, error) {
	if maxRank < 1 {
		return nil, core.NewValidationError("rank", "must be at least 1")
	}
	norm := 0.0
	for _, v := range t.data {
		norm += v * v
	}
	if norm == 0 {
		return nil, &core.InsufficientSampleError{Subject: "tensor mass", Observed: 0, Required: 1}
	}
	norm = math.Sqrt(norm)

	out := &Factorization{}
	for r := 1; r <= maxRank; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src := rand.New(rand.NewSource(rng.DeriveSeed(seed, "ntf", fmt.Sprint(r))))
		fit := cpMultiplicative(ctx, t, r, src, norm)
		out.Ranks = append(out.Ranks, fit)
	}
	return out, nil
}

func cpMultiplicative(ctx context.Context, t *Tensor, rank int, src *rand.Rand, norm float64) RankFit {
	var factors [3][][]float64
	for m := 0; m < 3; m++ {
		factors[m] = make([][]float64, t.dims[m])
		for i := range factors[m] {
			row := make([]float64, rank)
			for r := range row {
				row[r] = 0.1 + src.Float64()
			}
			factors[m][i] = row
		}
	}

	prevErr := math.Inf(1)
	iter := 0
	for iter = 1; iter <= ntfMaxIterations; iter++ {
		if ctx.Err() != nil {
			break
		}
		for mode := 0; mode < 3; mode++ {
			updateMode(t, &factors, mode, rank)
		}
		residual := reconstructionError(t, factors, rank)
		if math.Abs(prevErr-residual) <= ntfTolerance*norm {
			break
		}
		prevErr = residual
	}
	if iter > ntfMaxIterations {
		iter = ntfMaxIterations
	}

	return RankFit{
		Rank:       rank,
		Fit:        1 - reconstructionError(t, factors, rank)/norm,
		Iterations: iter,
		Factors:    factors,
	}
}

// updateMode applies A <- A * MTTKRP / (A * (B'B .* C'C)) for one mode.
func updateMode(t *Tensor, factors *[3][][]float64, mode, rank int) {
	a := factors[mode]
	b := factors[(mode+1)%3]
	c := factors[(mode+2)%3]

	gram := make([]float64, rank*rank)
	for p := 0; p < rank; p++ {
		for q := 0; q < rank; q++ {
			gb, gc := 0.0, 0.0
			for _, row := range b {
				gb += row[p] * row[q]
			}
			for _, row := range c {
				gc += row[p] * row[q]
			}
			gram[p*rank+q] = gb * gc
		}
	}

	numer := make([][]float64, len(a))
	for i := range numer {
		numer[i] = make([]float64, rank)
	}
	I, J, K := t.Dims()
	for x := 0; x < I; x++ {
		for y := 0; y < J; y++ {
			for z := 0; z < K; z++ {
				v := t.At(x, y, z)
				if v == 0 {
					continue
				}
				idx := [3]int{x, y, z}
				i, j, k := idx[mode], idx[(mode+1)%3], idx[(mode+2)%3]
				for r := 0; r < rank; r++ {
					numer[i][r] += v * b[j][r] * c[k][r]
				}
			}
		}
	}

	for i, row := range a {
		for r := 0; r < rank; r++ {
			denom := 0.0
			for q := 0; q < rank; q++ {
				denom += row[q] * gram[q*rank+r]
			}
			row[r] *= numer[i][r] / (denom + ntfEpsilon)
		}
	}
}

func reconstructionError(t *Tensor, f [3][][]float64, rank int) float64 {
	I, J, K := t.Dims()
	sum := 0.0
	for x := 0; x < I; x++ {
		for y := 0; y < J; y++ {
			for z := 0; z < K; z++ {
				approx := 0.0
				for r := 0; r < rank; r++ {
					approx += f[0][x][r] * f[1][y][r] * f[2][z][r]
				}
				d := t.At(x, y, z) - approx
				sum += d * d
			}
		}
	}
	return math.Sqrt(sum)
}
