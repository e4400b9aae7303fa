package engine

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"golang.org/x/sync/errgroup"

	"glyphstat/domain/core"
	"glyphstat/domain/corpus"
)

// Level selects the alphabet of a matrix.
type Level string

const (
	LevelClass  Level = "class"
	LevelMiddle Level = "middle"
)

// RowTolerance bounds how far a probability row may drift from 1.
const RowTolerance = 1e-9

// NormalizationError reports a probability row that does not sum to 1.
type NormalizationError struct {
	Row int
	Sum float64
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("row %d sums to %.15g", e.Row, e.Sum)
}

func (e *NormalizationError) Unwrap() error { return core.ErrNormalization }

func (e *StatsEngine) classLabels() []string {
	labels := make([]string, e.assignment.Len())
	for i := range labels {
		labels[i] = strconv.Itoa(i)
	}
	return labels
}

// TransitionMatrix counts class-to-class transitions inside lines. Folios are
// counted in parallel and summed in folio order.
func (e *StatsEngine) TransitionMatrix(ctx context.Context) (*Matrix, error) {
	return cached(e, e.cacheKey("transition"), func() (*Matrix, error) {
		k := e.assignment.Len()
		lines := e.corpus.Lines()
		folios := e.corpus.FolioLines()
		partial := make([][]float64, len(folios))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers)
		for f, folio := range folios {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				counts := make([]float64, k*k)
				for _, ln := range lines[folio.Start:folio.End] {
					for i := ln.Start; i+1 < ln.End; i++ {
						counts[e.classOf[i]*k+e.classOf[i+1]]++
					}
				}
				partial[f] = counts
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		m := newMatrix(k, k, e.classLabels())
		for _, counts := range partial {
			for i, v := range counts {
				m.data[i] += v
			}
		}
		return m, nil
	})
}

// TransitionProbabilities row-normalizes the transition counts. Rows without
// support are listed in EmptyRows and stay zero.
func (e *StatsEngine) TransitionProbabilities(ctx context.Context) (*Matrix, error) {
	return cached(e, e.cacheKey("transition_probabilities"), func() (*Matrix, error) {
		counts, err := e.TransitionMatrix(ctx)
		if err != nil {
			return nil, err
		}
		return RowNormalize(counts)
	})
}

// RowNormalize divides every row by its sum and verifies the result.
func RowNormalize(counts *Matrix) (*Matrix, error) {
	out := newMatrix(counts.rows, counts.cols, counts.Labels())
	for i := 0; i < counts.rows; i++ {
		sum := counts.RowSum(i)
		if sum == 0 {
			out.emptyRows = append(out.emptyRows, i)
			continue
		}
		check := 0.0
		for j := 0; j < counts.cols; j++ {
			p := counts.At(i, j) / sum
			out.data[i*out.cols+j] = p
			check += p
		}
		if math.Abs(check-1) > RowTolerance {
			return nil, &NormalizationError{Row: i, Sum: check}
		}
	}
	return out, nil
}

// CooccurrenceMatrix counts unordered pairs of tokens at most window apart in
// the same line. The matrix is symmetric; a pair of equal labels adds to the
// diagonal once.
func (e *StatsEngine) CooccurrenceMatrix(ctx context.Context, level Level, window int) (*Matrix, error) {
	if window < 1 {
		return nil, core.NewValidationError("window", "must be at least 1")
	}
	labels, names, err := e.levelLabels(level)
	if err != nil {
		return nil, err
	}
	return cached(e, e.cacheKey("cooccurrence/"+string(level), int64(window)), func() (*Matrix, error) {
		n := len(names)
		m := newMatrix(n, n, names)
		for _, ln := range e.corpus.Lines() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for i := ln.Start; i < ln.End; i++ {
				for j := i + 1; j < ln.End && j-i <= window; j++ {
					a, b := labels[i], labels[j]
					m.add(a, b, 1)
					if a != b {
						m.add(b, a, 1)
					}
				}
			}
		}
		return m, nil
	})
}

func (e *StatsEngine) levelLabels(level Level) ([]int, []string, error) {
	switch level {
	case LevelClass:
		return e.classOf, e.classLabels(), nil
	case LevelMiddle:
		v := e.vocab[FeatureMiddle]
		return v.codes, append([]string(nil), v.names...), nil
	}
	return nil, nil, core.NewValidationError("level", "unknown level "+string(level))
}

// CompatibilityMatrix is the symmetrized class transition matrix: cell (i,j)
// counts adjacencies in either order.
func (e *StatsEngine) CompatibilityMatrix(ctx context.Context) (*Matrix, error) {
	return cached(e, e.cacheKey("compatibility"), func() (*Matrix, error) {
		t, err := e.TransitionMatrix(ctx)
		if err != nil {
			return nil, err
		}
		k := t.rows
		m := newMatrix(k, k, t.Labels())
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				m.data[i*k+j] = t.At(i, j) + t.At(j, i)
			}
		}
		return m, nil
	})
}

// PositionalDistribution histograms the line positions of one class into
// bins and normalizes to a probability vector.
func (e *StatsEngine) PositionalDistribution(classID, bins int) ([]float64, error) {
	if bins < 1 {
		return nil, core.NewValidationError("bins", "must be at least 1")
	}
	if _, err := e.assignment.Class(classID); err != nil {
		return nil, err
	}
	hist := make([]float64, bins)
	n := 0
	for i, c := range e.classOf {
		if c != classID {
			continue
		}
		hist[positionBin(e.corpus.Token(i).Position, bins)]++
		n++
	}
	if n == 0 {
		return nil, &core.InsufficientSampleError{Subject: fmt.Sprintf("class %d positions", classID), Observed: 0, Required: 1}
	}
	for b := range hist {
		hist[b] /= float64(n)
	}
	return hist, nil
}

// ClassPositions returns the normalized line positions of one class's tokens.
func (e *StatsEngine) ClassPositions(classID int) []float64 {
	var out []float64
	for i, c := range e.classOf {
		if c == classID {
			out = append(out, e.corpus.Token(i).Position)
		}
	}
	return out
}

// PositionTable counts tokens of each listed class per position bin. Rows
// follow classIDs.
func (e *StatsEngine) PositionTable(classIDs []int, bins int) ([][]float64, error) {
	if bins < 1 {
		return nil, core.NewValidationError("bins", "must be at least 1")
	}
	row := make(map[int]int, len(classIDs))
	for i, id := range classIDs {
		if _, err := e.assignment.Class(id); err != nil {
			return nil, err
		}
		row[id] = i
	}
	table := make([][]float64, len(classIDs))
	for i := range table {
		table[i] = make([]float64, bins)
	}
	for i, c := range e.classOf {
		if r, ok := row[c]; ok {
			table[r][positionBin(e.corpus.Token(i).Position, bins)]++
		}
	}
	return table, nil
}

func positionBin(pos float64, bins int) int {
	b := int(pos * float64(bins))
	if b >= bins {
		b = bins - 1
	}
	if b < 0 {
		b = 0
	}
	return b
}

// TransitionCounts counts transitions of a labeled stream.
func TransitionCounts(s *corpus.Stream) [][]float64 {
	k := s.NumLabels
	counts := make([][]float64, k)
	for i := range counts {
		counts[i] = make([]float64, k)
	}
	s.EachTransition(func(a, b int) { counts[a][b]++ })
	return counts
}
