package engine

import (
	"math"

	"glyphstat/domain/core"
)

// Feature is a per-token categorical variable.
type Feature string

const (
	FeatureClass       Feature = "class"
	FeatureNextClass   Feature = "next_class"
	FeaturePrefix      Feature = "prefix"
	FeatureSuffix      Feature = "suffix"
	FeatureMiddle      Feature = "middle"
	FeaturePositionBin Feature = "position_bin"
)

// PositionBins is the resolution of FeaturePositionBin.
const PositionBins = 5

// featureCodes returns one code per token and the alphabet size. For
// next_class the last token of a line takes the END code k.
func (e *StatsEngine) featureCodes(f Feature) ([]int, int, error) {
	switch f {
	case FeatureClass:
		return e.classOf, e.assignment.Len(), nil
	case FeatureNextClass:
		k := e.assignment.Len()
		codes := make([]int, len(e.classOf))
		for _, ln := range e.corpus.Lines() {
			for i := ln.Start; i < ln.End; i++ {
				if i+1 < ln.End {
					codes[i] = e.classOf[i+1]
				} else {
					codes[i] = k
				}
			}
		}
		return codes, k + 1, nil
	case FeaturePrefix, FeatureSuffix, FeatureMiddle:
		v := e.vocab[f]
		return v.codes, len(v.names), nil
	case FeaturePositionBin:
		codes := make([]int, len(e.classOf))
		for i := range codes {
			codes[i] = positionBin(e.corpus.Token(i).Position, PositionBins)
		}
		return codes, PositionBins, nil
	}
	return nil, 0, core.NewValidationError("feature", "unknown feature "+string(f))
}

// Entropy returns the Shannon entropy in bits of a count vector, with
// 0·log 0 taken as 0.
func Entropy(counts []float64) float64 {
	total := 0.0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		if c > 0 {
			p := c / total
			h -= p * math.Log2(p)
		}
	}
	return h
}

func jointCounts(x []int, kx int, y []int, ky int) (joint, px, py []float64) {
	joint = make([]float64, kx*ky)
	px = make([]float64, kx)
	py = make([]float64, ky)
	for i := range x {
		joint[x[i]*ky+y[i]]++
		px[x[i]]++
		py[y[i]]++
	}
	return joint, px, py
}

// ConditionalEntropy returns H(x | y) in bits over all tokens.
func (e *StatsEngine) ConditionalEntropy(x, y Feature) (float64, error) {
	xs, kx, err := e.featureCodes(x)
	if err != nil {
		return 0, err
	}
	ys, ky, err := e.featureCodes(y)
	if err != nil {
		return 0, err
	}
	joint, _, py := jointCounts(xs, kx, ys, ky)
	return nonNegative(Entropy(joint) - Entropy(py)), nil
}

// MutualInformation returns I(x; y) in bits over all tokens.
func (e *StatsEngine) MutualInformation(x, y Feature) (float64, error) {
	xs, kx, err := e.featureCodes(x)
	if err != nil {
		return 0, err
	}
	ys, ky, err := e.featureCodes(y)
	if err != nil {
		return 0, err
	}
	joint, px, py := jointCounts(xs, kx, ys, ky)
	return nonNegative(Entropy(px) + Entropy(py) - Entropy(joint)), nil
}

// MutualInformationFromTable computes I(row; col) in bits from a count table.
func MutualInformationFromTable(table [][]float64) float64 {
	var joint, rows []float64
	var cols []float64
	for i, row := range table {
		rs := 0.0
		for j, v := range row {
			joint = append(joint, v)
			rs += v
			if i == 0 {
				cols = append(cols, 0)
			}
			cols[j] += v
		}
		rows = append(rows, rs)
	}
	return nonNegative(Entropy(rows) + Entropy(cols) - Entropy(joint))
}

// rounding can push information quantities a hair below zero
func nonNegative(v float64) float64 {
	if v < 0 && v > -1e-12 {
		return 0
	}
	return v
}
