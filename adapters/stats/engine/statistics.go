package engine

import (
	"errors"
	"fmt"
	"sort"

	"glyphstat/adapters/stats/classical"
	"glyphstat/domain/core"
	"glyphstat/domain/corpus"
)

// StatisticFunc computes one scalar from a labeled stream. Implementations
// must not modify the stream.
type StatisticFunc func(s *corpus.Stream) (float64, error)

// Named statistics over labeled streams.
const (
	StatTransitionMI       = "transition_mi"
	StatTransitionChi2     = "transition_chi2"
	StatSelfTransitionRate = "self_transition_rate"
	StatConditionalEntropy = "conditional_entropy"
)

var statistics = map[string]StatisticFunc{
	StatTransitionMI:       TransitionMI,
	StatTransitionChi2:     TransitionChiSquare,
	StatSelfTransitionRate: SelfTransitionRate,
	StatConditionalEntropy: NextGivenCurrentEntropy,
}

// LookupStatistic resolves a statistic by name.
func LookupStatistic(name string) (StatisticFunc, error) {
	fn, ok := statistics[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown statistic %q", core.ErrInvalidInput, name)
	}
	return fn, nil
}

// StatisticNames lists the registered statistics.
func StatisticNames() []string {
	names := make([]string, 0, len(statistics))
	for n := range statistics {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TransitionMI is the mutual information in bits between a token's label and
// the next label in the same line.
func TransitionMI(s *corpus.Stream) (float64, error) {
	return MutualInformationFromTable(TransitionCounts(s)), nil
}

// TransitionChiSquare is Pearson's chi-square of the transition table. A
// table that collapses to a single row or column scores 0.
func TransitionChiSquare(s *corpus.Stream) (float64, error) {
	r, err := classical.ChiSquareIndependence(TransitionCounts(s))
	if errors.Is(err, core.ErrInsufficientSample) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return r.Statistic, nil
}

// SelfTransitionRate is the share of in-line transitions that repeat a label.
func SelfTransitionRate(s *corpus.Stream) (float64, error) {
	same, total := 0, 0
	s.EachTransition(func(a, b int) {
		total++
		if a == b {
			same++
		}
	})
	if total == 0 {
		return 0, &core.InsufficientSampleError{Subject: "transitions", Observed: 0, Required: 1}
	}
	return float64(same) / float64(total), nil
}

// NextGivenCurrentEntropy is H(next | current) in bits over in-line transitions.
func NextGivenCurrentEntropy(s *corpus.Stream) (float64, error) {
	counts := TransitionCounts(s)
	var joint, rows []float64
	for _, row := range counts {
		rs := 0.0
		for _, v := range row {
			joint = append(joint, v)
			rs += v
		}
		rows = append(rows, rs)
	}
	return nonNegative(Entropy(joint) - Entropy(rows)), nil
}
