package app

import (
	"context"

	"glyphstat/adapters/stats/engine"
)

// Report tuning.
const (
	spectralRank = 3
	tensorRank   = 3
)

// StatsReport summarizes the corpus statistics of a snapshot.
type StatsReport struct {
	Classes                 int                   `json:"classes"`
	Labels                  []string              `json:"labels"`
	TransitionProbabilities [][]float64           `json:"transition_probabilities"`
	EmptyRows               []int                 `json:"empty_rows,omitempty"`
	NextClassEntropy        float64               `json:"next_class_entropy"`
	NextClassMI             float64               `json:"next_class_mutual_information"`
	PositionMI              float64               `json:"position_mutual_information"`
	Statistics              map[string]float64    `json:"statistics"`
	Spectrum                *engine.Spectrum      `json:"spectrum,omitempty"`
	Tensor                  *engine.Factorization `json:"tensor,omitempty"`
}

// SummarizeStats computes the report. The spectral and tensor sections are
// skipped for assignments with a single class.
func SummarizeStats(ctx context.Context, snap *Snapshot, seed int64) (*StatsReport, error) {
	e := snap.Engine
	probs, err := e.TransitionProbabilities(ctx)
	if err != nil {
		return nil, err
	}
	r := &StatsReport{
		Classes:                 snap.Assignment.Len(),
		Labels:                  probs.Labels(),
		TransitionProbabilities: probs.Rows(),
		EmptyRows:               probs.EmptyRows(),
		Statistics:              make(map[string]float64),
	}
	if r.NextClassEntropy, err = e.ConditionalEntropy(engine.FeatureNextClass, engine.FeatureClass); err != nil {
		return nil, err
	}
	if r.NextClassMI, err = e.MutualInformation(engine.FeatureClass, engine.FeatureNextClass); err != nil {
		return nil, err
	}
	if r.PositionMI, err = e.MutualInformation(engine.FeatureClass, engine.FeaturePositionBin); err != nil {
		return nil, err
	}

	stream, err := e.ClassStream()
	if err != nil {
		return nil, err
	}
	for _, name := range engine.StatisticNames() {
		fn, err := engine.LookupStatistic(name)
		if err != nil {
			return nil, err
		}
		if r.Statistics[name], err = fn(stream); err != nil {
			return nil, err
		}
	}

	if r.Classes < 2 {
		return r, nil
	}
	compat, err := e.CompatibilityMatrix(ctx)
	if err != nil {
		return nil, err
	}
	if r.Spectrum, err = engine.SpectralEmbedding(compat, min(spectralRank, r.Classes)); err != nil {
		return nil, err
	}
	trigrams, err := e.TrigramTensor(ctx)
	if err != nil {
		return nil, err
	}
	if r.Tensor, err = engine.NonnegativeTensorFactorize(ctx, trigrams, tensorRank, seed); err != nil {
		return nil, err
	}
	return r, nil
}
