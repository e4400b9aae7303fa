package nullmodel

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"glyphstat/domain/verdict"
)

// Distribution is an ordered sequence of resampled statistics. Sample i was
// produced by stream i of the master seed, whatever the worker count.
type Distribution struct {
	Method       verdict.NullMethod `json:"method"`
	Seed         int64              `json:"seed"`
	Requested    int                `json:"requested"`
	Samples      []float64          `json:"samples"`
	EarlyStopped bool               `json:"early_stopped"`
	Partial      bool               `json:"partial"`
}

// Used returns the number of completed samples.
func (d *Distribution) Used() int { return len(d.Samples) }

func tieTolerance(v float64) float64 {
	return 1e-12 * math.Max(1, math.Abs(v))
}

// PValue is the empirical p-value (b+1)/(n+1), where b counts samples at least
// as extreme as observed. Two-sided extremity is distance from the null mean.
func (d *Distribution) PValue(observed float64, direction verdict.Direction) float64 {
	n := len(d.Samples)
	if n == 0 {
		return 1
	}
	eps := tieTolerance(observed)
	b := 0
	switch direction {
	case verdict.DirectionGreater:
		for _, s := range d.Samples {
			if s >= observed-eps {
				b++
			}
		}
	case verdict.DirectionLess:
		for _, s := range d.Samples {
			if s <= observed+eps {
				b++
			}
		}
	default:
		mean, _ := stats.Mean(d.Samples)
		dist := math.Abs(observed - mean)
		for _, s := range d.Samples {
			if math.Abs(s-mean) >= dist-eps {
				b++
			}
		}
	}
	return float64(b+1) / float64(n+1)
}

// BootstrapPValue tests a bootstrap distribution of the statistic against a
// fixed null value: for "greater" it is the share of resamples at or below
// the null value, with the same +1 smoothing as PValue.
func (d *Distribution) BootstrapPValue(nullValue float64, direction verdict.Direction) float64 {
	n := len(d.Samples)
	if n == 0 {
		return 1
	}
	eps := tieTolerance(nullValue)
	below, above := 0, 0
	for _, s := range d.Samples {
		if s <= nullValue+eps {
			below++
		}
		if s >= nullValue-eps {
			above++
		}
	}
	lower := float64(below+1) / float64(n+1)
	upper := float64(above+1) / float64(n+1)
	switch direction {
	case verdict.DirectionGreater:
		return lower
	case verdict.DirectionLess:
		return upper
	default:
		return math.Min(1, 2*math.Min(lower, upper))
	}
}

// ZScore standardizes observed against the null mean and sample deviation.
func (d *Distribution) ZScore(observed float64) float64 {
	if len(d.Samples) < 2 {
		return 0
	}
	mean, _ := stats.Mean(d.Samples)
	sd, _ := stats.StandardDeviationSample(d.Samples)
	if sd == 0 {
		return 0
	}
	return (observed - mean) / sd
}

// Summary reduces the distribution for a verdict record. The reduction is
// order-independent.
func (d *Distribution) Summary() verdict.NullDistributionSummary {
	out := verdict.NullDistributionSummary{
		Requested:    d.Requested,
		Used:         len(d.Samples),
		EarlyStopped: d.EarlyStopped,
		Partial:      d.Partial,
	}
	if len(d.Samples) == 0 {
		return out
	}
	sorted := append([]float64(nil), d.Samples...)
	sort.Float64s(sorted)

	out.Mean, _ = stats.Mean(sorted)
	if len(sorted) > 1 {
		out.StdDev, _ = stats.StandardDeviationSample(sorted)
	}
	out.Min = sorted[0]
	out.Max = sorted[len(sorted)-1]
	out.Percentile95, _ = stats.Percentile(sorted, 95)
	out.Percentile99, _ = stats.Percentile(sorted, 99)
	return out
}
