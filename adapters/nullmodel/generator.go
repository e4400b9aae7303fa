// Package nullmodel generates randomized baselines for corpus statistics.
package nullmodel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"glyphstat/adapters/stats/engine"
	"glyphstat/domain/core"
	"glyphstat/domain/corpus"
	"glyphstat/domain/verdict"
	"glyphstat/internal/logging"
	"glyphstat/ports"
)

const (
	DefaultSamples    = 2000
	DefaultMaxSamples = 100000
	DefaultBatchSize  = 250
)

// Request describes one null generation.
type Request struct {
	Method  verdict.NullMethod
	Samples int
	Seed    int64
	// MaxSamples is the safety bound on Samples. Zero means DefaultMaxSamples.
	MaxSamples int
	// BatchSize fixes the boundaries at which early exit and cancellation are
	// checked. Zero means DefaultBatchSize.
	BatchSize int
	// Tolerance enables early exit once the standard error of the p-value
	// estimate for Observed in Direction drops below it and the decision at
	// Alpha is settled. Zero disables.
	Tolerance float64
	Observed  float64
	Direction verdict.Direction
	// NullValue is the fixed comparison point for block_bootstrap, whose
	// samples estimate the statistic itself rather than its null.
	NullValue float64
	// Alpha is the corrected threshold the p-value will be judged at. When
	// set, early exit also waits until that decision can no longer flip.
	Alpha float64
}

// decisionZ is the two-sided 99% normal quantile used to bound p near Alpha.
const decisionZ = 2.576

// PValue applies the request's comparison to a distribution.
func (r Request) PValue(d *Distribution) float64 {
	if r.Method == verdict.NullBlockBootstrap {
		return d.BootstrapPValue(r.NullValue, r.Direction)
	}
	return d.PValue(r.Observed, r.Direction)
}

func (r Request) standardError(d *Distribution) float64 {
	n := d.Used()
	if n == 0 {
		return math.Inf(1)
	}
	p := r.PValue(d)
	return math.Sqrt(p * (1 - p) / float64(n))
}

// settled reports whether more samples could still move p, in the
// registered or the opposite direction, across Alpha. The smallest p a
// distribution of n samples can give is 1/(n+1).
func (r Request) settled(d *Distribution) bool {
	if r.Alpha <= 0 {
		return true
	}
	n := float64(d.Used())
	if n == 0 {
		return false
	}
	floor := 1 / (n + 1)
	check := []Request{r}
	if r.Direction != verdict.DirectionTwoSided {
		opposite := r
		opposite.Direction = r.Direction.Opposite()
		check = append(check, opposite)
	}
	for _, q := range check {
		p := q.PValue(d)
		if floor > r.Alpha && p <= floor*(1+1e-9) {
			return false
		}
		if math.Abs(p-r.Alpha) <= decisionZ*math.Sqrt(p*(1-p)/n) {
			return false
		}
	}
	return true
}

// NullExhaustionError reports a request above the permutation safety bound.
type NullExhaustionError struct {
	Requested int
	Bound     int
}

func (e *NullExhaustionError) Error() string {
	return fmt.Sprintf("%d null samples requested, bound is %d; raise max_permutations explicitly", e.Requested, e.Bound)
}

func (e *NullExhaustionError) Unwrap() error { return core.ErrNullExhaustion }

// Generator runs statistics over resampled streams.
type Generator struct {
	rng     ports.RNGPort
	workers int
	logger  *zap.Logger
}

// NewGenerator creates a generator. workers < 1 runs sequentially.
func NewGenerator(rngPort ports.RNGPort, workers int, logger *zap.Logger) *Generator {
	return &Generator{
		rng:     rngPort,
		workers: max(workers, 1),
		logger:  logging.OrNop(logger).Named("nullmodel"),
	}
}

func resampler(method verdict.NullMethod) (func(*corpus.Stream, *rand.Rand) *corpus.Stream, error) {
	switch method {
	case verdict.NullShuffle:
		return shuffle, nil
	case verdict.NullFrequencyMatched:
		return frequencyMatched, nil
	case verdict.NullBlockBootstrap:
		return blockBootstrap, nil
	default:
		return nil, core.NewValidationError("null_method", fmt.Sprintf("%q is not a resampling method", method))
	}
}

// Generate evaluates statistic on req.Samples resampled copies of stream.
// On cancellation it returns the completed batches flagged Partial together
// with the context error.
func (g *Generator) Generate(ctx context.Context, statistic engine.StatisticFunc, stream *corpus.Stream, req Request) (*Distribution, error) {
	resample, err := resampler(req.Method)
	if err != nil {
		return nil, err
	}
	if req.Samples < 1 {
		return nil, core.NewValidationError("samples", "must be positive")
	}
	bound := req.MaxSamples
	if bound <= 0 {
		bound = DefaultMaxSamples
	}
	if req.Samples > bound {
		return nil, &NullExhaustionError{Requested: req.Samples, Bound: bound}
	}
	if err := stream.Validate(); err != nil {
		return nil, err
	}
	if stream.Len() == 0 {
		return nil, core.NewValidationError("stream", "empty")
	}
	batch := req.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	samples := make([]float64, req.Samples)
	dist := &Distribution{Method: req.Method, Seed: req.Seed, Requested: req.Samples}
	name := string(req.Method)

	done := 0
	for done < req.Samples {
		end := min(done+batch, req.Samples)

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(g.workers)
		for i := done; i < end; i++ {
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				r, err := g.rng.Stream(egCtx, name, i, req.Seed)
				if err != nil {
					return err
				}
				v, err := statistic(resample(stream, r))
				if err != nil {
					return fmt.Errorf("null sample %d: %w", i, err)
				}
				if math.IsNaN(v) {
					return fmt.Errorf("%w: null sample %d is NaN", core.ErrNormalization, i)
				}
				samples[i] = v
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				dist.Samples = samples[:done]
				dist.Partial = true
				g.logger.Warn("null generation cancelled",
					zap.String("method", name),
					zap.Int("used", done),
					zap.Int("requested", req.Samples))
				return dist, ctxErr
			}
			return nil, err
		}
		done = end

		if ctx.Err() != nil {
			dist.Samples = samples[:done]
			dist.Partial = true
			return dist, ctx.Err()
		}

		if req.Tolerance > 0 && done < req.Samples {
			probe := &Distribution{Samples: samples[:done]}
			if req.standardError(probe) < req.Tolerance && req.settled(probe) {
				dist.EarlyStopped = true
				break
			}
		}
	}

	dist.Samples = samples[:done]
	g.logger.Debug("null distribution generated",
		zap.String("method", name),
		zap.Int("used", done),
		zap.Bool("early_stopped", dist.EarlyStopped))
	return dist, nil
}
