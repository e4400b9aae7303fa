package classes

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"glyphstat/adapters/stats/classical"
	dclasses "glyphstat/domain/classes"
	"glyphstat/domain/core"
	"glyphstat/domain/corpus"
	"glyphstat/domain/morphology"
	"glyphstat/internal/logging"
)

// EndTarget is the transition target recorded at the end of a line.
const EndTarget = "END"

// Config controls merging and macro-state clustering.
type Config struct {
	MergeAlpha    float64
	MinSampleSize int
	MacroMethod   string // kmeans or average_linkage
	MacroKMin     int
	MacroKMax     int
	Seed          int64
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		MergeAlpha:    0.2,
		MinSampleSize: 50,
		MacroMethod:   MethodKMeans,
		MacroKMin:     2,
		MacroKMax:     8,
		Seed:          42,
	}
}

// Builder groups decomposition signatures into equivalence classes.
type Builder struct {
	cfg    Config
	logger *zap.Logger
}

// NewBuilder creates a class builder.
func NewBuilder(cfg Config, logger *zap.Logger) *Builder {
	return &Builder{cfg: cfg, logger: logging.OrNop(logger).Named("classes")}
}

type profile struct {
	signature string
	count     int
	positions []float64
	targets   map[string]float64
}

type draft struct {
	signatures []string
	positions  []float64
	targets    map[string]float64
	count      int
	lowConf    bool
}

// Build assigns every signature in the corpus to exactly one class, tags
// roles and clusters eligible classes into macro-states.
func (b *Builder) Build(ctx context.Context, c *corpus.Corpus, decs []morphology.Decomposition) (*dclasses.Assignment, error) {
	if len(decs) != c.Len() {
		return nil, fmt.Errorf("%w: %d decompositions for %d tokens", core.ErrInvalidInput, len(decs), c.Len())
	}
	if b.cfg.MinSampleSize < 1 || b.cfg.MergeAlpha <= 0 || b.cfg.MergeAlpha >= 1 {
		return nil, core.NewValidationError("classes", "merge_alpha must be in (0,1) and min_sample_size positive")
	}

	profiles := collectProfiles(c, decs)
	drafts, err := b.merge(ctx, profiles)
	if err != nil {
		return nil, err
	}

	classOf := make(map[string]int)
	for id, d := range drafts {
		for _, s := range d.signatures {
			classOf[s] = id
		}
	}
	labels := make([]int, len(decs))
	for i, d := range decs {
		labels[i] = classOf[d.Signature()]
	}
	stream, err := c.Stream(labels, len(drafts))
	if err != nil {
		return nil, err
	}

	agg := aggregate(stream, c)
	out := make([]dclasses.Class, len(drafts))
	for id, d := range drafts {
		out[id] = dclasses.Class{
			ID:             id,
			Signatures:     d.signatures,
			Observations:   d.count,
			LowConfidence:  d.lowConf,
			MeanPosition:   agg[id].meanPosition,
			SelfTransition: agg[id].selfTransition,
			Role:           assignRole(agg[id], c.Len()),
		}
	}

	macro, err := b.macroStates(ctx, stream, out)
	if err != nil {
		return nil, err
	}

	a, err := dclasses.NewAssignment(out, macro)
	if err != nil {
		return nil, err
	}
	fields := []zap.Field{
		zap.Int("signatures", len(profiles)),
		zap.Int("classes", a.Len()),
		zap.String("version", core.Hash(a.Version()).Short()),
	}
	if macro != nil {
		fields = append(fields, zap.Int("macro_k", macro.K), zap.Float64("silhouette", macro.Silhouette))
	}
	b.logger.Info("built class assignment", fields...)
	return a, nil
}

func collectProfiles(c *corpus.Corpus, decs []morphology.Decomposition) []*profile {
	bySig := make(map[string]*profile)
	for _, ln := range c.Lines() {
		for i := ln.Start; i < ln.End; i++ {
			sig := decs[i].Signature()
			p, ok := bySig[sig]
			if !ok {
				p = &profile{signature: sig, targets: make(map[string]float64)}
				bySig[sig] = p
			}
			p.count++
			p.positions = append(p.positions, c.Token(i).Position)
			target := EndTarget
			if i+1 < ln.End {
				target = decs[i+1].Prefix
				if target == "" {
					target = morphology.EmptySlot
				}
			}
			p.targets[target]++
		}
	}

	out := make([]*profile, 0, len(bySig))
	for _, p := range bySig {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].signature < out[j].signature
	})
	return out
}

// merge walks signatures by descending frequency and joins each into the
// admissible class with the highest minimum p-value.
func (b *Builder) merge(ctx context.Context, profiles []*profile) ([]*draft, error) {
	var drafts []*draft
	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		best, bestP := -1, -1.0
		if p.count >= b.cfg.MinSampleSize {
			for id, d := range drafts {
				if d.lowConf {
					continue
				}
				minP, err := homogeneity(p, d)
				if err != nil {
					return nil, err
				}
				if minP > b.cfg.MergeAlpha && minP > bestP {
					best, bestP = id, minP
				}
			}
		}

		if best < 0 {
			d := &draft{
				targets: make(map[string]float64),
				lowConf: p.count < b.cfg.MinSampleSize,
			}
			drafts = append(drafts, d)
			best = len(drafts) - 1
		} else {
			b.logger.Debug("merged signature",
				zap.String("signature", p.signature),
				zap.Int("class", best),
				zap.Float64("min_p", bestP))
		}

		d := drafts[best]
		d.signatures = append(d.signatures, p.signature)
		d.positions = append(d.positions, p.positions...)
		d.count += p.count
		for t, n := range p.targets {
			d.targets[t] += n
		}
	}
	return drafts, nil
}

// homogeneity returns min(p_KS on positions, p_chi2 on targets). A target
// table that collapses to one category carries no evidence of difference.
func homogeneity(p *profile, d *draft) (float64, error) {
	ks, err := classical.KolmogorovSmirnov(p.positions, d.positions)
	if err != nil {
		return 0, err
	}

	keys := make(map[string]struct{})
	for t := range p.targets {
		keys[t] = struct{}{}
	}
	for t := range d.targets {
		keys[t] = struct{}{}
	}
	ordered := make([]string, 0, len(keys))
	for t := range keys {
		ordered = append(ordered, t)
	}
	sort.Strings(ordered)
	a := make([]float64, len(ordered))
	bb := make([]float64, len(ordered))
	for i, t := range ordered {
		a[i] = p.targets[t]
		bb[i] = d.targets[t]
	}

	chiP := 1.0
	chi, err := classical.ChiSquareHomogeneity(a, bb)
	switch {
	case err == nil:
		chiP = chi.PValue
	case errors.Is(err, core.ErrInsufficientSample):
	default:
		return 0, err
	}
	return math.Min(ks.PValue, chiP), nil
}
