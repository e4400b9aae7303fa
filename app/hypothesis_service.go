package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"glyphstat/adapters/battery"
	"glyphstat/adapters/corpusio"
	"glyphstat/adapters/nullmodel"
	"glyphstat/adapters/rng"
	"glyphstat/domain/core"
	"glyphstat/domain/verdict"
	"glyphstat/internal/config"
	apperrors "glyphstat/internal/errors"
	"glyphstat/internal/logging"
	"glyphstat/internal/referee"
	"glyphstat/ports"
)

// HarnessDefaults maps analysis configuration onto harness defaults.
func HarnessDefaults(cfg *config.Config) battery.Defaults {
	a := cfg.Analysis
	return battery.Defaults{
		NullMethod:    a.NullMethod,
		Samples:       a.NPermutations,
		MaxSamples:    a.MaxPermutations,
		BatchSize:     a.BatchSize,
		Tolerance:     a.PrecisionTolerance,
		Threshold:     a.SignificanceThreshold,
		Correction:    a.Correction,
		MinSampleSize: a.MinSampleSize,
		Seed:          a.Seed,
		Workers:       a.Workers,
		CodeVersion:   a.CodeVersion,
	}
}

// HypothesisService runs hypothesis batteries against one snapshot.
type HypothesisService struct {
	harness *battery.Harness
	logger  *zap.Logger
}

// NewHypothesisService builds the harness for snap over ledger.
func NewHypothesisService(cfg *config.Config, snap *Snapshot, ledger ports.LedgerPort, logger *zap.Logger) *HypothesisService {
	logger = logging.OrNop(logger)
	gen := nullmodel.NewGenerator(rng.New(), cfg.Analysis.Workers, logger)
	h := battery.NewHarness(snap.Engine, gen, referee.NewReferee(logger), ledger,
		snap.Inventory.Version(), HarnessDefaults(cfg), logger)
	return &HypothesisService{harness: h, logger: logger.Named("app")}
}

// Harness exposes the underlying harness.
func (s *HypothesisService) Harness() *battery.Harness { return s.harness }

// HypothesisResult is the outcome of one hypothesis in a battery run.
type HypothesisResult struct {
	HypothesisID core.HypothesisID `json:"hypothesis_id"`
	FamilyID     core.FamilyID     `json:"family_id,omitempty"`
	Verdict      *verdict.Record   `json:"verdict,omitempty"`
	Code         string            `json:"code,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// BatteryReport collects every result of a battery run.
type BatteryReport struct {
	Results   []HypothesisResult `json:"results"`
	Counts    map[string]int     `json:"counts"`
	RuntimeMs int64              `json:"runtime_ms"`
}

func (r *BatteryReport) add(res HypothesisResult) {
	key := res.Code
	if res.Verdict != nil {
		key = string(res.Verdict.Status)
	}
	r.Counts[key]++
	r.Results = append(r.Results, res)
}

// RunOptions control a battery run.
type RunOptions struct {
	// Rerun supersedes recorded verdicts instead of refusing them.
	Rerun bool
	Note  string
}

// RunBattery registers every hypothesis, then runs standalone hypotheses in
// order and families concurrently. Per-hypothesis failures are reported in
// the results; only a cancelled context stops the run.
func (s *HypothesisService) RunBattery(ctx context.Context, b *corpusio.Battery, opts RunOptions) (*BatteryReport, error) {
	start := time.Now()
	for _, spec := range b.Hypotheses {
		if err := s.harness.Register(spec); err != nil {
			return nil, err
		}
	}
	for _, fam := range b.Families {
		for _, spec := range fam.Hypotheses {
			spec.FamilyID = fam.ID
			spec.FamilySize = fam.Size
			if fam.Correction != "" {
				spec.Correction = fam.Correction
			}
			if err := s.harness.Register(spec); err != nil {
				return nil, err
			}
		}
	}

	report := &BatteryReport{Counts: make(map[string]int)}
	for _, spec := range b.Hypotheses {
		var rec *verdict.Record
		var err error
		if opts.Rerun {
			rec, err = s.harness.Rerun(ctx, spec, opts.Note)
		} else {
			rec, err = s.harness.Run(ctx, spec)
		}
		report.add(result(spec.ID, "", rec, err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, ctxErr
		}
	}

	for _, fam := range b.Families {
		recs, err := s.harness.RunFamily(ctx, fam)
		for i, spec := range fam.Hypotheses {
			var rec *verdict.Record
			if i < len(recs) {
				rec = recs[i]
			}
			if rec == nil && err == nil {
				continue
			}
			report.add(result(spec.ID, fam.ID, rec, memberError(rec, err)))
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, ctxErr
		}
	}

	report.RuntimeMs = time.Since(start).Milliseconds()
	s.logger.Info("battery finished",
		zap.Int("results", len(report.Results)),
		zap.Any("counts", report.Counts),
		zap.Int64("runtime_ms", report.RuntimeMs))
	return report, nil
}

// memberError attributes a family error to members without a record.
func memberError(rec *verdict.Record, err error) error {
	if rec != nil && rec.Status != verdict.StatusPartial {
		return nil
	}
	return err
}

func result(id core.HypothesisID, fid core.FamilyID, rec *verdict.Record, err error) HypothesisResult {
	res := HypothesisResult{HypothesisID: id, FamilyID: fid, Verdict: rec}
	if err != nil {
		res.Code = apperrors.GetCode(err)
		res.Error = err.Error()
	}
	return res
}

// Stale lists latest verdicts derived from other versions than the snapshot.
func (s *HypothesisService) Stale(ctx context.Context) ([]*verdict.Record, error) {
	return s.harness.Stale(ctx)
}
