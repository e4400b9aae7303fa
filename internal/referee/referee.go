// Package referee turns evidence for a registered claim into a verdict
// record. It owns the pass/fail protocol: correction, sidedness and the
// claim lifecycle.
package referee

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"glyphstat/domain/core"
	"glyphstat/domain/verdict"
	"glyphstat/internal/logging"
)

// Evidence is what a test produced for one claim.
type Evidence struct {
	Observed float64
	// PValue is the p-value in the registered direction.
	PValue float64
	// OppositePValue is the p-value for the reversed prediction. It is only
	// read for directional registrations.
	OppositePValue float64
	EffectSize     float64
	EffectSizeName string
	Null           *verdict.NullDistributionSummary
	Exact          *verdict.ExactTest
	Provenance     verdict.Provenance
	// Partial marks evidence from a run stopped before its declared size.
	Partial bool
}

// Referee evaluates claims.
type Referee struct {
	logger *zap.Logger
}

// NewReferee creates a referee.
func NewReferee(logger *zap.Logger) *Referee {
	return &Referee{logger: logging.OrNop(logger).Named("referee")}
}

// Judge maps p-values to a status at the corrected threshold.
func Judge(direction verdict.Direction, p, opposite, correctedAlpha float64) verdict.Status {
	if p <= correctedAlpha {
		return verdict.StatusPass
	}
	if direction != verdict.DirectionTwoSided && opposite <= correctedAlpha {
		return verdict.StatusInformativeNull
	}
	return verdict.StatusFail
}

// ReachesMinEffect reports whether effect clears the registered floor in the
// predicted direction. A zero floor always passes.
func ReachesMinEffect(direction verdict.Direction, effect, floor float64) bool {
	if floor == 0 {
		return true
	}
	switch direction {
	case verdict.DirectionLess:
		return effect <= -floor
	case verdict.DirectionTwoSided:
		return math.Abs(effect) >= floor
	default:
		return effect >= floor
	}
}

// Evaluate checks presented against the claim's frozen registration, judges
// the evidence and resolves the claim. The returned record is not yet stored.
func (r *Referee) Evaluate(claim *verdict.Claim, presented verdict.Registration, ev Evidence) (*verdict.Record, error) {
	if err := claim.Evaluate(presented); err != nil {
		return nil, err
	}
	reg := claim.Registration()

	corrected, err := CorrectedAlpha(reg.Correction, reg.Threshold, reg.FamilySize)
	if err != nil {
		return nil, err
	}
	if ev.PValue < 0 || ev.PValue > 1 {
		return nil, fmt.Errorf("%w: p-value %g outside [0,1]", core.ErrNormalization, ev.PValue)
	}

	status := Judge(reg.Direction, ev.PValue, ev.OppositePValue, corrected)
	reason := describe(status, reg, ev, corrected)
	if status == verdict.StatusPass && !ReachesMinEffect(reg.Direction, ev.EffectSize, reg.MinEffect) {
		status = verdict.StatusFail
		reason = fmt.Sprintf("%s; effect %s=%.4g short of registered minimum %.4g",
			reason, ev.EffectSizeName, ev.EffectSize, reg.MinEffect)
	}
	if ev.Partial {
		status = verdict.StatusPartial
		reason = fmt.Sprintf("run stopped early; %s", reason)
	}
	if err := claim.Resolve(status); err != nil {
		return nil, err
	}

	rec := r.record(claim, ev)
	rec.Observed = ev.Observed
	rec.Null = ev.Null
	rec.Exact = ev.Exact
	rec.PValue = ev.PValue
	rec.EffectSize = ev.EffectSize
	rec.EffectSizeName = ev.EffectSizeName
	rec.CorrectedAlpha = corrected
	rec.Status = status
	rec.Reason = reason

	r.logger.Info("claim evaluated",
		zap.String("hypothesis_id", string(reg.HypothesisID)),
		zap.String("statistic", reg.Statistic),
		zap.String("status", string(status)),
		zap.Float64("p_value", ev.PValue),
		zap.Float64("corrected_alpha", corrected))
	return rec, rec.Validate()
}

// Insufficient resolves a drafted claim without running its test.
func (r *Referee) Insufficient(claim *verdict.Claim, cause error, prov verdict.Provenance) (*verdict.Record, error) {
	if err := claim.Resolve(verdict.StatusInsufficientSample); err != nil {
		return nil, err
	}
	reg := claim.Registration()
	corrected, err := CorrectedAlpha(reg.Correction, reg.Threshold, reg.FamilySize)
	if err != nil {
		return nil, err
	}
	rec := r.record(claim, Evidence{Provenance: prov})
	rec.CorrectedAlpha = corrected
	rec.PValue = 1
	rec.Status = verdict.StatusInsufficientSample
	rec.Reason = cause.Error()

	r.logger.Info("claim not run",
		zap.String("hypothesis_id", string(reg.HypothesisID)),
		zap.Error(cause))
	return rec, rec.Validate()
}

func (r *Referee) record(claim *verdict.Claim, ev Evidence) *verdict.Record {
	reg := claim.Registration()
	prov := ev.Provenance
	prov.NullMethod = reg.NullMethod
	prov.RegistrationHash = claim.Fingerprint()
	return &verdict.Record{
		ID:           core.NewVerdictID(),
		HypothesisID: reg.HypothesisID,
		Statistic:    reg.Statistic,
		Direction:    reg.Direction,
		Correction:   reg.Correction,
		RawAlpha:     reg.Threshold,
		FamilySize:   reg.FamilySize,
		Provenance:   prov,
		Revision:     1,
		CreatedAt:    core.Now(),
	}
}

func describe(status verdict.Status, reg verdict.Registration, ev Evidence, corrected float64) string {
	switch status {
	case verdict.StatusPass:
		return fmt.Sprintf("p=%.4g <= corrected alpha %.4g (%s, m=%d)", ev.PValue, corrected, reg.Correction, reg.FamilySize)
	case verdict.StatusInformativeNull:
		return fmt.Sprintf("predicted %s not supported (p=%.4g); opposite direction significant (p=%.4g <= %.4g)",
			reg.Direction, ev.PValue, ev.OppositePValue, corrected)
	default:
		return fmt.Sprintf("p=%.4g > corrected alpha %.4g (%s, m=%d)", ev.PValue, corrected, reg.Correction, reg.FamilySize)
	}
}
