package referee

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glyphstat/domain/core"
	"glyphstat/domain/verdict"
)

func registration(direction verdict.Direction, family int) verdict.Registration {
	return verdict.Registration{
		HypothesisID: "h-transition-bias",
		Statistic:    "transition_mi",
		Threshold:    0.01,
		FamilySize:   family,
		Correction:   verdict.CorrectionBonferroni,
		Direction:    direction,
		NullMethod:   verdict.NullShuffle,
	}
}

func TestCorrectedAlpha_Monotone(t *testing.T) {
	for _, c := range []verdict.Correction{verdict.CorrectionNone, verdict.CorrectionBonferroni, verdict.CorrectionSidak} {
		t.Run(string(c), func(t *testing.T) {
			prev := 1.0
			for m := 1; m <= 50; m++ {
				a, err := CorrectedAlpha(c, 0.05, m)
				require.NoError(t, err)
				assert.LessOrEqual(t, a, 0.05)
				assert.LessOrEqual(t, a, prev)
				prev = a
			}
		})
	}

	bonf, _ := CorrectedAlpha(verdict.CorrectionBonferroni, 0.05, 10)
	assert.InDelta(t, 0.005, bonf, 1e-15)
	sidak, _ := CorrectedAlpha(verdict.CorrectionSidak, 0.05, 10)
	assert.InDelta(t, 0.0051162, sidak, 1e-6)
	assert.Greater(t, sidak, bonf)

	one, _ := CorrectedAlpha(verdict.CorrectionSidak, 0.05, 1)
	assert.InDelta(t, 0.05, one, 1e-15)
}

func TestCorrectedAlpha_Invalid(t *testing.T) {
	_, err := CorrectedAlpha(verdict.CorrectionBonferroni, 0, 3)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	_, err = CorrectedAlpha(verdict.CorrectionBonferroni, 0.05, 0)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	_, err = CorrectedAlpha("holm", 0.05, 2)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestJudge(t *testing.T) {
	tests := []struct {
		name      string
		direction verdict.Direction
		p, opp    float64
		want      verdict.Status
	}{
		{"significant", verdict.DirectionGreater, 0.001, 0.999, verdict.StatusPass},
		{"at threshold", verdict.DirectionGreater, 0.005, 0.995, verdict.StatusPass},
		{"not significant", verdict.DirectionGreater, 0.4, 0.6, verdict.StatusFail},
		{"opposite significant", verdict.DirectionGreater, 0.999, 0.001, verdict.StatusInformativeNull},
		{"two sided has no opposite", verdict.DirectionTwoSided, 0.4, 0.001, verdict.StatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Judge(tt.direction, tt.p, tt.opp, 0.005))
		})
	}
}

func TestEvaluate_PassRecord(t *testing.T) {
	reg := registration(verdict.DirectionGreater, 1)
	claim, err := verdict.Draft(reg)
	require.NoError(t, err)

	rec, err := NewReferee(nil).Evaluate(claim, reg, Evidence{
		Observed:       0.42,
		PValue:         1.0 / 1001,
		OppositePValue: 1,
		EffectSize:     3.1,
		EffectSizeName: "z",
		Null:           &verdict.NullDistributionSummary{Requested: 1000, Used: 1000},
		Provenance:     verdict.Provenance{Seed: 42, SamplesRequested: 1000, SamplesUsed: 1000, SampleSize: 1000},
	})
	require.NoError(t, err)

	assert.Equal(t, verdict.StatusPass, rec.Status)
	assert.Equal(t, verdict.StatePassed, claim.State())
	assert.Equal(t, 0.01, rec.RawAlpha)
	assert.Equal(t, 0.01, rec.CorrectedAlpha)
	assert.Equal(t, verdict.NullShuffle, rec.Provenance.NullMethod)
	assert.Equal(t, claim.Fingerprint(), rec.Provenance.RegistrationHash)
	assert.Equal(t, 1, rec.Revision)
	assert.False(t, core.ID(rec.ID).IsEmpty())
}

func TestEvaluate_FamilyCorrectionTurnsPassIntoFail(t *testing.T) {
	reg := registration(verdict.DirectionGreater, 10)
	claim, err := verdict.Draft(reg)
	require.NoError(t, err)

	rec, err := NewReferee(nil).Evaluate(claim, reg, Evidence{PValue: 0.003, OppositePValue: 0.997})
	require.NoError(t, err)
	assert.Equal(t, verdict.StatusFail, rec.Status)
	assert.InDelta(t, 0.001, rec.CorrectedAlpha, 1e-15)
}

func TestEvaluate_InformativeNull(t *testing.T) {
	reg := registration(verdict.DirectionLess, 1)
	claim, err := verdict.Draft(reg)
	require.NoError(t, err)

	rec, err := NewReferee(nil).Evaluate(claim, reg, Evidence{PValue: 0.998, OppositePValue: 0.002})
	require.NoError(t, err)
	assert.Equal(t, verdict.StatusInformativeNull, rec.Status)
	assert.Contains(t, rec.Reason, "opposite direction")
}

func TestReachesMinEffect(t *testing.T) {
	tests := []struct {
		name      string
		direction verdict.Direction
		effect    float64
		want      bool
	}{
		{"no floor", verdict.DirectionGreater, -3, true},
		{"greater above", verdict.DirectionGreater, 12, true},
		{"greater below", verdict.DirectionGreater, 9, false},
		{"greater wrong sign", verdict.DirectionGreater, -12, false},
		{"less", verdict.DirectionLess, -12, true},
		{"less wrong sign", verdict.DirectionLess, 12, false},
		{"two sided", verdict.DirectionTwoSided, -12, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			floor := 10.0
			if tt.name == "no floor" {
				floor = 0
			}
			assert.Equal(t, tt.want, ReachesMinEffect(tt.direction, tt.effect, floor))
		})
	}
}

func TestEvaluate_SignificantButBelowMinEffectFails(t *testing.T) {
	reg := registration(verdict.DirectionGreater, 1)
	reg.MinEffect = 10
	claim, err := verdict.Draft(reg)
	require.NoError(t, err)

	rec, err := NewReferee(nil).Evaluate(claim, reg, Evidence{
		PValue: 0.0001, OppositePValue: 1, EffectSize: 4.2, EffectSizeName: "delta_bic",
	})
	require.NoError(t, err)
	assert.Equal(t, verdict.StatusFail, rec.Status)
	assert.Contains(t, rec.Reason, "short of registered minimum 10")
}

func TestEvaluate_PartialRun(t *testing.T) {
	reg := registration(verdict.DirectionGreater, 1)
	claim, err := verdict.Draft(reg)
	require.NoError(t, err)

	rec, err := NewReferee(nil).Evaluate(claim, reg, Evidence{PValue: 0.001, OppositePValue: 1, Partial: true})
	require.NoError(t, err)
	assert.Equal(t, verdict.StatusPartial, rec.Status)
	assert.Equal(t, verdict.StatePartial, claim.State())
}

func TestEvaluate_ThresholdChangedAfterDraft(t *testing.T) {
	reg := registration(verdict.DirectionGreater, 1)
	claim, err := verdict.Draft(reg)
	require.NoError(t, err)

	loosened := reg
	loosened.Threshold = 0.05
	_, err = NewReferee(nil).Evaluate(claim, loosened, Evidence{PValue: 0.03, OppositePValue: 0.97})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrProtocolViolation))
	assert.Equal(t, verdict.StateDrafted, claim.State())
}

func TestEvaluate_TwiceIsIllegal(t *testing.T) {
	reg := registration(verdict.DirectionGreater, 1)
	claim, err := verdict.Draft(reg)
	require.NoError(t, err)
	r := NewReferee(nil)

	_, err = r.Evaluate(claim, reg, Evidence{PValue: 0.5, OppositePValue: 0.5})
	require.NoError(t, err)
	_, err = r.Evaluate(claim, reg, Evidence{PValue: 0.001, OppositePValue: 1})
	assert.ErrorIs(t, err, core.ErrIllegalTransition)
}

func TestEvaluate_RejectsInvalidPValue(t *testing.T) {
	reg := registration(verdict.DirectionGreater, 1)
	claim, err := verdict.Draft(reg)
	require.NoError(t, err)

	_, err = NewReferee(nil).Evaluate(claim, reg, Evidence{PValue: 1.5})
	assert.ErrorIs(t, err, core.ErrNormalization)
}

func TestInsufficient(t *testing.T) {
	reg := registration(verdict.DirectionGreater, 1)
	claim, err := verdict.Draft(reg)
	require.NoError(t, err)

	cause := &core.InsufficientSampleError{Subject: "class 3", Observed: 8, Required: 50}
	rec, err := NewReferee(nil).Insufficient(claim, cause, verdict.Provenance{SampleSize: 8})
	require.NoError(t, err)

	assert.Equal(t, verdict.StatusInsufficientSample, rec.Status)
	assert.Equal(t, verdict.StateInsufficientSample, claim.State())
	assert.Contains(t, rec.Reason, "8")
	assert.Nil(t, rec.Null)
	assert.Equal(t, 8, rec.Provenance.SampleSize)
}
