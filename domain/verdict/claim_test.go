package verdict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glyphstat/domain/core"
)

func baseRegistration() Registration {
	return Registration{
		HypothesisID: "h-transition-bias",
		Statistic:    "transition_mi",
		Threshold:    0.01,
		FamilySize:   4,
		Correction:   CorrectionBonferroni,
		Direction:    DirectionGreater,
		NullMethod:   NullShuffle,
	}
}

func TestClaimLifecycle(t *testing.T) {
	claim, err := Draft(baseRegistration())
	require.NoError(t, err)
	assert.Equal(t, StateDrafted, claim.State())

	require.NoError(t, claim.Evaluate(baseRegistration()))
	assert.Equal(t, StateEvaluated, claim.State())

	require.NoError(t, claim.Resolve(StatusPass))
	assert.Equal(t, StatePassed, claim.State())
	assert.True(t, claim.State().IsTerminal())

	err = claim.Resolve(StatusFail)
	assert.ErrorIs(t, err, core.ErrIllegalTransition)
}

func TestClaim_PostHocThresholdIsProtocolViolation(t *testing.T) {
	claim, err := Draft(baseRegistration())
	require.NoError(t, err)

	loosened := baseRegistration()
	loosened.Threshold = 0.05

	err = claim.Evaluate(loosened)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrProtocolViolation)
	assert.Contains(t, err.Error(), "threshold changed")
	assert.Equal(t, StateDrafted, claim.State())
}

func TestClaim_ChangedComparisonInputsAreProtocolViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Registration)
		want   string
	}{
		{"null value", func(r *Registration) { r.NullValue = 0 }, "null value changed"},
		{"min effect", func(r *Registration) { r.MinEffect = 0 }, "minimum effect changed"},
		{"test", func(r *Registration) { r.Test = "anova" }, "test changed"},
		{"classes", func(r *Registration) { r.Classes = []int{1, 0} }, "classes changed"},
		{"partition", func(r *Registration) { r.Partition = []int{0, 0, 1} }, "partition changed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frozen := baseRegistration()
			frozen.NullMethod = NullBlockBootstrap
			frozen.NullValue = 1
			frozen.MinEffect = 0.2
			frozen.Test = "kolmogorov_smirnov"
			frozen.Classes = []int{0, 1}
			frozen.Partition = []int{0, 1, 1}
			claim, err := Draft(frozen)
			require.NoError(t, err)

			presented := frozen
			presented.Classes = append([]int(nil), frozen.Classes...)
			presented.Partition = append([]int(nil), frozen.Partition...)
			tt.mutate(&presented)

			err = claim.Evaluate(presented)
			assert.ErrorIs(t, err, core.ErrProtocolViolation)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, StateDrafted, claim.State())
		})
	}
}

func TestClaim_IllegalTransitions(t *testing.T) {
	claim, err := Draft(baseRegistration())
	require.NoError(t, err)

	assert.ErrorIs(t, claim.Resolve(StatusPass), core.ErrIllegalTransition, "cannot skip EVALUATED")

	require.NoError(t, claim.Resolve(StatusInsufficientSample))
	assert.Equal(t, StateInsufficientSample, claim.State())
	assert.ErrorIs(t, claim.Evaluate(baseRegistration()), core.ErrIllegalTransition)
}

func TestRegistration_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Registration)
	}{
		{"threshold zero", func(r *Registration) { r.Threshold = 0 }},
		{"threshold one", func(r *Registration) { r.Threshold = 1 }},
		{"family size", func(r *Registration) { r.FamilySize = 0 }},
		{"correction", func(r *Registration) { r.Correction = "holm" }},
		{"direction", func(r *Registration) { r.Direction = "up" }},
		{"null method", func(r *Registration) { r.NullMethod = "jackknife" }},
		{"hypothesis", func(r *Registration) { r.HypothesisID = "" }},
		{"negative min effect", func(r *Registration) { r.MinEffect = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := baseRegistration()
			tt.mutate(&reg)
			_, err := Draft(reg)
			assert.ErrorIs(t, err, core.ErrInvalidInput)
		})
	}
}

func TestRegistration_FingerprintCoversEveryField(t *testing.T) {
	base := baseRegistration().Fingerprint()
	variants := []func(*Registration){
		func(r *Registration) { r.Statistic = "transition_chi2" },
		func(r *Registration) { r.Threshold = 0.011 },
		func(r *Registration) { r.FamilySize = 5 },
		func(r *Registration) { r.Correction = CorrectionSidak },
		func(r *Registration) { r.Direction = DirectionTwoSided },
		func(r *Registration) { r.NullMethod = NullFrequencyMatched },
		func(r *Registration) { r.NullValue = 1 },
		func(r *Registration) { r.MinEffect = 0.5 },
		func(r *Registration) { r.Test = "mann_whitney" },
		func(r *Registration) { r.Classes = []int{0, 1} },
		func(r *Registration) { r.Partition = []int{0, 1} },
	}
	for i, v := range variants {
		reg := baseRegistration()
		v(&reg)
		assert.NotEqual(t, base, reg.Fingerprint(), "variant %d", i)
	}
}
