package verdict

import (
	"fmt"
	"math"
	"slices"

	"glyphstat/domain/core"
)

// ClaimState is a step in a single claim's lifecycle.
type ClaimState string

const (
	StateDrafted            ClaimState = "DRAFTED"
	StateEvaluated          ClaimState = "EVALUATED"
	StatePassed             ClaimState = "PASSED"
	StateFailed             ClaimState = "FAILED"
	StateInformativeNull    ClaimState = "INFORMATIVE_NULL"
	StateInsufficientSample ClaimState = "INSUFFICIENT_SAMPLE"
	StatePartial            ClaimState = "PARTIAL"
)

// IsTerminal reports whether no further transition is allowed.
func (s ClaimState) IsTerminal() bool {
	switch s {
	case StatePassed, StateFailed, StateInformativeNull, StateInsufficientSample, StatePartial:
		return true
	}
	return false
}

var terminalFor = map[Status]ClaimState{
	StatusPass:               StatePassed,
	StatusFail:               StateFailed,
	StatusInformativeNull:    StateInformativeNull,
	StatusInsufficientSample: StateInsufficientSample,
	StatusPartial:            StatePartial,
}

// Registration is the pre-registered protocol of a hypothesis. It is frozen
// when the claim is drafted.
type Registration struct {
	HypothesisID core.HypothesisID `json:"hypothesis_id"`
	Statistic    string            `json:"statistic"`
	Threshold    float64           `json:"threshold"`
	FamilySize   int               `json:"family_size"`
	Correction   Correction        `json:"correction"`
	Direction    Direction         `json:"direction"`
	NullMethod   NullMethod        `json:"null_method"`
	// Test names the closed-form test; empty for resampling statistics.
	Test string `json:"test,omitempty"`
	// Classes and Partition select what the test reads.
	Classes   []int `json:"classes,omitempty"`
	Partition []int `json:"partition,omitempty"`
	// NullValue is the block_bootstrap comparison point.
	NullValue float64 `json:"null_value,omitempty"`
	// MinEffect is the smallest effect size, in the registered direction,
	// that a significant result must also reach. Zero disables the floor.
	MinEffect float64 `json:"min_effect,omitempty"`
}

// Validate checks the registration before it is frozen.
func (r Registration) Validate() error {
	switch {
	case core.ID(r.HypothesisID).IsEmpty():
		return core.NewValidationError("registration", "hypothesis_id cannot be empty")
	case r.Statistic == "":
		return core.NewValidationError("registration", "statistic cannot be empty")
	case r.Threshold <= 0 || r.Threshold >= 1:
		return core.NewValidationError("registration", fmt.Sprintf("threshold %g outside (0,1)", r.Threshold))
	case r.FamilySize < 1:
		return core.NewValidationError("registration", "family_size must be at least 1")
	case !r.Correction.IsValid():
		return core.NewValidationError("registration", "unknown correction "+string(r.Correction))
	case !r.Direction.IsValid():
		return core.NewValidationError("registration", "unknown direction "+string(r.Direction))
	case !r.NullMethod.IsValid():
		return core.NewValidationError("registration", "unknown null method "+string(r.NullMethod))
	case r.MinEffect < 0 || math.IsNaN(r.MinEffect):
		return core.NewValidationError("registration", fmt.Sprintf("min_effect %g must be non-negative", r.MinEffect))
	}
	return nil
}

// Fingerprint hashes every field that must not change after drafting.
func (r Registration) Fingerprint() core.Hash {
	h := core.NewHasher("registration/v2").
		Field(string(r.HypothesisID)).
		Field(r.Statistic).
		Float(r.Threshold).
		Int(int64(r.FamilySize)).
		Field(string(r.Correction)).
		Field(string(r.Direction)).
		Field(string(r.NullMethod)).
		Field(r.Test).
		Float(r.NullValue).
		Float(r.MinEffect)
	for _, ids := range [][]int{r.Classes, r.Partition} {
		h.Int(int64(len(ids)))
		for _, id := range ids {
			h.Int(int64(id))
		}
	}
	return h.Sum()
}

// Claim tracks one hypothesis through DRAFTED, EVALUATED and a terminal state.
type Claim struct {
	registration Registration
	fingerprint  core.Hash
	state        ClaimState
	draftedAt    core.Timestamp
}

// Draft freezes a registration and opens a claim.
func Draft(reg Registration) (*Claim, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &Claim{
		registration: reg,
		fingerprint:  reg.Fingerprint(),
		state:        StateDrafted,
		draftedAt:    core.Now(),
	}, nil
}

// State returns the current lifecycle state.
func (c *Claim) State() ClaimState { return c.state }

// Registration returns the frozen registration.
func (c *Claim) Registration() Registration { return c.registration }

// Fingerprint returns the registration hash frozen at draft time.
func (c *Claim) Fingerprint() core.Hash { return c.fingerprint }

// Evaluate moves a drafted claim to EVALUATED. The registration presented at
// evaluation time must match the one frozen at draft.
func (c *Claim) Evaluate(presented Registration) error {
	if c.state != StateDrafted {
		return fmt.Errorf("%w: %s -> %s", core.ErrIllegalTransition, c.state, StateEvaluated)
	}
	if presented.Fingerprint() != c.fingerprint {
		return core.NewProtocolViolation(c.registration.HypothesisID, describeDrift(c.registration, presented))
	}
	c.state = StateEvaluated
	return nil
}

// Resolve moves the claim to the terminal state for status. Only
// INSUFFICIENT_SAMPLE may be reached directly from DRAFTED, since the test is
// then never run.
func (c *Claim) Resolve(status Status) error {
	target, ok := terminalFor[status]
	if !ok {
		return fmt.Errorf("%w: unknown status %q", core.ErrIllegalTransition, status)
	}
	switch {
	case c.state == StateEvaluated:
	case c.state == StateDrafted && status == StatusInsufficientSample:
	default:
		return fmt.Errorf("%w: %s -> %s", core.ErrIllegalTransition, c.state, target)
	}
	c.state = target
	return nil
}

func describeDrift(frozen, presented Registration) string {
	switch {
	case frozen.Threshold != presented.Threshold:
		return fmt.Sprintf("threshold changed from %g to %g after drafting", frozen.Threshold, presented.Threshold)
	case frozen.FamilySize != presented.FamilySize:
		return fmt.Sprintf("family size changed from %d to %d after drafting", frozen.FamilySize, presented.FamilySize)
	case frozen.Correction != presented.Correction:
		return fmt.Sprintf("correction changed from %s to %s after drafting", frozen.Correction, presented.Correction)
	case frozen.Direction != presented.Direction:
		return fmt.Sprintf("direction changed from %s to %s after drafting", frozen.Direction, presented.Direction)
	case frozen.NullMethod != presented.NullMethod:
		return fmt.Sprintf("null method changed from %s to %s after drafting", frozen.NullMethod, presented.NullMethod)
	case frozen.NullValue != presented.NullValue:
		return fmt.Sprintf("null value changed from %g to %g after drafting", frozen.NullValue, presented.NullValue)
	case frozen.MinEffect != presented.MinEffect:
		return fmt.Sprintf("minimum effect changed from %g to %g after drafting", frozen.MinEffect, presented.MinEffect)
	case frozen.Test != presented.Test:
		return fmt.Sprintf("test changed from %q to %q after drafting", frozen.Test, presented.Test)
	case !slices.Equal(frozen.Classes, presented.Classes):
		return fmt.Sprintf("classes changed from %v to %v after drafting", frozen.Classes, presented.Classes)
	case !slices.Equal(frozen.Partition, presented.Partition):
		return fmt.Sprintf("partition changed from %v to %v after drafting", frozen.Partition, presented.Partition)
	default:
		return "registration changed after drafting"
	}
}
