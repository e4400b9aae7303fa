package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound           = errors.New("resource not found")
	ErrVerdictNotFound    = fmt.Errorf("%w: verdict", ErrNotFound)
	ErrHypothesisNotFound = fmt.Errorf("%w: hypothesis", ErrNotFound)
	ErrClassNotFound      = fmt.Errorf("%w: class", ErrNotFound)

	// Input errors
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidToken  = fmt.Errorf("%w: token", ErrInvalidInput)
	ErrInvalidRecord = fmt.Errorf("%w: corpus record", ErrInvalidInput)

	// Statistical errors
	ErrInsufficientSample = errors.New("insufficient sample")
	ErrNormalization      = errors.New("normalization invariant violated")
	ErrNullExhaustion     = errors.New("permutation count exceeds safety bound")

	// Protocol errors
	ErrProtocolViolation = errors.New("pre-registration protocol violation")
	ErrIllegalTransition = errors.New("illegal claim state transition")
	ErrRecordExists      = errors.New("record already exists")

	// Determinism errors
	ErrSeedMismatch = errors.New("seed mismatch")
	ErrHashMismatch = errors.New("hash mismatch")
)

// InsufficientSampleError reports a subgroup that is too small for a requested test.
type InsufficientSampleError struct {
	Subject  string
	Observed int
	Required int
}

func (e *InsufficientSampleError) Error() string {
	return fmt.Sprintf("insufficient sample for %s: %d observations, %d required", e.Subject, e.Observed, e.Required)
}

func (e *InsufficientSampleError) Unwrap() error { return ErrInsufficientSample }

// NewValidationError reports an invalid field on an input record.
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInput, field, reason)
}

// NewProtocolViolation reports a claim evaluated against terms it was not registered with.
func NewProtocolViolation(hypothesis HypothesisID, reason string) error {
	return fmt.Errorf("%w: hypothesis %s: %s", ErrProtocolViolation, hypothesis, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsInsufficientSample(err error) bool {
	return errors.Is(err, ErrInsufficientSample)
}

func IsDeterminismError(err error) bool {
	return errors.Is(err, ErrSeedMismatch) ||
		errors.Is(err, ErrHashMismatch)
}
