package referee

// referee_const.go
//
// Fixed standards shared by every evaluation. Registrations may tighten the
// threshold but the defaults below apply when a hypothesis file leaves a
// field empty.

import (
	"fmt"
)

const (
	// DEFAULT_ALPHA is the raw significance threshold before correction.
	DEFAULT_ALPHA = 0.01

	// DEFAULT_PERMUTATIONS is the null sample count for resampling tests.
	DEFAULT_PERMUTATIONS = 2000

	// MIN_PERMUTATIONS is the smallest null that can resolve DEFAULT_ALPHA
	// after a family of ten Bonferroni-corrected tests.
	MIN_PERMUTATIONS = 1000

	// DEFAULT_MIN_SAMPLE_SIZE is the observation floor for a class or
	// subgroup entering a test.
	DEFAULT_MIN_SAMPLE_SIZE = 50

	// PRECISION_TOLERANCE is the default early-exit standard error of an
	// empirical p-value.
	PRECISION_TOLERANCE = 0.001
)

// ValidateConstants performs runtime validation of all constants
func ValidateConstants() error {
	if DEFAULT_ALPHA <= 0 || DEFAULT_ALPHA >= 1 {
		return fmt.Errorf("DEFAULT_ALPHA out of range: %f not in (0,1)", DEFAULT_ALPHA)
	}
	if MIN_PERMUTATIONS > DEFAULT_PERMUTATIONS {
		return fmt.Errorf("MIN_PERMUTATIONS %d exceeds DEFAULT_PERMUTATIONS %d", MIN_PERMUTATIONS, DEFAULT_PERMUTATIONS)
	}
	// the smallest attainable p must be able to clear the corrected alpha
	if 1.0/float64(MIN_PERMUTATIONS+1) > DEFAULT_ALPHA/10 {
		return fmt.Errorf("MIN_PERMUTATIONS %d cannot resolve alpha %g over 10 tests", MIN_PERMUTATIONS, DEFAULT_ALPHA)
	}
	return nil
}

// GetAllThresholds returns a map of all threshold constants for logging/debugging
func GetAllThresholds() map[string]float64 {
	return map[string]float64{
		"DEFAULT_ALPHA":           DEFAULT_ALPHA,
		"DEFAULT_PERMUTATIONS":    DEFAULT_PERMUTATIONS,
		"MIN_PERMUTATIONS":        MIN_PERMUTATIONS,
		"DEFAULT_MIN_SAMPLE_SIZE": DEFAULT_MIN_SAMPLE_SIZE,
		"PRECISION_TOLERANCE":     PRECISION_TOLERANCE,
	}
}
