package ports

import (
	"context"

	"glyphstat/domain/core"
	"glyphstat/domain/verdict"
)

// BatteryPort runs pre-registered hypotheses and records their verdicts
type BatteryPort interface {
	Run(ctx context.Context, spec HypothesisSpec) (*verdict.Record, error)
	RunFamily(ctx context.Context, family FamilySpec) ([]*verdict.Record, error)
}

// HypothesisSpec is the declarative registration of one test.
type HypothesisSpec struct {
	ID         core.HypothesisID  `yaml:"id" json:"id"`
	Statistic  string             `yaml:"statistic" json:"statistic"`
	Level      string             `yaml:"level,omitempty" json:"level,omitempty"`
	NullMethod verdict.NullMethod `yaml:"null_method" json:"null_method"`
	// Test names a closed-form test when NullMethod is closed_form.
	Test      string            `yaml:"test,omitempty" json:"test,omitempty"`
	Samples   int               `yaml:"samples,omitempty" json:"samples,omitempty"`
	Direction verdict.Direction `yaml:"direction" json:"direction"`
	Threshold float64           `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	// FamilyID and FamilySize declare the multiple-comparison family.
	FamilyID      core.FamilyID      `yaml:"family_id,omitempty" json:"family_id,omitempty"`
	FamilySize    int                `yaml:"family_size,omitempty" json:"family_size,omitempty"`
	Correction    verdict.Correction `yaml:"correction,omitempty" json:"correction,omitempty"`
	MinSampleSize int                `yaml:"min_sample_size,omitempty" json:"min_sample_size,omitempty"`
	// Classes are class ids the test reads; each must meet MinSampleSize.
	Classes []int  `yaml:"classes,omitempty" json:"classes,omitempty"`
	Seed    *int64 `yaml:"seed,omitempty" json:"seed,omitempty"`
	// NullValue is the comparison point for block_bootstrap.
	NullValue float64 `yaml:"null_value,omitempty" json:"null_value,omitempty"`
	// Partition maps class id to a group of the competing partition that
	// adjusted_rand compares with the macro-states. Empty means role groups.
	Partition []int `yaml:"partition,omitempty" json:"partition,omitempty"`
	// MinEffect is the effect size a significant result must also reach,
	// such as a delta BIC cut-off for bic_compare.
	MinEffect float64 `yaml:"min_effect,omitempty" json:"min_effect,omitempty"`
}

// Registration is the frozen protocol derived from a spec with defaults applied.
func (s HypothesisSpec) Registration() verdict.Registration {
	return verdict.Registration{
		HypothesisID: s.ID,
		Statistic:    s.Statistic,
		Threshold:    s.Threshold,
		FamilySize:   s.FamilySize,
		Correction:   s.Correction,
		Direction:    s.Direction,
		NullMethod:   s.NullMethod,
		Test:         s.Test,
		Classes:      s.Classes,
		Partition:    s.Partition,
		NullValue:    s.NullValue,
		MinEffect:    s.MinEffect,
	}
}

// FamilySpec groups hypotheses corrected together.
type FamilySpec struct {
	ID         core.FamilyID      `yaml:"id" json:"id"`
	Size       int                `yaml:"size" json:"size"`
	Correction verdict.Correction `yaml:"correction" json:"correction"`
	Hypotheses []HypothesisSpec   `yaml:"hypotheses" json:"hypotheses"`
}
