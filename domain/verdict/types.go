package verdict

import (
	"glyphstat/domain/core"
)

// Status is the terminal outcome carried by every evaluated claim.
type Status string

const (
	StatusPass               Status = "PASS"
	StatusFail               Status = "FAIL"
	StatusInformativeNull    Status = "INFORMATIVE_NULL"
	StatusInsufficientSample Status = "INSUFFICIENT_SAMPLE"
	StatusPartial            Status = "PARTIAL"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPass, StatusFail, StatusInformativeNull, StatusInsufficientSample, StatusPartial:
		return true
	}
	return false
}

// NullMethod names the randomization policy behind a comparison.
type NullMethod string

const (
	NullShuffle          NullMethod = "shuffle"
	NullFrequencyMatched NullMethod = "frequency_matched"
	NullBlockBootstrap   NullMethod = "block_bootstrap"
	// NullClosedForm marks tests evaluated against an analytic distribution.
	NullClosedForm NullMethod = "closed_form"
)

// IsValid reports whether m is a known method.
func (m NullMethod) IsValid() bool {
	switch m {
	case NullShuffle, NullFrequencyMatched, NullBlockBootstrap, NullClosedForm:
		return true
	}
	return false
}

// IsResampling reports whether the method draws a null distribution.
func (m NullMethod) IsResampling() bool {
	return m.IsValid() && m != NullClosedForm
}

// Correction names a multiple-comparison correction.
type Correction string

const (
	CorrectionNone       Correction = "none"
	CorrectionBonferroni Correction = "bonferroni"
	CorrectionSidak      Correction = "sidak"
)

// IsValid reports whether c is a known correction.
func (c Correction) IsValid() bool {
	switch c {
	case CorrectionNone, CorrectionBonferroni, CorrectionSidak:
		return true
	}
	return false
}

// Direction is the pre-registered sidedness of a prediction.
type Direction string

const (
	DirectionGreater  Direction = "greater"
	DirectionLess     Direction = "less"
	DirectionTwoSided Direction = "two_sided"
)

// IsValid reports whether d is a known direction.
func (d Direction) IsValid() bool {
	switch d {
	case DirectionGreater, DirectionLess, DirectionTwoSided:
		return true
	}
	return false
}

// Opposite flips a one-sided direction; two-sided has no opposite.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionGreater:
		return DirectionLess
	case DirectionLess:
		return DirectionGreater
	}
	return d
}

// NullDistributionSummary provides key statistics about the null distribution
type NullDistributionSummary struct {
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Percentile95 float64 `json:"percentile_95"`
	Percentile99 float64 `json:"percentile_99"`
	Requested    int     `json:"requested"`
	Used         int     `json:"used"`
	EarlyStopped bool    `json:"early_stopped"`
	Partial      bool    `json:"partial"`
}

// ExactTest holds the analytic statistic of a closed-form test.
type ExactTest struct {
	Name             string  `json:"name"`
	Statistic        float64 `json:"statistic"`
	DegreesOfFreedom float64 `json:"degrees_of_freedom,omitempty"`
}

// Provenance is everything needed to reproduce a verdict.
type Provenance struct {
	Seed             int64                 `json:"seed"`
	NullMethod       NullMethod            `json:"null_method"`
	SamplesRequested int                   `json:"samples_requested"`
	SamplesUsed      int                   `json:"samples_used"`
	SampleSize       int                   `json:"sample_size"`
	CorpusVersion    core.CorpusVersion    `json:"corpus_version"`
	InventoryVersion core.InventoryVersion `json:"inventory_version"`
	ClassVersion     core.ClassVersion     `json:"class_version"`
	CodeVersion      string                `json:"code_version"`
	RegistrationHash core.Hash             `json:"registration_hash"`
	// PooledClasses are low-confidence classes whose tokens were folded into
	// one shared label before the statistic was computed.
	PooledClasses []int `json:"pooled_classes,omitempty"`
}

// Record is the immutable outcome of one evaluated hypothesis.
type Record struct {
	ID             core.VerdictID           `json:"id"`
	HypothesisID   core.HypothesisID        `json:"hypothesis_id"`
	FamilyID       core.FamilyID            `json:"family_id,omitempty"`
	Statistic      string                   `json:"statistic"`
	Observed       float64                  `json:"observed"`
	Null           *NullDistributionSummary `json:"null,omitempty"`
	Exact          *ExactTest               `json:"exact,omitempty"`
	PValue         float64                  `json:"p_value"`
	EffectSize     float64                  `json:"effect_size"`
	EffectSizeName string                   `json:"effect_size_name,omitempty"`
	Direction      Direction                `json:"direction"`
	Correction     Correction               `json:"correction"`
	RawAlpha       float64                  `json:"raw_alpha"`
	CorrectedAlpha float64                  `json:"corrected_alpha"`
	FamilySize     int                      `json:"family_size"`
	Status         Status                   `json:"status"`
	Reason         string                   `json:"reason,omitempty"`
	Provenance     Provenance               `json:"provenance"`
	Revision       int                      `json:"revision"`
	Supersedes     core.VerdictID           `json:"supersedes,omitempty"`
	SupersedeNote  string                   `json:"supersede_note,omitempty"`
	CreatedAt      core.Timestamp           `json:"created_at"`
}

// Validate checks that a record is complete enough to be stored.
func (r *Record) Validate() error {
	if core.ID(r.ID).IsEmpty() {
		return core.NewValidationError("verdict", "id cannot be empty")
	}
	if core.ID(r.HypothesisID).IsEmpty() {
		return core.NewValidationError("verdict", "hypothesis_id cannot be empty")
	}
	if r.Statistic == "" {
		return core.NewValidationError("verdict", "statistic cannot be empty")
	}
	if !r.Status.IsValid() {
		return core.NewValidationError("verdict", "unknown status "+string(r.Status))
	}
	if r.Status != StatusInsufficientSample && (r.PValue < 0 || r.PValue > 1) {
		return core.NewValidationError("verdict", "p_value outside [0,1]")
	}
	if r.CorrectedAlpha > r.RawAlpha {
		return core.NewValidationError("verdict", "corrected alpha exceeds raw alpha")
	}
	return nil
}
