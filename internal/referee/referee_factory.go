package referee

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"glyphstat/adapters/stats/classical"
	"glyphstat/domain/core"
	"glyphstat/domain/verdict"
)

// referee_factory.go
// Maps closed-form test names from hypothesis files to implementations.

// Sample is the data a closed-form test reads. Each test uses the fields
// matching its shape and ignores the rest.
type Sample struct {
	Table  [][]float64
	Groups [][]float64
	X, Y   []float64
	// A and B are categorical labelings of the same items. bic_compare
	// models outcome A from predictor B.
	A, B []int
	// Permutations and Seed drive tests whose p-value is resampled.
	Permutations int
	Seed         int64
}

// ClosedFormTest runs one analytic test.
type ClosedFormTest interface {
	Execute(s Sample) (classical.Result, error)
	// Directional tests have a signed effect whose sign a prediction can
	// name; their two-sided p-value is split by the sign.
	Directional() bool
}

// TestConfig describes one registered test.
type TestConfig struct {
	Name        string
	Shape       string
	Description string
}

type tableTest struct {
	run func([][]float64) (classical.Result, error)
}

func (t tableTest) Execute(s Sample) (classical.Result, error) {
	if len(s.Table) == 0 {
		return classical.Result{}, core.NewValidationError("sample", "table test needs a contingency table")
	}
	return t.run(s.Table)
}
func (tableTest) Directional() bool { return false }

type pairTest struct {
	run         func(x, y []float64) (classical.Result, error)
	directional bool
}

func (t pairTest) Execute(s Sample) (classical.Result, error) {
	if len(s.X) == 0 || len(s.Y) == 0 {
		return classical.Result{}, core.NewValidationError("sample", "two-sample test needs x and y")
	}
	return t.run(s.X, s.Y)
}
func (t pairTest) Directional() bool { return t.directional }

type groupTest struct{}

func (groupTest) Execute(s Sample) (classical.Result, error) {
	return classical.OneWayANOVA(s.Groups)
}
func (groupTest) Directional() bool { return false }

type fisherTest struct{}

func (fisherTest) Execute(s Sample) (classical.Result, error) {
	t := s.Table
	if len(t) != 2 || len(t[0]) != 2 || len(t[1]) != 2 {
		return classical.Result{}, core.NewValidationError("sample", "fisher exact test needs a 2x2 table")
	}
	return classical.FisherExact2x2(int(t[0][0]), int(t[0][1]), int(t[1][0]), int(t[1][1]))
}
func (fisherTest) Directional() bool { return true }

type labelTest struct {
	run func(s Sample) (classical.Result, error)
}

func (t labelTest) Execute(s Sample) (classical.Result, error) {
	if len(s.A) == 0 || len(s.B) == 0 {
		return classical.Result{}, core.NewValidationError("sample", "labeling test needs two labelings")
	}
	return t.run(s)
}
func (labelTest) Directional() bool { return false }

func adjustedRand(s Sample) (classical.Result, error) {
	return classical.AdjustedRandPermutation(s.A, s.B, s.Permutations, rand.New(rand.NewSource(s.Seed)))
}

func bicCompare(s Sample) (classical.Result, error) {
	return classical.BICComparison(s.A, s.B)
}

var closedFormTests = map[string]struct {
	test ClosedFormTest
	cfg  TestConfig
}{
	"chi_square": {tableTest{run: classical.ChiSquareIndependence},
		TestConfig{Name: "chi_square", Shape: "table", Description: "Pearson chi-square independence with Cramér's V"}},
	"fisher_exact": {fisherTest{},
		TestConfig{Name: "fisher_exact", Shape: "2x2 table", Description: "Fisher exact test with odds ratio"}},
	"spearman": {pairTest{run: classical.Spearman, directional: true},
		TestConfig{Name: "spearman", Shape: "paired x,y", Description: "Spearman rank correlation"}},
	"mann_whitney": {pairTest{run: classical.MannWhitney, directional: true},
		TestConfig{Name: "mann_whitney", Shape: "two samples", Description: "Mann-Whitney U with rank-biserial correlation"}},
	"kolmogorov_smirnov": {pairTest{run: classical.KolmogorovSmirnov},
		TestConfig{Name: "kolmogorov_smirnov", Shape: "two samples", Description: "two-sample Kolmogorov-Smirnov"}},
	"anova": {groupTest{},
		TestConfig{Name: "anova", Shape: "groups", Description: "one-way ANOVA with eta squared"}},
	"adjusted_rand": {labelTest{run: adjustedRand},
		TestConfig{Name: "adjusted_rand", Shape: "two labelings", Description: "adjusted Rand index with a permutation p-value"}},
	"bic_compare": {labelTest{run: bicCompare},
		TestConfig{Name: "bic_compare", Shape: "outcome, predictor", Description: "likelihood-ratio test with delta BIC against the intercept-only model"}},
}

// GetTestFactory returns a closed-form test by name.
func GetTestFactory(name string) (ClosedFormTest, error) {
	entry, ok := closedFormTests[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: unknown closed-form test %q", core.ErrInvalidInput, name)
	}
	return entry.test, nil
}

// GetTestConfigs lists the registered tests by name.
func GetTestConfigs() []TestConfig {
	out := make([]TestConfig, 0, len(closedFormTests))
	for _, e := range closedFormTests {
		out = append(out, e.cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ClosedFormEvidence runs a test and orients its p-value to the registered
// direction. Non-directional tests report their upper-tail p-value for any
// direction and never support an opposite finding.
func ClosedFormEvidence(test ClosedFormTest, s Sample, direction verdict.Direction) (Evidence, error) {
	res, err := test.Execute(s)
	if err != nil {
		return Evidence{}, err
	}
	ev := Evidence{
		Observed:       res.Statistic,
		PValue:         res.PValue,
		OppositePValue: 1,
		EffectSize:     res.EffectSize,
		EffectSizeName: res.EffectSizeName,
		Exact: &verdict.ExactTest{
			Name:             res.Name,
			Statistic:        res.Statistic,
			DegreesOfFreedom: res.DegreesOfFreedom,
		},
		Provenance: verdict.Provenance{SampleSize: res.N},
	}
	if !test.Directional() || direction == verdict.DirectionTwoSided {
		return ev, nil
	}

	positive := res.EffectSize > 0
	if res.EffectSizeName == "odds_ratio" {
		positive = res.EffectSize > 1
	}
	half := res.PValue / 2
	upper, lower := 1-half, half
	if positive {
		upper, lower = half, 1-half
	}
	if direction == verdict.DirectionGreater {
		ev.PValue, ev.OppositePValue = upper, lower
	} else {
		ev.PValue, ev.OppositePValue = lower, upper
	}
	return ev, nil
}
