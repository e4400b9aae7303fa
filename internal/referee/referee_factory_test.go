package referee

import (
	"testing"

	"glyphstat/domain/verdict"
)

func TestGetTestFactory(t *testing.T) {
	tests := []struct {
		name        string
		testName    string
		expectError bool
		directional bool
	}{
		{"Chi_Square", "chi_square", false, false},
		{"Fisher_Exact", "fisher_exact", false, true},
		{"Spearman", " Spearman ", false, true},
		{"Mann_Whitney", "mann_whitney", false, true},
		{"Kolmogorov_Smirnov", "kolmogorov_smirnov", false, false},
		{"ANOVA", "anova", false, false},
		{"Adjusted_Rand", "adjusted_rand", false, false},
		{"BIC_Compare", "bic_compare", false, false},
		{"Invalid test", "invalid_test", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test, err := GetTestFactory(tt.testName)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error for invalid test %s, got nil", tt.testName)
				}
				return
			}

			if err != nil {
				t.Errorf("Unexpected error for test %s: %v", tt.testName, err)
				return
			}

			if test.Directional() != tt.directional {
				t.Errorf("Directional() for %s = %v, expected %v", tt.testName, test.Directional(), tt.directional)
			}
		})
	}
}

func TestGetTestConfigs(t *testing.T) {
	configs := GetTestConfigs()

	if len(configs) != 8 {
		t.Errorf("Expected 8 test configs, got %d", len(configs))
		return
	}

	for i := 1; i < len(configs); i++ {
		if configs[i-1].Name >= configs[i].Name {
			t.Errorf("Configs not sorted: %s before %s", configs[i-1].Name, configs[i].Name)
		}
	}

	for _, cfg := range configs {
		if _, err := GetTestFactory(cfg.Name); err != nil {
			t.Errorf("Config %s has no factory entry: %v", cfg.Name, err)
		}
	}
}

func TestClosedFormEvidence_SplitsDirectionalP(t *testing.T) {
	test, err := GetTestFactory("spearman")
	if err != nil {
		t.Fatal(err)
	}
	s := Sample{
		X: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		Y: []float64{2, 1, 4, 3, 6, 5, 8, 7, 10, 9, 12, 11},
	}

	greater, err := ClosedFormEvidence(test, s, verdict.DirectionGreater)
	if err != nil {
		t.Fatal(err)
	}
	less, err := ClosedFormEvidence(test, s, verdict.DirectionLess)
	if err != nil {
		t.Fatal(err)
	}
	two, err := ClosedFormEvidence(test, s, verdict.DirectionTwoSided)
	if err != nil {
		t.Fatal(err)
	}

	if greater.PValue >= two.PValue {
		t.Errorf("Expected one-sided p %g below two-sided p %g", greater.PValue, two.PValue)
	}
	if greater.PValue != less.OppositePValue {
		t.Errorf("Expected mirrored p-values, got %g and %g", greater.PValue, less.OppositePValue)
	}
	if less.PValue < 0.5 {
		t.Errorf("Expected large p against a positive correlation, got %g", less.PValue)
	}
	if greater.Exact == nil || greater.Exact.Name != "spearman" {
		t.Errorf("Expected exact test details, got %+v", greater.Exact)
	}
}

func TestClosedFormEvidence_ShapeErrors(t *testing.T) {
	fisher, _ := GetTestFactory("fisher_exact")
	if _, err := ClosedFormEvidence(fisher, Sample{Table: [][]float64{{1, 2, 3}}}, verdict.DirectionTwoSided); err == nil {
		t.Error("Expected error for a non-2x2 table")
	}

	chi, _ := GetTestFactory("chi_square")
	if _, err := ClosedFormEvidence(chi, Sample{}, verdict.DirectionTwoSided); err == nil {
		t.Error("Expected error for a missing table")
	}

	ari, _ := GetTestFactory("adjusted_rand")
	if _, err := ClosedFormEvidence(ari, Sample{A: []int{0, 1}}, verdict.DirectionGreater); err == nil {
		t.Error("Expected error for a missing labeling")
	}
}

func TestClosedFormEvidence_LabelingTests(t *testing.T) {
	var a, b []int
	for i := range 60 {
		a = append(a, i%3)
		b = append(b, (i%3)*2)
	}

	ari, _ := GetTestFactory("adjusted_rand")
	ev, err := ClosedFormEvidence(ari, Sample{A: a, B: b, Permutations: 199, Seed: 3}, verdict.DirectionGreater)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Observed != 1 || ev.PValue != 1.0/200 || ev.OppositePValue != 1 {
		t.Errorf("Expected perfect agreement at the permutation floor, got %+v", ev)
	}

	bic, _ := GetTestFactory("bic_compare")
	ev, err = ClosedFormEvidence(bic, Sample{A: a, B: b}, verdict.DirectionGreater)
	if err != nil {
		t.Fatal(err)
	}
	if ev.EffectSizeName != "delta_bic" || ev.EffectSize <= 0 || ev.PValue > 1e-6 {
		t.Errorf("Expected a preferred predictor, got %+v", ev)
	}
	if ev.Exact == nil || ev.Exact.DegreesOfFreedom != 4 {
		t.Errorf("Expected likelihood-ratio details, got %+v", ev.Exact)
	}
}

func TestValidateConstants(t *testing.T) {
	if err := ValidateConstants(); err != nil {
		t.Errorf("ValidateConstants() = %v", err)
	}
	if len(GetAllThresholds()) == 0 {
		t.Error("Expected thresholds")
	}
}
