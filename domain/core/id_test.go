package core

import (
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestParseHypothesisID tests hypothesis ID parsing
func TestParseHypothesisID(t *testing.T) {
	tests := []struct {
		input    string
		expected HypothesisID
		hasError bool
	}{
		{"h-transition-bias", HypothesisID("h-transition-bias"), false},
		{"", "", true},
		{"   ", "", true},
	}

	for _, test := range tests {
		result, err := ParseHypothesisID(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

func TestParseVerdictID(t *testing.T) {
	id := NewVerdictID()
	parsed, err := ParseVerdictID(id.String())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if parsed != id {
		t.Errorf("Expected %s, got %s", id, parsed)
	}

	if _, err := ParseVerdictID("not-a-uuid"); err == nil {
		t.Error("Expected error for non-UUID verdict id")
	}
}

func TestHasherFieldBoundaries(t *testing.T) {
	a := NewHasher("t").Field("ab").Field("c").Sum()
	b := NewHasher("t").Field("a").Field("bc").Sum()
	if a == b {
		t.Error("Expected length-prefixed fields to produce different hashes")
	}

	again := NewHasher("t").Field("ab").Field("c").Sum()
	if a != again {
		t.Error("Expected identical inputs to hash identically")
	}
}

func TestInsufficientSampleErrorUnwraps(t *testing.T) {
	err := error(&InsufficientSampleError{Subject: "class 3", Observed: 8, Required: 50})
	if !IsInsufficientSample(err) {
		t.Errorf("Expected %v to unwrap to ErrInsufficientSample", err)
	}
}
