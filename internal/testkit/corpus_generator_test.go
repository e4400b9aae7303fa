package testkit

import (
	"testing"

	"glyphstat/adapters/stats/engine"
)

func TestCorpusGenerator_Basic(t *testing.T) {
	cfg := DefaultCorpusConfig()
	records, err := NewCorpusGenerator(cfg).GenerateRecords()
	if err != nil {
		t.Fatalf("Failed to generate records: %v", err)
	}

	if len(records) != cfg.Tokens {
		t.Fatalf("Expected %d records, got %d", cfg.Tokens, len(records))
	}

	for i, r := range records {
		if r.Text == "" {
			t.Errorf("Record %d has empty text", i)
		}
		if r.PositionInLine != i%cfg.LineLength {
			t.Errorf("Record %d has position %d", i, r.PositionInLine)
		}
	}
	if records[0].FolioID != "f001" || records[len(records)-1].FolioID != "f010" {
		t.Errorf("Unexpected folio ids %s..%s", records[0].FolioID, records[len(records)-1].FolioID)
	}
}

func TestCorpusGenerator_Deterministic(t *testing.T) {
	a, err := NewCorpusGenerator(DefaultCorpusConfig()).GenerateRecords()
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewCorpusGenerator(DefaultCorpusConfig()).GenerateRecords()
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Record %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestCorpusGenerator_PlantedBias(t *testing.T) {
	cfg := DefaultCorpusConfig()
	cfg.Tokens = 20000
	cfg.LinesPerFolio = 100
	kit, err := NewTestKit(cfg, 50, 1)
	if err != nil {
		t.Fatalf("Failed to build kit: %v", err)
	}
	stream, err := kit.Engine.ClassStream()
	if err != nil {
		t.Fatal(err)
	}
	counts := engine.TransitionCounts(stream)

	// successor of word i is word i+1; with bias 2 over 3 words it takes
	// half of the transitions
	succ := map[string]string{"ch+dy": "qo+ain", "qo+ain": "sh+ol", "sh+ol": "ch+dy"}
	for from, to := range succ {
		i, j := kit.ClassOf(from), kit.ClassOf(to)
		row := 0.0
		for _, v := range counts[i] {
			row += v
		}
		share := counts[i][j] / row
		if share < 0.47 || share > 0.53 {
			t.Errorf("Successor share %s -> %s = %.3f, expected about 0.5", from, to, share)
		}
	}
}

func TestCorpusGenerator_RareWord(t *testing.T) {
	cfg := DefaultCorpusConfig()
	cfg.RareWord = "daiin"
	cfg.RareCount = 8
	kit, err := NewTestKit(cfg, 50, 1)
	if err != nil {
		t.Fatalf("Failed to build kit: %v", err)
	}
	id := kit.ClassOf("_+aiin")
	if id < 0 {
		t.Fatal("Rare signature has no class")
	}
	c, _ := kit.Assignment.Class(id)
	if c.Observations != 8 || !c.LowConfidence {
		t.Errorf("Rare class = %+v, expected 8 low-confidence observations", c)
	}
}

func TestCorpusGenerator_InvalidConfig(t *testing.T) {
	cfg := DefaultCorpusConfig()
	cfg.Words = []string{"chedy"}
	if _, err := NewCorpusGenerator(cfg).GenerateRecords(); err == nil {
		t.Error("Expected error for a single word")
	}

	cfg = DefaultCorpusConfig()
	cfg.RareCount = 3
	if _, err := NewCorpusGenerator(cfg).GenerateRecords(); err == nil {
		t.Error("Expected error for rare count without a rare word")
	}
}
