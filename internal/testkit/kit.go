package testkit

import (
	"fmt"
	"sort"

	"glyphstat/adapters/memstore"
	"glyphstat/adapters/nullmodel"
	"glyphstat/adapters/rng"
	"glyphstat/adapters/stats/engine"
	"glyphstat/domain/classes"
	"glyphstat/domain/corpus"
	"glyphstat/domain/morphology"
	"glyphstat/internal/referee"
)

// TestKit provides a synthetic corpus snapshot with every layer built on it
type TestKit struct {
	Records        []corpus.Record
	Corpus         *corpus.Corpus
	Inventory      *morphology.Inventory
	Decompositions []morphology.Decomposition
	Assignment     *classes.Assignment
	Engine         *engine.StatsEngine
	Ledger         *memstore.Ledger
	Generator      *nullmodel.Generator
	Referee        *referee.Referee
}

// NewTestKit generates a corpus from cfg and assigns one class per
// signature, so planted transitions between words are transitions between
// classes. Classes under minSampleSize are flagged low confidence.
func NewTestKit(cfg CorpusGeneratorConfig, minSampleSize, workers int) (*TestKit, error) {
	records, err := NewCorpusGenerator(cfg).GenerateRecords()
	if err != nil {
		return nil, fmt.Errorf("failed to generate corpus: %w", err)
	}
	c, err := corpus.New(records)
	if err != nil {
		return nil, err
	}
	inv, err := DefaultInventory()
	if err != nil {
		return nil, err
	}
	decs, err := morphology.NewDecomposer(inv).DecomposeAll(c)
	if err != nil {
		return nil, err
	}
	a, err := SignatureAssignment(decs, minSampleSize)
	if err != nil {
		return nil, err
	}
	eng, err := engine.NewStatsEngine(c, decs, a, engine.Options{Workers: workers})
	if err != nil {
		return nil, err
	}
	return &TestKit{
		Records:        records,
		Corpus:         c,
		Inventory:      inv,
		Decompositions: decs,
		Assignment:     a,
		Engine:         eng,
		Ledger:         memstore.NewLedger(),
		Generator:      nullmodel.NewGenerator(rng.New(), workers, nil),
		Referee:        referee.NewReferee(nil),
	}, nil
}

// SignatureAssignment puts every signature in its own class, ordered by
// descending frequency then signature.
func SignatureAssignment(decs []morphology.Decomposition, minSampleSize int) (*classes.Assignment, error) {
	counts := make(map[string]int)
	for _, d := range decs {
		counts[d.Signature()]++
	}
	sigs := make([]string, 0, len(counts))
	for s := range counts {
		sigs = append(sigs, s)
	}
	sort.Slice(sigs, func(i, j int) bool {
		if counts[sigs[i]] != counts[sigs[j]] {
			return counts[sigs[i]] > counts[sigs[j]]
		}
		return sigs[i] < sigs[j]
	})
	cls := make([]classes.Class, len(sigs))
	for i, s := range sigs {
		cls[i] = classes.Class{
			ID:            i,
			Signatures:    []string{s},
			Role:          classes.RoleAuxiliary,
			Observations:  counts[s],
			LowConfidence: counts[s] < minSampleSize,
		}
	}
	return classes.NewAssignment(cls, nil)
}

// ClassOf returns the class id holding a signature, or -1.
func (t *TestKit) ClassOf(signature string) int {
	id, ok := t.Assignment.ClassOf(signature)
	if !ok {
		return -1
	}
	return id
}
