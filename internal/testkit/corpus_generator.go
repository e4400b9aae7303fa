package testkit

import (
	"fmt"
	"math/rand"

	"glyphstat/domain/core"
	"glyphstat/domain/corpus"
	"glyphstat/domain/morphology"
)

// CorpusGeneratorConfig configures the synthetic corpus generator
type CorpusGeneratorConfig struct {
	Tokens        int      `json:"tokens" yaml:"tokens"`
	LineLength    int      `json:"line_length" yaml:"line_length"`
	LinesPerFolio int      `json:"lines_per_folio" yaml:"lines_per_folio"`
	Words         []string `json:"words" yaml:"words"`
	// Bias is the weight of the planted successor transition relative to
	// every other transition. 1 means uniform random transitions.
	Bias float64 `json:"bias" yaml:"bias"`
	// RareWord is scattered RareCount times over line-final slots.
	RareWord  string `json:"rare_word,omitempty" yaml:"rare_word,omitempty"`
	RareCount int    `json:"rare_count,omitempty" yaml:"rare_count,omitempty"`
	Seed      int64  `json:"seed" yaml:"seed"`
}

// DefaultCorpusConfig returns a 1,000 token corpus with a 2:1 planted bias.
func DefaultCorpusConfig() CorpusGeneratorConfig {
	return CorpusGeneratorConfig{
		Tokens:        1000,
		LineLength:    10,
		LinesPerFolio: 10,
		Words:         []string{"chedy", "qokain", "sheol"},
		Bias:          2,
		Seed:          42,
	}
}

// DefaultInventory decomposes the default words into distinct signatures:
// ch+dy, qo+ain, sh+ol and _+aiin for the rare word "daiin".
func DefaultInventory() (*morphology.Inventory, error) {
	return morphology.NewInventory([]morphology.Component{
		{Kind: morphology.KindPrefix, Text: "ch", Provenance: "synthetic"},
		{Kind: morphology.KindPrefix, Text: "qo", Provenance: "synthetic"},
		{Kind: morphology.KindPrefix, Text: "sh", Provenance: "synthetic"},
		{Kind: morphology.KindSuffix, Text: "dy", Provenance: "synthetic"},
		{Kind: morphology.KindSuffix, Text: "ain", Provenance: "synthetic"},
		{Kind: morphology.KindSuffix, Text: "aiin", Provenance: "synthetic"},
		{Kind: morphology.KindSuffix, Text: "ol", Provenance: "synthetic"},
	})
}

// CorpusGenerator generates token records whose word sequence follows a
// first-order chain with one favored successor per word.
type CorpusGenerator struct {
	config CorpusGeneratorConfig
	rng    *rand.Rand
}

// NewCorpusGenerator creates a new corpus generator
func NewCorpusGenerator(config CorpusGeneratorConfig) *CorpusGenerator {
	return &CorpusGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

func (g *CorpusGenerator) validate() error {
	c := g.config
	switch {
	case c.Tokens < 1:
		return core.NewValidationError("tokens", "must be positive")
	case c.LineLength < 1:
		return core.NewValidationError("line_length", "must be positive")
	case c.LinesPerFolio < 1:
		return core.NewValidationError("lines_per_folio", "must be positive")
	case len(c.Words) < 2:
		return core.NewValidationError("words", "need at least two words")
	case c.Bias <= 0:
		return core.NewValidationError("bias", "must be positive")
	case c.RareCount > 0 && c.RareWord == "":
		return core.NewValidationError("rare_word", "required when rare_count is set")
	}
	return nil
}

// next draws the successor of word index cur.
func (g *CorpusGenerator) next(cur int) int {
	k := len(g.config.Words)
	total := g.config.Bias + float64(k-1)
	x := g.rng.Float64() * total
	favored := (cur + 1) % k
	if x < g.config.Bias {
		return favored
	}
	// remaining mass spread evenly over the other k-1 words
	j := int(x - g.config.Bias)
	if j >= k-1 {
		j = k - 2
	}
	if j >= favored {
		j++
	}
	return j
}

// GenerateRecords generates the corpus records in reading order.
func (g *CorpusGenerator) GenerateRecords() ([]corpus.Record, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	c := g.config
	words := make([]string, c.Tokens)
	cur := g.rng.Intn(len(c.Words))
	for i := range words {
		if i%c.LineLength == 0 {
			cur = g.rng.Intn(len(c.Words))
		} else {
			cur = g.next(cur)
		}
		words[i] = c.Words[cur]
	}

	if c.RareCount > 0 {
		lines := (c.Tokens + c.LineLength - 1) / c.LineLength
		if c.RareCount > lines {
			return nil, core.NewValidationError("rare_count", fmt.Sprintf("%d exceeds %d lines", c.RareCount, lines))
		}
		for _, line := range g.rng.Perm(lines)[:c.RareCount] {
			last := min((line+1)*c.LineLength, c.Tokens) - 1
			words[last] = c.RareWord
		}
	}

	records := make([]corpus.Record, c.Tokens)
	for i, w := range words {
		line := i / c.LineLength
		folio := line / c.LinesPerFolio
		records[i] = corpus.Record{
			Text:           w,
			LineID:         fmt.Sprintf("f%03d.%02d", folio+1, line%c.LinesPerFolio+1),
			RecordID:       fmt.Sprintf("r%05d", i+1),
			FolioID:        fmt.Sprintf("f%03d", folio+1),
			PositionInLine: i % c.LineLength,
		}
	}
	return records, nil
}
