package corpus

import (
	"fmt"

	"glyphstat/domain/core"
)

// Corpus is an ordered, validated token stream partitioned into lines and folios.
// It is read-only once built; accessors return copies.
type Corpus struct {
	tokens  []Token
	lines   []Span
	folios  []Span
	folioLn []Span // line-index range per folio
	version core.CorpusVersion
}

// New validates records in order and builds a corpus. The first malformed
// record fails the whole build; nothing is skipped.
func New(records []Record) (*Corpus, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: corpus has no records", core.ErrInvalidRecord)
	}

	c := &Corpus{tokens: make([]Token, 0, len(records))}
	hasher := core.NewHasher("corpus/v1")

	seenLines := make(map[string]bool)
	seenFolios := make(map[string]bool)
	lastPos := 0

	for i, r := range records {
		if err := validateRecord(i, r); err != nil {
			return nil, err
		}

		lineKey := r.FolioID + "\x00" + r.LineID
		newFolio := len(c.folios) == 0 || string(c.tokens[len(c.tokens)-1].FolioID) != r.FolioID
		newLine := newFolio || string(c.tokens[len(c.tokens)-1].LineID) != r.LineID

		if newFolio {
			if seenFolios[r.FolioID] {
				return nil, fmt.Errorf("%w: record %d: folio %q is not contiguous", core.ErrInvalidRecord, i, r.FolioID)
			}
			seenFolios[r.FolioID] = true
			c.closeSpans(i)
			c.folios = append(c.folios, Span{Start: i})
			c.folioLn = append(c.folioLn, Span{Start: len(c.lines)})
		}
		if newLine {
			if seenLines[lineKey] {
				return nil, fmt.Errorf("%w: record %d: line %q in folio %q is not contiguous", core.ErrInvalidRecord, i, r.LineID, r.FolioID)
			}
			seenLines[lineKey] = true
			if !newFolio {
				c.lines[len(c.lines)-1].End = i
			}
			c.lines = append(c.lines, Span{Start: i})
		} else if r.PositionInLine <= lastPos {
			return nil, fmt.Errorf("%w: record %d: position %d does not follow %d in line %q",
				core.ErrInvalidRecord, i, r.PositionInLine, lastPos, r.LineID)
		}
		lastPos = r.PositionInLine

		c.tokens = append(c.tokens, Token{
			Text:     r.Text,
			Index:    i,
			Line:     len(c.lines) - 1,
			LineID:   core.LineID(r.LineID),
			RecordID: core.RecordID(r.RecordID),
			FolioID:  core.FolioID(r.FolioID),
		})

		hasher.Field(r.Text).Field(r.LineID).Field(r.RecordID).Field(r.FolioID).Int(int64(r.PositionInLine))
	}
	c.closeSpans(len(records))

	for _, line := range c.lines {
		n := line.Len()
		for k := 0; k < n; k++ {
			if n > 1 {
				c.tokens[line.Start+k].Position = float64(k) / float64(n-1)
			}
		}
	}

	c.version = core.CorpusVersion(hasher.Sum())
	return c, nil
}

func (c *Corpus) closeSpans(at int) {
	if len(c.lines) > 0 && c.lines[len(c.lines)-1].End == 0 {
		c.lines[len(c.lines)-1].End = at
	}
	if len(c.folios) > 0 {
		c.folios[len(c.folios)-1].End = at
		c.folioLn[len(c.folioLn)-1].End = len(c.lines)
	}
}

func validateRecord(i int, r Record) error {
	switch {
	case r.Text == "":
		return fmt.Errorf("%w: record %d: empty token text", core.ErrInvalidRecord, i)
	case r.LineID == "":
		return fmt.Errorf("%w: record %d: empty line_id", core.ErrInvalidRecord, i)
	case r.FolioID == "":
		return fmt.Errorf("%w: record %d: empty folio_id", core.ErrInvalidRecord, i)
	case r.PositionInLine < 0:
		return fmt.Errorf("%w: record %d: negative position_in_line %d", core.ErrInvalidRecord, i, r.PositionInLine)
	}
	return nil
}

// Version is the content hash of the corpus.
func (c *Corpus) Version() core.CorpusVersion { return c.version }

// Len returns the number of tokens.
func (c *Corpus) Len() int { return len(c.tokens) }

// Token returns the token at index i.
func (c *Corpus) Token(i int) Token { return c.tokens[i] }

// Tokens returns a copy of the token slice.
func (c *Corpus) Tokens() []Token {
	out := make([]Token, len(c.tokens))
	copy(out, c.tokens)
	return out
}

// Texts returns the token texts in order.
func (c *Corpus) Texts() []string {
	out := make([]string, len(c.tokens))
	for i, t := range c.tokens {
		out[i] = t.Text
	}
	return out
}

// Lines returns a copy of the line spans.
func (c *Corpus) Lines() []Span {
	out := make([]Span, len(c.lines))
	copy(out, c.lines)
	return out
}

// Folios returns a copy of the folio spans.
func (c *Corpus) Folios() []Span {
	out := make([]Span, len(c.folios))
	copy(out, c.folios)
	return out
}

// FolioLines returns, per folio, the range of line indices it contains.
func (c *Corpus) FolioLines() []Span {
	return append([]Span(nil), c.folioLn...)
}

// Stream attaches one label per token and returns a labeled stream sharing
// this corpus's boundaries.
func (c *Corpus) Stream(labels []int, numLabels int) (*Stream, error) {
	if len(labels) != len(c.tokens) {
		return nil, fmt.Errorf("%w: %d labels for %d tokens", core.ErrInvalidInput, len(labels), len(c.tokens))
	}
	positions := make([]float64, len(c.tokens))
	for i, t := range c.tokens {
		positions[i] = t.Position
	}
	s := &Stream{
		Labels:     append([]int(nil), labels...),
		NumLabels:  numLabels,
		Positions:  positions,
		Lines:      c.Lines(),
		Folios:     c.Folios(),
		FolioLines: append([]Span(nil), c.folioLn...),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
