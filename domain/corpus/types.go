package corpus

import (
	"glyphstat/domain/core"
)

// Record is one token row as delivered by the ingestion collaborator.
type Record struct {
	Text           string `json:"text" yaml:"text"`
	LineID         string `json:"line_id" yaml:"line_id"`
	RecordID       string `json:"record_id" yaml:"record_id"`
	FolioID        string `json:"folio_id" yaml:"folio_id"`
	PositionInLine int    `json:"position_in_line" yaml:"position_in_line"`
}

// Token is an ingested token with its positional metadata. Immutable.
type Token struct {
	Text     string        `json:"text"`
	Index    int           `json:"index"`
	Line     int           `json:"line"`
	LineID   core.LineID   `json:"line_id"`
	RecordID core.RecordID `json:"record_id"`
	FolioID  core.FolioID  `json:"folio_id"`
	// Position is the line-relative position normalized to [0,1].
	Position float64 `json:"position"`
}

// Span is a half-open index range [Start, End).
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of elements covered.
func (s Span) Len() int { return s.End - s.Start }
