package corpus

import (
	"fmt"

	"glyphstat/domain/core"
)

// Stream is a labeled token sequence with its structural boundaries. Null
// models operate on streams; statistics read them and never write.
type Stream struct {
	Labels     []int     `json:"labels"`
	NumLabels  int       `json:"num_labels"`
	Positions  []float64 `json:"positions"`
	Lines      []Span    `json:"lines"`
	Folios     []Span    `json:"folios"`
	FolioLines []Span    `json:"folio_lines"`
}

// Validate checks label range and boundary coverage.
func (s *Stream) Validate() error {
	if len(s.Positions) != len(s.Labels) {
		return fmt.Errorf("%w: %d positions for %d labels", core.ErrInvalidInput, len(s.Positions), len(s.Labels))
	}
	for i, l := range s.Labels {
		if l < 0 || l >= s.NumLabels {
			return fmt.Errorf("%w: label %d at %d outside [0,%d)", core.ErrInvalidInput, l, i, s.NumLabels)
		}
	}
	next := 0
	for _, ln := range s.Lines {
		if ln.Start != next || ln.End <= ln.Start {
			return fmt.Errorf("%w: line span %v does not tile the stream", core.ErrInvalidInput, ln)
		}
		next = ln.End
	}
	if next != len(s.Labels) {
		return fmt.Errorf("%w: lines cover %d of %d tokens", core.ErrInvalidInput, next, len(s.Labels))
	}
	return nil
}

// Len returns the number of labeled tokens.
func (s *Stream) Len() int { return len(s.Labels) }

// Clone returns a deep copy.
func (s *Stream) Clone() *Stream {
	return &Stream{
		Labels:     append([]int(nil), s.Labels...),
		NumLabels:  s.NumLabels,
		Positions:  append([]float64(nil), s.Positions...),
		Lines:      append([]Span(nil), s.Lines...),
		Folios:     append([]Span(nil), s.Folios...),
		FolioLines: append([]Span(nil), s.FolioLines...),
	}
}

// WithLabels returns a copy sharing boundaries but carrying new labels.
func (s *Stream) WithLabels(labels []int) *Stream {
	out := s.Clone()
	out.Labels = labels
	return out
}

// EachTransition calls fn for every adjacent label pair inside a line.
func (s *Stream) EachTransition(fn func(from, to int)) {
	for _, ln := range s.Lines {
		for i := ln.Start; i+1 < ln.End; i++ {
			fn(s.Labels[i], s.Labels[i+1])
		}
	}
}

// Counts returns the label frequency vector.
func (s *Stream) Counts() []int {
	counts := make([]int, s.NumLabels)
	for _, l := range s.Labels {
		counts[l]++
	}
	return counts
}
