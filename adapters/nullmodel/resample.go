package nullmodel

import (
	"math/rand"
	"sort"

	"glyphstat/domain/corpus"
)

// shuffle permutes labels over fixed positions (Fisher-Yates).
func shuffle(s *corpus.Stream, r *rand.Rand) *corpus.Stream {
	labels := append([]int(nil), s.Labels...)
	for i := len(labels) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		labels[i], labels[j] = labels[j], labels[i]
	}
	return s.WithLabels(labels)
}

// frequencyMatched redraws every label independently from the marginal label
// frequencies, keeping line and folio structure.
func frequencyMatched(s *corpus.Stream, r *rand.Rand) *corpus.Stream {
	counts := s.Counts()
	cum := make([]int, len(counts))
	total := 0
	for i, c := range counts {
		total += c
		cum[i] = total
	}
	labels := make([]int, len(s.Labels))
	for i := range labels {
		x := r.Intn(total)
		labels[i] = sort.SearchInts(cum, x+1)
	}
	return s.WithLabels(labels)
}

// blockBootstrap resamples whole folios with replacement, or whole lines when
// the stream has a single folio.
func blockBootstrap(s *corpus.Stream, r *rand.Rand) *corpus.Stream {
	out := &corpus.Stream{NumLabels: s.NumLabels}

	if len(s.Folios) > 1 {
		for range s.Folios {
			f := r.Intn(len(s.Folios))
			lineRange := s.FolioLines[f]
			firstLine := len(out.Lines)
			for _, ln := range s.Lines[lineRange.Start:lineRange.End] {
				appendLine(out, s, ln)
			}
			out.FolioLines = append(out.FolioLines, corpus.Span{Start: firstLine, End: len(out.Lines)})
			out.Folios = append(out.Folios, corpus.Span{Start: out.Lines[firstLine].Start, End: len(out.Labels)})
		}
		return out
	}

	for range s.Lines {
		appendLine(out, s, s.Lines[r.Intn(len(s.Lines))])
	}
	out.Folios = []corpus.Span{{Start: 0, End: len(out.Labels)}}
	out.FolioLines = []corpus.Span{{Start: 0, End: len(out.Lines)}}
	return out
}

func appendLine(out, src *corpus.Stream, ln corpus.Span) {
	start := len(out.Labels)
	out.Labels = append(out.Labels, src.Labels[ln.Start:ln.End]...)
	out.Positions = append(out.Positions, src.Positions[ln.Start:ln.End]...)
	out.Lines = append(out.Lines, corpus.Span{Start: start, End: len(out.Labels)})
}
