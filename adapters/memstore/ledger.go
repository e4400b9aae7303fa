// Package memstore is an in-memory verdict ledger.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"glyphstat/domain/core"
	"glyphstat/domain/verdict"
	"glyphstat/ports"
)

// Ledger implements LedgerPort with in-memory storage
type Ledger struct {
	records      []*verdict.Record
	byID         map[core.VerdictID]int
	byHypothesis map[core.HypothesisID][]int
	mu           sync.RWMutex
}

var _ ports.LedgerPort = (*Ledger)(nil)

func NewLedger() *Ledger {
	return &Ledger{
		byID:         make(map[core.VerdictID]int),
		byHypothesis: make(map[core.HypothesisID][]int),
	}
}

func (s *Ledger) insert(rec *verdict.Record) {
	idx := len(s.records)
	s.records = append(s.records, rec.Clone())
	s.byID[rec.ID] = idx
	s.byHypothesis[rec.HypothesisID] = append(s.byHypothesis[rec.HypothesisID], idx)
}

func (s *Ledger) Append(ctx context.Context, rec *verdict.Record) error {
	if err := verdict.PrepareAppend(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[rec.ID]; exists {
		return fmt.Errorf("%w: verdict %s", core.ErrRecordExists, rec.ID)
	}
	if len(s.byHypothesis[rec.HypothesisID]) > 0 {
		return fmt.Errorf("%w: hypothesis %s already has a verdict; supersede it", core.ErrRecordExists, rec.HypothesisID)
	}
	s.insert(rec)
	return nil
}

func (s *Ledger) Supersede(ctx context.Context, prevID core.VerdictID, rec *verdict.Record, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[prevID]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrVerdictNotFound, prevID)
	}
	prev := s.records[idx]
	chain := s.byHypothesis[prev.HypothesisID]
	if chain[len(chain)-1] != idx {
		return fmt.Errorf("%w: verdict %s is already superseded", core.ErrIllegalTransition, prevID)
	}
	if _, exists := s.byID[rec.ID]; exists {
		return fmt.Errorf("%w: verdict %s", core.ErrRecordExists, rec.ID)
	}
	if err := verdict.PrepareSupersede(prev, rec, note); err != nil {
		return err
	}
	s.insert(rec)
	return nil
}

func (s *Ledger) Get(ctx context.Context, id core.VerdictID) (*verdict.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrVerdictNotFound, id)
	}
	return s.records[idx].Clone(), nil
}

func (s *Ledger) Latest(ctx context.Context, hypothesisID core.HypothesisID) (*verdict.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.byHypothesis[hypothesisID]
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: no verdict for hypothesis %s", core.ErrVerdictNotFound, hypothesisID)
	}
	return s.records[chain[len(chain)-1]].Clone(), nil
}

func (s *Ledger) History(ctx context.Context, hypothesisID core.HypothesisID) ([]*verdict.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.byHypothesis[hypothesisID]
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: no verdict for hypothesis %s", core.ErrVerdictNotFound, hypothesisID)
	}
	out := make([]*verdict.Record, len(chain))
	for i, idx := range chain {
		out[i] = s.records[idx].Clone()
	}
	return out, nil
}

func (s *Ledger) List(ctx context.Context, filters ports.VerdictFilters) ([]*verdict.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*verdict.Record
	skipped := 0
	for idx, rec := range s.records {
		// Apply filters
		if filters.Status != nil && rec.Status != *filters.Status {
			continue
		}
		if filters.FamilyID != nil && rec.FamilyID != *filters.FamilyID {
			continue
		}
		if filters.LatestOnly {
			chain := s.byHypothesis[rec.HypothesisID]
			if chain[len(chain)-1] != idx {
				continue
			}
		}
		if skipped < filters.Offset {
			skipped++
			continue
		}
		results = append(results, rec.Clone())
		if filters.Limit > 0 && len(results) >= filters.Limit {
			break
		}
	}
	return results, nil
}
