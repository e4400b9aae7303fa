package ports

import (
	"context"

	"glyphstat/domain/core"
	"glyphstat/domain/verdict"
)

// LedgerWriterPort provides append-only write access to verdicts.
// This is the ONLY way to write verdicts - records are never edited or deleted.
type LedgerWriterPort interface {
	// Append stores a first-revision record. A duplicate id is ErrRecordExists.
	Append(ctx context.Context, rec *verdict.Record) error

	// Supersede stores rec as the next revision of prevID. prevID must be the
	// latest revision of its hypothesis.
	Supersede(ctx context.Context, prevID core.VerdictID, rec *verdict.Record, note string) error
}

// LedgerReaderPort provides read-only access to stored verdicts
// Use this for queries, replay, and API access
type LedgerReaderPort interface {
	Get(ctx context.Context, id core.VerdictID) (*verdict.Record, error)
	// Latest returns the newest revision for a hypothesis.
	Latest(ctx context.Context, hypothesisID core.HypothesisID) (*verdict.Record, error)
	// History returns every revision for a hypothesis, oldest first.
	History(ctx context.Context, hypothesisID core.HypothesisID) ([]*verdict.Record, error)
	List(ctx context.Context, filters VerdictFilters) ([]*verdict.Record, error)
}

// VerdictFilters for querying verdicts
type VerdictFilters struct {
	Status   *verdict.Status
	FamilyID *core.FamilyID
	// LatestOnly hides superseded revisions.
	LatestOnly bool
	Limit      int
	Offset     int
}

// LedgerPort combines read and write access
type LedgerPort interface {
	LedgerWriterPort
	LedgerReaderPort
}
