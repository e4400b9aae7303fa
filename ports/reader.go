package ports

import (
	"context"

	"glyphstat/domain/corpus"
)

// CorpusReaderPort delivers token records from the ingestion collaborator.
type CorpusReaderPort interface {
	ReadRecords(ctx context.Context) ([]corpus.Record, error)
}
