package app

import (
	"context"
	"io"

	"go.uber.org/zap"

	"glyphstat/adapters/memstore"
	"glyphstat/adapters/sqlstore"
	"glyphstat/internal/config"
	apperrors "glyphstat/internal/errors"
	"glyphstat/ports"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenLedger opens the configured verdict ledger. The closer releases the
// database handle; it is a no-op for the in-memory ledger.
func OpenLedger(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (ports.LedgerPort, io.Closer, error) {
	switch cfg.Driver {
	case "memory", "":
		return memstore.NewLedger(), nopCloser{}, nil
	case "sqlite", "postgres":
		l, err := sqlstore.Open(ctx, cfg.Driver, cfg.DSN, logger)
		if err != nil {
			return nil, nil, apperrors.WithCode(apperrors.CodeDatabaseError, err)
		}
		return l, l, nil
	default:
		return nil, nil, apperrors.ConfigInvalid("unknown storage driver " + cfg.Driver)
	}
}
