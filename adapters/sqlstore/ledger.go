// Package sqlstore is a verdict ledger over database/sql via sqlx. It runs
// against Postgres (lib/pq) or SQLite (modernc.org/sqlite).
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"glyphstat/domain/core"
	"glyphstat/domain/verdict"
	"glyphstat/internal/logging"
	"glyphstat/ports"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Ledger implements LedgerPort for SQL databases
type Ledger struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var _ ports.LedgerPort = (*Ledger)(nil)

// Connect opens a database handle without migrating it.
func Connect(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// one connection keeps :memory: databases shared and serializes writers
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// Open connects to driver ("postgres" or "sqlite") and applies migrations.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*Ledger, error) {
	db, err := Connect(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := NewMigrator(db, logger).Up(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return NewLedger(db, logger), nil
}

// NewLedger wraps an already migrated database.
func NewLedger(db *sqlx.DB, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, logger: logging.OrNop(logger).Named("sqlstore")}
}

// DB exposes the handle for migrations and health checks.
func (l *Ledger) DB() *sqlx.DB { return l.db }

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

type row struct {
	ID   string `db:"id"`
	Body string `db:"body"`
}

func (r row) decode() (*verdict.Record, error) {
	var rec verdict.Record
	if err := json.Unmarshal([]byte(r.Body), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode verdict %s: %w", r.ID, err)
	}
	return &rec, nil
}

func decodeAll(rows []row) ([]*verdict.Record, error) {
	out := make([]*verdict.Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// lockWriters serializes ledger writers for the rest of tx. seq is assigned
// as MAX(seq)+1 and the append and supersede checks read before they write,
// so two writers must never interleave. Postgres takes a table lock that
// conflicts only with itself and other writers; readers are not blocked.
// SQLite already serializes through its single connection.
func (l *Ledger) lockWriters(ctx context.Context, tx *sqlx.Tx) error {
	if l.db.DriverName() != "postgres" {
		return nil
	}
	if _, err := tx.ExecContext(ctx, "LOCK TABLE verdicts IN SHARE ROW EXCLUSIVE MODE"); err != nil {
		return fmt.Errorf("failed to lock verdicts: %w", err)
	}
	return nil
}

func (l *Ledger) insert(ctx context.Context, tx *sqlx.Tx, rec *verdict.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode verdict: %w", err)
	}
	var seq int64
	if err := tx.GetContext(ctx, &seq, "SELECT COALESCE(MAX(seq), 0) + 1 FROM verdicts"); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO verdicts (
			id, seq, hypothesis_id, family_id, revision, supersedes, supersede_note,
			statistic, status, p_value, corpus_version, class_version, created_at, body
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		string(rec.ID), seq, string(rec.HypothesisID), string(rec.FamilyID), rec.Revision,
		string(rec.Supersedes), rec.SupersedeNote, rec.Statistic, string(rec.Status), rec.PValue,
		string(rec.Provenance.CorpusVersion), string(rec.Provenance.ClassVersion),
		rec.CreatedAt.Time().Format(time.RFC3339Nano), string(body))
	return err
}

func (l *Ledger) exists(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (bool, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, l.db.Rebind(query), args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *Ledger) Append(ctx context.Context, rec *verdict.Record) error {
	if err := verdict.PrepareAppend(rec); err != nil {
		return err
	}
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := l.lockWriters(ctx, tx); err != nil {
		return err
	}

	if dup, err := l.exists(ctx, tx, "SELECT COUNT(*) FROM verdicts WHERE id = ?", string(rec.ID)); err != nil {
		return err
	} else if dup {
		return fmt.Errorf("%w: verdict %s", core.ErrRecordExists, rec.ID)
	}
	if has, err := l.exists(ctx, tx, "SELECT COUNT(*) FROM verdicts WHERE hypothesis_id = ?", string(rec.HypothesisID)); err != nil {
		return err
	} else if has {
		return fmt.Errorf("%w: hypothesis %s already has a verdict; supersede it", core.ErrRecordExists, rec.HypothesisID)
	}
	if err := l.insert(ctx, tx, rec); err != nil {
		return fmt.Errorf("failed to append verdict: %w", err)
	}
	return tx.Commit()
}

func (l *Ledger) Supersede(ctx context.Context, prevID core.VerdictID, rec *verdict.Record, note string) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := l.lockWriters(ctx, tx); err != nil {
		return err
	}

	var r row
	err = tx.GetContext(ctx, &r, tx.Rebind("SELECT id, body FROM verdicts WHERE id = ?"), string(prevID))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", core.ErrVerdictNotFound, prevID)
	}
	if err != nil {
		return err
	}
	prev, err := r.decode()
	if err != nil {
		return err
	}
	if done, err := l.exists(ctx, tx, "SELECT COUNT(*) FROM verdicts WHERE supersedes = ?", string(prevID)); err != nil {
		return err
	} else if done {
		return fmt.Errorf("%w: verdict %s is already superseded", core.ErrIllegalTransition, prevID)
	}
	if dup, err := l.exists(ctx, tx, "SELECT COUNT(*) FROM verdicts WHERE id = ?", string(rec.ID)); err != nil {
		return err
	} else if dup {
		return fmt.Errorf("%w: verdict %s", core.ErrRecordExists, rec.ID)
	}
	if err := verdict.PrepareSupersede(prev, rec, note); err != nil {
		return err
	}
	if err := l.insert(ctx, tx, rec); err != nil {
		return fmt.Errorf("failed to supersede verdict: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	l.logger.Info("verdict superseded",
		zap.String("hypothesis_id", string(rec.HypothesisID)),
		zap.String("previous", string(prevID)),
		zap.Int("revision", rec.Revision))
	return nil
}

func (l *Ledger) Get(ctx context.Context, id core.VerdictID) (*verdict.Record, error) {
	var r row
	err := l.db.GetContext(ctx, &r, l.db.Rebind("SELECT id, body FROM verdicts WHERE id = ?"), string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrVerdictNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return r.decode()
}

func (l *Ledger) Latest(ctx context.Context, hypothesisID core.HypothesisID) (*verdict.Record, error) {
	var r row
	err := l.db.GetContext(ctx, &r, l.db.Rebind(`
		SELECT id, body FROM verdicts
		WHERE hypothesis_id = ?
		ORDER BY revision DESC LIMIT 1`), string(hypothesisID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no verdict for hypothesis %s", core.ErrVerdictNotFound, hypothesisID)
	}
	if err != nil {
		return nil, err
	}
	return r.decode()
}

func (l *Ledger) History(ctx context.Context, hypothesisID core.HypothesisID) ([]*verdict.Record, error) {
	var rows []row
	err := l.db.SelectContext(ctx, &rows, l.db.Rebind(`
		SELECT id, body FROM verdicts
		WHERE hypothesis_id = ?
		ORDER BY revision`), string(hypothesisID))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no verdict for hypothesis %s", core.ErrVerdictNotFound, hypothesisID)
	}
	return decodeAll(rows)
}

func (l *Ledger) List(ctx context.Context, filters ports.VerdictFilters) ([]*verdict.Record, error) {
	var where []string
	var args []interface{}
	if filters.Status != nil {
		where = append(where, "v.status = ?")
		args = append(args, string(*filters.Status))
	}
	if filters.FamilyID != nil {
		where = append(where, "v.family_id = ?")
		args = append(args, string(*filters.FamilyID))
	}
	if filters.LatestOnly {
		where = append(where, "NOT EXISTS (SELECT 1 FROM verdicts s WHERE s.supersedes = v.id)")
	}

	query := "SELECT v.id, v.body FROM verdicts v"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY v.seq"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}
	if filters.Offset > 0 {
		if filters.Limit <= 0 {
			// SQLite requires LIMIT before OFFSET
			if l.db.DriverName() == "postgres" {
				query += " LIMIT ALL"
			} else {
				query += " LIMIT -1"
			}
		}
		query += " OFFSET ?"
		args = append(args, filters.Offset)
	}

	var rows []row
	if err := l.db.SelectContext(ctx, &rows, l.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return decodeAll(rows)
}
