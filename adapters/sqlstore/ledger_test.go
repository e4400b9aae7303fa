package sqlstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"glyphstat/domain/core"
	"glyphstat/domain/verdict"
	"glyphstat/internal/ledgertest"
	"glyphstat/ports"
)

func openMemory(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), "sqlite", ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedgerContract(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) ports.LedgerPort { return openMemory(t) })
}

func TestLedger_OffsetWithoutLimit(t *testing.T) {
	ctx := context.Background()
	l := openMemory(t)
	for _, h := range []core.HypothesisID{"a", "b", "c"} {
		require.NoError(t, l.Append(ctx, ledgertest.NewRecord(h, verdict.StatusPass)))
	}
	recs, err := l.List(ctx, ports.VerdictFilters{Offset: 2})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, core.HypothesisID("c"), recs[0].HypothesisID)
}

func TestLedger_ConcurrentAppendsKeepEveryRecord(t *testing.T) {
	ctx := context.Background()
	l, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	const writers = 24
	var eg errgroup.Group
	for i := range writers {
		eg.Go(func() error {
			return l.Append(ctx, ledgertest.NewRecord(core.HypothesisID(fmt.Sprintf("h-%02d", i)), verdict.StatusPass))
		})
	}
	require.NoError(t, eg.Wait())

	recs, err := l.List(ctx, ports.VerdictFilters{})
	require.NoError(t, err)
	assert.Len(t, recs, writers)

	var seqs []int64
	require.NoError(t, l.DB().SelectContext(ctx, &seqs, "SELECT seq FROM verdicts ORDER BY seq"))
	for i, seq := range seqs {
		assert.Equal(t, int64(i+1), seq)
	}
}

func TestMigrator_Idempotent(t *testing.T) {
	ctx := context.Background()
	l := openMemory(t)
	m := NewMigrator(l.DB(), nil)

	require.NoError(t, m.Up(ctx))
	status, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 2)
	for _, s := range status {
		assert.True(t, s.Applied, s.Version)
	}
	assert.Equal(t, "001", status[0].Version)
	assert.Equal(t, "verdicts", status[0].Name)
}

func TestMigrator_DetectsModifiedMigration(t *testing.T) {
	ctx := context.Background()
	l := openMemory(t)

	_, err := l.DB().ExecContext(ctx, "UPDATE schema_migrations SET checksum = 'tampered' WHERE version = '001'")
	require.NoError(t, err)

	err = NewMigrator(l.DB(), nil).Up(ctx)
	assert.ErrorIs(t, err, core.ErrHashMismatch)
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (x INT);\n\n CREATE INDEX i ON a (x);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a (x)"}, got)
}
