// Package ledgertest holds the behavioral contract every LedgerPort
// implementation must satisfy.
package ledgertest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glyphstat/domain/core"
	"glyphstat/domain/verdict"
	"glyphstat/ports"
)

// NewRecord returns a valid first-revision record for a hypothesis.
func NewRecord(hypothesis core.HypothesisID, status verdict.Status) *verdict.Record {
	return &verdict.Record{
		ID:             core.NewVerdictID(),
		HypothesisID:   hypothesis,
		Statistic:      "transition_mi",
		Observed:       0.25,
		Null:           &verdict.NullDistributionSummary{Mean: 0.01, StdDev: 0.002, Requested: 1000, Used: 1000},
		PValue:         0.000999,
		EffectSize:     12.5,
		EffectSizeName: "z",
		Direction:      verdict.DirectionGreater,
		Correction:     verdict.CorrectionBonferroni,
		RawAlpha:       0.01,
		CorrectedAlpha: 0.01,
		FamilySize:     1,
		Status:         status,
		Reason:         "test record",
		Provenance: verdict.Provenance{
			Seed:             42,
			NullMethod:       verdict.NullShuffle,
			SamplesRequested: 1000,
			SamplesUsed:      1000,
			SampleSize:       1000,
			CorpusVersion:    "corpus-v1",
			InventoryVersion: "inventory-v1",
			ClassVersion:     "classes-v1",
			CodeVersion:      "test",
			RegistrationHash: "registration",
		},
		CreatedAt: core.Timestamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
	}
}

// Run exercises a fresh ledger from newLedger against the contract.
func Run(t *testing.T, newLedger func(t *testing.T) ports.LedgerPort) {
	ctx := context.Background()

	t.Run("append and get", func(t *testing.T) {
		l := newLedger(t)
		rec := NewRecord("h1", verdict.StatusPass)
		require.NoError(t, l.Append(ctx, rec))

		got, err := l.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, 1, got.Revision)
		assert.Equal(t, rec.Provenance, got.Provenance)
		assert.Equal(t, rec.Null, got.Null)
		assert.InDelta(t, rec.PValue, got.PValue, 1e-15)
		assert.True(t, time.Time(rec.CreatedAt).Equal(time.Time(got.CreatedAt)))
	})

	t.Run("duplicate append rejected", func(t *testing.T) {
		l := newLedger(t)
		rec := NewRecord("h1", verdict.StatusPass)
		require.NoError(t, l.Append(ctx, rec))
		assert.ErrorIs(t, l.Append(ctx, rec), core.ErrRecordExists)

		second := NewRecord("h1", verdict.StatusFail)
		assert.ErrorIs(t, l.Append(ctx, second), core.ErrRecordExists, "a second verdict must supersede")
	})

	t.Run("invalid record rejected", func(t *testing.T) {
		l := newLedger(t)
		rec := NewRecord("h1", verdict.StatusPass)
		rec.Statistic = ""
		assert.ErrorIs(t, l.Append(ctx, rec), core.ErrInvalidInput)
	})

	t.Run("missing records", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Get(ctx, "missing")
		assert.ErrorIs(t, err, core.ErrNotFound)
		_, err = l.Latest(ctx, "missing")
		assert.ErrorIs(t, err, core.ErrNotFound)
		_, err = l.History(ctx, "missing")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("supersede chain", func(t *testing.T) {
		l := newLedger(t)
		first := NewRecord("h1", verdict.StatusPass)
		require.NoError(t, l.Append(ctx, first))

		second := NewRecord("h1", verdict.StatusFail)
		require.NoError(t, l.Supersede(ctx, first.ID, second, "class 4 split"))
		third := NewRecord("h1", verdict.StatusPass)
		require.NoError(t, l.Supersede(ctx, second.ID, third, "corpus re-transcribed"))

		history, err := l.History(ctx, "h1")
		require.NoError(t, err)
		require.Len(t, history, 3)
		for i, rec := range history {
			assert.Equal(t, i+1, rec.Revision)
			if i > 0 {
				assert.Equal(t, history[i-1].ID, rec.Supersedes)
			}
		}
		assert.Equal(t, "corpus re-transcribed", history[2].SupersedeNote)

		latest, err := l.Latest(ctx, "h1")
		require.NoError(t, err)
		assert.Equal(t, third.ID, latest.ID)

		// the original is untouched
		orig, err := l.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, verdict.StatusPass, orig.Status)
		assert.Empty(t, orig.SupersedeNote)
	})

	t.Run("supersede rules", func(t *testing.T) {
		l := newLedger(t)
		first := NewRecord("h1", verdict.StatusPass)
		require.NoError(t, l.Append(ctx, first))

		assert.ErrorIs(t, l.Supersede(ctx, first.ID, NewRecord("h1", verdict.StatusFail), ""), core.ErrInvalidInput)
		assert.ErrorIs(t, l.Supersede(ctx, "missing", NewRecord("h1", verdict.StatusFail), "note"), core.ErrNotFound)
		assert.ErrorIs(t, l.Supersede(ctx, first.ID, NewRecord("h2", verdict.StatusFail), "note"), core.ErrInvalidInput)

		second := NewRecord("h1", verdict.StatusFail)
		require.NoError(t, l.Supersede(ctx, first.ID, second, "rerun"))
		assert.ErrorIs(t, l.Supersede(ctx, first.ID, NewRecord("h1", verdict.StatusPass), "fork"), core.ErrIllegalTransition)
	})

	t.Run("list filters", func(t *testing.T) {
		l := newLedger(t)
		family := core.FamilyID("fam")

		a := NewRecord("a", verdict.StatusPass)
		a.FamilyID = family
		b := NewRecord("b", verdict.StatusFail)
		b.FamilyID = family
		c := NewRecord("c", verdict.StatusInsufficientSample)
		for _, r := range []*verdict.Record{a, b, c} {
			require.NoError(t, l.Append(ctx, r))
		}
		a2 := NewRecord("a", verdict.StatusFail)
		a2.FamilyID = family
		require.NoError(t, l.Supersede(ctx, a.ID, a2, "rerun"))

		all, err := l.List(ctx, ports.VerdictFilters{})
		require.NoError(t, err)
		assert.Len(t, all, 4)

		latest, err := l.List(ctx, ports.VerdictFilters{LatestOnly: true})
		require.NoError(t, err)
		assert.Len(t, latest, 3)

		fail := verdict.StatusFail
		failed, err := l.List(ctx, ports.VerdictFilters{Status: &fail, LatestOnly: true})
		require.NoError(t, err)
		assert.ElementsMatch(t, []core.VerdictID{b.ID, a2.ID}, ids(failed))

		fam, err := l.List(ctx, ports.VerdictFilters{FamilyID: &family, LatestOnly: true})
		require.NoError(t, err)
		assert.Len(t, fam, 2)

		page, err := l.List(ctx, ports.VerdictFilters{Limit: 2, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, []core.VerdictID{b.ID, c.ID}, ids(page))
	})
}

func ids(recs []*verdict.Record) []core.VerdictID {
	out := make([]core.VerdictID, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
