package morphology

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glyphstat/domain/core"
	"glyphstat/domain/corpus"
)

func testInventory(t *testing.T) *Inventory {
	t.Helper()
	inv, err := NewInventory([]Component{
		{Kind: KindPrefix, Text: "ch", Provenance: "line-initial excess"},
		{Kind: KindPrefix, Text: "qo", Provenance: "line-initial excess"},
		{Kind: KindPrefix, Text: "o", Provenance: "frequency"},
		{Kind: KindSuffix, Text: "dy", Provenance: "line-final excess"},
		{Kind: KindSuffix, Text: "y", Provenance: "line-final excess"},
		{Kind: KindSuffix, Text: "aiin", Provenance: "line-final excess"},
		{Kind: KindArticulator, Text: "k", Provenance: "medial insertion"},
	})
	require.NoError(t, err)
	return inv
}

func TestDecompose_Chedy(t *testing.T) {
	inv, err := NewInventory([]Component{
		{Kind: KindPrefix, Text: "ch"},
		{Kind: KindSuffix, Text: "dy"},
		{Kind: KindSuffix, Text: "y"},
	})
	require.NoError(t, err)

	dec, err := NewDecomposer(inv).Decompose("chedy")
	require.NoError(t, err)

	assert.Equal(t, "ch", dec.Prefix)
	assert.Equal(t, "e", dec.Middle)
	assert.Equal(t, "dy", dec.Suffix)
	assert.Empty(t, dec.Articulator)
	assert.Equal(t, KindParsed, dec.Kind)
	assert.Equal(t, "chedy", dec.Reconstruct())
	assert.Equal(t, "ch+dy", dec.Signature())
}

func TestDecompose_Cases(t *testing.T) {
	d := NewDecomposer(testInventory(t))

	tests := []struct {
		token string
		want  Decomposition
	}{
		{"qokeedy", Decomposition{Prefix: "qo", Articulator: "k", Middle: "ee", Suffix: "dy", Kind: KindParsed}},
		{"daiin", Decomposition{Middle: "d", Suffix: "aiin", Kind: KindParsed}},
		{"sho", Decomposition{Middle: "sho", Kind: KindAtomic}},
		// prefix would consume the whole token
		{"ch", Decomposition{Middle: "ch", Kind: KindAtomic}},
		// suffix would empty the middle, so only the prefix applies
		{"chy", Decomposition{Prefix: "ch", Middle: "y", Kind: KindParsed}},
		// articulator would empty the middle
		{"qoky", Decomposition{Middle: "qoky", Kind: KindAtomic}},
		{"oky", Decomposition{Middle: "oky", Kind: KindAtomic}},
		{"okal", Decomposition{Prefix: "o", Articulator: "k", Middle: "al", Kind: KindParsed}},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := d.Decompose(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.token, got.Reconstruct())
		})
	}
}

func TestDecompose_RoundTrip(t *testing.T) {
	d := NewDecomposer(testInventory(t))
	tokens := []string{
		"chedy", "qokeedy", "daiin", "shedy", "ol", "chol", "qokaiin", "y", "o",
		"dy", "okeey", "chckhy", "otedy", "ykeedy", "lchedy", "qoky", "kaiin",
	}
	for _, tok := range tokens {
		dec, err := d.Decompose(tok)
		require.NoError(t, err, tok)
		assert.Equal(t, tok, dec.Reconstruct(), "round trip for %q", tok)
		assert.NotEmpty(t, dec.Middle, "middle for %q", tok)
	}
}

func TestDecompose_InvalidToken(t *testing.T) {
	d := NewDecomposer(testInventory(t))

	for _, tok := range []string{"", "ch3dy", "che dy", "ch-dy"} {
		_, err := d.Decompose(tok)
		require.Error(t, err, "token %q", tok)

		var invalid *InvalidTokenError
		assert.True(t, errors.As(err, &invalid))
		assert.True(t, errors.Is(err, core.ErrInvalidToken))
		assert.True(t, core.IsInputError(err))
	}
}

func TestDecomposeAll_FailsFast(t *testing.T) {
	c, err := corpus.New([]corpus.Record{
		{Text: "chedy", LineID: "l1", FolioID: "f1", PositionInLine: 0},
		{Text: "ch3dy", LineID: "l1", FolioID: "f1", PositionInLine: 1},
		{Text: "daiin", LineID: "l1", FolioID: "f1", PositionInLine: 2},
	})
	require.NoError(t, err)

	_, err = NewDecomposer(testInventory(t)).DecomposeAll(c)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
	assert.Contains(t, err.Error(), "token 1")
}

func TestInventory_AppendIsVersioned(t *testing.T) {
	inv := testInventory(t)
	before := inv.Version()

	next, err := inv.Append(Component{Kind: KindSuffix, Text: "ol", Provenance: "revision"})
	require.NoError(t, err)

	assert.Equal(t, 1, inv.Revision())
	assert.Equal(t, 2, next.Revision())
	assert.False(t, inv.Has(KindSuffix, "ol"))
	assert.True(t, next.Has(KindSuffix, "ol"))
	assert.Equal(t, before, inv.Version())
	assert.NotEqual(t, before, next.Version())

	_, err = next.Append(Component{Kind: KindSuffix, Text: "ol"})
	assert.ErrorIs(t, err, core.ErrRecordExists)

	_, err = next.Append(Component{Kind: "infix", Text: "e"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestInventory_CandidatesLongestFirst(t *testing.T) {
	inv := testInventory(t)
	assert.Equal(t, []string{"aiin", "dy", "y"}, inv.Candidates(KindSuffix))
	assert.Equal(t, []string{"ch", "qo", "o"}, inv.Candidates(KindPrefix))
}
