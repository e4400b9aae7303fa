package corpusio

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glyphstat/domain/core"
	"glyphstat/domain/corpus"
	"glyphstat/domain/morphology"
	"glyphstat/domain/verdict"
	"glyphstat/internal/testkit"
)

func sampleRecords(t *testing.T) []corpus.Record {
	t.Helper()
	cfg := testkit.DefaultCorpusConfig()
	cfg.Tokens = 60
	records, err := testkit.NewCorpusGenerator(cfg).GenerateRecords()
	require.NoError(t, err)
	return records
}

func TestWriteRead_AllFormats(t *testing.T) {
	records := sampleRecords(t)
	for _, name := range []string{"corpus.json", "corpus.xlsx", "corpus.csv"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, WriteRecords(path, records))

			got, err := NewReader(path, "", nil).ReadRecords(context.Background())
			require.NoError(t, err)
			if diff := cmp.Diff(records, got); diff != "" {
				t.Errorf("records differ after round trip (-want +got):\n%s", diff)
			}

			c, err := corpus.New(got)
			require.NoError(t, err)
			assert.Equal(t, len(records), c.Len())
		})
	}
}

func TestReadCSV_ColumnOrderAndBlankRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.csv")
	content := strings.Join([]string{
		"folio_id,Text,position_in_line,line_id,record_id",
		"f1,chedy,0,f1.1,r1",
		"f1,qokain,1,f1.1,r2",
		",,,,",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := NewReader(path, "", nil).ReadRecords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []corpus.Record{
		{Text: "chedy", LineID: "f1.1", RecordID: "r1", FolioID: "f1", PositionInLine: 0},
		{Text: "qokain", LineID: "f1.1", RecordID: "r2", FolioID: "f1", PositionInLine: 1},
	}, got)
}

func TestRead_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}

	tests := []struct {
		name string
		path string
		want error
	}{
		{"unsupported extension", write("corpus.txt", "x"), core.ErrInvalidInput},
		{"missing file", filepath.Join(dir, "absent.json"), core.ErrNotFound},
		{"missing column", write("nocol.csv", "text,line_id\nchedy,l1\n"), core.ErrInvalidInput},
		{"header only", write("empty.csv", strings.Join(requiredColumns, ",")+"\n"), core.ErrInvalidInput},
		{"bad position", write("pos.csv", strings.Join(requiredColumns, ",")+"\nchedy,l1,r1,f1,first\n"), core.ErrInvalidRecord},
		{"unknown json field", write("extra.json", `[{"text":"a","gloss":"b"}]`), core.ErrInvalidRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(tt.path, "", nil).ReadRecords(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReadExcel_MissingSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.xlsx")
	require.NoError(t, WriteRecords(path, sampleRecords(t)))

	_, err := NewReader(path, "Transcription", nil).ReadRecords(context.Background())
	assert.Error(t, err)
}

func TestInventoryFile(t *testing.T) {
	inv, err := testkit.DefaultInventory()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, WriteInventory(path, inv))

	got, err := ReadInventory(path)
	require.NoError(t, err)
	assert.Equal(t, inv.Version(), got.Version())
	assert.True(t, got.Has(morphology.KindPrefix, "qo"))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("components:\n  - kind: infix\n    text: x\n"), 0o644))
	_, err = ReadInventory(bad)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestReadBattery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battery.yaml")
	content := `
hypotheses:
  - id: h-mi
    statistic: transition_mi
    null_method: shuffle
    samples: 1000
    direction: greater
    threshold: 0.01
    seed: 7
families:
  - id: positional
    size: 2
    correction: sidak
    hypotheses:
      - id: h-mw
        null_method: closed_form
        test: mann_whitney
        direction: two_sided
        classes: [0, 1]
      - id: h-self
        statistic: self_transition_rate
        null_method: frequency_matched
        direction: less
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	b, err := ReadBattery(path)
	require.NoError(t, err)
	require.Len(t, b.Hypotheses, 1)
	h := b.Hypotheses[0]
	assert.Equal(t, core.HypothesisID("h-mi"), h.ID)
	assert.Equal(t, verdict.NullShuffle, h.NullMethod)
	require.NotNil(t, h.Seed)
	assert.Equal(t, int64(7), *h.Seed)

	require.Len(t, b.Families, 1)
	f := b.Families[0]
	assert.Equal(t, verdict.CorrectionSidak, f.Correction)
	assert.Equal(t, []int{0, 1}, f.Hypotheses[0].Classes)
	assert.Equal(t, verdict.DirectionLess, f.Hypotheses[1].Direction)
}

func TestReadBattery_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"duplicate id", "hypotheses:\n  - id: a\n  - id: a\n"},
		{"duplicate across family", "hypotheses:\n  - id: a\nfamilies:\n  - id: f\n    size: 1\n    hypotheses:\n      - id: a\n"},
		{"missing id", "hypotheses:\n  - statistic: transition_mi\n"},
		{"unknown field", "hypotheses:\n  - id: a\n    alpha: 0.05\n"},
		{"empty", "hypotheses: []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "battery.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := ReadBattery(path)
			assert.ErrorIs(t, err, core.ErrInvalidInput)
		})
	}
}
