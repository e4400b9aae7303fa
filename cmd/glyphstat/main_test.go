package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glyphstat/app"
	"glyphstat/domain/verdict"
)

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	c := &cli{out: &out}
	root := c.rootCmd()
	root.SetArgs(append([]string{"--config", "", "--env-file", "", "--log-level", "error"}, args...))
	require.NoError(t, root.ExecuteContext(context.Background()), "glyphstat %v", args)
	return out.Bytes()
}

func TestCLI_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GLYPHSTAT_STORAGE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(dir, "ledger.db"))
	t.Setenv("GLYPHSTAT_N_PERMUTATIONS", "200")

	corpusPath := filepath.Join(dir, "corpus.xlsx")
	invPath := filepath.Join(dir, "inventory.yaml")
	run(t, "synth", "--out", corpusPath, "--inventory-out", invPath, "--tokens", "600")

	var dec decomposeSummary
	require.NoError(t, json.Unmarshal(run(t, "decompose", "--corpus", corpusPath, "--inventory", invPath), &dec))
	assert.Equal(t, 600, dec.Tokens)
	assert.Zero(t, dec.Atomic)
	assert.Len(t, dec.Signatures, 3)

	battery := filepath.Join(dir, "battery.yaml")
	require.NoError(t, os.WriteFile(battery, []byte(`
hypotheses:
  - id: planted-transitions
    statistic: transition_mi
    direction: greater
`), 0o644))

	var report app.BatteryReport
	require.NoError(t, json.Unmarshal(run(t, "test", "--corpus", corpusPath, "--inventory", invPath, "--hypotheses", battery), &report))
	require.Len(t, report.Results, 1)
	require.NotNil(t, report.Results[0].Verdict)
	assert.Equal(t, verdict.StatusPass, report.Results[0].Verdict.Status)

	var recs []verdict.Record
	require.NoError(t, json.Unmarshal(run(t, "verdicts", "--latest"), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, report.Results[0].Verdict.ID, recs[0].ID)

	require.NoError(t, json.Unmarshal(run(t, "verdicts", "history", "planted-transitions"), &recs))
	assert.Len(t, recs, 1)

	var status []map[string]interface{}
	require.NoError(t, json.Unmarshal(run(t, "migrate", "status"), &status))
	assert.Len(t, status, 2)
}

func TestCLI_RejectsBadConfig(t *testing.T) {
	t.Setenv("GLYPHSTAT_STORAGE_DRIVER", "cassandra")
	c := &cli{out: &bytes.Buffer{}}
	root := c.rootCmd()
	root.SetArgs([]string{"--config", "", "--env-file", "", "verdicts"})
	assert.Error(t, root.ExecuteContext(context.Background()))
}
