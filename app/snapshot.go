// Package app wires the pipeline stages into the services the CLI and API
// run: loading a snapshot, opening a ledger and running hypothesis batteries.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"glyphstat/adapters/stats/engine"
	"glyphstat/domain/classes"
	"glyphstat/domain/corpus"
	"glyphstat/domain/morphology"
	iclasses "glyphstat/internal/classes"
	"glyphstat/internal/config"
	"glyphstat/internal/logging"
	"glyphstat/ports"
)

// Snapshot is one immutable pass of the pipeline up to the statistics
// engine. Every verdict derived from it records its versions.
type Snapshot struct {
	Corpus         *corpus.Corpus
	Inventory      *morphology.Inventory
	Decompositions []morphology.Decomposition
	Assignment     *classes.Assignment
	Engine         *engine.StatsEngine
}

// StageRunner runs decomposition, class building and engine construction.
type StageRunner struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStageRunner creates a stage runner.
func NewStageRunner(cfg *config.Config, logger *zap.Logger) *StageRunner {
	return &StageRunner{cfg: cfg, logger: logging.OrNop(logger).Named("app")}
}

// ClassesConfig maps configuration onto the class builder.
func ClassesConfig(cfg *config.Config) iclasses.Config {
	return iclasses.Config{
		MergeAlpha:    cfg.Classes.MergeAlpha,
		MinSampleSize: cfg.Analysis.MinSampleSize,
		MacroMethod:   cfg.Classes.MacroMethod,
		MacroKMin:     cfg.Classes.MacroKMin,
		MacroKMax:     cfg.Classes.MacroKMax,
		Seed:          cfg.Analysis.Seed,
	}
}

// LoadCorpus reads and validates the corpus.
func (s *StageRunner) LoadCorpus(ctx context.Context, reader ports.CorpusReaderPort) (*corpus.Corpus, error) {
	records, err := reader.ReadRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	return corpus.New(records)
}

// Decompose splits every token against inv.
func (s *StageRunner) Decompose(c *corpus.Corpus, inv *morphology.Inventory) ([]morphology.Decomposition, error) {
	return morphology.NewDecomposer(inv).DecomposeAll(c)
}

// Build runs every stage and returns the snapshot.
func (s *StageRunner) Build(ctx context.Context, reader ports.CorpusReaderPort, inv *morphology.Inventory) (*Snapshot, error) {
	start := time.Now()
	c, err := s.LoadCorpus(ctx, reader)
	if err != nil {
		return nil, err
	}
	decs, err := s.Decompose(c, inv)
	if err != nil {
		return nil, err
	}
	a, err := iclasses.NewBuilder(ClassesConfig(s.cfg), s.logger).Build(ctx, c, decs)
	if err != nil {
		return nil, err
	}
	eng, err := engine.NewStatsEngine(c, decs, a, engine.Options{Workers: s.cfg.Analysis.Workers, Logger: s.logger})
	if err != nil {
		return nil, err
	}
	s.logger.Info("snapshot built",
		zap.Int("tokens", c.Len()),
		zap.Int("classes", a.Len()),
		zap.String("corpus_version", c.Version().String()),
		zap.String("inventory_version", inv.Version().String()),
		zap.String("class_version", a.Version().String()),
		zap.Duration("elapsed", time.Since(start)))
	return &Snapshot{Corpus: c, Inventory: inv, Decompositions: decs, Assignment: a, Engine: eng}, nil
}
