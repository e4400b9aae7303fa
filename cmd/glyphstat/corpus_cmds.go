package main

import (
	"sort"

	"github.com/spf13/cobra"

	"glyphstat/adapters/corpusio"
	"glyphstat/app"
	"glyphstat/domain/morphology"
)

type signatureCount struct {
	Signature string `json:"signature"`
	Count     int    `json:"count"`
}

type decomposeSummary struct {
	Tokens           int                        `json:"tokens"`
	Atomic           int                        `json:"atomic"`
	InventoryVersion string                     `json:"inventory_version"`
	Signatures       []signatureCount           `json:"signatures"`
	Decompositions   []morphology.Decomposition `json:"decompositions,omitempty"`
}

func (c *cli) decomposeCmd() *cobra.Command {
	var in inputFlags
	var all bool
	cmd := &cobra.Command{
		Use:   "decompose",
		Short: "Split every corpus token into prefix, articulator, middle and suffix",
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := corpusio.ReadInventory(in.inventory)
			if err != nil {
				return err
			}
			runner := app.NewStageRunner(c.cfg, c.logger)
			corp, err := runner.LoadCorpus(cmd.Context(), corpusio.NewReader(in.corpus, in.sheet, c.logger))
			if err != nil {
				return err
			}
			decs, err := runner.Decompose(corp, inv)
			if err != nil {
				return err
			}

			counts := make(map[string]int)
			summary := decomposeSummary{Tokens: len(decs), InventoryVersion: inv.Version().String()}
			for _, d := range decs {
				counts[d.Signature()]++
				if d.Kind == morphology.KindAtomic {
					summary.Atomic++
				}
			}
			for s, n := range counts {
				summary.Signatures = append(summary.Signatures, signatureCount{Signature: s, Count: n})
			}
			sort.Slice(summary.Signatures, func(i, j int) bool {
				a, b := summary.Signatures[i], summary.Signatures[j]
				if a.Count != b.Count {
					return a.Count > b.Count
				}
				return a.Signature < b.Signature
			})
			if all {
				summary.Decompositions = decs
			}
			return c.printJSON(summary)
		},
	}
	in.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "include every token's decomposition")
	return cmd
}

func (c *cli) classesCmd() *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "Build equivalence classes and macro-states",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := c.snapshot(cmd.Context(), in)
			if err != nil {
				return err
			}
			return c.printJSON(map[string]interface{}{
				"version": snap.Assignment.Version(),
				"classes": snap.Assignment.Classes(),
				"macro":   snap.Assignment.Macro(),
			})
		},
	}
	in.register(cmd)
	return cmd
}

func (c *cli) statsCmd() *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Report transition, information-theoretic, spectral and tensor statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := c.snapshot(cmd.Context(), in)
			if err != nil {
				return err
			}
			report, err := app.SummarizeStats(cmd.Context(), snap, c.cfg.Analysis.Seed)
			if err != nil {
				return err
			}
			return c.printJSON(report)
		},
	}
	in.register(cmd)
	return cmd
}
