package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"glyphstat/adapters/corpusio"
	"glyphstat/internal/testkit"
)

func (c *cli) synthCmd() *cobra.Command {
	cfg := testkit.DefaultCorpusConfig()
	var out, inventory string
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Generate a synthetic corpus with a planted transition bias",
		Long: `Generate a Markov corpus over the default word list in which each word
favors one successor by --bias, plus the matching component inventory.
A bias of 1 yields a corpus with no transition structure.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := testkit.NewCorpusGenerator(cfg).GenerateRecords()
			if err != nil {
				return err
			}
			if err := corpusio.WriteRecords(out, records); err != nil {
				return err
			}
			if inventory != "" {
				inv, err := testkit.DefaultInventory()
				if err != nil {
					return err
				}
				if err := corpusio.WriteInventory(inventory, inv); err != nil {
					return err
				}
			}
			c.logger.Info("synthetic corpus written", zap.String("path", out), zap.Int("records", len(records)))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "corpus.json", "output corpus file (.json, .xlsx or .csv)")
	cmd.Flags().StringVar(&inventory, "inventory-out", "", "also write the matching inventory YAML")
	cmd.Flags().IntVar(&cfg.Tokens, "tokens", cfg.Tokens, "number of tokens")
	cmd.Flags().Float64Var(&cfg.Bias, "bias", cfg.Bias, "weight of the favored successor relative to the others")
	cmd.Flags().StringVar(&cfg.RareWord, "rare-word", "", "word to plant at line ends")
	cmd.Flags().IntVar(&cfg.RareCount, "rare-count", 0, "occurrences of --rare-word")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "generator seed")
	return cmd
}
