package main

import (
	"github.com/spf13/cobra"

	"glyphstat/adapters/corpusio"
	"glyphstat/app"
)

func (c *cli) testCmd() *cobra.Command {
	var in inputFlags
	var hypotheses, note string
	var rerun bool
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run a YAML battery of pre-registered hypotheses and record the verdicts",
		Long: `Run every hypothesis and family in a battery file against the current
snapshot. A hypothesis that already has a verdict is refused unless --rerun is
given, in which case the new verdict supersedes it and --note is required.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			battery, err := corpusio.ReadBattery(hypotheses)
			if err != nil {
				return err
			}
			snap, err := c.snapshot(cmd.Context(), in)
			if err != nil {
				return err
			}
			ledger, closer, err := app.OpenLedger(cmd.Context(), c.cfg.Storage, c.logger)
			if err != nil {
				return err
			}
			defer closer.Close()

			svc := app.NewHypothesisService(c.cfg, snap, ledger, c.logger)
			report, runErr := svc.RunBattery(cmd.Context(), battery, app.RunOptions{Rerun: rerun, Note: note})
			if report != nil {
				if err := c.printJSON(report); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	in.register(cmd)
	cmd.Flags().StringVar(&hypotheses, "hypotheses", "", "hypothesis battery YAML")
	cmd.Flags().BoolVar(&rerun, "rerun", false, "supersede recorded verdicts")
	cmd.Flags().StringVar(&note, "note", "", "supersede note for --rerun")
	_ = cmd.MarkFlagRequired("hypotheses")
	return cmd
}

func (c *cli) staleCmd() *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "stale",
		Short: "List latest verdicts derived from another corpus, inventory or class version",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := c.snapshot(cmd.Context(), in)
			if err != nil {
				return err
			}
			ledger, closer, err := app.OpenLedger(cmd.Context(), c.cfg.Storage, c.logger)
			if err != nil {
				return err
			}
			defer closer.Close()

			stale, err := app.NewHypothesisService(c.cfg, snap, ledger, c.logger).Stale(cmd.Context())
			if err != nil {
				return err
			}
			return c.printJSON(stale)
		},
	}
	in.register(cmd)
	return cmd
}
