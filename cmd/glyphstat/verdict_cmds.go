package main

import (
	"github.com/spf13/cobra"

	"glyphstat/app"
	"glyphstat/domain/core"
	"glyphstat/domain/verdict"
	apperrors "glyphstat/internal/errors"
	"glyphstat/ports"
)

func (c *cli) verdictsCmd() *cobra.Command {
	var status, family string
	var latest bool
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "verdicts",
		Short: "Query the verdict ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			var f ports.VerdictFilters
			if status != "" {
				s := verdict.Status(status)
				if !s.IsValid() {
					return apperrors.InvalidInput("unknown status " + status)
				}
				f.Status = &s
			}
			if family != "" {
				fid := core.FamilyID(family)
				f.FamilyID = &fid
			}
			f.LatestOnly, f.Limit, f.Offset = latest, limit, offset

			ledger, closer, err := app.OpenLedger(cmd.Context(), c.cfg.Storage, c.logger)
			if err != nil {
				return err
			}
			defer closer.Close()
			recs, err := ledger.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			return c.printJSON(recs)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&family, "family", "", "filter by family id")
	cmd.Flags().BoolVar(&latest, "latest", false, "hide superseded revisions")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")

	cmd.AddCommand(&cobra.Command{
		Use:   "history <hypothesis-id>",
		Short: "Show every revision of a hypothesis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.ParseHypothesisID(args[0])
			if err != nil {
				return err
			}
			ledger, closer, err := app.OpenLedger(cmd.Context(), c.cfg.Storage, c.logger)
			if err != nil {
				return err
			}
			defer closer.Close()
			recs, err := ledger.History(cmd.Context(), id)
			if err != nil {
				return err
			}
			return c.printJSON(recs)
		},
	})
	return cmd
}
