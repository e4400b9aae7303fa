package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"glyphstat/adapters/corpusio"
	"glyphstat/app"
	"glyphstat/internal/api"
	apperrors "glyphstat/internal/errors"
	"glyphstat/ports"
)

const shutdownTimeout = 10 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	var addr, hypotheses string
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the verdict ledger over a read-only HTTP API",
		Long: `Serve the verdict ledger. With --hypotheses the battery runs in the
background while serving, and each verdict is announced on /api/v1/events
as it is recorded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.cfg.Server.Address
			}
			gin.SetMode(c.cfg.Server.GinMode)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			store, closer, err := app.OpenLedger(ctx, c.cfg.Storage, c.logger)
			if err != nil {
				return err
			}
			defer closer.Close()

			hub := api.NewHub(c.logger)
			hubDone := make(chan struct{})
			go func() {
				defer close(hubDone)
				hub.Run(ctx)
			}()
			defer func() {
				cancel()
				<-hubDone
			}()
			ledger := api.NewPublishingLedger(store, hub)

			if hypotheses != "" {
				if in.corpus == "" || in.inventory == "" {
					return apperrors.InvalidInput("--hypotheses requires --corpus and --inventory")
				}
				if err := c.runInBackground(ctx, in, hypotheses, ledger); err != nil {
					return err
				}
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewRouter(ledger, hub, c.logger),
				ReadHeaderTimeout: 5 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				c.logger.Info("verdict API listening", zap.String("address", addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}
			shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer stop()
			c.logger.Info("shutting down verdict API")
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.address)")
	cmd.Flags().StringVar(&hypotheses, "hypotheses", "", "battery YAML to run while serving")
	cmd.Flags().StringVar(&in.corpus, "corpus", "", "corpus file for --hypotheses")
	cmd.Flags().StringVar(&in.sheet, "sheet", corpusio.DefaultSheet, "worksheet of an .xlsx corpus")
	cmd.Flags().StringVar(&in.inventory, "inventory", "", "component inventory YAML for --hypotheses")
	return cmd
}

// runInBackground builds the snapshot up front so input errors fail the
// command, then runs the battery while the server starts.
func (c *cli) runInBackground(ctx context.Context, in inputFlags, path string, ledger ports.LedgerPort) error {
	battery, err := corpusio.ReadBattery(path)
	if err != nil {
		return err
	}
	snap, err := c.snapshot(ctx, in)
	if err != nil {
		return err
	}
	svc := app.NewHypothesisService(c.cfg, snap, ledger, c.logger)
	go func() {
		report, err := svc.RunBattery(ctx, battery, app.RunOptions{})
		if err != nil {
			c.logger.Error("background battery stopped", zap.Error(err))
			return
		}
		c.logger.Info("background battery finished", zap.Any("counts", report.Counts))
	}()
	return nil
}
