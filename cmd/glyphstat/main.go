// Command glyphstat decomposes a token corpus, builds equivalence classes,
// computes corpus statistics and tests pre-registered hypotheses against
// seeded null models, recording every verdict in an append-only ledger.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"glyphstat/adapters/corpusio"
	"glyphstat/app"
	"glyphstat/internal/config"
	"glyphstat/internal/logging"
)

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	envFile    string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{out: os.Stdout}
	if err := c.rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "glyphstat",
		Short:         "Structural statistics and hypothesis testing for an undeciphered token corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "glyphstat.yaml", "YAML configuration file (optional)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before configuration (optional)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		c.decomposeCmd(),
		c.classesCmd(),
		c.statsCmd(),
		c.testCmd(),
		c.staleCmd(),
		c.verdictsCmd(),
		c.serveCmd(),
		c.migrateCmd(),
		c.synthCmd(),
	)
	return root
}

func (c *cli) setup() error {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", c.envFile, err)
		}
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger
	return nil
}

func (c *cli) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// inputFlags locate the corpus and inventory files.
type inputFlags struct {
	corpus    string
	sheet     string
	inventory string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.corpus, "corpus", "", "corpus file (.json, .xlsx or .csv)")
	cmd.Flags().StringVar(&f.sheet, "sheet", corpusio.DefaultSheet, "worksheet of an .xlsx corpus")
	cmd.Flags().StringVar(&f.inventory, "inventory", "", "component inventory YAML")
	_ = cmd.MarkFlagRequired("corpus")
	_ = cmd.MarkFlagRequired("inventory")
}

func (c *cli) snapshot(ctx context.Context, in inputFlags) (*app.Snapshot, error) {
	inv, err := corpusio.ReadInventory(in.inventory)
	if err != nil {
		return nil, err
	}
	reader := corpusio.NewReader(in.corpus, in.sheet, c.logger)
	return app.NewStageRunner(c.cfg, c.logger).Build(ctx, reader, inv)
}
