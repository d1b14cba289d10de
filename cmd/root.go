// Package cmd defines the harbour-movements command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/harbour-movements/internal/app"
	"github.com/JakeFAU/harbour-movements/internal/config"
	"github.com/JakeFAU/harbour-movements/internal/logging"
)

// reportedError marks an error that has already been logged.
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }

func (e reportedError) Unwrap() error { return e.err }

// newRootCmd creates the root command. It performs a single scrape and exits.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "harbour-movements",
		Short: "Scrape the daily vessel movements table into a JSON Lines file.",
		Long: `harbour-movements fetches the harbour's daily vessel movements page,
extracts the movements table and writes one JSON object per movement to
data/YYYY/MM/DD/<timestamp>.jsonl. Settings come from an optional config
file and HARBOUR_* environment variables.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			return run(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	return cmd
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize services", zap.Error(err))
		_ = logger.Sync()
		return reportedError{err}
	}
	defer a.Close()

	res, err := a.Runner().Run(ctx)
	if err != nil {
		logger.Error("Scrape failed", zap.String("run_id", res.RunID), zap.Error(err))
		return reportedError{err}
	}
	logger.Info("Scrape finished",
		zap.String("run_id", res.RunID),
		zap.String("uri", res.URI),
		zap.Int("records", res.Records),
		zap.Duration("took", res.FinishedAt.Sub(res.StartedAt)))
	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, "harbour-movements:", err)
		}
		os.Exit(1)
	}
}
