package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/devpulse/devpulse-go/internal/canonical"
	"github.com/devpulse/devpulse-go/internal/logging"
	"github.com/devpulse/devpulse-go/internal/metrics"
	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Generate developer and team productivity metrics",
	Long: `Folds every stored classification outcome into per-developer and
team-level metrics: suggestions handled per day, acceptance rate, category
breakdown, and the top recurring issues after canonicalization.`,
	RunE: runMetrics,
}

func runMetrics(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	oracle, err := newOracle()
	if err != nil {
		return err
	}
	defer oracle.Close()

	canonicalizer := canonical.NewCanonicalizer(oracle,
		cfg.Canonical.BatchSize, cfg.Canonical.MaxRetries, cfg.Canonical.RetryDelay, logging.Slog())
	aggregator := metrics.NewAggregator(store, canonicalizer, cfg.Canonical.TopK, logging.Slog())

	report, err := aggregator.Generate(context.Background())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
