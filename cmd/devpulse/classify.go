package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/devpulse/devpulse-go/internal/classify"
	"github.com/devpulse/devpulse-go/internal/logging"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <merged-commit-id>",
	Short: "Classify outstanding reviews along a merged commit's ancestor chain",
	Long: `Walks the snapshot chain backward from the merged commit and, for every
ancestor with unresolved review suggestions, asks the oracle whether the
child snapshot addressed each suggestion. Outcomes are persisted once per
review; re-running the walk skips already-classified reviews.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
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

	adapter := classify.NewAdapter(oracle,
		cfg.Classify.ConfidenceFloor, cfg.Classify.ContextPadding, logging.Slog())
	chain := classify.NewChainClassifier(store, adapter, logging.Slog())

	outcomes, err := chain.ClassifyChain(context.Background(), args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(outcomes)
}
