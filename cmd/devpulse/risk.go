package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/devpulse/devpulse-go/internal/logging"
	"github.com/devpulse/devpulse-go/internal/risk"
	"github.com/spf13/cobra"
)

var riskCmd = &cobra.Command{
	Use:   "risk <project-id>",
	Short: "Compute a release-risk assessment for a project's latest snapshot",
	Long: `Scores the project's latest snapshot from three completion-rate inputs
(functional requirements, non-functional requirements, compilation) and maps
the weighted score to a Go / Conditional / No-Go recommendation. Higher
scores mean higher risk.

Inputs are read from storage when present; with --requirements they are
estimated by the oracle and stored first.`,
	Args: cobra.ExactArgs(1),
	RunE: runRisk,
}

var (
	riskRequirementsFile string
	riskDryRun           bool
)

func init() {
	riskCmd.Flags().StringVar(&riskRequirementsFile, "requirements", "", "JSON file with functional/non_functional requirement lists")
	riskCmd.Flags().BoolVar(&riskDryRun, "dry-run", false, "compute only, do not persist the assessment")
}

func runRisk(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var estimator *risk.Estimator
	if riskRequirementsFile != "" {
		reqs, err := loadRequirements(riskRequirementsFile)
		if err != nil {
			return err
		}

		oracle, err := newOracle()
		if err != nil {
			return err
		}
		defer oracle.Close()

		estimator, err = risk.NewEstimator(oracle, reqs, logging.Slog())
		if err != nil {
			return err
		}
	}

	weights := risk.Weights{
		FR:          cfg.Risk.FRWeight,
		NFR:         cfg.Risk.NFRWeight,
		Compilation: cfg.Risk.CompilationWeight,
	}
	scorer := risk.NewScorer(store, estimator, weights,
		cfg.Risk.LowThreshold, cfg.Risk.HighThreshold, logging.Slog())

	assessment, err := scorer.Assess(context.Background(), args[0], !riskDryRun)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(assessment)
}

func loadRequirements(path string) (risk.Requirements, error) {
	var reqs risk.Requirements
	data, err := os.ReadFile(path)
	if err != nil {
		return reqs, fmt.Errorf("read requirements file: %w", err)
	}
	if err := json.Unmarshal(data, &reqs); err != nil {
		return reqs, fmt.Errorf("parse requirements file: %w", err)
	}
	return reqs, nil
}
