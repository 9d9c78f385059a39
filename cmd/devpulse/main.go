package main

import (
	"fmt"
	"os"

	"github.com/devpulse/devpulse-go/internal/config"
	"github.com/devpulse/devpulse-go/internal/llm"
	"github.com/devpulse/devpulse-go/internal/logging"
	"github.com/devpulse/devpulse-go/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"

	cfgFile string
	verbose bool
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "devpulse",
	Short: "DevPulse - review-lifecycle analytics for engineering teams",
	Long: `DevPulse records per-commit code snapshots, classifies whether later
commits addressed review suggestions, and rolls the outcomes into
per-developer productivity metrics and a release-risk score.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logCfg := logging.DebugConfig()
		if !verbose {
			logCfg.Level = logging.INFO
		}
		if err := logging.Initialize(logCfg); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			logging.Warn("failed to load config, using defaults", "error", err)
			cfg = config.Default()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .devpulse/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(riskCmd)
}

// openStore selects the storage backend from configuration.
func openStore() (storage.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbLogger := logrus.New()
	if verbose {
		dbLogger.SetLevel(logrus.DebugLevel)
	}

	switch cfg.Storage.Type {
	case "postgres":
		return storage.NewPostgresStore(cfg.Storage.PostgresDSN, dbLogger)
	default:
		return storage.NewSQLiteStore(cfg.Storage.LocalPath, dbLogger)
	}
}

// newOracle builds the production oracle client.
func newOracle() (*llm.Client, error) {
	return llm.NewClient(cfg, logging.Slog())
}
