package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Storage configuration
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Oracle (LLM) configuration
	Oracle OracleConfig `yaml:"oracle" mapstructure:"oracle"`

	// Classification settings
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`

	// Recurring-issue canonicalization settings
	Canonical CanonicalConfig `yaml:"canonical" mapstructure:"canonical"`

	// Risk scoring settings
	Risk RiskConfig `yaml:"risk" mapstructure:"risk"`
}

type StorageConfig struct {
	Type        string `yaml:"type" mapstructure:"type"` // "postgres", "sqlite"
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	LocalPath   string `yaml:"local_path" mapstructure:"local_path"`
}

type OracleConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	Model       string        `yaml:"model" mapstructure:"model"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"` // Optional OpenAI-compatible endpoint
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPer time.Duration `yaml:"requests_per" mapstructure:"requests_per"` // Minimum spacing between calls
	CachePath   string        `yaml:"cache_path" mapstructure:"cache_path"`     // bbolt response cache ("" disables)
}

type ClassifyConfig struct {
	ConfidenceFloor float64 `yaml:"confidence_floor" mapstructure:"confidence_floor"`
	ContextPadding  int     `yaml:"context_padding" mapstructure:"context_padding"`
}

type CanonicalConfig struct {
	BatchSize  int           `yaml:"batch_size" mapstructure:"batch_size"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	TopK       int           `yaml:"top_k" mapstructure:"top_k"`
}

type RiskConfig struct {
	FRWeight          float64 `yaml:"fr_weight" mapstructure:"fr_weight"`
	NFRWeight         float64 `yaml:"nfr_weight" mapstructure:"nfr_weight"`
	CompilationWeight float64 `yaml:"compilation_weight" mapstructure:"compilation_weight"`
	LowThreshold      float64 `yaml:"low_threshold" mapstructure:"low_threshold"`
	HighThreshold     float64 `yaml:"high_threshold" mapstructure:"high_threshold"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".devpulse", "local.db"),
		},
		Oracle: OracleConfig{
			Model:       "gpt-4o-mini",
			MaxTokens:   1024,
			RequestsPer: 100 * time.Millisecond,
			CachePath:   filepath.Join(homeDir, ".devpulse", "oracle-cache.db"),
		},
		Classify: ClassifyConfig{
			ConfidenceFloor: 0.6,
			ContextPadding:  2,
		},
		Canonical: CanonicalConfig{
			BatchSize:  5,
			MaxRetries: 3,
			RetryDelay: 2 * time.Second,
			TopK:       5,
		},
		Risk: RiskConfig{
			FRWeight:          0.5,
			NFRWeight:         0.4,
			CompilationWeight: 0.1,
			LowThreshold:      33,
			HighThreshold:     66,
		},
	}
}

// Load loads configuration from file, environment, and defaults
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("oracle", cfg.Oracle)
	v.SetDefault("classify", cfg.Classify)
	v.SetDefault("canonical", cfg.Canonical)
	v.SetDefault("risk", cfg.Risk)

	v.SetEnvPrefix("DEVPULSE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".devpulse")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".devpulse"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",       // Main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".devpulse", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	// Env var has highest precedence (for CI)
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Oracle.APIKey = key
	}
	if model := os.Getenv("DEVPULSE_ORACLE_MODEL"); model != "" {
		cfg.Oracle.Model = model
	}
	if url := os.Getenv("DEVPULSE_ORACLE_BASE_URL"); url != "" {
		cfg.Oracle.BaseURL = url
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Storage.Type = "postgres"
		cfg.Storage.PostgresDSN = dsn
	}
	if floor := os.Getenv("DEVPULSE_CONFIDENCE_FLOOR"); floor != "" {
		if f, err := strconv.ParseFloat(floor, 64); err == nil {
			cfg.Classify.ConfidenceFloor = f
		}
	}
}

// Validate checks configuration consistency before the pipeline starts.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("storage.local_path required for sqlite storage")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}

	if c.Classify.ConfidenceFloor < 0 || c.Classify.ConfidenceFloor > 1 {
		return fmt.Errorf("classify.confidence_floor must be in [0,1], got %v", c.Classify.ConfidenceFloor)
	}
	if c.Canonical.BatchSize <= 0 {
		return fmt.Errorf("canonical.batch_size must be positive")
	}

	sum := c.Risk.FRWeight + c.Risk.NFRWeight + c.Risk.CompilationWeight
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("risk weights must sum to 1.0, got %v", sum)
	}
	return nil
}
