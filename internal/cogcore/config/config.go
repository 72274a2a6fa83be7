// Package config loads cogcored's runtime configuration: account lists,
// component tunables, and external service addresses, the same env/.env
// plus optional YAML pattern the rest of this module uses.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AccountEntry is one monitored account's folder/project mapping,
// consumed by actions.Factory via AccountConfig.
type AccountEntry struct {
	AccountID       string `yaml:"account_id"`
	ArchiveFolder   string `yaml:"archive_folder"`
	TrashFolder     string `yaml:"trash_folder"`
	ReferenceFolder string `yaml:"reference_folder"`
	DefaultProject  string `yaml:"default_project"`
	PermanentDelete bool   `yaml:"permanent_delete"`
}

// ReasonConfig tunes the multi-pass reasoner (C5).
type ReasonConfig struct {
	MaxPasses            int     `yaml:"max_passes"`
	ConvergenceThreshold float64 `yaml:"convergence_threshold"`
	PassTimeoutSeconds   int     `yaml:"pass_timeout_seconds"`
}

// PlanConfig tunes the planner (C7).
type PlanConfig struct {
	AutoApproveThreshold float64 `yaml:"auto_approve_threshold"`
	RiskTolerance        string  `yaml:"risk_tolerance"`
}

// PrefilterConfig tunes the pre-filter (C3).
type PrefilterConfig struct {
	StrictMode bool `yaml:"strict_mode"`
}

// StoreConfig locates persistence roots for C9/C11. When PostgresDSN is
// set, drafts and the review queue are backed by Postgres (shared across
// cogcored instances); DataDir's file-backed stores remain the default.
type StoreConfig struct {
	DataDir     string `yaml:"data_dir"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ChannelConfig tunes the channel manager / websocket transport (C10).
type ChannelConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	OIDCIssuerURL  string `yaml:"oidc_issuer_url"`
	OIDCClientID   string `yaml:"oidc_client_id"`
	RedisAddr      string `yaml:"redis_addr"`
}

// QdrantConfig locates the optional vector context searcher backend.
type QdrantConfig struct {
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
}

// AIProviderConfig names one configured AI router backend and its cost
// table entry.
type AIProviderConfig struct {
	Name         string  `yaml:"name"`
	Tier         string  `yaml:"tier"`
	Model        string  `yaml:"model"`
	CostPerCall  float64 `yaml:"cost_per_call"`
}

// ClickHouseConfig locates the optional longitudinal provider-call sink
// (C9). An empty DSN disables it.
type ClickHouseConfig struct {
	DSN      string `yaml:"dsn"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// Config is the full cogcored runtime configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Accounts  []AccountEntry     `yaml:"accounts"`
	Reason    ReasonConfig       `yaml:"reason"`
	Plan      PlanConfig         `yaml:"plan"`
	Prefilter PrefilterConfig    `yaml:"prefilter"`
	Store     StoreConfig        `yaml:"store"`
	Channel   ChannelConfig      `yaml:"channel"`
	Qdrant    QdrantConfig       `yaml:"qdrant"`
	Providers []AIProviderConfig `yaml:"providers"`
	ClickHouse ClickHouseConfig  `yaml:"clickhouse"`
}

// Load reads configuration from an optional .env file (environment
// variables always win), an optional YAML file for structured lists
// (accounts, providers), then applies defaults and validates.
func Load(yamlPath string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv("COGCORE_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("COGCORE_DATA_DIR")); v != "" {
		cfg.Store.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("COGCORE_POSTGRES_DSN")); v != "" {
		cfg.Store.PostgresDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("COGCORE_LISTEN_ADDR")); v != "" {
		cfg.Channel.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("COGCORE_OIDC_ISSUER_URL")); v != "" {
		cfg.Channel.OIDCIssuerURL = v
	}
	if v := strings.TrimSpace(os.Getenv("COGCORE_OIDC_CLIENT_ID")); v != "" {
		cfg.Channel.OIDCClientID = v
	}
	if v := strings.TrimSpace(os.Getenv("COGCORE_REDIS_ADDR")); v != "" {
		cfg.Channel.RedisAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("COGCORE_QDRANT_ADDR")); v != "" {
		cfg.Qdrant.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("COGCORE_QDRANT_COLLECTION")); v != "" {
		cfg.Qdrant.Collection = v
	}
	if v := strings.TrimSpace(os.Getenv("COGCORE_CLICKHOUSE_DSN")); v != "" {
		cfg.ClickHouse.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("COGCORE_MAX_PASSES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reason.MaxPasses = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("COGCORE_STRICT_MODE")); v != "" {
		cfg.Prefilter.StrictMode = strings.EqualFold(v, "true") || v == "1"
	}

	applyDefaults(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Store.DataDir == "" {
		cfg.Store.DataDir = "./data/cogcore"
	}
	if cfg.Reason.MaxPasses <= 0 {
		cfg.Reason.MaxPasses = 5
	}
	if cfg.Reason.ConvergenceThreshold <= 0 {
		cfg.Reason.ConvergenceThreshold = 0.95
	}
	if cfg.Reason.PassTimeoutSeconds <= 0 {
		cfg.Reason.PassTimeoutSeconds = 30
	}
	if cfg.Plan.AutoApproveThreshold <= 0 {
		cfg.Plan.AutoApproveThreshold = 0.95
	}
	if cfg.Plan.RiskTolerance == "" {
		cfg.Plan.RiskTolerance = "medium"
	}
	if cfg.Channel.ListenAddr == "" {
		cfg.Channel.ListenAddr = ":8088"
	}
}

// validate checks account-list integrity (spec.md §6): every account must
// carry a non-empty id, non-empty archive and trash folders, and no id may
// repeat.
func validate(cfg Config) error {
	seen := make(map[string]struct{}, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		if a.AccountID == "" {
			return errors.New("config: account entry missing account_id")
		}
		if _, dup := seen[a.AccountID]; dup {
			return fmt.Errorf("config: duplicate account_id %q", a.AccountID)
		}
		seen[a.AccountID] = struct{}{}
		if a.ArchiveFolder == "" {
			return fmt.Errorf("config: account %q missing archive_folder", a.AccountID)
		}
		if a.TrashFolder == "" {
			return fmt.Errorf("config: account %q missing trash_folder", a.AccountID)
		}
	}
	switch strings.ToLower(cfg.Plan.RiskTolerance) {
	case "low", "medium", "high", "critical":
	default:
		return fmt.Errorf("config: plan.risk_tolerance must be one of low/medium/high/critical, got %q", cfg.Plan.RiskTolerance)
	}
	if cfg.Reason.ConvergenceThreshold < 0 || cfg.Reason.ConvergenceThreshold > 1 {
		return errors.New("config: reason.convergence_threshold must be in [0,1]")
	}
	return nil
}
