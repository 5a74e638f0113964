package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the holder audit service.
type Config struct {
	General   GeneralConfig   `yaml:"general"`
	Solana    SolanaConfig    `yaml:"solana"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Storage   StorageConfig   `yaml:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type GeneralConfig struct {
	InstanceID string `yaml:"instance_id"`
	LogLevel   string `yaml:"log_level"`  // trace|debug|info|warn|error
	LogFormat  string `yaml:"log_format"` // json|console
}

type SolanaConfig struct {
	RPCEndpoint string `yaml:"rpc_endpoint"` // bulk JSON-RPC pool
	APIEndpoint string `yaml:"api_endpoint"` // indexer/DAS pool, falls back to RPCEndpoint
	WSEndpoint  string `yaml:"ws_endpoint"`  // log subscriptions for the live trade feed
}

// SchedulerConfig describes the two outbound quota pools and retry policy.
type SchedulerConfig struct {
	BulkCapacity int     `yaml:"bulk_capacity"` // token bucket capacity, bulk RPC pool
	BulkRate     float64 `yaml:"bulk_rate"`     // refill tokens/second, bulk RPC pool
	APICapacity  int     `yaml:"api_capacity"`  // token bucket capacity, indexer pool
	APIRate      float64 `yaml:"api_rate"`      // refill tokens/second, indexer pool

	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"` // initial delay, doubles per attempt
	MaxBackoff   time.Duration `yaml:"max_backoff"`
}

// AnalysisConfig consolidates every classification threshold. The same
// structure is injected into the classifier, tracer and aggregator so that
// analysis variants differ only by configuration, never by copied code.
type AnalysisConfig struct {
	// Holder enumeration
	PageSize          int     `yaml:"page_size"`           // token-account page size
	MinBalance        float64 `yaml:"min_balance"`         // decimal balance floor
	MinSupplyPercent  float64 `yaml:"min_supply_percent"`  // 0 disables the supply filter
	TopHolderFastPath int     `yaml:"top_holder_fastpath"` // largest-accounts call covers N <= this

	// Classification
	FreshWalletThreshold    int     `yaml:"fresh_wallet_threshold"`
	AssetCountThreshold     int     `yaml:"asset_count_threshold"`
	InactivityThresholdDays float64 `yaml:"inactivity_threshold_days"`
	TeamBotRecentTxCount    int     `yaml:"teambot_recent_tx_count"`
	MaxSwapScanTransactions int     `yaml:"max_swap_scan_transactions"`

	// Funding trace
	ClusterSizeThreshold        int    `yaml:"cluster_size_threshold"`
	MaxSignaturesForFundingScan int    `yaml:"max_signatures_for_funding_scan"`
	MaxTransactionsToCheck      int    `yaml:"max_transactions_to_check"`
	FundingLamportTolerance     uint64 `yaml:"funding_lamport_tolerance"`

	// Bot detection
	BotTxCountThreshold int     `yaml:"bot_tx_count_threshold"`
	BotBalanceRatio     float64 `yaml:"bot_balance_ratio"`
	BotProfitThreshold  float64 `yaml:"bot_profit_threshold"`

	// Bundles
	BundleWindowSeconds int64 `yaml:"bundle_window_seconds"`

	// Batch orchestration
	BatchSize     int           `yaml:"batch_size"`
	BatchPause    time.Duration `yaml:"batch_pause"`
	WalletTimeout time.Duration `yaml:"wallet_timeout"`
}

type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	UseMemory     bool   `yaml:"use_memory"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Load reads and parses a YAML configuration file. Environment variables
// in the file are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration with every default applied and no
// endpoints set. Used by tests and by callers that configure via flags.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.General.InstanceID == "" {
		cfg.General.InstanceID = "holder-audit-1"
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LogFormat == "" {
		cfg.General.LogFormat = "console"
	}

	if cfg.Solana.APIEndpoint == "" {
		cfg.Solana.APIEndpoint = cfg.Solana.RPCEndpoint
	}

	s := &cfg.Scheduler
	if s.BulkCapacity == 0 {
		s.BulkCapacity = 10
	}
	if s.BulkRate == 0 {
		s.BulkRate = 10
	}
	if s.APICapacity == 0 {
		s.APICapacity = 2
	}
	if s.APIRate == 0 {
		s.APIRate = 2
	}
	if s.MaxRetries == 0 {
		s.MaxRetries = 3
	}
	if s.RetryBackoff == 0 {
		s.RetryBackoff = 1 * time.Second
	}
	if s.MaxBackoff == 0 {
		s.MaxBackoff = 10 * time.Second
	}

	a := &cfg.Analysis
	if a.PageSize == 0 {
		a.PageSize = 1000
	}
	if a.TopHolderFastPath == 0 {
		a.TopHolderFastPath = 20
	}
	if a.FreshWalletThreshold == 0 {
		a.FreshWalletThreshold = 100
	}
	if a.AssetCountThreshold == 0 {
		a.AssetCountThreshold = 2
	}
	if a.InactivityThresholdDays == 0 {
		a.InactivityThresholdDays = 5
	}
	if a.TeamBotRecentTxCount == 0 {
		a.TeamBotRecentTxCount = 20
	}
	if a.MaxSwapScanTransactions == 0 {
		a.MaxSwapScanTransactions = 50
	}
	if a.ClusterSizeThreshold == 0 {
		a.ClusterSizeThreshold = 3
	}
	if a.MaxSignaturesForFundingScan == 0 {
		a.MaxSignaturesForFundingScan = 1000
	}
	if a.MaxTransactionsToCheck == 0 {
		a.MaxTransactionsToCheck = 10
	}
	if a.FundingLamportTolerance == 0 {
		a.FundingLamportTolerance = 10_000
	}
	if a.BotTxCountThreshold == 0 {
		a.BotTxCountThreshold = 10_000
	}
	if a.BotBalanceRatio == 0 {
		a.BotBalanceRatio = 0.05
	}
	if a.BotProfitThreshold == 0 {
		a.BotProfitThreshold = 2_000_000
	}
	if a.BundleWindowSeconds == 0 {
		a.BundleWindowSeconds = 10
	}
	if a.BatchSize == 0 {
		a.BatchSize = 20
	}
	if a.BatchPause == 0 {
		a.BatchPause = 150 * time.Millisecond
	}
	if a.WalletTimeout == 0 {
		a.WalletTimeout = 10 * time.Second
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
}

func validate(cfg *Config) error {
	a := cfg.Analysis
	if a.BatchSize < 5 || a.BatchSize > 30 {
		return fmt.Errorf("config: batch_size must be within [5, 30], got %d", a.BatchSize)
	}
	if cfg.Scheduler.BulkRate < 0 || cfg.Scheduler.APIRate < 0 {
		return fmt.Errorf("config: pool refill rates must be non-negative")
	}
	return nil
}
