// Command audit runs a one-shot holder audit for a token mint and
// prints the classification summary. With --output it also writes a
// Markdown report and a per-wallet CSV.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-holder-audit/internal/classify"
	"solana-holder-audit/internal/config"
	"solana-holder-audit/internal/funding"
	"solana-holder-audit/internal/holders"
	"solana-holder-audit/internal/orchestrator"
	"solana-holder-audit/internal/registry"
	"solana-holder-audit/internal/reporting"
	"solana-holder-audit/internal/scheduler"
	"solana-holder-audit/internal/solana"
	"solana-holder-audit/internal/storage"
	chstore "solana-holder-audit/internal/storage/clickhouse"
	"solana-holder-audit/internal/storage/memory"
	"solana-holder-audit/internal/storage/migrations"
	pgstore "solana-holder-audit/internal/storage/postgres"
	"solana-holder-audit/internal/trades"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "YAML configuration file")
	mint := flag.String("mint", "", "token mint to audit (required)")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	apiEndpoint := flag.String("api-endpoint", os.Getenv("SOLANA_API_ENDPOINT"), "indexer/DAS endpoint (defaults to RPC endpoint)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL DSN for run persistence")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse DSN for trade history")
	useMemory := flag.Bool("use-memory", false, "in-memory stores instead of PostgreSQL/ClickHouse")
	top := flag.Int("top", 0, "audit only the N largest holders (0 = all)")
	minBalance := flag.String("min-balance", "", "skip holders below this balance")
	outputDir := flag.String("output", "", "directory for report.md and wallets.csv")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *rpcEndpoint != "" {
		cfg.Solana.RPCEndpoint = *rpcEndpoint
	}
	if *apiEndpoint != "" {
		cfg.Solana.APIEndpoint = *apiEndpoint
	}
	if cfg.Solana.APIEndpoint == "" {
		cfg.Solana.APIEndpoint = cfg.Solana.RPCEndpoint
	}
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Storage.ClickhouseDSN = *clickhouseDSN
	}
	if *useMemory {
		cfg.Storage.UseMemory = true
	}

	log := newLogger(cfg.General)

	if *mint == "" {
		log.Fatal().Msg("--mint is required")
	}
	if cfg.Solana.RPCEndpoint == "" {
		log.Fatal().Msg("--rpc-endpoint (or SOLANA_RPC_ENDPOINT) is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, cleanup, err := buildOrchestrator(ctx, cfg, *top, *minBalance, log)
	if err != nil {
		log.Fatal().Err(err).Msg("setup failed")
	}
	defer cleanup()

	result, err := orch.Run(ctx, *mint)
	switch {
	case errors.Is(err, orchestrator.ErrCancelled):
		log.Warn().Msg("audit aborted")
		os.Exit(130)
	case err != nil && result == nil:
		log.Fatal().Err(err).Msg("audit failed")
	case err != nil:
		// The report survived; only persistence failed.
		log.Error().Err(err).Msg("run persistence failed")
	}

	report := reporting.Build(result.Report, result.Bundles, result.Team)
	fmt.Print(reporting.RenderText(report))

	if *outputDir != "" {
		if err := writeArtifacts(*outputDir, report); err != nil {
			log.Fatal().Err(err).Msg("write report artifacts")
		}
		log.Info().Str("dir", *outputDir).Msg("report artifacts written")
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newLogger(general config.GeneralConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(general.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if general.LogFormat == "json" {
		log = zerolog.New(os.Stderr)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return log.Level(level).With().Timestamp().Str("instance", general.InstanceID).Logger()
}

// buildOrchestrator wires the audit from configuration: scheduler, RPC
// client, classifier stack, and optional stores.
func buildOrchestrator(ctx context.Context, cfg *config.Config, top int, minBalance string, log zerolog.Logger) (*orchestrator.Orchestrator, func(), error) {
	sched := scheduler.New(scheduler.Options{
		BulkCapacity: cfg.Scheduler.BulkCapacity,
		BulkRate:     cfg.Scheduler.BulkRate,
		APICapacity:  cfg.Scheduler.APICapacity,
		APIRate:      cfg.Scheduler.APIRate,
		MaxRetries:   cfg.Scheduler.MaxRetries,
		RetryBackoff: cfg.Scheduler.RetryBackoff,
		MaxBackoff:   cfg.Scheduler.MaxBackoff,
		Logger:       log,
	})
	client := solana.NewHTTPClient(cfg.Solana.RPCEndpoint, sched,
		solana.WithAPIEndpoint(cfg.Solana.APIEndpoint)).Tagged("audit")

	reg := registry.New(nil)
	tracer := funding.New(client, reg, funding.Options{
		MaxSignatures: cfg.Analysis.MaxSignaturesForFundingScan,
		MaxCheck:      cfg.Analysis.MaxTransactionsToCheck,
		Tolerance:     cfg.Analysis.FundingLamportTolerance,
	})
	classifier := classify.New(client, tracer, classify.Thresholds{
		FreshWalletThreshold:    cfg.Analysis.FreshWalletThreshold,
		AssetCountThreshold:     cfg.Analysis.AssetCountThreshold,
		InactivityThresholdDays: cfg.Analysis.InactivityThresholdDays,
		TeamBotRecentTxCount:    cfg.Analysis.TeamBotRecentTxCount,
		MaxSwapScanTransactions: cfg.Analysis.MaxSwapScanTransactions,
	}, log)
	enumerator := holders.New(client, holders.Options{
		PageSize: cfg.Analysis.PageSize,
		Logger:   log,
	})

	opts := orchestrator.Options{
		BatchSize:            cfg.Analysis.BatchSize,
		BatchPause:           cfg.Analysis.BatchPause,
		WalletTimeout:        cfg.Analysis.WalletTimeout,
		TopHolders:           top,
		ClusterSizeThreshold: cfg.Analysis.ClusterSizeThreshold,
		BundleWindowSeconds:  cfg.Analysis.BundleWindowSeconds,
		Logger:               log,
	}
	if minBalance != "" {
		mb, err := decimal.NewFromString(minBalance)
		if err != nil {
			return nil, nil, fmt.Errorf("bad --min-balance %q: %w", minBalance, err)
		}
		opts.MinBalance = mb
	}

	orch := orchestrator.New(client, enumerator, classifier, opts)

	cleanup := func() {}
	switch {
	case cfg.Storage.UseMemory:
		orch.WithStores(memory.NewAuditRunStore(), memory.NewClassifiedWalletStore())
	case cfg.Storage.PostgresDSN != "":
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		orch.WithStores(pgstore.NewAuditRunStore(pool), pgstore.NewClassifiedWalletStore(pool))
		cleanup = pool.Close
	}

	if src, chCleanup, err := tradeSource(ctx, cfg); err != nil {
		log.Warn().Err(err).Msg("trade history unavailable, continuing without bundles")
	} else if src != nil {
		orch.WithTradeSource(src)
		prev := cleanup
		cleanup = func() { chCleanup(); prev() }
	}

	return orch, cleanup, nil
}

// tradeSource opens the ClickHouse archive when configured. Returns
// (nil, noop, nil) when no trade storage applies.
func tradeSource(ctx context.Context, cfg *config.Config) (trades.Source, func(), error) {
	noop := func() {}
	if cfg.Storage.UseMemory || cfg.Storage.ClickhouseDSN == "" {
		return nil, noop, nil
	}
	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		return nil, noop, err
	}
	var store storage.TradeEventStore = chstore.NewTradeEventStore(conn)
	return trades.NewStoreSource(store), func() { conn.Close() }, nil
}

func writeArtifacts(dir string, report *reporting.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "report.md"), []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "wallets.csv"), []byte(reporting.RenderWalletsCSV(report)), 0o644)
}
