// Command server runs the holder-audit service: a live trade recorder
// feeding the trade archive, plus an HTTP API for on-demand audits,
// health, status and Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"solana-holder-audit/internal/classify"
	"solana-holder-audit/internal/config"
	"solana-holder-audit/internal/funding"
	"solana-holder-audit/internal/holders"
	"solana-holder-audit/internal/observability"
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

type server struct {
	cfg *config.Config
	log zerolog.Logger

	client     *solana.HTTPClient
	enumerator *holders.Enumerator
	classifier *classify.Classifier

	runStore    storage.AuditRunStore
	walletStore storage.ClassifiedWalletStore
	tradeStore  storage.TradeEventStore

	recordMints []string

	mu           sync.Mutex
	started      time.Time
	auditRunning bool
	lastAudit    time.Time
	auditRuns    int
}

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "YAML configuration file")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	apiEndpoint := flag.String("api-endpoint", os.Getenv("SOLANA_API_ENDPOINT"), "indexer/DAS endpoint (defaults to RPC endpoint)")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint for the trade recorder")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL DSN")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse DSN")
	useMemory := flag.Bool("use-memory", false, "in-memory stores instead of PostgreSQL/ClickHouse")
	recordMints := flag.String("record-mints", "", "comma-separated mints for the live trade recorder")
	httpAddr := flag.String("http-addr", ":8080", "HTTP API listen address")
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
	if *wsEndpoint != "" {
		cfg.Solana.WSEndpoint = *wsEndpoint
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

	if cfg.Solana.RPCEndpoint == "" {
		log.Fatal().Msg("--rpc-endpoint (or SOLANA_RPC_ENDPOINT) is required")
	}
	if !cfg.Storage.UseMemory && (cfg.Storage.PostgresDSN == "" || cfg.Storage.ClickhouseDSN == "") {
		log.Fatal().Msg("--postgres-dsn and --clickhouse-dsn are required (or --use-memory)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, cleanup, err := newServer(ctx, cfg, splitMints(*recordMints), log)
	if err != nil {
		log.Fatal().Err(err).Msg("setup failed")
	}
	defer cleanup()

	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
		select {
		case <-sigCh:
			log.Warn().Msg("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn().Msg("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = srv.run(ctx, *httpAddr, cfg.Metrics.Addr)
	close(done)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("shutdown complete")
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

func splitMints(s string) []string {
	var mints []string
	for _, m := range strings.Split(s, ",") {
		if m = strings.TrimSpace(m); m != "" {
			mints = append(mints, m)
		}
	}
	return mints
}

func newServer(ctx context.Context, cfg *config.Config, recordMints []string, log zerolog.Logger) (*server, func(), error) {
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
		solana.WithAPIEndpoint(cfg.Solana.APIEndpoint)).Tagged("server")

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

	srv := &server{
		cfg:         cfg,
		log:         log,
		client:      client,
		enumerator:  enumerator,
		classifier:  classifier,
		recordMints: recordMints,
		started:     time.Now(),
	}

	if cfg.Storage.UseMemory {
		srv.runStore = memory.NewAuditRunStore()
		srv.walletStore = memory.NewClassifiedWalletStore()
		srv.tradeStore = memory.NewTradeEventStore()
		return srv, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}
	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	srv.runStore = pgstore.NewAuditRunStore(pool)
	srv.walletStore = pgstore.NewClassifiedWalletStore(pool)
	srv.tradeStore = chstore.NewTradeEventStore(conn)
	cleanup := func() {
		_ = conn.Close()
		pool.Close()
	}
	return srv, cleanup, nil
}

// run starts the HTTP API, the metrics endpoint and one trade recorder
// per configured mint, then blocks until cancellation or a component
// failure.
func (s *server) run(ctx context.Context, httpAddr, metricsAddr string) error {
	errCh := make(chan error, 2+len(s.recordMints))

	go func() { errCh <- s.serveHTTP(ctx, httpAddr, s.apiMux()) }()
	if s.cfg.Metrics.Enabled {
		go func() { errCh <- s.serveHTTP(ctx, metricsAddr, s.metricsMux()) }()
	}

	for _, mint := range s.recordMints {
		if s.cfg.Solana.WSEndpoint == "" {
			return fmt.Errorf("--ws-endpoint is required to record trades for %s", mint)
		}
		mint := mint
		go func() {
			err := s.recordTrades(ctx, mint)
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("trade recorder %s: %w", mint, err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// recordTrades runs one live recorder until cancellation. Each mint
// gets its own WebSocket connection; some providers deduplicate
// subscriptions per connection.
func (s *server) recordTrades(ctx context.Context, mint string) error {
	ws, err := solana.NewLogStream(ctx, s.cfg.Solana.WSEndpoint, nil, s.log)
	if err != nil {
		return fmt.Errorf("connect websocket: %w", err)
	}
	defer ws.Close()

	rec := trades.NewRecorder(ws, s.client, s.tradeStore, registry.New(nil), mint, trades.RecorderConfig{
		Logger: s.log,
	})
	s.log.Info().Str("mint", mint).Msg("trade recorder started")
	return rec.Run(ctx)
}

func (s *server) apiMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/audit", s.handleAudit)
	mux.HandleFunc("/runs", s.handleRuns)
	return mux
}

func (s *server) metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	return mux
}

func (s *server) serveHTTP(ctx context.Context, addr string, mux *http.ServeMux) error {
	httpSrv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()
	s.log.Info().Str("addr", addr).Msg("http server listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

type statusResponse struct {
	Status       string    `json:"status"`
	Uptime       string    `json:"uptime"`
	AuditRunning bool      `json:"audit_running"`
	AuditRuns    int       `json:"audit_runs"`
	LastAudit    time.Time `json:"last_audit,omitempty"`
	RecordMints  []string  `json:"record_mints,omitempty"`
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	resp := statusResponse{
		Status:       "running",
		Uptime:       time.Since(s.started).String(),
		AuditRunning: s.auditRunning,
		AuditRuns:    s.auditRuns,
		LastAudit:    s.lastAudit,
		RecordMints:  s.recordMints,
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

type auditResponse struct {
	RunID             string                  `json:"run_id"`
	Mint              string                  `json:"mint"`
	HolderCount       int                     `json:"holder_count"`
	Categories        []reporting.CategoryRow `json:"categories"`
	SuspiciousPercent string                  `json:"suspicious_percent"`
	FunderGroups      int                     `json:"funder_groups"`
	Bundles           int                     `json:"bundles"`
	BotWallets        int                     `json:"bot_wallets"`
	Errors            []string                `json:"errors,omitempty"`
}

// handleAudit runs a synchronous audit for ?mint=. One audit at a time;
// a second request while one runs gets 409.
func (s *server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	mint := r.URL.Query().Get("mint")
	if mint == "" {
		http.Error(w, "mint query parameter required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.auditRunning {
		s.mu.Unlock()
		http.Error(w, "audit already running", http.StatusConflict)
		return
	}
	s.auditRunning = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.auditRunning = false
		s.lastAudit = time.Now()
		s.auditRuns++
		s.mu.Unlock()
	}()

	orch := orchestrator.New(s.client, s.enumerator, s.classifier, orchestrator.Options{
		BatchSize:            s.cfg.Analysis.BatchSize,
		BatchPause:           s.cfg.Analysis.BatchPause,
		WalletTimeout:        s.cfg.Analysis.WalletTimeout,
		ClusterSizeThreshold: s.cfg.Analysis.ClusterSizeThreshold,
		BundleWindowSeconds:  s.cfg.Analysis.BundleWindowSeconds,
		Logger:               s.log,
	}).
		WithStores(s.runStore, s.walletStore).
		WithTradeSource(trades.NewStoreSource(s.tradeStore))

	result, err := orch.Run(r.Context(), mint)
	if err != nil && result == nil {
		var tokenErr *orchestrator.TokenInfoError
		if errors.As(err, &tokenErr) {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("run persistence failed")
	}

	report := reporting.Build(result.Report, result.Bundles, result.Team)
	writeJSON(w, http.StatusOK, auditResponse{
		RunID:             report.Run.RunID,
		Mint:              report.Run.Mint,
		HolderCount:       report.Run.HolderCount,
		Categories:        report.Rows,
		SuspiciousPercent: report.SuspiciousPercent.StringFixed(4),
		FunderGroups:      len(report.FunderGroups),
		Bundles:           len(report.Bundles),
		BotWallets:        report.BotCount,
		Errors:            report.Errors,
	})
}

// handleRuns returns the most recent persisted run for ?mint=.
func (s *server) handleRuns(w http.ResponseWriter, r *http.Request) {
	mint := r.URL.Query().Get("mint")
	if mint == "" {
		http.Error(w, "mint query parameter required", http.StatusBadRequest)
		return
	}
	run, err := s.runStore.Latest(r.Context(), mint)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "no runs for mint", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
