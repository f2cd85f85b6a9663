package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"b3ingest/internal/adapter"
	"b3ingest/internal/analytics"
	"b3ingest/internal/config"
	"b3ingest/internal/infrastructure"
	"b3ingest/internal/ingest"
	"b3ingest/internal/schema"
	"b3ingest/internal/security"
	"b3ingest/internal/store"
	"b3ingest/pkg/contracts"
)

func main() {
	tickers := flag.String("tickers", "", "comma-separated tickers (e.g. PETR4,VALE3) or, with -provider b3file, workbook paths relative to -in")
	start := flag.String("start", "", "start date YYYY-MM-DD (default: one year back)")
	end := flag.String("end", "", "end date YYYY-MM-DD (default: today)")
	provider := flag.String("provider", "", "data provider: yahoo | b3file (default from config)")
	inDir := flag.String("in", ".", "base directory for b3file workbooks")
	threshold := flag.Float64("threshold", -1, "invalid-row rate ceiling (fraction); negative means config/env")
	abort := flag.Bool("abort", false, "abort a ticker's job when the invalid rate meets the threshold")
	snapshotDir := flag.String("snapshot", "", "directory for deterministic exports of accepted rows (empty: disabled)")
	analyze := flag.Bool("analyze", false, "print annualized return/risk and the correlation matrix after ingesting")
	trace := flag.Bool("trace", false, "emit spans to stdout")
	metricsListen := flag.String("metrics-listen", "", "address for the Prometheus /metrics endpoint (empty: disabled)")
	flag.Parse()

	if *tickers == "" {
		fmt.Fprintln(os.Stderr, "usage: ingest -tickers PETR4,VALE3 [-start YYYY-MM-DD] [-end YYYY-MM-DD]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}
	if err := cfg.EnsureDirs(); err != nil {
		slog.Error("failed to create data directories", "error", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	logger.Info("starting", slog.String("version", contracts.VersionString()))

	tracingCfg := infrastructure.DefaultTracingConfig()
	tracingCfg.Enabled = *trace
	tracingCfg.ServiceVersion = contracts.Version
	providers, err := infrastructure.InitializeTracing(tracingCfg, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer providers.Shutdown(context.Background())

	if *metricsListen != "" {
		serveMetrics(*metricsListen, logger)
	}

	canonical, err := schema.Load(cfg.Paths.SchemaPath)
	if err != nil {
		logger.Error("failed to load canonical schema",
			slog.String("path", cfg.Paths.SchemaPath),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	providerName := cfg.Ingest.Provider
	if *provider != "" {
		providerName = *provider
	}

	fetch, err := fetchFuncFor(providerName, logger)
	if err != nil {
		logger.Error("unknown provider", slog.String("provider", providerName))
		os.Exit(1)
	}

	var priceStore *store.Store
	if s, err := store.Open(cfg.Paths.DBFile); err != nil {
		logger.Warn("price store unavailable, continuing without it",
			slog.String("db", cfg.Paths.DBFile),
			slog.String("error", err.Error()))
	} else {
		priceStore = s
		defer priceStore.Close()
	}

	pipeline := &ingest.Pipeline{
		Engine:      adapter.NewEngine(adapter.RetryConfigFromEnv(), adapter.DefaultMetrics, logger),
		Fetch:       fetch,
		Provider:    providerName,
		Schema:      canonical,
		RawDir:      cfg.Paths.RawDir,
		SnapshotDir: *snapshotDir,
		Audit:       ingest.NewAuditLog(cfg.Paths.MetadataFile),
		Store:       priceStore,
		Logger:      logger,
		Tracer:      infrastructure.Tracer("b3ingest/ingest"),
	}

	var jobThreshold *float64
	if *threshold >= 0 {
		jobThreshold = threshold
	} else if cfg.Ingest.Threshold > 0 {
		t := cfg.Ingest.Threshold
		jobThreshold = &t
	}

	failures := 0
	var ingested []string
	names := splitTickers(*tickers)
	for _, name := range names {
		ticker, err := resolveTicker(providerName, *inDir, name)
		if err != nil {
			fmt.Printf("SKIP  %-12s %v\n", name, err)
			failures++
			continue
		}

		result, err := pipeline.Run(context.Background(), ingest.Job{
			Ticker:         ticker,
			StartDate:      *start,
			EndDate:        *end,
			Threshold:      jobThreshold,
			AbortOnExceed:  *abort || cfg.Ingest.AbortOnExceed,
			PersistInvalid: cfg.Ingest.PersistInvalid,
		})
		if err != nil {
			// One failing ticker never sinks the rest of the run.
			fmt.Printf("ERROR %-12s %v\n", name, err)
			failures++
			continue
		}
		ingested = append(ingested, ticker)
		fmt.Printf("OK    %-12s rows=%d checksum=%s file=%s\n",
			name, result.Rows, short(result.RawChecksum), result.Filepath)
	}

	if *analyze {
		printAnalysis(context.Background(), priceStore, ingested, logger)
	}

	if failures == len(names) {
		os.Exit(1)
	}
}

// tradingPeriods is the B3 trading-day count used to annualize daily
// return series.
const tradingPeriods = 252

// printAnalysis reports annualized return, risk and coefficient of
// variation per ticker from the stored close series, then the pairwise
// correlation matrix of their log returns.
func printAnalysis(ctx context.Context, s *store.Store, tickers []string, logger *slog.Logger) {
	if s == nil {
		fmt.Println("ANALYZE skipped: price store unavailable")
		return
	}

	series := make(map[string][]float64)
	var order []string
	for _, ticker := range tickers {
		closes, err := s.ClosePrices(ctx, ticker)
		if err != nil {
			logger.Warn("failed to load close series",
				slog.String("ticker", ticker),
				slog.String("error", err.Error()))
			continue
		}
		returns, err := analytics.LogReturns(closes)
		if err != nil {
			fmt.Printf("ANALYZE %-12s %v\n", ticker, err)
			continue
		}

		annualReturn := analytics.AnnualizeReturn(analytics.Mean(returns), tradingPeriods)
		annualRisk := analytics.AnnualizeRisk(analytics.StdDev(returns), tradingPeriods)
		fmt.Printf("ANALYZE %-12s return=%+.2f%% risk=%.2f%% cv=%.2f\n",
			ticker, annualReturn*100, annualRisk*100,
			analytics.CoefficientOfVariation(annualRisk, annualReturn))

		series[ticker] = returns
		order = append(order, ticker)
	}

	if len(order) < 2 {
		return
	}
	matrix := analytics.CorrelationMatrix(series, order)
	fmt.Println("CORRELATION")
	for i, ticker := range order {
		fmt.Printf("  %-12s", ticker)
		for j := range order {
			fmt.Printf(" %6.3f", matrix[i][j])
		}
		fmt.Println()
	}
}

func fetchFuncFor(provider string, logger *slog.Logger) (adapter.FetchFunc, error) {
	switch provider {
	case "yahoo":
		return adapter.NewYahooAdapter().Fetch, nil
	case "b3file":
		return adapter.NewB3FileAdapter(logger).Fetch, nil
	}
	return nil, fmt.Errorf("unknown provider %q", provider)
}

// resolveTicker validates a CLI ticker, or resolves a workbook path against
// the input directory for the file provider.
func resolveTicker(provider, inDir, name string) (string, error) {
	if provider == "b3file" {
		return security.SanitizeRelPath(inDir, name)
	}
	return security.ValidateTicker(name)
}

func serveMetrics(addr string, logger *slog.Logger) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(adapter.DefaultMetrics)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics endpoint stopped", slog.String("error", err.Error()))
		}
	}()
	logger.Info("metrics endpoint listening", slog.String("addr", addr))
}

func splitTickers(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func short(checksum string) string {
	if len(checksum) > 12 {
		return checksum[:12]
	}
	return checksum
}
