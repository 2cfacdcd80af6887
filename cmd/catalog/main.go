// Command catalog rebuilds the summary table: it walks every catalog
// page for the configured city and stores one pending stub per listing.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-rentals/config"
	"github.com/aluiziolira/go-scrape-rentals/models"
	"github.com/aluiziolira/go-scrape-rentals/pipeline"
	"github.com/aluiziolira/go-scrape-rentals/scraper"
	"github.com/aluiziolira/go-scrape-rentals/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	host := flag.String("host", cfg.Host, "Listing site base URL")
	agentsFile := flag.String("agents", cfg.AgentsFile, "User-agent pool file (newline separated)")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", cfg.Verbose, "Enable verbose logging")
	flag.Parse()

	cfg.DBPath = *dbPath
	cfg.Host = *host
	cfg.AgentsFile = *agentsFile
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	logger, level := config.NewLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	st, err := store.Open(cfg.DBPath, cfg.City)
	if err != nil {
		slog.Error("opening database", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	agents, err := scraper.LoadAgentPool(cfg.AgentsFile, time.Now().UnixNano())
	if err != nil {
		slog.Error("loading user agents", slog.Any("error", err))
		os.Exit(1)
	}

	sink, err := scraper.NewFileSink(cfg.FailLogDir, "catalog")
	if err != nil {
		slog.Error("opening failure log", slog.Any("error", err))
		os.Exit(1)
	}
	defer sink.Close()

	metrics := scraper.NewMetrics("catalog")
	fetcher, err := scraper.NewFetcher(cfg.Host, cfg.Timeout, agents, sink, metrics)
	if err != nil {
		slog.Error("initialising fetcher", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsServer := startMetricsServer(cfg.MetricsAddr, metrics)

	stage, err := pipeline.NewCatalogStage(cfg, fetcher, st, pipeline.NewPacer(time.Now().UnixNano()), metrics)
	if err != nil {
		slog.Error("initialising catalog stage", slog.Any("error", err))
		os.Exit(1)
	}

	result, err := stage.Run(ctx)
	if err != nil {
		slog.Error("catalog run failed", slog.Any("error", err))
		printSummary(result)
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result)
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func printSummary(result *models.CatalogResult) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Catalog run complete")
	fmt.Printf("  Pages fetched: %d\n", result.Pages)
	fmt.Printf("  Pages failed:  %d\n", result.PagesFail)
	fmt.Printf("  Listings seen: %d\n", result.Attempted)
	fmt.Printf("  Inserted:      %d\n", result.Inserted)
	fmt.Printf("  Duplicates:    %d\n", result.Duplicates)
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime))
	fmt.Println(separator)
}
