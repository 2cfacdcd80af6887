// Command metro rebuilds the metro station reference table from the
// operator's site and geocodes each station through place search.
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
	"github.com/aluiziolira/go-scrape-rentals/geocode"
	"github.com/aluiziolira/go-scrape-rentals/metro"
	"github.com/aluiziolira/go-scrape-rentals/models"
	"github.com/aluiziolira/go-scrape-rentals/pipeline"
	"github.com/aluiziolira/go-scrape-rentals/scraper"
	"github.com/aluiziolira/go-scrape-rentals/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	metroURL := flag.String("metro-url", cfg.MetroURL, "Metro operator station page URL")
	geoKey := flag.String("key", cfg.GeoKey, "Geocoding provider API key")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", cfg.Verbose, "Enable verbose logging")
	flag.Parse()

	cfg.DBPath = *dbPath
	cfg.MetroURL = *metroURL
	cfg.GeoKey = *geoKey
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	logger, level := config.NewLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.GeoKey == "" {
		slog.Error("station geocoding requires an API key (GEO_API_KEY or -key)")
		os.Exit(1)
	}

	st, err := store.Open(cfg.DBPath, cfg.City)
	if err != nil {
		slog.Error("opening database", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	sink, err := scraper.NewFileSink(cfg.FailLogDir, "metro")
	if err != nil {
		slog.Error("opening failure log", slog.Any("error", err))
		os.Exit(1)
	}
	defer sink.Close()

	metrics := scraper.NewMetrics("metro")
	fetcher, err := scraper.NewFetcher(cfg.PlaceSearchURL, cfg.Timeout, nil, sink, metrics)
	if err != nil {
		slog.Error("initialising fetcher", slog.Any("error", err))
		os.Exit(1)
	}

	client := geocode.New(fetcher, cfg.GeoKey, cfg.City, cfg.GeocodeURL, cfg.PlaceSearchURL, cfg.PlaceTypeFilter)
	source := metro.New(cfg.MetroURL, cfg.Timeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsServer := startMetricsServer(cfg.MetricsAddr, metrics)

	stage := pipeline.NewStationStage(cfg, source, client, st, pipeline.NewPacer(time.Now().UnixNano()), metrics)
	result, err := stage.Run(ctx)
	if err != nil {
		slog.Error("metro run failed", slog.Any("error", err))
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

func printSummary(result *models.StationResult) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Metro run complete")
	fmt.Printf("  Scraped:       %d\n", result.Scraped)
	fmt.Printf("  Inserted:      %d\n", result.Inserted)
	fmt.Printf("  Resolved:      %d\n", result.Resolved)
	fmt.Printf("  Nulled:        %d\n", result.Nulled)
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime))
	fmt.Println(separator)
}
