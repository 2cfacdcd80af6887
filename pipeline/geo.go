package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-rentals/config"
	"github.com/aluiziolira/go-scrape-rentals/geocode"
	"github.com/aluiziolira/go-scrape-rentals/models"
	"github.com/aluiziolira/go-scrape-rentals/scraper"
	"github.com/aluiziolira/go-scrape-rentals/store"
)

// GeoStage resolves coordinates for every distinct (district, community)
// pair found in the detail table. Each pair is looked up at most once
// across all runs: provider-confirmed failures are memoized as null
// coordinates, while connection and content failures leave no row at all
// so they are retried on the next run.
type GeoStage struct {
	cfg     *config.Config
	client  *geocode.Client
	store   *store.Store
	pacer   *Pacer
	metrics *scraper.Metrics
}

// NewGeoStage wires the community geocoding stage.
func NewGeoStage(cfg *config.Config, client *geocode.Client, st *store.Store, pacer *Pacer, metrics *scraper.Metrics) *GeoStage {
	return &GeoStage{
		cfg:     cfg,
		client:  client,
		store:   st,
		pacer:   pacer,
		metrics: metrics,
	}
}

// Run walks the distinct communities and geocodes the ones without a
// memoized row, committing every CommitEvery lookups.
func (g *GeoStage) Run(ctx context.Context) (*models.GeoResult, error) {
	result := &models.GeoResult{StartTime: time.Now()}
	defer func() { result.EndTime = time.Now() }()

	if err := g.store.EnsureGeo(ctx); err != nil {
		return result, err
	}

	places, err := g.store.DistinctCommunities(ctx)
	if err != nil {
		return result, err
	}
	slog.Info("geo stage starting", slog.Int("communities", len(places)))

	tx, err := g.store.Begin(ctx)
	if err != nil {
		return result, err
	}
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	inBatch := 0
	for _, place := range places {
		if err := ctx.Err(); err != nil {
			if cerr := tx.Commit(); cerr != nil {
				return result, cerr
			}
			tx = nil
			return result, err
		}

		result.Total++

		exists, err := g.store.GeoExists(ctx, place.District, place.Community)
		if err != nil {
			return result, err
		}
		if exists {
			result.Cached++
			continue
		}

		rec := &models.GeoRecord{District: place.District, Community: place.Community}
		lon, lat, lookupErr := g.client.Geocode(place.District, place.Community)
		switch {
		case lookupErr == nil:
			rec.Longitude = &lon
			rec.Latitude = &lat
			result.Resolved++
		case isMemoizable(lookupErr):
			// The provider answered and said no: record the null so the
			// pair is never asked about again.
			slog.Info("community unresolvable, memoizing null",
				slog.String("district", place.District),
				slog.String("community", place.Community),
				slog.Any("error", lookupErr),
			)
			g.metrics.IncError("provider")
			result.Nulled++
		default:
			// Transient failure: write nothing and retry next run.
			slog.Warn("geocode failed, will retry next run",
				slog.String("district", place.District),
				slog.String("community", place.Community),
				slog.Any("error", lookupErr),
			)
			result.Skipped++
			g.pacer.Uniform(0, g.cfg.GeoDelayMax)
			continue
		}

		if _, err := g.store.InsertGeo(ctx, tx, rec); err != nil {
			return result, err
		}
		g.metrics.IncItems()

		inBatch++
		if inBatch%g.cfg.CommitEvery == 0 {
			if err := tx.Commit(); err != nil {
				return result, fmt.Errorf("commit geo batch: %w", err)
			}
			if tx, err = g.store.Begin(ctx); err != nil {
				return result, err
			}
			slog.Info("geo progress",
				slog.Int("resolved", result.Resolved),
				slog.Int("nulled", result.Nulled),
				slog.Int("total", result.Total),
			)
		}

		g.pacer.Uniform(0, g.cfg.GeoDelayMax)
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("commit final geo batch: %w", err)
	}
	tx = nil

	slog.Info("geo stage complete",
		slog.Int("total", result.Total),
		slog.Int("cached", result.Cached),
		slog.Int("resolved", result.Resolved),
		slog.Int("nulled", result.Nulled),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

// isMemoizable reports whether a lookup failure is a provider-confirmed
// miss (zero results or a semantic rejection) rather than a transient
// connection or content fault.
func isMemoizable(err error) bool {
	var provider geocode.ProviderError
	if errors.As(err, &provider) {
		return true
	}
	var status scraper.ErrHTTPStatus
	return errors.As(err, &status)
}
