package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/aluiziolira/go-scrape-rentals/config"
	"github.com/aluiziolira/go-scrape-rentals/geocode"
	"github.com/aluiziolira/go-scrape-rentals/models"
	"github.com/aluiziolira/go-scrape-rentals/scraper"
	"github.com/aluiziolira/go-scrape-rentals/store"
)

// StationSource yields the metro operator's station reference table.
type StationSource interface {
	Stations(ctx context.Context) ([]*models.StationRecord, error)
}

// stationNamePat captures the leading word of a place-search candidate
// name so "珠江新城地铁站-A口" matches a station named 珠江新城.
var stationNamePat = regexp.MustCompile(`^([\p{L}\p{N}_]+)`)

// StationStage rebuilds the metro station reference table from the
// operator's site, then geocodes stations without coordinates through
// place search. A candidate whose name does not start with the station
// name is rejected and memoized as null coordinates.
type StationStage struct {
	cfg     *config.Config
	source  StationSource
	client  *geocode.Client
	store   *store.Store
	pacer   *Pacer
	metrics *scraper.Metrics
}

// NewStationStage wires the station reference stage.
func NewStationStage(cfg *config.Config, source StationSource, client *geocode.Client, st *store.Store, pacer *Pacer, metrics *scraper.Metrics) *StationStage {
	return &StationStage{
		cfg:     cfg,
		source:  source,
		client:  client,
		store:   st,
		pacer:   pacer,
		metrics: metrics,
	}
}

// Run scrapes the reference table, replaces the stored copy, prunes the
// excluded line prefix, then fills in missing coordinates.
func (s *StationStage) Run(ctx context.Context) (*models.StationResult, error) {
	result := &models.StationResult{StartTime: time.Now()}
	defer func() { result.EndTime = time.Now() }()

	stations, err := s.source.Stations(ctx)
	if err != nil {
		return result, fmt.Errorf("scrape station table: %w", err)
	}
	result.Scraped = len(stations)
	slog.Info("station table scraped", slog.Int("stations", len(stations)))

	if err := s.store.ResetStations(ctx); err != nil {
		return result, err
	}
	inserted, err := s.store.InsertStations(ctx, stations)
	if err != nil {
		return result, err
	}
	result.Inserted = inserted

	if s.cfg.MetroExcludePrefix != "" {
		if err := s.store.DeleteLinePrefix(ctx, s.cfg.MetroExcludePrefix); err != nil {
			return result, err
		}
	}

	if err := s.resolveMissing(ctx, result); err != nil {
		return result, err
	}

	slog.Info("station stage complete",
		slog.Int("scraped", result.Scraped),
		slog.Int("inserted", result.Inserted),
		slog.Int("resolved", result.Resolved),
		slog.Int("nulled", result.Nulled),
	)
	return result, nil
}

func (s *StationStage) resolveMissing(ctx context.Context, result *models.StationResult) error {
	missing, err := s.store.StationsMissingGeo(ctx)
	if err != nil {
		return err
	}
	slog.Info("geocoding stations", slog.Int("missing", len(missing)))

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	inBatch := 0
	for _, station := range missing {
		if err := ctx.Err(); err != nil {
			if cerr := tx.Commit(); cerr != nil {
				return cerr
			}
			tx = nil
			return err
		}

		lon, lat, ok := s.lookupStation(station)
		var lonp, latp *float64
		if ok {
			lonp, latp = &lon, &lat
			result.Resolved++
		} else {
			result.Nulled++
		}
		if err := s.store.UpdateStationGeo(ctx, tx, station.LineCode, station.StationCode, lonp, latp); err != nil {
			return err
		}
		s.metrics.IncItems()

		inBatch++
		if inBatch%s.cfg.CommitEvery == 0 {
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("commit station batch: %w", err)
			}
			if tx, err = s.store.Begin(ctx); err != nil {
				return err
			}
		}

		s.pacer.Uniform(0, s.cfg.GeoDelayMax)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit final station batch: %w", err)
	}
	tx = nil
	return nil
}

// lookupStation place-searches one station and verifies the candidate
// actually is that station. Any rejection or provider miss memoizes a
// null so the station is not asked about again.
func (s *StationStage) lookupStation(station *models.StationRecord) (lon, lat float64, ok bool) {
	name, lon, lat, err := s.client.PlaceSearch(station.StationName + s.cfg.StationSuffix)
	if err != nil {
		slog.Warn("station place search failed",
			slog.String("station", station.StationName),
			slog.Any("error", err),
		)
		s.metrics.IncError("provider")
		return 0, 0, false
	}

	m := stationNamePat.FindStringSubmatch(name)
	if m == nil || m[1] != station.StationName {
		slog.Info("place candidate rejected by name guard",
			slog.String("station", station.StationName),
			slog.String("candidate", name),
		)
		s.metrics.IncError("name_mismatch")
		return 0, 0, false
	}
	return lon, lat, true
}
