package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-rentals/config"
	"github.com/aluiziolira/go-scrape-rentals/models"
	"github.com/aluiziolira/go-scrape-rentals/parser"
	"github.com/aluiziolira/go-scrape-rentals/scraper"
	"github.com/aluiziolira/go-scrape-rentals/store"
)

// DetailStage enriches pending summary stubs. Per stub the outcome is one
// of exactly three transitions: processed (detail row written or listing
// withdrawn), deleted (permanently invalid content), or left pending
// (connection failure, retried on the next run).
type DetailStage struct {
	cfg     *config.Config
	fetcher PageFetcher
	store   *store.Store
	pacer   *Pacer
	metrics *scraper.Metrics
}

// NewDetailStage wires the detail stage.
func NewDetailStage(cfg *config.Config, fetcher PageFetcher, st *store.Store, pacer *Pacer, metrics *scraper.Metrics) *DetailStage {
	return &DetailStage{
		cfg:     cfg,
		fetcher: fetcher,
		store:   st,
		pacer:   pacer,
		metrics: metrics,
	}
}

// Run processes every pending stub sequentially, committing every
// CommitEvery processed stubs. Every insert is insert-or-ignore and every
// status flip tolerates replay, so a crash between commits re-processes
// at most one batch.
func (d *DetailStage) Run(ctx context.Context) (*models.DetailResult, error) {
	result := &models.DetailResult{StartTime: time.Now()}
	defer func() { result.EndTime = time.Now() }()

	if err := d.store.EnsureDetail(ctx); err != nil {
		return result, err
	}

	stubs, err := d.store.PendingSummaries(ctx)
	if err != nil {
		return result, err
	}
	slog.Info("detail stage starting", slog.Int("pending", len(stubs)))

	tx, err := d.store.Begin(ctx)
	if err != nil {
		return result, err
	}
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	commit := func() error {
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit detail batch: %w", err)
		}
		tx, err = d.store.Begin(ctx)
		return err
	}

	inBatch := 0
	for _, stub := range stubs {
		if err := ctx.Err(); err != nil {
			if cerr := tx.Commit(); cerr != nil {
				return result, cerr
			}
			tx = nil
			return result, err
		}

		result.Total++
		d.metrics.IncItems()

		outcome, err := d.processStub(ctx, tx, stub, result)
		if err != nil {
			return result, err
		}

		switch outcome {
		case outcomeDeleted:
			// Invalid stubs commit immediately; deletion must survive
			// a crash before the next batch boundary.
			if err := commit(); err != nil {
				return result, err
			}
			inBatch = 0
		case outcomeProcessed:
			inBatch++
			if inBatch%d.cfg.CommitEvery == 0 {
				if err := commit(); err != nil {
					return result, err
				}
				slog.Info("detail progress",
					slog.Int("processed", result.Processed),
					slog.Int("total", result.Total),
					slog.Int("inserted", result.Inserted),
				)
			}
		case outcomeRetry:
			// Status untouched; stub stays pending for the next run.
		}

		d.pacer.Normal(d.cfg.RecordDelayMean, d.cfg.RecordDelayStd)
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("commit final detail batch: %w", err)
	}
	tx = nil

	slog.Info("detail stage complete",
		slog.Int("total", result.Total),
		slog.Int("processed", result.Processed),
		slog.Int("inserted", result.Inserted),
		slog.Int("deleted", result.Deleted),
		slog.Int("retried", result.Retried),
	)
	return result, nil
}

type stubOutcome int

const (
	outcomeProcessed stubOutcome = iota
	outcomeDeleted
	outcomeRetry
)

// processStub runs the per-stub state machine. Only storage errors are
// returned; every fetch/parse failure is classified and fully handled
// here.
func (d *DetailStage) processStub(ctx context.Context, tx *sql.Tx, stub *models.SummaryRecord, result *models.DetailResult) (stubOutcome, error) {
	// Local pre-parse first: a malformed title is invalid content and
	// must not cost a network call.
	title, err := parser.Title(stub.Title)
	if err != nil {
		return d.deleteStub(ctx, tx, stub, parser.ReasonBadTitle, result)
	}

	// Third-party listings live under a different path prefix; also
	// decidable without a fetch.
	if !parser.CanonicalListing(stub.Link, d.cfg.ListingPathPrefix) {
		return d.deleteStub(ctx, tx, stub, parser.ReasonThirdParty, result)
	}

	body, err := d.fetcher.Fetch(stub.Link)
	if err != nil {
		if !scraper.IsTransient(err) {
			// The fetcher returns only classified kinds; anything else
			// is a wiring fault, not a per-listing failure.
			return outcomeRetry, fmt.Errorf("fetch %s: %w", stub.Link, err)
		}
		// Timeout and HTTP failures on a single listing are connection
		// failures: leave the stub pending for the next run.
		slog.Warn("detail fetch failed, will retry next run",
			slog.Int64("id", stub.ID),
			slog.String("link", stub.Link),
			slog.Any("error", err),
		)
		result.Retried++
		return outcomeRetry, nil
	}

	fields, err := parser.Detail(body, d.cfg.CityCode)
	if err != nil {
		var invalid parser.InvalidError
		if errors.As(err, &invalid) {
			return d.deleteStub(ctx, tx, stub, invalid.Reason, result)
		}
		// Malformed detail markup is a content problem, not a transient
		// one: excluded like an invalid record, but logged under its
		// own category so markup drift stays visible.
		slog.Error("detail parse failed",
			slog.Int64("id", stub.ID),
			slog.String("link", stub.Link),
			slog.Any("error", err),
		)
		return d.deleteStub(ctx, tx, stub, "parse_error", result)
	}

	if fields.Withdrawn {
		return d.processWithdrawn(ctx, tx, stub, title, fields, result)
	}

	rec := detailRecord(stub, title, fields)
	inserted, err := d.store.InsertDetail(ctx, tx, rec)
	if err != nil {
		return outcomeProcessed, err
	}
	if inserted {
		result.Inserted++
	}
	if err := d.store.MarkProcessed(ctx, tx, stub.ID, fields.HouseID); err != nil {
		return outcomeProcessed, err
	}
	result.Processed++
	return outcomeProcessed, nil
}

// processWithdrawn handles listings the source took offline: a
// placeholder detail row keyed by the listing id when it is still
// resolvable, otherwise just the status flip.
func (d *DetailStage) processWithdrawn(ctx context.Context, tx *sql.Tx, stub *models.SummaryRecord, title parser.TitleInfo, fields *parser.DetailFields, result *models.DetailResult) (stubOutcome, error) {
	if fields.HouseID != "" {
		inserted, err := d.store.InsertDetail(ctx, tx, detailRecord(stub, title, fields))
		if err != nil {
			return outcomeProcessed, err
		}
		if inserted {
			result.Inserted++
		}
	} else {
		slog.Warn("withdrawn listing without resolvable id",
			slog.Int64("id", stub.ID), slog.String("link", stub.Link))
	}

	if err := d.store.MarkProcessed(ctx, tx, stub.ID, fields.HouseID); err != nil {
		return outcomeProcessed, err
	}
	result.Processed++
	return outcomeProcessed, nil
}

func (d *DetailStage) deleteStub(ctx context.Context, tx *sql.Tx, stub *models.SummaryRecord, reason string, result *models.DetailResult) (stubOutcome, error) {
	slog.Info("invalid record deleted",
		slog.Int64("id", stub.ID),
		slog.String("title", stub.Title),
		slog.String("reason", reason),
	)
	d.metrics.IncError(reason)
	if err := d.store.DeleteSummary(ctx, tx, stub.ID); err != nil {
		return outcomeDeleted, err
	}
	result.Deleted++
	return outcomeDeleted, nil
}

func detailRecord(stub *models.SummaryRecord, title parser.TitleInfo, fields *parser.DetailFields) *models.DetailRecord {
	rec := &models.DetailRecord{
		HouseID:      fields.HouseID,
		District:     stub.District,
		Neighborhood: stub.Neighborhood,
		Community:    title.Community,
		RentType:     title.RentType,
		Condition:    title.Condition,
		Area:         stub.Area,
		Price:        stub.Price,
		Unit:         stub.Unit,
	}
	if !fields.Withdrawn {
		infoDate := fields.InfoDate
		houseFloor := fields.HouseFloor
		buildFloor := fields.BuildFloor
		elevator := fields.Elevator
		rec.InfoDate = &infoDate
		rec.HouseFloor = &houseFloor
		rec.BuildFloor = &buildFloor
		rec.Elevator = &elevator
	}
	return rec
}
