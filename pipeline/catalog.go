package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-rentals/config"
	"github.com/aluiziolira/go-scrape-rentals/models"
	"github.com/aluiziolira/go-scrape-rentals/parser"
	"github.com/aluiziolira/go-scrape-rentals/scraper"
	"github.com/aluiziolira/go-scrape-rentals/store"
)

// CatalogStage drives pagination discovery and bulk-inserts summary
// stubs. The summary table is rebuilt at the start of every run; the
// detail stage owns all later mutations.
type CatalogStage struct {
	cfg     *config.Config
	fetcher PageFetcher
	store   *store.Store
	pacer   *Pacer
	metrics *scraper.Metrics
	seen    *lru.Cache[string, struct{}]
}

// NewCatalogStage wires the catalog stage.
func NewCatalogStage(cfg *config.Config, fetcher PageFetcher, st *store.Store, pacer *Pacer, metrics *scraper.Metrics) (*CatalogStage, error) {
	seen, err := lru.New[string, struct{}](cfg.DedupeMaxSize)
	if err != nil {
		return nil, fmt.Errorf("dedupe cache: %w", err)
	}
	return &CatalogStage{
		cfg:     cfg,
		fetcher: fetcher,
		store:   st,
		pacer:   pacer,
		metrics: metrics,
		seen:    seen,
	}, nil
}

// Run rebuilds the summary table from the paginated catalog. A timed-out
// page is logged and skipped; any other fetch failure on a catalog page
// is structural and aborts the run.
func (c *CatalogStage) Run(ctx context.Context) (*models.CatalogResult, error) {
	result := &models.CatalogResult{StartTime: time.Now()}
	defer func() { result.EndTime = time.Now() }()

	if err := c.store.ResetSummary(ctx); err != nil {
		return result, err
	}

	catalogURL := c.cfg.CatalogURL()
	body, err := c.fetcher.Fetch(catalogURL)
	if err != nil {
		return result, fmt.Errorf("fetch catalog first page: %w", err)
	}
	maxPage, err := parser.MaxPage(body)
	if err != nil {
		return result, fmt.Errorf("determine catalog bound: %w", err)
	}
	slog.Info("catalog bounded", slog.Int("pages", maxPage))

	for page := 1; page <= maxPage; page++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		pageURL := fmt.Sprintf("%spg%drco11/", catalogURL, page)
		slog.Debug("fetching catalog page", slog.Int("page", page), slog.String("url", pageURL))

		body, err := c.fetcher.Fetch(pageURL)
		if err != nil {
			var timeout scraper.ErrTimeout
			if errors.As(err, &timeout) {
				// Retryable on the next run; the fetcher already
				// appended it to the failure log.
				slog.Warn("catalog page timed out, skipped",
					slog.Int("page", page), slog.String("url", pageURL))
				result.PagesFail++
				continue
			}
			// A failing catalog page invalidates the whole catalog
			// shape; no partial-catalog inference.
			return result, fmt.Errorf("fetch catalog page %d: %w", page, err)
		}

		records, err := parser.CatalogRecords(body, c.cfg.Host)
		if err != nil {
			return result, fmt.Errorf("parse catalog page %d: %w", page, err)
		}

		if err := c.insertPage(ctx, records, result); err != nil {
			return result, err
		}
		result.Pages++

		slog.Info("catalog page committed",
			slog.Int("page", page),
			slog.Int("attempted", result.Attempted),
			slog.Int("inserted", result.Inserted),
		)
		c.pacer.Uniform(c.cfg.PageDelayMin, c.cfg.PageDelayMax)
	}

	slog.Info("catalog stage complete",
		slog.Int("pages", result.Pages),
		slog.Int("pages_failed", result.PagesFail),
		slog.Int("attempted", result.Attempted),
		slog.Int("inserted", result.Inserted),
		slog.Int("duplicates", result.Duplicates),
	)
	return result, nil
}

// insertPage upserts one page of stubs inside a single transaction: one
// commit per page is the checkpoint cadence. A failing single insert is
// logged and counted, never aborts the batch.
func (c *CatalogStage) insertPage(ctx context.Context, records []*models.SummaryRecord, result *models.CatalogResult) error {
	tx, err := c.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, rec := range records {
		result.Attempted++
		c.metrics.IncItems()

		if _, dup := c.seen.Get(rec.Link); dup {
			result.Duplicates++
			continue
		}
		c.seen.Add(rec.Link, struct{}{})

		inserted, err := c.store.InsertSummary(ctx, tx, rec)
		if err != nil {
			slog.Error("summary insert failed",
				slog.String("title", rec.Title), slog.Any("error", err))
			c.metrics.IncError("insert")
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Duplicates++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog page: %w", err)
	}
	return nil
}
