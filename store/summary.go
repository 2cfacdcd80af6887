package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-rentals/models"
)

// ResetSummary drops and recreates the summary table. The catalog is
// fully rebuilt at the start of every catalog run.
func (s *Store) ResetSummary(ctx context.Context) error {
	drop := fmt.Sprintf("DROP TABLE IF EXISTS %s", s.summaryTable())
	if _, err := s.DB.ExecContext(ctx, drop); err != nil {
		return fmt.Errorf("drop summary: %w", err)
	}

	create := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			title        TEXT,
			link         TEXT NOT NULL UNIQUE,
			district     TEXT NOT NULL,
			neighborhood TEXT NOT NULL,
			area         NUMERIC NOT NULL,
			price        NUMERIC NOT NULL,
			unit         TEXT NOT NULL,
			status       INTEGER NOT NULL DEFAULT 0,
			houseid      TEXT DEFAULT NULL
		)`, s.summaryTable())
	if _, err := s.DB.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create summary: %w", err)
	}
	return nil
}

// InsertSummary adds one catalog stub with insert-or-ignore semantics on
// the unique link. It reports whether a row was actually inserted.
func (s *Store) InsertSummary(ctx context.Context, q DBTX, rec *models.SummaryRecord) (bool, error) {
	query := fmt.Sprintf(`
		INSERT OR IGNORE INTO %s
		(title, link, district, neighborhood, area, price, unit)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, s.summaryTable())

	res, err := q.ExecContext(ctx, query,
		rec.Title, rec.Link, rec.District, rec.Neighborhood,
		rec.Area, rec.Price, rec.Unit,
	)
	if err != nil {
		return false, fmt.Errorf("insert summary %q: %w", rec.Title, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert summary rows affected: %w", err)
	}
	return n > 0, nil
}

// PendingSummaries returns every stub still awaiting detail processing,
// in insertion order.
func (s *Store) PendingSummaries(ctx context.Context) ([]*models.SummaryRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, title, link, district, neighborhood, area, price, unit, status,
		       COALESCE(houseid, '')
		FROM %s WHERE status = ? ORDER BY id`, s.summaryTable())

	rows, err := s.DB.QueryContext(ctx, query, models.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("query pending summaries: %w", err)
	}
	defer rows.Close()

	var result []*models.SummaryRecord
	for rows.Next() {
		var rec models.SummaryRecord
		if err := rows.Scan(
			&rec.ID, &rec.Title, &rec.Link, &rec.District, &rec.Neighborhood,
			&rec.Area, &rec.Price, &rec.Unit, &rec.Status, &rec.HouseID,
		); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		result = append(result, &rec)
	}
	return result, rows.Err()
}

// MarkProcessed flips a stub to processed and records its external id.
// An empty houseID stores NULL (withdrawn listing with no resolvable id).
func (s *Store) MarkProcessed(ctx context.Context, q DBTX, id int64, houseID string) error {
	query := fmt.Sprintf("UPDATE %s SET status = ?, houseid = ? WHERE id = ?", s.summaryTable())
	var hid any
	if houseID != "" {
		hid = houseID
	}
	if _, err := q.ExecContext(ctx, query, models.StatusProcessed, hid, id); err != nil {
		return fmt.Errorf("mark summary %d processed: %w", id, err)
	}
	return nil
}

// DeleteSummary removes a permanently invalid stub.
func (s *Store) DeleteSummary(ctx context.Context, q DBTX, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.summaryTable())
	if _, err := q.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete summary %d: %w", id, err)
	}
	return nil
}

// CountSummaries reports the total number of stubs; used for progress
// logging and in tests.
func (s *Store) CountSummaries(ctx context.Context) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.summaryTable())
	if err := s.DB.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count summaries: %w", err)
	}
	return n, nil
}

// SummaryByLink fetches one stub by its unique link; nil when absent.
func (s *Store) SummaryByLink(ctx context.Context, link string) (*models.SummaryRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, title, link, district, neighborhood, area, price, unit, status,
		       COALESCE(houseid, '')
		FROM %s WHERE link = ?`, s.summaryTable())

	var rec models.SummaryRecord
	err := s.DB.QueryRowContext(ctx, query, link).Scan(
		&rec.ID, &rec.Title, &rec.Link, &rec.District, &rec.Neighborhood,
		&rec.Area, &rec.Price, &rec.Unit, &rec.Status, &rec.HouseID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("summary by link: %w", err)
	}
	return &rec, nil
}
