package store

import (
	"context"
	"fmt"

	"github.com/aluiziolira/go-scrape-rentals/models"
)

// EnsureGeo creates the geo-cache table if missing. Rows are additive
// across runs and never deleted.
func (s *Store) EnsureGeo(ctx context.Context) error {
	create := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			district  TEXT NOT NULL,
			community TEXT NOT NULL,
			longitude NUMERIC DEFAULT NULL,
			latitude  NUMERIC DEFAULT NULL,
			UNIQUE (district, community)
		)`, s.geoTable())
	if _, err := s.DB.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create geo cache: %w", err)
	}
	return nil
}

// GeoExists reports whether the pair already has a cache row. Null
// coordinates count: a memoized failure must not be retried every run.
func (s *Store) GeoExists(ctx context.Context, district, community string) (bool, error) {
	var n int
	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE district = ? AND community = ?", s.geoTable())
	if err := s.DB.QueryRowContext(ctx, query, district, community).Scan(&n); err != nil {
		return false, fmt.Errorf("geo exists: %w", err)
	}
	return n > 0, nil
}

// InsertGeo memoizes one lookup result (coordinates or a confirmed null)
// with insert-or-ignore semantics on the pair. Reports whether a row was
// actually inserted.
func (s *Store) InsertGeo(ctx context.Context, q DBTX, rec *models.GeoRecord) (bool, error) {
	query := fmt.Sprintf(`
		INSERT OR IGNORE INTO %s (district, community, longitude, latitude)
		VALUES (?, ?, ?, ?)`, s.geoTable())

	res, err := q.ExecContext(ctx, query,
		rec.District, rec.Community, rec.Longitude, rec.Latitude)
	if err != nil {
		return false, fmt.Errorf("insert geo %s/%s: %w", rec.District, rec.Community, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert geo rows affected: %w", err)
	}
	return n > 0, nil
}

// GetGeo fetches one cache row; nil when absent.
func (s *Store) GetGeo(ctx context.Context, district, community string) (*models.GeoRecord, error) {
	query := fmt.Sprintf(
		"SELECT district, community, longitude, latitude FROM %s WHERE district = ? AND community = ?",
		s.geoTable())

	var rec models.GeoRecord
	err := s.DB.QueryRowContext(ctx, query, district, community).Scan(
		&rec.District, &rec.Community, &rec.Longitude, &rec.Latitude)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get geo: %w", err)
	}
	return &rec, nil
}
