package store

import (
	"context"
	"fmt"

	"github.com/aluiziolira/go-scrape-rentals/models"
)

// EnsureDetail creates the detail table if missing. Detail rows are
// additive across runs and never dropped by the pipeline.
func (s *Store) EnsureDetail(ctx context.Context) error {
	create := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id           TEXT NOT NULL PRIMARY KEY,
			info_date    TEXT,
			district     TEXT NOT NULL,
			neighborhood TEXT NOT NULL,
			community    TEXT NOT NULL,
			rent_type    TEXT,
			condition    TEXT,
			area         NUMERIC NOT NULL,
			price        NUMERIC NOT NULL,
			unit         TEXT NOT NULL,
			house_floor  TEXT,
			build_floor  INTEGER,
			elevator     TEXT
		)`, s.detailTable())
	if _, err := s.DB.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create detail: %w", err)
	}
	return nil
}

// InsertDetail stores one enriched record with insert-or-ignore semantics
// on the external listing id: re-processing a stub that maps to an
// already-stored id is a no-op, not an error. Reports whether a row was
// actually inserted.
func (s *Store) InsertDetail(ctx context.Context, q DBTX, rec *models.DetailRecord) (bool, error) {
	query := fmt.Sprintf(`
		INSERT OR IGNORE INTO %s
		(id, info_date, district, neighborhood, community, rent_type, condition,
		 area, price, unit, house_floor, build_floor, elevator)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.detailTable())

	res, err := q.ExecContext(ctx, query,
		rec.HouseID, rec.InfoDate, rec.District, rec.Neighborhood, rec.Community,
		rec.RentType, rec.Condition, rec.Area, rec.Price, rec.Unit,
		rec.HouseFloor, rec.BuildFloor, rec.Elevator,
	)
	if err != nil {
		return false, fmt.Errorf("insert detail %s: %w", rec.HouseID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert detail rows affected: %w", err)
	}
	return n > 0, nil
}

// Place is one distinct (district, place-name) pair needing geocoding.
type Place struct {
	District  string
	Community string
}

// DistinctCommunities lists every distinct (district, community) pair
// appearing in the detail table.
func (s *Store) DistinctCommunities(ctx context.Context) ([]Place, error) {
	query := fmt.Sprintf(
		"SELECT DISTINCT district, community FROM %s ORDER BY district, community",
		s.detailTable())

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query distinct communities: %w", err)
	}
	defer rows.Close()

	var result []Place
	for rows.Next() {
		var p Place
		if err := rows.Scan(&p.District, &p.Community); err != nil {
			return nil, fmt.Errorf("scan community: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// CountDetails reports the number of detail rows; used in tests and
// progress logs.
func (s *Store) CountDetails(ctx context.Context) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.detailTable())
	if err := s.DB.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count details: %w", err)
	}
	return n, nil
}
