package store

import (
	"context"
	"fmt"

	"github.com/aluiziolira/go-scrape-rentals/models"
)

// ResetStations drops and recreates the station reference table; the
// operator's table is small and re-scraped wholesale.
func (s *Store) ResetStations(ctx context.Context) error {
	drop := fmt.Sprintf("DROP TABLE IF EXISTS %s", s.stationTable())
	if _, err := s.DB.ExecContext(ctx, drop); err != nil {
		return fmt.Errorf("drop stations: %w", err)
	}

	create := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			line_code    TEXT NOT NULL,
			line_name    TEXT NOT NULL,
			line_color   TEXT NOT NULL,
			station_code TEXT NOT NULL,
			station_name TEXT NOT NULL,
			longitude    NUMERIC DEFAULT NULL,
			latitude     NUMERIC DEFAULT NULL,
			PRIMARY KEY (line_code, station_code)
		)`, s.stationTable())
	if _, err := s.DB.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create stations: %w", err)
	}
	return nil
}

// InsertStations bulk-inserts station rows with insert-or-ignore on the
// (line, station) key, returning how many were actually inserted.
func (s *Store) InsertStations(ctx context.Context, stations []*models.StationRecord) (int, error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT OR IGNORE INTO %s
		(line_code, line_name, line_color, station_code, station_name)
		VALUES (?, ?, ?, ?, ?)`, s.stationTable())

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare station insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, st := range stations {
		res, err := stmt.ExecContext(ctx,
			st.LineCode, st.LineName, st.LineColor, st.StationCode, st.StationName)
		if err != nil {
			return 0, fmt.Errorf("insert station %s/%s: %w", st.LineCode, st.StationCode, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit stations: %w", err)
	}
	return inserted, nil
}

// DeleteLinePrefix drops lines whose code starts with prefix (tourist
// lines needing a separate geocoding scheme).
func (s *Store) DeleteLinePrefix(ctx context.Context, prefix string) error {
	if prefix == "" {
		return nil
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE line_code LIKE ?", s.stationTable())
	if _, err := s.DB.ExecContext(ctx, query, prefix+"%"); err != nil {
		return fmt.Errorf("delete line prefix %q: %w", prefix, err)
	}
	return nil
}

// StationsMissingGeo lists stations without resolved coordinates.
func (s *Store) StationsMissingGeo(ctx context.Context) ([]*models.StationRecord, error) {
	query := fmt.Sprintf(`
		SELECT line_code, line_name, line_color, station_code, station_name,
		       longitude, latitude
		FROM %s
		WHERE longitude IS NULL OR latitude IS NULL
		ORDER BY line_code, station_code`, s.stationTable())

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query stations missing geo: %w", err)
	}
	defer rows.Close()

	var result []*models.StationRecord
	for rows.Next() {
		var st models.StationRecord
		if err := rows.Scan(
			&st.LineCode, &st.LineName, &st.LineColor, &st.StationCode,
			&st.StationName, &st.Longitude, &st.Latitude,
		); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		result = append(result, &st)
	}
	return result, rows.Err()
}

// UpdateStationGeo stores the geocoding outcome for one station; nil
// coordinates memoize a failed or unverifiable lookup.
func (s *Store) UpdateStationGeo(ctx context.Context, q DBTX, lineCode, stationCode string, lon, lat *float64) error {
	query := fmt.Sprintf(
		"UPDATE %s SET longitude = ?, latitude = ? WHERE line_code = ? AND station_code = ?",
		s.stationTable())
	if _, err := q.ExecContext(ctx, query, lon, lat, lineCode, stationCode); err != nil {
		return fmt.Errorf("update station geo %s/%s: %w", lineCode, stationCode, err)
	}
	return nil
}
