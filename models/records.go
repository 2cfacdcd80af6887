// Package models defines the records moved through the pipeline stages.
package models

import "time"

// Summary status values. A stub starts pending and is either flipped to
// processed by the detail stage or deleted when the listing proves invalid.
const (
	StatusPending   = 0
	StatusProcessed = 1
)

// SummaryRecord is a lightweight catalog-discovered stub awaiting enrichment.
type SummaryRecord struct {
	ID           int64
	Title        string
	Link         string
	District     string
	Neighborhood string
	Area         float64
	Price        float64
	Unit         string
	Status       int
	HouseID      string // source listing id, empty until resolved
}

// DetailRecord is the fully enriched, immutable fact about one listing,
// keyed by the source site's own id. Enrichment fields are nil for
// withdrawn listings stored as placeholders.
type DetailRecord struct {
	HouseID      string
	InfoDate     *string
	District     string
	Neighborhood string
	Community    string
	RentType     string
	Condition    string
	Area         float64
	Price        float64
	Unit         string
	HouseFloor   *string
	BuildFloor   *int
	Elevator     *string
}

// GeoRecord memoizes one (district, place-name) geocoding lookup.
// Nil coordinates record a confirmed failure so it is not retried.
type GeoRecord struct {
	District  string
	Community string
	Longitude *float64
	Latitude  *float64
}

// StationRecord is one metro station from the operator's reference table.
type StationRecord struct {
	LineCode    string
	LineName    string
	LineColor   string
	StationCode string
	StationName string
	Longitude   *float64
	Latitude    *float64
}

// CatalogResult summarizes one catalog stage run.
type CatalogResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Pages      int
	PagesFail  int
	Attempted  int
	Inserted   int
	Duplicates int
}

// DetailResult summarizes one detail stage run.
type DetailResult struct {
	StartTime time.Time
	EndTime   time.Time
	Total     int
	Processed int
	Inserted  int
	Deleted   int
	Retried   int
}

// GeoResult summarizes one geocoding stage run.
type GeoResult struct {
	StartTime time.Time
	EndTime   time.Time
	Total     int
	Cached    int
	Resolved  int
	Nulled    int
	Skipped   int
}

// StationResult summarizes one station reference run.
type StationResult struct {
	StartTime time.Time
	EndTime   time.Time
	Scraped   int
	Inserted  int
	Resolved  int
	Nulled    int
}
