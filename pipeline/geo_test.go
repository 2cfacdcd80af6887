package pipeline

import (
	"context"
	"net/url"
	"testing"

	"github.com/aluiziolira/go-scrape-rentals/geocode"
	"github.com/aluiziolira/go-scrape-rentals/models"
	"github.com/aluiziolira/go-scrape-rentals/scraper"
	"github.com/aluiziolira/go-scrape-rentals/store"
)

func seedDetail(t *testing.T, st *store.Store, id, district, community string) {
	t.Helper()
	rec := &models.DetailRecord{
		HouseID:      id,
		District:     district,
		Neighborhood: "n",
		Community:    community,
		Area:         50,
		Price:        2000,
		Unit:         "元/月",
	}
	if _, err := st.InsertDetail(context.Background(), st.DB, rec); err != nil {
		t.Fatal(err)
	}
}

func testGeoClient(fetcher *scriptedFetcher) *geocode.Client {
	return geocode.New(fetcher, "test-key", "guangzhou",
		"https://restapi.example.test/v3/geocode/geo",
		"https://restapi.example.test/v3/place/text",
		"150500")
}

func TestGeoStageRun(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	st := testStore(t)
	if err := st.EnsureDetail(ctx); err != nil {
		t.Fatal(err)
	}
	if err := st.EnsureGeo(ctx); err != nil {
		t.Fatal(err)
	}

	seedDetail(t, st, "1", "天河", "甲小区")
	seedDetail(t, st, "2", "天河", "乙小区")
	seedDetail(t, st, "3", "越秀", "丙小区")
	seedDetail(t, st, "4", "海珠", "丁小区")

	// 甲小区 was memoized as unresolvable on an earlier run.
	if _, err := st.InsertGeo(ctx, st.DB, &models.GeoRecord{District: "天河", Community: "甲小区"}); err != nil {
		t.Fatal(err)
	}

	fetcher := &scriptedFetcher{}
	fetcher.on(url.QueryEscape("乙小区"),
		`{"status": "1", "geocodes": [{"location": "113.32,23.11"}]}`, nil)
	fetcher.on(url.QueryEscape("丙小区"),
		`{"status": "1", "geocodes": []}`, nil)
	fetcher.on(url.QueryEscape("丁小区"), "",
		scraper.ErrTimeout{Err: context.DeadlineExceeded})

	stage := NewGeoStage(cfg, testGeoClient(fetcher), st, testPacer(), scraper.NewMetrics("test"))
	result, err := stage.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Total != 4 {
		t.Fatalf("total = %d, want 4", result.Total)
	}
	if result.Cached != 1 {
		t.Fatalf("cached = %d, want 1", result.Cached)
	}
	if result.Resolved != 1 {
		t.Fatalf("resolved = %d, want 1", result.Resolved)
	}
	if result.Nulled != 1 {
		t.Fatalf("nulled = %d, want 1", result.Nulled)
	}
	if result.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", result.Skipped)
	}

	// The memoized pair never produced an outbound call.
	if n := fetcher.callsMatching(url.QueryEscape("甲小区")); n != 0 {
		t.Fatalf("cached pair looked up %d times", n)
	}

	resolved, err := st.GetGeo(ctx, "天河", "乙小区")
	if err != nil {
		t.Fatal(err)
	}
	if resolved == nil || resolved.Longitude == nil || *resolved.Longitude != 113.32 {
		t.Fatalf("resolved row = %+v", resolved)
	}

	nulled, err := st.GetGeo(ctx, "越秀", "丙小区")
	if err != nil {
		t.Fatal(err)
	}
	if nulled == nil || nulled.Longitude != nil {
		t.Fatalf("nulled row = %+v", nulled)
	}

	// The transient failure left no row, so the next run retries it.
	skipped, err := st.GetGeo(ctx, "海珠", "丁小区")
	if err != nil {
		t.Fatal(err)
	}
	if skipped != nil {
		t.Fatalf("transient failure was memoized: %+v", skipped)
	}
}

func TestGeoStageSecondRunAllCached(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	st := testStore(t)
	if err := st.EnsureDetail(ctx); err != nil {
		t.Fatal(err)
	}
	if err := st.EnsureGeo(ctx); err != nil {
		t.Fatal(err)
	}

	seedDetail(t, st, "1", "天河", "乙小区")
	seedDetail(t, st, "2", "越秀", "丙小区")

	fetcher := &scriptedFetcher{}
	fetcher.on(url.QueryEscape("乙小区"),
		`{"status": "1", "geocodes": [{"location": "113.32,23.11"}]}`, nil)
	fetcher.on(url.QueryEscape("丙小区"),
		`{"status": "0", "info": "DAILY_QUERY_OVER_LIMIT"}`, nil)

	stage := NewGeoStage(cfg, testGeoClient(fetcher), st, testPacer(), scraper.NewMetrics("test"))
	if _, err := stage.Run(ctx); err != nil {
		t.Fatal(err)
	}

	// Second run: both pairs memoized (one with coordinates, one null),
	// zero outbound lookups.
	quiet := &scriptedFetcher{}
	stage = NewGeoStage(cfg, testGeoClient(quiet), st, testPacer(), scraper.NewMetrics("test"))
	result, err := stage.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Cached != 2 {
		t.Fatalf("cached = %d, want 2", result.Cached)
	}
	if len(quiet.calls) != 0 {
		t.Fatalf("second run made %d outbound calls", len(quiet.calls))
	}
}
