package pipeline

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/aluiziolira/go-scrape-rentals/models"
	"github.com/aluiziolira/go-scrape-rentals/scraper"
)

type stubSource struct {
	stations []*models.StationRecord
	err      error
}

func (s *stubSource) Stations(context.Context) ([]*models.StationRecord, error) {
	return s.stations, s.err
}

func TestStationStageRun(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	st := testStore(t)

	source := &stubSource{stations: []*models.StationRecord{
		{LineCode: "01", LineName: "一号线", LineColor: "rgb(247,203,0)", StationCode: "0101", StationName: "西塱"},
		{LineCode: "01", LineName: "一号线", LineColor: "rgb(247,203,0)", StationCode: "0102", StationName: "坑口"},
		{LineCode: "THZ1", LineName: "有轨电车", LineColor: "rgb(0,0,0)", StationCode: "T01", StationName: "广州塔"},
	}}

	fetcher := &scriptedFetcher{}
	// First candidate matches the station name; accepted.
	fetcher.on(url.QueryEscape("西塱"),
		`{"status": "1", "pois": [{"name": "西塱(地铁站)", "location": "113.21,23.05"}]}`, nil)
	// First candidate is a different place; the name guard rejects it.
	fetcher.on(url.QueryEscape("坑口"),
		`{"status": "1", "pois": [{"name": "坑口公园", "location": "113.22,23.06"}]}`, nil)

	stage := NewStationStage(cfg, source, testGeoClient(fetcher), st, testPacer(), scraper.NewMetrics("test"))
	result, err := stage.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Scraped != 3 {
		t.Fatalf("scraped = %d, want 3", result.Scraped)
	}
	if result.Inserted != 3 {
		t.Fatalf("inserted = %d, want 3", result.Inserted)
	}
	if result.Resolved != 1 {
		t.Fatalf("resolved = %d, want 1", result.Resolved)
	}
	if result.Nulled != 1 {
		t.Fatalf("nulled = %d, want 1", result.Nulled)
	}

	// The tram line is pruned before geocoding.
	if n := fetcher.callsMatching(url.QueryEscape("广州塔")); n != 0 {
		t.Fatalf("excluded line geocoded %d times", n)
	}

	missing, err := st.StationsMissingGeo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 1 || missing[0].StationName != "坑口" {
		t.Fatalf("missing after run = %+v", missing)
	}
}

func TestStationStageProviderFailureMemoizedNull(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	st := testStore(t)

	source := &stubSource{stations: []*models.StationRecord{
		{LineCode: "01", LineName: "一号线", LineColor: "rgb(247,203,0)", StationCode: "0101", StationName: "西塱"},
	}}

	fetcher := &scriptedFetcher{}
	fetcher.on(url.QueryEscape("西塱"), `{"status": "1", "pois": []}`, nil)

	stage := NewStationStage(cfg, source, testGeoClient(fetcher), st, testPacer(), scraper.NewMetrics("test"))
	result, err := stage.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Nulled != 1 || result.Resolved != 0 {
		t.Fatalf("result = %+v", result)
	}
}

func TestStationStageAbortsWhenSourceFails(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	st := testStore(t)

	source := &stubSource{err: errors.New("browser crashed")}
	stage := NewStationStage(cfg, source, testGeoClient(&scriptedFetcher{}), st, testPacer(), scraper.NewMetrics("test"))

	if _, err := stage.Run(ctx); err == nil {
		t.Fatalf("expected error when station source fails")
	}
}
