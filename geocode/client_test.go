package geocode

import (
	"errors"
	"strings"
	"testing"
)

type stubFetcher struct {
	body []byte
	err  error
	urls []string
}

func (s *stubFetcher) Fetch(url string) ([]byte, error) {
	s.urls = append(s.urls, url)
	return s.body, s.err
}

func newTestClient(fetcher *stubFetcher) *Client {
	return New(fetcher, "test-key", "guangzhou",
		"https://restapi.example.test/v3/geocode/geo",
		"https://restapi.example.test/v3/place/text",
		"150500")
}

func TestGeocode(t *testing.T) {
	fetcher := &stubFetcher{body: []byte(`{
		"status": "1",
		"info": "OK",
		"geocodes": [{"name": "天河 珠江新城", "location": "113.3238,23.1192"}]
	}`)}
	client := newTestClient(fetcher)

	lon, lat, err := client.Geocode("天河", "珠江新城")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if lon != 113.3238 || lat != 23.1192 {
		t.Fatalf("coords = (%v, %v)", lon, lat)
	}

	if len(fetcher.urls) != 1 {
		t.Fatalf("expected one request, got %d", len(fetcher.urls))
	}
	for _, fragment := range []string{"key=test-key", "city=guangzhou", "address="} {
		if !strings.Contains(fetcher.urls[0], fragment) {
			t.Fatalf("request url %q missing %q", fetcher.urls[0], fragment)
		}
	}
}

func TestGeocodeProviderFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "status zero", body: `{"status": "0", "info": "DAILY_QUERY_OVER_LIMIT"}`},
		{name: "no candidates", body: `{"status": "1", "info": "OK", "geocodes": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(&stubFetcher{body: []byte(tt.body)})
			_, _, err := client.Geocode("天河", "珠江新城")
			var provider ProviderError
			if !errors.As(err, &provider) {
				t.Fatalf("error = %v, want ProviderError", err)
			}
		})
	}
}

func TestGeocodeContentFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "undecodable json", body: `<html>blocked</html>`},
		{name: "malformed location", body: `{"status": "1", "geocodes": [{"location": "nowhere"}]}`},
		{name: "non numeric longitude", body: `{"status": "1", "geocodes": [{"location": "east,23.1"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(&stubFetcher{body: []byte(tt.body)})
			_, _, err := client.Geocode("天河", "珠江新城")
			var content ContentError
			if !errors.As(err, &content) {
				t.Fatalf("error = %v, want ContentError", err)
			}
		})
	}
}

func TestGeocodePropagatesFetchError(t *testing.T) {
	fetchErr := errors.New("boom")
	client := newTestClient(&stubFetcher{err: fetchErr})

	_, _, err := client.Geocode("天河", "珠江新城")
	if !errors.Is(err, fetchErr) {
		t.Fatalf("error = %v, want wrapped fetch error", err)
	}
}

func TestPlaceSearch(t *testing.T) {
	fetcher := &stubFetcher{body: []byte(`{
		"status": "1",
		"info": "OK",
		"pois": [{"name": "珠江新城(地铁站)", "location": "113.3218,23.1189"}]
	}`)}
	client := newTestClient(fetcher)

	name, lon, lat, err := client.PlaceSearch("珠江新城(地铁站)")
	if err != nil {
		t.Fatalf("PlaceSearch: %v", err)
	}
	if name != "珠江新城(地铁站)" {
		t.Fatalf("name = %q", name)
	}
	if lon != 113.3218 || lat != 23.1189 {
		t.Fatalf("coords = (%v, %v)", lon, lat)
	}
	if !strings.Contains(fetcher.urls[0], "types=150500") {
		t.Fatalf("request url %q missing type filter", fetcher.urls[0])
	}
}

func TestPlaceSearchNoCandidates(t *testing.T) {
	client := newTestClient(&stubFetcher{body: []byte(`{"status": "1", "pois": []}`)})

	_, _, _, err := client.PlaceSearch("不存在站")
	var provider ProviderError
	if !errors.As(err, &provider) {
		t.Fatalf("error = %v, want ProviderError", err)
	}
}
