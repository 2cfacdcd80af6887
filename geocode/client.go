// Package geocode wraps the geocoding provider: address geocoding for
// community lookups and place search for station lookups. All failures
// come back as one of a small set of classified kinds so callers can
// decide between retry-next-run and memoized-null dispositions.
package geocode

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// PageFetcher is the subset of the scraper fetcher the client needs.
type PageFetcher interface {
	Fetch(url string) ([]byte, error)
}

// ProviderError is a provider-semantic failure: the service answered but
// reported no usable result. Callers memoize it as a null coordinate.
type ProviderError struct {
	Info string
}

func (e ProviderError) Error() string {
	return fmt.Sprintf("provider failure: %s", e.Info)
}

// ContentError is a malformed response body (undecodable JSON or a
// location field that is not "lon,lat"). Left uncached so a transient
// provider glitch is retried on the next run.
type ContentError struct {
	Detail string
}

func (e ContentError) Error() string {
	return fmt.Sprintf("content error: %s", e.Detail)
}

// Client queries the geocoding provider.
type Client struct {
	fetcher        PageFetcher
	key            string
	city           string
	geocodeURL     string
	placeSearchURL string
	typeFilter     string
}

// New builds a provider client. typeFilter restricts place-search results
// to one POI category (metro stations).
func New(fetcher PageFetcher, key, city, geocodeURL, placeSearchURL, typeFilter string) *Client {
	return &Client{
		fetcher:        fetcher,
		key:            key,
		city:           city,
		geocodeURL:     geocodeURL,
		placeSearchURL: placeSearchURL,
		typeFilter:     typeFilter,
	}
}

type candidate struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

type response struct {
	Status   string      `json:"status"`
	Info     string      `json:"info"`
	Geocodes []candidate `json:"geocodes"`
	Pois     []candidate `json:"pois"`
}

// Geocode resolves a "district place" address to coordinates.
func (c *Client) Geocode(district, place string) (lon, lat float64, err error) {
	query := url.Values{}
	query.Set("city", c.city)
	query.Set("key", c.key)
	query.Set("address", district+" "+place)

	resp, err := c.call(c.geocodeURL + "?" + query.Encode())
	if err != nil {
		return 0, 0, err
	}
	if len(resp.Geocodes) == 0 {
		return 0, 0, ProviderError{Info: "no geocode candidates"}
	}
	return splitLocation(resp.Geocodes[0].Location)
}

// PlaceSearch resolves a keyword query (station name) to the first
// candidate's name and coordinates. The caller is responsible for
// verifying the returned name against the query target.
func (c *Client) PlaceSearch(keywords string) (name string, lon, lat float64, err error) {
	query := url.Values{}
	query.Set("city", c.city)
	query.Set("key", c.key)
	query.Set("keywords", keywords)
	if c.typeFilter != "" {
		query.Set("types", c.typeFilter)
	}

	resp, err := c.call(c.placeSearchURL + "?" + query.Encode())
	if err != nil {
		return "", 0, 0, err
	}
	if len(resp.Pois) == 0 {
		return "", 0, 0, ProviderError{Info: "no place candidates"}
	}
	lon, lat, err = splitLocation(resp.Pois[0].Location)
	if err != nil {
		return "", 0, 0, err
	}
	return resp.Pois[0].Name, lon, lat, nil
}

func (c *Client) call(requestURL string) (*response, error) {
	body, err := c.fetcher.Fetch(requestURL)
	if err != nil {
		// Already classified by the fetcher (timeout / connection /
		// http status).
		return nil, err
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, ContentError{Detail: "undecodable JSON"}
	}
	if resp.Status == "0" {
		return nil, ProviderError{Info: resp.Info}
	}
	return &resp, nil
}

func splitLocation(loc string) (lon, lat float64, err error) {
	parts := strings.Split(loc, ",")
	if len(parts) != 2 {
		return 0, 0, ContentError{Detail: "location is not lon,lat"}
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, ContentError{Detail: "longitude not numeric"}
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, ContentError{Detail: "latitude not numeric"}
	}
	return lon, lat, nil
}
