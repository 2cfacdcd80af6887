// Package config holds process-scoped configuration for every pipeline stage.
package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the configuration shared by all stage entry points.
type Config struct {
	// Target site.
	City              string // city identifier, also the summary table name
	CityCode          string // listing id prefix for the target city
	Host              string // scheme://host of the listing site
	CatalogPath       string // path of the paginated catalog under Host
	ListingPathPrefix string // canonical path prefix of first-party listings

	// Geocoding provider.
	GeoKey          string
	GeocodeURL      string
	PlaceSearchURL  string
	PlaceTypeFilter string // provider result-type filter for station lookups

	// Station reference table.
	MetroURL           string
	MetroExcludePrefix string // line codes to drop after the scrape
	StationSuffix      string // appended to station names in provider queries

	// Persistence and audit logs.
	DBPath     string
	AgentsFile string // optional newline-separated user-agent pool
	FailLogDir string

	// Pacing and cadence.
	Timeout         time.Duration
	CommitEvery     int
	PageDelayMin    time.Duration
	PageDelayMax    time.Duration
	RecordDelayMean time.Duration
	RecordDelayStd  time.Duration
	GeoDelayMax     time.Duration

	DedupeMaxSize int
	MetricsAddr   string
	Verbose       bool
}

// DefaultConfig returns the defaults for the reference target.
func DefaultConfig() *Config {
	return &Config{
		City:              "guangzhou",
		CityCode:          "GZ",
		Host:              "https://gz.lianjia.com",
		CatalogPath:       "/zufang/",
		ListingPathPrefix: "/zufang/",

		GeocodeURL:      "https://restapi.amap.com/v3/geocode/geo",
		PlaceSearchURL:  "https://restapi.amap.com/v3/place/text",
		PlaceTypeFilter: "150500",

		MetroURL:           "http://cs.gzmtr.com/ckfw/",
		MetroExcludePrefix: "THZ",
		StationSuffix:      "(地铁站)",

		DBPath:     "rentals.db",
		AgentsFile: "",
		FailLogDir: "logs",

		Timeout:         10 * time.Second,
		CommitEvery:     20,
		PageDelayMin:    1 * time.Second,
		PageDelayMax:    3 * time.Second,
		RecordDelayMean: 2 * time.Second,
		RecordDelayStd:  500 * time.Millisecond,
		GeoDelayMax:     2 * time.Second,

		DedupeMaxSize: 10000,
		MetricsAddr:   "",
		Verbose:       false,
	}
}

// Load reads the .env file, if present, and returns a Config with
// environment overrides applied on top of the defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using system env vars")
	}

	cfg := DefaultConfig()
	cfg.City = getEnv("RENT_CITY", cfg.City)
	cfg.CityCode = getEnv("RENT_CITY_CODE", cfg.CityCode)
	cfg.Host = getEnv("RENT_HOST", cfg.Host)
	cfg.CatalogPath = getEnv("RENT_CATALOG_PATH", cfg.CatalogPath)
	cfg.ListingPathPrefix = getEnv("RENT_LISTING_PREFIX", cfg.ListingPathPrefix)

	cfg.GeoKey = getEnv("GEO_API_KEY", cfg.GeoKey)
	cfg.GeocodeURL = getEnv("GEO_GEOCODE_URL", cfg.GeocodeURL)
	cfg.PlaceSearchURL = getEnv("GEO_PLACE_URL", cfg.PlaceSearchURL)
	cfg.PlaceTypeFilter = getEnv("GEO_PLACE_TYPES", cfg.PlaceTypeFilter)

	cfg.MetroURL = getEnv("METRO_URL", cfg.MetroURL)
	cfg.MetroExcludePrefix = getEnv("METRO_EXCLUDE_PREFIX", cfg.MetroExcludePrefix)

	cfg.DBPath = getEnv("RENT_DB_PATH", cfg.DBPath)
	cfg.AgentsFile = getEnv("RENT_AGENTS_FILE", cfg.AgentsFile)
	cfg.FailLogDir = getEnv("RENT_FAILLOG_DIR", cfg.FailLogDir)

	cfg.Timeout = time.Duration(getEnvInt("RENT_TIMEOUT_MS", int(cfg.Timeout/time.Millisecond))) * time.Millisecond
	cfg.CommitEvery = getEnvInt("RENT_COMMIT_EVERY", cfg.CommitEvery)
	cfg.MetricsAddr = getEnv("RENT_METRICS_ADDR", cfg.MetricsAddr)

	return cfg
}

// CatalogURL returns the absolute URL of the paginated catalog.
func (c *Config) CatalogURL() string {
	return strings.TrimSuffix(c.Host, "/") + c.CatalogPath
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.City == "" {
		return fmt.Errorf("city cannot be empty")
	}
	if c.CityCode == "" {
		return fmt.Errorf("city code cannot be empty")
	}
	parsed, err := url.Parse(c.Host)
	if err != nil {
		return fmt.Errorf("invalid host URL: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("host URL must include a host")
	}
	if !strings.HasPrefix(c.CatalogPath, "/") {
		return fmt.Errorf("catalog path must be absolute")
	}
	if !strings.HasPrefix(c.ListingPathPrefix, "/") {
		return fmt.Errorf("listing prefix must be absolute")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.CommitEvery <= 0 {
		return fmt.Errorf("commit cadence must be positive")
	}
	if c.PageDelayMin < 0 || c.PageDelayMax < c.PageDelayMin {
		return fmt.Errorf("page delay range is invalid")
	}
	if c.RecordDelayMean < 0 || c.RecordDelayStd < 0 {
		return fmt.Errorf("record delay parameters cannot be negative")
	}
	if c.GeoDelayMax < 0 {
		return fmt.Errorf("geo delay cannot be negative")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
