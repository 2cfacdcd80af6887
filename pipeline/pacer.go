// Package pipeline sequences the fetch-parse-persist stages: catalog
// discovery, detail enrichment, community geocoding, and the station
// reference run. Stages are strictly sequential; batched commits are the
// checkpoints that make a restart safe.
package pipeline

import (
	"math/rand"
	"time"
)

// PageFetcher is what a stage needs from the scraper fetcher.
type PageFetcher interface {
	Fetch(url string) ([]byte, error)
}

// Pacer sleeps randomized delays between requests to avoid provider
// throttling. The generator is seeded explicitly so behavior is
// reproducible under test.
type Pacer struct {
	rnd   *rand.Rand
	sleep func(time.Duration)
}

// NewPacer builds a pacer with real sleeping.
func NewPacer(seed int64) *Pacer {
	return &Pacer{
		rnd:   rand.New(rand.NewSource(seed)),
		sleep: time.Sleep,
	}
}

// Uniform sleeps a uniformly random duration in [min, max].
func (p *Pacer) Uniform(min, max time.Duration) {
	if max <= min {
		p.sleep(min)
		return
	}
	d := min + time.Duration(p.rnd.Int63n(int64(max-min)))
	p.sleep(d)
}

// Normal sleeps a normally distributed duration with the given mean and
// standard deviation, clamped below at zero.
func (p *Pacer) Normal(mean, stddev time.Duration) {
	d := time.Duration(p.rnd.NormFloat64()*float64(stddev) + float64(mean))
	if d < 0 {
		d = 0
	}
	p.sleep(d)
}
