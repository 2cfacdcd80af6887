// Package scraper provides the rate-limited, timeout-bounded page fetcher
// shared by every pipeline stage, plus its failure taxonomy and metrics.
package scraper

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

// Fetcher issues single-host GET requests and classifies every transport
// outcome. It never retries: retry policy belongs to the calling stage,
// which leaves failed items eligible for the next run.
type Fetcher struct {
	collector *colly.Collector
	agents    *AgentPool
	sink      FailureSink
	metrics   *Metrics

	// One in-flight request at a time; the pipeline is strictly
	// sequential, the mutex only guards against misuse.
	mu       sync.Mutex
	lastBody []byte
	lastErr  error
}

// NewFetcher builds a fetcher pinned to the host of baseURL.
func NewFetcher(baseURL string, timeout time.Duration, agents *AgentPool, sink FailureSink, metrics *Metrics) (*Fetcher, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}
	if agents == nil {
		agents = NewAgentPool(nil, time.Now().UnixNano())
	}
	if sink == nil {
		sink = NopSink{}
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.AllowURLRevisit(),
		colly.UserAgent(agents.Pick()),
	)
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	f := &Fetcher{
		collector: collector,
		agents:    agents,
		sink:      sink,
		metrics:   metrics,
	}
	f.configureHandlers()
	return f, nil
}

// WithTransport swaps the underlying transport; used by tests to inject
// a mock round tripper.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Fetch retrieves one page body. On failure it returns nil and exactly one
// classified error kind (ErrTimeout, ErrConnection, ErrHTTPStatus), after
// appending the failure to the stage's audit log.
func (f *Fetcher) Fetch(pageURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastBody = nil
	f.lastErr = nil

	f.metrics.IncRequest()
	start := time.Now()
	err := f.collector.Visit(pageURL)
	f.metrics.ObserveDuration(time.Since(start))

	ferr := f.lastErr
	if ferr == nil && err != nil {
		// Visit failed before a request was issued (bad URL,
		// forbidden domain).
		ferr = classifyFetchError(err, 0)
	}
	if ferr != nil {
		label := errorTypeLabel(ferr)
		f.sink.Record(label, pageURL)
		f.metrics.IncError(label)
		return nil, ferr
	}
	return f.lastBody, nil
}

func (f *Fetcher) configureHandlers() {
	f.collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", f.agents.Pick())
	})

	f.collector.OnResponse(func(r *colly.Response) {
		body := make([]byte, len(r.Body))
		copy(body, r.Body)
		f.lastBody = body
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		statusCode := 0
		if r != nil {
			statusCode = r.StatusCode
		}
		f.lastErr = classifyFetchError(err, statusCode)
	})
}
