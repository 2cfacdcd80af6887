package scraper

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
)

func TestClassifyFetchError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "not found", err: errors.New("Not Found"), statusCode: http.StatusNotFound, expected: "http_404"},
		{name: "forbidden", err: errors.New("Forbidden"), statusCode: http.StatusForbidden, expected: "http_403"},
		{name: "success status", err: nil, statusCode: http.StatusOK, expected: "unknown"},
		{name: "redirect treated as failure", err: nil, statusCode: http.StatusSeeOther, expected: "http_303"},
		{name: "connection refused", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyFetchError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyFetchError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(ErrTimeout{Err: context.DeadlineExceeded}) {
		t.Fatalf("timeout should be transient")
	}
	if !IsTransient(ErrHTTPStatus{Code: 404, Err: errors.New("nf")}) {
		t.Fatalf("http status should be transient")
	}
	if IsTransient(errors.New("something else")) {
		t.Fatalf("unclassified error should not be transient")
	}
}

func TestAgentPoolDeterministic(t *testing.T) {
	agents := []string{"agent-a", "agent-b", "agent-c"}
	a := NewAgentPool(agents, 7)
	b := NewAgentPool(agents, 7)

	for i := 0; i < 20; i++ {
		if got, want := a.Pick(), b.Pick(); got != want {
			t.Fatalf("pick %d diverged: %q vs %q", i, got, want)
		}
	}
}

func TestAgentPoolFallsBackToBuiltin(t *testing.T) {
	pool := NewAgentPool(nil, 1)
	if pool.Size() == 0 {
		t.Fatalf("built-in pool is empty")
	}
	if pool.Pick() == "" {
		t.Fatalf("pick returned empty agent")
	}
}

func TestLoadAgentPool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agents.txt")
	if err := os.WriteFile(path, []byte("agent-a\n\nagent-b\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	pool, err := LoadAgentPool(path, 1)
	if err != nil {
		t.Fatalf("LoadAgentPool: %v", err)
	}
	if pool.Size() != 2 {
		t.Fatalf("pool size = %d, want 2", pool.Size())
	}

	if _, err := LoadAgentPool(filepath.Join(dir, "missing.txt"), 1); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func newTestFetcher(t *testing.T, sink FailureSink) (*Fetcher, *httpmock.MockTransport) {
	t.Helper()
	f, err := NewFetcher("http://example.test", 2*time.Second, NewAgentPool(nil, 1), sink, NewMetrics("test"))
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	transport := httpmock.NewMockTransport()
	f.WithTransport(transport)
	return f, transport
}

func TestFetchSuccess(t *testing.T) {
	f, transport := newTestFetcher(t, &MemorySink{})
	transport.RegisterResponder("GET", "http://example.test/zufang/",
		httpmock.NewStringResponder(200, "<html>ok</html>"))

	body, err := f.Fetch("http://example.test/zufang/")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "<html>ok</html>" {
		t.Fatalf("body = %q", body)
	}
}

func TestFetchHTTPStatus(t *testing.T) {
	sink := &MemorySink{}
	f, transport := newTestFetcher(t, sink)
	transport.RegisterResponder("GET", "http://example.test/zufang/gone/",
		httpmock.NewStringResponder(404, "not found"))

	_, err := f.Fetch("http://example.test/zufang/gone/")
	var status ErrHTTPStatus
	if !errors.As(err, &status) {
		t.Fatalf("error = %v, want ErrHTTPStatus", err)
	}
	if status.Code != 404 {
		t.Fatalf("status code = %d, want 404", status.Code)
	}

	entries := sink.All()
	if len(entries) != 1 || entries[0] != "http_404 http://example.test/zufang/gone/" {
		t.Fatalf("sink entries = %v", entries)
	}
}

func TestFetchConnectionFailure(t *testing.T) {
	sink := &MemorySink{}
	f, transport := newTestFetcher(t, sink)
	transport.RegisterResponder("GET", "http://example.test/zufang/",
		httpmock.NewErrorResponder(errors.New("connection reset")))

	_, err := f.Fetch("http://example.test/zufang/")
	var conn ErrConnection
	if !errors.As(err, &conn) {
		t.Fatalf("error = %v, want ErrConnection", err)
	}
	if len(sink.All()) != 1 {
		t.Fatalf("expected one audit entry, got %v", sink.All())
	}
}

func TestFetchTimeout(t *testing.T) {
	f, transport := newTestFetcher(t, &MemorySink{})
	transport.RegisterResponder("GET", "http://example.test/zufang/",
		httpmock.NewErrorResponder(context.DeadlineExceeded))

	_, err := f.Fetch("http://example.test/zufang/")
	var timeout ErrTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
}

func TestFetchForbiddenDomain(t *testing.T) {
	f, _ := newTestFetcher(t, &MemorySink{})

	_, err := f.Fetch("http://elsewhere.test/page")
	if err == nil {
		t.Fatalf("expected error for foreign domain")
	}
}
