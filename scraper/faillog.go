package scraper

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FailureSink records fetch failures for offline audit. Implementations
// must tolerate concurrent calls.
type FailureSink interface {
	Record(category, url string)
	Close() error
}

// FileSink appends one "category url" line per failure to a stage-scoped
// log file. Lines are never rewritten; the log is for a human operator.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens (creating if needed) the failure log for a stage
// under dir.
func NewFileSink(dir, stage string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create faillog dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("unsuccessful_%s.log", stage))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open faillog: %w", err)
	}
	return &FileSink{file: f}, nil
}

// Record appends a failure line. Write errors are swallowed: the audit
// log must never break the pipeline.
func (s *FileSink) Record(category, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.file, "%s %s\n", category, url)
}

// Close releases the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// NopSink discards failures; used in tests.
type NopSink struct{}

func (NopSink) Record(string, string) {}
func (NopSink) Close() error          { return nil }

// MemorySink keeps failures in memory; used in tests asserting on the
// audit trail.
type MemorySink struct {
	mu      sync.Mutex
	Entries []string
}

func (s *MemorySink) Record(category, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Entries = append(s.Entries, category+" "+url)
}

func (s *MemorySink) Close() error { return nil }

// All returns a copy of the recorded lines.
func (s *MemorySink) All() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Entries))
	copy(out, s.Entries)
	return out
}
