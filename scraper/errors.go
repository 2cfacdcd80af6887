package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrTimeout indicates the request exceeded its deadline. Timed-out items
// stay eligible for retry on the next run.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrHTTPStatus indicates a non-2xx response.
type ErrHTTPStatus struct {
	Code int
	Err  error
}

func (e ErrHTTPStatus) Error() string {
	return fmt.Errorf("http status %d: %w", e.Code, e.Err).Error()
}

func (e ErrHTTPStatus) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retry-next-run fetch failure
// rather than a content problem.
func IsTransient(err error) bool {
	var timeout ErrTimeout
	var conn ErrConnection
	var status ErrHTTPStatus
	return errors.As(err, &timeout) || errors.As(err, &conn) || errors.As(err, &status)
}

func classifyFetchError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}

	if statusCode != 0 && (statusCode < 200 || statusCode >= 300) {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("unexpected response")
		}
		return ErrHTTPStatus{Code: statusCode, Err: wrapped}
	}

	if err == nil {
		return nil
	}
	return ErrConnection{Err: err}
}

// errorTypeLabel gives the short category name used in failure logs
// and metric labels.
func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var status ErrHTTPStatus
	if errors.As(err, &status) {
		return fmt.Sprintf("http_%d", status.Code)
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	return "other"
}
