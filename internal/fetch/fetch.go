package fetch

import (
	"context"
	"fmt"
	"time"
)

// Options controls a single fetch.
type Options struct {
	// Timeout bounds each attempt. Zero means no timeout.
	Timeout time.Duration
	// Trials is the number of attempts, at least 1.
	Trials    int
	UserAgent string
	// MaxBytes caps the response body. Zero means unlimited.
	MaxBytes int64
}

// Validate reports configuration errors before any request is made.
func (o Options) Validate() error {
	if o.Timeout < 0 {
		return &ConfigError{Field: "timeout", Msg: fmt.Sprintf("illegal timeout value (%s)", o.Timeout)}
	}
	if o.Trials < 1 {
		return &ConfigError{Field: "trials", Msg: fmt.Sprintf("illegal number of trials (%d)", o.Trials)}
	}
	if o.MaxBytes < 0 {
		return &ConfigError{Field: "max_bytes", Msg: fmt.Sprintf("illegal body limit (%d)", o.MaxBytes)}
	}
	return nil
}

// Fetcher retrieves the raw bytes of a feed document.
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string, options Options) ([]byte, error)
}

// ConfigError is returned for invalid options or URLs.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return "fetch: " + e.Msg
}

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status code %d", e.URL, e.StatusCode)
}

// ErrBodyTooLarge is returned when a response exceeds Options.MaxBytes.
type ErrBodyTooLarge struct {
	Limit int64
}

func (e *ErrBodyTooLarge) Error() string {
	return fmt.Sprintf("fetch: response body exceeds %d bytes", e.Limit)
}
