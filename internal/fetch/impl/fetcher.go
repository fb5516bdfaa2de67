package impl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/bakkerme/atomsplit/internal/core"
	"github.com/bakkerme/atomsplit/internal/fetch"
	"github.com/bakkerme/atomsplit/internal/retry"
)

// Fetcher fetches feeds over HTTP. The zero value is ready to use.
type Fetcher struct {
	// Transport overrides http.DefaultTransport, mainly for tests.
	Transport http.RoundTripper
}

func NewFetcher() *Fetcher {
	return &Fetcher{}
}

func (f *Fetcher) Fetch(ctx context.Context, feedURL string, options fetch.Options) ([]byte, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	u, err := url.Parse(feedURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &fetch.ConfigError{Field: "url", Msg: fmt.Sprintf("invalid feed url %q", feedURL)}
	}

	client := &http.Client{Timeout: options.Timeout, Transport: f.Transport}
	logger := core.LoggerFromContext(ctx)

	var body []byte
	err = retry.Do(ctx, retry.Config{
		Attempts: options.Trials,
		OnRetry: func(attempt int, err error) {
			logger.Warn("fetch attempt failed", "feed_url", feedURL, "attempt", attempt, "error", err)
		},
	}, func() error {
		data, err := f.get(ctx, client, u.String(), options)
		if err != nil {
			return err
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", feedURL, err)
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, client *http.Client, feedURL string, options fetch.Options) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if options.UserAgent != "" {
		req.Header.Set("User-Agent", options.UserAgent)
	}
	req.Header.Set("Accept", "application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.1")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &fetch.StatusError{URL: feedURL, StatusCode: resp.StatusCode}
	}

	var reader io.Reader = resp.Body
	if options.MaxBytes > 0 {
		reader = io.LimitReader(resp.Body, options.MaxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if options.MaxBytes > 0 && int64(len(data)) > options.MaxBytes {
		return nil, &fetch.ErrBodyTooLarge{Limit: options.MaxBytes}
	}
	core.LoggerFromContext(ctx).Debug("fetched feed", "feed_url", feedURL, "status", resp.StatusCode, "bytes", len(data))
	return data, nil
}
