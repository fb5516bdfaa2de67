package mock

import (
	"context"
	"sync"

	"github.com/bakkerme/atomsplit/internal/fetch"
)

// Fetcher serves canned documents keyed by URL and records every call.
type Fetcher struct {
	BodyByURL map[string][]byte
	ErrByURL  map[string]error

	mu    sync.Mutex
	calls []string
}

func (f *Fetcher) Fetch(ctx context.Context, feedURL string, options fetch.Options) ([]byte, error) {
	_ = ctx
	f.mu.Lock()
	f.calls = append(f.calls, feedURL)
	f.mu.Unlock()

	if err := options.Validate(); err != nil {
		return nil, err
	}
	if f.ErrByURL != nil {
		if err, ok := f.ErrByURL[feedURL]; ok {
			return nil, err
		}
	}
	body, ok := f.BodyByURL[feedURL]
	if !ok {
		return nil, &fetch.StatusError{URL: feedURL, StatusCode: 404}
	}
	return body, nil
}

// Calls returns the URLs requested so far.
func (f *Fetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
