package impl

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bakkerme/atomsplit/internal/fetch"
)

func TestFetchReturnsBody(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte("<feed/>"))
	}))
	defer srv.Close()

	body, err := NewFetcher().Fetch(context.Background(), srv.URL, fetch.Options{Trials: 1, UserAgent: "atomsplit-test"})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(body) != "<feed/>" {
		t.Fatalf("unexpected body %q", body)
	}
	if gotUA != "atomsplit-test" {
		t.Fatalf("expected user agent to be sent, got %q", gotUA)
	}
}

func TestFetchRetriesUntilSuccess(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<feed/>"))
	}))
	defer srv.Close()

	body, err := NewFetcher().Fetch(context.Background(), srv.URL, fetch.Options{Trials: 5})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(body) != "<feed/>" {
		t.Fatalf("unexpected body %q", body)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("expected 3 requests, got %d", got)
	}
}

func TestFetchReturnsLastErrorAfterAllTrials(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewFetcher().Fetch(context.Background(), srv.URL, fetch.Options{Trials: 2})
	var statusErr *fetch.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("unexpected status %d", statusErr.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}
}

func TestFetchRejectsInvalidOptionsWithoutRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	cases := []fetch.Options{
		{Timeout: -time.Second, Trials: 1},
		{Trials: 0},
	}
	for _, options := range cases {
		_, err := NewFetcher().Fetch(context.Background(), srv.URL, options)
		var cfgErr *fetch.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigError for %+v, got %v", options, err)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 0 {
		t.Fatalf("expected no requests, got %d", got)
	}
}

func TestFetchRejectsInvalidURL(t *testing.T) {
	for _, u := range []string{"", "ftp://example.com/feed", "not a url", "http://"} {
		_, err := NewFetcher().Fetch(context.Background(), u, fetch.Options{Trials: 1})
		var cfgErr *fetch.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigError for %q, got %v", u, err)
		}
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := NewFetcher().Fetch(context.Background(), srv.URL, fetch.Options{Timeout: 50 * time.Millisecond, Trials: 2})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout not enforced, took %v", elapsed)
	}
}

func TestFetchEnforcesBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<feed>0123456789</feed>"))
	}))
	defer srv.Close()

	_, err := NewFetcher().Fetch(context.Background(), srv.URL, fetch.Options{Trials: 1, MaxBytes: 8})
	var tooLarge *fetch.ErrBodyTooLarge
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
}
