// Package splitter fetches an Atom feed and splits it into entries. A
// Splitter keeps the outcome of its most recent run for inspection.
package splitter

import (
	"bytes"
	"context"
	"time"

	"github.com/mmcdole/gofeed"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bakkerme/atomsplit/internal/atom"
	"github.com/bakkerme/atomsplit/internal/core"
	"github.com/bakkerme/atomsplit/internal/fetch"
	"github.com/bakkerme/atomsplit/internal/fetch/impl"
)

const tracerName = "github.com/bakkerme/atomsplit/internal/splitter"

// Splitter is not safe for concurrent use.
type Splitter struct {
	url     string
	options fetch.Options
	fetcher fetch.Fetcher
	tracer  trace.Tracer

	raw     []byte
	entries []atom.Entry
	err     error
}

type Option func(*Splitter)

// WithTimeout bounds each fetch attempt. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Splitter) { s.options.Timeout = d }
}

// WithTrials sets how many fetch attempts are made.
func WithTrials(n int) Option {
	return func(s *Splitter) { s.options.Trials = n }
}

func WithUserAgent(ua string) Option {
	return func(s *Splitter) { s.options.UserAgent = ua }
}

func WithMaxBytes(n int64) Option {
	return func(s *Splitter) { s.options.MaxBytes = n }
}

func WithFetcher(f fetch.Fetcher) Option {
	return func(s *Splitter) {
		if f != nil {
			s.fetcher = f
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Splitter) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// New returns a Splitter for feedURL. By default it makes a single attempt
// with no timeout over HTTP.
func New(feedURL string, opts ...Option) *Splitter {
	s := &Splitter{
		url:     feedURL,
		options: fetch.Options{Trials: 1},
		fetcher: impl.NewFetcher(),
		tracer:  otel.Tracer(tracerName),
		entries: []atom.Entry{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run fetches and parses the feed, replacing the results of any earlier run.
// Transport errors leave Entries empty. Tokenization errors keep the entries
// built before the failure.
func (s *Splitter) Run(ctx context.Context) error {
	s.raw = nil
	s.entries = []atom.Entry{}
	s.err = nil

	ctx, span := s.tracer.Start(ctx, "atomsplit.run", trace.WithAttributes(attribute.String("feed.url", s.url)))
	defer span.End()
	logger := core.LoggerFromContext(ctx).With("feed_url", s.url)

	raw, err := s.fetch(ctx)
	if err != nil {
		s.err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		logger.Error("fetch failed", "error", err)
		return err
	}
	s.raw = raw

	if t := gofeed.DetectFeedType(bytes.NewReader(raw)); t != gofeed.FeedTypeAtom {
		logger.Warn("document does not look like an atom feed", "detected", feedTypeName(t))
	}

	res := s.parse(ctx, raw)
	s.entries = res.Entries
	if res.Err != nil {
		s.err = res.Err
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "parse failed")
		logger.Error("parse failed", "error", res.Err, "entries", len(res.Entries))
		return res.Err
	}

	logger.Info("parsed feed", "entries", len(s.entries), "bytes", len(raw))
	return nil
}

func (s *Splitter) fetch(ctx context.Context) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "atomsplit.fetch", trace.WithAttributes(
		attribute.Int("fetch.trials", s.options.Trials),
		attribute.String("fetch.timeout", s.options.Timeout.String()),
	))
	defer span.End()

	raw, err := s.fetcher.Fetch(ctx, s.url, s.options)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("fetch.bytes", len(raw)))
	return raw, nil
}

func (s *Splitter) parse(ctx context.Context, raw []byte) *atom.ParseResult {
	_, span := s.tracer.Start(ctx, "atomsplit.parse")
	defer span.End()

	res := atom.ParseBytes(raw)
	span.SetAttributes(attribute.Int("atom.entries", len(res.Entries)))
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	return res
}

// URL returns the feed URL the Splitter was created with.
func (s *Splitter) URL() string {
	return s.url
}

// Entries returns the entries of the most recent run.
func (s *Splitter) Entries() []atom.Entry {
	return s.entries
}

// RawContent returns the document bytes received by the most recent run.
func (s *Splitter) RawContent() []byte {
	return s.raw
}

// Err returns the error of the most recent run, or nil.
func (s *Splitter) Err() error {
	return s.err
}

// Result returns the most recent run as a ParseResult.
func (s *Splitter) Result() *atom.ParseResult {
	return &atom.ParseResult{Entries: s.entries, Raw: s.raw, Err: s.err}
}

func feedTypeName(t gofeed.FeedType) string {
	switch t {
	case gofeed.FeedTypeAtom:
		return "atom"
	case gofeed.FeedTypeRSS:
		return "rss"
	default:
		return "unknown"
	}
}
