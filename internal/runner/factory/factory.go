package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/bakkerme/atomsplit/internal/api"
	"github.com/bakkerme/atomsplit/internal/config"
	"github.com/bakkerme/atomsplit/internal/core"
	"github.com/bakkerme/atomsplit/internal/dedupe"
	"github.com/bakkerme/atomsplit/internal/fetch"
	"github.com/bakkerme/atomsplit/internal/fetch/impl"
	"github.com/bakkerme/atomsplit/internal/runner"
	"github.com/bakkerme/atomsplit/internal/storage"
	"github.com/bakkerme/atomsplit/internal/trigger"
)

// Factory wires a runner and its collaborators from environment and
// document. Fields left nil get their production implementation.
type Factory struct {
	Logger  *slog.Logger
	Env     config.EnvConfig
	Fetcher fetch.Fetcher
	Output  io.Writer
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Service is everything main needs to run.
type Service struct {
	Runner *runner.Runner
	// Trigger is nil when the document has none.
	Trigger core.Trigger
	// Server is nil unless an API listen address is configured.
	Server *api.Server
	Listen string

	closers []func() error
}

// Close releases the stores opened by Build.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

func NewFromEnvConfig(logger *slog.Logger, env config.EnvConfig) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		Logger:  logger,
		Env:     env,
		Fetcher: impl.NewFetcher(),
	}
}

func (f *Factory) Build(doc *config.Document) (svc *Service, err error) {
	svc = &Service{}
	defer func() {
		if err != nil {
			_ = svc.Close()
			svc = nil
		}
	}()

	var seen dedupe.SeenStore
	if doc.Seen != nil {
		var ttl config.Duration
		if doc.Seen.TTL != nil {
			ttl = *doc.Seen.TTL
		}
		store, err := dedupe.NewSQLiteStore(doc.Seen.Path, doc.Seen.Table, ttl.Std())
		if err != nil {
			return svc, fmt.Errorf("open seen store: %w", err)
		}
		seen = store
		svc.closers = append(svc.closers, store.Close)
	}

	svc.Listen = f.Env.Listen
	var history *storage.BadgerDB
	if doc.Server != nil || svc.Listen != "" {
		path := ""
		if doc.Server != nil {
			path = doc.Server.HistoryPath
			if svc.Listen == "" {
				svc.Listen = doc.Server.Listen
			}
		}
		db, err := storage.NewBadgerDB(path)
		if err != nil {
			return svc, fmt.Errorf("open run history: %w", err)
		}
		history = db
		svc.closers = append(svc.closers, db.Close)
	}

	cfg := runner.Config{
		Fetch:                  f.Env.Fetch,
		Format:                 f.format(doc),
		AllowPartialFeedErrors: f.Env.AllowPartial,
		Output:                 f.Output,
		Fetcher:                f.Fetcher,
		Seen:                   seen,
		TracerProvider:         f.TracerProvider,
	}
	if history != nil {
		cfg.History = history
	}
	svc.Runner, err = runner.NewWithConfig(f.Logger, doc, cfg)
	if err != nil {
		return svc, err
	}

	svc.Trigger, err = trigger.FromConfig(doc.Trigger)
	if err != nil {
		return svc, err
	}

	if history != nil {
		svc.Server = api.NewServer(f.Logger, history, svc.Runner)
	}
	return svc, nil
}

// The document's format wins over the environment default.
func (f *Factory) format(doc *config.Document) string {
	if doc.Output.Format != "" {
		return doc.Output.Format
	}
	return f.Env.Format
}
