package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bakkerme/atomsplit/internal/config"
	"github.com/bakkerme/atomsplit/internal/core"
	"github.com/bakkerme/atomsplit/internal/dedupe"
	"github.com/bakkerme/atomsplit/internal/fetch"
	"github.com/bakkerme/atomsplit/internal/filter"
	"github.com/bakkerme/atomsplit/internal/runner/snapshot"
	"github.com/bakkerme/atomsplit/internal/splitter"
)

// Config holds runner-level settings that don't come from the document.
type Config struct {
	Fetch  config.FetchEnvConfig
	Format string
	// AllowPartialFeedErrors lets a run succeed when some feeds fail.
	AllowPartialFeedErrors bool
	Output                 io.Writer
	// OutputPath, when set, receives each run instead of Output.
	OutputPath string
	Fetcher    fetch.Fetcher
	Seen       dedupe.SeenStore
	// History, when set, records every run whatever its outcome.
	History        RunRecorder
	TracerProvider trace.TracerProvider
}

// RunRecorder stores finished runs.
type RunRecorder interface {
	SaveRun(run *core.Run) error
}

type feedPlan struct {
	cfg   config.FeedConfig
	rules []*filter.Rule
}

const tracerName = "github.com/bakkerme/atomsplit/internal/runner"

// Runner runs every feed of a document and writes the result.
type Runner struct {
	logger *slog.Logger
	tracer trace.Tracer
	doc    *config.Document
	config Config
	feeds  []feedPlan

	mu sync.Mutex
}

func New(logger *slog.Logger, doc *config.Document) (*Runner, error) {
	return NewWithConfig(logger, doc, Config{})
}

func NewWithConfig(logger *slog.Logger, doc *config.Document, cfg Config) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if doc == nil {
		return nil, fmt.Errorf("document is required")
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Fetch.Trials == 0 {
		cfg.Fetch.Trials = 1
	}
	if cfg.Format == "" {
		cfg.Format = doc.Output.Format
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = doc.Output.Path
	}
	cfg.AllowPartialFeedErrors = cfg.AllowPartialFeedErrors || doc.AllowPartial

	feeds := make([]feedPlan, 0, len(doc.Feeds))
	for _, feed := range doc.Feeds {
		rules, err := filter.Compile(feed.Filters)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", feedLabel(feed), err)
		}
		feeds = append(feeds, feedPlan{cfg: feed, rules: rules})
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Runner{logger: logger, tracer: tp.Tracer(tracerName), doc: doc, config: cfg, feeds: feeds}, nil
}

// Start listens on trigger and runs once per event until ctx is done or the
// trigger closes its channel.
func (r *Runner) Start(ctx context.Context, trigger core.Trigger) error {
	if trigger == nil {
		return fmt.Errorf("trigger is required")
	}
	events, err := trigger.Start(ctx)
	if err != nil {
		return err
	}
	go r.listen(ctx, events)
	return nil
}

// RunOnce processes every feed in order and writes the run. Feed failures
// fail the run unless partial feed errors are allowed; the run is returned
// either way.
func (r *Runner) RunOnce(ctx context.Context) (*core.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, span := r.tracer.Start(ctx, "atomsplit.run_once", trace.WithAttributes(
		attribute.Int("atomsplit.feeds", len(r.feeds)),
	))
	defer span.End()

	run, err := r.runOnce(ctx)
	span.SetAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("run.status", string(run.Status)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if r.config.History != nil {
		if saveErr := r.config.History.SaveRun(run); saveErr != nil {
			core.LoggerFromContext(core.WithLogger(ctx, r.logger)).Error("failed to record run", "run_id", run.ID, "error", saveErr)
		}
	}
	return run, err
}

func (r *Runner) runOnce(ctx context.Context) (*core.Run, error) {
	run := &core.Run{
		ID:        fmt.Sprintf("run-%d", time.Now().UnixNano()),
		StartedAt: time.Now().UTC(),
		Status:    core.RunStatusRunning,
		Feeds:     make([]core.FeedResult, 0, len(r.feeds)),
	}
	ctx = core.WithRunID(core.WithLogger(ctx, r.logger), run.ID)
	logger := core.LoggerFromContext(ctx)

	var errs []error
	for _, plan := range r.feeds {
		if err := ctx.Err(); err != nil {
			run.Status = core.RunStatusFailed
			return run, err
		}
		result, err := r.runFeed(ctx, plan)
		run.Feeds = append(run.Feeds, result)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", feedLabel(plan.cfg), err))
		}
	}

	if len(errs) > 0 {
		if !r.config.AllowPartialFeedErrors || len(errs) == len(r.feeds) {
			run.Status = core.RunStatusFailed
			return run, errors.Join(errs...)
		}
		logger.Warn("continuing with partial feed errors", "failed", len(errs), "feeds", len(r.feeds))
		run.Status = core.RunStatusPartial
	} else {
		run.Status = core.RunStatusCompleted
	}
	completedAt := time.Now().UTC()
	run.CompletedAt = &completedAt

	if err := r.deliver(run); err != nil {
		run.Status = core.RunStatusFailed
		return run, err
	}
	if err := r.markSeen(ctx, run); err != nil {
		logger.Error("failed to record seen entries", "error", err)
	}
	logger.Info("run completed", "status", run.Status, "feeds", len(run.Feeds))
	return run, nil
}

func (r *Runner) runFeed(ctx context.Context, plan feedPlan) (core.FeedResult, error) {
	settings := r.doc.Resolve(plan.cfg, r.config.Fetch)
	opts := []splitter.Option{
		splitter.WithTimeout(settings.Timeout),
		splitter.WithTrials(settings.Trials),
		splitter.WithUserAgent(settings.UserAgent),
		splitter.WithMaxBytes(settings.MaxBytes),
		splitter.WithFetcher(r.config.Fetcher),
		splitter.WithTracerProvider(r.config.TracerProvider),
	}
	s := splitter.New(plan.cfg.URL, opts...)
	runErr := s.Run(ctx)

	result := core.FeedResult{
		Name:  plan.cfg.Name,
		URL:   plan.cfg.URL,
		Bytes: len(s.RawContent()),
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}

	entries := filter.Apply(ctx, plan.rules, s.Entries())
	if r.config.Seen != nil {
		fresh, err := dedupe.Unseen(ctx, r.config.Seen, plan.cfg.URL, entries)
		if err != nil {
			return result, fmt.Errorf("check seen entries: %w", err)
		}
		entries = fresh
	}
	if plan.cfg.Limit > 0 && len(entries) > plan.cfg.Limit {
		entries = entries[:plan.cfg.Limit]
	}
	result.Entries = entries
	result.Dropped = len(s.Entries()) - len(entries)
	return result, runErr
}

func (r *Runner) deliver(run *core.Run) error {
	if r.config.OutputPath != "" {
		return snapshot.Save(r.config.OutputPath, run, r.config.Format)
	}
	return snapshot.Encode(r.config.Output, run, r.config.Format)
}

func (r *Runner) markSeen(ctx context.Context, run *core.Run) error {
	if r.config.Seen == nil {
		return nil
	}
	for _, feed := range run.Feeds {
		if err := r.config.Seen.MarkSeen(ctx, feed.URL, dedupe.Keys(feed.Entries)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) listen(ctx context.Context, events <-chan core.TriggerEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			r.logger.Info("trigger event", "time", event.Timestamp)
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("run failed", "error", err)
			}
		}
	}
}

func feedLabel(feed config.FeedConfig) string {
	if feed.Name != "" {
		return feed.Name
	}
	return feed.URL
}
