package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bakkerme/atomsplit/internal/config"
	"github.com/bakkerme/atomsplit/internal/observability/otelx"
	"github.com/bakkerme/atomsplit/internal/runner/factory"
)

func main() {
	env := config.LoadEnv()

	configPath := flag.String("config", env.ConfigPath, "path to atomsplit document")
	feedURL := flag.String("url", "", "split a single feed instead of the configured document")
	timeout := flag.Duration("timeout", env.Fetch.Timeout, "per-attempt fetch timeout (0 disables)")
	trials := flag.Int("trials", env.Fetch.Trials, "fetch attempts per feed")
	format := flag.String("format", env.Format, "output format: json or yaml")
	runOnce := flag.Bool("run-once", env.RunOnce, "run once and exit")
	allowPartial := flag.Bool("allow-partial", env.AllowPartial, "continue if a feed fails")
	listen := flag.String("listen", env.Listen, "serve the run history api on this address")
	flag.Parse()

	env.Fetch.Timeout = *timeout
	env.Fetch.Trials = *trials
	env.Format = *format
	env.AllowPartial = *allowPartial
	env.Listen = *listen

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{}))
	slog.SetDefault(logger)

	doc, err := loadDocument(*configPath, *feedURL)
	if err != nil {
		log.Fatalf("failed to load document: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, shutdown, err := otelx.Init(ctx, logger, env.OTel, otelx.DocumentAttributes(doc)...)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}()

	f := factory.NewFromEnvConfig(logger, env)
	f.TracerProvider = tp
	svc, err := f.Build(doc)
	if err != nil {
		log.Fatalf("failed to build runner: %v", err)
	}
	defer func() { _ = svc.Close() }()

	if svc.Server != nil {
		go func() {
			if err := svc.Server.Start(svc.Listen); err != nil {
				logger.Error("api server stopped", "error", err)
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = svc.Server.Shutdown(shutdownCtx)
		}()
	}

	if *runOnce || (svc.Trigger == nil && svc.Server == nil) {
		if _, err := svc.Runner.RunOnce(ctx); err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if svc.Trigger != nil {
		if err := svc.Runner.Start(ctx, svc.Trigger); err != nil {
			log.Fatalf("failed to start runner: %v", err)
		}
	}
	logger.Info("waiting for trigger", "feeds", len(doc.Feeds))

	<-ctx.Done()
	time.Sleep(200 * time.Millisecond)
}

// A -url flag replaces the document with a single feed.
func loadDocument(path, feedURL string) (*config.Document, error) {
	if feedURL != "" {
		doc := config.SingleFeed(feedURL)
		return doc, doc.Validate()
	}
	return config.LoadDocument(path)
}
