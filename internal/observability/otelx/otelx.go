package otelx

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/bakkerme/atomsplit/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// ServiceNamespace groups every atomsplit process in a tracing backend.
	ServiceNamespace = "atomsplit"

	defaultServiceName = "atomsplit"

	protocolGRPC = "grpc"
	protocolHTTP = "http/protobuf"
)

// Init installs a global tracer provider exporting over OTLP and returns it
// with its shutdown function. attrs are added to the resource, typically
// from DocumentAttributes. When tracing is disabled it returns a no-op
// provider and a no-op shutdown.
func Init(ctx context.Context, logger *slog.Logger, cfg config.OTelEnvConfig, attrs ...attribute.KeyValue) (trace.TracerProvider, func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	spec, err := resolveExporter(cfg)
	if err != nil {
		return nil, nil, err
	}
	exp, err := spec.newExporter(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s trace exporter: %w", spec.protocol, err)
	}

	res, err := resource.New(
		ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithAttributes(resourceAttributes(cfg, attrs)...),
	)
	if err != nil {
		return nil, nil, err
	}

	sampleRatio := max(0, min(1, cfg.SampleRatio))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(2*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info(
		"tracing enabled",
		"service_name", serviceName(cfg),
		"otlp_protocol", spec.protocol,
		"otlp_endpoint", spec.target(),
		"sample_ratio", sampleRatio,
	)

	return tp, tp.Shutdown, nil
}

// DocumentAttributes describes the loaded document on the tracing resource,
// so traces from different deployments can be told apart.
func DocumentAttributes(doc *config.Document) []attribute.KeyValue {
	if doc == nil {
		return nil
	}
	trigger := "none"
	if doc.Trigger != nil && doc.Trigger.Cron != nil {
		trigger = "cron"
	}
	format := doc.Output.Format
	if format == "" {
		format = config.FormatJSON
	}
	return []attribute.KeyValue{
		attribute.Int("atomsplit.feeds", len(doc.Feeds)),
		attribute.String("atomsplit.trigger", trigger),
		attribute.String("atomsplit.output.format", strings.ToLower(format)),
		attribute.Bool("atomsplit.seen_store", doc.Seen != nil),
	}
}

func resourceAttributes(cfg config.OTelEnvConfig, extra []attribute.KeyValue) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName(cfg)),
		semconv.ServiceNamespace(ServiceNamespace),
	}
	if v := strings.TrimSpace(cfg.ServiceVersion); v != "" {
		attrs = append(attrs, semconv.ServiceVersion(v))
	}
	return append(attrs, extra...)
}

func serviceName(cfg config.OTelEnvConfig) string {
	if v := strings.TrimSpace(cfg.ServiceName); v != "" {
		return v
	}
	return defaultServiceName
}

// exporterSpec is an OTLP destination resolved from the environment.
type exporterSpec struct {
	protocol string
	// endpoint is host:port; url is set instead when the http endpoint was
	// configured with a scheme and path.
	endpoint string
	url      string
	insecure bool
	headers  map[string]string
}

func (s exporterSpec) target() string {
	if s.url != "" {
		return s.url
	}
	return s.endpoint
}

func resolveExporter(cfg config.OTelEnvConfig) (exporterSpec, error) {
	spec := exporterSpec{
		protocol: strings.ToLower(strings.TrimSpace(cfg.Protocol)),
		endpoint: strings.TrimSpace(cfg.Endpoint),
		insecure: cfg.Insecure,
		headers:  cfg.Headers,
	}
	switch spec.protocol {
	case "", protocolGRPC:
		spec.protocol = protocolGRPC
	case "http", protocolHTTP:
		spec.protocol = protocolHTTP
	default:
		return exporterSpec{}, fmt.Errorf("unsupported OTEL_EXPORTER_OTLP_PROTOCOL %q (expected grpc or http/protobuf)", cfg.Protocol)
	}

	if spec.endpoint == "" {
		spec.endpoint = "localhost:4317"
		if spec.protocol == protocolHTTP {
			spec.endpoint = "localhost:4318"
		}
		return spec, nil
	}
	if !strings.Contains(spec.endpoint, "://") {
		return spec, nil
	}

	u, err := url.Parse(spec.endpoint)
	if err != nil || u.Host == "" {
		return exporterSpec{}, fmt.Errorf("parse OTEL_EXPORTER_OTLP_ENDPOINT %q: invalid url", spec.endpoint)
	}
	if spec.protocol == protocolHTTP {
		spec.url = spec.endpoint
	}
	// gRPC only takes host:port.
	spec.endpoint = u.Host
	return spec, nil
}

func (s exporterSpec) newExporter(ctx context.Context) (*otlptrace.Exporter, error) {
	if s.protocol == protocolHTTP {
		var opts []otlptracehttp.Option
		if s.url != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(s.url))
		} else {
			opts = append(opts, otlptracehttp.WithEndpoint(s.endpoint))
		}
		if s.insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(s.headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(s.headers))
		}
		return otlptracehttp.New(ctx, opts...)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(s.endpoint)}
	if s.insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(s.headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(s.headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}
