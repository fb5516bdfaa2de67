package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type EnvConfig struct {
	ConfigPath   string
	Format       string
	RunOnce      bool
	AllowPartial bool
	// Listen overrides the document's server address when set.
	Listen string
	Fetch  FetchEnvConfig
	OTel   OTelEnvConfig
}

// FetchEnvConfig holds fetch defaults applied to feeds that don't override
// them.
type FetchEnvConfig struct {
	Timeout   time.Duration
	Trials    int
	UserAgent string
	MaxBytes  int64
}

type OTelEnvConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Protocol       string // "grpc" or "http/protobuf"
	Headers        map[string]string
	Insecure       bool
	SampleRatio    float64
}

func LoadEnv() EnvConfig {
	otlpEndpoint := strings.TrimSpace(envString("OTEL_EXPORTER_OTLP_ENDPOINT", ""))

	return EnvConfig{
		ConfigPath:   envString("ATOMSPLIT_CONFIG", "atomsplit.yaml"),
		Format:       strings.ToLower(envString("ATOMSPLIT_FORMAT", FormatJSON)),
		RunOnce:      envBool("RUN_ONCE", false),
		AllowPartial: envBool("ALLOW_PARTIAL_FEED_ERRORS", false),
		Listen:       envString("ATOMSPLIT_LISTEN", ""),
		Fetch: FetchEnvConfig{
			Timeout:   envDuration("ATOMSPLIT_FETCH_TIMEOUT", 10*time.Second),
			Trials:    envInt("ATOMSPLIT_FETCH_TRIALS", 1),
			UserAgent: envString("ATOMSPLIT_USER_AGENT", "atomsplit/0.1"),
			MaxBytes:  int64(envInt("ATOMSPLIT_MAX_BYTES", 4*1024*1024)),
		},
		OTel: OTelEnvConfig{
			Enabled:        envBool("OTEL_ENABLED", false),
			ServiceName:    strings.TrimSpace(envString("OTEL_SERVICE_NAME", "atomsplit")),
			ServiceVersion: envString("OTEL_SERVICE_VERSION", ""),
			Endpoint:       otlpEndpoint,
			Protocol:       strings.ToLower(strings.TrimSpace(envString("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			Headers:        parseHeaders(envString("OTEL_EXPORTER_OTLP_HEADERS", "")),
			Insecure:       envBool("OTEL_EXPORTER_OTLP_INSECURE", defaultInsecure(otlpEndpoint)),
			SampleRatio:    clamp01(envFloat("OTEL_TRACES_SAMPLE_RATIO", 1.0)),
		},
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := parseDurationExtended(v)
	if err != nil {
		return fallback
	}
	return d
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func parseHeaders(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func defaultInsecure(endpoint string) bool {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return true
	}
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return u.Scheme == "http"
	}
	return strings.HasPrefix(endpoint, "localhost:") ||
		strings.HasPrefix(endpoint, "127.0.0.1:") ||
		strings.HasPrefix(endpoint, "0.0.0.0:")
}
