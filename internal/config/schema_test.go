package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func intPtr(v int) *int {
	return &v
}

func TestParseExampleDocument(t *testing.T) {
	data := []byte(`
defaults:
  timeout: 15s
  trials: 3
  user_agent: "atomsplit-test/1.0"
trigger:
  cron:
    schedule: "*/15 * * * *"
    timezone: "UTC"
output:
  format: yaml
allow_partial: true
server:
  listen: ":8080"
  history_path: ./state/runs
seen:
  path: ./state/seen.db
  ttl: 2w
feeds:
  - name: wordpress
    url: https://en.blog.wordpress.com/feed/atom/
    timeout: 1d
    limit: 10
    filters:
      - name: no-authors
        rule: 'len(authors) == 0'
  - url: https://example.com/feed.atom
    trials: 1
    max_bytes: 1024
`)

	doc, err := ParseDocument(data)
	if err != nil {
		t.Fatalf("Failed to parse document: %v", err)
	}
	if len(doc.Feeds) != 2 {
		t.Fatalf("expected 2 feeds, got %d", len(doc.Feeds))
	}
	if doc.Trigger == nil || doc.Trigger.Cron == nil || doc.Trigger.Cron.Schedule != "*/15 * * * *" {
		t.Fatalf("unexpected trigger: %+v", doc.Trigger)
	}
	if !doc.AllowPartial {
		t.Error("expected allow_partial to be set")
	}
	if doc.Seen == nil || doc.Seen.Path != "./state/seen.db" || doc.Seen.TTL.Std() != 14*24*time.Hour {
		t.Errorf("unexpected seen config: %+v", doc.Seen)
	}
	if doc.Server == nil || doc.Server.Listen != ":8080" {
		t.Errorf("unexpected server config: %+v", doc.Server)
	}
	if doc.Output.Format != FormatYAML {
		t.Errorf("expected yaml output, got %q", doc.Output.Format)
	}
	if got := doc.Feeds[0].Timeout.Std(); got != 24*time.Hour {
		t.Errorf("expected 24h timeout, got %v", got)
	}
	if len(doc.Feeds[0].Filters) != 1 || doc.Feeds[0].Filters[0].Name != "no-authors" {
		t.Errorf("unexpected filters: %+v", doc.Feeds[0].Filters)
	}
}

func TestResolveLayersSettings(t *testing.T) {
	env := FetchEnvConfig{Timeout: 10 * time.Second, Trials: 1, UserAgent: "env", MaxBytes: 100}
	timeout := Duration(5 * time.Second)
	doc := &Document{
		Defaults: FetchConfig{Trials: intPtr(3), UserAgent: "defaults"},
		Feeds: []FeedConfig{
			{URL: "https://a.example/feed"},
			{URL: "https://b.example/feed", FetchConfig: FetchConfig{Timeout: &timeout, Trials: intPtr(2)}},
		},
	}

	a := doc.Resolve(doc.Feeds[0], env)
	if a.Timeout != 10*time.Second || a.Trials != 3 || a.UserAgent != "defaults" || a.MaxBytes != 100 {
		t.Fatalf("unexpected settings for a: %+v", a)
	}
	b := doc.Resolve(doc.Feeds[1], env)
	if b.Timeout != 5*time.Second || b.Trials != 2 || b.UserAgent != "defaults" {
		t.Fatalf("unexpected settings for b: %+v", b)
	}
}

func TestZeroTimeoutMeansNoTimeout(t *testing.T) {
	doc, err := ParseDocument([]byte(`
feeds:
  - url: https://example.com/feed
    timeout: 0s
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := doc.Resolve(doc.Feeds[0], FetchEnvConfig{Timeout: time.Minute, Trials: 1})
	if got.Timeout != 0 {
		t.Fatalf("expected explicit zero timeout to win, got %v", got.Timeout)
	}
}

func TestValidateRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"no feeds":         `feeds: []`,
		"missing url":      "feeds:\n  - name: x\n",
		"bad scheme":       "feeds:\n  - url: ftp://example.com/feed\n",
		"zero trials":      "feeds:\n  - url: https://example.com/feed\n    trials: 0\n",
		"negative timeout": "feeds:\n  - url: https://example.com/feed\n    timeout: -1s\n",
		"bad duration":     "feeds:\n  - url: https://example.com/feed\n    timeout: soon\n",
		"bad format":       "output:\n  format: xml\nfeeds:\n  - url: https://example.com/feed\n",
		"empty schedule":   "trigger:\n  cron: {}\nfeeds:\n  - url: https://example.com/feed\n",
		"bad timezone":     "trigger:\n  cron:\n    schedule: '@hourly'\n    timezone: Mars/Base\nfeeds:\n  - url: https://example.com/feed\n",
		"duplicate names":  "feeds:\n  - name: a\n    url: https://example.com/1\n  - name: a\n    url: https://example.com/2\n",
		"filter result":    "feeds:\n  - url: https://example.com/feed\n    filters:\n      - name: x\n        rule: 'true'\n        result: maybe\n",
		"filter no rule":   "feeds:\n  - url: https://example.com/feed\n    filters:\n      - name: x\n",
		"seen no path":     "seen: {}\nfeeds:\n  - url: https://example.com/feed\n",
		"server no listen": "server: {}\nfeeds:\n  - url: https://example.com/feed\n",
		"negative limit":   "feeds:\n  - url: https://example.com/feed\n    limit: -1\n",
	}
	for name, doc := range cases {
		if _, err := ParseDocument([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atomsplit.yaml")
	if err := os.WriteFile(path, []byte("feeds:\n  - url: https://example.com/feed\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	if doc.Feeds[0].URL != "https://example.com/feed" {
		t.Fatalf("unexpected feed: %+v", doc.Feeds[0])
	}

	if _, err := LoadDocument(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSingleFeed(t *testing.T) {
	doc := SingleFeed("https://example.com/feed")
	if err := doc.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadEnvReadsFetchSettings(t *testing.T) {
	t.Setenv("ATOMSPLIT_FETCH_TIMEOUT", "2m")
	t.Setenv("ATOMSPLIT_FETCH_TRIALS", "4")
	t.Setenv("ATOMSPLIT_FORMAT", "YAML")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "a=1, b=2,bad")

	env := LoadEnv()
	if env.Fetch.Timeout != 2*time.Minute {
		t.Errorf("expected 2m timeout, got %v", env.Fetch.Timeout)
	}
	if env.Fetch.Trials != 4 {
		t.Errorf("expected 4 trials, got %d", env.Fetch.Trials)
	}
	if env.Format != FormatYAML {
		t.Errorf("expected yaml format, got %q", env.Format)
	}
	if len(env.OTel.Headers) != 2 || env.OTel.Headers["b"] != "2" {
		t.Errorf("unexpected headers: %v", env.OTel.Headers)
	}
	if !strings.HasPrefix(env.Fetch.UserAgent, "atomsplit/") {
		t.Errorf("unexpected user agent %q", env.Fetch.UserAgent)
	}
}
