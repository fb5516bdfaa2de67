package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Document represents the top-level structure of an atomsplit.yaml file
type Document struct {
	Defaults     FetchConfig    `yaml:"defaults,omitempty"`
	Trigger      *TriggerConfig `yaml:"trigger,omitempty"`
	Output       OutputConfig   `yaml:"output,omitempty"`
	AllowPartial bool           `yaml:"allow_partial,omitempty"`
	Seen         *SeenConfig    `yaml:"seen,omitempty"`
	Server       *ServerConfig  `yaml:"server,omitempty"`
	Feeds        []FeedConfig   `yaml:"feeds"`
}

// SeenConfig enables a SQLite store of emitted entries, so that repeated
// runs only output entries they have not emitted before.
type SeenConfig struct {
	Path  string    `yaml:"path"`
	Table string    `yaml:"table,omitempty"`
	TTL   *Duration `yaml:"ttl,omitempty"`
}

// ServerConfig enables the HTTP API over the run history.
type ServerConfig struct {
	Listen string `yaml:"listen"`
	// HistoryPath is the badger directory; empty keeps history in memory.
	HistoryPath string `yaml:"history_path,omitempty"`
}

// FetchConfig holds fetch settings. Nil fields fall back to the next level:
// feed, then document defaults, then environment.
type FetchConfig struct {
	Timeout   *Duration `yaml:"timeout,omitempty"`
	Trials    *int      `yaml:"trials,omitempty"`
	UserAgent string    `yaml:"user_agent,omitempty"`
	MaxBytes  *int64    `yaml:"max_bytes,omitempty"`
}

// TriggerConfig wraps the supported trigger types
type TriggerConfig struct {
	Cron *CronTrigger `yaml:"cron,omitempty"`
}

// CronTrigger defines a scheduled trigger
type CronTrigger struct {
	Schedule string `yaml:"schedule"`
	Timezone string `yaml:"timezone,omitempty"`
}

// OutputConfig controls how entries are written.
type OutputConfig struct {
	Format string `yaml:"format,omitempty"`
	Path   string `yaml:"path,omitempty"`
}

// FeedConfig describes a single Atom feed.
type FeedConfig struct {
	Name        string `yaml:"name,omitempty"`
	URL         string `yaml:"url"`
	FetchConfig `yaml:",inline"`
	Limit       int          `yaml:"limit,omitempty"`
	Filters     []FilterRule `yaml:"filters,omitempty"`
}

// FilterRule is an expression evaluated against each entry. When it returns
// true the entry is dropped (Result "drop", the default) or kept only if it
// matches (Result "keep").
type FilterRule struct {
	Name   string `yaml:"name"`
	Rule   string `yaml:"rule"`
	Result string `yaml:"result,omitempty"`
}

// FetchSettings is a fully resolved FetchConfig.
type FetchSettings struct {
	Timeout   time.Duration
	Trials    int
	UserAgent string
	MaxBytes  int64
}

// LoadDocument reads and validates a document from path.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDocument(data)
}

// ParseDocument decodes and validates a document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse atomsplit document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate performs validation on the document
func (d *Document) Validate() error {
	if len(d.Feeds) == 0 {
		return fmt.Errorf("at least one feed is required")
	}
	if err := validateFetch("defaults", d.Defaults); err != nil {
		return err
	}

	if d.Trigger != nil {
		if d.Trigger.Cron == nil {
			return fmt.Errorf("trigger: unsupported trigger type")
		}
		if d.Trigger.Cron.Schedule == "" {
			return fmt.Errorf("trigger: cron schedule is required")
		}
		if tz := d.Trigger.Cron.Timezone; tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("trigger: invalid timezone: %w", err)
			}
		}
	}

	if d.Seen != nil {
		if strings.TrimSpace(d.Seen.Path) == "" {
			return fmt.Errorf("seen: path is required")
		}
		if d.Seen.TTL != nil && d.Seen.TTL.Std() < 0 {
			return fmt.Errorf("seen: ttl must be >= 0")
		}
	}

	if d.Server != nil && strings.TrimSpace(d.Server.Listen) == "" {
		return fmt.Errorf("server: listen address is required")
	}

	switch strings.ToLower(d.Output.Format) {
	case "", FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("output: unsupported format %q (expected json or yaml)", d.Output.Format)
	}

	seen := map[string]bool{}
	for i, feed := range d.Feeds {
		label := fmt.Sprintf("feed %d", i)
		if feed.Name != "" {
			label = fmt.Sprintf("feed %q", feed.Name)
		}
		if strings.TrimSpace(feed.URL) == "" {
			return fmt.Errorf("%s: url is required", label)
		}
		u, err := url.Parse(feed.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s: invalid url %q", label, feed.URL)
		}
		if feed.Name != "" {
			if seen[feed.Name] {
				return fmt.Errorf("%s: duplicate feed name", label)
			}
			seen[feed.Name] = true
		}
		if feed.Limit < 0 {
			return fmt.Errorf("%s: limit must be >= 0", label)
		}
		if err := validateFetch(label, feed.FetchConfig); err != nil {
			return err
		}
		for j, rule := range feed.Filters {
			if rule.Name == "" || rule.Rule == "" {
				return fmt.Errorf("%s: filter %d: name and rule are required", label, j)
			}
			switch rule.Result {
			case "", "drop", "keep":
			default:
				return fmt.Errorf("%s: filter %q: result must be drop or keep", label, rule.Name)
			}
		}
	}
	return nil
}

func validateFetch(label string, cfg FetchConfig) error {
	if cfg.Timeout != nil && cfg.Timeout.Std() < 0 {
		return fmt.Errorf("%s: timeout must be >= 0", label)
	}
	if cfg.Trials != nil && *cfg.Trials < 1 {
		return fmt.Errorf("%s: trials must be >= 1", label)
	}
	if cfg.MaxBytes != nil && *cfg.MaxBytes < 0 {
		return fmt.Errorf("%s: max_bytes must be >= 0", label)
	}
	return nil
}

// Resolve merges feed settings over document defaults over env.
func (d *Document) Resolve(feed FeedConfig, env FetchEnvConfig) FetchSettings {
	out := FetchSettings{
		Timeout:   env.Timeout,
		Trials:    env.Trials,
		UserAgent: env.UserAgent,
		MaxBytes:  env.MaxBytes,
	}
	for _, layer := range []FetchConfig{d.Defaults, feed.FetchConfig} {
		if layer.Timeout != nil {
			out.Timeout = layer.Timeout.Std()
		}
		if layer.Trials != nil {
			out.Trials = *layer.Trials
		}
		if layer.UserAgent != "" {
			out.UserAgent = layer.UserAgent
		}
		if layer.MaxBytes != nil {
			out.MaxBytes = *layer.MaxBytes
		}
	}
	return out
}

// SingleFeed builds a document for one URL, used when no config file is given.
func SingleFeed(feedURL string) *Document {
	return &Document{Feeds: []FeedConfig{{URL: feedURL}}}
}
