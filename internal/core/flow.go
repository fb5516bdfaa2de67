package core

import (
	"time"

	"github.com/bakkerme/atomsplit/internal/atom"
)

// Run represents a single pass over every configured feed.
type Run struct {
	ID          string       `json:"id" yaml:"id"`
	StartedAt   time.Time    `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Status      RunStatus    `json:"status" yaml:"status"`
	Feeds       []FeedResult `json:"feeds" yaml:"feeds"`
}

// FeedResult holds what one feed produced during a run. Entries may be
// present together with Error when parsing failed part way.
type FeedResult struct {
	Name    string       `json:"name,omitempty" yaml:"name,omitempty"`
	URL     string       `json:"url" yaml:"url"`
	Bytes   int          `json:"bytes" yaml:"bytes"`
	Entries []atom.Entry `json:"entries" yaml:"entries"`
	Dropped int          `json:"dropped,omitempty" yaml:"dropped,omitempty"`
	Error   string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunStatus represents the current state of a run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)
