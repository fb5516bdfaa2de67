package core

import (
	"context"
	"time"
)

// TriggerEvent represents a trigger firing.
type TriggerEvent struct {
	Timestamp time.Time
}

// Trigger decides when the runner processes its feeds.
type Trigger interface {
	// Start begins the trigger and returns a channel of events. The channel is
	// closed when the trigger stops.
	Start(ctx context.Context) (<-chan TriggerEvent, error)
	Stop() error
}
