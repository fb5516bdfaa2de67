package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bakkerme/atomsplit/internal/config"
	"github.com/bakkerme/atomsplit/internal/core"
)

// Cron fires on a cron schedule. Ticks that arrive while the previous event
// is still unconsumed are dropped.
type Cron struct {
	schedule string
	timezone string

	mu     sync.Mutex
	cron   *cron.Cron
	events chan core.TriggerEvent
}

func NewCron(schedule, timezone string) *Cron {
	return &Cron{
		schedule: schedule,
		timezone: timezone,
	}
}

// FromConfig returns nil when no trigger is configured.
func FromConfig(cfg *config.TriggerConfig) (core.Trigger, error) {
	if cfg == nil {
		return nil, nil
	}
	if cfg.Cron == nil {
		return nil, fmt.Errorf("unsupported trigger type")
	}
	c := NewCron(cfg.Cron.Schedule, cfg.Cron.Timezone)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cron) Validate() error {
	if c.schedule == "" {
		return fmt.Errorf("cron schedule is required")
	}
	if c.timezone != "" {
		if _, err := time.LoadLocation(c.timezone); err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}
	}
	if _, err := cron.ParseStandard(c.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", c.schedule, err)
	}
	return nil
}

func (c *Cron) Start(ctx context.Context) (<-chan core.TriggerEvent, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	location := time.UTC
	if c.timezone != "" {
		tz, err := time.LoadLocation(c.timezone)
		if err != nil {
			return nil, err
		}
		location = tz
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil, fmt.Errorf("cron trigger already started")
	}

	events := make(chan core.TriggerEvent, 1)
	sched := cron.New(cron.WithLocation(location))
	_, err := sched.AddFunc(c.schedule, func() {
		c.fire(events, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}
	c.events = events
	c.cron = sched
	sched.Start()

	go func() {
		<-ctx.Done()
		_ = c.Stop()
	}()

	return events, nil
}

func (c *Cron) fire(events chan core.TriggerEvent, at time.Time) {
	select {
	case events <- core.TriggerEvent{Timestamp: at}:
	default:
	}
}

// Stop halts the schedule, waits for a running tick and closes the channel.
// It is safe to call more than once.
func (c *Cron) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		ctx := c.cron.Stop()
		<-ctx.Done()
		c.cron = nil
	}
	if c.events != nil {
		close(c.events)
		c.events = nil
	}
	return nil
}
