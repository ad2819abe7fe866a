// Package loop drives sampling and publishing from a single goroutine.
//
// Each iteration reads the clock once and checks two independent due-timers.
// Sampling never blocks; publishing may block on the network, which delays
// the next sample check by the duration of the call.
package loop

import (
	"context"
	"log/slog"
	"time"

	"github.com/itohio/gosense/pkg/metrics"
	"github.com/itohio/gosense/pkg/sample"
)

// Clock is a monotonic time source measured from an arbitrary origin.
type Clock interface {
	Now() time.Duration
}

// MonotonicClock measures time since it was created.
type MonotonicClock struct {
	start time.Time
}

// NewClock starts a clock at zero.
func NewClock() *MonotonicClock {
	return NewClockFrom(time.Now())
}

// NewClockFrom returns a clock measuring from start, usually process start,
// so time spent before the loop (waiting for the network) counts toward the
// first due check.
func NewClockFrom(start time.Time) *MonotonicClock {
	return &MonotonicClock{start: start}
}

// Now returns the time elapsed since the clock was created.
func (c *MonotonicClock) Now() time.Duration {
	return time.Since(c.start)
}

// Sampler updates the state from the sensors.
type Sampler interface {
	Sample(state *sample.State)
}

// Publisher sends the state. The returned outcome is informational.
type Publisher interface {
	Publish(ctx context.Context, state *sample.State) string
}

// Timers hold when each action last ran, on the driver's clock.
type Timers struct {
	LastSampleAt  time.Duration
	LastPublishAt time.Duration
}

// Config contains the loop cadences.
type Config struct {
	SampleInterval  time.Duration
	PublishInterval time.Duration
	Idle            time.Duration // Pause after each iteration; 0 spins
}

// Driver owns the sampled state and the timers.
type Driver struct {
	cfg       Config
	clock     Clock
	sampler   Sampler
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	state  sample.State
	timers Timers

	samples   uint64
	publishes uint64
	outcomes  map[string]uint64
}

// New creates a Driver. Timers start at zero, so the first sample runs once
// the clock has advanced by SampleInterval.
func New(cfg Config, clock Clock, s Sampler, p Publisher, m *metrics.Metrics, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		cfg:       cfg,
		clock:     clock,
		sampler:   s,
		publisher: p,
		metrics:   m,
		logger:    logger,
		outcomes:  make(map[string]uint64),
	}
}

// Step runs whichever actions are due at now. Both checks happen on every
// call. A timer is updated right before its action runs, so a skipped or
// failed publish is never caught up.
func (d *Driver) Step(ctx context.Context, now time.Duration) (sampled, published bool) {
	if now-d.timers.LastSampleAt >= d.cfg.SampleInterval {
		d.timers.LastSampleAt = now
		d.sampler.Sample(&d.state)
		d.metrics.ObserveSample(&d.state)
		d.samples++
		sampled = true
	}

	if now-d.timers.LastPublishAt >= d.cfg.PublishInterval {
		d.timers.LastPublishAt = now
		d.outcomes[d.publisher.Publish(ctx, &d.state)]++
		d.publishes++
		published = true
	}

	return sampled, published
}

// Run steps the loop until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("loop started",
		"sample_interval", d.cfg.SampleInterval,
		"publish_interval", d.cfg.PublishInterval)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("loop stopped",
				"samples", d.samples,
				"publishes", d.publishes,
				"outcomes", d.Outcomes(),
				"event_count", d.state.EventCount)
			return ctx.Err()
		default:
		}

		d.Step(ctx, d.clock.Now())

		if d.cfg.Idle > 0 {
			time.Sleep(d.cfg.Idle)
		}
	}
}

// State returns a copy of the sampled state.
func (d *Driver) State() sample.State {
	return d.state
}

// Timers returns a copy of the timers.
func (d *Driver) Timers() Timers {
	return d.timers
}

// Outcomes returns how many publishes ended with each outcome.
func (d *Driver) Outcomes() map[string]uint64 {
	out := make(map[string]uint64, len(d.outcomes))
	for k, v := range d.outcomes {
		out[k] = v
	}
	return out
}
