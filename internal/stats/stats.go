// Package stats tracks pipeline counters and periodically reports them.
package stats

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Snapshot is a point-in-time view of the pipeline counters.
type Snapshot struct {
	Captured      uint64 // records delivered by the radio
	Dropped       uint64 // records rejected by the full queue
	FramesWritten uint64 // frames that reached the transport
	BytesWritten  uint64
}

// Provider exposes a pipeline counters snapshot.
type Provider interface {
	Snapshot() Snapshot
}

// Counters is the pipeline's shared counter set. All methods are safe
// for concurrent use; the increment paths are single atomic adds so the
// producer may call them from the radio's delivery context.
type Counters struct {
	captured      atomic.Uint64
	framesWritten atomic.Uint64
	bytesWritten  atomic.Uint64

	// dropped is sampled from the queue rather than counted here, so the
	// queue stays the single source of truth for its own drop policy.
	dropped func() uint64
}

// NewCounters creates a counter set. droppedFn supplies the queue's drop
// count; it may be nil.
func NewCounters(droppedFn func() uint64) *Counters {
	return &Counters{dropped: droppedFn}
}

// Captured records one radio delivery.
func (c *Counters) Captured() {
	c.captured.Add(1)
}

// Wrote records one successful transport write of n bytes.
func (c *Counters) Wrote(n int) {
	c.framesWritten.Add(1)
	c.bytesWritten.Add(uint64(n))
}

func (c *Counters) Snapshot() Snapshot {
	s := Snapshot{
		Captured:      c.captured.Load(),
		FramesWritten: c.framesWritten.Load(),
		BytesWritten:  c.bytesWritten.Load(),
	}
	if c.dropped != nil {
		s.Dropped = c.dropped()
	}
	return s
}

// WithLogger sets the logger for the reporter.
func WithLogger(logger *slog.Logger) func(*Reporter) {
	return func(r *Reporter) {
		r.logger = logger
	}
}

// Reporter logs one summary line per interval: capture and write totals
// plus the rates over the last interval.
type Reporter struct {
	provider Provider
	interval time.Duration
	logger   *slog.Logger
}

// NewReporter creates a reporter reading from provider every interval.
func NewReporter(provider Provider, interval time.Duration, options ...func(*Reporter)) (*Reporter, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("invalid report interval: %s", interval)
	}

	r := Reporter{
		provider: provider,
		interval: interval,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	return &r, nil
}

// Run reports until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var last Snapshot
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			s := r.provider.Snapshot()

			rate := float64(s.BytesWritten-last.BytesWritten) / r.interval.Seconds()
			rateSI, rateSuffix := humanize.ComputeSI(rate)

			r.logger.Info("pipeline stats",
				slog.Uint64("captured", s.Captured),
				slog.Uint64("dropped", s.Dropped),
				slog.Uint64("framesWritten", s.FramesWritten),
				slog.String("bytesWritten", humanize.Bytes(s.BytesWritten)),
				slog.String("writeRate", fmt.Sprintf("%.1f %sB/s", rateSI, rateSuffix)))

			last = s
		}
	}
}
