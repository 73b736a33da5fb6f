// Package countdown implements the cancellable ticking primitive that
// advances a session's elapsed time and reports progress.
package countdown

import (
	"context"
	"time"

	"github.com/Andresssrr24/Crono-Learn/internal/apperr"
)

// DefaultTick is the sub-interval used when none is configured. It also
// bounds the worst-case cancellation latency.
const DefaultTick = time.Second

// Outcome is the terminal result of one countdown run.
type Outcome int

const (
	// OutcomePending means the countdown is still ticking.
	OutcomePending Outcome = iota
	// OutcomeCompleted means the countdown reached its target.
	OutcomeCompleted
	// OutcomeCancelled means cancellation was observed before the target.
	OutcomeCancelled
)

// Config controls a single countdown run.
type Config struct {
	// Target is the total duration to count down.
	Target time.Duration
	// Tick is the sub-interval size. Cancellation is only observed at
	// sub-interval boundaries. Defaults to DefaultTick.
	Tick time.Duration
	// ReportEvery is the number of ticks between progress callbacks.
	// Values below 1 default to 1.
	ReportEvery int
}

// Countdown is a single cancellable timer run. Exactly one of the
// onComplete/onCancelled callbacks fires per Start, exactly once, and no
// ticking occurs after either has fired.
type Countdown struct {
	cancel  context.CancelFunc
	done    chan struct{}
	elapsed time.Duration
	outcome Outcome
}

// Start begins ticking and returns immediately; the countdown runs in its
// own goroutine. It fails only on a non-positive target. The callbacks
// are invoked from the countdown goroutine: onProgress at the configured
// cadence with the elapsed time so far, and one of onComplete/onCancelled
// when the run ends.
func Start(
	cfg Config,
	onProgress func(elapsed time.Duration),
	onComplete func(elapsed time.Duration),
	onCancelled func(elapsed time.Duration),
) (*Countdown, error) {
	if cfg.Target <= 0 {
		return nil, apperr.Validationf(
			"countdown target must be greater than zero, got %v", cfg.Target,
		)
	}

	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}

	if cfg.ReportEvery < 1 {
		cfg.ReportEvery = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Countdown{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go c.run(ctx, cfg, onProgress, onComplete, onCancelled)

	return c, nil
}

func (c *Countdown) run(
	ctx context.Context,
	cfg Config,
	onProgress, onComplete, onCancelled func(time.Duration),
) {
	defer close(c.done)

	t := time.NewTimer(cfg.Tick)
	if !t.Stop() {
		<-t.C
	}

	defer t.Stop()

	var (
		elapsed time.Duration
		ticks   int
	)

	for elapsed < cfg.Target {
		step := cfg.Tick
		if remaining := cfg.Target - elapsed; remaining < step {
			// shortened final sub-interval; its fractional leftover is
			// still included in the reported elapsed value
			step = remaining
		}

		t.Reset(step)

		select {
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}

			c.elapsed = elapsed
			c.outcome = OutcomeCancelled
			onCancelled(elapsed)

			return
		case <-t.C:
			elapsed += step
			ticks++
		}

		if elapsed < cfg.Target && ticks%cfg.ReportEvery == 0 {
			onProgress(elapsed)
		}
	}

	c.elapsed = elapsed
	c.outcome = OutcomeCompleted
	onComplete(elapsed)
}

// Cancel requests cooperative cancellation. It is idempotent and does not
// block; the in-flight tick observes the request at its next check point.
func (c *Countdown) Cancel() {
	c.cancel()
}

// Wait blocks until the terminal callback has returned.
func (c *Countdown) Wait() {
	<-c.done
}

// Outcome reports the terminal result. It is only meaningful after Wait.
func (c *Countdown) Outcome() Outcome {
	select {
	case <-c.done:
		return c.outcome
	default:
		return OutcomePending
	}
}

// Elapsed returns the accumulated elapsed time. It is only meaningful
// after Wait.
func (c *Countdown) Elapsed() time.Duration {
	select {
	case <-c.done:
		return c.elapsed
	default:
		return 0
	}
}
