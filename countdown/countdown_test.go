package countdown_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Andresssrr24/Crono-Learn/countdown"
	"github.com/Andresssrr24/Crono-Learn/internal/apperr"
)

// recorder collects callback invocations. The countdown invokes every
// callback from its own goroutine, but assertions run from the test
// goroutine, so access is guarded.
type recorder struct {
	mu        sync.Mutex
	progress  []time.Duration
	completed []time.Duration
	cancelled []time.Duration
}

func (r *recorder) onProgress(elapsed time.Duration) {
	r.mu.Lock()
	r.progress = append(r.progress, elapsed)
	r.mu.Unlock()
}

func (r *recorder) onComplete(elapsed time.Duration) {
	r.mu.Lock()
	r.completed = append(r.completed, elapsed)
	r.mu.Unlock()
}

func (r *recorder) onCancelled(elapsed time.Duration) {
	r.mu.Lock()
	r.cancelled = append(r.cancelled, elapsed)
	r.mu.Unlock()
}

func (r *recorder) snapshot() (progress, completed, cancelled []time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]time.Duration(nil), r.progress...),
		append([]time.Duration(nil), r.completed...),
		append([]time.Duration(nil), r.cancelled...)
}

func TestStartRejectsNonPositiveTarget(t *testing.T) {
	for _, target := range []time.Duration{0, -time.Second} {
		_, err := countdown.Start(countdown.Config{
			Target: target,
			Tick:   time.Millisecond,
		}, nil, nil, nil)

		require.True(t, apperr.IsValidation(err), "target %v: %v", target, err)
	}
}

func TestRunsToCompletion(t *testing.T) {
	rec := &recorder{}

	cfg := countdown.Config{
		Target:      50 * time.Millisecond,
		Tick:        5 * time.Millisecond,
		ReportEvery: 2,
	}

	c, err := countdown.Start(
		cfg, rec.onProgress, rec.onComplete, rec.onCancelled,
	)
	require.NoError(t, err)

	c.Wait()

	require.Equal(t, countdown.OutcomeCompleted, c.Outcome())
	require.Equal(t, cfg.Target, c.Elapsed())

	progress, completed, cancelled := rec.snapshot()

	require.Equal(t, []time.Duration{cfg.Target}, completed)
	require.Empty(t, cancelled)

	// progress fires at the configured cadence, strictly before the
	// target, with strictly increasing elapsed values
	var prev time.Duration
	for _, elapsed := range progress {
		require.Greater(t, elapsed, prev)
		require.Less(t, elapsed, cfg.Target)
		require.Zero(t, elapsed%(cfg.Tick*time.Duration(cfg.ReportEvery)))
		prev = elapsed
	}
}

func TestFractionalFinalTick(t *testing.T) {
	rec := &recorder{}

	// 23ms is not a whole number of 5ms ticks; the final sub-interval is
	// shortened and the leftover still counts toward elapsed
	c, err := countdown.Start(countdown.Config{
		Target: 23 * time.Millisecond,
		Tick:   5 * time.Millisecond,
	}, rec.onProgress, rec.onComplete, rec.onCancelled)
	require.NoError(t, err)

	c.Wait()

	require.Equal(t, countdown.OutcomeCompleted, c.Outcome())
	require.Equal(t, 23*time.Millisecond, c.Elapsed())
}

func TestCancelStopsTicking(t *testing.T) {
	rec := &recorder{}

	cfg := countdown.Config{
		Target: time.Minute,
		Tick:   2 * time.Millisecond,
	}

	c, err := countdown.Start(
		cfg, rec.onProgress, rec.onComplete, rec.onCancelled,
	)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	c.Cancel()
	c.Cancel() // idempotent
	c.Wait()

	require.Equal(t, countdown.OutcomeCancelled, c.Outcome())
	require.Less(t, c.Elapsed(), cfg.Target)

	progress, completed, cancelled := rec.snapshot()

	require.Empty(t, completed)
	require.Len(t, cancelled, 1)
	require.Equal(t, c.Elapsed(), cancelled[0])

	// no further callbacks after the terminal one
	time.Sleep(20 * time.Millisecond)

	laterProgress, _, laterCancelled := rec.snapshot()
	require.Equal(t, progress, laterProgress)
	require.Equal(t, cancelled, laterCancelled)
}

func TestOutcomePendingWhileTicking(t *testing.T) {
	rec := &recorder{}

	c, err := countdown.Start(countdown.Config{
		Target: time.Minute,
		Tick:   5 * time.Millisecond,
	}, rec.onProgress, rec.onComplete, rec.onCancelled)
	require.NoError(t, err)

	require.Equal(t, countdown.OutcomePending, c.Outcome())
	require.Zero(t, c.Elapsed())

	c.Cancel()
	c.Wait()

	require.Equal(t, countdown.OutcomeCancelled, c.Outcome())
}
