// Package timer operates countdown work sessions for a single owner and
// enforces the session state machine.
package timer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Andresssrr24/Crono-Learn/countdown"
	"github.com/Andresssrr24/Crono-Learn/internal/apperr"
	"github.com/Andresssrr24/Crono-Learn/internal/session"
	"github.com/Andresssrr24/Crono-Learn/internal/timeutil"
	"github.com/Andresssrr24/Crono-Learn/store"
)

const (
	// DefaultReportEvery is the number of ticks between progress writes,
	// so that worked time is not persisted on every tick.
	DefaultReportEvery = 10

	// DefaultMaxActiveSessions caps concurrently ticking sessions per
	// owner.
	DefaultMaxActiveSessions = 5
)

// Opts configures a Manager.
type Opts struct {
	// Tick is the wall-clock size of one logical work second. Production
	// uses one second; tests shrink it to drive sessions quickly.
	Tick time.Duration
	// ReportEvery is the progress-persist cadence in ticks.
	ReportEvery int
	// MaxActiveSessions caps concurrently ticking sessions.
	MaxActiveSessions int
	// Clock supplies timestamps for started_at, resumed_at and ended_at.
	Clock timeutil.Clock
	// OnTerminal, if set, is invoked after a session reaches completed or
	// failed through the ticking path. The manager holds no reference to
	// whoever registered it.
	OnTerminal func(owner, id string, status session.Status)
	Logger     *slog.Logger
}

func (o *Opts) withDefaults() {
	if o.Tick <= 0 || o.Tick > time.Second {
		o.Tick = time.Second
	}

	if o.ReportEvery < 1 {
		o.ReportEvery = DefaultReportEvery
	}

	if o.MaxActiveSessions < 1 {
		o.MaxActiveSessions = DefaultMaxActiveSessions
	}

	if o.Clock == nil {
		o.Clock = timeutil.System
	}

	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// handle binds a session id to its active countdown. Its absence from the
// manager's registry means the session is not currently ticking.
type handle struct {
	mu         sync.Mutex
	cd         *countdown.Countdown
	tickErr    error
	baseWorked int
}

func (h *handle) setCountdown(cd *countdown.Countdown) {
	h.mu.Lock()
	h.cd = cd
	h.mu.Unlock()
}

// failTick records the first progress-persist failure and cancels the
// countdown so the watcher can route it through fail.
func (h *handle) failTick(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.tickErr != nil {
		return
	}

	h.tickErr = err

	if h.cd != nil {
		h.cd.Cancel()
	}
}

func (h *handle) tickError() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.tickErr
}

// Manager is the authoritative state machine for one owner's sessions,
// and the only component permitted to start or cancel countdowns and to
// persist timer fields.
type Manager struct {
	db     store.Store
	logger *slog.Logger
	owner  string
	opts   Opts

	mu      sync.Mutex
	handles map[string]*handle
	locks   map[string]*sync.Mutex
}

// NewManager creates a manager for one owner's sessions.
func NewManager(owner string, db store.Store, opts Opts) *Manager {
	opts.withDefaults()

	return &Manager{
		owner:   owner,
		db:      db,
		opts:    opts,
		logger:  opts.Logger.With(slog.String("owner", owner)),
		handles: make(map[string]*handle),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Owner returns the owning user's identifier.
func (m *Manager) Owner() string {
	return m.owner
}

// sessionLock returns the mutex serializing lifecycle operations for one
// session id.
func (m *Manager) sessionLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}

	return l
}

func (m *Manager) handle(id string) (*handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.handles[id]

	return h, ok
}

// tryRegister reserves a ticking slot for id, enforcing the active
// session limit atomically with registration.
func (m *Manager) tryRegister(id string, h *handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.handles) >= m.opts.MaxActiveSessions {
		return apperr.Validationf(
			"active session limit reached (%d) for owner %q",
			m.opts.MaxActiveSessions, m.owner,
		)
	}

	m.handles[id] = h

	return nil
}

// release removes the handle iff it is still the registered one. The
// caller that wins the release performs the terminal bookkeeping.
func (m *Manager) release(id string, h *handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handles[id] != h {
		return false
	}

	delete(m.handles, id)

	return true
}

// IsTicking reports whether a countdown is currently registered for the
// session. This is purely an in-memory fact, independent of the
// persisted status.
func (m *Manager) IsTicking(id string) bool {
	_, ok := m.handle(id)

	return ok
}

// RunningIDs returns the ids of every session with an active countdown.
func (m *Manager) RunningIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}

	return ids
}

// ticksOf converts countdown elapsed time to whole logical work seconds.
func (m *Manager) ticksOf(elapsed time.Duration) int {
	return int(elapsed / m.opts.Tick)
}

// Create validates and persists a new scheduled session. It does not
// begin ticking; starting is a separate operation.
func (m *Manager) Create(
	workSeconds, restSeconds int,
	label string,
) (*session.Session, error) {
	sess := &session.Session{
		Owner:       m.owner,
		WorkSeconds: workSeconds,
		RestSeconds: restSeconds,
		Label:       label,
		Status:      session.Scheduled,
		StartedAt:   m.opts.Clock.Now(),
	}

	err := sess.Validate()
	if err != nil {
		return nil, err
	}

	created, err := m.db.CreateSession(sess)
	if err != nil {
		return nil, err
	}

	m.logger.Info("session created",
		slog.String("session_id", created.ID),
		slog.Int("work_seconds", workSeconds),
		slog.Int("rest_seconds", restSeconds),
	)

	return created, nil
}

// Run transitions a scheduled or paused session to running and starts a
// countdown for its remaining work time.
func (m *Manager) Run(id string) (*session.Session, error) {
	l := m.sessionLock(id)
	l.Lock()
	defer l.Unlock()

	return m.runLocked(id)
}

func (m *Manager) runLocked(id string) (*session.Session, error) {
	sess, err := m.db.GetSession(m.owner, id)
	if err != nil {
		return nil, err
	}

	if m.IsTicking(id) {
		return nil, apperr.InvalidTransitionf(
			"session %q is already ticking with status %q", id, sess.Status,
		)
	}

	err = session.Transition(sess.Status, session.Running)
	if err != nil {
		return nil, err
	}

	remaining := sess.Remaining()
	if remaining == 0 {
		// nothing left to tick; a paused session can reach its full
		// worked time before resuming
		return m.finalizeCompletion(id)
	}

	h := &handle{baseWorked: sess.WorkedSeconds}

	err = m.tryRegister(id, h)
	if err != nil {
		return nil, err
	}

	now := m.opts.Clock.Now()
	running := session.Running

	sess, err = m.db.UpdateSession(m.owner, id, session.Update{
		Status:    &running,
		ResumedAt: &now,
	})
	if err != nil {
		m.release(id, h)
		return nil, err
	}

	workSeconds := sess.WorkSeconds

	onProgress := func(elapsed time.Duration) {
		worked := h.baseWorked + m.ticksOf(elapsed)
		if worked > workSeconds {
			worked = workSeconds
		}

		_, perr := m.db.UpdateSession(m.owner, id, session.Update{
			WorkedSeconds: &worked,
		})
		if perr != nil {
			h.failTick(perr)
		}
	}

	noop := func(time.Duration) {}

	cd, err := countdown.Start(countdown.Config{
		Target:      time.Duration(remaining) * m.opts.Tick,
		Tick:        m.opts.Tick,
		ReportEvery: m.opts.ReportEvery,
	}, onProgress, noop, noop)
	if err != nil {
		m.release(id, h)
		return nil, err
	}

	h.setCountdown(cd)

	go m.watch(id, h)

	m.logger.Info("session running",
		slog.String("session_id", id),
		slog.Int("remaining_seconds", remaining),
	)

	return sess, nil
}

// watch waits for the countdown to end and performs terminal bookkeeping
// unless a lifecycle call claimed the handle first.
func (m *Manager) watch(id string, h *handle) {
	h.cd.Wait()

	switch h.cd.Outcome() {
	case countdown.OutcomeCompleted:
		l := m.sessionLock(id)
		l.Lock()
		defer l.Unlock()

		if !m.release(id, h) {
			return
		}

		_, err := m.finalizeCompletion(id)
		if err != nil {
			m.logger.Error("finalizing completed session",
				slog.String("session_id", id),
				slog.Any("error", err),
			)
		}
	case countdown.OutcomeCancelled:
		tickErr := h.tickError()
		if tickErr == nil {
			// cancelled by pause/stop, which does its own bookkeeping
			return
		}

		l := m.sessionLock(id)
		l.Lock()
		defer l.Unlock()

		if !m.release(id, h) {
			return
		}

		_, err := m.failLocked(id, tickErr.Error())
		if err != nil {
			m.logger.Error("failing session after tick error",
				slog.String("session_id", id),
				slog.Any("error", err),
			)
		}
	case countdown.OutcomePending:
	}
}

// finalizeCompletion persists the terminal completed state. The caller
// must hold the session lock and have released any handle.
func (m *Manager) finalizeCompletion(id string) (*session.Session, error) {
	sess, err := m.db.GetSession(m.owner, id)
	if err != nil {
		return nil, err
	}

	if sess.Status == session.Completed {
		return sess, nil
	}

	now := m.opts.Clock.Now()
	completed := session.Completed

	sess, err = m.db.UpdateSession(m.owner, id, session.Update{
		Status:         &completed,
		WorkedSeconds:  &sess.WorkSeconds,
		EndedAt:        &now,
		ClearResumedAt: true,
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("session completed",
		slog.String("session_id", id),
		slog.Int("worked_seconds", sess.WorkedSeconds),
	)

	if m.opts.OnTerminal != nil {
		m.opts.OnTerminal(m.owner, id, session.Completed)
	}

	return sess, nil
}

// cancelAndSettle cancels the session's countdown, waits for its terminal
// callback, and returns the worked seconds accumulated up to the
// cancellation point. completedRace is true when the countdown reached
// its target before observing the cancellation; the returned session is
// then the finalized completed record.
func (m *Manager) cancelAndSettle(
	id string,
	sess *session.Session,
) (worked int, completedRace *session.Session, err error) {
	h, ok := m.handle(id)
	if !ok {
		// status says running but nothing is ticking: fall back to
		// wall-clock accounting from the last resume
		worked = sess.WorkedSeconds
		if sess.ResumedAt != nil {
			worked += int(m.opts.Clock.Now().Sub(*sess.ResumedAt).Seconds())
		}

		if worked > sess.WorkSeconds {
			worked = sess.WorkSeconds
		}

		return worked, nil, nil
	}

	h.cd.Cancel()
	h.cd.Wait()

	if h.cd.Outcome() == countdown.OutcomeCompleted {
		m.release(id, h)

		done, ferr := m.finalizeCompletion(id)
		if ferr != nil {
			return 0, nil, ferr
		}

		return done.WorkedSeconds, done, nil
	}

	worked = h.baseWorked + m.ticksOf(h.cd.Elapsed())
	if worked > sess.WorkSeconds {
		worked = sess.WorkSeconds
	}

	m.release(id, h)

	return worked, nil, nil
}

// Pause transitions a running session to paused. It does not return
// until the cancelled countdown has acknowledged and the pause
// bookkeeping has been persisted, so no late progress write can
// overwrite it.
func (m *Manager) Pause(id string) (*session.Session, error) {
	l := m.sessionLock(id)
	l.Lock()
	defer l.Unlock()

	sess, err := m.db.GetSession(m.owner, id)
	if err != nil {
		return nil, err
	}

	err = session.Transition(sess.Status, session.Paused)
	if err != nil {
		return nil, err
	}

	worked, completed, err := m.cancelAndSettle(id, sess)
	if err != nil {
		return nil, err
	}

	if completed != nil {
		// the countdown reached its target before the cancellation was
		// observed; completion wins
		return completed, nil
	}

	paused := session.Paused

	sess, err = m.db.UpdateSession(m.owner, id, session.Update{
		Status:         &paused,
		WorkedSeconds:  &worked,
		ClearResumedAt: true,
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("session paused",
		slog.String("session_id", id),
		slog.Int("worked_seconds", worked),
	)

	return sess, nil
}

// Resume transitions a paused session back to running.
func (m *Manager) Resume(id string) (*session.Session, error) {
	l := m.sessionLock(id)
	l.Lock()
	defer l.Unlock()

	sess, err := m.db.GetSession(m.owner, id)
	if err != nil {
		return nil, err
	}

	if sess.Status != session.Paused {
		return nil, apperr.InvalidTransitionf(
			"cannot resume session with status %q, expected %q",
			sess.Status, session.Paused,
		)
	}

	return m.runLocked(id)
}

// Stop terminally stops a scheduled, running or paused session.
func (m *Manager) Stop(id string) (*session.Session, error) {
	l := m.sessionLock(id)
	l.Lock()
	defer l.Unlock()

	sess, err := m.db.GetSession(m.owner, id)
	if err != nil {
		return nil, err
	}

	err = session.Transition(sess.Status, session.Stopped)
	if err != nil {
		return nil, err
	}

	worked := sess.WorkedSeconds

	if sess.Status == session.Running {
		var completed *session.Session

		worked, completed, err = m.cancelAndSettle(id, sess)
		if err != nil {
			return nil, err
		}

		if completed != nil {
			return completed, nil
		}
	}

	now := m.opts.Clock.Now()
	stopped := session.Stopped

	sess, err = m.db.UpdateSession(m.owner, id, session.Update{
		Status:         &stopped,
		WorkedSeconds:  &worked,
		EndedAt:        &now,
		ClearResumedAt: true,
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("session stopped",
		slog.String("session_id", id),
		slog.Int("worked_seconds", worked),
	)

	return sess, nil
}

// Extend grows the work target of a non-terminal session. An active
// countdown is not disturbed; the added time takes effect on the next
// run or resume.
func (m *Manager) Extend(id string, addSeconds int) (*session.Session, error) {
	if addSeconds <= 0 {
		return nil, apperr.Validationf(
			"extension must be greater than zero, got %d", addSeconds,
		)
	}

	l := m.sessionLock(id)
	l.Lock()
	defer l.Unlock()

	sess, err := m.db.GetSession(m.owner, id)
	if err != nil {
		return nil, err
	}

	if sess.Status.Terminal() {
		return nil, apperr.InvalidTransitionf(
			"cannot extend session with status %q", sess.Status,
		)
	}

	workSeconds := sess.WorkSeconds + addSeconds

	return m.db.UpdateSession(m.owner, id, session.Update{
		WorkSeconds: &workSeconds,
	})
}

// Fail marks a session as failed. It is used for unrecoverable
// conditions encountered in the ticking path.
func (m *Manager) Fail(id, reason string) (*session.Session, error) {
	l := m.sessionLock(id)
	l.Lock()
	defer l.Unlock()

	if h, ok := m.handle(id); ok {
		h.cd.Cancel()
		h.cd.Wait()
		m.release(id, h)
	}

	return m.failLocked(id, reason)
}

// failLocked persists the terminal failed state. The caller must hold
// the session lock and have released any handle.
func (m *Manager) failLocked(id, reason string) (*session.Session, error) {
	sess, err := m.db.GetSession(m.owner, id)
	if err != nil {
		return nil, err
	}

	err = session.Transition(sess.Status, session.Failed)
	if err != nil {
		return nil, err
	}

	now := m.opts.Clock.Now()
	failed := session.Failed

	sess, err = m.db.UpdateSession(m.owner, id, session.Update{
		Status:         &failed,
		EndedAt:        &now,
		ClearResumedAt: true,
	})
	if err != nil {
		return nil, err
	}

	m.logger.Error("session failed",
		slog.String("session_id", id),
		slog.String("reason", reason),
	)

	if m.opts.OnTerminal != nil {
		m.opts.OnTerminal(m.owner, id, session.Failed)
	}

	return sess, nil
}

// Cleanup pauses every ticking session so that no countdown outlives the
// manager and no session is left claiming to run.
func (m *Manager) Cleanup() {
	for _, id := range m.RunningIDs() {
		_, err := m.Pause(id)
		if err != nil && !apperr.IsInvalidTransition(err) {
			m.logger.Error("cleanup pause",
				slog.String("session_id", id),
				slog.Any("error", err),
			)
		}
	}
}
