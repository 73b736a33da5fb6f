// Package orchestrator fans lifecycle calls out to per-owner session
// managers and aggregates cross-owner views.
package orchestrator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Andresssrr24/Crono-Learn/internal/session"
	"github.com/Andresssrr24/Crono-Learn/store"
	"github.com/Andresssrr24/Crono-Learn/timer"
)

// Orchestrator is the process-wide registry of session managers, created
// lazily per owner. The registry mutex protects only registry and
// active-session bookkeeping; it is never held across a lifecycle call
// into a manager.
type Orchestrator struct {
	db     store.Store
	opts   timer.Opts
	logger *slog.Logger

	mu       sync.Mutex
	managers map[string]*timer.Manager
	active   map[string]map[string]struct{}
}

// New creates an orchestrator. The supplied manager options are applied
// to every manager it creates.
func New(db store.Store, opts timer.Opts, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		db:       db,
		opts:     opts,
		logger:   logger,
		managers: make(map[string]*timer.Manager),
		active:   make(map[string]map[string]struct{}),
	}

	// terminal sessions fall out of active tracking without the manager
	// ever holding a reference back to the orchestrator
	o.opts.OnTerminal = o.discardActive

	return o
}

// manager returns the owner's session manager, creating it on first
// reference.
func (o *Orchestrator) manager(owner string) *timer.Manager {
	o.mu.Lock()
	defer o.mu.Unlock()

	m, ok := o.managers[owner]
	if !ok {
		m = timer.NewManager(owner, o.db, o.opts)
		o.managers[owner] = m
		o.active[owner] = make(map[string]struct{})

		o.logger.Info("created session manager",
			slog.String("owner", owner),
		)
	}

	return m
}

// trackActive records the session as active. It reports whether a new
// entry was inserted, so an error path can tell a fresh entry from one
// that predates the call.
func (o *Orchestrator) trackActive(owner, id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active[owner] == nil {
		o.active[owner] = make(map[string]struct{})
	}

	if _, ok := o.active[owner][id]; ok {
		return false
	}

	o.active[owner][id] = struct{}{}

	return true
}

func (o *Orchestrator) discardActive(owner, id string, _ session.Status) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if ids, ok := o.active[owner]; ok {
		delete(ids, id)
	}
}

// StartSession creates a new session for the owner and immediately
// begins ticking it.
func (o *Orchestrator) StartSession(
	owner string,
	workSeconds, restSeconds int,
	label string,
) (*session.Session, error) {
	m := o.manager(owner)

	sess, err := m.Create(workSeconds, restSeconds, label)
	if err != nil {
		return nil, err
	}

	// track before the countdown exists so a near-instant completion
	// cannot have its terminal discard outrun the tracking
	id := sess.ID
	o.trackActive(owner, id)

	sess, err = m.Run(id)
	if err != nil {
		o.discardActive(owner, id, session.Failed)
		return nil, err
	}

	if sess.Status != session.Running {
		o.discardActive(owner, id, sess.Status)
	}

	return sess, nil
}

// PauseSession pauses a running session.
func (o *Orchestrator) PauseSession(
	owner, id string,
) (*session.Session, error) {
	sess, err := o.manager(owner).Pause(id)
	if err != nil {
		return nil, err
	}

	o.discardActive(owner, id, sess.Status)

	return sess, nil
}

// ResumeSession resumes a paused session.
func (o *Orchestrator) ResumeSession(
	owner, id string,
) (*session.Session, error) {
	m := o.manager(owner)

	added := o.trackActive(owner, id)

	sess, err := m.Resume(id)
	if err != nil {
		if added {
			o.discardActive(owner, id, session.Failed)
		}

		return nil, err
	}

	// a resume can finalize completion immediately when no work remains
	if sess.Status != session.Running {
		o.discardActive(owner, id, sess.Status)
	}

	return sess, nil
}

// StopSession terminally stops a session.
func (o *Orchestrator) StopSession(
	owner, id string,
) (*session.Session, error) {
	sess, err := o.manager(owner).Stop(id)
	if err != nil {
		return nil, err
	}

	o.discardActive(owner, id, sess.Status)

	return sess, nil
}

// ExtendSession grows the work target of a non-terminal session.
func (o *Orchestrator) ExtendSession(
	owner, id string,
	addSeconds int,
) (*session.Session, error) {
	return o.manager(owner).Extend(id, addSeconds)
}

// GetSessionStatus returns the status summary for one session,
// including the in-memory ticking fact.
func (o *Orchestrator) GetSessionStatus(
	owner, id string,
) (session.Summary, error) {
	m := o.manager(owner)

	sess, err := o.db.GetSession(owner, id)
	if err != nil {
		return session.Summary{}, err
	}

	o.mu.Lock()
	_, active := o.active[owner][id]
	o.mu.Unlock()

	return session.Summarize(sess, m.IsTicking(id), active), nil
}

// ListRunningSessions returns a summary for every session the owner's
// manager is currently ticking.
func (o *Orchestrator) ListRunningSessions(
	owner string,
) ([]session.Summary, error) {
	m := o.manager(owner)

	var summaries []session.Summary

	for _, id := range m.RunningIDs() {
		sess, err := o.db.GetSession(owner, id)
		if err != nil {
			return nil, err
		}

		o.mu.Lock()
		_, active := o.active[owner][id]
		o.mu.Unlock()

		summaries = append(summaries, session.Summarize(sess, true, active))
	}

	return summaries, nil
}

// ListSessions returns the owner's persisted sessions, optionally
// filtered by status.
func (o *Orchestrator) ListSessions(
	owner string,
	statuses ...session.Status,
) ([]*session.Session, error) {
	return o.db.ListSessions(owner, statuses...)
}

// CleanupOwner cancels every active countdown for the owner and removes
// the owner's manager from the registry.
func (o *Orchestrator) CleanupOwner(owner string) {
	o.mu.Lock()
	m, ok := o.managers[owner]
	o.mu.Unlock()

	if !ok {
		return
	}

	// pause outside the registry lock; other owners' operations must not
	// serialize behind this
	m.Cleanup()

	o.mu.Lock()
	delete(o.managers, owner)
	delete(o.active, owner)
	o.mu.Unlock()

	o.logger.Info("cleaned up owner", slog.String("owner", owner))
}

// Shutdown cleans up every owner, pausing all ticking sessions.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	owners := make([]string, 0, len(o.managers))

	for owner := range o.managers {
		owners = append(owners, owner)
	}
	o.mu.Unlock()

	for _, owner := range owners {
		o.CleanupOwner(owner)
	}
}

// Stats is a system-wide snapshot across owners and the store.
type Stats struct {
	CountsByStatus      map[session.Status]int `json:"counts_by_status"`
	TotalOwners         int                    `json:"total_owners"`
	ActiveOwners        int                    `json:"active_owners"`
	TotalActiveSessions int                    `json:"total_active_sessions"`
}

// SystemStats aggregates registry and persisted counts.
func (o *Orchestrator) SystemStats() (Stats, error) {
	counts, err := o.db.CountByStatus()
	if err != nil {
		return Stats{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	s := Stats{
		TotalOwners:    len(o.managers),
		CountsByStatus: counts,
	}

	for _, ids := range o.active {
		s.TotalActiveSessions += len(ids)
		if len(ids) > 0 {
			s.ActiveOwners++
		}
	}

	return s, nil
}

// HealthStatus is the overall outcome of a health check.
type HealthStatus string

const (
	Healthy  HealthStatus = "healthy"
	Degraded HealthStatus = "degraded"
)

// Health reports orchestrator bookkeeping anomalies.
type Health struct {
	Timestamp      time.Time    `json:"timestamp"`
	Status         HealthStatus `json:"status"`
	Issues         []string     `json:"issues,omitempty"`
	OwnerCount     int          `json:"owner_count"`
	ActiveSessions int          `json:"active_sessions"`
}

// HealthCheck flags active-session bookkeeping not backed by a manager,
// and ticking sessions missing from the active set.
func (o *Orchestrator) HealthCheck() Health {
	o.mu.Lock()

	h := Health{
		Status:     Healthy,
		Timestamp:  time.Now(),
		OwnerCount: len(o.managers),
	}

	type ownerView struct {
		manager *timer.Manager
		active  map[string]struct{}
	}

	views := make(map[string]ownerView, len(o.managers))

	for owner, ids := range o.active {
		h.ActiveSessions += len(ids)

		m := o.managers[owner]
		if m == nil && len(ids) > 0 {
			h.Issues = append(h.Issues,
				"orphaned active sessions for owner "+owner,
			)
		}

		if m != nil {
			active := make(map[string]struct{}, len(ids))
			for id := range ids {
				active[id] = struct{}{}
			}

			views[owner] = ownerView{manager: m, active: active}
		}
	}
	o.mu.Unlock()

	// manager calls happen outside the registry lock
	for owner, v := range views {
		for _, id := range v.manager.RunningIDs() {
			if _, ok := v.active[id]; !ok {
				h.Issues = append(h.Issues,
					"ticking session "+id+" is not tracked for owner "+owner,
				)
			}
		}
	}

	if len(h.Issues) > 0 {
		h.Status = Degraded
	}

	return h
}

// CheckConsistency compares the ticking view against the persisted
// status for one session.
func (o *Orchestrator) CheckConsistency(
	owner, id string,
) (timer.Report, error) {
	m := o.manager(owner)

	return timer.NewChecker(m, o.db).Check(id)
}

// RepairConsistency repairs drift for one session. It returns true when
// a repair was applied.
func (o *Orchestrator) RepairConsistency(owner, id string) (bool, error) {
	m := o.manager(owner)

	return timer.NewChecker(m, o.db).Repair(id)
}
