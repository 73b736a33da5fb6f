// Package session defines countdown work sessions and their state machine.
package session

import (
	"time"

	"github.com/Andresssrr24/Crono-Learn/internal/apperr"
)

// MaxLabelLength caps the free-text session label.
const MaxLabelLength = 100

// Status is the persisted lifecycle state of a session.
type Status string

const (
	Scheduled Status = "scheduled"
	Running   Status = "running"
	Paused    Status = "paused"
	Stopped   Status = "stopped"
	Completed Status = "completed"
	Failed    Status = "failed"
)

// Statuses lists every legal status value.
var Statuses = []Status{
	Scheduled, Running, Paused, Stopped, Completed, Failed,
}

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case Scheduled, Running, Paused, Stopped, Completed, Failed:
		return true
	}

	return false
}

// Terminal reports whether no further lifecycle transition is allowed.
func (s Status) Terminal() bool {
	switch s {
	case Stopped, Completed, Failed:
		return true
	case Scheduled, Running, Paused:
		return false
	}

	return false
}

// Transition validates a lifecycle transition. It returns an
// invalid-transition error naming the attempted and current status
// whenever the state machine forbids the move.
func Transition(from, to Status) error {
	allowed := false

	switch from {
	case Scheduled:
		switch to {
		case Running, Stopped, Failed:
			allowed = true
		case Scheduled, Paused, Completed:
		}
	case Running:
		switch to {
		case Paused, Stopped, Completed, Failed:
			allowed = true
		case Scheduled, Running:
		}
	case Paused:
		switch to {
		case Running, Stopped, Failed:
			allowed = true
		case Scheduled, Paused, Completed:
		}
	case Stopped, Completed, Failed:
	}

	if !allowed {
		return apperr.InvalidTransitionf(
			"cannot transition session from %q to %q", from, to,
		)
	}

	return nil
}

// Session is one countdown work/rest record owned by a single user.
type Session struct {
	StartedAt     time.Time  `json:"started_at"`
	ResumedAt     *time.Time `json:"resumed_at,omitempty"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	ID            string     `json:"id"`
	Owner         string     `json:"owner"`
	Label         string     `json:"label,omitempty"`
	Status        Status     `json:"status"`
	WorkSeconds   int        `json:"work_seconds"`
	RestSeconds   int        `json:"rest_seconds"`
	WorkedSeconds int        `json:"worked_seconds"`
}

// Validate checks the creation-time invariants.
func (s *Session) Validate() error {
	if s.WorkSeconds <= 0 {
		return apperr.Validationf(
			"work duration must be greater than zero, got %d", s.WorkSeconds,
		)
	}

	if s.RestSeconds < 0 {
		return apperr.Validationf(
			"rest duration cannot be negative, got %d", s.RestSeconds,
		)
	}

	if len(s.Label) > MaxLabelLength {
		return apperr.Validationf(
			"label exceeds %d characters", MaxLabelLength,
		)
	}

	return nil
}

// Remaining returns the work seconds left before completion.
func (s *Session) Remaining() int {
	r := s.WorkSeconds - s.WorkedSeconds
	if r < 0 {
		return 0
	}

	return r
}

// Clone returns a deep copy so that callers cannot mutate stored records.
func (s *Session) Clone() *Session {
	c := *s

	if s.ResumedAt != nil {
		t := *s.ResumedAt
		c.ResumedAt = &t
	}

	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}

	return &c
}

// Update is a partial fieldset applied to a persisted session. Only
// non-nil fields are written; ClearResumedAt removes the resume marker.
type Update struct {
	Status        *Status
	WorkSeconds   *int
	WorkedSeconds *int
	ResumedAt     *time.Time
	EndedAt       *time.Time
	Label         *string

	ClearResumedAt bool
}

// Apply copies the supplied fields onto sess.
func (u Update) Apply(sess *Session) {
	if u.Status != nil {
		sess.Status = *u.Status
	}

	if u.WorkSeconds != nil {
		sess.WorkSeconds = *u.WorkSeconds
	}

	if u.WorkedSeconds != nil {
		sess.WorkedSeconds = *u.WorkedSeconds
	}

	if u.ResumedAt != nil {
		t := *u.ResumedAt
		sess.ResumedAt = &t
	}

	if u.ClearResumedAt {
		sess.ResumedAt = nil
	}

	if u.EndedAt != nil {
		t := *u.EndedAt
		sess.EndedAt = &t
	}

	if u.Label != nil {
		sess.Label = *u.Label
	}
}

// Summary is the status view returned to callers of GetSessionStatus.
type Summary struct {
	StartedAt        time.Time  `json:"started_at"`
	ResumedAt        *time.Time `json:"resumed_at,omitempty"`
	ID               string     `json:"id"`
	Label            string     `json:"label,omitempty"`
	Status           Status     `json:"status"`
	WorkSeconds      int        `json:"work_seconds"`
	WorkedSeconds    int        `json:"worked_seconds"`
	RemainingSeconds int        `json:"remaining_seconds"`
	Ticking          bool       `json:"ticking"`
	Active           bool       `json:"active"`
}

// Summarize builds a Summary from a persisted session and the in-memory
// ticking and active-tracking facts.
func Summarize(sess *Session, ticking, active bool) Summary {
	return Summary{
		ID:               sess.ID,
		Label:            sess.Label,
		Status:           sess.Status,
		WorkSeconds:      sess.WorkSeconds,
		WorkedSeconds:    sess.WorkedSeconds,
		RemainingSeconds: sess.Remaining(),
		StartedAt:        sess.StartedAt,
		ResumedAt:        sess.ResumedAt,
		Ticking:          ticking,
		Active:           active,
	}
}
