package store

import (
	"github.com/Andresssrr24/Crono-Learn/internal/session"
)

// Store is the persistence collaborator consumed by the timer core. Every
// operation is scoped by (owner, id); cross-owner access is not possible.
type Store interface {
	// CreateSession persists a new session and returns it with its
	// assigned id.
	CreateSession(sess *session.Session) (*session.Session, error)
	// GetSession returns the session with the given id for the owner.
	GetSession(owner, id string) (*session.Session, error)
	// UpdateSession applies only the supplied fields to the stored
	// session and returns the updated record.
	UpdateSession(owner, id string, upd session.Update) (*session.Session, error)
	// ListSessions returns the owner's sessions, optionally filtered by
	// status.
	ListSessions(owner string, statuses ...session.Status) ([]*session.Session, error)
	// DeleteSession permanently removes a session.
	DeleteSession(owner, id string) error
	// CountByStatus tallies persisted sessions across all owners.
	CountByStatus() (map[session.Status]int, error)
	// Close ends the database connection.
	Close() error
}
