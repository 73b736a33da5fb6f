package timer

import (
	"fmt"
	"log/slog"

	"github.com/Andresssrr24/Crono-Learn/internal/session"
	"github.com/Andresssrr24/Crono-Learn/store"
)

// Report describes the agreement between the in-memory ticking view and
// the persisted status for one session.
type Report struct {
	SessionID       string         `json:"session_id"`
	Owner           string         `json:"owner"`
	Detail          string         `json:"detail"`
	PersistedStatus session.Status `json:"persisted_status"`
	Ticking         bool           `json:"ticking"`
	Consistent      bool           `json:"consistent"`
}

// Checker detects and repairs divergence between a manager's ticking
// registry and the persisted status field.
type Checker struct {
	manager *Manager
	db      store.Store
}

// NewChecker creates a consistency checker for one manager.
func NewChecker(m *Manager, db store.Store) *Checker {
	return &Checker{manager: m, db: db}
}

// Check compares the ticking fact against the persisted status.
func (c *Checker) Check(id string) (Report, error) {
	sess, err := c.db.GetSession(c.manager.Owner(), id)
	if err != nil {
		return Report{}, err
	}

	ticking := c.manager.IsTicking(id)

	r := Report{
		SessionID:       id,
		Owner:           c.manager.Owner(),
		Ticking:         ticking,
		PersistedStatus: sess.Status,
		Consistent:      ticking == (sess.Status == session.Running),
	}

	switch {
	case r.Consistent:
		r.Detail = "ticking state matches persisted status"
	case ticking:
		r.Detail = fmt.Sprintf(
			"countdown is ticking but persisted status is %q", sess.Status,
		)
	default:
		r.Detail = fmt.Sprintf(
			"persisted status is %q but no countdown is ticking", sess.Status,
		)
	}

	return r, nil
}

// Repair corrects drift between the ticking view and the persisted
// status. A ticking session is trusted over its record and marked
// running; a record claiming to run with no countdown behind it is
// marked stopped, never completed. It returns true when a repair was
// applied and false for an already-consistent session.
func (c *Checker) Repair(id string) (bool, error) {
	r, err := c.Check(id)
	if err != nil {
		return false, err
	}

	if r.Consistent {
		return false, nil
	}

	owner := c.manager.Owner()
	now := c.manager.opts.Clock.Now()

	if r.Ticking {
		running := session.Running

		_, err = c.db.UpdateSession(owner, id, session.Update{
			Status:    &running,
			ResumedAt: &now,
		})
		if err != nil {
			return false, err
		}

		c.manager.logger.Warn("repaired drift: marked ticking session running",
			slog.String("session_id", id),
			slog.String("was", string(r.PersistedStatus)),
		)

		return true, nil
	}

	stopped := session.Stopped

	_, err = c.db.UpdateSession(owner, id, session.Update{
		Status:         &stopped,
		EndedAt:        &now,
		ClearResumedAt: true,
	})
	if err != nil {
		return false, err
	}

	c.manager.logger.Warn("repaired drift: stopped lost running session",
		slog.String("session_id", id),
	)

	return true, nil
}
