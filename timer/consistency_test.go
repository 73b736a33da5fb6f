package timer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Andresssrr24/Crono-Learn/internal/session"
	"github.com/Andresssrr24/Crono-Learn/timer"
)

func TestCheckFreshSessionsAreConsistent(t *testing.T) {
	db := newTestStore(t)
	m := newTestManager(t, db, timer.Opts{})
	checker := timer.NewChecker(m, db)

	sess, err := m.Create(600, 0, "")
	require.NoError(t, err)

	// scheduled and not ticking
	report, err := checker.Check(sess.ID)
	require.NoError(t, err)
	require.True(t, report.Consistent)
	require.False(t, report.Ticking)
	require.Equal(t, session.Scheduled, report.PersistedStatus)

	// running and ticking
	_, err = m.Run(sess.ID)
	require.NoError(t, err)

	report, err = checker.Check(sess.ID)
	require.NoError(t, err)
	require.True(t, report.Consistent)
	require.True(t, report.Ticking)
	require.Equal(t, session.Running, report.PersistedStatus)

	// paused and not ticking
	_, err = m.Pause(sess.ID)
	require.NoError(t, err)

	report, err = checker.Check(sess.ID)
	require.NoError(t, err)
	require.True(t, report.Consistent)
	require.False(t, report.Ticking)

	// no repair needed at any point
	repaired, err := checker.Repair(sess.ID)
	require.NoError(t, err)
	require.False(t, repaired)
}

func TestRepairLostRunningSession(t *testing.T) {
	db := newTestStore(t)
	m := newTestManager(t, db, timer.Opts{})
	checker := timer.NewChecker(m, db)

	sess, err := m.Create(600, 0, "")
	require.NoError(t, err)

	// fake a record claiming to run with no countdown behind it, as left
	// behind by a crash
	running := session.Running
	now := time.Now()

	_, err = db.UpdateSession(testOwner, sess.ID, session.Update{
		Status:    &running,
		ResumedAt: &now,
	})
	require.NoError(t, err)

	report, err := checker.Check(sess.ID)
	require.NoError(t, err)
	require.False(t, report.Consistent)
	require.False(t, report.Ticking)

	repaired, err := checker.Repair(sess.ID)
	require.NoError(t, err)
	require.True(t, repaired)

	// the repair stops the session rather than fabricating completion
	got, err := db.GetSession(testOwner, sess.ID)
	require.NoError(t, err)
	require.Equal(t, session.Stopped, got.Status)
	require.NotNil(t, got.EndedAt)
	require.Nil(t, got.ResumedAt)

	// repairing again is a no-op
	repaired, err = checker.Repair(sess.ID)
	require.NoError(t, err)
	require.False(t, repaired)
}

func TestRepairTickingSessionWithStaleStatus(t *testing.T) {
	db := newTestStore(t)
	m := newTestManager(t, db, timer.Opts{})
	checker := timer.NewChecker(m, db)

	sess, err := m.Create(600, 0, "")
	require.NoError(t, err)

	_, err = m.Run(sess.ID)
	require.NoError(t, err)

	// fake a stale record while the countdown keeps ticking
	paused := session.Paused

	_, err = db.UpdateSession(testOwner, sess.ID, session.Update{
		Status: &paused,
	})
	require.NoError(t, err)

	report, err := checker.Check(sess.ID)
	require.NoError(t, err)
	require.False(t, report.Consistent)
	require.True(t, report.Ticking)

	// the live countdown is trusted over the record
	repaired, err := checker.Repair(sess.ID)
	require.NoError(t, err)
	require.True(t, repaired)

	got, err := db.GetSession(testOwner, sess.ID)
	require.NoError(t, err)
	require.Equal(t, session.Running, got.Status)
	require.NotNil(t, got.ResumedAt)

	repaired, err = checker.Repair(sess.ID)
	require.NoError(t, err)
	require.False(t, repaired)

	m.Cleanup()
}
