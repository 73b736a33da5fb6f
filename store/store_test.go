package store_test

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	bolt "go.etcd.io/bbolt"

	"github.com/Andresssrr24/Crono-Learn/internal/apperr"
	"github.com/Andresssrr24/Crono-Learn/internal/session"
	"github.com/Andresssrr24/Crono-Learn/store"
)

func testClient(t *testing.T) *store.Client {
	t.Helper()

	db, err := store.NewClient(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("unable to open database: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func mustCreate(
	t *testing.T,
	db *store.Client,
	sess *session.Session,
) *session.Session {
	t.Helper()

	created, err := db.CreateSession(sess)
	if err != nil {
		t.Fatalf("unable to create session: %v", err)
	}

	return created
}

func TestNewClientRejectsSecondInstance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	db, err := store.NewClient(path)
	if err != nil {
		t.Fatalf("unable to open database: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	// the file lock is held, so a second open times out
	_, err = store.NewClient(path)
	if err == nil {
		t.Fatal("expected opening a locked database to fail")
	}

	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected the already-running error, got: %v", err)
	}
}

func TestCreateAndGetSession(t *testing.T) {
	db := testClient(t)

	sess := &session.Session{
		Owner:       "user-1",
		WorkSeconds: 1500,
		RestSeconds: 300,
		Label:       "study",
		Status:      session.Scheduled,
		StartedAt:   time.Now(),
	}

	created := mustCreate(t, db, sess)

	if created.ID == "" {
		t.Fatal("expected the created session to be assigned an id")
	}

	if sess.ID != "" {
		t.Fatal("expected the input session to be left unmodified")
	}

	got, err := db.GetSession("user-1", created.ID)
	if err != nil {
		t.Fatalf("unable to read session back: %v", err)
	}

	if diff := cmp.Diff(created, got); diff != "" {
		t.Errorf("unexpected session round trip (-want +got):\n%s", diff)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	db := testClient(t)

	mustCreate(t, db, &session.Session{
		Owner:       "user-1",
		WorkSeconds: 1500,
		Status:      session.Scheduled,
		StartedAt:   time.Now(),
	})

	cases := []struct {
		name  string
		owner string
		id    string
	}{
		{"unknown id", "user-1", "does-not-exist"},
		{"unknown owner", "nobody", "does-not-exist"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := db.GetSession(tc.owner, tc.id)
			if !apperr.IsNotFound(err) {
				t.Fatalf("expected a not-found error, got: %v", err)
			}
		})
	}
}

func TestUpdateSessionAppliesOnlySuppliedFields(t *testing.T) {
	db := testClient(t)

	resumed := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	created := mustCreate(t, db, &session.Session{
		Owner:       "user-1",
		WorkSeconds: 1500,
		RestSeconds: 300,
		Label:       "study",
		Status:      session.Running,
		StartedAt:   time.Now(),
		ResumedAt:   &resumed,
	})

	worked := 600

	got, err := db.UpdateSession("user-1", created.ID, session.Update{
		WorkedSeconds: &worked,
	})
	if err != nil {
		t.Fatalf("unable to update session: %v", err)
	}

	want := created.Clone()
	want.WorkedSeconds = worked

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected partial update (-want +got):\n%s", diff)
	}

	// terminal fieldset clears resumed_at
	stopped := session.Stopped
	ended := resumed.Add(10 * time.Minute)

	got, err = db.UpdateSession("user-1", created.ID, session.Update{
		Status:         &stopped,
		EndedAt:        &ended,
		ClearResumedAt: true,
	})
	if err != nil {
		t.Fatalf("unable to update session: %v", err)
	}

	if got.ResumedAt != nil {
		t.Error("expected resumed_at to be cleared")
	}

	if got.Status != session.Stopped {
		t.Errorf("expected status %q, got %q", session.Stopped, got.Status)
	}

	// the update is persisted, not just returned
	stored, err := db.GetSession("user-1", created.ID)
	if err != nil {
		t.Fatalf("unable to read session back: %v", err)
	}

	if diff := cmp.Diff(got, stored); diff != "" {
		t.Errorf("stored session differs from returned one (-want +got):\n%s", diff)
	}
}

func TestUpdateSessionNotFound(t *testing.T) {
	db := testClient(t)

	mustCreate(t, db, &session.Session{
		Owner:       "user-1",
		WorkSeconds: 1500,
		Status:      session.Scheduled,
		StartedAt:   time.Now(),
	})

	worked := 10

	_, err := db.UpdateSession("user-1", "does-not-exist", session.Update{
		WorkedSeconds: &worked,
	})
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected a not-found error, got: %v", err)
	}
}

func TestListSessions(t *testing.T) {
	db := testClient(t)

	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	// created out of order on purpose
	for i, status := range []session.Status{
		session.Completed,
		session.Paused,
		session.Scheduled,
	} {
		mustCreate(t, db, &session.Session{
			Owner:       "user-1",
			WorkSeconds: 1500,
			Status:      status,
			StartedAt:   base.Add(time.Duration(2-i) * time.Hour),
		})
	}

	mustCreate(t, db, &session.Session{
		Owner:       "user-2",
		WorkSeconds: 1500,
		Status:      session.Paused,
		StartedAt:   base,
	})

	t.Run("all sessions sorted by start time", func(t *testing.T) {
		sessions, err := db.ListSessions("user-1")
		if err != nil {
			t.Fatalf("unable to list sessions: %v", err)
		}

		if len(sessions) != 3 {
			t.Fatalf("expected 3 sessions, got %d", len(sessions))
		}

		for i := 1; i < len(sessions); i++ {
			if sessions[i].StartedAt.Before(sessions[i-1].StartedAt) {
				t.Error("expected sessions in ascending start order")
			}
		}
	})

	t.Run("status filter", func(t *testing.T) {
		sessions, err := db.ListSessions(
			"user-1", session.Paused, session.Completed,
		)
		if err != nil {
			t.Fatalf("unable to list sessions: %v", err)
		}

		if len(sessions) != 2 {
			t.Fatalf("expected 2 sessions, got %d", len(sessions))
		}

		for _, s := range sessions {
			if s.Status != session.Paused && s.Status != session.Completed {
				t.Errorf("unexpected status %q in filtered list", s.Status)
			}
		}
	})

	t.Run("unknown owner has no sessions", func(t *testing.T) {
		sessions, err := db.ListSessions("nobody")
		if err != nil {
			t.Fatalf("unable to list sessions: %v", err)
		}

		if len(sessions) != 0 {
			t.Fatalf("expected no sessions, got %d", len(sessions))
		}
	})
}

func TestDeleteSession(t *testing.T) {
	db := testClient(t)

	created := mustCreate(t, db, &session.Session{
		Owner:       "user-1",
		WorkSeconds: 1500,
		Status:      session.Stopped,
		StartedAt:   time.Now(),
	})

	err := db.DeleteSession("user-1", created.ID)
	if err != nil {
		t.Fatalf("unable to delete session: %v", err)
	}

	_, err = db.GetSession("user-1", created.ID)
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected a not-found error after delete, got: %v", err)
	}
}

func TestCountByStatus(t *testing.T) {
	db := testClient(t)

	for _, ref := range []struct {
		owner  string
		status session.Status
	}{
		{"user-1", session.Running},
		{"user-1", session.Paused},
		{"user-2", session.Paused},
		{"user-3", session.Completed},
	} {
		mustCreate(t, db, &session.Session{
			Owner:       ref.owner,
			WorkSeconds: 1500,
			Status:      ref.status,
			StartedAt:   time.Now(),
		})
	}

	counts, err := db.CountByStatus()
	if err != nil {
		t.Fatalf("unable to count sessions: %v", err)
	}

	want := map[session.Status]int{
		session.Running:   1,
		session.Paused:    2,
		session.Completed: 1,
	}

	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("unexpected counts (-want +got):\n%s", diff)
	}
}

func TestFailedLookupLeavesNoOwnerBucket(t *testing.T) {
	db := testClient(t)

	worked := 10

	_, err := db.UpdateSession("ghost", "some-id", session.Update{
		WorkedSeconds: &worked,
	})
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected a not-found error, got: %v", err)
	}

	if err := db.DeleteSession("ghost", "some-id"); !apperr.IsNotFound(err) {
		t.Fatalf("expected a not-found error, got: %v", err)
	}

	// neither write attempt may create an owner bucket as a side effect
	err = db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte("sessions")).Bucket([]byte("ghost")) != nil {
			t.Error("expected no bucket for an owner that never created a session")
		}

		return nil
	})
	if err != nil {
		t.Fatalf("unable to inspect buckets: %v", err)
	}
}

func TestOwnerScoping(t *testing.T) {
	db := testClient(t)

	created := mustCreate(t, db, &session.Session{
		Owner:       "user-1",
		WorkSeconds: 1500,
		Status:      session.Scheduled,
		StartedAt:   time.Now(),
	})

	// another owner cannot read or update the session even with its id
	_, err := db.GetSession("user-2", created.ID)
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected a not-found error, got: %v", err)
	}

	mustCreate(t, db, &session.Session{
		Owner:       "user-2",
		WorkSeconds: 1500,
		Status:      session.Scheduled,
		StartedAt:   time.Now(),
	})

	worked := 10

	_, err = db.UpdateSession("user-2", created.ID, session.Update{
		WorkedSeconds: &worked,
	})
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected a not-found error, got: %v", err)
	}
}
