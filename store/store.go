// Package store connects to the data store and manages session records.
package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/Andresssrr24/Crono-Learn/internal/apperr"
	"github.com/Andresssrr24/Crono-Learn/internal/session"
)

const sessionBucket = "sessions"

var errAlreadyRunning = errors.New(
	"is Crono-Learn already running? Only one instance can be active at a time",
)

// Client is a BoltDB database client. Session records are JSON values in
// a nested bucket per owner under the top-level sessions bucket, keyed by
// session id.
type Client struct {
	*bolt.DB
}

// ownerBucket looks up the owner's session bucket. It never creates one;
// only CreateSession does, so a failed lookup leaves no trace behind.
func (c *Client) ownerBucket(tx *bolt.Tx, owner string) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(sessionBucket)).Bucket([]byte(owner))
	if b == nil {
		return nil, apperr.NotFoundf("no sessions for owner %q", owner)
	}

	return b, nil
}

func (c *Client) CreateSession(
	sess *session.Session,
) (*session.Session, error) {
	created := sess.Clone()
	created.ID = uuid.NewString()

	value, err := json.Marshal(created)
	if err != nil {
		return nil, apperr.Persistence("encoding session", err)
	}

	err = c.Update(func(tx *bolt.Tx) error {
		b, berr := tx.Bucket([]byte(sessionBucket)).
			CreateBucketIfNotExists([]byte(created.Owner))
		if berr != nil {
			return berr
		}

		return b.Put([]byte(created.ID), value)
	})
	if err != nil {
		return nil, apperr.Persistence("creating session", err)
	}

	return created, nil
}

func (c *Client) GetSession(owner, id string) (*session.Session, error) {
	var sess session.Session

	err := c.View(func(tx *bolt.Tx) error {
		b, berr := c.ownerBucket(tx, owner)
		if berr != nil {
			return berr
		}

		sessBytes := b.Get([]byte(id))
		if len(sessBytes) == 0 {
			return apperr.NotFoundf(
				"session %q not found for owner %q", id, owner,
			)
		}

		return json.Unmarshal(sessBytes, &sess)
	})
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, err
		}

		return nil, apperr.Persistence("reading session", err)
	}

	return &sess, nil
}

// UpdateSession applies only the supplied fields inside a single write
// transaction. Bolt serializes writers, so the read-modify-write cannot
// interleave with another update.
func (c *Client) UpdateSession(
	owner, id string,
	upd session.Update,
) (*session.Session, error) {
	var sess session.Session

	err := c.Update(func(tx *bolt.Tx) error {
		b, berr := c.ownerBucket(tx, owner)
		if berr != nil {
			return berr
		}

		sessBytes := b.Get([]byte(id))
		if len(sessBytes) == 0 {
			return apperr.NotFoundf(
				"session %q not found for owner %q", id, owner,
			)
		}

		uerr := json.Unmarshal(sessBytes, &sess)
		if uerr != nil {
			return uerr
		}

		upd.Apply(&sess)

		value, merr := json.Marshal(&sess)
		if merr != nil {
			return merr
		}

		return b.Put([]byte(id), value)
	})
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, err
		}

		return nil, apperr.Persistence("updating session", err)
	}

	return &sess, nil
}

func (c *Client) ListSessions(
	owner string,
	statuses ...session.Status,
) ([]*session.Session, error) {
	var sessions []*session.Session

	err := c.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(sessionBucket)).Bucket([]byte(owner))
		if b == nil {
			// an unknown owner simply has no sessions yet
			return nil
		}

		return b.ForEach(func(_, v []byte) error {
			var sess session.Session

			uerr := json.Unmarshal(v, &sess)
			if uerr != nil {
				return uerr
			}

			if len(statuses) != 0 && !statusMatches(sess.Status, statuses) {
				return nil
			}

			sessions = append(sessions, &sess)

			return nil
		})
	})
	if err != nil {
		return nil, apperr.Persistence("listing sessions", err)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})

	return sessions, nil
}

func (c *Client) DeleteSession(owner, id string) error {
	err := c.Update(func(tx *bolt.Tx) error {
		b, berr := c.ownerBucket(tx, owner)
		if berr != nil {
			return berr
		}

		return b.Delete([]byte(id))
	})
	if err != nil {
		if apperr.IsNotFound(err) {
			return err
		}

		return apperr.Persistence("deleting session", err)
	}

	return nil
}

func (c *Client) CountByStatus() (map[session.Status]int, error) {
	counts := make(map[session.Status]int)

	err := c.View(func(tx *bolt.Tx) error {
		top := tx.Bucket([]byte(sessionBucket))

		return top.ForEachBucket(func(owner []byte) error {
			return top.Bucket(owner).ForEach(func(_, v []byte) error {
				var sess session.Session

				uerr := json.Unmarshal(v, &sess)
				if uerr != nil {
					return uerr
				}

				counts[sess.Status]++

				return nil
			})
		})
	})
	if err != nil {
		return nil, apperr.Persistence("counting sessions", err)
	}

	return counts, nil
}

func statusMatches(s session.Status, statuses []session.Status) bool {
	for _, v := range statuses {
		if s == v {
			return true
		}
	}

	return false
}

// openDB creates or opens a database and locks it.
func openDB(pathToDB string) (*bolt.DB, error) {
	var fileMode fs.FileMode = 0o600

	db, err := bolt.Open(
		pathToDB,
		fileMode,
		&bolt.Options{Timeout: 1 * time.Second},
	)
	if err != nil {
		// another process holding the file lock surfaces as a timeout
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, errAlreadyRunning
		}

		return nil, err
	}

	return db, nil
}

// NewClient returns a wrapper to a BoltDB connection.
func NewClient(dbPath string) (*Client, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	// Create the necessary buckets for storing data if they do not exist already
	err = db.Update(func(tx *bolt.Tx) error {
		_, err = tx.CreateBucketIfNotExists([]byte(sessionBucket))
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		db,
	}, nil
}
