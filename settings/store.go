// Package settings persists the user's contract acknowledgement marks
// across sessions.
package settings

import (
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"gitlab.com/zanolabs/escrowd/contracts"
)

var (
	bucketViewed    = []byte("viewed_contracts")
	bucketNotViewed = []byte("not_viewed_contracts")
)

// Store is a small bolt database holding the viewed / not-viewed mark
// ledgers, keyed by the composite contract identity.
type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketViewed, bucketNotViewed} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LoadMarks restores both ledgers as persisted by the last session.
func (s *Store) LoadMarks() (viewed, notViewed []contracts.Mark, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		var err error
		viewed, err = readBucket(tx, bucketViewed)
		if err != nil {
			return err
		}
		notViewed, err = readBucket(tx, bucketNotViewed)
		return err
	})
	return viewed, notViewed, err
}

// SaveMarks replaces the persisted ledgers with the given snapshot.
func (s *Store) SaveMarks(viewed, notViewed []contracts.Mark) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := writeBucket(tx, bucketViewed, viewed); err != nil {
			return err
		}
		return writeBucket(tx, bucketNotViewed, notViewed)
	})
}

func readBucket(tx *bolt.Tx, name []byte) ([]contracts.Mark, error) {
	var marks []contracts.Mark
	b := tx.Bucket(name)
	if b == nil {
		return nil, nil
	}
	err := b.ForEach(func(k, v []byte) error {
		var m contracts.Mark
		if err := json.Unmarshal(v, &m); err != nil {
			return err
		}
		marks = append(marks, m)
		return nil
	})
	return marks, err
}

func writeBucket(tx *bolt.Tx, name []byte, marks []contracts.Mark) error {
	if err := tx.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
		return err
	}
	b, err := tx.CreateBucket(name)
	if err != nil {
		return err
	}
	for _, m := range marks {
		payload, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(m.Key().String()), payload); err != nil {
			return err
		}
	}
	return nil
}
