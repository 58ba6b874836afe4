package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketEvents = []byte("events")
	bucketByTag  = []byte("events_by_tag")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "rustyrobot.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketEvents, bucketByTag} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// AppendEvent persists one event and indexes it by variant tag.
func (s *BoltStore) AppendEvent(event *ArchivedEvent) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketEvents).Put([]byte(event.ID), data); err != nil {
			return err
		}

		tag, err := tx.Bucket(bucketByTag).CreateBucketIfNotExists([]byte(event.Event.Tag()))
		if err != nil {
			return err
		}
		return tag.Put([]byte(event.ID), nil)
	})
}

// GetEvent reads one event by id.
func (s *BoltStore) GetEvent(id string) (*ArchivedEvent, error) {
	var event ArchivedEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketEvents).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("event not found: %s", id)
		}
		return json.Unmarshal(data, &event)
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListEvents reads every archived event of one variant tag. An empty tag
// lists everything.
func (s *BoltStore) ListEvents(tag string) ([]*ArchivedEvent, error) {
	var events []*ArchivedEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		all := tx.Bucket(bucketEvents)

		if tag == "" {
			return all.ForEach(func(k, v []byte) error {
				var event ArchivedEvent
				if err := json.Unmarshal(v, &event); err != nil {
					return err
				}
				events = append(events, &event)
				return nil
			})
		}

		index := tx.Bucket(bucketByTag).Bucket([]byte(tag))
		if index == nil {
			return nil
		}
		return index.ForEach(func(k, v []byte) error {
			data := all.Get(k)
			if data == nil {
				return nil
			}
			var event ArchivedEvent
			if err := json.Unmarshal(data, &event); err != nil {
				return err
			}
			events = append(events, &event)
			return nil
		})
	})
	return events, err
}

// CountEvents returns the number of archived events.
func (s *BoltStore) CountEvents() (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketEvents).Stats().KeyN
		return nil
	})
	return count, err
}
