package instance

import (
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
	"gopkg.in/yaml.v3"
)

const bucketInstances = "instances"

// BoltStore keeps one YAML-encoded record per instance in a bbolt bucket.
// Every operation runs in its own transaction, so readers never observe a
// partially written record.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("instance: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketInstances))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("instance: initialize bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close releases the database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Get(id ID) (Config, error) {
	cfg := DefaultConfig()
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketInstances)).Get([]byte(id.String()))
		if v == nil {
			return nil
		}
		var stored Config
		if err := yaml.Unmarshal(v, &stored); err != nil {
			return err
		}
		cfg = stored.fillDefaults()
		return nil
	})
	if err != nil {
		return DefaultConfig(), fmt.Errorf("instance: read %v: %w", id, err)
	}
	return cfg, nil
}

func (s *BoltStore) Put(id ID, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("instance: encode %v: %w", id, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketInstances)).Put([]byte(id.String()), data)
	})
}

func (s *BoltStore) Delete(id ID) error {
	// bbolt treats deleting a missing key as success.
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketInstances)).Delete([]byte(id.String()))
	})
}

func (s *BoltStore) IDs() ([]ID, error) {
	var ids []ID
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketInstances)).ForEach(func(k, _ []byte) error {
			id, err := ParseID(string(k))
			if err != nil {
				// Foreign key; not ours to interpret.
				return nil
			}
			ids = append(ids, id)
			return nil
		})
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, err
}
