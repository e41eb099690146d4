package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	m "faultline.dev/pkg/faultline/internal/model"
)

// PredicateSchemaVersion is the version of persisted predicate records. Records of
// other versions are ignored on load.
const PredicateSchemaVersion = 1

var bucketPredicates = []byte("predicates_v1")

// PredicateStore persists accepted predicates so later sessions can reuse them.
type PredicateStore interface {
	// Save records accepted predicates of one location.
	Save(ctx context.Context, records []m.PredicateRecord) error

	// Load returns the records stored for file and line.
	Load(ctx context.Context, file m.Path, line int) ([]m.PredicateRecord, error)

	Close() error
}

// BoltPredicateStore implements PredicateStore with bbolt. Keys are
// "<file>\x00<line>\x00<expression>" so one location's records are a prefix scan.
type BoltPredicateStore struct {
	db *bolt.DB
}

// NewBoltPredicateStore opens (or creates) the store at path, creating its
// directory when needed.
func NewBoltPredicateStore(path m.Path) (*BoltPredicateStore, error) {
	if err := os.MkdirAll(filepath.Dir(string(path)), 0o750); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := bolt.Open(string(path), 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPredicates)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create predicate bucket: %w", err)
	}

	return &BoltPredicateStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltPredicateStore) Close() error {
	return s.db.Close()
}

func locationPrefix(file m.Path, line int) []byte {
	return []byte(string(file) + "\x00" + strconv.Itoa(line) + "\x00")
}

// Save writes records in one transaction, replacing records with the same key.
func (s *BoltPredicateStore) Save(ctx context.Context, records []m.PredicateRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPredicates)

		for _, rec := range records {
			rec.SchemaVersion = PredicateSchemaVersion

			value, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal predicate record: %w", err)
			}

			key := append(locationPrefix(rec.File, rec.Line), rec.Expression...)
			if err := b.Put(key, value); err != nil {
				return err
			}
		}

		return nil
	})
}

// Load scans the records of one location.
func (s *BoltPredicateStore) Load(ctx context.Context, file m.Path, line int) ([]m.PredicateRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []m.PredicateRecord

	prefix := locationPrefix(file, line)

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketPredicates).Cursor()

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec m.PredicateRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("%w: predicate record %q: %v", m.ErrMalformedInput, k, err)
			}

			if rec.SchemaVersion != PredicateSchemaVersion {
				continue
			}

			out = append(out, rec)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
