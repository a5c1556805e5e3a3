// Package journal provides persistent storage of computed prediction
// results using BoltDB. Each result is stored under its query date, so the
// service keeps an auditable record of what was forecast and when, with
// efficient date-range retrieval.
package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const prediccionesBucket = "predicciones" // Bucket name for stored prediction results

const keyLayout = "2006-01-02"

// Store persists serialized prediction results.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the journal database under dataPath and ensures the
// predictions bucket exists.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "frostcast-data.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(prediccionesBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Guardar stores a prediction result under its query date. A result for the
// same date overwrites the previous one; results are superseded, never
// mutated in place.
func (s *Store) Guardar(fecha time.Time, v any) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(prediccionesBucket))

		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal prediction: %w", err)
		}

		return b.Put([]byte(fecha.Format(keyLayout)), data)
	})
}

// Rango returns the raw stored predictions with query date in [start, end],
// ordered ascending by date.
func (s *Store) Rango(start, end time.Time) ([]json.RawMessage, error) {
	var records []json.RawMessage

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(prediccionesBucket))
		c := b.Cursor()

		startKey := []byte(start.Format(keyLayout))
		endKey := []byte(end.Format(keyLayout))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			record := make(json.RawMessage, len(v))
			copy(record, v)
			records = append(records, record)
		}
		return nil
	})

	return records, err
}
