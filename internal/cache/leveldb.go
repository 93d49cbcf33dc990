package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"time"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/edgegate-io/edgegate/internal/logging"
)

// storedEntry wraps an Entry with its store-level expiry deadline so the
// backend can enforce TTL without understanding cache semantics.
type storedEntry struct {
	Deadline int64 // unix seconds
	Entry    Entry
}

// LevelStore persists cache entries in an embedded LevelDB database.
// Expired entries are dropped lazily on read and swept by a janitor loop.
type LevelStore struct {
	db     *leveldb.DB
	logger *logging.Logger
}

// NewLevelStore opens (or creates) the database at dir.
func NewLevelStore(dir string, logger *logging.Logger) (*LevelStore, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return &LevelStore{db: db, logger: logger}, nil
}

// Get loads an entry, treating decode failures and passed deadlines as a miss.
func (s *LevelStore) Get(key string) (*Entry, bool) {
	raw, err := s.db.Get([]byte(key), nil)
	if err != nil {
		return nil, false
	}

	var se storedEntry
	if err := decodeGob(raw, &se); err != nil {
		// Corrupt entry: drop it and report a miss.
		_ = s.Delete(key)
		return nil, false
	}
	if time.Now().Unix() > se.Deadline {
		_ = s.Delete(key)
		return nil, false
	}

	entry := se.Entry
	return &entry, true
}

// Put stores an entry with its TTL deadline.
func (s *LevelStore) Put(key string, entry *Entry, ttl time.Duration) error {
	raw, err := encodeGob(storedEntry{
		Deadline: time.Now().Add(ttl).Unix(),
		Entry:    *entry,
	})
	if err != nil {
		return err
	}
	return s.db.Put([]byte(key), raw, nil)
}

// Delete removes an entry.
func (s *LevelStore) Delete(key string) error {
	return s.db.Delete([]byte(key), nil)
}

// Close closes the underlying database.
func (s *LevelStore) Close() error {
	return s.db.Close()
}

// Sweep runs the janitor loop until the context is canceled, deleting
// entries whose store deadline has passed.
func (s *LevelStore) Sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *LevelStore) sweepOnce() {
	now := time.Now().Unix()
	removed := 0

	it := s.db.NewIterator(nil, nil)
	defer it.Release()
	for it.Next() {
		var se storedEntry
		if err := decodeGob(it.Value(), &se); err != nil || now > se.Deadline {
			key := make([]byte, len(it.Key()))
			copy(key, it.Key())
			if err := s.db.Delete(key, nil); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		s.logger.Info("cache_sweep_completed", "removed", removed)
	}
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(raw []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(raw)).Decode(v)
}
