// Package snapshot persists pre-operation copies of tracked files and a
// journal of sync operations, so a working tree left in a transitional state
// by a failed recovery sequence can be restored by hand.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

const (
	contentKeyPrefix = "snap:"
	journalKeyPrefix = "journal:"

	// Content below this size is stored uncompressed.
	compressMinSize = 1024
)

// Entry is one journal record: what operation ran against which path, how it
// ended, and which snapshot (if any) was taken beforehand.
type Entry struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	Op           string    `json:"op"`
	Outcome      string    `json:"outcome"`
	SnapshotHash string    `json:"snapshot_hash,omitempty"`
	At           time.Time `json:"at"`
}

// Store keeps snapshot content and journal entries in badger, fronted by an
// LRU cache for content reads.
type Store struct {
	db    *badger.DB
	cache *lru.Cache[string, string]

	mu  sync.Mutex
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Options configures a Store.
type Options struct {
	CacheSize int
}

// New creates a Store over an open badger database.
func New(db *badger.DB, opts Options) (*Store, error) {
	if opts.CacheSize == 0 {
		opts.CacheSize = 64
	}

	cache, err := lru.New[string, string](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	return &Store{db: db, cache: cache, enc: enc, dec: dec}, nil
}

// Save stores text and returns its content hash. Saving identical content
// twice is a no-op returning the same hash.
func (s *Store) Save(text string) (string, error) {
	sum := sha256.Sum256([]byte(text))
	hash := hex.EncodeToString(sum[:])

	if s.cache.Contains(hash) {
		return hash, nil
	}

	stored := []byte(text)
	if len(stored) >= compressMinSize {
		s.mu.Lock()
		stored = s.enc.EncodeAll(stored, nil)
		s.mu.Unlock()
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(contentKeyPrefix+hash), stored)
	})
	if err != nil {
		return "", fmt.Errorf("storing snapshot: %w", err)
	}

	s.cache.Add(hash, text)
	return hash, nil
}

// Get retrieves snapshot content by hash.
func (s *Store) Get(hash string) (string, error) {
	if text, ok := s.cache.Get(hash); ok {
		return text, nil
	}

	var stored []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(contentKeyPrefix + hash))
		if err == badger.ErrKeyNotFound {
			return ErrSnapshotNotFound
		}
		if err != nil {
			return err
		}
		stored, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return "", err
	}

	text, err := s.decode(stored)
	if err != nil {
		return "", err
	}

	// Verify against the addressed hash before trusting the content.
	sum := sha256.Sum256([]byte(text))
	if hex.EncodeToString(sum[:]) != hash {
		return "", fmt.Errorf("snapshot content hash mismatch for %s", hash)
	}

	s.cache.Add(hash, text)
	return text, nil
}

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

func (s *Store) decode(stored []byte) (string, error) {
	if len(stored) > 4 &&
		stored[0] == zstdMagic[0] && stored[1] == zstdMagic[1] &&
		stored[2] == zstdMagic[2] && stored[3] == zstdMagic[3] {
		s.mu.Lock()
		out, err := s.dec.DecodeAll(stored, nil)
		s.mu.Unlock()
		if err != nil {
			return "", fmt.Errorf("decompressing snapshot: %w", err)
		}
		return string(out), nil
	}
	return string(stored), nil
}

// Record appends a journal entry, assigning it an ID and timestamp.
func (s *Store) Record(path, op, outcome, snapshotHash string) (*Entry, error) {
	e := &Entry{
		ID:           uuid.New().String(),
		Path:         path,
		Op:           op,
		Outcome:      outcome,
		SnapshotHash: snapshotHash,
		At:           time.Now().UTC(),
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}

	// Fixed-width timestamp keeps keys (and therefore iteration) in
	// chronological order.
	key := fmt.Sprintf("%s%s:%s", journalKeyPrefix, e.At.Format("2006-01-02T15:04:05.000000000Z"), e.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return nil, fmt.Errorf("recording journal entry: %w", err)
	}
	return e, nil
}

// History returns journal entries for path, oldest first. A limit of 0 means
// no limit; otherwise the most recent limit entries are returned.
func (s *Store) History(path string, limit int) ([]Entry, error) {
	var entries []Entry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(journalKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return err
			}
			if path == "" || e.Path == path {
				entries = append(entries, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// Close releases the codec resources. The badger DB is owned by the caller.
func (s *Store) Close() {
	s.enc.Close()
	s.dec.Close()
}
