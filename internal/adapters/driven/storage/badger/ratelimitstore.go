package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
	"github.com/custodia-labs/corpus/internal/logger"
)

// Key prefixes.
const (
	counterPrefix = "rlc:"
	blockPrefix   = "rlb:"
	keySep        = "\x00"
)

// Ensure RateLimitStore implements the interface.
var _ driven.RateLimitStore = (*RateLimitStore)(nil)

// RateLimitStore is a BadgerDB-backed driven.RateLimitStore.
type RateLimitStore struct {
	db  *badger.DB
	now func() time.Time
}

// badgerLogger routes badger's internal logging onto the package logger.
type badgerLogger struct{}

var _ badger.Logger = badgerLogger{}

func (badgerLogger) Errorf(msg string, items ...any)   { logger.Error("badger: "+msg, items...) }
func (badgerLogger) Warningf(msg string, items ...any) { logger.Warn("badger: "+msg, items...) }
func (badgerLogger) Infof(msg string, items ...any)    { logger.Debug("badger: "+msg, items...) }
func (badgerLogger) Debugf(msg string, items ...any)   { logger.Debug("badger: "+msg, items...) }

// Open opens the store in dir, creating it if needed. An empty dir opens
// an in-memory database.
func Open(dir string) (*RateLimitStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating rate limit directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = badgerLogger{}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}
	return &RateLimitStore{db: db, now: time.Now}, nil
}

type counterValue struct {
	Count     int   `json:"count"`
	ExpiresAt int64 `json:"expires_at"`
}

type blockValue struct {
	Until  int64  `json:"until"`
	Reason string `json:"reason,omitempty"`
}

// SaveCounters upserts counters with a TTL matching their window end.
// Counters that already expired are skipped.
func (s *RateLimitStore) SaveCounters(_ context.Context, counters []domain.RateCounter) error {
	now := s.now()
	return s.db.Update(func(txn *badger.Txn) error {
		for _, c := range counters {
			ttl := c.ExpiresAt.Sub(now)
			if ttl <= 0 {
				continue
			}
			val, err := json.Marshal(counterValue{Count: c.Count, ExpiresAt: c.ExpiresAt.Unix()})
			if err != nil {
				return err
			}
			entry := badger.NewEntry(counterKey(c.RateCounterKey), val).WithTTL(ttl)
			if err := txn.SetEntry(entry); err != nil {
				return fmt.Errorf("saving counter: %w", err)
			}
		}
		return nil
	})
}

// SaveBlocks upserts blocks with a TTL matching their expiry.
func (s *RateLimitStore) SaveBlocks(_ context.Context, blocks []domain.RateBlock) error {
	now := s.now()
	return s.db.Update(func(txn *badger.Txn) error {
		for _, b := range blocks {
			ttl := b.Until.Sub(now)
			if ttl <= 0 {
				continue
			}
			val, err := json.Marshal(blockValue{Until: b.Until.Unix(), Reason: b.Reason})
			if err != nil {
				return err
			}
			entry := badger.NewEntry(blockKey(b.Route, b.Key), val).WithTTL(ttl)
			if err := txn.SetEntry(entry); err != nil {
				return fmt.Errorf("saving block: %w", err)
			}
		}
		return nil
	})
}

// DeleteBlock removes a block.
func (s *RateLimitStore) DeleteBlock(_ context.Context, route, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(blockKey(route, key))
	})
}

// Load returns counters and blocks that are still live at now.
func (s *RateLimitStore) Load(_ context.Context, now time.Time) ([]domain.RateCounter, []domain.RateBlock, error) {
	var (
		counters []domain.RateCounter
		blocks   []domain.RateBlock
	)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(counterPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key, ok := parseCounterKey(item.KeyCopy(nil))
			if !ok {
				continue
			}
			var v counterValue
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &v) }); err != nil {
				return fmt.Errorf("decoding counter: %w", err)
			}
			expires := time.Unix(v.ExpiresAt, 0)
			if !expires.After(now) {
				continue
			}
			counters = append(counters, domain.RateCounter{RateCounterKey: key, Count: v.Count, ExpiresAt: expires})
		}

		prefix = []byte(blockPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			route, key, ok := parseBlockKey(item.KeyCopy(nil))
			if !ok {
				continue
			}
			var v blockValue
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &v) }); err != nil {
				return fmt.Errorf("decoding block: %w", err)
			}
			until := time.Unix(v.Until, 0)
			if !until.After(now) {
				continue
			}
			blocks = append(blocks, domain.RateBlock{Route: route, Key: key, Until: until, Reason: v.Reason})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return counters, blocks, nil
}

// Close closes the database.
func (s *RateLimitStore) Close() error {
	return s.db.Close()
}

func counterKey(k domain.RateCounterKey) []byte {
	return []byte(counterPrefix + k.Route + keySep + k.Key + keySep + strconv.FormatInt(k.WindowStart, 10))
}

func blockKey(route, key string) []byte {
	return []byte(blockPrefix + route + keySep + key)
}

func parseCounterKey(raw []byte) (domain.RateCounterKey, bool) {
	parts := bytes.Split(bytes.TrimPrefix(raw, []byte(counterPrefix)), []byte(keySep))
	if len(parts) != 3 {
		return domain.RateCounterKey{}, false
	}
	start, err := strconv.ParseInt(string(parts[2]), 10, 64)
	if err != nil {
		return domain.RateCounterKey{}, false
	}
	return domain.RateCounterKey{Route: string(parts[0]), Key: string(parts[1]), WindowStart: start}, true
}

func parseBlockKey(raw []byte) (string, string, bool) {
	parts := bytes.Split(bytes.TrimPrefix(raw, []byte(blockPrefix)), []byte(keySep))
	if len(parts) != 2 {
		return "", "", false
	}
	return string(parts[0]), string(parts[1]), true
}
