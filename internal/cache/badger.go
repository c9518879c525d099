package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/JNZader/prreviewer/internal/logger"
	"github.com/JNZader/prreviewer/internal/model"
)

const badgerGCInterval = 10 * time.Minute

// BadgerCache persists review results in a BadgerDB directory, so that
// reviews survive restarts. Expiry uses BadgerDB's entry TTL.
type BadgerCache struct {
	db  *badger.DB
	ttl time.Duration
	log *logger.Logger

	hits   atomic.Int64
	misses atomic.Int64

	gcStop    chan struct{}
	closeOnce sync.Once
}

// NewBadgerCache opens (or creates) a cache in dir.
func NewBadgerCache(dir string, ttl time.Duration, log *logger.Logger) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger db: %w", err)
	}

	c := &BadgerCache{
		db:     db,
		ttl:    ttl,
		log:    log.WithPrefix("CACHE"),
		gcStop: make(chan struct{}),
	}
	go c.runGC()
	return c, nil
}

func (c *BadgerCache) Get(key string) (*model.ReviewResult, bool) {
	var result model.ReviewResult
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &result)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.log.Warn("reading %s: %v", key, err)
		}
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &result, true
}

func (c *BadgerCache) Set(key string, result *model.ReviewResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.log.Warn("encoding %s: %v", key, err)
		return
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		c.log.Warn("storing %s: %v", key, err)
	}
}

func (c *BadgerCache) Clear() {
	if err := c.db.DropAll(); err != nil {
		c.log.Warn("clearing cache: %v", err)
	}
}

// Stats counts live entries by iterating keys; expired entries are not
// visited.
func (c *BadgerCache) Stats() Stats {
	entries := 0
	_ = c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			entries++
		}
		return nil
	})
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: entries,
	}
}

// Close stops value log GC and closes the database.
func (c *BadgerCache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.gcStop)
		err = c.db.Close()
	})
	return err
}

func (c *BadgerCache) runGC() {
	ticker := time.NewTicker(badgerGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Each call rewrites at most one file; loop until nothing is left.
			for c.db.RunValueLogGC(0.5) == nil {
			}
		case <-c.gcStop:
			return
		}
	}
}
