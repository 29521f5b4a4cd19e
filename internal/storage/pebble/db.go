package pebblestore

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned by Get when a key is absent.
var ErrNotFound = pebble.ErrNotFound

// FsyncMode defines how journal writes reach the WAL.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways syncs the WAL on every commit.
	FsyncModeAlways
	// FsyncModeInterval lets Pebble coalesce WAL syncs within FsyncInterval.
	FsyncModeInterval
	// FsyncModeNever leaves WAL syncing to Pebble's own policy.
	FsyncModeNever
)

// ParseFsyncMode maps always|interval|never to a mode.
func ParseFsyncMode(s string) (FsyncMode, error) {
	switch s {
	case "", "always":
		return FsyncModeAlways, nil
	case "interval":
		return FsyncModeInterval, nil
	case "never":
		return FsyncModeNever, nil
	}
	return FsyncModeUnspecified, fmt.Errorf("pebble: unknown fsync mode %q", s)
}

// Options configures the store.
type Options struct {
	// Dir is the Pebble database directory.
	Dir   string
	Fsync FsyncMode
	// FsyncInterval is the group-commit window for FsyncModeInterval.
	FsyncInterval time.Duration
	// Observer receives timings of reads and commits. Optional.
	Observer Observer
}

// Observer sees store latencies and sizes.
type Observer interface {
	ObserveGet(elapsed time.Duration, bytes int)
	ObserveCommit(elapsed time.Duration, ops int, bytes int)
}

type nopObserver struct{}

func (nopObserver) ObserveGet(time.Duration, int)         {}
func (nopObserver) ObserveCommit(time.Duration, int, int) {}

// DB is a Pebble database with a fixed commit durability.
type DB struct {
	inner    *pebble.DB
	sync     *pebble.WriteOptions
	observer Observer
}

// Open creates or opens the database in opts.Dir.
func Open(opts Options) (*DB, error) {
	if opts.Dir == "" {
		return nil, errors.New("pebble: Options.Dir is required")
	}
	po := &pebble.Options{}

	wo := pebble.NoSync
	switch opts.Fsync {
	case FsyncModeAlways, FsyncModeUnspecified:
		wo = pebble.Sync
	case FsyncModeInterval:
		interval := opts.FsyncInterval
		if interval <= 0 {
			interval = 5 * time.Millisecond
		}
		po.WALMinSyncInterval = func() time.Duration { return interval }
		wo = pebble.Sync
	case FsyncModeNever:
	}

	inner, err := pebble.Open(opts.Dir, po)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", opts.Dir, err)
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &DB{inner: inner, sync: wo, observer: observer}, nil
}

// Close closes the database. It is safe on a nil DB.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// NewBatch starts an atomic write.
func (db *DB) NewBatch() *pebble.Batch { return db.inner.NewBatch() }

// Commit applies b with the configured durability.
func (db *DB) Commit(b *pebble.Batch) error {
	if b == nil {
		return errors.New("pebble: nil batch")
	}
	start := time.Now()
	ops, size := int(b.Count()), b.Len()
	err := b.Commit(db.sync)
	db.observer.ObserveCommit(time.Since(start), ops, size)
	return err
}

// Set writes a single key.
func (db *DB) Set(key, value []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Set(key, value, nil); err != nil {
		return err
	}
	return db.Commit(b)
}

// Delete removes a single key.
func (db *DB) Delete(key []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Delete(key, nil); err != nil {
		return err
	}
	return db.Commit(b)
}

// Get returns a copy of the value stored under key, or ErrNotFound.
func (db *DB) Get(key []byte) ([]byte, error) {
	start := time.Now()
	val, closer, err := db.inner.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	out := append([]byte(nil), val...)
	db.observer.ObserveGet(time.Since(start), len(out))
	return out, nil
}

// Scan calls fn for every key under prefix, newest key first when reverse is
// set. fn returning false stops the scan. Key and value are only valid during
// the call.
func (db *DB) Scan(prefix []byte, reverse bool, fn func(key, value []byte) bool) error {
	it, err := db.inner.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: PrefixEnd(prefix),
	})
	if err != nil {
		return fmt.Errorf("create iterator: %w", err)
	}
	defer it.Close()
	if reverse {
		for ok := it.Last(); ok; ok = it.Prev() {
			if !fn(it.Key(), it.Value()) {
				break
			}
		}
	} else {
		for ok := it.First(); ok; ok = it.Next() {
			if !fn(it.Key(), it.Value()) {
				break
			}
		}
	}
	return it.Error()
}

// Compact asks Pebble to compact [start, end) after bulk deletes.
func (db *DB) Compact(start, end []byte) error {
	return db.inner.Compact(start, end, true)
}

// PrefixEnd returns the smallest key greater than every key with prefix.
func PrefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
