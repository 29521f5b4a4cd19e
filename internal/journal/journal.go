package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	pebblestore "github.com/rzbill/detailq/internal/storage/pebble"
	logpkg "github.com/rzbill/detailq/pkg/log"
)

var errBadCheckpoint = errors.New("journal: invalid checkpoint")

// DefaultRetention is the number of acknowledgments kept per work file.
const DefaultRetention = 10000

// AckEntry is the journal record of one acknowledged record.
type AckEntry struct {
	ID         string `json:"id"`
	Offset     int64  `json:"offset"`
	Length     int    `json:"length"`
	DoneOffset int64  `json:"doneOffset"`
	Priority   string `json:"priority"`
	// Suppressed is set for "do not respond" acknowledgments.
	Suppressed  bool   `json:"suppressed,omitempty"`
	Patched     bool   `json:"patched,omitempty"`
	Error       string `json:"error,omitempty"`
	DeliveredMs int64  `json:"deliveredMs"`
	AckedMs     int64  `json:"ackedMs"`
}

// Checkpoint is how much of a work file has been consumed.
type Checkpoint struct {
	Consumed  int64
	FileSize  int64
	UpdatedMs int64
	// FileID identifies the work file the checkpoint belongs to; 0 if unknown.
	FileID uint64
}

// Options configures a Journal.
type Options struct {
	// Retention caps stored acknowledgments per work file; <=0 uses DefaultRetention.
	Retention int
	Logger    logpkg.Logger
	Now       func() time.Time
}

// Journal keeps acknowledgment history and consumed-size checkpoints.
// It is safe for concurrent use.
type Journal struct {
	db        *pebblestore.DB
	retention int
	logger    logpkg.Logger
	now       func() time.Time
}

// New returns a Journal stored in db.
func New(db *pebblestore.DB, opts Options) *Journal {
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Journal{
		db:        db,
		retention: opts.Retention,
		logger:    opts.Logger.WithComponent("journal"),
		now:       opts.Now,
	}
}

// RecordAck stores e under a fresh time-ordered id, filling ID and AckedMs
// when unset, and trims the oldest entries past the retention limit.
func (j *Journal) RecordAck(path string, e *AckEntry) error {
	if e == nil {
		return errors.New("journal: entry is nil")
	}
	if e.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("new entry id: %w", err)
		}
		e.ID = id.String()
	}
	if e.AckedMs == 0 {
		e.AckedMs = j.now().UnixMilli()
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	if err := j.db.Set(AckKey(path, e.ID), value); err != nil {
		return fmt.Errorf("set ack entry: %w", err)
	}
	if _, err := j.Trim(path, j.retention); err != nil {
		j.logger.Warn("trim after ack failed", logpkg.Str("file", path), logpkg.Err(err))
	}
	return nil
}

// List returns up to limit acknowledgments of path, newest first.
func (j *Journal) List(path string, limit int) ([]AckEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	entries := make([]AckEntry, 0, limit)
	err := j.db.Scan(AckPrefix(path), true, func(_, value []byte) bool {
		var e AckEntry
		if err := json.Unmarshal(value, &e); err != nil {
			j.logger.Warn("skipping undecodable ack entry", logpkg.Err(err))
			return true
		}
		entries = append(entries, e)
		return len(entries) < limit
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Trim deletes the oldest acknowledgments of path so that at most keep remain,
// returning the number removed.
func (j *Journal) Trim(path string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	var keys [][]byte
	err := j.db.Scan(AckPrefix(path), false, func(key, _ []byte) bool {
		keys = append(keys, append([]byte(nil), key...))
		return true
	})
	if err != nil {
		return 0, err
	}
	if len(keys) <= keep {
		return 0, nil
	}
	toTrim := keys[:len(keys)-keep]
	b := j.db.NewBatch()
	defer b.Close()
	for _, k := range toTrim {
		if err := b.Delete(k, nil); err != nil {
			return 0, fmt.Errorf("delete entry: %w", err)
		}
	}
	if err := j.db.Commit(b); err != nil {
		return 0, fmt.Errorf("commit trim: %w", err)
	}
	if err := j.db.Compact(toTrim[0], pebblestore.PrefixEnd(toTrim[len(toTrim)-1])); err != nil {
		j.logger.Warn("compact after trim failed", logpkg.Str("file", path), logpkg.Err(err))
	}
	return len(toTrim), nil
}

// CommitCursor stores cp as the checkpoint of path. Commits that would move
// the checkpoint of the same file backwards are ignored. A different FileID,
// or a smaller FileSize, means the work file was replaced and the checkpoint
// starts over.
func (j *Journal) CommitCursor(path string, cp Checkpoint) error {
	prev, ok, err := j.Cursor(path)
	if errors.Is(err, errBadCheckpoint) {
		j.logger.Warn("overwriting unreadable checkpoint", logpkg.Str("file", path), logpkg.Err(err))
		ok, err = false, nil
	}
	if err != nil {
		return err
	}
	if ok {
		replaced := cp.FileSize < prev.FileSize ||
			(cp.FileID != 0 && prev.FileID != 0 && cp.FileID != prev.FileID)
		if !replaced && cp.Consumed <= prev.Consumed {
			return nil
		}
		if replaced {
			j.logger.Info("work file replaced, resetting checkpoint",
				logpkg.Str("file", path),
				logpkg.Int64("previous_size", prev.FileSize),
				logpkg.Int64("size", cp.FileSize))
		}
	}
	if cp.UpdatedMs == 0 {
		cp.UpdatedMs = j.now().UnixMilli()
	}
	return j.db.Set(CursorKey(path), encodeCheckpoint(cp))
}

// Cursor loads the checkpoint of path. ok is false when none was committed.
func (j *Journal) Cursor(path string) (Checkpoint, bool, error) {
	v, err := j.db.Get(CursorKey(path))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("get checkpoint: %w", err)
	}
	cp, err := decodeCheckpoint(v)
	if err != nil {
		return Checkpoint{}, false, err
	}
	return cp, true, nil
}

func encodeCheckpoint(cp Checkpoint) []byte {
	buf := make([]byte, 32)
	binary.BigEndian.PutUint64(buf[0:8], uint64(cp.Consumed))
	binary.BigEndian.PutUint64(buf[8:16], uint64(cp.FileSize))
	binary.BigEndian.PutUint64(buf[16:24], uint64(cp.UpdatedMs))
	binary.BigEndian.PutUint64(buf[24:32], cp.FileID)
	return buf
}

func decodeCheckpoint(data []byte) (Checkpoint, error) {
	if len(data) < 32 {
		return Checkpoint{}, fmt.Errorf("%w: length %d", errBadCheckpoint, len(data))
	}
	return Checkpoint{
		Consumed:  int64(binary.BigEndian.Uint64(data[0:8])),
		FileSize:  int64(binary.BigEndian.Uint64(data[8:16])),
		UpdatedMs: int64(binary.BigEndian.Uint64(data[16:24])),
		FileID:    binary.BigEndian.Uint64(data[24:32]),
	}, nil
}
