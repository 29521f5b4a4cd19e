package detail

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	logpkg "github.com/rzbill/detailq/pkg/log"
)

// DefaultMaxRecordSize bounds a single record when Options.MaxRecordSize is unset.
const DefaultMaxRecordSize = 65536

// FsyncMode defines durability of acknowledgment patches.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways syncs the file after every completion patch.
	FsyncModeAlways
	// FsyncModeNever leaves flushing to the operating system.
	FsyncModeNever
)

// Options configures a Session.
type Options struct {
	// MaxRecordSize is the largest record delivered; larger ones are skipped.
	MaxRecordSize int
	// Priorities maps a record's first byte to a priority. Nil uses DefaultPriorities.
	Priorities map[byte]Priority
	// Fsync controls syncing after patches. Unspecified behaves as FsyncModeAlways.
	Fsync  FsyncMode
	Logger logpkg.Logger
	// Now stamps track entries; defaults to time.Now.
	Now func() time.Time
}

// Record is one delivered unit of work.
type Record struct {
	// Data aliases the caller's buffer and is valid until the next Read.
	Data []byte
	// Offset is the absolute file offset of Data[0].
	Offset   int64
	Priority Priority
	Track    *Track
}

// Request is the decoded form of a record handed to request processing.
type Request struct {
	ID       int
	Priority Priority
	Received time.Time
	Data     []byte
}

// handle is the part of *os.File a session uses.
type handle interface {
	io.ReadWriteSeeker
	io.Closer
	Sync() error
	Fd() uintptr
}

// Session reads and acknowledges the records of one detail file.
type Session struct {
	id     string
	name   string
	path   string
	fileID uint64
	file   handle
	ledger Ledger

	// scanned is the number of leading leftover bytes known to hold no terminator.
	scanned int
	// shift is the length of the record returned by the previous Read; its bytes
	// are dropped from the front of the buffer on the next call.
	shift int
	// discarding is set while skipping the tail of a record that overflowed the buffer.
	discarding bool

	maxRecordSize int
	classifier    Classifier
	fsync         FsyncMode
	now           func() time.Time
	logger        logpkg.Logger
	ctx           context.Context
}

// Open opens path read-write and records its current size.
func Open(path string, opts Options) (*Session, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if opts.MaxRecordSize <= 0 {
		opts.MaxRecordSize = DefaultMaxRecordSize
	}
	if opts.Priorities == nil {
		opts.Priorities = DefaultPriorities()
	}
	if opts.Fsync == FsyncModeUnspecified {
		opts.Fsync = FsyncModeAlways
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNopLogger()
	}

	s := &Session{
		id:            uuid.NewString(),
		name:          "detail working file " + path,
		path:          path,
		fileID:        fileID(fi),
		file:          f,
		ledger:        Ledger{FileSize: fi.Size()},
		maxRecordSize: opts.MaxRecordSize,
		classifier:    NewClassifier(opts.Priorities),
		fsync:         opts.Fsync,
		now:           opts.Now,
		ctx:           context.Background(),
	}
	s.logger = opts.Logger.With(logpkg.Component("detail"), logpkg.Str("file", path), logpkg.Str(logpkg.SessionIDKey, s.id))
	s.logger.Debug("session opened", logpkg.Int64("size", s.ledger.FileSize))
	return s, nil
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Name returns a human readable name for logs.
func (s *Session) Name() string { return s.name }

// Path returns the working file path.
func (s *Session) Path() string { return s.path }

// FileID identifies the opened file across renames (its inode on unix, 0
// where unavailable). A replaced work file gets a different id.
func (s *Session) FileID() uint64 { return s.fileID }

// Fd returns the file descriptor for registration with an event loop.
func (s *Session) Fd() uintptr { return s.file.Fd() }

// Ledger returns a snapshot of the session's offsets and counters.
func (s *Session) Ledger() Ledger { return s.ledger }

// BindContext retargets the session to a new event context. Timers and
// backoff of the driving loop derive from it.
func (s *Session) BindContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx = ctx
}

// Context returns the context bound with BindContext.
func (s *Session) Context() context.Context { return s.ctx }

// Decode turns a delivered record into a Request numbered by the current
// outstanding count.
func (s *Session) Decode(rec *Record) Request {
	req := Request{ID: s.ledger.Outstanding, Priority: rec.Priority, Data: rec.Data}
	if rec.Track != nil {
		req.Received = rec.Track.Received
	}
	return req
}
