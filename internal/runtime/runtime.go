package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"

	cfgpkg "github.com/rzbill/detailq/internal/config"
	"github.com/rzbill/detailq/internal/detail"
	"github.com/rzbill/detailq/internal/journal"
	pebblestore "github.com/rzbill/detailq/internal/storage/pebble"
	logpkg "github.com/rzbill/detailq/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	// JournalDir overrides Config.ResolvedJournalDir().
	JournalDir string
	Logger     logpkg.Logger
}

// Runtime owns the journal store and hands out detail sessions configured
// from a single Config.
type Runtime struct {
	db      *pebblestore.DB
	journal *journal.Journal
	config  cfgpkg.Config
	logger  logpkg.Logger
}

// Open creates the journal directory if needed and opens the store.
func Open(opts Options) (*Runtime, error) {
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNopLogger()
	}
	dir := opts.JournalDir
	if dir == "" {
		dir = opts.Config.ResolvedJournalDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir %s: %w", dir, err)
	}
	fsync, interval, err := opts.Config.JournalSync()
	if err != nil {
		return nil, err
	}
	db, err := pebblestore.Open(pebblestore.Options{Dir: dir, Fsync: fsync, FsyncInterval: interval})
	if err != nil {
		return nil, err
	}
	opts.Logger.Debug("journal opened", logpkg.Str("dir", dir), logpkg.Int("fsync", int(fsync)))
	return &Runtime{
		db:      db,
		journal: journal.New(db, journal.Options{Logger: opts.Logger}),
		config:  opts.Config,
		logger:  opts.Logger,
	}, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth verifies the journal store is usable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("journal not open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.db.Get([]byte("health"))
	if err != nil && !errors.Is(err, pebblestore.ErrNotFound) {
		return err
	}
	return nil
}

// OpenSession opens a detail session on path with the runtime's record size,
// fsync policy, priority table and logger.
func (r *Runtime) OpenSession(path string) (*detail.Session, error) {
	fsync, err := r.config.FsyncMode()
	if err != nil {
		return nil, err
	}
	prio, err := r.config.PriorityTable()
	if err != nil {
		return nil, err
	}
	return detail.Open(path, detail.Options{
		MaxRecordSize: r.config.MaxRecordSize,
		Priorities:    prio,
		Fsync:         fsync,
		Logger:        r.logger,
	})
}

// Journal returns the acknowledgment journal.
func (r *Runtime) Journal() *journal.Journal { return r.journal }
