package drainrun

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	cfgpkg "github.com/rzbill/detailq/internal/config"
	"github.com/rzbill/detailq/internal/detail"
	"github.com/rzbill/detailq/internal/journal"
	"github.com/rzbill/detailq/internal/runtime"
	logpkg "github.com/rzbill/detailq/pkg/log"
)

// Handler processes one decoded request. An error leaves the record
// unmarked so it is delivered again by the next drain.
type Handler func(ctx context.Context, req detail.Request) error

type Options struct {
	Config cfgpkg.Config
	// JournalDir overrides the configured journal location.
	JournalDir string
	// DryRun acknowledges every record as "do not respond": nothing is
	// patched and nothing is journaled.
	DryRun bool
	// WaitForFile keeps retrying while the work file does not exist yet.
	WaitForFile bool
	Handler     Handler
	Logger      logpkg.Logger
}

// Stats summarises one drain.
type Stats struct {
	Delivered  int
	Patched    int
	Suppressed int
	Failed     int
	Consumed   int64
	FileSize   int64
}

// Run drains opts.Config.WorkFile until every record has been delivered and
// acknowledged, or ctx is cancelled or the process receives SIGINT/SIGTERM.
// Cancellation stops delivery early; the records delivered so far are still
// acknowledged and journaled.
func Run(ctx context.Context, opts Options) (Stats, error) {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := opts.Config.Validate(); err != nil {
		return Stats{}, err
	}
	logger := opts.Logger
	if logger == nil {
		l, err := logpkg.ApplyConfig(&logpkg.Config{Level: opts.Config.Log.Level, Format: opts.Config.Log.Format})
		if err != nil {
			return Stats{}, err
		}
		logger = l
		logpkg.RedirectStdLog(logger)
	}
	if opts.Handler == nil {
		opts.Handler = logRequest(logger)
	}

	rt, err := runtime.Open(runtime.Options{Config: opts.Config, JournalDir: opts.JournalDir, Logger: logger})
	if err != nil {
		return Stats{}, err
	}
	defer rt.Close()

	path := opts.Config.WorkFile
	s, err := openWorkFile(sctx, rt, path, opts, logger)
	if err != nil {
		return Stats{}, err
	}
	s.BindContext(logpkg.ContextWithSession(sctx, s.ID()))

	d := &drainer{
		session: s,
		journal: rt.Journal(),
		opts:    opts,
		logger:  logger.With(logpkg.Str("file", path)).WithContext(s.Context()),
		wait:    newPoll(opts.Config, s.Context()),
	}
	logger.Info("drain started",
		logpkg.Str("session", s.Name()),
		logpkg.Int64("size", s.Ledger().FileSize),
		logpkg.Bool("dry_run", opts.DryRun))

	runErr := d.loop(make([]byte, opts.Config.BufferSize))
	if runErr != nil {
		s.ForceClose()
	}
	d.stats.Consumed = s.Ledger().Consumed
	d.stats.FileSize = s.Ledger().FileSize
	if !opts.DryRun {
		if err := d.checkpoint(); err != nil {
			logger.Warn("checkpoint failed", logpkg.Err(err))
		}
	}
	if err := s.Close(); err != nil && runErr == nil {
		runErr = err
	}
	logger.Info("drain finished",
		logpkg.Int("delivered", d.stats.Delivered),
		logpkg.Int("patched", d.stats.Patched),
		logpkg.Int("suppressed", d.stats.Suppressed),
		logpkg.Int("failed", d.stats.Failed),
		logpkg.Int64("consumed", d.stats.Consumed))
	return d.stats, runErr
}

// openWorkFile opens the session, retrying with backoff while the file is
// missing when WaitForFile is set.
func openWorkFile(ctx context.Context, rt *runtime.Runtime, path string, opts Options, logger logpkg.Logger) (*detail.Session, error) {
	if !opts.WaitForFile {
		return rt.OpenSession(path)
	}
	var s *detail.Session
	op := func() error {
		var err error
		s, err = rt.OpenSession(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		logger.Debug("waiting for work file", logpkg.Str("file", path), logpkg.Dur("retry_in", next))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(newBackOff(opts.Config), ctx), notify); err != nil {
		return nil, fmt.Errorf("open work file %s: %w", path, err)
	}
	return s, nil
}

type drainer struct {
	session *detail.Session
	journal *journal.Journal
	opts    Options
	logger  logpkg.Logger
	wait    *poll
	stats   Stats
}

func (d *drainer) loop(buf []byte) error {
	s := d.session
	leftover := 0
	for !s.Drained() {
		if s.Context().Err() != nil && !s.Closing() {
			s.ForceClose()
		}
		before := s.Ledger()
		rec, err := s.Read(buf, &leftover)
		if rec != nil {
			d.wait.reset()
			if herr := d.handle(rec); herr != nil {
				return herr
			}
		}
		if err != nil {
			return err
		}
		if rec != nil {
			continue
		}
		if s.Closing() {
			break
		}
		if after := s.Ledger(); after.ReadOffset == before.ReadOffset && after.Consumed == before.Consumed {
			d.wait.sleep()
		}
	}
	return nil
}

// handle runs the handler on one record, acknowledges it and journals the result.
func (d *drainer) handle(rec *detail.Record) error {
	s := d.session
	d.stats.Delivered++
	req := s.Decode(rec)
	d.logger.Debug("record delivered",
		logpkg.Int("id", req.ID),
		logpkg.Int64("offset", rec.Offset),
		logpkg.Int("length", len(rec.Data)),
		logpkg.Str("priority", rec.Priority.String()))

	payload := []byte{1}
	var herr error
	if d.opts.DryRun {
		payload[0] = 0
	} else if herr = d.opts.Handler(s.Context(), req); herr != nil {
		d.logger.Warn("handler failed, leaving record unmarked", logpkg.Err(herr), logpkg.Int64("offset", rec.Offset))
		payload[0] = 0
	}

	entry := &journal.AckEntry{
		Offset:      rec.Offset,
		Length:      len(rec.Data),
		DoneOffset:  rec.Track.DoneOffset,
		Priority:    rec.Priority.String(),
		Suppressed:  payload[0] == 0,
		Patched:     payload[0] != 0 && rec.Track.Markable(),
		DeliveredMs: rec.Track.Received.UnixMilli(),
	}
	if herr != nil {
		entry.Error = herr.Error()
	}
	_, ackErr := s.Ack(rec.Track, payload)
	switch {
	case ackErr != nil:
		d.stats.Failed++
		entry.Patched = false
		entry.Error = ackErr.Error()
	case entry.Suppressed:
		d.stats.Suppressed++
	case entry.Patched:
		d.stats.Patched++
	}

	if !d.opts.DryRun {
		if err := d.journal.RecordAck(s.Path(), entry); err != nil {
			d.logger.Warn("journal ack failed", logpkg.Err(err))
		}
		if err := d.checkpoint(); err != nil {
			d.logger.Warn("checkpoint failed", logpkg.Err(err))
		}
	}
	if ackErr != nil {
		return fmt.Errorf("acknowledge record at %d: %w", rec.Offset, ackErr)
	}
	return nil
}

func (d *drainer) checkpoint() error {
	led := d.session.Ledger()
	return d.journal.CommitCursor(d.session.Path(), journal.Checkpoint{
		Consumed: led.Consumed,
		FileSize: led.FileSize,
		FileID:   d.session.FileID(),
	})
}

func logRequest(logger logpkg.Logger) Handler {
	return func(_ context.Context, req detail.Request) error {
		logger.Info("request",
			logpkg.Int("id", req.ID),
			logpkg.Str("priority", req.Priority.String()),
			logpkg.Int("bytes", len(req.Data)))
		return nil
	}
}
