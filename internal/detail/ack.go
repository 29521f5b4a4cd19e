package detail

import (
	"fmt"
	"io"
	"time"

	logpkg "github.com/rzbill/detailq/pkg/log"
)

// Track follows one delivered record until it is acknowledged. It is owned
// by whoever received the record and is consumed by Ack.
type Track struct {
	Received   time.Time
	DoneOffset int64

	session  *Session
	released bool
}

// Markable reports whether acknowledging the record patches the file.
func (t *Track) Markable() bool { return t.DoneOffset != NoDoneOffset }

// Ack acknowledges the record behind t. A payload whose first byte is zero
// means "do not respond": the record is released without touching the file.
// Otherwise the completion slot, when the record has one, is overwritten with
// DoneMarker and the file position restored for the next Read.
//
// Ack returns len(payload) on success.
func (s *Session) Ack(t *Track, payload []byte) (int, error) {
	if len(payload) < 1 {
		return 0, ErrEmptyPayload
	}
	if t == nil || t.session != s {
		return 0, ErrForeignTrack
	}
	if t.released {
		return 0, ErrTrackReleased
	}

	s.ledger.release()
	t.released = true

	if payload[0] == 0 {
		s.logger.Debug("got do-not-respond, not marking record", logpkg.Int64("done_offset", t.DoneOffset))
		return len(payload), nil
	}
	if t.DoneOffset == NoDoneOffset {
		return len(payload), nil
	}
	if err := s.markDone(t.DoneOffset); err != nil {
		s.logger.Error("marking record done failed", logpkg.Err(err), logpkg.Int64("done_offset", t.DoneOffset))
		return 0, err
	}
	return len(payload), nil
}

// markDone writes DoneMarker at off and seeks back to the read offset.
func (s *Session) markDone(off int64) error {
	if _, err := s.file.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("seek %s to %d: %w", s.path, off, err)
	}
	if _, err := s.file.Write(DoneMarker); err != nil {
		return fmt.Errorf("write marker to %s at %d: %w", s.path, off, err)
	}
	if s.fsync == FsyncModeAlways {
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("sync %s: %w", s.path, err)
		}
	}
	if _, err := s.file.Seek(s.ledger.ReadOffset, io.SeekStart); err != nil {
		return fmt.Errorf("seek %s to %d: %w", s.path, s.ledger.ReadOffset, err)
	}
	return nil
}
