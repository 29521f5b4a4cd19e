package detail

import (
	"fmt"
	"io"

	logpkg "github.com/rzbill/detailq/pkg/log"
)

// settle runs after a record was delivered or dropped. Before end of file it
// does nothing. At end of file with bytes still buffered it parks the file
// position one byte before the end, so a caller that only reads again when
// the file looks unread comes back for the buffered records. With nothing
// buffered the file position moves to the end and the session starts closing.
func (s *Session) settle(rest int) error {
	if !s.ledger.EOF {
		return nil
	}
	if rest > 0 {
		pos := s.ledger.FileSize - 1
		if pos == s.ledger.ReadOffset {
			return nil
		}
		off, err := s.file.Seek(pos, io.SeekStart)
		if err != nil {
			return fmt.Errorf("rewind %s: %w", s.path, err)
		}
		s.ledger.ReadOffset = off
		return nil
	}
	off, err := s.file.Seek(s.ledger.FileSize, io.SeekStart)
	if err != nil {
		return fmt.Errorf("seek %s to end: %w", s.path, err)
	}
	s.ledger.ReadOffset = off
	s.ledger.enterClosing()
	s.logger.Debug("session closing",
		logpkg.Int64("consumed", s.ledger.Consumed),
		logpkg.Int("outstanding", s.ledger.Outstanding))
	return nil
}

// Closing reports whether the session produces no more records.
func (s *Session) Closing() bool { return s.ledger.Closing }

// Drained reports whether the session is closing and every delivered record
// was acknowledged; the caller may then Close it.
func (s *Session) Drained() bool { return s.ledger.Drained() }

// ForceClose stops delivery, e.g. because the file was removed. Records
// already delivered may still be acknowledged.
func (s *Session) ForceClose() {
	if s.ledger.Closing {
		return
	}
	s.ledger.enterClosing()
	s.logger.Info("session closed by caller", logpkg.Int("outstanding", s.ledger.Outstanding))
}

// Close releases the file. It fails while records are outstanding.
func (s *Session) Close() error {
	if s.ledger.Outstanding > 0 {
		return ErrOutstanding
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	return nil
}
