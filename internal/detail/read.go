package detail

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	logpkg "github.com/rzbill/detailq/pkg/log"
)

var terminator = []byte("\n\n")

// Read returns the next record of the file, or nil when no record is
// available yet or the session is closing.
//
// buf is owned by the caller and must be passed back unchanged, together
// with leftover, on every call: leftover counts the bytes at the front of buf
// that are still waiting to become a record.
//
// A record may accompany an error when the failure happened after the record
// was counted as delivered; the record must still be acknowledged.
func (s *Session) Read(buf []byte, leftover *int) (*Record, error) {
	if leftover == nil || len(buf) < 2 || *leftover < 0 || s.shift+*leftover > len(buf) {
		return nil, ErrBuffer
	}
	if s.shift > 0 {
		copy(buf, buf[s.shift:s.shift+*leftover])
		s.shift = 0
	}
	if *leftover >= len(buf) {
		return nil, ErrBuffer
	}

	if s.ledger.Closing {
		off, err := s.file.Seek(s.ledger.FileSize, io.SeekStart)
		if err != nil {
			return nil, fmt.Errorf("seek %s to end: %w", s.path, err)
		}
		s.ledger.ReadOffset = off
		return nil, nil
	}

	if s.scanned > *leftover {
		s.scanned = *leftover
	}
	end, err := s.fill(buf, *leftover)
	if err != nil {
		return nil, err
	}
	return s.next(buf, end, leftover)
}

// fill reads into buf[leftover:] and returns the end of valid data.
// Nothing is read once end of file has been seen.
func (s *Session) fill(buf []byte, leftover int) (int, error) {
	if s.ledger.EOF {
		return leftover, nil
	}

	room := int64(len(buf) - leftover)
	if remain := s.ledger.FileSize - s.ledger.ReadOffset; remain < room {
		room = remain
	}
	n := 0
	if room > 0 {
		var err error
		n, err = s.file.Read(buf[leftover : leftover+int(room)])
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("read %s: %w", s.path, err)
		}
	}

	off, err := s.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("tell %s: %w", s.path, err)
	}
	s.ledger.ReadOffset = off
	s.ledger.EOF = n == 0 || off >= s.ledger.FileSize
	return leftover + n, nil
}

// findTerminator returns the index just past the first "\n\n" in b at or
// after from, or -1.
func findTerminator(b []byte, from int) int {
	if from < 0 {
		from = 0
	}
	if from >= len(b) {
		return -1
	}
	i := bytes.Index(b[from:], terminator)
	if i < 0 {
		return -1
	}
	return from + i + len(terminator)
}

// next resolves buf[:end] into at most one record, skipping rejected ones.
func (s *Session) next(buf []byte, end int, leftover *int) (*Record, error) {
	for {
		// The byte before the scanned prefix may be the first half of a
		// terminator split across two reads.
		from := 0
		if s.scanned > 0 {
			from = s.scanned - 1
		}
		after := findTerminator(buf[:end], from)

		n := after
		if after < 0 {
			if !s.ledger.EOF {
				if end == len(buf) {
					s.overflow(buf, end, leftover)
					return nil, nil
				}
				*leftover = end
				s.scanned = end
				return nil, nil
			}
			n = end
		}
		rest := end - n
		s.scanned = 0

		rec := buf[:n]
		if reason := s.reject(rec); reason != "" {
			s.logger.Debug("skipping record",
				logpkg.Str("reason", reason),
				logpkg.Int64("offset", s.ledger.Consumed),
				logpkg.Int("len", n))
			s.ledger.advance(n)
			if after >= 0 {
				copy(buf, buf[n:end])
				end = rest
				continue
			}
			*leftover = 0
			return nil, s.settle(0)
		}

		r := s.accept(rec)
		*leftover = rest
		s.shift = n
		if err := s.settle(rest); err != nil {
			return r, err
		}
		return r, nil
	}
}

// accept turns rec into a delivered Record and advances the ledger past it.
func (s *Session) accept(rec []byte) *Record {
	local := scanMarker(rec)
	done := NoDoneOffset
	if local >= 0 {
		done = s.ledger.Consumed + int64(local)
	}
	r := &Record{
		Data:     rec,
		Offset:   s.ledger.Consumed,
		Priority: s.classifier.Classify(rec),
		Track:    &Track{Received: s.now(), DoneOffset: done, session: s},
	}
	s.ledger.advance(len(rec))
	s.ledger.deliver()
	s.logger.Debug("record delivered",
		logpkg.Int64("offset", r.Offset),
		logpkg.Int("len", len(rec)),
		logpkg.Int64("done_offset", done),
		logpkg.Int("outstanding", s.ledger.Outstanding))
	return r
}

// overflow handles a full buffer without a terminator: the pending record
// cannot be delivered, so everything but its last byte is dropped and the
// rest of it is discarded up to the next terminator.
func (s *Session) overflow(buf []byte, end int, leftover *int) {
	s.logger.Warn("ignoring record larger than the read buffer",
		logpkg.Int64("offset", s.ledger.Consumed),
		logpkg.Int("buffer", len(buf)))
	s.ledger.advance(end - 1)
	buf[0] = buf[end-1]
	*leftover = 1
	s.scanned = 1
	s.discarding = true
}
