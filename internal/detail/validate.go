package detail

import (
	"bytes"

	logpkg "github.com/rzbill/detailq/pkg/log"
)

// Skip reasons.
const (
	reasonTooLarge  = "too large"
	reasonCompleted = "already completed"
	reasonBlank     = "blank"
)

// reject returns why rec must not be delivered, or "".
func (s *Session) reject(rec []byte) string {
	if s.discarding {
		s.discarding = false
		return reasonTooLarge
	}
	if len(rec) > s.maxRecordSize {
		s.logger.Warn("ignoring too large entry",
			logpkg.Int64("offset", s.ledger.Consumed),
			logpkg.Int("len", len(rec)),
			logpkg.Int("max", s.maxRecordSize))
		return reasonTooLarge
	}
	if len(bytes.Trim(rec, "\n")) == 0 {
		return reasonBlank
	}
	if isCompleted(rec) {
		return reasonCompleted
	}
	return ""
}
