package detail

import "fmt"

// Ledger holds the byte offsets and counters of a session.
//
// Consumed is the file offset of the first byte not yet turned into a
// delivered or skipped record; ReadOffset is where the file descriptor sits.
// 0 <= Consumed <= ReadOffset <= FileSize holds between calls.
type Ledger struct {
	Consumed    int64
	ReadOffset  int64
	FileSize    int64
	EOF         bool
	Closing     bool
	Outstanding int
}

func (l *Ledger) advance(n int) { l.Consumed += int64(n) }

func (l *Ledger) deliver() { l.Outstanding++ }

// release accounts for one acknowledgment. Acknowledging more records than
// were delivered is a programming error.
func (l *Ledger) release() {
	if l.Outstanding <= 0 {
		panic(fmt.Sprintf("detail: acknowledgment with %d outstanding records", l.Outstanding))
	}
	l.Outstanding--
}

func (l *Ledger) enterClosing() {
	if l.Closing {
		panic("detail: session is already closing")
	}
	l.EOF = true
	l.Closing = true
}

// Drained reports whether the session is closing with nothing left to acknowledge.
func (l Ledger) Drained() bool { return l.Closing && l.Outstanding == 0 }

// Check verifies the ledger invariants.
func (l Ledger) Check() error {
	switch {
	case l.Consumed < 0:
		return fmt.Errorf("consumed %d < 0", l.Consumed)
	case l.Consumed > l.ReadOffset:
		return fmt.Errorf("consumed %d > read offset %d", l.Consumed, l.ReadOffset)
	case l.ReadOffset > l.FileSize:
		return fmt.Errorf("read offset %d > file size %d", l.ReadOffset, l.FileSize)
	case l.Outstanding < 0:
		return fmt.Errorf("outstanding %d < 0", l.Outstanding)
	case l.Closing && !l.EOF:
		return fmt.Errorf("closing before eof")
	}
	return nil
}
