// Package detail implements a crash-safe read/acknowledge queue over a flat
// "detail" text file.
//
// # File format
//
// Records are separated by an empty line ("\n\n"). The first line of a record
// is a header; attribute lines start with a tab:
//
//	Mon Jan  2 15:04:05 2006
//		User-Name = "bob"
//		Timestamp = 1136214245
//
// The "\tTimestamp" line doubles as the completion marker. Acknowledging a
// record overwrites the four bytes "Time" in place with "Done", so the line
// becomes "\tDonestamp = ...". No other byte in the file moves. On the next
// pass over the file any record holding a "\tDone" line is skipped.
//
// # Sessions
//
// A Session owns one open file and an offset ledger:
//
//	s, _ := detail.Open(path, detail.Options{MaxRecordSize: 65536})
//	buf := make([]byte, 65536)
//	leftover := 0
//	for {
//	    rec, err := s.Read(buf, &leftover)
//	    if err != nil { /* I/O failure */ }
//	    if rec == nil {
//	        if s.Closing() { break }
//	        continue // wait for more data
//	    }
//	    process(rec.Data)
//	    _, _ = s.Ack(rec.Track, []byte{1})
//	}
//
// The caller passes the same buffer and leftover counter back on every Read.
// Record.Data aliases the buffer and is only valid until the next Read.
//
// # Delivery guarantees
//
// Records are delivered in file order, at least once. A crash between
// delivery and the on-disk patch redelivers the record on restart; a record
// whose patch landed is never delivered again.
//
// A Session is not safe for concurrent use. Independent sessions share no
// state.
package detail
