package detail

import "bytes"

// NoDoneOffset marks a track whose record has no completion slot.
const NoDoneOffset int64 = -1

var (
	markerLine    = []byte("\n\tTimestamp")
	completedLine = []byte("\n\tDone")
	// DoneMarker overwrites the first four bytes of the marker attribute name.
	DoneMarker = []byte("Done")
)

// scanMarker returns the offset within rec of the completion slot: the
// attribute name following "\n\t" on the last Timestamp line. It returns -1
// when the record has no such line.
func scanMarker(rec []byte) int {
	i := bytes.LastIndex(rec, markerLine)
	if i < 0 {
		return -1
	}
	return i + 2
}

// isCompleted reports whether rec has a line starting with "\tDone".
func isCompleted(rec []byte) bool {
	return bytes.Contains(rec, completedLine)
}
