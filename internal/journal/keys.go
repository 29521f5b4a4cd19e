package journal

import (
	"path/filepath"
)

// Key layout, per work file:
//
//	wf/{path}/cursor
//	wf/{path}/ack/{id}
const (
	prefixWorkFile = "wf/"
	suffixCursor   = "cursor"
	segmentAck     = "ack/"
)

// normalize makes equivalent spellings of a path share one key space.
func normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// workFilePrefix returns wf/{path}/.
func workFilePrefix(path string) []byte {
	return []byte(prefixWorkFile + normalize(path) + "/")
}

// CursorKey returns the consumed-size checkpoint key for path.
func CursorKey(path string) []byte {
	return append(workFilePrefix(path), suffixCursor...)
}

// AckPrefix returns the prefix under which acknowledgments of path are stored.
func AckPrefix(path string) []byte {
	return append(workFilePrefix(path), segmentAck...)
}

// AckKey returns the key of one acknowledgment. ids are UUIDv7 strings, so
// keys sort by time.
func AckKey(path, id string) []byte {
	return append(AckPrefix(path), id...)
}
