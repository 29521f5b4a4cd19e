package detail

import "errors"

var (
	// ErrBuffer is returned when the buffer is too small or the leftover
	// count does not fit inside it.
	ErrBuffer = errors.New("detail: buffer too small or leftover out of range")
	// ErrEmptyPayload is returned by Ack when the acknowledgment payload is empty.
	ErrEmptyPayload = errors.New("detail: empty acknowledgment payload")
	// ErrTrackReleased is returned when a track is acknowledged twice.
	ErrTrackReleased = errors.New("detail: track already acknowledged")
	// ErrForeignTrack is returned when a track belongs to another session.
	ErrForeignTrack = errors.New("detail: track does not belong to this session")
	// ErrOutstanding is returned by Close while records are still unacknowledged.
	ErrOutstanding = errors.New("detail: records still outstanding")
)
