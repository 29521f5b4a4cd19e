package detail

import (
	"context"
	"io"
	"os"
	goruntime "runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnterClosingTwicePanics(t *testing.T) {
	l := &Ledger{}
	l.enterClosing()
	require.True(t, l.EOF)
	require.Panics(t, func() { l.enterClosing() })
}

func TestLedgerCheck(t *testing.T) {
	require.NoError(t, Ledger{Consumed: 1, ReadOffset: 2, FileSize: 3}.Check())
	require.Error(t, Ledger{Consumed: 3, ReadOffset: 2, FileSize: 3}.Check())
	require.Error(t, Ledger{ReadOffset: 4, FileSize: 3}.Check())
	require.Error(t, Ledger{Closing: true}.Check())
	require.Error(t, Ledger{Outstanding: -1}.Check())
}

func TestForceCloseStopsDelivery(t *testing.T) {
	s := openSession(t, writeDetail(t, rec1+rec2), Options{})
	buf := make([]byte, 128)
	leftover := 0
	rec, err := s.Read(buf, &leftover)
	require.NoError(t, err)
	require.NotNil(t, rec)

	s.ForceClose()
	s.ForceClose()
	require.True(t, s.Closing())
	require.False(t, s.Drained())

	next, err := s.Read(buf, &leftover)
	require.NoError(t, err)
	require.Nil(t, next)

	_, err = s.Ack(rec.Track, []byte{1})
	require.NoError(t, err)
	require.True(t, s.Drained())
	require.NoError(t, s.Close())
}

func TestNotClosingWhileRecordsBuffered(t *testing.T) {
	s := openSession(t, writeDetail(t, rec1+rec2+rec1), Options{})
	buf := make([]byte, 128)
	leftover := 0
	for i := 0; i < 2; i++ {
		rec, err := s.Read(buf, &leftover)
		require.NoError(t, err)
		require.NotNil(t, rec)
		require.Greater(t, leftover, 0)
		require.False(t, s.Closing())
	}
	rec, err := s.Read(buf, &leftover)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.True(t, s.Closing())
}

func TestDecodeAndTrackTimestamp(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := openSession(t, writeDetail(t, "\x01\n\tTimestamp=1\n\n"), Options{Now: func() time.Time { return at }})
	buf := make([]byte, 64)
	leftover := 0
	rec, err := s.Read(buf, &leftover)
	require.NoError(t, err)
	require.Equal(t, PriorityHigh, rec.Priority)
	require.Equal(t, at, rec.Track.Received)

	req := s.Decode(rec)
	require.Equal(t, 1, req.ID)
	require.Equal(t, PriorityHigh, req.Priority)
	require.Equal(t, at, req.Received)
}

func TestBindContext(t *testing.T) {
	s := openSession(t, writeDetail(t, rec1), Options{})
	require.NotNil(t, s.Context())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.BindContext(ctx)
	require.Equal(t, ctx, s.Context())
	require.NotZero(t, s.Fd())
	require.NotEmpty(t, s.ID())
	require.Contains(t, s.Name(), s.Path())
}

func TestClosingMovesPositionToEnd(t *testing.T) {
	content := rec1 + rec2
	s := openSession(t, writeDetail(t, content), Options{})
	buf := make([]byte, 64)
	leftover := 0

	first, err := s.Read(buf, &leftover)
	require.NoError(t, err)
	require.NotNil(t, first)
	require.Equal(t, int64(len(content)-1), s.Ledger().ReadOffset)

	second, err := s.Read(buf, &leftover)
	require.NoError(t, err)
	require.NotNil(t, second)
	require.True(t, s.Closing())
	require.Equal(t, int64(len(content)), s.Ledger().ReadOffset)
	require.NoError(t, s.Ledger().Check())

	// Patches seek back to the end of the file.
	_, err = s.Ack(first.Track, []byte{1})
	require.NoError(t, err)
	pos, err := s.file.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	require.Equal(t, int64(len(content)), pos)
	require.NoError(t, s.Ledger().Check())
}

func TestFileIDChangesWhenFileReplaced(t *testing.T) {
	if goruntime.GOOS == "windows" {
		t.Skip("no inode numbers")
	}
	path := writeDetail(t, rec1)
	first := openSession(t, path, Options{})
	require.NotZero(t, first.FileID())

	tmp := path + ".new"
	require.NoError(t, os.WriteFile(tmp, []byte(rec1+rec2), 0o644))
	require.NoError(t, os.Rename(tmp, path))
	second := openSession(t, path, Options{})
	require.NotEqual(t, first.FileID(), second.FileID())
}
