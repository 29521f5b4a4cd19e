package detail

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultClassifier(t *testing.T) {
	c := NewClassifier(DefaultPriorities())
	cases := map[byte]Priority{
		CodeAccessRequest:     PriorityHigh,
		CodeAccountingRequest: PriorityLow,
		CodeCoARequest:        PriorityNormal,
		CodeDisconnectRequest: PriorityNormal,
		CodeStatusServer:      PriorityNow,
		'M':                   PriorityLow,
		0xff:                  PriorityLow,
	}
	for code, want := range cases {
		require.Equal(t, want, c.Classify([]byte{code, 'x'}), "code %d", code)
	}
	require.Equal(t, PriorityLow, c.Classify(nil))
}

func TestInjectedTable(t *testing.T) {
	c := NewClassifier(map[byte]Priority{'M': PriorityNow})
	require.Equal(t, PriorityNow, c.Classify([]byte("Mon Jan  2")))
	require.Equal(t, PriorityLow, c.Classify([]byte{CodeAccessRequest}))
}

func TestParsePriority(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityNow} {
		got, err := ParsePriority(p.String())
		require.NoError(t, err)
		require.Equal(t, p, got)
	}
	_, err := ParsePriority("urgent")
	require.Error(t, err)
}
