package status

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerStartsDisconnected(t *testing.T) {
	tr := NewTracker()
	snap := tr.Snapshot()

	assert.Equal(t, StateDisconnected, snap.ConnectionState)
	assert.Equal(t, int64(0), snap.ConnectionAttempts)
	assert.Nil(t, snap.LastConnectTime)
	assert.Nil(t, snap.LastMessageTime)
}

func TestTrackerConnectionLifecycle(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker()
	tr.SetClock(func() time.Time { return now })

	tr.SetConnecting()
	assert.Equal(t, StateConnecting, tr.State())
	assert.Equal(t, int64(1), tr.Snapshot().ConnectionAttempts)

	tr.SetConnected()
	snap := tr.Snapshot()
	assert.Equal(t, StateConnected, snap.ConnectionState)
	require.NotNil(t, snap.LastConnectTime)
	assert.Equal(t, now, *snap.LastConnectTime)

	tr.SetReconnecting(errors.New("connection dropped"))
	snap = tr.Snapshot()
	assert.Equal(t, StateReconnecting, snap.ConnectionState)
	require.NotNil(t, snap.LastDisconnectTime)
	assert.Equal(t, "connection dropped", snap.LastError)

	tr.SetConnecting()
	assert.Equal(t, int64(2), tr.Snapshot().ConnectionAttempts)

	// a successful reconnect clears the stale error
	tr.SetConnected()
	assert.Empty(t, tr.Snapshot().LastError)
}

func TestTrackerDisconnectedKeepsTerminalError(t *testing.T) {
	tr := NewTracker()
	tr.SetConnecting()
	tr.SetDisconnected(errors.New("handshake rejected"))

	snap := tr.Snapshot()
	assert.Equal(t, StateDisconnected, snap.ConnectionState)
	assert.Equal(t, "handshake rejected", snap.LastError)
}

func TestTrackerCounters(t *testing.T) {
	tr := NewTracker()

	tr.RecordMessage()
	tr.RecordMessage()
	tr.RecordDispatch(nil)
	tr.RecordDispatch(errors.New("delivery failed"))
	tr.RecordRejected()
	tr.RecordError(errors.New("malformed"))

	snap := tr.Snapshot()
	assert.Equal(t, int64(2), snap.MessagesReceived)
	assert.Equal(t, int64(1), snap.MessagesDispatched)
	assert.Equal(t, int64(1), snap.MessagesRejected)
	assert.Equal(t, int64(2), snap.Errors)
	assert.Equal(t, "malformed", snap.LastError)
	require.NotNil(t, snap.LastMessageTime)
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := NewTracker()
	tr.SetConnected()

	snap := tr.Snapshot()
	require.NotNil(t, snap.LastConnectTime)
	*snap.LastConnectTime = time.Time{}

	fresh := tr.Snapshot()
	require.NotNil(t, fresh.LastConnectTime)
	assert.False(t, fresh.LastConnectTime.IsZero())
}
