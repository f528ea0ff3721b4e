package status

import (
	"sync"
	"time"
)

// ConnectionState tracks the WebSocket transport lifecycle.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// Snapshot is a consistent copy of the tracker state, served by the
// status endpoint.
type Snapshot struct {
	ConnectionState    ConnectionState `json:"connection_state"`
	ConnectionAttempts int64           `json:"connection_attempts"`
	LastConnectTime    *time.Time      `json:"last_connect_time,omitempty"`
	LastDisconnectTime *time.Time      `json:"last_disconnect_time,omitempty"`
	LastMessageTime    *time.Time      `json:"last_message_time,omitempty"`
	MessagesReceived   int64           `json:"messages_received"`
	MessagesDispatched int64           `json:"messages_dispatched"`
	MessagesRejected   int64           `json:"messages_rejected"`
	Errors             int64           `json:"errors"`
	LastError          string          `json:"last_error,omitempty"`
}

// Tracker is the single shared status record. The transport owns the
// connection fields, the dispatcher owns the delivery counters; the
// status endpoint only reads. All access goes through the mutex so no
// reader observes a half-updated record.
type Tracker struct {
	mu sync.RWMutex

	state              ConnectionState
	connectionAttempts int64
	lastConnectTime    *time.Time
	lastDisconnectTime *time.Time
	lastMessageTime    *time.Time

	messagesReceived   int64
	messagesDispatched int64
	messagesRejected   int64
	errors             int64
	lastError          string

	now func() time.Time
}

// NewTracker creates a tracker starting in the disconnected state.
func NewTracker() *Tracker {
	return &Tracker{
		state: StateDisconnected,
		now:   time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// SetConnecting marks a connection attempt in progress and bumps the
// attempt counter.
func (t *Tracker) SetConnecting() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateConnecting
	t.connectionAttempts++
}

// SetConnected marks a successful connection and clears the last error.
func (t *Tracker) SetConnected() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateConnected
	now := t.now()
	t.lastConnectTime = &now
	t.lastError = ""
}

// SetReconnecting records a dropped connection that will be retried.
func (t *Tracker) SetReconnecting(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateReconnecting
	now := t.now()
	t.lastDisconnectTime = &now
	if err != nil {
		t.lastError = err.Error()
		t.errors++
	}
}

// SetDisconnected records a terminal stop of the transport. A non-nil
// err marks the stop as a failure (handshake rejection, attempts
// exhausted) rather than an orderly shutdown.
func (t *Tracker) SetDisconnected(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateDisconnected
	now := t.now()
	t.lastDisconnectTime = &now
	if err != nil {
		t.lastError = err.Error()
		t.errors++
	}
}

// State returns the current connection state.
func (t *Tracker) State() ConnectionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// RecordMessage counts one normalized inbound event.
func (t *Tracker) RecordMessage() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.lastMessageTime = &now
	t.messagesReceived++
}

// RecordDispatch counts a delivery outcome.
func (t *Tracker) RecordDispatch(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.errors++
		t.lastError = err.Error()
		return
	}
	t.messagesDispatched++
}

// RecordRejected counts an event dropped by the access filter.
func (t *Tracker) RecordRejected() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messagesRejected++
}

// RecordError counts a pipeline failure that did not reach dispatch.
func (t *Tracker) RecordError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors++
	if err != nil {
		t.lastError = err.Error()
	}
}

// Snapshot returns a consistent copy of the full record.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{
		ConnectionState:    t.state,
		ConnectionAttempts: t.connectionAttempts,
		LastConnectTime:    copyTime(t.lastConnectTime),
		LastDisconnectTime: copyTime(t.lastDisconnectTime),
		LastMessageTime:    copyTime(t.lastMessageTime),
		MessagesReceived:   t.messagesReceived,
		MessagesDispatched: t.messagesDispatched,
		MessagesRejected:   t.messagesRejected,
		Errors:             t.errors,
		LastError:          t.lastError,
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
