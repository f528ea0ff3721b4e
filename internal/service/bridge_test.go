package service

import (
	"context"
	"errors"
	"testing"

	"qqbridge/internal/models"
	"qqbridge/internal/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBridge(t *testing.T, filterCfg models.FilterConfig, client *fakeNotifyClient) (*Bridge, *status.Tracker) {
	t.Helper()
	logger := newTestLogger()
	tracker := status.NewTracker()

	bridge := NewBridge(
		NewNormalizer(logger),
		NewAccessFilter(filterCfg),
		NewTranslator(&stubResolver{}, "[QQ]", logger),
		NewDispatcher(client, models.NotifyConfig{TargetType: "router", BindRouter: "r1"}, tracker, logger),
		tracker,
		logger,
	)
	return bridge, tracker
}

func TestHandleRawDispatchesAllowedGroupMessage(t *testing.T) {
	client := &fakeNotifyClient{}
	bridge, tracker := newTestBridge(t, models.FilterConfig{AllowedGroups: []string{"123"}}, client)

	payload := []byte(`{
		"type": "message",
		"detail_type": "group",
		"group_id": "123",
		"group_name": "dev",
		"user_id": "42",
		"sender": {"nickname": "alice"},
		"message": [{"type": "text", "data": {"text": "hello"}}]
	}`)

	require.NoError(t, bridge.HandleRaw(context.Background(), payload))

	sent := client.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "[QQ] #dev @alice", sent[0].Title)
	assert.Equal(t, "hello", sent[0].Body)
	assert.Empty(t, sent[0].Attachments)
	assert.Empty(t, sent[0].PrimaryLink)

	snap := tracker.Snapshot()
	assert.Equal(t, int64(1), snap.MessagesReceived)
	assert.Equal(t, int64(1), snap.MessagesDispatched)
	assert.Equal(t, int64(0), snap.MessagesRejected)
}

func TestHandleRawRejectsUnlistedGroup(t *testing.T) {
	client := &fakeNotifyClient{}
	bridge, tracker := newTestBridge(t, models.FilterConfig{AllowedGroups: []string{"123"}}, client)

	payload := []byte(`{
		"type": "message",
		"detail_type": "group",
		"group_id": "999",
		"user_id": "42",
		"message": [{"type": "text", "data": {"text": "hello"}}]
	}`)

	require.NoError(t, bridge.HandleRaw(context.Background(), payload))

	assert.Empty(t, client.sent())
	snap := tracker.Snapshot()
	assert.Equal(t, int64(1), snap.MessagesReceived)
	assert.Equal(t, int64(1), snap.MessagesRejected)
	assert.Equal(t, int64(0), snap.MessagesDispatched)
}

func TestHandleRawDropsMalformedPayload(t *testing.T) {
	client := &fakeNotifyClient{}
	bridge, tracker := newTestBridge(t, models.FilterConfig{}, client)

	require.NoError(t, bridge.HandleRaw(context.Background(), []byte(`{broken`)))

	assert.Empty(t, client.sent())
	snap := tracker.Snapshot()
	assert.Equal(t, int64(1), snap.MessagesReceived)
	assert.Equal(t, int64(1), snap.Errors)
}

func TestHandleRawSkipsMetaEvents(t *testing.T) {
	client := &fakeNotifyClient{}
	bridge, tracker := newTestBridge(t, models.FilterConfig{}, client)

	require.NoError(t, bridge.HandleRaw(context.Background(), []byte(`{"type": "meta", "detail_type": "heartbeat"}`)))

	assert.Empty(t, client.sent())
	snap := tracker.Snapshot()
	assert.Equal(t, int64(1), snap.MessagesReceived)
	assert.Equal(t, int64(0), snap.Errors)
	assert.Equal(t, int64(0), snap.MessagesDispatched)
}

func TestHandleRawPropagatesDispatchFailure(t *testing.T) {
	client := &fakeNotifyClient{err: errors.New("delivery down")}
	bridge, tracker := newTestBridge(t, models.FilterConfig{}, client)

	payload := []byte(`{
		"type": "message",
		"detail_type": "private",
		"user_id": "42",
		"message": [{"type": "text", "data": {"text": "hi"}}]
	}`)

	err := bridge.HandleRaw(context.Background(), payload)
	require.Error(t, err)
	assert.Equal(t, int64(1), tracker.Snapshot().Errors)
}

func TestBridgeDispatchPassthrough(t *testing.T) {
	client := &fakeNotifyClient{}
	bridge, _ := newTestBridge(t, models.FilterConfig{}, client)

	draft := &models.NotificationDraft{Title: "manual", Body: "test"}
	require.NoError(t, bridge.Dispatch(context.Background(), draft))
	require.Len(t, client.sent(), 1)
	assert.Equal(t, "manual", client.sent()[0].Title)
}
