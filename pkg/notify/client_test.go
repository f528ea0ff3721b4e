package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "qqbridge/internal/errors"
	"qqbridge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDraft() models.NotificationDraft {
	return models.NotificationDraft{
		Title:       "[QQ] #dev @alice",
		Body:        "hello [image]",
		Attachments: []string{"http://bridge/media/a.jpg", "http://bridge/media/b.jpg"},
		PrimaryLink: "http://bridge/media/a.jpg",
	}
}

func TestSendByRouter(t *testing.T) {
	var got sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notify/router", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status": "ok"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "tok")
	err := c.SendByRouter(context.Background(), "route-1", testDraft())
	require.NoError(t, err)

	assert.Equal(t, "route-1", got.RouteID)
	assert.Empty(t, got.ChannelName)
	assert.Equal(t, "[QQ] #dev @alice", got.Title)
	assert.Equal(t, "hello [image]", got.Content)
	assert.Len(t, got.Attachments, 2)
	assert.Equal(t, "http://bridge/media/a.jpg", got.PushLinkURL)
}

func TestSendByChannel(t *testing.T) {
	var got sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notify/channel", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status": "ok"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	err := c.SendByChannel(context.Background(), "alerts", testDraft())
	require.NoError(t, err)

	assert.Equal(t, "alerts", got.ChannelName)
	assert.Empty(t, got.RouteID)
}

func TestSendMissingBinding(t *testing.T) {
	c := NewClient("http://unused", "")

	err := c.SendByRouter(context.Background(), "", testDraft())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidConfig, apperrors.GetCode(err))

	err = c.SendByChannel(context.Background(), "", testDraft())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidConfig, apperrors.GetCode(err))
}

func TestSendNon2xxStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	err := c.SendByRouter(context.Background(), "r", testDraft())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeDispatch, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "502")
}

func TestSendBodyError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "error", "error": "unknown route"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	err := c.SendByRouter(context.Background(), "r", testDraft())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown route")
}

func TestSendUnreadableBodyIsAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`accepted`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	require.NoError(t, c.SendByRouter(context.Background(), "r", testDraft()))
}

func TestSendConnectionErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := NewClient(server.URL, "")
	err := c.SendByRouter(context.Background(), "r", testDraft())
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
}
