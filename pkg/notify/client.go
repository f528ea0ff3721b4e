package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"qqbridge/internal/constants"
	apperrors "qqbridge/internal/errors"
	"qqbridge/internal/models"
)

// Client submits finished notification drafts to the delivery platform.
type Client interface {
	SendByRouter(ctx context.Context, routeID string, draft models.NotificationDraft) error
	SendByChannel(ctx context.Context, channelName string, draft models.NotificationDraft) error
}

type client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewClient creates a delivery client for the platform at baseURL.
func NewClient(baseURL, authToken string) Client {
	return &client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: time.Duration(constants.DefaultHTTPTimeoutSec) * time.Second,
		},
	}
}

type sendRequest struct {
	RouteID     string   `json:"route_id,omitempty"`
	ChannelName string   `json:"channel_name,omitempty"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Attachments []string `json:"attachments,omitempty"`
	PushLinkURL string   `json:"push_link_url,omitempty"`
}

type sendResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (c *client) SendByRouter(ctx context.Context, routeID string, draft models.NotificationDraft) error {
	if routeID == "" {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "route not configured")
	}
	return c.send(ctx, "/api/notify/router", sendRequest{
		RouteID:     routeID,
		Title:       draft.Title,
		Content:     draft.Body,
		Attachments: draft.Attachments,
		PushLinkURL: draft.PrimaryLink,
	})
}

func (c *client) SendByChannel(ctx context.Context, channelName string, draft models.NotificationDraft) error {
	if channelName == "" {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "channel not configured")
	}
	return c.send(ctx, "/api/notify/channel", sendRequest{
		ChannelName: channelName,
		Title:       draft.Title,
		Content:     draft.Body,
		Attachments: draft.Attachments,
		PushLinkURL: draft.PrimaryLink,
	})
}

func (c *client) send(ctx context.Context, path string, payload sendRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDispatch, "failed to marshal notification")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDispatch, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.WrapRetryable(err, apperrors.ErrCodeDispatch, "delivery request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.New(apperrors.ErrCodeDispatch,
			fmt.Sprintf("delivery API returned status %d", resp.StatusCode))
	}

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		// A 2xx with an unreadable body still counts as accepted
		return nil
	}
	if result.Error != "" {
		return apperrors.New(apperrors.ErrCodeDispatch, result.Error)
	}
	return nil
}
