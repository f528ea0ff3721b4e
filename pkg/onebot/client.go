package onebot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"qqbridge/internal/constants"
	apperrors "qqbridge/internal/errors"

	"github.com/sirupsen/logrus"
)

// FileResolver turns an opaque file_id into a downloadable URL via the
// bot implementation's HTTP action API.
type FileResolver interface {
	ResolveFileURL(ctx context.Context, fileID string) (string, error)
}

type client struct {
	apiBase     string
	accessToken string
	httpClient  *http.Client
	logger      *logrus.Logger
}

// NewClient creates a file-resolution client. apiBase may be empty when
// no HTTP API is configured; resolution then always fails.
func NewClient(apiBase, accessToken string, logger *logrus.Logger) FileResolver {
	return &client{
		apiBase:     strings.TrimRight(apiBase, "/"),
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: time.Duration(constants.DefaultFileAPITimeoutSec) * time.Second,
		},
		logger: logger,
	}
}

// APIBaseFromWSURL derives an HTTP action API base from a configured
// WebSocket address, for deployments that expose both on one port.
func APIBaseFromWSURL(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return scheme + "://" + u.Host
}

// fileResponse covers the response shapes seen across OneBot 12 and
// common OneBot 11 implementations.
type fileResponse struct {
	Status  string          `json:"status"`
	RetCode json.RawMessage `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	URL     string          `json:"url"`
	File    string          `json:"file"`
}

func (c *client) ResolveFileURL(ctx context.Context, fileID string) (string, error) {
	if c.apiBase == "" {
		return "", apperrors.New(apperrors.ErrCodeMediaResolution, "no file API configured")
	}

	endpoints := []string{
		c.apiBase + "/get_file",
		c.apiBase + "/api/get_file",
		c.apiBase + "/get_image",
		c.apiBase + "/get_record",
	}

	var lastErr error
	for _, endpoint := range endpoints {
		resolved, err := c.tryEndpoint(ctx, endpoint, fileID)
		if err == nil && resolved != "" {
			return resolved, nil
		}
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"endpoint": endpoint,
				"error":    err.Error(),
			}).Debug("File resolution endpoint failed")
		}
		if err != nil {
			lastErr = err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no endpoint returned a URL for file_id %s", fileID)
	}
	return "", apperrors.Wrap(lastErr, apperrors.ErrCodeMediaResolution, "file resolution failed")
}

// tryEndpoint issues a GET with query params first and falls back to a
// POST JSON body, matching the behavior split between OneBot 12 and
// older implementations.
func (c *client) tryEndpoint(ctx context.Context, endpoint, fileID string) (string, error) {
	resolved, status, err := c.get(ctx, endpoint, fileID)
	if err == nil && resolved != "" {
		return resolved, nil
	}
	if status == http.StatusNotFound || status == http.StatusMethodNotAllowed {
		return c.post(ctx, endpoint, fileID)
	}
	return "", err
}

func (c *client) get(ctx context.Context, endpoint, fileID string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", 0, err
	}
	q := req.URL.Query()
	q.Set("file_id", fileID)
	req.URL.RawQuery = q.Encode()
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, fmt.Errorf("file API returned status %d", resp.StatusCode)
	}

	resolved, err := decodeFileResponse(resp.Body)
	return resolved, resp.StatusCode, err
}

func (c *client) post(ctx context.Context, endpoint, fileID string) (string, error) {
	payload, err := json.Marshal(map[string]string{"file_id": fileID})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("file API returned status %d", resp.StatusCode)
	}

	return decodeFileResponse(resp.Body)
}

func (c *client) authorize(req *http.Request) {
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
}

func decodeFileResponse(body io.Reader) (string, error) {
	var fr fileResponse
	if err := json.NewDecoder(body).Decode(&fr); err != nil {
		return "", fmt.Errorf("failed to decode file API response: %w", err)
	}

	if fr.Status != "" && !strings.EqualFold(fr.Status, "ok") {
		return "", fmt.Errorf("file API status %s", fr.Status)
	}

	if len(fr.Data) > 0 {
		var nested struct {
			URL  string `json:"url"`
			File string `json:"file"`
		}
		if err := json.Unmarshal(fr.Data, &nested); err == nil {
			if nested.URL != "" {
				return nested.URL, nil
			}
			if nested.File != "" {
				return nested.File, nil
			}
		}
		var direct string
		if err := json.Unmarshal(fr.Data, &direct); err == nil && direct != "" {
			return direct, nil
		}
	}

	if fr.URL != "" {
		return fr.URL, nil
	}
	if fr.File != "" {
		return fr.File, nil
	}
	return "", nil
}
