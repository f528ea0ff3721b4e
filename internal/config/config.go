package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"qqbridge/internal/constants"
	"qqbridge/internal/models"

	"github.com/caarlos0/env/v11"
)

var (
	ErrMissingNotifyURL = models.ConfigError{Message: "missing notify API base URL"}
	ErrMissingTarget    = models.ConfigError{Message: "missing delivery target binding"}
	ErrMissingMediaDir  = models.ConfigError{Message: "missing media directory"}
)

// LoadConfig reads the JSON config file, applies environment overrides
// for secrets and paths, and validates the result.
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Notify.BaseURL == "" {
		return ErrMissingNotifyURL
	}
	if c.Media.Dir == "" {
		return ErrMissingMediaDir
	}

	switch strings.TrimSpace(c.Notify.TargetType) {
	case "", "router":
		c.Notify.TargetType = "router"
		if c.Notify.BindRouter == "" {
			return ErrMissingTarget
		}
	case "channel":
		if c.Notify.BindChannel == "" {
			return ErrMissingTarget
		}
	default:
		return models.ConfigError{Message: fmt.Sprintf("invalid target type: %s", c.Notify.TargetType)}
	}

	if c.OneBot.WSEnabled {
		if c.OneBot.WSURL == "" {
			return models.ConfigError{Message: "websocket enabled but ws_url is empty"}
		}
		u, err := url.Parse(c.OneBot.WSURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return models.ConfigError{Message: fmt.Sprintf("invalid ws_url: %s", c.OneBot.WSURL)}
		}
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.OneBot.HeartbeatSec <= 0 {
		c.OneBot.HeartbeatSec = constants.DefaultHeartbeatSec
	}
	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultInitialBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.TitlePrefix == "" {
		c.TitlePrefix = "[QQ]"
	}
	if c.Media.IndexPath == "" {
		c.Media.IndexPath = c.Media.Dir + "/index.db"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "qqbridge"
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = 0.1
	}

	return nil
}
