package models

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	OneBot    OneBotConfig    `json:"onebot"`
	Notify    NotifyConfig    `json:"notify"`
	Filter    FilterConfig    `json:"filter"`
	Media     MediaConfig     `json:"media"`
	Retry     RetryConfig     `json:"retry"`
	Tracing   TracingConfig   `json:"tracing"`
	LogLevel  string          `json:"log_level"`
	TitlePrefix string        `json:"title_prefix"`
}

// ServerConfig holds the HTTP surface configuration
type ServerConfig struct {
	Port          int    `json:"port"`
	VerifySecret  string `json:"verify_secret" env:"QQBRIDGE_VERIFY_SECRET"`
	PublicBaseURL string `json:"public_base_url"`
}

// OneBotConfig holds the upstream bot implementation configuration
type OneBotConfig struct {
	WSEnabled         bool   `json:"ws_enabled"`
	WSURL             string `json:"ws_url"`
	HTTPAPIURL        string `json:"http_api_url"`
	AccessToken       string `json:"access_token" env:"QQBRIDGE_ACCESS_TOKEN"`
	HeartbeatSec      int    `json:"heartbeat_sec"`
	MaxReconnectCount int    `json:"max_reconnect_count"`
}

// NotifyConfig binds the delivery target for finished drafts.
// TargetType selects between a router binding and a named channel.
type NotifyConfig struct {
	BaseURL     string `json:"base_url"`
	AuthToken   string `json:"auth_token" env:"QQBRIDGE_NOTIFY_TOKEN"`
	TargetType  string `json:"target_type"`
	BindRouter  string `json:"bind_router"`
	BindChannel string `json:"bind_channel"`
}

// FilterConfig holds the access whitelist. An empty list allows all
// identifiers on that axis.
type FilterConfig struct {
	AllowedGroups []string `json:"allowed_groups"`
	AllowedUsers  []string `json:"allowed_users"`
}

// MediaConfig holds media resolution configuration
type MediaConfig struct {
	Dir       string `json:"dir" env:"QQBRIDGE_MEDIA_DIR"`
	IndexPath string `json:"index_path" env:"QQBRIDGE_MEDIA_INDEX_PATH"`
}

// RetryConfig holds reconnect backoff configuration
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
