package constants

// Default reconnect configuration values
const (
	DefaultInitialBackoffMs = 1000
	DefaultMaxBackoffMs     = 60000
	DefaultBackoffMultiplier = 2.0
	DefaultHeartbeatSec     = 30
)

// Default server values
const (
	DefaultServerPort           = 8086
	DefaultServerReadTimeoutSec = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec = 60
	DefaultGracefulShutdownSec  = 30
	ServerErrorChannelSize      = 1
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec     = 30
	DefaultDownloadTimeoutSec = 30
	DefaultFileAPITimeoutSec  = 10
)

// Signature verification
const (
	SignatureHeader = "X-Signature"
	SignaturePrefix = "sha1="
)

// Media storage
const (
	MediaDirPerm  = 0o750
	MediaFilePerm = 0o640
)
