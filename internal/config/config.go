// Package config provides the configuration schema and loader for the
// voxwire call client.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// TransportKind selects how the session reaches the platform.
type TransportKind string

const (
	// TransportSocket streams JSON envelopes over a WebSocket.
	TransportSocket TransportKind = "socket"

	// TransportPeer negotiates a WebRTC peer connection.
	TransportPeer TransportKind = "peer"
)

// IsValid reports whether t is a recognised transport kind.
func (t TransportKind) IsValid() bool {
	return t == TransportSocket || t == TransportPeer
}

// Config is the root configuration structure. It is typically loaded from
// a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Platform    PlatformConfig    `yaml:"platform"`
	Audio       AudioConfig       `yaml:"audio"`
	Call        CallConfig        `yaml:"call"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// PlatformConfig locates and authenticates against the agent platform.
type PlatformConfig struct {
	// BaseURL is the platform API root (e.g. "https://api.example.com").
	BaseURL string `yaml:"base_url"`

	// AuthToken is the bearer token sent on every request.
	AuthToken string `yaml:"auth_token"`

	// AgentID selects which agent answers the call.
	AgentID string `yaml:"agent_id"`

	// Transport selects the session transport. Default: socket.
	Transport TransportKind `yaml:"transport"`
}

// AudioConfig holds the session's audio format.
type AudioConfig struct {
	// SampleRate is the session PCM rate in Hz. Supported: 8000, 24000.
	// Default: 24000.
	SampleRate int `yaml:"sample_rate"`

	// FrameSize is samples per outbound frame. Zero takes the built-in
	// default.
	FrameSize int `yaml:"frame_size"`
}

// CallConfig tunes lifecycle behaviour.
type CallConfig struct {
	// GraceWindowSeconds caps how long teardown waits for queued agent
	// audio to finish playing. Zero takes the built-in default.
	GraceWindowSeconds int `yaml:"grace_window_seconds"`
}

// DiagnosticsConfig configures the local HTTP listener for health checks
// and metrics.
type DiagnosticsConfig struct {
	// ListenAddr is the TCP address to serve /healthz, /readyz and
	// /metrics on (e.g. "127.0.0.1:9090"). Empty disables the listener.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`
}
