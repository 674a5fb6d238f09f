package config

import "time"

// Config is the root configuration for the connectivity layer.
type Config struct {
	Endpoints  EndpointsConfig  `yaml:"endpoints"`
	Connection ConnectionConfig `yaml:"connection"`
	Fallback   FallbackConfig   `yaml:"fallback"`
	Probe      ProbeConfig      `yaml:"probe"`
}

// EndpointsConfig holds the upstream endpoints for both transports.
type EndpointsConfig struct {
	WebSocketURL string `yaml:"websocket_url"` // e.g. wss://api.beatwave.io/ws
	PollingURL   string `yaml:"polling_url"`   // e.g. https://api.beatwave.io/poll
	AuthToken    string `yaml:"auth_token"`    // Optional bearer token, sent by both transports
}

// ConnectionConfig holds transport timing and reconnection settings.
type ConnectionConfig struct {
	ConnectionTimeout    time.Duration `yaml:"connection_timeout"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	PollingInterval      time.Duration `yaml:"polling_interval"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectDelayBase   time.Duration `yaml:"reconnect_delay_base"`
	MaxReconnectDelay    time.Duration `yaml:"max_reconnect_delay"`
	BufferSize           int           `yaml:"buffer_size"`
}

// FallbackConfig holds the post-connection degradation policy.
type FallbackConfig struct {
	Policy          string        `yaml:"policy"`           // "immediate" or "quality_based"
	AllowUpgrade    bool          `yaml:"allow_upgrade"`    // Probe for upgrading polling back to websocket
	UpgradeInterval time.Duration `yaml:"upgrade_interval"` // How often to probe when upgrading
}

// ProbeConfig holds settings for the connprobe binary.
type ProbeConfig struct {
	SendInterval   time.Duration `yaml:"send_interval"`
	ReportInterval time.Duration `yaml:"report_interval"`
}
