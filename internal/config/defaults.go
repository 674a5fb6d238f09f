package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultConnectionTimeout    = 10 * time.Second
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultPollingInterval      = 3 * time.Second
	DefaultRequestTimeout       = 10 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectDelayBase   = 1 * time.Second
	DefaultMaxReconnectDelay    = 30 * time.Second
	DefaultBufferSize           = 1000
	DefaultFallbackPolicy       = "immediate"
	DefaultUpgradeInterval      = 60 * time.Second
	DefaultProbeSendInterval    = 5 * time.Second
	DefaultProbeReportInterval  = 30 * time.Second
)

func (c *Config) applyDefaults() {
	// Connection defaults
	if c.Connection.ConnectionTimeout == 0 {
		c.Connection.ConnectionTimeout = DefaultConnectionTimeout
	}
	if c.Connection.HeartbeatInterval == 0 {
		c.Connection.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Connection.PollingInterval == 0 {
		c.Connection.PollingInterval = DefaultPollingInterval
	}
	if c.Connection.RequestTimeout == 0 {
		c.Connection.RequestTimeout = DefaultRequestTimeout
	}
	if c.Connection.MaxReconnectAttempts == 0 {
		c.Connection.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Connection.ReconnectDelayBase == 0 {
		c.Connection.ReconnectDelayBase = DefaultReconnectDelayBase
	}
	if c.Connection.MaxReconnectDelay == 0 {
		c.Connection.MaxReconnectDelay = DefaultMaxReconnectDelay
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultBufferSize
	}

	// Fallback defaults
	if c.Fallback.Policy == "" {
		c.Fallback.Policy = DefaultFallbackPolicy
	}
	if c.Fallback.UpgradeInterval == 0 {
		c.Fallback.UpgradeInterval = DefaultUpgradeInterval
	}

	// Probe defaults
	if c.Probe.SendInterval == 0 {
		c.Probe.SendInterval = DefaultProbeSendInterval
	}
	if c.Probe.ReportInterval == 0 {
		c.Probe.ReportInterval = DefaultProbeReportInterval
	}
}
