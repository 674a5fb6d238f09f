package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Endpoints.WebSocketURL == "" {
		return errors.New("endpoints.websocket_url is required")
	}
	if !strings.HasPrefix(c.Endpoints.WebSocketURL, "ws://") && !strings.HasPrefix(c.Endpoints.WebSocketURL, "wss://") {
		return fmt.Errorf("endpoints.websocket_url must use ws:// or wss://, got %q", c.Endpoints.WebSocketURL)
	}
	if c.Endpoints.PollingURL == "" {
		return errors.New("endpoints.polling_url is required")
	}
	if !strings.HasPrefix(c.Endpoints.PollingURL, "http://") && !strings.HasPrefix(c.Endpoints.PollingURL, "https://") {
		return fmt.Errorf("endpoints.polling_url must use http:// or https://, got %q", c.Endpoints.PollingURL)
	}

	if c.Connection.ConnectionTimeout <= 0 {
		return errors.New("connection.connection_timeout must be positive")
	}
	if c.Connection.PollingInterval <= 0 {
		return errors.New("connection.polling_interval must be positive")
	}
	if c.Connection.MaxReconnectAttempts < 1 {
		return errors.New("connection.max_reconnect_attempts must be >= 1")
	}
	if c.Connection.ReconnectDelayBase <= 0 {
		return errors.New("connection.reconnect_delay_base must be positive")
	}
	if c.Connection.MaxReconnectDelay < c.Connection.ReconnectDelayBase {
		return fmt.Errorf("connection.max_reconnect_delay (%v) cannot be less than reconnect_delay_base (%v)",
			c.Connection.MaxReconnectDelay, c.Connection.ReconnectDelayBase)
	}
	if c.Connection.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}

	switch c.Fallback.Policy {
	case "immediate", "quality_based":
	default:
		return fmt.Errorf("fallback.policy must be \"immediate\" or \"quality_based\", got %q", c.Fallback.Policy)
	}

	return nil
}
