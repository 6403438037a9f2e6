package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// HandshakeTimeout returns the dial handshake timeout.
func (t TransportConfig) HandshakeTimeout() time.Duration {
	return time.Duration(t.HandshakeTimeoutMs) * time.Millisecond
}

// WriteTimeout returns the per-frame write deadline.
func (t TransportConfig) WriteTimeout() time.Duration {
	return time.Duration(t.WriteTimeoutMs) * time.Millisecond
}

// IdleTimeout returns how long the connection may stay silent.
func (t TransportConfig) IdleTimeout() time.Duration {
	return time.Duration(t.IdleTimeoutMs) * time.Millisecond
}

// Initial returns the first reconnect delay.
func (b BackoffConfig) Initial() time.Duration {
	return time.Duration(b.InitialMs) * time.Millisecond
}

// Max returns the reconnect delay cap.
func (b BackoffConfig) Max() time.Duration {
	return time.Duration(b.MaxMs) * time.Millisecond
}

// Timeout returns the REST request timeout.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}
