package config

import (
	"fmt"
	"net/url"
	"slices"

	"github.com/soyeahso/slotchat/internal/domain"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Transport validation
	if u, err := url.Parse(cfg.Transport.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		issues = append(issues, ValidationIssue{
			Path:    "transport.url",
			Message: fmt.Sprintf("must be a ws:// or wss:// URL, got %q", cfg.Transport.URL),
		})
	}
	if cfg.Transport.HandshakeTimeoutMs < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "transport.handshakeTimeoutMs",
			Message: "must not be negative",
		})
	}
	if cfg.Transport.WriteTimeoutMs < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "transport.writeTimeoutMs",
			Message: "must not be negative",
		})
	}
	if cfg.Transport.IdleTimeoutMs < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "transport.idleTimeoutMs",
			Message: "must not be negative",
		})
	}

	b := cfg.Transport.Backoff
	if b.InitialMs <= 0 {
		issues = append(issues, ValidationIssue{
			Path:    "transport.backoff.initialMs",
			Message: fmt.Sprintf("must be positive, got %d", b.InitialMs),
		})
	}
	if b.Factor < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "transport.backoff.factor",
			Message: fmt.Sprintf("must be >= 1, got %g", b.Factor),
		})
	}
	if b.MaxMs < b.InitialMs {
		issues = append(issues, ValidationIssue{
			Path:    "transport.backoff.maxMs",
			Message: fmt.Sprintf("must be >= initialMs (%d), got %d", b.InitialMs, b.MaxMs),
		})
	}
	if b.Jitter < 0 || b.Jitter >= 1 {
		issues = append(issues, ValidationIssue{
			Path:    "transport.backoff.jitter",
			Message: fmt.Sprintf("must be in [0, 1), got %g", b.Jitter),
		})
	}

	// API validation
	if u, err := url.Parse(cfg.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		issues = append(issues, ValidationIssue{
			Path:    "api.baseUrl",
			Message: fmt.Sprintf("must be an http:// or https:// URL, got %q", cfg.API.BaseURL),
		})
	}
	if cfg.API.TimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "api.timeoutSeconds",
			Message: "must not be negative",
		})
	}

	// Identity validation
	if cfg.Identity.Role != "" && !domain.Role(cfg.Identity.Role).Valid() {
		issues = append(issues, ValidationIssue{
			Path:    "identity.role",
			Message: fmt.Sprintf("must be one of %v, got %q", domain.Roles, cfg.Identity.Role),
		})
	}

	// Relay validation
	if cfg.Relay.Port < 0 || cfg.Relay.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "relay.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Relay.Port),
		})
	}
	validBinds := []string{"lan", "loopback", "custom"}
	if cfg.Relay.Bind != "" && !slices.Contains(validBinds, cfg.Relay.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "relay.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Relay.Bind),
		})
	}
	if cfg.Relay.RateLimit.RPS < 0 || cfg.Relay.RateLimit.Burst < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "relay.rateLimit",
			Message: "rps and burst must not be negative",
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	// Hooks validation
	hookSets := map[string][]HookEntry{
		"hooks.connectionState": cfg.Hooks.ConnectionState,
		"hooks.givenUp":         cfg.Hooks.GivenUp,
		"hooks.messageReceived": cfg.Hooks.MessageReceived,
		"hooks.messageSending":  cfg.Hooks.MessageSending,
		"hooks.relayStart":      cfg.Hooks.RelayStart,
		"hooks.relayStop":       cfg.Hooks.RelayStop,
	}
	for _, path := range []string{"hooks.connectionState", "hooks.givenUp", "hooks.messageReceived", "hooks.messageSending", "hooks.relayStart", "hooks.relayStop"} {
		for i, h := range hookSets[path] {
			if h.Command == "" {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("%s[%d].command", path, i),
					Message: "command is required",
				})
			}
		}
	}

	return issues
}
