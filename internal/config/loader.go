package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields lets credentials be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.API.Token = expandEnvVars(cfg.API.Token)
	cfg.Relay.Token = expandEnvVars(cfg.Relay.Token)
	cfg.Transport.URL = expandEnvVars(cfg.Transport.URL)
	cfg.Transport.Token = expandEnvVars(cfg.Transport.Token)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes raw back to path, creating its directory on first use.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	t := &cfg.Transport
	if t.URL == "" {
		t.URL = "ws://localhost:3001"
	}
	if t.HandshakeTimeoutMs == 0 {
		t.HandshakeTimeoutMs = 10000
	}
	if t.WriteTimeoutMs == 0 {
		t.WriteTimeoutMs = 10000
	}
	if t.IdleTimeoutMs == 0 {
		t.IdleTimeoutMs = 90000
	}
	if t.MaxMessageBytes == 0 {
		t.MaxMessageBytes = 1 << 20
	}
	if t.Backoff.InitialMs == 0 {
		t.Backoff.InitialMs = 1000
	}
	if t.Backoff.Factor == 0 {
		t.Backoff.Factor = 1.5
	}
	if t.Backoff.MaxMs == 0 {
		t.Backoff.MaxMs = 30000
	}

	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:3001"
	}
	if cfg.API.TimeoutSeconds == 0 {
		cfg.API.TimeoutSeconds = 15
	}

	if cfg.Identity.Role == "" {
		cfg.Identity.Role = "consumer"
	}

	if cfg.Relay.Port == 0 {
		cfg.Relay.Port = 3001
	}
	if cfg.Relay.Bind == "" {
		cfg.Relay.Bind = "loopback"
	}
	if cfg.Relay.RateLimit.RPS == 0 {
		cfg.Relay.RateLimit.RPS = 20
	}
	if cfg.Relay.RateLimit.Burst == 0 {
		cfg.Relay.RateLimit.Burst = 40
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
}

// applyEnvOverrides reads SLOTCHAT_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SLOTCHAT_TRANSPORT_URL"); v != "" {
		cfg.Transport.URL = v
	}
	if v := os.Getenv("SLOTCHAT_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("SLOTCHAT_API_TOKEN"); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv("SLOTCHAT_IDENTITY_ID"); v != "" {
		cfg.Identity.ID = v
	}
	if v := os.Getenv("SLOTCHAT_IDENTITY_ROLE"); v != "" {
		cfg.Identity.Role = strings.ToLower(v)
	}
	if v := os.Getenv("SLOTCHAT_RELAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Relay.Port = port
		}
	}
	if v := os.Getenv("SLOTCHAT_RELAY_TOKEN"); v != "" {
		cfg.Relay.Token = v
	}
	if v := os.Getenv("SLOTCHAT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
