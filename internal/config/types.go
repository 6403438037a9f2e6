package config

// Config is the root configuration for slotchat.
type Config struct {
	Transport TransportConfig `yaml:"transport,omitempty"`
	API       APIConfig       `yaml:"api,omitempty"`
	Identity  IdentityConfig  `yaml:"identity,omitempty"`
	Relay     RelayConfig     `yaml:"relay,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Hooks     HooksConfig     `yaml:"hooks,omitempty"`
}

// TransportConfig controls the realtime WebSocket connection.
type TransportConfig struct {
	URL                string        `yaml:"url,omitempty"`
	Token              string        `yaml:"token,omitempty"` // sent as a bearer token on the upgrade request
	HandshakeTimeoutMs int           `yaml:"handshakeTimeoutMs,omitempty"`
	WriteTimeoutMs     int           `yaml:"writeTimeoutMs,omitempty"`
	IdleTimeoutMs      int           `yaml:"idleTimeoutMs,omitempty"` // no frame or ping for this long drops the connection
	MaxMessageBytes    int64         `yaml:"maxMessageBytes,omitempty"`
	Backoff            BackoffConfig `yaml:"backoff,omitempty"`
}

// BackoffConfig controls reconnection delays.
type BackoffConfig struct {
	InitialMs int     `yaml:"initialMs,omitempty"`
	Factor    float64 `yaml:"factor,omitempty"`
	MaxMs     int     `yaml:"maxMs,omitempty"`
	Jitter    float64 `yaml:"jitter,omitempty"` // 0..1, fraction of the delay
	GiveUp    *bool   `yaml:"giveUp,omitempty"` // surface GivenUp once the cap fails; defaults to true
}

// GiveUpEnabled reports whether the manager should stop after the capped delay fails.
func (b BackoffConfig) GiveUpEnabled() bool {
	if b.GiveUp == nil {
		return true
	}
	return *b.GiveUp
}

// APIConfig points at the REST collaborator serving chat history.
type APIConfig struct {
	BaseURL        string `yaml:"baseUrl,omitempty"`
	Token          string `yaml:"token,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// IdentityConfig is the static identity used by the CLI surfaces.
type IdentityConfig struct {
	ID   string `yaml:"id,omitempty"`
	Role string `yaml:"role,omitempty"` // "consumer" | "publisher" | "admin" | "superadmin"
}

// RelayConfig controls the development relay server.
type RelayConfig struct {
	Port           int             `yaml:"port,omitempty"`
	Bind           string          `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string          `yaml:"customBindHost,omitempty"`
	Database       string          `yaml:"database,omitempty"` // path, or ":memory:"
	Token          string          `yaml:"token,omitempty"`    // bearer token required by REST and /ws when set
	AllowedOrigins []string        `yaml:"allowedOrigins,omitempty"`
	RateLimit      RateLimitConfig `yaml:"rateLimit,omitempty"`
}

// RateLimitConfig limits inbound frames per relay connection.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps,omitempty"`
	Burst int     `yaml:"burst,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// HooksConfig defines shell commands run on lifecycle events.
type HooksConfig struct {
	ConnectionState []HookEntry `yaml:"connectionState,omitempty"`
	GivenUp         []HookEntry `yaml:"givenUp,omitempty"`
	MessageReceived []HookEntry `yaml:"messageReceived,omitempty"`
	MessageSending  []HookEntry `yaml:"messageSending,omitempty"`
	RelayStart      []HookEntry `yaml:"relayStart,omitempty"`
	RelayStop       []HookEntry `yaml:"relayStop,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}
