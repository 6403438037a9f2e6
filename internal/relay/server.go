// Package relay is a development relay for the chat transport: a WebSocket
// fan-out between connected clients plus the REST history endpoint, backed
// by SQLite.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/soyeahso/slotchat/internal/config"
	"github.com/soyeahso/slotchat/internal/envelope"
	"github.com/soyeahso/slotchat/internal/hooks"
	"github.com/soyeahso/slotchat/internal/logging"
	"github.com/soyeahso/slotchat/internal/metrics"
	"github.com/soyeahso/slotchat/internal/store"
	"github.com/soyeahso/slotchat/internal/version"
)

const (
	maxFrameBytes = 1 << 20
	maxBodyBytes  = 1 << 20
	writeTimeout  = 10 * time.Second
)

// Drop reasons recorded in metrics.
const (
	dropRateLimited = "rate_limited"
	dropMalformed   = "malformed"
	dropUnknown     = "unknown"
	dropSlow        = "slow_consumer"
)

// Server is the relay HTTP + WebSocket server.
type Server struct {
	cfg      config.RelayConfig
	log      *logging.Logger
	clients  *ClientRegistry
	messages *store.MessageStore
	hooks    *hooks.Manager
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	version  string

	mu         sync.Mutex
	addr       string
	startedAt  time.Time
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// ServerOption configures the relay server.
type ServerOption func(*Server)

// WithHooks sets the hook manager for relay_start and relay_stop.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// WithMetrics records relay metrics into m and serves g on /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// New creates a relay server storing history in messages.
func New(cfg config.RelayConfig, messages *store.MessageStore, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log.Sub("relay"),
		clients:  NewClientRegistry(log.Sub("clients")),
		messages: messages,
		version:  version.Version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.gatherer == nil {
		reg := prometheus.NewRegistry()
		s.metrics = metrics.New(reg)
		s.gatherer = reg
	}
	return s
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin headers.
// Requests without an Origin (non-browser clients) are always allowed.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return originAllowed(origin, allowed)
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.RelayConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Handler returns the full HTTP handler including middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return s.withMiddleware(mux)
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the relay on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.httpServer = httpServer
	s.addr = ln.Addr().String()
	s.startedAt = time.Now()
	s.mu.Unlock()

	if s.cfg.Bind != "loopback" && s.cfg.Token == "" {
		s.log.Warn().Msg("relay reachable beyond loopback without a token")
	}

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Bool("auth", s.cfg.Token != "").
		Msg("relay server ready")

	s.hooks.Emit(ctx, hooks.EventRelayStart, map[string]any{
		"addr": ln.Addr().String(),
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		s.log.Info().Msg("shutting down relay server")
		s.hooks.Emit(context.Background(), hooks.EventRelayStop, nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.CloseAll()
		httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the address the server is listening on, or "" before Serve.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Clients returns the number of connected WebSocket clients.
func (s *Server) Clients() int {
	return s.clients.Count()
}

// handleWebSocket upgrades HTTP to WebSocket and runs the connection loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !authorized(s.cfg.Token, r) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("websocket rejected: bad token")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	var limiter *rate.Limiter
	if s.cfg.RateLimit.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit.RPS), max(s.cfg.RateLimit.Burst, 1))
	}
	client := newClient(conn, r.RemoteAddr, limiter)
	client.startReading()
	go client.writePump(s.log)

	s.clients.Add(client)
	s.metrics.RelayClientAdded()
	defer func() {
		s.clients.Remove(client.ID)
		s.metrics.RelayClientRemoved()
		client.Close()
	}()

	s.readLoop(client)
}

// readLoop relays every valid chat envelope from client to all other clients.
func (s *Server) readLoop(client *Client) {
	for {
		data, err := client.read()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ID).Msg("client closed connection")
			} else {
				s.log.Debug().Err(err).Str("connId", client.ID).Msg("read error")
			}
			return
		}

		if !client.Allow() {
			s.metrics.IncDropped(dropRateLimited)
			s.log.Warn().Str("connId", client.ID).Msg("frame dropped: rate limited")
			continue
		}

		env, err := envelope.Decode(data)
		if err != nil {
			s.metrics.IncDropped(dropMalformed)
			s.log.Warn().Err(err).Str("connId", client.ID).Msg("frame dropped: malformed envelope")
			continue
		}

		chat, ok := env.(envelope.Chat)
		if !ok {
			s.metrics.IncDropped(dropUnknown)
			s.log.Debug().Str("connId", client.ID).Str("type", string(env.Kind())).Msg("frame dropped: unknown kind")
			continue
		}

		out, err := envelope.Encode(chat)
		if err != nil {
			s.metrics.IncDropped(dropMalformed)
			s.log.Warn().Err(err).Str("connId", client.ID).Msg("frame dropped: cannot re-encode")
			continue
		}

		n, slow := s.clients.Broadcast(client.ID, out)
		s.metrics.IncRelayed()
		for _, c := range slow {
			s.metrics.IncDropped(dropSlow)
			s.log.Warn().Str("connId", c.ID).Str("remote", c.Remote).Msg("disconnecting slow client")
			c.Close()
		}
		s.log.Debug().
			Str("connId", client.ID).
			Str("thread", chat.ThreadID).
			Int("recipients", n).
			Msg("envelope relayed")
	}
}
