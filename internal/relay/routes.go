package relay

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// Clients dial the bare origin by default.
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /{$}", s.handleWebSocket)

	mux.HandleFunc("GET /chat", s.requireToken(s.handleThreads))
	mux.HandleFunc("GET /chat/{threadId}", s.requireToken(s.handleListThread))
	mux.HandleFunc("POST /chat/{threadId}", s.requireToken(s.handlePostThread))

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}
