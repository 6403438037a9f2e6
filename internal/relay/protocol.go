package relay

import (
	"github.com/soyeahso/slotchat/internal/domain"
	"github.com/soyeahso/slotchat/internal/store"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Store    string `json:"store"`
	Clients  int    `json:"clients"`
	UptimeMs int64  `json:"uptimeMs,omitempty"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Path  string `json:"path,omitempty"`
}

// ThreadResponse is the body of GET /chat/{threadId}.
type ThreadResponse struct {
	Messages []domain.Message `json:"messages"`
}

// PostRequest is the body of POST /chat/{threadId}.
type PostRequest struct {
	Message *domain.Message `json:"message"`
}

// PostResponse echoes the stored message.
type PostResponse struct {
	Message domain.Message `json:"message"`
}

// ThreadsResponse is the body of GET /chat.
type ThreadsResponse struct {
	Threads []store.ThreadSummary `json:"threads"`
}
