package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/slotchat/internal/domain"
	"github.com/soyeahso/slotchat/internal/store"
)

// handleHealth reports liveness and the number of connected clients.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.version,
		Store:   "ok",
		Clients: s.clients.Count(),
	}
	s.mu.Lock()
	if !s.startedAt.IsZero() {
		resp.UptimeMs = time.Since(s.startedAt).Milliseconds()
	}
	s.mu.Unlock()

	code := http.StatusOK
	if err := s.messages.Ping(r.Context()); err != nil {
		s.log.Warn().Err(err).Msg("message store unreachable")
		resp.Status, resp.Store = "degraded", "unavailable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found", Path: r.URL.Path})
}

func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.messages.Threads(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("listing threads failed")
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if threads == nil {
		threads = []store.ThreadSummary{}
	}
	writeJSON(w, http.StatusOK, ThreadsResponse{Threads: threads})
}

func (s *Server) handleListThread(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("threadId")
	msgs, err := s.messages.List(r.Context(), threadID)
	if err != nil {
		s.log.Error().Err(err).Str("thread", threadID).Msg("listing messages failed")
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, ThreadResponse{Messages: msgs})
}

// handlePostThread stores one message. Replays of an already stored message
// answer 200 instead of 201.
func (s *Server) handlePostThread(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("threadId")

	var req PostRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	msg, err := validatePost(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := s.messages.Append(r.Context(), threadID, msg)
	if err != nil {
		s.log.Error().Err(err).Str("thread", threadID).Msg("storing message failed")
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	s.log.Debug().
		Str("thread", threadID).
		Str("sender", msg.Sender).
		Bool("duplicate", !stored).
		Msg("message stored")

	status := http.StatusCreated
	if !stored {
		status = http.StatusOK
	}
	writeJSON(w, status, PostResponse{Message: msg})
}

// validatePost checks the posted message and stamps a missing timestamp.
func validatePost(req PostRequest) (domain.Message, error) {
	if req.Message == nil {
		return domain.Message{}, errors.New("message is required")
	}
	msg := *req.Message
	if msg.Sender == "" {
		return domain.Message{}, errors.New("message.sender is required")
	}
	if !msg.SenderRole.Valid() {
		return domain.Message{}, errors.New("message.senderRole is invalid: " + string(msg.SenderRole))
	}
	if strings.TrimSpace(msg.Content) == "" {
		return domain.Message{}, errors.New("message.content is required")
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC().Truncate(time.Millisecond)
	}
	return msg, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
