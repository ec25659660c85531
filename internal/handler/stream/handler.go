// Package stream serves turns over Server-Sent Events.
package stream

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/vithaluntold/accute-agents/internal/model/chat"
	"github.com/vithaluntold/accute-agents/internal/service/relay"
	"github.com/vithaluntold/accute-agents/internal/service/session"
	"github.com/vithaluntold/accute-agents/pkg/utils"
)

// Handler runs turns for SSE clients.
type Handler struct {
	relay  *relay.Relay
	logger zerolog.Logger
}

// New creates a stream handler.
func New(rl *relay.Relay, logger zerolog.Logger) *Handler {
	return &Handler{relay: rl, logger: logger.With().Str("component", "sse").Logger()}
}

// RegisterRoutes registers the SSE route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userMessage := r.URL.Query().Get("message")

	if userMessage == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	transport := &sseTransport{w: w, flusher: flusher}

	// Errors returned here precede the first event, so the response is still
	// a plain JSON error with a meaningful status.
	if err := h.relay.RunTurn(r.Context(), sessionID, userMessage, transport); err != nil {
		h.logger.Warn().Err(err).Str("session", sessionID).Msg("turn rejected")
		utils.RespondError(w, statusForError(err), err.Error())
		return
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, relay.ErrAgentNotFound):
		return http.StatusNotFound
	case errors.Is(err, relay.ErrTurnInFlight):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// turnEvent is the data document carried by every SSE turn event.
type turnEvent struct {
	SessionID string                  `json:"sessionId,omitempty"`
	Content   string                  `json:"content,omitempty"`
	Payload   *chat.StructuredPayload `json:"payload,omitempty"`
	Kind      string                  `json:"kind,omitempty"`
	Message   string                  `json:"message,omitempty"`
}

// sseTransport delivers turn events as named SSE events. Headers are written
// with the first event so pre-dispatch failures can still use HTTP status
// codes.
type sseTransport struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (t *sseTransport) CanStream() bool { return true }

func (t *sseTransport) SendStart(sessionID, userText string) error {
	if !t.started {
		utils.SetupSSEHeaders(t.w)
		t.started = true
	}
	return utils.SendSSEEvent(t.w, t.flusher, relay.EventStart, turnEvent{
		SessionID: sessionID,
		Content:   userText,
	})
}

func (t *sseTransport) SendChunk(text string) error {
	return utils.SendSSEEvent(t.w, t.flusher, relay.EventChunk, turnEvent{Content: text})
}

func (t *sseTransport) SendComplete(conversationalText string, payload *chat.StructuredPayload) error {
	return utils.SendSSEEvent(t.w, t.flusher, relay.EventComplete, turnEvent{
		Content: conversationalText,
		Payload: payload,
	})
}

func (t *sseTransport) SendError(kind, message string) error {
	return utils.SendSSEEvent(t.w, t.flusher, relay.EventError, turnEvent{
		Kind:    kind,
		Message: message,
	})
}

func (t *sseTransport) SendCancelled() error {
	// The peer has usually gone away by now; a write failure is expected.
	if err := utils.SendSSEEvent(t.w, t.flusher, relay.EventCancelled, turnEvent{}); err != nil {
		return fmt.Errorf("cancelled event: %w", err)
	}
	return nil
}
