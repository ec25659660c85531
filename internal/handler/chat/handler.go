package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	agentModel "github.com/vithaluntold/accute-agents/internal/model/agent"
	chatModel "github.com/vithaluntold/accute-agents/internal/model/chat"
	"github.com/vithaluntold/accute-agents/internal/service/relay"
	"github.com/vithaluntold/accute-agents/internal/service/session"
	"github.com/vithaluntold/accute-agents/pkg/utils"
)

// maxContextChars caps staged document text. Larger uploads should be
// summarized client-side before staging.
const maxContextChars = 100_000

// Handler serves session CRUD, the blocking turn endpoint and context staging.
type Handler struct {
	store    session.Store
	registry agentModel.Registry
	relay    *relay.Relay
}

// New creates a chat handler.
func New(store session.Store, registry agentModel.Registry, rl *relay.Relay) *Handler {
	return &Handler{store: store, registry: registry, relay: rl}
}

// RegisterRoutes registers session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions/{sessionID}/messages", h.handleListMessages)
	r.Post("/sessions/{sessionID}/turn", h.handleTurn)
	r.Post("/sessions/{sessionID}/context", h.handleStageContext)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AgentSlug string `json:"agentSlug"`
		OrgID     string `json:"orgId"`
		UserID    string `json:"userId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.AgentSlug == "" {
		utils.RespondError(w, http.StatusBadRequest, "agentSlug is required")
		return
	}

	if _, ok := h.registry.FindBySlug(payload.AgentSlug); !ok {
		utils.RespondError(w, http.StatusBadRequest, "agent not found")
		return
	}

	sess, err := h.store.Create(r.Context(), payload.AgentSlug, payload.OrgID, payload.UserID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, err := h.store.Get(r.Context(), sessionID); err != nil {
		utils.RespondError(w, statusForError(err), err.Error())
		return
	}

	messages, err := h.store.List(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, statusForError(err), err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"messages":  messages,
	})
}

// handleTurn runs one turn and responds with the terminal event as a single
// JSON document. Chunks are never delivered on this endpoint.
func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	transport := &blockingTransport{}
	if err := h.relay.RunTurn(r.Context(), sessionID, payload.Message, transport); err != nil {
		utils.RespondError(w, statusForError(err), err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, transport.terminal())
}

func (h *Handler) handleStageContext(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		DocumentText string `json:"documentText"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.DocumentText == "" {
		utils.RespondError(w, http.StatusBadRequest, "documentText is required")
		return
	}
	if len(payload.DocumentText) > maxContextChars {
		utils.RespondError(w, http.StatusRequestEntityTooLarge, "documentText exceeds the context limit")
		return
	}

	if _, err := h.store.Get(r.Context(), sessionID); err != nil {
		utils.RespondError(w, statusForError(err), err.Error())
		return
	}

	h.relay.StageContext(sessionID, payload.DocumentText)
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "staged"})
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

// blockingTransport buffers the terminal event for a request/response client.
type blockingTransport struct {
	event   string
	content string
	payload *chatModel.StructuredPayload
	kind    string
	message string
}

func (t *blockingTransport) CanStream() bool { return false }

func (t *blockingTransport) SendStart(sessionID, userText string) error { return nil }

func (t *blockingTransport) SendChunk(text string) error { return nil }

func (t *blockingTransport) SendComplete(conversationalText string, payload *chatModel.StructuredPayload) error {
	t.event = relay.EventComplete
	t.content = conversationalText
	t.payload = payload
	return nil
}

func (t *blockingTransport) SendError(kind, message string) error {
	t.event = relay.EventError
	t.kind = kind
	t.message = message
	return nil
}

func (t *blockingTransport) SendCancelled() error {
	t.event = relay.EventCancelled
	return nil
}

func (t *blockingTransport) terminal() map[string]any {
	body := map[string]any{"event": t.event}
	switch t.event {
	case relay.EventComplete:
		body["content"] = t.content
		body["payload"] = t.payload
	case relay.EventError:
		body["kind"] = t.kind
		body["message"] = t.message
	}
	return body
}
