package agent

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	agentModel "github.com/vithaluntold/accute-agents/internal/model/agent"
	"github.com/vithaluntold/accute-agents/pkg/utils"
)

// Handler serves the agent roster.
type Handler struct {
	registry agentModel.Registry
}

// New creates an agent handler.
func New(registry agentModel.Registry) *Handler {
	return &Handler{registry: registry}
}

// RegisterRoutes registers agent routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/agents", h.handleList)
	r.Get("/agents/{slug}", h.handleGet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.registry.List())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	item, ok := h.registry.FindBySlug(slug)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "agent not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, item)
}
