package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	agentHandler "github.com/vithaluntold/accute-agents/internal/handler/agent"
	chatHandler "github.com/vithaluntold/accute-agents/internal/handler/chat"
	streamHandler "github.com/vithaluntold/accute-agents/internal/handler/stream"
	wsHandler "github.com/vithaluntold/accute-agents/internal/handler/ws"
	middlewarePkg "github.com/vithaluntold/accute-agents/internal/middleware"
	agentModel "github.com/vithaluntold/accute-agents/internal/model/agent"
	"github.com/vithaluntold/accute-agents/internal/service/relay"
	"github.com/vithaluntold/accute-agents/internal/service/session"
	"github.com/vithaluntold/accute-agents/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(registry agentModel.Registry, store session.Store, rl *relay.Relay, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middlewarePkg.CORS())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		agentHandler.New(registry).RegisterRoutes(api)
		chatHandler.New(store, registry, rl).RegisterRoutes(api)
		streamHandler.New(rl, logger).RegisterRoutes(api)
		wsHandler.New(store, rl, logger).RegisterRoutes(api)
	})

	return r
}
