// Package ws serves turns over a persistent websocket connection.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/vithaluntold/accute-agents/internal/model/chat"
	"github.com/vithaluntold/accute-agents/internal/service/relay"
	"github.com/vithaluntold/accute-agents/internal/service/session"
)

const (
	defaultReadTimeout  = 60 * time.Second
	defaultPingInterval = 54 * time.Second
)

// Handler upgrades connections and runs turns from inbound frames.
type Handler struct {
	store        session.Store
	relay        *relay.Relay
	logger       zerolog.Logger
	readTimeout  time.Duration
	pingInterval time.Duration
	upgrader     websocket.Upgrader
}

// New creates a websocket handler.
func New(store session.Store, rl *relay.Relay, logger zerolog.Logger) *Handler {
	return &Handler{
		store:        store,
		relay:        rl,
		logger:       logger.With().Str("component", "websocket").Logger(),
		readTimeout:  defaultReadTimeout,
		pingInterval: defaultPingInterval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the websocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundFrame struct {
	Type         string `json:"type"`
	Message      string `json:"message,omitempty"`
	DocumentText string `json:"documentText,omitempty"`
}

type outboundFrame struct {
	Event     string                  `json:"event"`
	SessionID string                  `json:"sessionId,omitempty"`
	Content   string                  `json:"content,omitempty"`
	Payload   *chat.StructuredPayload `json:"payload,omitempty"`
	Kind      string                  `json:"kind,omitempty"`
	Message   string                  `json:"message,omitempty"`
	Timestamp int64                   `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	if _, err := h.store.Get(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	logger := h.logger.With().Str("session", sessionID).Logger()
	logger.Info().Msg("connection opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		return nil
	})

	wc := &wsConn{conn: conn}
	go h.pingLoop(ctx, cancel, wc)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var frame inboundFrame
			if err := conn.ReadJSON(&frame); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Warn().Err(err).Msg("read error")
				}
				return
			}

			h.handleFrame(ctx, wc, logger, sessionID, frame)

			// Frames are handled synchronously, so pongs cannot refresh the
			// deadline while a turn runs. Reset it afterwards or a turn longer
			// than the read timeout would kill the socket.
			conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		}
	}
}

func (h *Handler) handleFrame(ctx context.Context, wc *wsConn, logger zerolog.Logger, sessionID string, frame inboundFrame) {
	switch frame.Type {
	case "turn":
		if frame.Message == "" {
			h.sendRequestError(wc, sessionID, "message is required")
			return
		}
		transport := &wsTransport{conn: wc, sessionID: sessionID}
		if err := h.relay.RunTurn(ctx, sessionID, frame.Message, transport); err != nil {
			logger.Warn().Err(err).Msg("turn rejected")
			h.sendRequestError(wc, sessionID, err.Error())
		}
	case "context":
		if frame.DocumentText == "" {
			h.sendRequestError(wc, sessionID, "documentText is required")
			return
		}
		h.relay.StageContext(sessionID, frame.DocumentText)
		wc.writeJSON(outboundFrame{
			Event:     "context.staged",
			SessionID: sessionID,
			Timestamp: time.Now().Unix(),
		})
	default:
		h.sendRequestError(wc, sessionID, "unsupported frame type: "+frame.Type)
	}
}

// sendRequestError reports a frame that never reached dispatch, outside the
// turn event protocol.
func (h *Handler) sendRequestError(wc *wsConn, sessionID, message string) {
	wc.writeJSON(outboundFrame{
		Event:     "error",
		SessionID: sessionID,
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// pingLoop keeps the connection alive and tears the handler down when the
// peer stops responding: a failed ping cancels the context and closes the
// connection so the pending read unblocks immediately.
func (h *Handler) pingLoop(ctx context.Context, cancel context.CancelFunc, wc *wsConn) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := wc.writeMessage(websocket.PingMessage, nil); err != nil {
				cancel()
				wc.conn.Close()
				return
			}
		}
	}
}

// wsConn serializes writes; the ping loop and the turn transport share one
// connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

// wsTransport delivers turn events as JSON frames.
type wsTransport struct {
	conn      *wsConn
	sessionID string
}

func (t *wsTransport) CanStream() bool { return true }

func (t *wsTransport) send(frame outboundFrame) error {
	frame.SessionID = t.sessionID
	frame.Timestamp = time.Now().Unix()
	return t.conn.writeJSON(frame)
}

func (t *wsTransport) SendStart(sessionID, userText string) error {
	return t.send(outboundFrame{Event: relay.EventStart, Content: userText})
}

func (t *wsTransport) SendChunk(text string) error {
	return t.send(outboundFrame{Event: relay.EventChunk, Content: text})
}

func (t *wsTransport) SendComplete(conversationalText string, payload *chat.StructuredPayload) error {
	return t.send(outboundFrame{Event: relay.EventComplete, Content: conversationalText, Payload: payload})
}

func (t *wsTransport) SendError(kind, message string) error {
	return t.send(outboundFrame{Event: relay.EventError, Kind: kind, Message: message})
}

func (t *wsTransport) SendCancelled() error {
	return t.send(outboundFrame{Event: relay.EventCancelled})
}
