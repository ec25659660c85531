package relay

import "github.com/vithaluntold/accute-agents/internal/model/chat"

// Turn protocol event names, shared by every transport.
const (
	EventStart     = "turn.start"
	EventChunk     = "turn.chunk"
	EventComplete  = "turn.complete"
	EventError     = "turn.error"
	EventCancelled = "turn.cancelled"
)

// Transport delivers turn events to one client connection. Implementations
// exist for the SSE push channel, the websocket channel and the blocking
// request/response fallback; callers above the relay never see which one is
// active.
type Transport interface {
	// CanStream reports whether the transport can deliver incremental chunks.
	// When false the relay uses the provider's blocking path and the client
	// receives only the terminal event.
	CanStream() bool
	SendStart(sessionID, userText string) error
	SendChunk(text string) error
	SendComplete(conversationalText string, payload *chat.StructuredPayload) error
	SendError(kind, message string) error
	SendCancelled() error
}
