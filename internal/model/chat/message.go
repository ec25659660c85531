package chat

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message persists individual turns. Messages are immutable once appended;
// the pipeline only appends, never edits or reorders.
type Message struct {
	ID        string             `json:"id"`
	SessionID string             `json:"sessionId"`
	Role      Role               `json:"role"`
	Content   string             `json:"content"`
	Payload   *StructuredPayload `json:"payload,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}
