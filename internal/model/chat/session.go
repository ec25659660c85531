package chat

import "time"

// Session captures one agent conversation owned by a user within an organization.
type Session struct {
	ID        string    `json:"id"`
	AgentSlug string    `json:"agentSlug"`
	OrgID     string    `json:"orgId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
