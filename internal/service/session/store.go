// Package session persists per-agent conversation sessions as append-only
// message logs, independent of transport.
package session

import (
	"context"
	"errors"

	"github.com/vithaluntold/accute-agents/internal/model/chat"
)

var (
	ErrAgentRequired   = errors.New("agent slug is required")
	ErrSessionNotFound = errors.New("session not found")
)

// Store is the conversation log contract. Messages are append-only: no
// implementation may mutate or reorder a message after Append returns.
// Both MemoryStore and SQLiteStore implement this interface.
type Store interface {
	Create(ctx context.Context, agentSlug, orgID, userID string) (chat.Session, error)
	Get(ctx context.Context, sessionID string) (chat.Session, error)
	Append(ctx context.Context, message chat.Message) error
	List(ctx context.Context, sessionID string) ([]chat.Message, error)
}
