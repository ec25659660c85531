package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vithaluntold/accute-agents/internal/model/chat"
)

// MemoryStore keeps sessions in process memory. Suitable for tests and
// single-instance deployments without durability requirements.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	messages map[string][]chat.Message
}

// NewMemoryStore bootstraps the in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]chat.Message),
	}
}

// Create provisions a session bound to an agent.
func (s *MemoryStore) Create(_ context.Context, agentSlug, orgID, userID string) (chat.Session, error) {
	if agentSlug == "" {
		return chat.Session{}, ErrAgentRequired
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		AgentSlug: agentSlug,
		OrgID:     orgID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.messages[session.ID] = make([]chat.Message, 0, 16)
	s.mu.Unlock()

	return session, nil
}

// Get retrieves a session by identifier.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Append adds a message to the session log.
func (s *MemoryStore) Append(_ context.Context, message chat.Message) error {
	if message.SessionID == "" {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[message.SessionID]; !ok {
		return ErrSessionNotFound
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	s.messages[message.SessionID] = append(s.messages[message.SessionID], message)
	return nil
}

// List returns stored messages for the session in append order.
func (s *MemoryStore) List(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}
