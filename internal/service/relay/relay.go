// Package relay owns the lifecycle of a conversational turn: prompt
// assembly, provider dispatch, ordered chunk delivery, extraction, and the
// single terminal event. A turn moves through
// Idle → Dispatched → Streaming → Finalizing → {Completed, Cancelled, Failed};
// every failure is recovered at the turn boundary and converted to a terminal
// event, never propagated to the host process.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vithaluntold/accute-agents/internal/model/agent"
	"github.com/vithaluntold/accute-agents/internal/model/chat"
	"github.com/vithaluntold/accute-agents/internal/service/extract"
	"github.com/vithaluntold/accute-agents/internal/service/prompt"
	"github.com/vithaluntold/accute-agents/internal/service/provider"
	"github.com/vithaluntold/accute-agents/internal/service/session"
)

// ErrTurnInFlight is returned when a second turn arrives for a session whose
// previous turn has not reached a terminal state. Turns within a session are
// strictly sequential.
var ErrTurnInFlight = errors.New("a turn is already in flight for this session")

// ErrAgentNotFound is returned when a session references an agent slug that
// is no longer registered.
var ErrAgentNotFound = errors.New("agent not found")

const (
	// KindConfiguration marks turn.error events caused by a missing provider
	// configuration rather than a provider failure.
	KindConfiguration = "configuration"
	// KindInternal marks turn.error events for store or transport failures.
	KindInternal = "internal"

	msgNoProvider    = "No AI provider is configured for your organization. Configure your AI provider in settings to enable the assistant."
	msgProviderError = "The assistant could not complete this request. Please try again in a moment."
)

const defaultTurnTimeout = 120 * time.Second

// Relay coordinates turns across sessions: many sessions run concurrently,
// but each session processes at most one turn at a time.
type Relay struct {
	store     session.Store
	agents    agent.Registry
	resolver  provider.Resolver
	streaming bool
	timeout   time.Duration
	logger    zerolog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	staged   map[string]string
}

// New builds a relay. streaming mirrors the provider configuration; when
// false even stream-capable transports receive only the terminal event.
func New(store session.Store, agents agent.Registry, resolver provider.Resolver, streaming bool, timeout time.Duration, logger zerolog.Logger) *Relay {
	if timeout <= 0 {
		timeout = defaultTurnTimeout
	}
	return &Relay{
		store:     store,
		agents:    agents,
		resolver:  resolver,
		streaming: streaming,
		timeout:   timeout,
		logger:    logger.With().Str("component", "relay").Logger(),
		inflight:  make(map[string]struct{}),
		staged:    make(map[string]string),
	}
}

// StageContext stores pre-extracted document text to be folded into the next
// turn of the session, then discarded. Size and type validation happen
// upstream, before the text reaches this subsystem.
func (r *Relay) StageContext(sessionID, documentText string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staged[sessionID] = documentText
}

func (r *Relay) takeContext(sessionID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	text := r.staged[sessionID]
	delete(r.staged, sessionID)
	return text
}

func (r *Relay) acquire(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[sessionID]; busy {
		return false
	}
	r.inflight[sessionID] = struct{}{}
	return true
}

func (r *Relay) release(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, sessionID)
}

// RunTurn processes one user message end to end and guarantees exactly one
// terminal event on the transport. Errors returned to the caller are limited
// to pre-dispatch conditions (unknown session, busy session); everything
// after dispatch is reported through the transport.
func (r *Relay) RunTurn(ctx context.Context, sessionID, userText string, transport Transport) error {
	if !r.acquire(sessionID) {
		return ErrTurnInFlight
	}
	defer r.release(sessionID)

	sess, err := r.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	ag, ok := r.agents.FindBySlug(sess.AgentSlug)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, sess.AgentSlug)
	}

	history, err := r.store.List(ctx, sessionID)
	if err != nil {
		return err
	}

	// The user message is appended before dispatch and survives cancellation.
	userMsg := chat.Message{SessionID: sessionID, Role: chat.RoleUser, Content: userText}
	if err := r.store.Append(ctx, userMsg); err != nil {
		return err
	}

	logger := r.logger.With().Str("session", sessionID).Str("agent", ag.Slug).Logger()

	if err := transport.SendStart(sessionID, userText); err != nil {
		logger.Warn().Err(err).Msg("start event write failed")
		return nil
	}

	adapter, err := r.resolver.Resolve(ctx, sess.OrgID)
	if err != nil {
		if errors.Is(err, provider.ErrNotConfigured) {
			logger.Info().Msg("turn refused: no provider configured")
			r.sendError(transport, logger, KindConfiguration, msgNoProvider)
			return nil
		}
		logger.Error().Err(err).Msg("provider resolution failed")
		r.sendError(transport, logger, KindInternal, msgProviderError)
		return nil
	}

	prevDraft := prompt.LatestDraft(history)
	domain := &prompt.DomainContext{
		Draft:        prevDraft,
		DocumentText: r.takeContext(sessionID),
	}
	systemPrompt, userPrompt := prompt.Assemble(ag, history, userText, domain)

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	responseText, err := r.dispatch(callCtx, adapter, transport, systemPrompt, userPrompt)
	if err != nil {
		r.finishFailed(ctx, transport, logger, err)
		return nil
	}

	// Finalizing: one parse over the full buffered text.
	conversational, payload := extract.Parse(responseText, ag.Grammars)

	assistantMsg := chat.Message{
		SessionID: sessionID,
		Role:      chat.RoleAssistant,
		Content:   conversational,
		Payload:   payload,
	}
	if err := r.store.Append(ctx, assistantMsg); err != nil {
		logger.Error().Err(err).Msg("assistant append failed")
		r.sendError(transport, logger, KindInternal, msgProviderError)
		return nil
	}

	// An extraction miss must not clear the client's current draft: fall back
	// to the previous payload in the terminal event.
	effective := payload
	if effective == nil {
		effective = prevDraft
	}

	if err := transport.SendComplete(conversational, effective); err != nil {
		logger.Warn().Err(err).Msg("complete event write failed")
		return nil
	}

	logger.Info().
		Str("provider", adapter.Name()).
		Int("response_chars", len(responseText)).
		Bool("payload", payload != nil).
		Msg("turn completed")
	return nil
}

// dispatch runs the provider call on the streaming path when both the
// transport and the configuration allow it, otherwise on the blocking path.
func (r *Relay) dispatch(ctx context.Context, adapter provider.Adapter, transport Transport, systemPrompt, userPrompt string) (string, error) {
	if transport.CanStream() && r.streaming {
		return adapter.SendStreaming(ctx, systemPrompt, userPrompt, func(delta string) error {
			if err := transport.SendChunk(delta); err != nil {
				return fmt.Errorf("transport write: %w", err)
			}
			return nil
		})
	}
	return adapter.Send(ctx, systemPrompt, userPrompt)
}

// finishFailed converts a dispatch failure into its terminal event. A client
// cancellation ends the turn as Cancelled with no assistant message; anything
// else ends it as Failed.
func (r *Relay) finishFailed(ctx context.Context, transport Transport, logger zerolog.Logger, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		logger.Info().Msg("turn cancelled by client")
		if sendErr := transport.SendCancelled(); sendErr != nil {
			logger.Debug().Err(sendErr).Msg("cancelled event write failed")
		}
		return
	}

	var perr *provider.Error
	if errors.As(err, &perr) {
		logger.Error().Err(err).Str("kind", string(perr.Kind)).Msg("provider call failed")
		r.sendError(transport, logger, string(perr.Kind), msgProviderError)
		return
	}

	logger.Error().Err(err).Msg("turn failed")
	r.sendError(transport, logger, KindInternal, msgProviderError)
}

func (r *Relay) sendError(transport Transport, logger zerolog.Logger, kind, message string) {
	if err := transport.SendError(kind, message); err != nil {
		logger.Debug().Err(err).Msg("error event write failed")
	}
}
