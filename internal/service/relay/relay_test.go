package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vithaluntold/accute-agents/internal/model/agent"
	"github.com/vithaluntold/accute-agents/internal/model/chat"
	"github.com/vithaluntold/accute-agents/internal/service/extract"
	"github.com/vithaluntold/accute-agents/internal/service/provider"
	"github.com/vithaluntold/accute-agents/internal/service/session"
)

// fakeAdapter scripts provider behavior for one test.
type fakeAdapter struct {
	mu        sync.Mutex
	chunks    []string
	err       error
	block     chan struct{}
	sendCalls int
	strmCalls int
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Send(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	f.sendCalls++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return "", f.err
	}
	var full string
	for _, chunk := range f.chunks {
		full += chunk
	}
	return full, nil
}

func (f *fakeAdapter) SendStreaming(ctx context.Context, systemPrompt, userPrompt string, onChunk func(string) error) (string, error) {
	f.mu.Lock()
	f.strmCalls++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	var full string
	for _, chunk := range f.chunks {
		if err := onChunk(chunk); err != nil {
			return "", err
		}
		full += chunk
	}
	if f.err != nil {
		return "", f.err
	}
	return full, nil
}

func (f *fakeAdapter) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendCalls, f.strmCalls
}

type fakeResolver struct {
	adapter provider.Adapter
	err     error
}

func (f *fakeResolver) Resolve(context.Context, string) (provider.Adapter, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.adapter, nil
}

// recordedEvent captures one transport call for ordering assertions.
type recordedEvent struct {
	name    string
	content string
	payload *chat.StructuredPayload
	kind    string
}

type recordingTransport struct {
	mu        sync.Mutex
	canStream bool
	startErr  error
	events    []recordedEvent
}

func (t *recordingTransport) record(ev recordedEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
}

func (t *recordingTransport) CanStream() bool { return t.canStream }

func (t *recordingTransport) SendStart(sessionID, userText string) error {
	if t.startErr != nil {
		return t.startErr
	}
	t.record(recordedEvent{name: EventStart, content: userText})
	return nil
}

func (t *recordingTransport) SendChunk(text string) error {
	t.record(recordedEvent{name: EventChunk, content: text})
	return nil
}

func (t *recordingTransport) SendComplete(conversationalText string, payload *chat.StructuredPayload) error {
	t.record(recordedEvent{name: EventComplete, content: conversationalText, payload: payload})
	return nil
}

func (t *recordingTransport) SendError(kind, message string) error {
	t.record(recordedEvent{name: EventError, kind: kind, content: message})
	return nil
}

func (t *recordingTransport) SendCancelled() error {
	t.record(recordedEvent{name: EventCancelled})
	return nil
}

func (t *recordingTransport) names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, len(t.events))
	for i, ev := range t.events {
		names[i] = ev.name
	}
	return names
}

func (t *recordingTransport) last() recordedEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.events) == 0 {
		return recordedEvent{}
	}
	return t.events[len(t.events)-1]
}

func testRegistry() agent.Registry {
	return agent.NewMemoryRegistry([]agent.Agent{{
		Slug:          "workflow-builder",
		Name:          "Workflow Builder",
		SystemPrompt:  "You build workflows.",
		HistoryWindow: 6,
		ContextLabel:  "Current workflow state",
		Grammars: []extract.Grammar{
			extract.MarkerJSON{Marker: "---WORKFLOW_JSON---", Kind: chat.PayloadWorkflow},
			extract.FencedJSON{UnwrapKeys: []string{"workflowUpdate"}, Kind: chat.PayloadWorkflow},
		},
	}})
}

func newTestRelay(t *testing.T, adapter provider.Adapter, resolveErr error, streaming bool) (*Relay, session.Store, string) {
	t.Helper()
	store := session.NewMemoryStore()
	sess, err := store.Create(context.Background(), "workflow-builder", "org-1", "user-1")
	require.NoError(t, err)

	resolver := &fakeResolver{adapter: adapter, err: resolveErr}
	rl := New(store, testRegistry(), resolver, streaming, time.Minute, zerolog.Nop())
	return rl, store, sess.ID
}

func TestRunTurnStreamsAndCompletes(t *testing.T) {
	adapter := &fakeAdapter{chunks: []string{"Here is your workflow.\n", "```json\n", `{"workflowUpdate":{"name":"Monthly close","status":"building","stages":[]}}`, "\n```"}}
	rl, store, sessionID := newTestRelay(t, adapter, nil, true)

	transport := &recordingTransport{canStream: true}
	require.NoError(t, rl.RunTurn(context.Background(), sessionID, "build a monthly close workflow", transport))

	assert.Equal(t, []string{EventStart, EventChunk, EventChunk, EventChunk, EventChunk, EventComplete}, transport.names())

	terminal := transport.last()
	assert.Equal(t, "Here is your workflow.", terminal.content)
	require.NotNil(t, terminal.payload)
	assert.Equal(t, "Monthly close", terminal.payload.Workflow.Name)

	messages, err := store.List(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, chat.RoleUser, messages[0].Role)
	assert.Equal(t, "build a monthly close workflow", messages[0].Content)
	assert.Equal(t, chat.RoleAssistant, messages[1].Role)
	assert.Equal(t, "Here is your workflow.", messages[1].Content)
	require.NotNil(t, messages[1].Payload)
}

func TestRunTurnBlockingTransportSkipsChunks(t *testing.T) {
	adapter := &fakeAdapter{chunks: []string{"plain answer"}}
	rl, _, sessionID := newTestRelay(t, adapter, nil, true)

	transport := &recordingTransport{canStream: false}
	require.NoError(t, rl.RunTurn(context.Background(), sessionID, "question", transport))

	sendCalls, streamCalls := adapter.calls()
	assert.Equal(t, 1, sendCalls)
	assert.Equal(t, 0, streamCalls)
	assert.Equal(t, []string{EventStart, EventComplete}, transport.names())
}

func TestRunTurnStreamingDisabledByConfig(t *testing.T) {
	adapter := &fakeAdapter{chunks: []string{"answer"}}
	rl, _, sessionID := newTestRelay(t, adapter, nil, false)

	transport := &recordingTransport{canStream: true}
	require.NoError(t, rl.RunTurn(context.Background(), sessionID, "question", transport))

	sendCalls, streamCalls := adapter.calls()
	assert.Equal(t, 1, sendCalls)
	assert.Equal(t, 0, streamCalls)
}

func TestRunTurnNoProviderConfigured(t *testing.T) {
	adapter := &fakeAdapter{chunks: []string{"never sent"}}
	rl, store, sessionID := newTestRelay(t, adapter, provider.ErrNotConfigured, true)

	transport := &recordingTransport{canStream: true}
	require.NoError(t, rl.RunTurn(context.Background(), sessionID, "hello", transport))

	sendCalls, streamCalls := adapter.calls()
	assert.Zero(t, sendCalls)
	assert.Zero(t, streamCalls)

	assert.Equal(t, []string{EventStart, EventError}, transport.names())
	terminal := transport.last()
	assert.Equal(t, KindConfiguration, terminal.kind)
	assert.Contains(t, terminal.content, "Configure your AI provider")

	// The user message is still recorded.
	messages, err := store.List(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, chat.RoleUser, messages[0].Role)
}

func TestRunTurnCancellationLeavesOnlyUserMessage(t *testing.T) {
	adapter := &fakeAdapter{chunks: []string{"partial "}, err: context.Canceled}
	rl, store, sessionID := newTestRelay(t, adapter, nil, true)

	transport := &recordingTransport{canStream: true}
	require.NoError(t, rl.RunTurn(context.Background(), sessionID, "long question", transport))

	names := transport.names()
	assert.Equal(t, EventCancelled, names[len(names)-1])

	messages, err := store.List(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, chat.RoleUser, messages[0].Role)
}

func TestRunTurnProviderErrorKindForwarded(t *testing.T) {
	adapter := &fakeAdapter{err: &provider.Error{Kind: provider.KindRateLimit, Message: "429 from upstream"}}
	rl, store, sessionID := newTestRelay(t, adapter, nil, true)

	transport := &recordingTransport{canStream: true}
	require.NoError(t, rl.RunTurn(context.Background(), sessionID, "hello", transport))

	terminal := transport.last()
	assert.Equal(t, EventError, terminal.name)
	assert.Equal(t, string(provider.KindRateLimit), terminal.kind)
	// Raw upstream detail never reaches the client.
	assert.NotContains(t, terminal.content, "429")

	messages, err := store.List(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
}

func TestRunTurnSingleFlightPerSession(t *testing.T) {
	adapter := &fakeAdapter{chunks: []string{"slow answer"}, block: make(chan struct{})}
	rl, _, sessionID := newTestRelay(t, adapter, nil, true)

	first := &recordingTransport{canStream: true}
	done := make(chan error, 1)
	go func() {
		done <- rl.RunTurn(context.Background(), sessionID, "first", first)
	}()

	// Wait for the first turn to reach the provider.
	require.Eventually(t, func() bool {
		_, streamCalls := adapter.calls()
		return streamCalls == 1
	}, time.Second, 5*time.Millisecond)

	second := &recordingTransport{canStream: true}
	err := rl.RunTurn(context.Background(), sessionID, "second", second)
	assert.ErrorIs(t, err, ErrTurnInFlight)
	assert.Empty(t, second.names())

	close(adapter.block)
	require.NoError(t, <-done)
}

func TestRunTurnUnknownSession(t *testing.T) {
	rl, _, _ := newTestRelay(t, &fakeAdapter{}, nil, true)

	err := rl.RunTurn(context.Background(), "missing", "hello", &recordingTransport{})
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestRunTurnDraftFallbackOnExtractionMiss(t *testing.T) {
	adapter := &fakeAdapter{chunks: []string{"Just a clarifying question: which entity?"}}
	rl, store, sessionID := newTestRelay(t, adapter, nil, true)

	draft := &chat.StructuredPayload{
		Kind:     chat.PayloadWorkflow,
		Workflow: &chat.WorkflowDraft{Name: "Monthly close", Status: chat.WorkflowBuilding},
	}
	require.NoError(t, store.Append(context.Background(), chat.Message{
		SessionID: sessionID,
		Role:      chat.RoleAssistant,
		Content:   "Started the draft.",
		Payload:   draft,
	}))

	transport := &recordingTransport{canStream: true}
	require.NoError(t, rl.RunTurn(context.Background(), sessionID, "continue", transport))

	terminal := transport.last()
	assert.Equal(t, EventComplete, terminal.name)
	// The terminal event carries the previous draft forward.
	require.NotNil(t, terminal.payload)
	assert.Equal(t, "Monthly close", terminal.payload.Workflow.Name)

	// The stored assistant message does not: extraction genuinely missed.
	messages, err := store.List(context.Background(), sessionID)
	require.NoError(t, err)
	last := messages[len(messages)-1]
	assert.Equal(t, chat.RoleAssistant, last.Role)
	assert.Nil(t, last.Payload)
}

func TestStageContextConsumedOnce(t *testing.T) {
	adapter := &fakeAdapter{chunks: []string{"noted"}}
	rl, _, sessionID := newTestRelay(t, adapter, nil, true)

	rl.StageContext(sessionID, "Invoice #1042 text")

	assert.Equal(t, "Invoice #1042 text", rl.takeContext(sessionID))
	assert.Equal(t, "", rl.takeContext(sessionID))
}

func TestRunTurnStartWriteFailureAbandonsBeforeProvider(t *testing.T) {
	adapter := &fakeAdapter{chunks: []string{"never sent"}}
	rl, store, sessionID := newTestRelay(t, adapter, nil, true)

	// The transport is the client connection; a failed start write means the
	// client is gone, so the turn stops before the provider is called.
	transport := &recordingTransport{canStream: true, startErr: errors.New("broken pipe")}
	require.NoError(t, rl.RunTurn(context.Background(), sessionID, "hello", transport))

	sendCalls, streamCalls := adapter.calls()
	assert.Zero(t, sendCalls)
	assert.Zero(t, streamCalls)
	assert.Empty(t, transport.names())

	// The user message survives so the client can re-issue the turn.
	messages, err := store.List(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, chat.RoleUser, messages[0].Role)
	assert.Equal(t, "hello", messages[0].Content)
}

func TestRunTurnUnclassifiedErrorIsInternal(t *testing.T) {
	adapter := &fakeAdapter{err: errors.New("boom")}
	rl, _, sessionID := newTestRelay(t, adapter, nil, true)

	transport := &recordingTransport{canStream: true}
	require.NoError(t, rl.RunTurn(context.Background(), sessionID, "hello", transport))

	terminal := transport.last()
	assert.Equal(t, EventError, terminal.name)
	assert.Equal(t, KindInternal, terminal.kind)
}
