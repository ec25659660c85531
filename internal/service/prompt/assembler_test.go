package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vithaluntold/accute-agents/internal/model/agent"
	"github.com/vithaluntold/accute-agents/internal/model/chat"
)

func testAgent(window int) agent.Agent {
	return agent.Agent{
		Slug:          "workflow-builder",
		SystemPrompt:  "You help accountants design workflows.",
		HistoryWindow: window,
		ContextLabel:  "Current workflow state",
	}
}

func TestAssembleSystemPromptOnly(t *testing.T) {
	system, user := Assemble(testAgent(6), nil, "Set up a monthly close workflow", nil)

	assert.Equal(t, "You help accountants design workflows.", system)
	assert.Equal(t, "Set up a monthly close workflow", user)
}

func TestAssembleIncludesDraftSnapshot(t *testing.T) {
	draft := &chat.StructuredPayload{
		Kind:     chat.PayloadWorkflow,
		Workflow: &chat.WorkflowDraft{Name: "Monthly close", Status: chat.WorkflowBuilding},
	}

	system, _ := Assemble(testAgent(6), nil, "add a reconciliation stage", &DomainContext{Draft: draft})

	assert.Contains(t, system, "Current workflow state: ")
	assert.Contains(t, system, `"Monthly close"`)
}

func TestAssembleIncludesDocumentText(t *testing.T) {
	system, _ := Assemble(testAgent(6), nil, "summarize this", &DomainContext{DocumentText: "Invoice #1042 from Acme Ltd"})

	assert.Contains(t, system, "Uploaded document text:")
	assert.Contains(t, system, "Invoice #1042")
}

func TestAssembleHistoryWindow(t *testing.T) {
	var history []chat.Message
	for i := 0; i < 10; i++ {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		history = append(history, chat.Message{Role: role, Content: fmt.Sprintf("message %d", i)})
	}

	_, user := Assemble(testAgent(4), history, "latest question", nil)

	// Only the final four history entries survive the window.
	assert.NotContains(t, user, "message 5")
	assert.Contains(t, user, "message 6")
	assert.Contains(t, user, "message 9")
	assert.True(t, strings.HasSuffix(user, "latest question"))

	// Oldest first.
	assert.Less(t, strings.Index(user, "message 6"), strings.Index(user, "message 9"))
}

func TestAssembleDefaultWindow(t *testing.T) {
	var history []chat.Message
	for i := 0; i < 8; i++ {
		history = append(history, chat.Message{Role: chat.RoleUser, Content: fmt.Sprintf("m%d", i)})
	}

	_, user := Assemble(testAgent(0), history, "q", nil)

	assert.NotContains(t, user, "m1\n")
	assert.Contains(t, user, "m2")
	assert.Contains(t, user, "m7")
}

func TestLatestDraft(t *testing.T) {
	first := &chat.StructuredPayload{Kind: chat.PayloadWorkflow, Workflow: &chat.WorkflowDraft{Name: "v1"}}
	second := &chat.StructuredPayload{Kind: chat.PayloadWorkflow, Workflow: &chat.WorkflowDraft{Name: "v2"}}

	history := []chat.Message{
		{Role: chat.RoleUser, Content: "start"},
		{Role: chat.RoleAssistant, Content: "ok", Payload: first},
		{Role: chat.RoleUser, Content: "more"},
		{Role: chat.RoleAssistant, Content: "done", Payload: second},
		{Role: chat.RoleUser, Content: "thanks"},
		{Role: chat.RoleAssistant, Content: "anytime"},
	}

	draft := LatestDraft(history)
	require.NotNil(t, draft)
	assert.Equal(t, "v2", draft.Workflow.Name)
}

func TestLatestDraftEmptyHistory(t *testing.T) {
	assert.Nil(t, LatestDraft(nil))
	assert.Nil(t, LatestDraft([]chat.Message{{Role: chat.RoleUser, Content: "hi"}}))
}
