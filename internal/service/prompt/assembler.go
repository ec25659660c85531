// Package prompt builds the (system, user) prompt pair for an agent turn.
// Assembly is deterministic and side-effect free: no network, no storage.
package prompt

import (
	"strings"

	"github.com/vithaluntold/accute-agents/internal/model/agent"
	"github.com/vithaluntold/accute-agents/internal/model/chat"
)

// DomainContext carries optional per-turn context: the in-progress draft from
// a prior turn and pre-extracted text from an uploaded document. File-to-text
// conversion happens upstream; this package only ever sees plain text.
type DomainContext struct {
	Draft        *chat.StructuredPayload
	DocumentText string
}

const defaultHistoryWindow = 6

// Assemble produces the system and user prompts for one turn. The system
// prompt is the agent's instruction text plus a serialized snapshot of any
// in-progress draft; the user prompt is the windowed history flattened as
// "role: content" lines, oldest first, followed by the latest message.
func Assemble(a agent.Agent, history []chat.Message, userText string, domain *DomainContext) (string, string) {
	return buildSystemPrompt(a, domain), buildUserPrompt(a, history, userText)
}

func buildSystemPrompt(a agent.Agent, domain *DomainContext) string {
	var builder strings.Builder
	builder.WriteString(a.SystemPrompt)

	if domain != nil && domain.Draft != nil {
		if snapshot := a.SnapshotContext(domain.Draft); snapshot != "" {
			builder.WriteString("\n\n")
			label := a.ContextLabel
			if label == "" {
				label = "Current draft"
			}
			builder.WriteString(label)
			builder.WriteString(": ")
			builder.WriteString(snapshot)
		}
	}

	if domain != nil && domain.DocumentText != "" {
		builder.WriteString("\n\nUploaded document text:\n")
		builder.WriteString(domain.DocumentText)
	}

	return builder.String()
}

func buildUserPrompt(a agent.Agent, history []chat.Message, userText string) string {
	window := a.HistoryWindow
	if window <= 0 {
		window = defaultHistoryWindow
	}

	startIdx := 0
	if len(history) > window {
		startIdx = len(history) - window
	}

	var builder strings.Builder
	for _, msg := range history[startIdx:] {
		switch msg.Role {
		case chat.RoleUser, chat.RoleAssistant:
			builder.WriteString(string(msg.Role))
			builder.WriteString(": ")
			builder.WriteString(msg.Content)
			builder.WriteString("\n\n")
		}
	}
	builder.WriteString(userText)

	return builder.String()
}

// LatestDraft walks a transcript backwards and returns the most recent
// assistant payload, the draft a new turn should build on. Nil when no turn
// has produced one yet.
func LatestDraft(history []chat.Message) *chat.StructuredPayload {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == chat.RoleAssistant && history[i].Payload != nil {
			return history[i].Payload
		}
	}
	return nil
}
