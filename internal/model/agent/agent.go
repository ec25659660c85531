package agent

import (
	"encoding/json"

	"github.com/vithaluntold/accute-agents/internal/model/chat"
	"github.com/vithaluntold/accute-agents/internal/service/extract"
)

// Agent describes one conversational assistant: its instruction text, how
// much history it folds into a prompt, and which embedding grammars its
// responses are parsed with, in priority order.
type Agent struct {
	Slug          string `json:"slug"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	SystemPrompt  string `json:"-"`
	HistoryWindow int    `json:"-"`
	// ContextLabel prefixes the serialized in-progress draft in the system
	// prompt, e.g. "Current workflow state".
	ContextLabel string            `json:"-"`
	Grammars     []extract.Grammar `json:"-"`
}

// SnapshotContext serializes an in-progress draft for inclusion in the system
// prompt. Empty when there is no draft or it cannot be serialized.
func (a Agent) SnapshotContext(payload *chat.StructuredPayload) string {
	if payload == nil {
		return ""
	}
	var body any
	switch payload.Kind {
	case chat.PayloadWorkflow:
		body = payload.Workflow
	case chat.PayloadTask:
		body = payload.Task
	case chat.PayloadDocument:
		body = payload.Document
	case chat.PayloadAnalysis:
		body = payload.Analysis
	default:
		return ""
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return string(raw)
}
