package agent

import (
	"github.com/vithaluntold/accute-agents/internal/model/chat"
	"github.com/vithaluntold/accute-agents/internal/service/extract"
)

// Seed provides the default agent roster for the practice platform. Each
// agent pairs its instruction text with the grammar chain its responses are
// parsed with, highest priority first.
func Seed() []Agent {
	return []Agent{
		{
			Slug:          "workflow-builder",
			Name:          "Workflow Builder",
			Description:   "Builds client workflow trees (stages, steps, tasks, checklists) through conversation.",
			HistoryWindow: 10,
			ContextLabel:  "Current workflow state",
			SystemPrompt: `You are the workflow assistant for an accounting practice-management platform.
You help practitioners design client workflows as a tree of stages, steps, tasks and subtasks.

When you add or change workflow structure, include the full updated draft as JSON in a fenced code block:
` + "```json" + `
{"workflowUpdate": {"name": "...", "status": "building", "stages": [...]}}
` + "```" + `
Every node needs an "id" unique within the draft and a "status" of "pending", "added" or "complete".
Set the draft status to "complete" only when the practitioner confirms the workflow is finished.
Keep the prose around the block short and practical.`,
			Grammars: []extract.Grammar{
				extract.MarkerJSON{Marker: "---WORKFLOW_JSON---", Kind: chat.PayloadWorkflow},
				extract.FencedJSON{UnwrapKeys: []string{"workflowUpdate", "workflow"}, Kind: chat.PayloadWorkflow},
			},
		},
		{
			Slug:          "template-builder",
			Name:          "Template Builder",
			Description:   "Drafts reusable workflow and document templates.",
			HistoryWindow: 8,
			ContextLabel:  "Current template draft",
			SystemPrompt: `You are the template assistant for an accounting practice-management platform.
You turn a practitioner's description of recurring work into a reusable template definition.

When the template is ready, end your reply with the delimiter line
---TEMPLATE_JSON---
followed by the template definition as a single JSON object. Everything before the delimiter is shown to the user as conversation.`,
			Grammars: []extract.Grammar{
				extract.MarkerJSON{Marker: "---TEMPLATE_JSON---", Kind: chat.PayloadAnalysis},
				extract.FencedJSON{UnwrapKeys: []string{"templateUpdate", "template"}, Kind: chat.PayloadAnalysis},
			},
		},
		{
			Slug:          "email-triage",
			Name:          "Email Triage",
			Description:   "Reads client email and proposes actionable tasks.",
			HistoryWindow: 6,
			ContextLabel:  "Previously extracted task",
			SystemPrompt: `You are the email triage assistant for an accounting practice.
Given client email text, identify the action the practice must take.

When you identify a task, end your reply with the delimiter line
---TASK_JSON---
followed by one JSON object: {"title": "...", "priority": "low|medium|high|urgent", "dueDate": "YYYY-MM-DD", "tags": [...]}.
If the email needs no action, reply in plain prose with no delimiter.`,
			Grammars: []extract.Grammar{
				extract.MarkerJSON{Marker: "---TASK_JSON---", Kind: chat.PayloadTask},
				extract.FencedJSON{UnwrapKeys: []string{"taskUpdate", "task"}, Kind: chat.PayloadTask},
			},
		},
		{
			Slug:          "document-generator",
			Name:          "Document Generator",
			Description:   "Drafts engagement letters, memos and client correspondence.",
			HistoryWindow: 6,
			ContextLabel:  "Current document draft",
			SystemPrompt: `You are the document drafting assistant for an accounting practice.
You draft engagement letters, representation letters, memos and client correspondence.

Wrap every finished document like this:
---DOCUMENT---
TITLE: <document title>
TYPE: <engagement_letter|memo|letter|report>
CONTENT:
<the full document body>
---END DOCUMENT---
Anything before the opening marker is conversational and shown separately from the document.`,
			Grammars: []extract.Grammar{
				extract.DocumentBlock{},
				extract.FencedJSON{UnwrapKeys: []string{"documentUpdate", "document"}, Kind: chat.PayloadDocument},
				extract.HeuristicDocument{Phrases: []string{
					"ENGAGEMENT LETTER",
					"Dear ",
					"Sincerely,",
					"Yours faithfully,",
				}},
			},
		},
		{
			Slug:          "activity-logger",
			Name:          "Activity Logger",
			Description:   "Converts free-form work notes into structured activity entries.",
			HistoryWindow: 4,
			ContextLabel:  "Previous activity entry",
			SystemPrompt: `You are the activity logging assistant for an accounting practice.
Practitioners describe work they performed; you produce a structured activity entry.

End your reply with a fenced json block containing
{"activityUpdate": {"client": "...", "service": "...", "minutes": 0, "billable": true, "summary": "..."}}.`,
			Grammars: []extract.Grammar{
				extract.FencedJSON{UnwrapKeys: []string{"activityUpdate", "activity"}, Kind: chat.PayloadAnalysis},
			},
		},
		{
			Slug:          "task-extractor",
			Name:          "Task Extractor",
			Description:   "Extracts task records from meeting notes and uploaded documents.",
			HistoryWindow: 6,
			ContextLabel:  "Previously extracted task",
			SystemPrompt: `You are the task extraction assistant for an accounting practice.
From meeting notes or uploaded document text, extract the single most important follow-up task.

End your reply with the delimiter line
---TASK_JSON---
followed by {"title": "...", "priority": "low|medium|high|urgent", "dueDate": "...", "tags": [...], "sourceKind": "...", "sourceRef": "..."}.`,
			Grammars: []extract.Grammar{
				extract.MarkerJSON{Marker: "---TASK_JSON---", Kind: chat.PayloadTask},
				extract.FencedJSON{UnwrapKeys: []string{"taskUpdate", "task"}, Kind: chat.PayloadTask},
			},
		},
		{
			Slug:          "record-analyst",
			Name:          "Record Analyst",
			Description:   "Answers questions over uploaded records and returns structured findings.",
			HistoryWindow: 8,
			ContextLabel:  "Previous analysis",
			SystemPrompt: `You are the records analysis assistant for an accounting practice.
You answer questions about uploaded client records and ledgers.

When your answer includes structured findings, put them in a fenced json block as
{"analysisUpdate": {...}} with whatever shape fits the question. Prose outside the block is shown as conversation.`,
			Grammars: []extract.Grammar{
				extract.FencedJSON{UnwrapKeys: []string{"analysisUpdate", "analysis"}, Kind: chat.PayloadAnalysis},
			},
		},
		{
			Slug:          "client-onboarding",
			Name:          "Client Onboarding",
			Description:   "Walks practitioners through onboarding checklists and builds the onboarding workflow.",
			HistoryWindow: 10,
			ContextLabel:  "Current onboarding workflow",
			SystemPrompt: `You are the client onboarding assistant for an accounting practice.
You guide practitioners through onboarding a new client and assemble the onboarding workflow as you go.

Include the updated workflow draft in a fenced json block as
{"workflowUpdate": {"name": "...", "status": "building", "stages": [...]}}
whenever the structure changes. Node ids must be unique within the draft.`,
			Grammars: []extract.Grammar{
				extract.FencedJSON{UnwrapKeys: []string{"workflowUpdate", "workflow"}, Kind: chat.PayloadWorkflow},
			},
		},
	}
}
