package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateVariantMatchesKind(t *testing.T) {
	valid := &StructuredPayload{
		Kind:     PayloadWorkflow,
		Workflow: &WorkflowDraft{Name: "w", Status: WorkflowBuilding},
	}
	assert.NoError(t, valid.Validate())

	missing := &StructuredPayload{Kind: PayloadWorkflow}
	assert.Error(t, missing.Validate())

	unknown := &StructuredPayload{Kind: "mystery"}
	assert.Error(t, unknown.Validate())
}

func TestValidateAnalysisRequiresBody(t *testing.T) {
	empty := &StructuredPayload{Kind: PayloadAnalysis}
	assert.Error(t, empty.Validate())

	filled := &StructuredPayload{Kind: PayloadAnalysis, Analysis: json.RawMessage(`{"ok":true}`)}
	assert.NoError(t, filled.Validate())
}

func TestValidateWorkflowNodeIDUniqueness(t *testing.T) {
	dup := &StructuredPayload{
		Kind: PayloadWorkflow,
		Workflow: &WorkflowDraft{
			Name:   "w",
			Status: WorkflowBuilding,
			Stages: []Stage{
				{ID: "s1", Title: "a", Steps: []Step{
					{ID: "st1", Title: "b", Tasks: []TaskNode{
						{ID: "t1", Title: "c", Subtasks: []TaskNode{{ID: "s1", Title: "dup"}}},
					}},
				}},
			},
		},
	}
	assert.Error(t, dup.Validate())
}

func TestValidateWorkflowEmptyIDsAllowed(t *testing.T) {
	draft := &StructuredPayload{
		Kind: PayloadWorkflow,
		Workflow: &WorkflowDraft{
			Name:   "w",
			Status: WorkflowBuilding,
			Stages: []Stage{{Title: "a"}, {Title: "b"}},
		},
	}
	assert.NoError(t, draft.Validate())
}
