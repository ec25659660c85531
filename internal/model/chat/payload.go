package chat

import (
	"encoding/json"
	"fmt"
)

// PayloadKind tags the variant carried by a StructuredPayload.
type PayloadKind string

const (
	PayloadWorkflow PayloadKind = "workflow"
	PayloadTask     PayloadKind = "task"
	PayloadDocument PayloadKind = "document"
	PayloadAnalysis PayloadKind = "analysis"
)

// StructuredPayload is the domain object a model embeds inside free text.
// Exactly one of the variant fields is set, matching Kind. At most one
// payload attaches to an assistant message.
type StructuredPayload struct {
	Kind     PayloadKind     `json:"kind"`
	Workflow *WorkflowDraft  `json:"workflow,omitempty"`
	Task     *TaskExtraction `json:"task,omitempty"`
	Document *DocumentDraft  `json:"document,omitempty"`
	Analysis json.RawMessage `json:"analysis,omitempty"`
}

// WorkflowStatus tracks whether a draft is still being assembled.
type WorkflowStatus string

const (
	WorkflowBuilding WorkflowStatus = "building"
	WorkflowComplete WorkflowStatus = "complete"
)

// NodeStatus is the per-node progress marker inside a workflow draft.
type NodeStatus string

const (
	NodePending NodeStatus = "pending"
	NodeAdded   NodeStatus = "added"
	NodeDone    NodeStatus = "complete"
)

// WorkflowDraft is the in-progress workflow tree an agent builds turn by turn.
type WorkflowDraft struct {
	Name   string         `json:"name"`
	Status WorkflowStatus `json:"status"`
	Stages []Stage        `json:"stages"`
}

// Stage groups steps within a workflow draft.
type Stage struct {
	ID     string     `json:"id"`
	Title  string     `json:"title"`
	Status NodeStatus `json:"status,omitempty"`
	Steps  []Step     `json:"steps,omitempty"`
}

// Step groups tasks within a stage.
type Step struct {
	ID     string     `json:"id"`
	Title  string     `json:"title"`
	Status NodeStatus `json:"status,omitempty"`
	Tasks  []TaskNode `json:"tasks,omitempty"`
}

// TaskNode is a leaf-or-branch task within a step.
type TaskNode struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Status    NodeStatus  `json:"status,omitempty"`
	Subtasks  []TaskNode  `json:"subtasks,omitempty"`
	Checklist []Checklist `json:"checklist,omitempty"`
}

// Checklist is the finest-grained node in a workflow draft.
type Checklist struct {
	ID     string     `json:"id"`
	Title  string     `json:"title"`
	Status NodeStatus `json:"status,omitempty"`
}

// TaskExtraction is a single task record recovered from model output,
// typically from triaged email or meeting notes.
type TaskExtraction struct {
	Title      string   `json:"title"`
	Priority   string   `json:"priority"`
	DueDate    string   `json:"dueDate,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	SourceKind string   `json:"sourceKind,omitempty"`
	SourceRef  string   `json:"sourceRef,omitempty"`
}

// DocumentStatus tracks document draft readiness.
type DocumentStatus string

const (
	DocumentGenerating DocumentStatus = "generating"
	DocumentComplete   DocumentStatus = "complete"
)

// DocumentDraft is a generated document (engagement letter, memo, template body).
type DocumentDraft struct {
	Title  string         `json:"title"`
	Type   string         `json:"type"`
	Body   string         `json:"body"`
	Status DocumentStatus `json:"status"`
}

// Validate checks the variant invariant and, for workflows, node id uniqueness.
func (p *StructuredPayload) Validate() error {
	switch p.Kind {
	case PayloadWorkflow:
		if p.Workflow == nil {
			return fmt.Errorf("payload kind %s without workflow variant", p.Kind)
		}
		return p.Workflow.validateIDs()
	case PayloadTask:
		if p.Task == nil {
			return fmt.Errorf("payload kind %s without task variant", p.Kind)
		}
	case PayloadDocument:
		if p.Document == nil {
			return fmt.Errorf("payload kind %s without document variant", p.Kind)
		}
	case PayloadAnalysis:
		if len(p.Analysis) == 0 {
			return fmt.Errorf("payload kind %s without analysis body", p.Kind)
		}
	default:
		return fmt.Errorf("unknown payload kind %q", p.Kind)
	}
	return nil
}

func (d *WorkflowDraft) validateIDs() error {
	seen := make(map[string]struct{})
	visit := func(id string) error {
		if id == "" {
			return nil
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate node id %q in workflow draft", id)
		}
		seen[id] = struct{}{}
		return nil
	}

	var walkTasks func(tasks []TaskNode) error
	walkTasks = func(tasks []TaskNode) error {
		for _, task := range tasks {
			if err := visit(task.ID); err != nil {
				return err
			}
			for _, item := range task.Checklist {
				if err := visit(item.ID); err != nil {
					return err
				}
			}
			if err := walkTasks(task.Subtasks); err != nil {
				return err
			}
		}
		return nil
	}

	for _, stage := range d.Stages {
		if err := visit(stage.ID); err != nil {
			return err
		}
		for _, step := range stage.Steps {
			if err := visit(step.ID); err != nil {
				return err
			}
			if err := walkTasks(step.Tasks); err != nil {
				return err
			}
		}
	}
	return nil
}
