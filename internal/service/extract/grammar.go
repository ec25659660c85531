package extract

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/vithaluntold/accute-agents/internal/model/chat"
)

// Grammar recognizes one embedding convention inside a model response.
// Match reports the conversational remainder and the recovered payload.
// A failed JSON parse means the grammar did not match, never an error.
type Grammar interface {
	Name() string
	Match(text string) (conversational string, payload *chat.StructuredPayload, ok bool)
}

// DocumentBlock matches the ---DOCUMENT--- ... ---END DOCUMENT--- convention
// with TITLE:/TYPE:/CONTENT: line-prefixed fields inside the block.
type DocumentBlock struct{}

const (
	docOpenMarker  = "---DOCUMENT---"
	docCloseMarker = "---END DOCUMENT---"
)

func (DocumentBlock) Name() string { return "document-block" }

func (DocumentBlock) Match(text string) (string, *chat.StructuredPayload, bool) {
	open := strings.Index(text, docOpenMarker)
	if open < 0 {
		return "", nil, false
	}
	rest := text[open+len(docOpenMarker):]
	end := strings.Index(rest, docCloseMarker)
	if end < 0 {
		return "", nil, false
	}
	block := rest[:end]

	draft := chat.DocumentDraft{Status: chat.DocumentComplete}
	var body strings.Builder
	inContent := false
	for _, line := range strings.Split(block, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case !inContent && strings.HasPrefix(trimmed, "TITLE:"):
			draft.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "TITLE:"))
		case !inContent && strings.HasPrefix(trimmed, "TYPE:"):
			draft.Type = strings.TrimSpace(strings.TrimPrefix(trimmed, "TYPE:"))
		case !inContent && strings.HasPrefix(trimmed, "CONTENT:"):
			inContent = true
			if first := strings.TrimSpace(strings.TrimPrefix(trimmed, "CONTENT:")); first != "" {
				body.WriteString(first)
				body.WriteString("\n")
			}
		case inContent:
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	draft.Body = strings.TrimSpace(body.String())
	if draft.Title == "" && draft.Body == "" {
		return "", nil, false
	}

	conversational := strings.TrimSpace(text[:open])
	payload := &chat.StructuredPayload{Kind: chat.PayloadDocument, Document: &draft}
	return conversational, payload, true
}

// MarkerJSON matches a single delimiter line followed by a raw JSON body,
// e.g. ---WORKFLOW_JSON--- or ---TASK_JSON---.
type MarkerJSON struct {
	Marker string
	Kind   chat.PayloadKind
}

func (g MarkerJSON) Name() string { return "marker-json:" + g.Marker }

func (g MarkerJSON) Match(text string) (string, *chat.StructuredPayload, bool) {
	idx := strings.Index(text, g.Marker)
	if idx < 0 {
		return "", nil, false
	}
	raw := strings.TrimSpace(text[idx+len(g.Marker):])
	raw = stripFence(raw)
	payload, ok := decodePayload([]byte(raw), g.Kind)
	if !ok {
		return "", nil, false
	}
	return strings.TrimSpace(text[:idx]), payload, true
}

// FencedJSON matches a ```json fenced block anywhere in the response. When an
// embedding key such as "workflowUpdate" wraps the object it is unwrapped first.
type FencedJSON struct {
	UnwrapKeys []string
	Kind       chat.PayloadKind
}

func (g FencedJSON) Name() string { return "fenced-json" }

func (g FencedJSON) Match(text string) (string, *chat.StructuredPayload, bool) {
	inner, before, after, found := findFence(text)
	if !found {
		return "", nil, false
	}

	raw := []byte(inner)
	for _, key := range g.UnwrapKeys {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			break
		}
		if inner, present := wrapper[key]; present {
			raw = inner
			break
		}
	}

	payload, ok := decodePayload(raw, g.Kind)
	if !ok {
		return "", nil, false
	}

	conversational := strings.TrimSpace(strings.TrimSpace(before) + "\n" + strings.TrimSpace(after))
	return conversational, payload, true
}

// HeuristicDocument is the last-resort grammar for the document-generation
// agent: no marker at all, just a domain phrase plus a length floor. Inherently
// fuzzy; agents opt in explicitly.
type HeuristicDocument struct {
	Phrases   []string
	MinLength int
}

const defaultHeuristicMinLength = 500

func (g HeuristicDocument) Name() string { return "heuristic-document" }

func (g HeuristicDocument) Match(text string) (string, *chat.StructuredPayload, bool) {
	minLen := g.MinLength
	if minLen == 0 {
		minLen = defaultHeuristicMinLength
	}
	if len(text) < minLen {
		return "", nil, false
	}

	upper := strings.ToUpper(text)
	matched := false
	for _, phrase := range g.Phrases {
		if strings.Contains(upper, strings.ToUpper(phrase)) {
			matched = true
			break
		}
	}
	if !matched {
		return "", nil, false
	}

	payload := &chat.StructuredPayload{
		Kind: chat.PayloadDocument,
		Document: &chat.DocumentDraft{
			Title:  deriveTitle(text),
			Type:   "document",
			Body:   strings.TrimSpace(text),
			Status: chat.DocumentComplete,
		},
	}
	// The whole response becomes the document; nothing conversational remains.
	return "", payload, true
}

const maxDerivedTitleLen = 80

// deriveTitle takes the first non-empty line, strips markdown markup, and
// truncates to a displayable length on a rune boundary.
func deriveTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimLeft(line, "#*> ")
		line = strings.ReplaceAll(line, "**", "")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > maxDerivedTitleLen {
			line = strings.TrimSpace(string([]rune(line)[:maxDerivedTitleLen]))
		}
		return line
	}
	return "Untitled document"
}

// findFence locates the first ```json fence (or a bare ``` fence whose body
// starts with a JSON bracket) and returns its contents plus surrounding text.
func findFence(text string) (inner, before, after string, found bool) {
	start := strings.Index(text, "```json")
	bodyOffset := len("```json")
	if start < 0 {
		start = strings.Index(text, "```")
		bodyOffset = len("```")
		if start < 0 {
			return "", "", "", false
		}
	}

	rest := text[start+bodyOffset:]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", "", "", false
	}

	inner = strings.TrimSpace(rest[:end])
	if !strings.HasPrefix(inner, "{") && !strings.HasPrefix(inner, "[") {
		return "", "", "", false
	}
	return inner, text[:start], rest[end+len("```"):], true
}

// stripFence removes a surrounding ```json fence when the model wraps the
// marker body in one anyway.
func stripFence(raw string) string {
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	if end := strings.LastIndex(raw, "```"); end >= 0 {
		raw = raw[:end]
	}
	return strings.TrimSpace(raw)
}

// decodePayload unmarshals raw JSON into the typed variant for kind. A decode
// or validation failure reports no match.
func decodePayload(raw []byte, kind chat.PayloadKind) (*chat.StructuredPayload, bool) {
	payload := &chat.StructuredPayload{Kind: kind}
	switch kind {
	case chat.PayloadWorkflow:
		var draft chat.WorkflowDraft
		if err := json.Unmarshal(raw, &draft); err != nil {
			return nil, false
		}
		payload.Workflow = &draft
	case chat.PayloadTask:
		var task chat.TaskExtraction
		if err := json.Unmarshal(raw, &task); err != nil {
			return nil, false
		}
		payload.Task = &task
	case chat.PayloadDocument:
		var doc chat.DocumentDraft
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, false
		}
		if doc.Status == "" {
			doc.Status = chat.DocumentComplete
		}
		payload.Document = &doc
	case chat.PayloadAnalysis:
		if !json.Valid(raw) {
			return nil, false
		}
		payload.Analysis = json.RawMessage(append([]byte(nil), raw...))
	default:
		return nil, false
	}

	if err := payload.Validate(); err != nil {
		return nil, false
	}
	return payload, true
}
