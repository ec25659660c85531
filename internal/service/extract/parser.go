// Package extract recovers structured domain payloads that a model embeds
// inside free-text answers. Model output is untrusted and inconsistently
// formatted, so recovery is a fixed-priority walk over a small set of known
// grammars; anything unrecognized degrades to plain conversational text.
package extract

import "github.com/vithaluntold/accute-agents/internal/model/chat"

// Parse scans a completed response against the grammars in priority order and
// stops at the first structural match. It is pure and total: any input,
// including empty strings, truncated markers and invalid JSON, yields the
// full text and a nil payload rather than an error.
func Parse(text string, grammars []Grammar) (string, *chat.StructuredPayload) {
	for _, grammar := range grammars {
		if conversational, payload, ok := grammar.Match(text); ok {
			return conversational, payload
		}
	}
	return text, nil
}
