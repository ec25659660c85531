// Package provider gives the pipeline a uniform interface over the
// interchangeable LLM backends an organization may configure.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Adapter is the uniform LLM backend contract. SendStreaming must invoke
// onChunk strictly in arrival order and still return the full concatenated
// text, so callers never reconstruct it themselves.
type Adapter interface {
	Name() string
	Send(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	SendStreaming(ctx context.Context, systemPrompt, userPrompt string, onChunk func(text string) error) (string, error)
}

// ErrNotConfigured signals that no provider credentials exist for the
// organization. This is a normal user-facing condition: the caller surfaces
// it without attempting a provider call.
var ErrNotConfigured = errors.New("no AI provider configured")

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	KindAuth              ErrorKind = "auth"
	KindRateLimit         ErrorKind = "rate_limit"
	KindTimeout           ErrorKind = "timeout"
	KindMalformedResponse ErrorKind = "malformed_response"
)

// Error is the single normalized failure type for all backend variants.
// Retry policy belongs to callers; nothing in this package retries.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider error (%s): %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Message: cause.Error(), cause: cause}
}

// classifyStatus maps an HTTP status from a backend SDK to an error kind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 429:
		return KindRateLimit
	case status == 408 || status == 504:
		return KindTimeout
	default:
		return KindMalformedResponse
	}
}

// classifyContext turns context expiry into the timeout kind; cancellation is
// passed through untouched so callers can distinguish a client disconnect.
func classifyContext(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(KindTimeout, err)
	}
	return nil
}
