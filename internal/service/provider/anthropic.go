package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/vithaluntold/accute-agents/internal/config"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicAdapter speaks the Anthropic Messages API.
type AnthropicAdapter struct {
	client anthropic.Client
	cfg    config.ProviderConfig
}

// NewAnthropicAdapter builds an adapter for the Anthropic API.
func NewAnthropicAdapter(cfg config.ProviderConfig) (*AnthropicAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic adapter: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic adapter: model is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicAdapter{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
	}, nil
}

// Name returns the backend variant identifier.
func (a *AnthropicAdapter) Name() string { return string(config.ProviderAnthropic) }

// Send performs a single blocking completion.
func (a *AnthropicAdapter) Send(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, a.buildParams(systemPrompt, userPrompt))
	if err != nil {
		return "", a.classify(ctx, err)
	}

	var full strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			full.WriteString(text.Text)
		}
	}
	if full.Len() == 0 && len(msg.Content) == 0 {
		return "", newError(KindMalformedResponse, errors.New("message returned no content blocks"))
	}
	return full.String(), nil
}

// SendStreaming performs a token-stream completion, forwarding text deltas in
// arrival order and returning the concatenated text.
func (a *AnthropicAdapter) SendStreaming(ctx context.Context, systemPrompt, userPrompt string, onChunk func(string) error) (string, error) {
	stream := a.client.Messages.NewStreaming(ctx, a.buildParams(systemPrompt, userPrompt))

	var full strings.Builder
	for stream.Next() {
		event := stream.Current()
		deltaEvent, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		textDelta, ok := deltaEvent.Delta.AsAny().(anthropic.TextDelta)
		if !ok || textDelta.Text == "" {
			continue
		}
		full.WriteString(textDelta.Text)
		if err := onChunk(textDelta.Text); err != nil {
			return "", err
		}
	}
	if err := stream.Err(); err != nil {
		return "", a.classify(ctx, err)
	}

	return full.String(), nil
}

func (a *AnthropicAdapter) buildParams(systemPrompt, userPrompt string) anthropic.MessageNewParams {
	maxTokens := anthropicDefaultMaxTokens
	if a.cfg.MaxTokens != nil {
		maxTokens = *a.cfg.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.cfg.Model),
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	if a.cfg.Temperature != nil {
		params.Temperature = anthropic.Float(*a.cfg.Temperature)
	}
	if a.cfg.TopP != nil {
		params.TopP = anthropic.Float(*a.cfg.TopP)
	}

	return params
}

func (a *AnthropicAdapter) classify(ctx context.Context, err error) error {
	if mapped := classifyContext(ctx, err); mapped != nil {
		return mapped
	}
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return newError(classifyStatus(apierr.StatusCode), err)
	}
	return newError(KindMalformedResponse, err)
}
