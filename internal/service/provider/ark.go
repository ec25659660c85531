package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/vithaluntold/accute-agents/internal/config"
)

// ArkAdapter wraps an eino chat model for the Ark backend, kept from the
// earlier backend generation for organizations still configured against it.
type ArkAdapter struct {
	chatModel model.ChatModel
}

// NewArkAdapter builds an adapter over an Ark-hosted model.
func NewArkAdapter(ctx context.Context, cfg config.ProviderConfig) (*ArkAdapter, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ark adapter: model is required")
	}
	if cfg.APIKey == "" && (cfg.ArkAccessKey == "" || cfg.ArkSecretKey == "") {
		return nil, fmt.Errorf("ark adapter: api key or access/secret key pair is required")
	}

	var temperature *float32
	if cfg.Temperature != nil {
		val := float32(*cfg.Temperature)
		temperature = &val
	}

	var topP *float32
	if cfg.TopP != nil {
		val := float32(*cfg.TopP)
		topP = &val
	}

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		Region:      cfg.ArkRegion,
		APIKey:      cfg.APIKey,
		AccessKey:   cfg.ArkAccessKey,
		SecretKey:   cfg.ArkSecretKey,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	})
	if err != nil {
		return nil, fmt.Errorf("ark adapter: create chat model: %w", err)
	}

	return &ArkAdapter{chatModel: chatModel}, nil
}

// Name returns the backend variant identifier.
func (a *ArkAdapter) Name() string { return string(config.ProviderArk) }

// Send performs a single blocking completion.
func (a *ArkAdapter) Send(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	response, err := a.chatModel.Generate(ctx, buildArkMessages(systemPrompt, userPrompt))
	if err != nil {
		return "", a.classify(ctx, err)
	}
	if response == nil {
		return "", newError(KindMalformedResponse, errors.New("chat model returned nil message"))
	}
	return response.Content, nil
}

// SendStreaming drains the model's stream reader in order, forwarding each
// content delta and returning the concatenated text.
func (a *ArkAdapter) SendStreaming(ctx context.Context, systemPrompt, userPrompt string, onChunk func(string) error) (string, error) {
	stream, err := a.chatModel.Stream(ctx, buildArkMessages(systemPrompt, userPrompt))
	if err != nil {
		return "", a.classify(ctx, err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", a.classify(ctx, recvErr)
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		full.WriteString(chunk.Content)
		if err := onChunk(chunk.Content); err != nil {
			return "", err
		}
	}

	return full.String(), nil
}

func buildArkMessages(systemPrompt, userPrompt string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}
}

func (a *ArkAdapter) classify(ctx context.Context, err error) error {
	if mapped := classifyContext(ctx, err); mapped != nil {
		return mapped
	}
	// The eino layer does not surface typed API errors; fall back to message
	// inspection for the two kinds worth distinguishing.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "AuthenticationError"):
		return newError(KindAuth, err)
	case strings.Contains(msg, "429") || strings.Contains(msg, "RateLimit"):
		return newError(KindRateLimit, err)
	default:
		return newError(KindMalformedResponse, err)
	}
}
