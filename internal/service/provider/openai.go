package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/vithaluntold/accute-agents/internal/config"
)

// OpenAIAdapter speaks the OpenAI chat completions API. It also serves Azure
// OpenAI deployments, which expose the same API behind a different endpoint
// and auth scheme.
type OpenAIAdapter struct {
	client openai.Client
	cfg    config.ProviderConfig
	name   string
}

// NewOpenAIAdapter builds an adapter for the public OpenAI API.
func NewOpenAIAdapter(cfg config.ProviderConfig) (*OpenAIAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai adapter: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai adapter: model is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIAdapter{
		client: openai.NewClient(opts...),
		cfg:    cfg,
		name:   string(config.ProviderOpenAI),
	}, nil
}

// NewAzureAdapter builds an adapter for an Azure OpenAI deployment. The model
// field carries the deployment name.
func NewAzureAdapter(cfg config.ProviderConfig) (*OpenAIAdapter, error) {
	if cfg.APIKey == "" || cfg.AzureEndpoint == "" || cfg.AzureDeployment == "" {
		return nil, fmt.Errorf("azure adapter: api key, endpoint and deployment are required")
	}

	client := openai.NewClient(
		azure.WithEndpoint(cfg.AzureEndpoint, cfg.AzureAPIVersion),
		azure.WithAPIKey(cfg.APIKey),
	)

	cfg.Model = cfg.AzureDeployment
	return &OpenAIAdapter{
		client: client,
		cfg:    cfg,
		name:   string(config.ProviderAzure),
	}, nil
}

// Name returns the backend variant identifier.
func (a *OpenAIAdapter) Name() string { return a.name }

// Send performs a single blocking completion.
func (a *OpenAIAdapter) Send(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	completion, err := a.client.Chat.Completions.New(ctx, a.buildParams(systemPrompt, userPrompt))
	if err != nil {
		return "", a.classify(ctx, err)
	}

	if len(completion.Choices) == 0 {
		return "", newError(KindMalformedResponse, errors.New("completion returned no choices"))
	}
	return completion.Choices[0].Message.Content, nil
}

// SendStreaming performs a token-stream completion, forwarding deltas in
// arrival order and returning the concatenated text.
func (a *OpenAIAdapter) SendStreaming(ctx context.Context, systemPrompt, userPrompt string, onChunk func(string) error) (string, error) {
	stream := a.client.Chat.Completions.NewStreaming(ctx, a.buildParams(systemPrompt, userPrompt))

	var full strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := onChunk(delta); err != nil {
			return "", err
		}
	}
	if err := stream.Err(); err != nil {
		return "", a.classify(ctx, err)
	}

	return full.String(), nil
}

func (a *OpenAIAdapter) buildParams(systemPrompt, userPrompt string) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	}

	if a.cfg.Temperature != nil {
		params.Temperature = openai.Float(*a.cfg.Temperature)
	}
	if a.cfg.TopP != nil {
		params.TopP = openai.Float(*a.cfg.TopP)
	}
	if a.cfg.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*a.cfg.MaxTokens))
	}

	return params
}

func (a *OpenAIAdapter) classify(ctx context.Context, err error) error {
	if mapped := classifyContext(ctx, err); mapped != nil {
		return mapped
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return newError(classifyStatus(apierr.StatusCode), err)
	}
	return newError(KindMalformedResponse, err)
}
