// Package gpt sends completions and embeddings to OpenAI or Azure OpenAI.
package gpt

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"github.com/AI-Template-SDK/senso-visibility/internal/config"
	"github.com/AI-Template-SDK/senso-visibility/internal/providers/common"
	"github.com/AI-Template-SDK/senso-visibility/services"
)

const azureAPIVersion = "2024-12-01-preview"

// Backend implements common.Completer on the chat completions API
type Backend struct {
	client         *openai.Client
	model          string
	embeddingModel string
	hasKey         bool
	costService    services.CostService
	logger         zerolog.Logger
}

// NewBackend creates an OpenAI backend. Extra request options are appended
// after the credentials, which lets tests point the client at a mock server.
func NewBackend(cfg *config.Config, costService services.CostService, logger zerolog.Logger, opts ...option.RequestOption) *Backend {
	if cfg == nil {
		cfg = &config.Config{}
	}

	// Retries belong to common.Retry alone
	base := []option.RequestOption{option.WithMaxRetries(0)}
	model := cfg.OpenAIModel
	hasKey := cfg.OpenAIAPIKey != ""

	if cfg.UseAzureOpenAI() {
		base = append(base,
			azure.WithEndpoint(cfg.AzureOpenAIEndpoint, azureAPIVersion),
			azure.WithAPIKey(cfg.AzureOpenAIKey),
		)
		model = cfg.AzureOpenAIDeploymentName
		hasKey = true
		logger.Info().Str("endpoint", cfg.AzureOpenAIEndpoint).Str("deployment", model).Msg("[NewBackend] using Azure OpenAI")
	} else {
		base = append(base, option.WithAPIKey(cfg.OpenAIAPIKey))
		logger.Info().Str("model", model).Msg("[NewBackend] using OpenAI")
	}

	client := openai.NewClient(append(base, opts...)...)
	return &Backend{
		client:         &client,
		model:          model,
		embeddingModel: cfg.EmbeddingModel,
		hasKey:         hasKey,
		costService:    costService,
		logger:         logger,
	}
}

func (b *Backend) ProviderName() string {
	return "openai"
}

func (b *Backend) HasCredentials() bool {
	return b.hasKey
}

// Model returns the chat model or Azure deployment in use
func (b *Backend) Model() string {
	return b.model
}

func (b *Backend) Complete(ctx context.Context, req common.CompletionRequest) (*common.Completion, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(b.model),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			name = req.Name
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        name,
					Description: openai.String("Structured output for " + req.Name),
					Schema:      req.Schema,
					Strict:      openai.Bool(true),
				},
			},
		}
	}

	response, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai %s request failed: %w", req.Name, err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned from OpenAI")
	}

	inputTokens := int(response.Usage.PromptTokens)
	outputTokens := int(response.Usage.CompletionTokens)
	return &common.Completion{
		Text:         response.Choices[0].Message.Content,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         b.cost(inputTokens, outputTokens),
	}, nil
}

// Embed returns the embedding vector of text
func (b *Backend) Embed(ctx context.Context, text string) ([]float32, error) {
	response, err := b.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(b.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(response.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned from OpenAI")
	}

	vector := make([]float32, len(response.Data[0].Embedding))
	for i, v := range response.Data[0].Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

func (b *Backend) cost(inputTokens, outputTokens int) float64 {
	if b.costService == nil {
		return 0
	}
	return b.costService.CalculateCost(b.ProviderName(), b.model, inputTokens, outputTokens)
}
