// Package claude sends completions to the Anthropic Messages API.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/AI-Template-SDK/senso-visibility/internal/config"
	"github.com/AI-Template-SDK/senso-visibility/internal/providers/common"
	"github.com/AI-Template-SDK/senso-visibility/services"
)

const defaultMaxTokens = 1024

// Backend implements common.Completer on the Messages API. Anthropic has no
// strict schema mode, so structured requests carry the schema in the system
// prompt and rely on the lenient parsers downstream.
type Backend struct {
	client      *anthropic.Client
	model       string
	hasKey      bool
	costService services.CostService
	logger      zerolog.Logger
}

func NewBackend(cfg *config.Config, costService services.CostService, logger zerolog.Logger, opts ...option.RequestOption) *Backend {
	if cfg == nil {
		cfg = &config.Config{}
	}

	// Retries belong to common.Retry alone
	base := []option.RequestOption{option.WithMaxRetries(0), option.WithAPIKey(cfg.AnthropicAPIKey)}
	client := anthropic.NewClient(append(base, opts...)...)
	logger.Info().Str("model", cfg.AnthropicModel).Msg("[NewBackend] using Anthropic")

	return &Backend{
		client:      &client,
		model:       cfg.AnthropicModel,
		hasKey:      cfg.AnthropicAPIKey != "",
		costService: costService,
		logger:      logger,
	}
}

func (b *Backend) ProviderName() string {
	return "anthropic"
}

func (b *Backend) HasCredentials() bool {
	return b.hasKey
}

func (b *Backend) Model() string {
	return b.model
}

func (b *Backend) Complete(ctx context.Context, req common.CompletionRequest) (*common.Completion, error) {
	system := req.System
	if req.Schema != nil {
		schema, err := json.Marshal(req.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s schema: %w", req.Name, err)
		}
		system = strings.TrimSpace(system + "\n\nRespond with ONLY a JSON object matching this schema, no other text:\n" + string(schema))
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: req.User},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
		Temperature: anthropic.Float(req.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	response, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic %s request failed: %w", req.Name, err)
	}

	inputTokens := int(response.Usage.InputTokens)
	outputTokens := int(response.Usage.OutputTokens)
	return &common.Completion{
		Text:         extractResponseText(*response),
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         b.cost(inputTokens, outputTokens),
	}, nil
}

func extractResponseText(response anthropic.Message) string {
	var textParts []string
	for _, block := range response.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			textParts = append(textParts, variant.Text)
		}
	}
	return strings.Join(textParts, "")
}

func (b *Backend) cost(inputTokens, outputTokens int) float64 {
	if b.costService == nil {
		return 0
	}
	return b.costService.CalculateCost(b.ProviderName(), b.model, inputTokens, outputTokens)
}
