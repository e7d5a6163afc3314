package providers

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/AI-Template-SDK/senso-visibility/internal/config"
	"github.com/AI-Template-SDK/senso-visibility/internal/providers/claude"
	"github.com/AI-Template-SDK/senso-visibility/internal/providers/common"
	"github.com/AI-Template-SDK/senso-visibility/internal/providers/gpt"
	"github.com/AI-Template-SDK/senso-visibility/services"
)

const retryBaseDelay = 2 * time.Second

// NewProvider creates the analysis provider for cfg.LLMProvider. The fetcher
// lets the provider read brand homepages; it may be nil.
func NewProvider(cfg *config.Config, costService services.CostService, fetcher common.PageFetcher, logger zerolog.Logger, opts ...common.EngineOption) (services.AIProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("provider config is nil")
	}

	var completer common.Completer
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case "openai", "gpt", "azure", "":
		completer = gpt.NewBackend(cfg, costService, logger)
	case "anthropic", "claude":
		completer = claude.NewBackend(cfg, costService, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	if !completer.HasCredentials() {
		logger.Warn().Str("provider", completer.ProviderName()).Msg("[NewProvider] no API key configured, remote calls will fail")
	}

	engineOpts := []common.EngineOption{
		common.WithRetryPolicy(common.RetryPolicy{
			Attempts:  cfg.Analysis.RetryAttempts,
			Timeout:   cfg.Analysis.RetryTimeout,
			BaseDelay: retryBaseDelay,
		}),
		common.WithCategorizeTimeout(cfg.Analysis.CategorizeTimeout),
		common.WithLogger(logger),
	}
	if fetcher != nil {
		engineOpts = append(engineOpts, common.WithPageFetcher(fetcher))
	}
	engineOpts = append(engineOpts, opts...)

	logger.Info().Str("provider", completer.ProviderName()).Msg("[NewProvider] selected LLM provider")
	return common.NewEngine(completer, engineOpts...), nil
}

// NewEmbedder returns the OpenAI embedder used by the vector index, or nil
// when no OpenAI credentials are configured.
func NewEmbedder(cfg *config.Config, logger zerolog.Logger) services.Embedder {
	if cfg == nil || (cfg.OpenAIAPIKey == "" && !cfg.UseAzureOpenAI()) || cfg.EmbeddingModel == "" {
		return nil
	}
	return gpt.NewBackend(cfg, nil, logger)
}
