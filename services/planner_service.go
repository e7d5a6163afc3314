// services/planner_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/AI-Template-SDK/senso-visibility/internal/config"
	"github.com/AI-Template-SDK/senso-visibility/internal/models"
	"github.com/AI-Template-SDK/senso-visibility/internal/repository"
)

const (
	defaultTopicPromptCount = 5
	defaultPlannedTopics    = 5
)

type plannerService struct {
	cfg      *config.Config
	store    repository.Store
	provider AIProvider
	site     SiteService
	analyzer AnalyzerService
	index    SearchIndexService
	logger   zerolog.Logger
}

func NewPlannerService(cfg *config.Config, store repository.Store, provider AIProvider, site SiteService, analyzer AnalyzerService, index SearchIndexService, logger zerolog.Logger) PlannerService {
	return &plannerService{
		cfg:      cfg,
		store:    store,
		provider: provider,
		site:     site,
		analyzer: analyzer,
		index:    index,
		logger:   logger.With().Str("component", "planner").Logger(),
	}
}

// GeneratePrompts plans numberOfTopics topics, reusing stored topics first
// and deriving the rest from the brand site. A topic whose generation fails
// is returned with no prompts.
func (s *plannerService) GeneratePrompts(ctx context.Context, brandURL string, competitors []string, settings models.RunSettings) ([]models.TopicPlan, error) {
	numTopics := settings.NumberOfTopics
	if numTopics <= 0 {
		numTopics = s.cfg.Analysis.NumberOfTopics
	}
	if numTopics <= 0 {
		numTopics = defaultPlannedTopics
	}
	perTopic := settings.PromptsPerTopic
	if perTopic <= 0 {
		perTopic = s.cfg.Analysis.PromptsPerTopic
	}

	existing, err := s.store.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}

	seeds := make([]models.TopicSeed, 0, numTopics)
	seen := make(map[string]bool)
	for _, t := range existing {
		if len(seeds) == numTopics {
			break
		}
		seeds = append(seeds, models.TopicSeed{Name: t.Name, Description: topicDescription(t)})
		seen[strings.ToLower(t.Name)] = true
	}

	if len(seeds) < numTopics {
		summary, err := s.site.ScrapeAndSummarize(ctx, brandURL)
		if err != nil {
			return nil, err
		}
		derived, err := s.site.DeriveTopicsFromSummary(ctx, summary)
		if err != nil {
			return nil, err
		}
		for _, seed := range derived {
			if len(seeds) == numTopics {
				break
			}
			if seen[strings.ToLower(seed.Name)] {
				continue
			}
			seen[strings.ToLower(seed.Name)] = true
			seeds = append(seeds, seed)
		}
	}

	plans := make([]models.TopicPlan, 0, len(seeds))
	for i, seed := range seeds {
		s.logger.Info().Int("topic", i+1).Int("of", len(seeds)).Str("name", seed.Name).Msg("[GeneratePrompts] generating prompts")
		plan, err := s.GenerateTopicPrompts(ctx, seed, perTopic, competitors)
		if err != nil {
			s.logger.Error().Err(err).Str("topic", seed.Name).Msg("[GeneratePrompts] generation failed")
			plan = &models.TopicPlan{Name: seed.Name, Description: seed.Description, Prompts: []string{}}
		}
		plans = append(plans, *plan)
	}
	return plans, nil
}

func topicDescription(t models.Topic) string {
	if t.Description != nil && *t.Description != "" {
		return *t.Description
	}
	return "Questions about " + strings.ToLower(t.Name)
}

func (s *plannerService) GenerateTopicPrompts(ctx context.Context, topic models.TopicSeed, count int, competitors []string) (*models.TopicPlan, error) {
	if count <= 0 {
		count = defaultTopicPromptCount
	}
	prompts, err := s.provider.GenerateQueries(ctx, topic.Name, topic.Description, count, competitors)
	if err != nil {
		return nil, fmt.Errorf("failed to generate prompts for %s: %w", topic.Name, err)
	}
	return &models.TopicPlan{Name: topic.Name, Description: topic.Description, Prompts: prompts}, nil
}

// SaveAndAnalyze stores the planned topics and starts a run over their
// prompts. The run itself persists the prompts after clearing old data.
func (s *plannerService) SaveAndAnalyze(ctx context.Context, brandName, brandURL string, plans []models.TopicPlan) (*RunHandle, int, error) {
	var supplied []models.SuppliedPrompt
	for _, plan := range plans {
		name := strings.TrimSpace(plan.Name)
		if name == "" {
			continue
		}
		description := plan.Description
		topic, err := s.store.GetOrCreateTopic(ctx, name, &description)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to store topic %s: %w", name, err)
		}
		for _, text := range plan.Prompts {
			if text = strings.TrimSpace(text); text != "" {
				topicID := topic.ID
				supplied = append(supplied, models.SuppliedPrompt{Text: text, TopicID: &topicID})
			}
		}
	}

	handle, err := s.analyzer.StartRun(ctx, models.RunRequest{
		BrandName:       brandName,
		BrandURL:        brandURL,
		SuppliedPrompts: supplied,
	})
	if err != nil {
		return handle, 0, err
	}
	return handle, len(supplied), nil
}

// Clear wipes stored rows and, when responses go, the search index too.
func (s *plannerService) Clear(ctx context.Context, scope repository.ClearScope) error {
	if !scope.Valid() {
		return fmt.Errorf("unknown clear scope %q", scope)
	}
	if s.analyzer != nil && s.analyzer.ActiveRun() != nil {
		return ErrRunInProgress
	}
	if err := s.store.Clear(ctx, scope); err != nil {
		return fmt.Errorf("failed to clear %s: %w", scope, err)
	}
	if s.index != nil {
		if err := s.index.Reset(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("[Clear] failed to reset search index")
		}
	}
	s.logger.Info().Str("scope", string(scope)).Msg("[Clear] data cleared")
	return nil
}
