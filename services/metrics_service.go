// services/metrics_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AI-Template-SDK/senso-visibility/internal/models"
	"github.com/AI-Template-SDK/senso-visibility/internal/repository"
)

const noTopCompetitor = "N/A"

type metricsService struct {
	store repository.Store
}

func NewMetricsService(store repository.Store) MetricsService {
	return &metricsService{store: store}
}

// OverviewMetrics summarizes every stored response, not only the last run.
func (s *metricsService) OverviewMetrics(ctx context.Context) (*models.OverviewMetrics, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}
	top, err := s.topCompetitor(ctx)
	if err != nil {
		return nil, err
	}
	if top == "" {
		top = noTopCompetitor
	}
	return &models.OverviewMetrics{
		BrandMentionRate: counts.BrandMentionRate,
		TotalPrompts:     counts.TotalResponses,
		TopCompetitor:    top,
		TotalSources:     counts.TotalSources,
		TotalDomains:     counts.TotalSources,
	}, nil
}

func (s *metricsService) topCompetitor(ctx context.Context) (string, error) {
	competitors, err := s.store.ListCompetitors(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list competitors: %w", err)
	}
	if len(competitors) == 0 {
		return "", nil
	}
	return competitors[0].Name, nil
}

func (s *metricsService) TopicAnalysis(ctx context.Context) ([]models.TopicAnalysis, error) {
	analysis, err := s.store.TopicAnalysis(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze topics: %w", err)
	}
	return analysis, nil
}

// CompetitorAnalysis rates each competitor against the total response
// count. ChangeRate is always 0 since no history is kept.
func (s *metricsService) CompetitorAnalysis(ctx context.Context) ([]models.CompetitorAnalysis, error) {
	competitors, err := s.store.ListCompetitors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitors: %w", err)
	}
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}

	out := make([]models.CompetitorAnalysis, len(competitors))
	for i, c := range competitors {
		out[i] = models.CompetitorAnalysis{
			CompetitorID: c.ID,
			Name:         c.Name,
			Category:     c.Category,
			MentionCount: c.MentionCount,
			MentionRate:  repository.MentionRate(c.MentionCount, counts.TotalResponses),
		}
	}
	return out, nil
}

func (s *metricsService) SourceAnalysis(ctx context.Context) ([]models.SourceAnalysis, error) {
	sources, err := s.store.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	out := make([]models.SourceAnalysis, len(sources))
	for i, src := range sources {
		urls := []string{}
		if src.URL != nil && *src.URL != "" {
			urls = append(urls, *src.URL)
		}
		out[i] = models.SourceAnalysis{
			SourceID:      src.ID,
			Domain:        src.Domain,
			CitationCount: src.CitationCount,
			URLs:          urls,
		}
	}
	return out, nil
}

func (s *metricsService) Counts(ctx context.Context) (*models.Counts, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}
	return counts, nil
}

func (s *metricsService) Snapshot(ctx context.Context) (*models.AnalyticsSnapshot, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}
	top, err := s.topCompetitor(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &models.AnalyticsSnapshot{
		Date:             time.Now().UTC(),
		TotalPrompts:     counts.TotalResponses,
		BrandMentionRate: counts.BrandMentionRate,
		TotalSources:     counts.TotalSources,
		TotalDomains:     counts.TotalSources,
	}
	if top != "" {
		snapshot.TopCompetitor = &top
	}
	return snapshot, nil
}

// Export bundles every row with the latest snapshot, which may be nil.
func (s *metricsService) Export(ctx context.Context) (*models.ExportBundle, error) {
	bundle := &models.ExportBundle{Timestamp: time.Now().UTC()}

	snapshot, err := s.store.LatestSnapshot(ctx)
	switch {
	case err == nil:
		bundle.Analytics = snapshot
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to load latest analytics: %w", err)
	}

	if bundle.Topics, err = s.store.ListTopics(ctx); err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	if bundle.Prompts, err = s.store.ListPrompts(ctx); err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	if bundle.Responses, err = s.store.ListResponses(ctx, 0); err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	if bundle.Competitors, err = s.store.ListCompetitors(ctx); err != nil {
		return nil, fmt.Errorf("failed to list competitors: %w", err)
	}
	if bundle.Sources, err = s.store.ListSources(ctx); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return bundle, nil
}
