// services/site_service.go
package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/AI-Template-SDK/senso-visibility/internal/models"
	"github.com/AI-Template-SDK/senso-visibility/internal/providers/common"
)

type siteService struct {
	fetcher  common.PageFetcher
	provider AIProvider
	logger   zerolog.Logger
}

func NewSiteService(fetcher common.PageFetcher, provider AIProvider, logger zerolog.Logger) SiteService {
	return &siteService{
		fetcher:  fetcher,
		provider: provider,
		logger:   logger.With().Str("component", "site").Logger(),
	}
}

// FetchPageText is best effort and returns "" when the page is unreachable.
func (s *siteService) FetchPageText(ctx context.Context, siteURL string) string {
	if s.fetcher == nil || siteURL == "" {
		return ""
	}
	return s.fetcher.FetchPageText(ctx, siteURL)
}

func (s *siteService) ScrapeAndSummarize(ctx context.Context, siteURL string) (*models.SiteSummary, error) {
	text := s.FetchPageText(ctx, siteURL)
	s.logger.Info().Str("url", siteURL).Int("chars", len(text)).Msg("[ScrapeAndSummarize] fetched homepage")

	summary, err := s.provider.SummarizeSite(ctx, siteURL, text)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize %s: %w", siteURL, err)
	}
	return summary, nil
}

func (s *siteService) DeriveTopicsFromSummary(ctx context.Context, summary *models.SiteSummary) ([]models.TopicSeed, error) {
	topics, err := s.provider.DeriveTopics(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("failed to derive topics: %w", err)
	}
	return topics, nil
}
