// services/interfaces.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/AI-Template-SDK/senso-visibility/internal/models"
	"github.com/AI-Template-SDK/senso-visibility/internal/repository"
)

var (
	// ErrRunInProgress is returned by StartRun while another run is active.
	ErrRunInProgress = errors.New("analysis run in progress")
	// ErrBrandRequired is returned when a run request carries no brand name.
	ErrBrandRequired = errors.New("brand name is required")
)

// AIProvider is the capability set every LLM backend offers
type AIProvider interface {
	AnswerAndClassify(ctx context.Context, brandName, promptText string) (*models.AnalysisResult, error)
	GenerateQueries(ctx context.Context, topicName, topicDescription string, count int, competitors []string) ([]string, error)
	FindCompetitors(ctx context.Context, siteURL string) ([]models.CompetitorCandidate, error)
	CategorizeCompetitor(ctx context.Context, brandName, competitorName string) (string, error)
	SummarizeSite(ctx context.Context, siteURL, pageText string) (*models.SiteSummary, error)
	DeriveTopics(ctx context.Context, summary *models.SiteSummary) ([]models.TopicSeed, error)
	GetProviderName() string
	HasCredentials() bool
}

type CostService interface {
	CalculateCost(provider string, model string, inputTokens int, outputTokens int) float64
}

// Embedder turns text into a vector for the search index
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SiteService fetches a brand site and turns it into search topics
type SiteService interface {
	FetchPageText(ctx context.Context, siteURL string) string
	ScrapeAndSummarize(ctx context.Context, siteURL string) (*models.SiteSummary, error)
	DeriveTopicsFromSummary(ctx context.Context, summary *models.SiteSummary) ([]models.TopicSeed, error)
}

// ProgressSink receives the full progress object on every update
type ProgressSink func(models.Progress)

// RunObserver is told about run lifecycle events, for metrics
type RunObserver interface {
	RunStarted()
	PromptProcessed(fallback bool)
	RunFinished(status models.RunStatus, elapsed time.Duration)
}

// AnalyzerService drives analysis runs. At most one run is active.
type AnalyzerService interface {
	StartRun(ctx context.Context, req models.RunRequest) (*RunHandle, error)
	CancelRun() bool
	Progress() models.Progress
	ActiveRun() *RunHandle
}

// MetricsService aggregates persisted rows for the dashboard
type MetricsService interface {
	OverviewMetrics(ctx context.Context) (*models.OverviewMetrics, error)
	TopicAnalysis(ctx context.Context) ([]models.TopicAnalysis, error)
	CompetitorAnalysis(ctx context.Context) ([]models.CompetitorAnalysis, error)
	SourceAnalysis(ctx context.Context) ([]models.SourceAnalysis, error)
	Counts(ctx context.Context) (*models.Counts, error)
	Export(ctx context.Context) (*models.ExportBundle, error)
	// Snapshot computes, without storing, the analytics row for all data
	Snapshot(ctx context.Context) (*models.AnalyticsSnapshot, error)
}

// PlannerService builds topic and prompt plans ahead of a run
type PlannerService interface {
	GeneratePrompts(ctx context.Context, brandURL string, competitors []string, settings models.RunSettings) ([]models.TopicPlan, error)
	GenerateTopicPrompts(ctx context.Context, topic models.TopicSeed, count int, competitors []string) (*models.TopicPlan, error)
	SaveAndAnalyze(ctx context.Context, brandName, brandURL string, plans []models.TopicPlan) (*RunHandle, int, error)
	Clear(ctx context.Context, scope repository.ClearScope) error
}

// SearchIndexService keeps a keyword and vector index of response texts
type SearchIndexService interface {
	EnsureCollections(ctx context.Context) error
	IndexResponse(ctx context.Context, response *models.Response, promptText string) error
	Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error)
	Reset(ctx context.Context) error
}
