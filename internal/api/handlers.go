package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"

	"github.com/AI-Template-SDK/senso-visibility/internal/config"
	"github.com/AI-Template-SDK/senso-visibility/internal/models"
	"github.com/AI-Template-SDK/senso-visibility/internal/repository"
	"github.com/AI-Template-SDK/senso-visibility/services"
)

// Handler implements the /api routes
type Handler struct {
	cfg       *config.Config
	store     repository.Store
	analyzer  services.AnalyzerService
	analytics services.MetricsService
	planner   services.PlannerService
	provider  services.AIProvider
	index     services.SearchIndexService
	logger    zerolog.Logger
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		cfg:       deps.Config,
		store:     deps.Store,
		analyzer:  deps.Analyzer,
		analytics: deps.Analytics,
		planner:   deps.Planner,
		provider:  deps.Provider,
		index:     deps.Index,
		logger:    deps.Logger.With().Str("component", "api").Logger(),
	}
}

// Register adds every operation to api.
func (h *Handler) Register(api huma.API) {
	get(api, "/api/metrics", "get-metrics", "Overview metrics", "analytics", h.GetMetrics)
	get(api, "/api/counts", "get-counts", "Row counts and brand mention rate", "analytics", h.GetCounts)
	get(api, "/api/topics", "list-topics", "List topics", "data", h.ListTopics)
	get(api, "/api/topics/analysis", "get-topic-analysis", "Brand mention rate per topic", "analytics", h.GetTopicAnalysis)
	get(api, "/api/competitors", "list-competitors", "List competitors", "data", h.ListCompetitors)
	get(api, "/api/competitors/analysis", "get-competitor-analysis", "Mention rate per competitor", "analytics", h.GetCompetitorAnalysis)
	get(api, "/api/sources", "list-sources", "List cited sources", "data", h.ListSources)
	get(api, "/api/sources/analysis", "get-source-analysis", "Citations per source domain", "analytics", h.GetSourceAnalysis)
	get(api, "/api/prompts", "list-prompts", "List prompts with their topics", "data", h.ListPrompts)
	get(api, "/api/responses", "list-responses", "List the most recent responses", "data", h.ListResponses)
	get(api, "/api/responses/search", "search-responses", "Search response texts", "data", h.SearchResponses)
	get(api, "/api/responses/{id}", "get-response", "Get one response", "data", h.GetResponse)
	get(api, "/api/analytics/latest", "get-latest-analytics", "Latest analytics snapshot", "analytics", h.GetLatestAnalytics)
	get(api, "/api/analysis/progress", "get-analysis-progress", "Progress of the current or last run", "analysis", h.GetProgress)
	get(api, "/api/export", "export-data", "Export every row as JSON", "data", h.Export)

	post(api, "/api/analysis/start", "start-analysis", "Start an analysis run", "analysis", h.StartAnalysis)
	post(api, "/api/analysis/cancel", "cancel-analysis", "Cancel the running analysis", "analysis", h.CancelAnalysis)
	post(api, "/api/analyze-brand", "analyze-brand", "Find competitors of a brand site", "planning", h.AnalyzeBrand)
	post(api, "/api/generate-prompts", "generate-prompts", "Plan topics and prompts for a brand", "planning", h.GeneratePrompts)
	post(api, "/api/generate-topic-prompts", "generate-topic-prompts", "Generate prompts for one topic", "planning", h.GenerateTopicPrompts)
	post(api, "/api/test-analysis", "test-analysis", "Answer and classify one prompt without storing it", "planning", h.TestAnalysis)
	post(api, "/api/save-and-analyze", "save-and-analyze", "Save planned prompts and start a run", "planning", h.SaveAndAnalyze)
	post(api, "/api/data/clear", "clear-data", "Clear stored rows", "data", h.ClearData)
}

func get[I, O any](api huma.API, path, id, summary, tag string, handler func(context.Context, *I) (*O, error)) {
	huma.Register(api, huma.Operation{
		OperationID: id,
		Method:      http.MethodGet,
		Path:        path,
		Summary:     summary,
		Tags:        []string{tag},
	}, handler)
}

func post[I, O any](api huma.API, path, id, summary, tag string, handler func(context.Context, *I) (*O, error)) {
	huma.Register(api, huma.Operation{
		OperationID:   id,
		Method:        http.MethodPost,
		Path:          path,
		Summary:       summary,
		Tags:          []string{tag},
		DefaultStatus: http.StatusOK,
	}, handler)
}

// toHTTPError maps service errors onto status codes. msg is used for the
// 500 case.
func (h *Handler) toHTTPError(err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return huma.Error404NotFound("not found")
	case errors.Is(err, services.ErrRunInProgress):
		return huma.Error409Conflict("an analysis run is already in progress")
	case errors.Is(err, services.ErrBrandRequired):
		return huma.Error400BadRequest("Brand name is required")
	}
	h.logger.Error().Err(err).Msg("[toHTTPError] " + msg)
	return huma.Error500InternalServerError(msg)
}

type MetricsOutput struct {
	Body *models.OverviewMetrics
}

func (h *Handler) GetMetrics(ctx context.Context, input *struct{}) (*MetricsOutput, error) {
	metrics, err := h.analytics.OverviewMetrics(ctx)
	if err != nil {
		return nil, h.toHTTPError(err, "Failed to fetch metrics")
	}
	return &MetricsOutput{Body: metrics}, nil
}

type CountsOutput struct {
	Body *models.Counts
}

func (h *Handler) GetCounts(ctx context.Context, input *struct{}) (*CountsOutput, error) {
	counts, err := h.analytics.Counts(ctx)
	if err != nil {
		return nil, h.toHTTPError(err, "Failed to fetch counts")
	}
	return &CountsOutput{Body: counts}, nil
}

type TopicsOutput struct {
	Body []models.Topic
}

func (h *Handler) ListTopics(ctx context.Context, input *struct{}) (*TopicsOutput, error) {
	topics, err := h.store.ListTopics(ctx)
	if err != nil {
		return nil, h.toHTTPError(err, "Failed to fetch topics")
	}
	return &TopicsOutput{Body: nonNil(topics)}, nil
}

type TopicAnalysisOutput struct {
	Body []models.TopicAnalysis
}

func (h *Handler) GetTopicAnalysis(ctx context.Context, input *struct{}) (*TopicAnalysisOutput, error) {
	analysis, err := h.analytics.TopicAnalysis(ctx)
	if err != nil {
		return nil, h.toHTTPError(err, "Failed to fetch topic analysis")
	}
	return &TopicAnalysisOutput{Body: nonNil(analysis)}, nil
}

type CompetitorsOutput struct {
	Body []models.Competitor
}

func (h *Handler) ListCompetitors(ctx context.Context, input *struct{}) (*CompetitorsOutput, error) {
	competitors, err := h.store.ListCompetitors(ctx)
	if err != nil {
		return nil, h.toHTTPError(err, "Failed to fetch competitors")
	}
	return &CompetitorsOutput{Body: nonNil(competitors)}, nil
}

type CompetitorAnalysisOutput struct {
	Body []models.CompetitorAnalysis
}

func (h *Handler) GetCompetitorAnalysis(ctx context.Context, input *struct{}) (*CompetitorAnalysisOutput, error) {
	analysis, err := h.analytics.CompetitorAnalysis(ctx)
	if err != nil {
		return nil, h.toHTTPError(err, "Failed to fetch competitor analysis")
	}
	return &CompetitorAnalysisOutput{Body: nonNil(analysis)}, nil
}

type SourcesOutput struct {
	Body []models.Source
}

func (h *Handler) ListSources(ctx context.Context, input *struct{}) (*SourcesOutput, error) {
	sources, err := h.store.ListSources(ctx)
	if err != nil {
		return nil, h.toHTTPError(err, "Failed to fetch sources")
	}
	return &SourcesOutput{Body: nonNil(sources)}, nil
}

type SourceAnalysisOutput struct {
	Body []models.SourceAnalysis
}

func (h *Handler) GetSourceAnalysis(ctx context.Context, input *struct{}) (*SourceAnalysisOutput, error) {
	analysis, err := h.analytics.SourceAnalysis(ctx)
	if err != nil {
		return nil, h.toHTTPError(err, "Failed to fetch source analysis")
	}
	return &SourceAnalysisOutput{Body: nonNil(analysis)}, nil
}

type PromptsOutput struct {
	Body []models.PromptWithTopic
}

func (h *Handler) ListPrompts(ctx context.Context, input *struct{}) (*PromptsOutput, error) {
	prompts, err := h.store.ListPromptsWithTopics(ctx)
	if err != nil {
		return nil, h.toHTTPError(err, "Failed to fetch prompts")
	}
	return &PromptsOutput{Body: nonNil(prompts)}, nil
}

type ListResponsesInput struct {
	Limit int `query:"limit" default:"10" minimum:"1" maximum:"1000" doc:"Maximum number of responses, newest first"`
}

type ResponsesOutput struct {
	Body []models.ResponseWithPrompt
}

func (h *Handler) ListResponses(ctx context.Context, input *ListResponsesInput) (*ResponsesOutput, error) {
	responses, err := h.store.ListResponses(ctx, input.Limit)
	if err != nil {
		return nil, h.toHTTPError(err, "Failed to fetch responses")
	}
	return &ResponsesOutput{Body: nonNil(responses)}, nil
}

type GetResponseInput struct {
	ID int `path:"id" minimum:"1" doc:"Response ID"`
}

type ResponseOutput struct {
	Body *models.ResponseWithPrompt
}

func (h *Handler) GetResponse(ctx context.Context, input *GetResponseInput) (*ResponseOutput, error) {
	response, err := h.store.GetResponse(ctx, input.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, huma.Error404NotFound("Response not found")
	}
	if err != nil {
		return nil, h.toHTTPError(err, "Failed to fetch response")
	}
	return &ResponseOutput{Body: response}, nil
}

type SearchResponsesInput struct {
	Query string `query:"q" required:"true" minLength:"1" doc:"Words to look for in prompts and answers"`
	Limit int    `query:"limit" default:"10" minimum:"1" maximum:"100"`
}

type SearchResponsesOutput struct {
	Body []models.SearchHit
}

func (h *Handler) SearchResponses(ctx context.Context, input *SearchResponsesInput) (*SearchResponsesOutput, error) {
	if h.index == nil {
		return nil, huma.Error503ServiceUnavailable("Response search is not enabled")
	}
	hits, err := h.index.Search(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, h.toHTTPError(err, "Failed to search responses")
	}
	return &SearchResponsesOutput{Body: nonNil(hits)}, nil
}

type SnapshotOutput struct {
	Body *models.AnalyticsSnapshot
}

func (h *Handler) GetLatestAnalytics(ctx context.Context, input *struct{}) (*SnapshotOutput, error) {
	snapshot, err := h.store.LatestSnapshot(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, huma.Error404NotFound("No analytics recorded yet")
	}
	if err != nil {
		return nil, h.toHTTPError(err, "Failed to fetch analytics")
	}
	return &SnapshotOutput{Body: snapshot}, nil
}

type ExportOutput struct {
	ContentDisposition string `header:"Content-Disposition"`
	Body               *models.ExportBundle
}

func (h *Handler) Export(ctx context.Context, input *struct{}) (*ExportOutput, error) {
	bundle, err := h.analytics.Export(ctx)
	if err != nil {
		return nil, h.toHTTPError(err, "Failed to export data")
	}
	return &ExportOutput{
		ContentDisposition: `attachment; filename="brand-analysis-` + bundle.Timestamp.Format("20060102-150405") + `.json"`,
		Body:               bundle,
	}, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
