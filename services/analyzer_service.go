// services/analyzer_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/AI-Template-SDK/senso-visibility/internal/config"
	"github.com/AI-Template-SDK/senso-visibility/internal/extract"
	"github.com/AI-Template-SDK/senso-visibility/internal/models"
	"github.com/AI-Template-SDK/senso-visibility/internal/providers/common"
	"github.com/AI-Template-SDK/senso-visibility/internal/repository"
)

const (
	fallbackMentionProbability = 0.15
	defaultCategorizeInterval  = 500 * time.Millisecond
)

// fallbackSources are cited when the provider could not answer a prompt
var fallbackSources = []string{
	"https://stackoverflow.com/questions/deployment",
	"https://docs.aws.amazon.com",
	"https://github.com/features/actions",
	"https://docs.github.com/en/actions",
	"https://vercel.com/docs",
	"https://netlify.com/docs",
	"https://docs.docker.com",
	"https://kubernetes.io/docs",
}

// FailureReporter is told about runs that end in error
type FailureReporter interface {
	ReportRunFailure(ctx context.Context, runID, brandName string, err error) error
}

type AnalyzerOption func(*analyzerService)

func WithProgressSink(sink ProgressSink) AnalyzerOption {
	return func(a *analyzerService) { a.sink = sink }
}

func WithSearchIndex(index SearchIndexService) AnalyzerOption {
	return func(a *analyzerService) { a.index = index }
}

func WithRunObserver(o RunObserver) AnalyzerOption {
	return func(a *analyzerService) { a.observer = o }
}

func WithFailureReporter(r FailureReporter) AnalyzerOption {
	return func(a *analyzerService) { a.reporter = r }
}

func WithAnalyzerLogger(l zerolog.Logger) AnalyzerOption {
	return func(a *analyzerService) { a.logger = l }
}

// WithCategorizeInterval spaces out categorization of newly seen
// competitors. Zero disables pacing.
func WithCategorizeInterval(d time.Duration) AnalyzerOption {
	return func(a *analyzerService) {
		if d <= 0 {
			a.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		a.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithRandom replaces the source used for fallback brand mentions.
func WithRandom(fn func() float64) AnalyzerOption {
	return func(a *analyzerService) { a.random = fn }
}

type analyzerService struct {
	cfg      *config.Config
	store    repository.Store
	provider AIProvider
	site     SiteService
	metrics  MetricsService
	index    SearchIndexService
	observer RunObserver
	reporter FailureReporter
	sink     ProgressSink
	limiter  *rate.Limiter
	random   func() float64
	logger   zerolog.Logger

	mu     sync.Mutex
	active *RunHandle
}

func NewAnalyzerService(cfg *config.Config, store repository.Store, provider AIProvider, site SiteService, metrics MetricsService, opts ...AnalyzerOption) AnalyzerService {
	a := &analyzerService{
		cfg:      cfg,
		store:    store,
		provider: provider,
		site:     site,
		metrics:  metrics,
		limiter:  rate.NewLimiter(rate.Every(defaultCategorizeInterval), 1),
		random:   rand.Float64,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With().Str("component", "analyzer").Logger()
	return a
}

func running(h *RunHandle) bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// StartRun launches a run in the background. While another run is active
// it returns that run's handle together with ErrRunInProgress.
func (a *analyzerService) StartRun(ctx context.Context, req models.RunRequest) (*RunHandle, error) {
	req.BrandName = strings.TrimSpace(req.BrandName)
	req.BrandURL = strings.TrimSpace(req.BrandURL)
	if req.BrandName == "" {
		return nil, ErrBrandRequired
	}

	a.mu.Lock()
	if running(a.active) {
		active := a.active
		a.mu.Unlock()
		return active, ErrRunInProgress
	}
	h := newRunHandle(req, a.sink)
	a.active = h
	a.mu.Unlock()

	h.update(models.Progress{Status: models.StatusInitializing, Message: "Starting brand analysis...", Progress: 0})

	a.logger.Info().Str("run_id", h.ID).Str("brand", req.BrandName).Msg("[StartRun] analysis run started")
	go a.run(context.WithoutCancel(ctx), h)
	return h, nil
}

func (a *analyzerService) CancelRun() bool {
	a.mu.Lock()
	h := a.active
	a.mu.Unlock()

	if !running(h) {
		return false
	}
	a.logger.Info().Str("run_id", h.ID).Msg("[CancelRun] cancellation requested")
	h.Cancel()
	return true
}

func (a *analyzerService) ActiveRun() *RunHandle {
	a.mu.Lock()
	defer a.mu.Unlock()
	if running(a.active) {
		return a.active
	}
	return nil
}

// Progress reports the current run, or the last one once it has finished.
func (a *analyzerService) Progress() models.Progress {
	a.mu.Lock()
	h := a.active
	a.mu.Unlock()

	if h == nil {
		return models.Progress{Status: models.StatusIdle, Message: "No analysis has been run"}
	}
	return h.Progress()
}

// pendingPrompt is a prompt queued for the run. Existing is set for
// persisted prompts that are reused as-is.
type pendingPrompt struct {
	Text     string
	TopicID  *int
	Existing *models.Prompt
}

func (a *analyzerService) run(ctx context.Context, h *RunHandle) {
	start := time.Now()
	if a.observer != nil {
		a.observer.RunStarted()
	}

	err := a.execute(ctx, h)
	status := models.StatusComplete
	switch {
	case err == nil:
	case errors.Is(err, errRunCancelled):
		status = models.StatusError
		completed := h.Progress().CompletedPrompts
		total := h.Progress().TotalPrompts
		h.update(models.Progress{Status: models.StatusError, Message: cancelledMessage, Progress: 0, TotalPrompts: total, CompletedPrompts: completed})
		a.logger.Info().Str("run_id", h.ID).Int("completed", completed).Msg("[run] analysis cancelled")
	default:
		status = models.StatusError
		p := h.Progress()
		h.update(models.Progress{
			Status:           models.StatusError,
			Message:          fmt.Sprintf("Analysis failed: %v", err),
			Progress:         0,
			TotalPrompts:     p.TotalPrompts,
			CompletedPrompts: p.CompletedPrompts,
			Error:            err.Error(),
		})
		a.logger.Error().Err(err).Str("run_id", h.ID).Msg("[run] analysis failed")
		if a.reporter != nil {
			if rerr := a.reporter.ReportRunFailure(ctx, h.ID, h.Request.BrandName, err); rerr != nil {
				a.logger.Warn().Err(rerr).Msg("[run] failed to report run failure")
			}
		}
	}

	if a.observer != nil {
		a.observer.RunFinished(status, time.Since(start))
	}
	if errors.Is(err, errRunCancelled) {
		err = nil
	}
	h.finish(err)
}

var errRunCancelled = errors.New(cancelledMessage)

func (a *analyzerService) execute(ctx context.Context, h *RunHandle) error {
	req := h.Request

	prompts, err := a.preparePrompts(ctx, h, req)
	if err != nil {
		return err
	}

	total := len(prompts)
	h.update(models.Progress{
		Status:       models.StatusTestingPrompts,
		Message:      fmt.Sprintf("Testing %d prompts...", total),
		Progress:     30,
		TotalPrompts: total,
	})

	known, err := a.competitorNames(ctx)
	if err != nil {
		return err
	}

	completed := 0
	for i, p := range prompts {
		if h.Cancelled() {
			return errRunCancelled
		}
		if i > 0 && !h.sleep(a.cfg.Analysis.PromptDelay) {
			return errRunCancelled
		}
		if h.Cancelled() {
			return errRunCancelled
		}

		added, err := a.processPrompt(ctx, h, p, known)
		if err != nil {
			return err
		}
		known = append(known, added...)

		completed++
		h.update(models.Progress{
			Status:           models.StatusTestingPrompts,
			Message:          fmt.Sprintf("Testing prompts... (%d/%d)", completed, total),
			Progress:         30 + 50*completed/total,
			TotalPrompts:     total,
			CompletedPrompts: completed,
		})
	}

	h.update(models.Progress{Status: models.StatusAnalyzing, Message: "Generating analytics...", Progress: 85, TotalPrompts: total, CompletedPrompts: completed})
	snapshot, err := a.metrics.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to calculate analytics: %w", err)
	}
	if err := a.store.CreateSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to store analytics snapshot: %w", err)
	}

	h.update(models.Progress{Status: models.StatusComplete, Message: "Analysis complete!", Progress: 100, TotalPrompts: total, CompletedPrompts: completed})
	a.logger.Info().Str("run_id", h.ID).Int("prompts", completed).Float64("brand_mention_rate", snapshot.BrandMentionRate).
		Msg("[execute] analysis complete")
	return nil
}

// preparePrompts decides where the run's prompts come from: the request,
// the prompts already stored, or a fresh plan built from the brand site.
func (a *analyzerService) preparePrompts(ctx context.Context, h *RunHandle, req models.RunRequest) ([]pendingPrompt, error) {
	switch {
	case len(req.SuppliedPrompts) > 0:
		h.update(models.Progress{Status: models.StatusInitializing, Message: "Clearing previous data and loading saved prompts...", Progress: 5})
		if err := a.store.Clear(ctx, repository.ClearAll); err != nil {
			return nil, fmt.Errorf("failed to clear previous data: %w", err)
		}
		out := make([]pendingPrompt, 0, len(req.SuppliedPrompts))
		for _, p := range req.SuppliedPrompts {
			if text := strings.TrimSpace(p.Text); text != "" {
				out = append(out, pendingPrompt{Text: text, TopicID: p.TopicID})
			}
		}
		return out, nil

	case req.UseExistingPrompts:
		existing, err := a.store.ListPrompts(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing prompts: %w", err)
		}
		out := make([]pendingPrompt, len(existing))
		for i := range existing {
			out[i] = pendingPrompt{Text: existing[i].Text, TopicID: existing[i].TopicID, Existing: &existing[i]}
		}
		return out, nil
	}

	h.update(models.Progress{Status: models.StatusScraping, Message: "Analyzing brand website...", Progress: 10})
	summary, err := a.summarize(ctx, req)
	if err != nil {
		return nil, err
	}
	topics, err := a.site.DeriveTopicsFromSummary(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("failed to derive topics: %w", err)
	}

	perTopic, numTopics := a.settings(req.Settings)
	if numTopics > 0 && len(topics) > numTopics {
		topics = topics[:numTopics]
	}

	h.update(models.Progress{Status: models.StatusGeneratingPrompts, Message: "Generating test prompts...", Progress: 20})
	competitors, err := a.competitorNames(ctx)
	if err != nil {
		return nil, err
	}

	var out []pendingPrompt
	for _, seed := range topics {
		if h.Cancelled() {
			return nil, errRunCancelled
		}
		description := seed.Description
		topic, err := a.store.GetOrCreateTopic(ctx, seed.Name, &description)
		if err != nil {
			return nil, fmt.Errorf("failed to store topic %s: %w", seed.Name, err)
		}
		queries, err := a.provider.GenerateQueries(ctx, seed.Name, seed.Description, perTopic, competitors)
		if err != nil {
			return nil, fmt.Errorf("failed to generate prompts for %s: %w", seed.Name, err)
		}
		for _, q := range queries {
			out = append(out, pendingPrompt{Text: q, TopicID: &topic.ID})
		}
	}
	a.logger.Info().Str("run_id", h.ID).Int("topics", len(topics)).Int("prompts", len(out)).Msg("[preparePrompts] generated prompts")
	return out, nil
}

func (a *analyzerService) summarize(ctx context.Context, req models.RunRequest) (*models.SiteSummary, error) {
	if req.BrandURL == "" {
		return &models.SiteSummary{
			Title:       req.BrandName,
			Description: "Analysis for " + req.BrandName,
			Features:    []string{},
			Services:    []string{},
		}, nil
	}
	summary, err := a.site.ScrapeAndSummarize(ctx, req.BrandURL)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize brand site: %w", err)
	}
	return summary, nil
}

func (a *analyzerService) settings(s *models.RunSettings) (perTopic, numTopics int) {
	perTopic, numTopics = a.cfg.Analysis.PromptsPerTopic, a.cfg.Analysis.NumberOfTopics
	if s != nil {
		if s.PromptsPerTopic > 0 {
			perTopic = s.PromptsPerTopic
		}
		if s.NumberOfTopics > 0 {
			numTopics = s.NumberOfTopics
		}
	}
	if perTopic <= 0 {
		perTopic = 20
	}
	return perTopic, numTopics
}

func (a *analyzerService) competitorNames(ctx context.Context) ([]string, error) {
	competitors, err := a.store.ListCompetitors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitors: %w", err)
	}
	names := make([]string, len(competitors))
	for i, c := range competitors {
		names[i] = c.Name
	}
	return names, nil
}

// processPrompt runs one prompt end to end and returns the names of any
// competitors it created.
func (a *analyzerService) processPrompt(ctx context.Context, h *RunHandle, p pendingPrompt, known []string) ([]string, error) {
	prompt := p.Existing
	if prompt == nil {
		created, err := a.store.CreatePrompt(ctx, p.Text, p.TopicID)
		if err != nil {
			return nil, fmt.Errorf("failed to store prompt: %w", err)
		}
		prompt = created
	}

	result, err := a.provider.AnswerAndClassify(ctx, h.Request.BrandName, prompt.Text)
	fallback := err != nil
	if fallback {
		a.logger.Warn().Err(err).Str("run_id", h.ID).Int("prompt_id", prompt.ID).Msg("[processPrompt] provider failed, using fallback analysis")
		result = a.fallbackAnalysis(prompt.Text, known)
	}

	added, err := a.recordCompetitors(ctx, h.Request.BrandName, result.Competitors)
	if err != nil {
		return nil, err
	}
	if err := a.recordSources(ctx, prompt.Text, result); err != nil {
		return nil, err
	}

	response := &models.Response{
		PromptID:             prompt.ID,
		Text:                 result.Response,
		BrandMentioned:       result.BrandMentioned,
		CompetitorsMentioned: result.Competitors,
		Sources:              result.Sources,
		InputTokens:          result.InputTokens,
		OutputTokens:         result.OutputTokens,
		Cost:                 result.Cost,
	}
	if err := a.store.CreateResponse(ctx, response); err != nil {
		return nil, fmt.Errorf("failed to store response: %w", err)
	}

	if a.index != nil {
		if err := a.index.IndexResponse(ctx, response, prompt.Text); err != nil {
			a.logger.Warn().Err(err).Int("response_id", response.ID).Msg("[processPrompt] failed to index response")
		}
	}
	if a.observer != nil {
		a.observer.PromptProcessed(fallback)
	}
	return added, nil
}

// fallbackAnalysis stands in for a provider answer. Competitors are the
// known names that appear literally in the prompt.
func (a *analyzerService) fallbackAnalysis(promptText string, known []string) *models.AnalysisResult {
	lower := strings.ToLower(promptText)
	competitors := []string{}
	seen := make(map[string]bool)
	for _, name := range known {
		if name == "" || seen[name] || !strings.Contains(lower, strings.ToLower(name)) {
			continue
		}
		seen[name] = true
		competitors = append(competitors, name)
	}

	mentioned := a.random() < fallbackMentionProbability
	text := fmt.Sprintf("Based on your %s, I'd recommend considering %s for your deployment needs.", lower, strings.Join(competitors, ", "))
	if mentioned {
		text += " There are also other good options for simple deployments."
	}
	return &models.AnalysisResult{
		Response:       text,
		BrandMentioned: mentioned,
		Competitors:    competitors,
		Sources:        append([]string{}, fallbackSources...),
	}
}

// recordCompetitors adds one mention per occurrence of each name, creating
// and categorizing competitors on first sight.
func (a *analyzerService) recordCompetitors(ctx context.Context, brandName string, names []string) ([]string, error) {
	var added []string
	now := time.Now().UTC()
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		competitor, err := a.store.GetCompetitorByName(ctx, name)
		if errors.Is(err, repository.ErrNotFound) {
			if err := a.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("failed to wait for categorization: %w", err)
			}
			category, cerr := a.provider.CategorizeCompetitor(ctx, brandName, name)
			if cerr != nil {
				a.logger.Warn().Err(cerr).Str("competitor", name).Msg("[recordCompetitors] categorization failed, using default")
			}
			if category == "" {
				category = common.DefaultCategory
			}
			competitor, err = a.store.GetOrCreateCompetitor(ctx, name, category)
			added = append(added, name)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to store competitor %s: %w", name, err)
		}
		if err := a.store.IncrementCompetitorMentions(ctx, competitor.ID, now); err != nil {
			return nil, fmt.Errorf("failed to count mention of %s: %w", name, err)
		}
	}
	return added, nil
}

// recordSources cites each domain once per prompt, however many of its URLs
// appear.
func (a *analyzerService) recordSources(ctx context.Context, promptText string, result *models.AnalysisResult) error {
	urls := extract.Union(extract.URLs(result.Response), result.Sources, extract.URLs(promptText))
	now := time.Now().UTC()
	for _, group := range extract.GroupByHost(urls) {
		primary := extract.PrimaryURL(group.URLs)
		source, err := a.store.GetOrCreateSource(ctx, group.Host, primary, extract.SourceTitle(group.Host, primary))
		if err != nil {
			return fmt.Errorf("failed to store source %s: %w", group.Host, err)
		}
		if err := a.store.IncrementSourceCitations(ctx, source.ID, now); err != nil {
			return fmt.Errorf("failed to count citation of %s: %w", group.Host, err)
		}
	}
	return nil
}
