package common

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/AI-Template-SDK/senso-visibility/internal/extract"
	"github.com/AI-Template-SDK/senso-visibility/internal/models"
)

const (
	// DefaultCategory is used whenever categorization fails.
	DefaultCategory = "Technology"

	defaultCategorizeTimeout = 15 * time.Second
	maxPageTextChars         = 5000
	minSummaryTextChars      = 50
	maxTopics                = 7
	maxFallbackTopicWords    = 8
)

// CallObserver is told about every completed remote call.
type CallObserver func(op string, elapsed time.Duration, err error)

// Engine implements the provider operations on top of any Completer, so the
// OpenAI and Anthropic backends only differ in how a single turn is sent.
type Engine struct {
	completer         Completer
	fetcher           PageFetcher
	policy            RetryPolicy
	categorizeTimeout time.Duration
	logger            zerolog.Logger
	onRetry           RetryObserver
	onCall            CallObserver
}

type EngineOption func(*Engine)

func WithRetryPolicy(p RetryPolicy) EngineOption {
	return func(e *Engine) { e.policy = p }
}

func WithCategorizeTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.categorizeTimeout = d
		}
	}
}

func WithPageFetcher(f PageFetcher) EngineOption {
	return func(e *Engine) { e.fetcher = f }
}

func WithLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

func WithRetryObserver(o RetryObserver) EngineOption {
	return func(e *Engine) { e.onRetry = o }
}

func WithCallObserver(o CallObserver) EngineOption {
	return func(e *Engine) { e.onCall = o }
}

func NewEngine(completer Completer, opts ...EngineOption) *Engine {
	e := &Engine{
		completer:         completer,
		policy:            DefaultRetryPolicy(),
		categorizeTimeout: defaultCategorizeTimeout,
		logger:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("provider", completer.ProviderName()).Logger()
	return e
}

func (e *Engine) GetProviderName() string {
	return e.completer.ProviderName()
}

func (e *Engine) HasCredentials() bool {
	return e.completer.HasCredentials()
}

// complete sends one turn through the retry wrapper.
func (e *Engine) complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	return Retry(ctx, e.policy, req.Name, e.logger, e.onRetry, func(ctx context.Context) (*Completion, error) {
		return e.completeOnce(ctx, req)
	})
}

func (e *Engine) completeOnce(ctx context.Context, req CompletionRequest) (*Completion, error) {
	start := time.Now()
	out, err := e.completer.Complete(ctx, req)
	if e.onCall != nil {
		e.onCall(req.Name, time.Since(start), err)
	}
	return out, err
}

// AnswerAndClassify answers promptText with a randomly framed assistant
// persona, then classifies the answer for brandName, competitors and URLs.
// A malformed classification degrades to the empty result.
func (e *Engine) AnswerAndClassify(ctx context.Context, brandName, promptText string) (*models.AnalysisResult, error) {
	if !e.HasCredentials() {
		return nil, ErrNoCredentials
	}

	hint := contextHints[rand.IntN(len(contextHints))]
	answer, err := e.complete(ctx, CompletionRequest{
		Name:        "answer",
		System:      answerSystemPrompt,
		User:        buildAnswerPrompt(promptText, hint),
		MaxTokens:   600,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to answer prompt: %w", err)
	}

	classified, err := e.complete(ctx, CompletionRequest{
		Name:        "classify",
		System:      classifySystemPrompt,
		User:        buildClassifyPrompt(brandName, answer.Text),
		MaxTokens:   300,
		Temperature: 0,
		Schema:      ClassificationSchema,
		SchemaName:  "response_classification",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to classify response: %w", err)
	}

	classification := ParseClassification(classified.Text)
	return &models.AnalysisResult{
		Response:       answer.Text,
		BrandMentioned: classification.BrandMentioned,
		Competitors:    classification.Competitors,
		Sources:        classification.Sources,
		InputTokens:    answer.InputTokens + classified.InputTokens,
		OutputTokens:   answer.OutputTokens + classified.OutputTokens,
		Cost:           answer.Cost + classified.Cost,
	}, nil
}

// GenerateQueries returns exactly count search queries for a topic. Model
// output is cleaned and filtered; whatever is missing after 5*count attempts
// is filled from templates, so the call never fails.
func (e *Engine) GenerateQueries(ctx context.Context, topicName, topicDescription string, count int, competitors []string) ([]string, error) {
	if count <= 0 {
		return []string{}, nil
	}

	queries := make([]string, 0, count)
	seen := make(map[string]bool)
	accept := func(q string) bool {
		key := strings.ToLower(q)
		if q == "" || seen[key] || !ValidQuery(q) {
			return false
		}
		seen[key] = true
		queries = append(queries, q)
		return true
	}

	if e.HasCredentials() {
		offset := rand.IntN(len(queryAspects))
		maxAttempts := count * 5
		for attempt := 0; len(queries) < count && attempt < maxAttempts; attempt++ {
			if ctx.Err() != nil {
				break
			}
			aspect := queryAspects[(offset+attempt)%len(queryAspects)]
			out, err := e.complete(ctx, CompletionRequest{
				Name:        "generate_query",
				System:      buildQuerySystemPrompt(topicName, aspect),
				User:        buildQueryUserPrompt(topicName, topicDescription, aspect, competitors),
				MaxTokens:   40,
				Temperature: 0.9,
			})
			if err != nil {
				e.logger.Warn().Err(err).Str("topic", topicName).Msg("[GenerateQueries] generation attempt failed")
				continue
			}
			if q := CleanQuery(out.Text); !accept(q) {
				e.logger.Debug().Str("query", q).Msg("[GenerateQueries] rejected query")
			}
		}
	}

	if len(queries) < count {
		e.logger.Info().Str("topic", topicName).Int("generated", len(queries)).Int("wanted", count).
			Msg("[GenerateQueries] padding with template queries")
		for _, q := range FallbackQueries(topicName, count) {
			if len(queries) == count {
				break
			}
			accept(q)
		}
	}
	return queries, nil
}

// FallbackQueries returns at least n template queries for a topic, each
// between three and twelve words.
func FallbackQueries(topicName string, n int) []string {
	topic := strings.Fields(strings.ToLower(topicName))
	if len(topic) == 0 {
		topic = []string{"general"}
	}
	if len(topic) > maxFallbackTopicWords {
		topic = topic[:maxFallbackTopicWords]
	}
	t := strings.Join(topic, " ")

	out := []string{
		fmt.Sprintf("Dealing with %s complexity", t),
		fmt.Sprintf("Need help optimizing %s setup", t),
		fmt.Sprintf("Struggling with %s performance issues", t),
		fmt.Sprintf("How to improve %s reliability?", t),
		fmt.Sprintf("Tired of %s maintenance overhead", t),
	}
	display := strings.Join(strings.Fields(topicName), " ")
	if display == "" || len(strings.Fields(display)) > maxFallbackTopicWords {
		display = t
	}
	for i := 1; i <= n; i++ {
		out = append(out, fmt.Sprintf("%s question %d", display, i))
	}
	return out
}

// FindCompetitors asks for competitors of the site under three framings in
// parallel and merges the answers. Without credentials it returns two
// placeholder competitors.
func (e *Engine) FindCompetitors(ctx context.Context, siteURL string) ([]models.CompetitorCandidate, error) {
	if !e.HasCredentials() {
		e.logger.Warn().Str("url", siteURL).Msg("[FindCompetitors] no API key configured, returning placeholder competitors")
		return PlaceholderCompetitors(), nil
	}

	var pageText string
	if e.fetcher != nil {
		pageText = truncate(e.fetcher.FetchPageText(ctx, siteURL), maxPageTextChars)
	}
	if pageText == "" {
		e.logger.Warn().Str("url", siteURL).Msg("[FindCompetitors] no homepage text found")
		pageText = siteURL
	}

	results := make([][]models.CompetitorCandidate, len(competitorFramings))
	var g errgroup.Group
	for i, framing := range competitorFramings {
		g.Go(func() error {
			out, err := e.complete(ctx, CompletionRequest{
				Name:        "find_competitors",
				System:      competitorSystemPrompt,
				User:        buildCompetitorPrompt(framing, pageText),
				MaxTokens:   500,
				Temperature: 0.4,
				Schema:      CompetitorListSchema,
				SchemaName:  "competitor_list",
			})
			if err != nil {
				e.logger.Error().Err(err).Str("framing", framing).Msg("[FindCompetitors] discovery call failed")
				return nil
			}
			results[i] = ParseCompetitors(out.Text)
			return nil
		})
	}
	_ = g.Wait()

	merged := MergeCompetitors(results...)
	e.logger.Info().Str("url", siteURL).Int("competitors", len(merged)).Msg("[FindCompetitors] discovery complete")
	return merged, nil
}

// PlaceholderCompetitors is returned when no provider key is configured.
func PlaceholderCompetitors() []models.CompetitorCandidate {
	return []models.CompetitorCandidate{
		{Name: "Sample Competitor 1", URL: "https://competitor1.com", Category: DefaultCategory},
		{Name: "Sample Competitor 2", URL: "https://competitor2.com", Category: DefaultCategory},
	}
}

// CategorizeCompetitor returns a one or two word market category for a
// competitor. It makes a single call bounded by the categorization timeout
// and returns DefaultCategory alongside any error.
func (e *Engine) CategorizeCompetitor(ctx context.Context, brandName, competitorName string) (string, error) {
	if !e.HasCredentials() {
		return DefaultCategory, ErrNoCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, e.categorizeTimeout)
	defer cancel()

	out, err := e.completeOnce(ctx, CompletionRequest{
		Name:        "categorize",
		System:      categorizeSystemPrompt,
		User:        buildCategorizePrompt(brandName, competitorName),
		MaxTokens:   20,
		Temperature: 0.1,
	})
	if err != nil {
		return DefaultCategory, fmt.Errorf("failed to categorize %s: %w", competitorName, err)
	}
	category := CleanCategory(out.Text)
	if category == "" {
		return DefaultCategory, nil
	}
	return category, nil
}

// SummarizeSite extracts a structured summary from homepage text. Short or
// missing text, and any failed call, produce a summary built from the domain.
func (e *Engine) SummarizeSite(ctx context.Context, siteURL, pageText string) (*models.SiteSummary, error) {
	pageText = truncate(strings.TrimSpace(pageText), maxPageTextChars)
	if len(pageText) < minSummaryTextChars || !e.HasCredentials() {
		e.logger.Info().Str("url", siteURL).Msg("[SummarizeSite] not enough content, using domain only")
		return FallbackSummary(siteURL), nil
	}

	out, err := e.complete(ctx, CompletionRequest{
		Name:        "summarize_site",
		System:      summarySystemPrompt,
		User:        buildSummaryPrompt(pageText),
		MaxTokens:   600,
		Temperature: 0.3,
		Schema:      SiteSummarySchema,
		SchemaName:  "site_summary",
	})
	if err != nil {
		e.logger.Error().Err(err).Str("url", siteURL).Msg("[SummarizeSite] summary call failed")
		return FallbackSummary(siteURL), nil
	}
	summary, ok := ParseSiteSummary(out.Text)
	if !ok {
		return FallbackSummary(siteURL), nil
	}
	return summary, nil
}

// FallbackSummary names the brand after the first label of its hostname.
func FallbackSummary(siteURL string) *models.SiteSummary {
	name := siteURL
	if host, err := extract.Hostname(siteURL); err == nil {
		name = host
	}
	if i := strings.Index(name, "."); i > 0 {
		name = name[:i]
	}
	return &models.SiteSummary{
		Title:       name,
		Description: "Analysis for " + name,
		Features:    []string{},
		Services:    []string{},
	}
}

// DeriveTopics proposes five to seven search topics for a summarized site,
// falling back to a generic list.
func (e *Engine) DeriveTopics(ctx context.Context, summary *models.SiteSummary) ([]models.TopicSeed, error) {
	if summary == nil || !e.HasCredentials() {
		return FallbackTopics(), nil
	}

	out, err := e.complete(ctx, CompletionRequest{
		Name:        "derive_topics",
		System:      topicsSystemPrompt,
		User:        buildTopicsPrompt(summary.Title, summary.Description, summary.Features, summary.Services),
		MaxTokens:   800,
		Temperature: 0.7,
		Schema:      TopicListSchema,
		SchemaName:  "topic_list",
	})
	if err != nil {
		e.logger.Error().Err(err).Str("title", summary.Title).Msg("[DeriveTopics] topic call failed, using generic topics")
		return FallbackTopics(), nil
	}

	topics := ParseTopics(out.Text)
	if len(topics) == 0 {
		return FallbackTopics(), nil
	}
	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}
	return topics, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
