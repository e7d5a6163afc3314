package api

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/AI-Template-SDK/senso-visibility/internal/models"
	"github.com/AI-Template-SDK/senso-visibility/internal/repository"
)

// CompetitorRef is a competitor as sent back by the dashboard; only the
// name is used.
type CompetitorRef struct {
	Name     string `json:"name" minLength:"1"`
	URL      string `json:"url,omitempty"`
	Category string `json:"category,omitempty"`
}

func competitorNames(refs []CompetitorRef) []string {
	names := make([]string, 0, len(refs))
	for _, c := range refs {
		if name := strings.TrimSpace(c.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

type AnalyzeBrandInput struct {
	Body struct {
		URL string `json:"url" minLength:"1" doc:"Brand homepage"`
	}
}

type AnalyzeBrandOutput struct {
	Body struct {
		Competitors []models.CompetitorCandidate `json:"competitors"`
	}
}

func (h *Handler) AnalyzeBrand(ctx context.Context, input *AnalyzeBrandInput) (*AnalyzeBrandOutput, error) {
	h.logger.Info().Str("url", input.Body.URL).Msg("[AnalyzeBrand] analyzing brand url")
	competitors, err := h.provider.FindCompetitors(ctx, input.Body.URL)
	if err != nil {
		return nil, h.toHTTPError(err, "Failed to analyze brand")
	}
	h.logger.Info().Str("url", input.Body.URL).Int("competitors", len(competitors)).Msg("[AnalyzeBrand] competitors found")

	out := &AnalyzeBrandOutput{}
	out.Body.Competitors = nonNil(competitors)
	return out, nil
}

type TestAnalysisInput struct {
	Body struct {
		BrandName string `json:"brandName" minLength:"1" doc:"Brand to look for in the answer"`
		Prompt    string `json:"prompt" minLength:"1" doc:"Prompt to answer and classify"`
	}
}

type TestAnalysisOutput struct {
	Body struct {
		Success   bool                   `json:"success"`
		Result    *models.AnalysisResult `json:"result"`
		Timestamp time.Time              `json:"timestamp"`
	}
}

// TestAnalysis answers and classifies one prompt without storing anything.
func (h *Handler) TestAnalysis(ctx context.Context, input *TestAnalysisInput) (*TestAnalysisOutput, error) {
	brandName := strings.TrimSpace(input.Body.BrandName)
	prompt := strings.TrimSpace(input.Body.Prompt)
	if brandName == "" || prompt == "" {
		return nil, huma.Error400BadRequest("Brand name and prompt are required")
	}

	h.logger.Info().Str("brand", brandName).Str("prompt", prompt).Msg("[TestAnalysis] testing prompt")
	result, err := h.provider.AnswerAndClassify(ctx, brandName, prompt)
	if err != nil {
		return nil, h.toHTTPError(err, "Test analysis failed")
	}
	h.logger.Info().Bool("brand_mentioned", result.BrandMentioned).Int("competitors", len(result.Competitors)).Msg("[TestAnalysis] test analysis completed")

	out := &TestAnalysisOutput{}
	out.Body.Success = true
	out.Body.Result = result
	out.Body.Timestamp = time.Now().UTC()
	return out, nil
}

type GeneratePromptsInput struct {
	Body struct {
		BrandURL    string             `json:"brandUrl" minLength:"1"`
		Competitors []CompetitorRef    `json:"competitors"`
		Settings    models.RunSettings `json:"settings"`
	}
}

type TopicPlansOutput struct {
	Body struct {
		Topics []models.TopicPlan `json:"topics"`
	}
}

func (h *Handler) GeneratePrompts(ctx context.Context, input *GeneratePromptsInput) (*TopicPlansOutput, error) {
	plans, err := h.planner.GeneratePrompts(ctx, input.Body.BrandURL, competitorNames(input.Body.Competitors), input.Body.Settings)
	if err != nil {
		return nil, h.toHTTPError(err, "Failed to generate prompts")
	}
	out := &TopicPlansOutput{}
	out.Body.Topics = nonNil(plans)
	return out, nil
}

type GenerateTopicPromptsInput struct {
	Body struct {
		TopicName        string          `json:"topicName" minLength:"1"`
		TopicDescription string          `json:"topicDescription" minLength:"1"`
		Competitors      []CompetitorRef `json:"competitors,omitempty"`
		PromptCount      int             `json:"promptCount,omitempty" minimum:"0" maximum:"50" doc:"Defaults to 5"`
	}
}

type PromptsListOutput struct {
	Body struct {
		Prompts []string `json:"prompts"`
	}
}

func (h *Handler) GenerateTopicPrompts(ctx context.Context, input *GenerateTopicPromptsInput) (*PromptsListOutput, error) {
	seed := models.TopicSeed{Name: input.Body.TopicName, Description: input.Body.TopicDescription}
	plan, err := h.planner.GenerateTopicPrompts(ctx, seed, input.Body.PromptCount, competitorNames(input.Body.Competitors))
	if err != nil {
		return nil, h.toHTTPError(err, "Failed to generate topic prompts")
	}
	out := &PromptsListOutput{}
	out.Body.Prompts = nonNil(plan.Prompts)
	return out, nil
}

type PlannedTopic struct {
	Name        string   `json:"name" minLength:"1"`
	Description string   `json:"description,omitempty"`
	Prompts     []string `json:"prompts"`
}

type SaveAndAnalyzeInput struct {
	Body struct {
		BrandName string         `json:"brandName,omitempty" doc:"Defaults to the first label of the brand URL host"`
		BrandURL  string         `json:"brandUrl,omitempty"`
		Topics    []PlannedTopic `json:"topics"`
	}
}

type SaveAndAnalyzeOutput struct {
	Body RunStartedBody
}

func (h *Handler) SaveAndAnalyze(ctx context.Context, input *SaveAndAnalyzeInput) (*SaveAndAnalyzeOutput, error) {
	brandName := strings.TrimSpace(input.Body.BrandName)
	if brandName == "" {
		brandName = brandFromURL(input.Body.BrandURL)
	}
	if brandName == "" {
		return nil, huma.Error400BadRequest("brandName or brandUrl is required")
	}

	plans := make([]models.TopicPlan, len(input.Body.Topics))
	for i, t := range input.Body.Topics {
		plans[i] = models.TopicPlan{Name: t.Name, Description: t.Description, Prompts: t.Prompts}
	}

	handle, count, err := h.planner.SaveAndAnalyze(ctx, brandName, input.Body.BrandURL, plans)
	if err != nil {
		if conflict := runConflict(handle, err); conflict != nil {
			return nil, conflict
		}
		return nil, h.toHTTPError(err, "Failed to save prompts and start analysis")
	}
	return &SaveAndAnalyzeOutput{Body: RunStartedBody{
		Success:     true,
		RunID:       handle.ID,
		Status:      models.StatusInitializing,
		Message:     "Prompts saved and analysis started",
		PromptCount: count,
	}}, nil
}

// brandFromURL turns https://www.acme-crm.io into "acmecrm"
func brandFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	label, _, _ := strings.Cut(host, ".")
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return r
		}
		return -1
	}, label)
}

type ClearDataInput struct {
	Body struct {
		Type string `json:"type" doc:"all, prompts or responses"`
	}
}

var clearMessages = map[repository.ClearScope]string{
	repository.ClearAll:       "All data cleared successfully",
	repository.ClearPrompts:   "All prompts cleared successfully",
	repository.ClearResponses: "All responses cleared successfully",
}

func (h *Handler) ClearData(ctx context.Context, input *ClearDataInput) (*MessageOutput, error) {
	scope := repository.ClearScope(input.Body.Type)
	if !scope.Valid() {
		return nil, huma.Error400BadRequest("Invalid type. Use 'all', 'prompts', or 'responses'")
	}
	if err := h.planner.Clear(ctx, scope); err != nil {
		return nil, h.toHTTPError(err, "Failed to clear data")
	}
	return &MessageOutput{Body: MessageBody{Success: true, Message: clearMessages[scope]}}, nil
}
