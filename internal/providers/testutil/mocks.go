package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/AI-Template-SDK/senso-visibility/internal/models"
	"github.com/AI-Template-SDK/senso-visibility/internal/providers/common"
)

// MockCostService is a mock implementation of CostService for testing
type MockCostService struct {
	CalculateCostFunc func(provider, model string, inputTokens, outputTokens int) float64
}

func (m *MockCostService) CalculateCost(provider, model string, inputTokens, outputTokens int) float64 {
	if m.CalculateCostFunc != nil {
		return m.CalculateCostFunc(provider, model, inputTokens, outputTokens)
	}
	return 0.0015 // Default mock cost
}

// NewMockCostService creates a new mock cost service
func NewMockCostService() *MockCostService {
	return &MockCostService{}
}

// FakeCompleter is a scripted common.Completer
type FakeCompleter struct {
	mu            sync.Mutex
	Name          string
	NoCredentials bool
	Handler       func(req common.CompletionRequest) (string, error)
	Requests      []common.CompletionRequest
}

func (f *FakeCompleter) Complete(ctx context.Context, req common.CompletionRequest) (*common.Completion, error) {
	f.mu.Lock()
	f.Requests = append(f.Requests, req)
	handler := f.Handler
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if handler == nil {
		return &common.Completion{Text: "{}"}, nil
	}
	text, err := handler(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &common.Completion{Text: text, InputTokens: 10, OutputTokens: 5, Cost: 0.001}, nil
}

func (f *FakeCompleter) ProviderName() string {
	if f.Name == "" {
		return "fake"
	}
	return f.Name
}

func (f *FakeCompleter) HasCredentials() bool {
	return !f.NoCredentials
}

// Calls counts recorded requests for an operation name
func (f *FakeCompleter) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.Requests {
		if r.Name == name {
			n++
		}
	}
	return n
}

// FakeFetcher serves page text from a map
type FakeFetcher struct {
	Pages map[string]string
}

func (f *FakeFetcher) FetchPageText(ctx context.Context, pageURL string) string {
	if f == nil || f.Pages == nil {
		return ""
	}
	return f.Pages[pageURL]
}

// ErrProviderDown simulates an exhausted remote call
var ErrProviderDown = errors.New("provider unavailable")

// FakeProvider is a scripted provider for analyzer and API tests
type FakeProvider struct {
	mu          sync.Mutex
	Name        string
	Credentials bool
	AnswerFunc  func(ctx context.Context, brandName, promptText string) (*models.AnalysisResult, error)
	QueriesFunc func(ctx context.Context, topic string, count int) ([]string, error)
	Competitors []models.CompetitorCandidate
	Categories  map[string]string
	Summary     *models.SiteSummary
	Topics      []models.TopicSeed

	AnswerCalls     []string
	CategorizeCalls []string
}

// NewFakeProvider returns a provider with credentials and canned data
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{Name: "fake", Credentials: true}
}

func (p *FakeProvider) GetProviderName() string { return p.Name }

func (p *FakeProvider) HasCredentials() bool { return p.Credentials }

func (p *FakeProvider) AnswerAndClassify(ctx context.Context, brandName, promptText string) (*models.AnalysisResult, error) {
	p.mu.Lock()
	p.AnswerCalls = append(p.AnswerCalls, promptText)
	fn := p.AnswerFunc
	p.mu.Unlock()

	if fn == nil {
		return &models.AnalysisResult{Response: "No data", Competitors: []string{}, Sources: []string{}}, nil
	}
	return fn(ctx, brandName, promptText)
}

func (p *FakeProvider) GenerateQueries(ctx context.Context, topicName, topicDescription string, count int, competitors []string) ([]string, error) {
	if p.QueriesFunc != nil {
		return p.QueriesFunc(ctx, topicName, count)
	}
	out := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		out = append(out, fmt.Sprintf("Question about %s number %d", strings.ToLower(topicName), i))
	}
	return out, nil
}

func (p *FakeProvider) FindCompetitors(ctx context.Context, siteURL string) ([]models.CompetitorCandidate, error) {
	if p.Competitors == nil {
		return common.PlaceholderCompetitors(), nil
	}
	return p.Competitors, nil
}

func (p *FakeProvider) CategorizeCompetitor(ctx context.Context, brandName, competitorName string) (string, error) {
	p.mu.Lock()
	p.CategorizeCalls = append(p.CategorizeCalls, competitorName)
	p.mu.Unlock()

	if c, ok := p.Categories[competitorName]; ok {
		return c, nil
	}
	return common.DefaultCategory, nil
}

func (p *FakeProvider) SummarizeSite(ctx context.Context, siteURL, pageText string) (*models.SiteSummary, error) {
	if p.Summary != nil {
		return p.Summary, nil
	}
	return common.FallbackSummary(siteURL), nil
}

func (p *FakeProvider) DeriveTopics(ctx context.Context, summary *models.SiteSummary) ([]models.TopicSeed, error) {
	if p.Topics != nil {
		return p.Topics, nil
	}
	return common.FallbackTopics(), nil
}

// AnswerCount returns how many prompts were answered
func (p *FakeProvider) AnswerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.AnswerCalls)
}

// MockLLMServer stands in for the OpenAI and Anthropic HTTP APIs. Reply
// receives the decoded request body and returns the assistant text.
type MockLLMServer struct {
	Server *httptest.Server
	Reply  func(body map[string]any) (string, int)

	mu       sync.Mutex
	requests []map[string]any
}

// NewMockLLMServer serves /chat/completions, /embeddings and /v1/messages
func NewMockLLMServer() *MockLLMServer {
	mock := &MockLLMServer{}
	mock.Server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

func (m *MockLLMServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw, _ := io.ReadAll(r.Body)
	body := map[string]any{}
	_ = json.Unmarshal(raw, &body)

	m.mu.Lock()
	m.requests = append(m.requests, body)
	reply := m.Reply
	m.mu.Unlock()

	text, status := "{}", http.StatusOK
	if reply != nil {
		text, status = reply(body)
	}
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error":{"message":%q,"type":"server_error"}}`, text)
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/chat/completions"):
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 0,
			"model":   body["model"],
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": text},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20},
		})
	case strings.HasSuffix(r.URL.Path, "/embeddings"):
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  body["model"],
			"data": []map[string]any{{
				"object":    "embedding",
				"index":     0,
				"embedding": []float64{0.1, 0.2, 0.3},
			}},
			"usage": map[string]any{"prompt_tokens": 3, "total_tokens": 3},
		})
	case strings.HasSuffix(r.URL.Path, "/messages"):
		json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_test",
			"type":          "message",
			"role":          "assistant",
			"model":         body["model"],
			"content":       []map[string]any{{"type": "text", "text": text}},
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"usage":         map[string]any{"input_tokens": 12, "output_tokens": 8},
		})
	default:
		http.NotFound(w, r)
	}
}

// Requests returns the decoded request bodies received so far
func (m *MockLLMServer) Requests() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.requests...)
}

// Close closes the mock server
func (m *MockLLMServer) Close() {
	m.Server.Close()
}
