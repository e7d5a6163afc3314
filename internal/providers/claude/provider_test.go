package claude_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/AI-Template-SDK/senso-visibility/internal/providers/claude"
	"github.com/AI-Template-SDK/senso-visibility/internal/providers/common"
	"github.com/AI-Template-SDK/senso-visibility/internal/providers/testutil"
)

func newTestBackend(mock *testutil.MockLLMServer) *claude.Backend {
	return claude.NewBackend(testutil.SampleConfig(), testutil.NewMockCostService(), zerolog.Nop(),
		option.WithBaseURL(mock.Server.URL),
	)
}

func TestComplete(t *testing.T) {
	mock := testutil.NewMockLLMServer()
	defer mock.Close()
	mock.Reply = func(body map[string]any) (string, int) { return "Acme CRM is a good fit.", http.StatusOK }

	out, err := newTestBackend(mock).Complete(context.Background(), common.CompletionRequest{
		Name:        "answer",
		System:      "You are helpful.",
		User:        "Best CRM for startups?",
		MaxTokens:   600,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out.Text != "Acme CRM is a good fit." || out.InputTokens != 12 || out.OutputTokens != 8 || out.Cost != 0.0015 {
		t.Errorf("unexpected completion: %+v", out)
	}

	body := mock.Requests()[0]
	if body["model"] != "claude-sonnet-4-20250514" || body["max_tokens"] != float64(600) {
		t.Errorf("unexpected request: model=%v max_tokens=%v", body["model"], body["max_tokens"])
	}
}

func TestCompleteStructuredAddsSchemaInstruction(t *testing.T) {
	mock := testutil.NewMockLLMServer()
	defer mock.Close()
	mock.Reply = func(body map[string]any) (string, int) { return testutil.SampleCompetitorList(), http.StatusOK }

	_, err := newTestBackend(mock).Complete(context.Background(), common.CompletionRequest{
		Name:   "find_competitors",
		System: "Find competitors.",
		User:   "homepage",
		Schema: common.CompetitorListSchema,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	body := mock.Requests()[0]
	if body["max_tokens"] != float64(1024) {
		t.Errorf("max_tokens = %v, want default 1024", body["max_tokens"])
	}
	system, _ := body["system"].([]any)
	if len(system) != 1 {
		t.Fatalf("system = %v", body["system"])
	}
	text, _ := system[0].(map[string]any)["text"].(string)
	if !strings.HasPrefix(text, "Find competitors.") || !strings.Contains(text, "JSON object matching this schema") || !strings.Contains(text, "competitors") {
		t.Errorf("schema instruction missing from system prompt: %q", text)
	}
}

func TestCompleteServerError(t *testing.T) {
	mock := testutil.NewMockLLMServer()
	defer mock.Close()
	mock.Reply = func(body map[string]any) (string, int) { return "overloaded", http.StatusServiceUnavailable }

	if _, err := newTestBackend(mock).Complete(context.Background(), common.CompletionRequest{Name: "answer", User: "q"}); err == nil {
		t.Fatal("expected an error for a 503 response")
	}
	if got := len(mock.Requests()); got != 1 {
		t.Errorf("expected one HTTP request per Complete, got %d", got)
	}
}

func TestHasCredentials(t *testing.T) {
	cfg := testutil.SampleConfig()
	cfg.AnthropicAPIKey = ""
	backend := claude.NewBackend(cfg, nil, zerolog.Nop())
	if backend.HasCredentials() || backend.ProviderName() != "anthropic" {
		t.Errorf("unexpected backend state: credentials=%v name=%s", backend.HasCredentials(), backend.ProviderName())
	}
}
