package common_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AI-Template-SDK/senso-visibility/internal/providers/common"
	"github.com/AI-Template-SDK/senso-visibility/internal/providers/testutil"
)

func newEngine(c *testutil.FakeCompleter, opts ...common.EngineOption) *common.Engine {
	opts = append([]common.EngineOption{common.WithRetryPolicy(fastPolicy())}, opts...)
	return common.NewEngine(c, opts...)
}

func TestAnswerAndClassify(t *testing.T) {
	completer := &testutil.FakeCompleter{
		Handler: func(req common.CompletionRequest) (string, error) {
			switch req.Name {
			case "answer":
				return testutil.SampleAnswer(), nil
			case "classify":
				return testutil.SampleClassification(), nil
			}
			return "", fmt.Errorf("unexpected request %s", req.Name)
		},
	}
	engine := newEngine(completer)

	result, err := engine.AnswerAndClassify(context.Background(), "Acme", "Best CRM for startups?")
	if err != nil {
		t.Fatalf("AnswerAndClassify() error = %v", err)
	}

	if result.Response != testutil.SampleAnswer() {
		t.Errorf("Response = %q", result.Response)
	}
	if !result.BrandMentioned || len(result.Competitors) != 1 || result.Competitors[0] != "Acme CRM" {
		t.Errorf("unexpected classification: %+v", result)
	}
	if result.InputTokens != 20 || result.OutputTokens != 10 {
		t.Errorf("tokens = %d/%d, want 20/10", result.InputTokens, result.OutputTokens)
	}

	answerReq, classifyReq := completer.Requests[0], completer.Requests[1]
	if answerReq.MaxTokens != 600 || !strings.Contains(answerReq.User, "Question: Best CRM for startups?") {
		t.Errorf("unexpected answer request: %+v", answerReq)
	}
	if classifyReq.Schema == nil || classifyReq.MaxTokens != 300 || !strings.Contains(classifyReq.User, "Tracked brand: Acme") {
		t.Errorf("unexpected classify request: %+v", classifyReq)
	}
}

func TestAnswerAndClassifyMalformedClassification(t *testing.T) {
	completer := &testutil.FakeCompleter{
		Handler: func(req common.CompletionRequest) (string, error) {
			if req.Name == "classify" {
				return "I think the brand was mentioned.", nil
			}
			return "Some answer", nil
		},
	}

	result, err := newEngine(completer).AnswerAndClassify(context.Background(), "Acme", "q")
	if err != nil {
		t.Fatalf("malformed classification must not fail: %v", err)
	}
	if result.BrandMentioned || len(result.Competitors) != 0 || len(result.Sources) != 0 {
		t.Errorf("expected empty classification, got %+v", result)
	}
	if result.Response != "Some answer" {
		t.Errorf("answer text lost: %q", result.Response)
	}
}

func TestAnswerAndClassifyErrors(t *testing.T) {
	t.Run("no credentials", func(t *testing.T) {
		completer := &testutil.FakeCompleter{NoCredentials: true}
		_, err := newEngine(completer).AnswerAndClassify(context.Background(), "Acme", "q")
		if !errors.Is(err, common.ErrNoCredentials) {
			t.Errorf("expected ErrNoCredentials, got %v", err)
		}
		if len(completer.Requests) != 0 {
			t.Errorf("no remote calls expected, got %d", len(completer.Requests))
		}
	})

	t.Run("answer retried then fails", func(t *testing.T) {
		completer := &testutil.FakeCompleter{
			Handler: func(req common.CompletionRequest) (string, error) {
				return "", testutil.ErrProviderDown
			},
		}
		_, err := newEngine(completer).AnswerAndClassify(context.Background(), "Acme", "q")
		if !errors.Is(err, testutil.ErrProviderDown) {
			t.Errorf("expected provider error, got %v", err)
		}
		if got := completer.Calls("answer"); got != 3 {
			t.Errorf("answer attempts = %d, want 3", got)
		}
	})
}

func TestGenerateQueriesAlwaysReturnsCount(t *testing.T) {
	replies := []string{
		`"How do startups pick a CRM"`,
		"CRM",
		"how do startups pick a crm?",
		"Need help with CRM data imports please",
		"One two three four five six seven eight nine ten eleven twelve thirteen",
	}

	for count := 0; count <= 9; count++ {
		t.Run(fmt.Sprintf("count=%d", count), func(t *testing.T) {
			i := 0
			completer := &testutil.FakeCompleter{
				Handler: func(req common.CompletionRequest) (string, error) {
					r := replies[i%len(replies)]
					i++
					return r, nil
				},
			}

			queries, err := newEngine(completer).GenerateQueries(context.Background(), "Sales Pipeline Management", "", count, []string{"HubSpot"})
			if err != nil {
				t.Fatalf("GenerateQueries() error = %v", err)
			}
			if len(queries) != count {
				t.Fatalf("got %d queries, want %d: %v", len(queries), count, queries)
			}
			seen := map[string]bool{}
			for _, q := range queries {
				if !common.ValidQuery(q) {
					t.Errorf("query %q is not 3-12 words", q)
				}
				key := strings.ToLower(q)
				if seen[key] {
					t.Errorf("duplicate query %q", q)
				}
				seen[key] = true
			}
			if count > 0 && completer.Calls("generate_query") > count*5 {
				t.Errorf("made %d attempts, limit is %d", completer.Calls("generate_query"), count*5)
			}
		})
	}
}

func TestGenerateQueriesFallbacks(t *testing.T) {
	t.Run("no credentials uses templates", func(t *testing.T) {
		completer := &testutil.FakeCompleter{NoCredentials: true}
		queries, _ := newEngine(completer).GenerateQueries(context.Background(), "Billing", "", 7, nil)

		if len(queries) != 7 {
			t.Fatalf("got %d queries, want 7", len(queries))
		}
		if queries[0] != "Dealing with billing complexity" {
			t.Errorf("first fallback = %q", queries[0])
		}
		if queries[5] != "Billing question 1" {
			t.Errorf("sixth fallback = %q", queries[5])
		}
		if len(completer.Requests) != 0 {
			t.Error("no remote calls expected without credentials")
		}
	})

	t.Run("failing provider pads to count", func(t *testing.T) {
		completer := &testutil.FakeCompleter{
			Handler: func(req common.CompletionRequest) (string, error) { return "", testutil.ErrProviderDown },
		}
		engine := common.NewEngine(completer, common.WithRetryPolicy(common.RetryPolicy{Attempts: 1, Timeout: time.Second}))
		queries, err := engine.GenerateQueries(context.Background(), "", "", 4, nil)
		if err != nil || len(queries) != 4 {
			t.Fatalf("GenerateQueries() = %v, %v", queries, err)
		}
		if completer.Calls("generate_query") != 20 {
			t.Errorf("attempts = %d, want 20", completer.Calls("generate_query"))
		}
	})

	t.Run("long topic stays within word limit", func(t *testing.T) {
		long := "enterprise grade multi region customer relationship management platform migration and rollout planning"
		for _, q := range common.FallbackQueries(long, 10) {
			if !common.ValidQuery(q) {
				t.Errorf("fallback %q is not 3-12 words", q)
			}
		}
	})
}

func TestFindCompetitors(t *testing.T) {
	completer := &testutil.FakeCompleter{
		Handler: func(req common.CompletionRequest) (string, error) {
			switch {
			case strings.Contains(req.User, "well-known"):
				return testutil.SampleCompetitorList(), nil
			case strings.Contains(req.User, "emerging"):
				return `[{"name":"hubspot","url":"https://hubspot.com","category":"CRM"},{"name":"Attio","url":"https://attio.com","category":"CRM"}]`, nil
			default:
				return "", testutil.ErrProviderDown
			}
		},
	}
	fetcher := &testutil.FakeFetcher{Pages: map[string]string{"https://acme-crm.io": "Acme CRM homepage"}}

	got, err := newEngine(completer, common.WithPageFetcher(fetcher)).FindCompetitors(context.Background(), "https://acme-crm.io")
	if err != nil {
		t.Fatalf("FindCompetitors() error = %v", err)
	}

	var names []string
	for _, c := range got {
		names = append(names, c.Name)
	}
	if strings.Join(names, ",") != "HubSpot,Pipedrive,Attio" {
		t.Errorf("competitors = %v", names)
	}
	if completer.Calls("find_competitors") != 2+3 {
		t.Errorf("discovery calls = %d, want 5 (two successes, one retried three times)", completer.Calls("find_competitors"))
	}
	for _, r := range completer.Requests {
		if !strings.Contains(r.User, "Acme CRM homepage") {
			t.Errorf("homepage text missing from prompt: %q", r.User)
		}
	}
}

func TestFindCompetitorsCapsAtEight(t *testing.T) {
	var batch atomic.Int32
	completer := &testutil.FakeCompleter{
		Handler: func(req common.CompletionRequest) (string, error) {
			b := batch.Add(1)
			var items []string
			for i := 0; i < 5; i++ {
				items = append(items, fmt.Sprintf(`{"name":"Vendor %d-%d","url":"https://v%d-%d.io","category":"CRM"}`, b, i, b, i))
			}
			return "[" + strings.Join(items, ",") + "]", nil
		},
	}

	got, _ := newEngine(completer).FindCompetitors(context.Background(), "https://acme.io")
	if len(got) != 8 {
		t.Errorf("got %d competitors, want the cap of 8", len(got))
	}
}

func TestFindCompetitorsWithoutCredentials(t *testing.T) {
	completer := &testutil.FakeCompleter{NoCredentials: true}
	got, err := newEngine(completer).FindCompetitors(context.Background(), "https://acme.io")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "Sample Competitor 1" || got[1].URL != "https://competitor2.com" {
		t.Errorf("unexpected placeholders: %+v", got)
	}
}

func TestCategorizeCompetitor(t *testing.T) {
	tests := []struct {
		name    string
		handler func(req common.CompletionRequest) (string, error)
		want    string
		wantErr bool
	}{
		{
			name:    "category returned",
			handler: func(req common.CompletionRequest) (string, error) { return " \"Finance\" ", nil },
			want:    "Finance",
		},
		{
			name:    "empty answer",
			handler: func(req common.CompletionRequest) (string, error) { return "  ", nil },
			want:    common.DefaultCategory,
		},
		{
			name:    "provider error",
			handler: func(req common.CompletionRequest) (string, error) { return "", testutil.ErrProviderDown },
			want:    common.DefaultCategory,
			wantErr: true,
		},
		{
			name: "timeout",
			handler: func(req common.CompletionRequest) (string, error) {
				time.Sleep(50 * time.Millisecond)
				return "Finance", nil
			},
			want:    common.DefaultCategory,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &testutil.FakeCompleter{Handler: tt.handler}
			engine := newEngine(completer, common.WithCategorizeTimeout(10*time.Millisecond))

			got, err := engine.CategorizeCompetitor(context.Background(), "Acme", "Stripe")
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("category = %q, want %q", got, tt.want)
			}
			if n := completer.Calls("categorize"); n != 1 {
				t.Errorf("categorize calls = %d, want exactly 1", n)
			}
		})
	}
}

func TestSummarizeSite(t *testing.T) {
	completer := &testutil.FakeCompleter{
		Handler: func(req common.CompletionRequest) (string, error) {
			return `{"title":"Acme CRM","description":"Pipelines for startups","features":["Pipelines"],"services":["CRM"]}`, nil
		},
	}
	engine := newEngine(completer)

	short, _ := engine.SummarizeSite(context.Background(), "https://www.acme-crm.io", "too short")
	if short.Title != "acme-crm" || short.Description != "Analysis for acme-crm" {
		t.Errorf("unexpected fallback summary: %+v", short)
	}
	if len(completer.Requests) != 0 {
		t.Error("short page text should not reach the provider")
	}

	full, _ := engine.SummarizeSite(context.Background(), "https://acme-crm.io", strings.Repeat("Acme CRM manages pipelines. ", 5))
	if full.Title != "Acme CRM" || full.Services[0] != "CRM" {
		t.Errorf("unexpected summary: %+v", full)
	}
}

func TestDeriveTopics(t *testing.T) {
	summary := common.FallbackSummary("https://acme.io")

	t.Run("caps at seven", func(t *testing.T) {
		completer := &testutil.FakeCompleter{
			Handler: func(req common.CompletionRequest) (string, error) {
				var items []string
				for i := 0; i < 9; i++ {
					items = append(items, fmt.Sprintf(`{"name":"Topic %d","description":"d"}`, i))
				}
				return `{"topics":[` + strings.Join(items, ",") + `]}`, nil
			},
		}
		topics, _ := newEngine(completer).DeriveTopics(context.Background(), summary)
		if len(topics) != 7 {
			t.Errorf("got %d topics, want 7", len(topics))
		}
	})

	t.Run("garbage falls back", func(t *testing.T) {
		completer := &testutil.FakeCompleter{
			Handler: func(req common.CompletionRequest) (string, error) { return "no topics today", nil },
		}
		topics, _ := newEngine(completer).DeriveTopics(context.Background(), summary)
		if len(topics) != 5 || topics[0].Name != "Market Solutions" {
			t.Errorf("unexpected fallback topics: %+v", topics)
		}
	})
}
