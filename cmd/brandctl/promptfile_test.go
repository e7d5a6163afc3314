package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/AI-Template-SDK/senso-visibility/internal/config"
)

const samplePromptFile = `
brand: Acme CRM
url: https://acme-crm.io
prompts:
  - Which CRM is best for startups?
  - "  "
topics:
  - name: Pricing
    description: Plans and costs
    prompts:
      - Is Acme CRM worth the price?
      - What does HubSpot cost?
`

func TestParsePromptSet(t *testing.T) {
	set, err := parsePromptSet([]byte(samplePromptFile))
	if err != nil {
		t.Fatalf("parsePromptSet() error = %v", err)
	}
	if set.Brand != "Acme CRM" || set.URL != "https://acme-crm.io" {
		t.Errorf("unexpected header: %+v", set)
	}
	if set.Count() != 3 {
		t.Errorf("Count() = %d, want 3", set.Count())
	}

	plans := set.Plans()
	if len(plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(plans))
	}
	if plans[0].Name != "General" || plans[1].Name != "Pricing" || len(plans[1].Prompts) != 2 {
		t.Errorf("unexpected plans: %+v", plans)
	}
}

func TestParsePromptSetErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid yaml", "prompts: [unclosed"},
		{"no prompts", "brand: Acme\n"},
		{"blank prompts only", "prompts:\n  - ''\n"},
		{"unnamed topic", "topics:\n  - prompts: [Best CRM?]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parsePromptSet([]byte(tt.data)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadPromptSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	if err := os.WriteFile(path, []byte(samplePromptFile), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadPromptSet(path); err != nil {
		t.Fatalf("loadPromptSet() error = %v", err)
	}
	if _, err := loadPromptSet(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestMissingSettings(t *testing.T) {
	useMemory = true
	defer func() { useMemory = false }()

	tests := []struct {
		name string
		cfg  config.Config
		want []string
	}{
		{"openai without key", config.Config{LLMProvider: "openai"}, []string{"OPENAI_API_KEY"}},
		{"claude without key", config.Config{LLMProvider: "claude"}, []string{"ANTHROPIC_API_KEY"}},
		{"configured", config.Config{LLMProvider: "openai", OpenAIAPIKey: "sk-test"}, nil},
		{"search without key", config.Config{LLMProvider: "openai", OpenAIAPIKey: "sk-test", SearchIndexEnabled: true}, []string{"TYPESENSE_API_KEY"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := missingSettings(&tt.cfg)
			if len(got) != len(tt.want) {
				t.Fatalf("missingSettings() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("missingSettings()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
