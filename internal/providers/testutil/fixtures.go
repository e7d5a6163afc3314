package testutil

import (
	"time"

	"github.com/AI-Template-SDK/senso-visibility/internal/config"
)

// SampleConfig returns a test configuration with short delays
func SampleConfig() *config.Config {
	return &config.Config{
		Environment:        "test",
		LLMProvider:        "openai",
		OpenAIAPIKey:       "test-openai-key",
		OpenAIModel:        "gpt-4o",
		AnthropicAPIKey:    "test-anthropic-key",
		AnthropicModel:     "claude-sonnet-4-20250514",
		EmbeddingModel:     "text-embedding-3-small",
		LogLevel:           "debug",
		LogFormat:          "console",
		CORSOrigins:        []string{"*"},
		RateLimitPerMinute: 1000,
		Analysis: config.AnalysisConfig{
			PromptsPerTopic:   3,
			PromptDelay:       time.Millisecond,
			RetryAttempts:     3,
			RetryTimeout:      time.Second,
			CategorizeTimeout: 100 * time.Millisecond,
			ScrapeTimeout:     time.Second,
		},
	}
}

// SamplePrompts returns the two-prompt CRM scenario
func SamplePrompts() []string {
	return []string{
		"Best CRM for startups?",
		"Compare CRM pricing",
	}
}

// SampleAnswer is a provider answer citing two URLs on the same domain
func SampleAnswer() string {
	return "For startups, Acme CRM is a solid pick. See https://docs.acme-crm.io/getting-started and " +
		"https://docs.acme-crm.io/api/reference, or compare plans at https://www.g2.com/categories/crm."
}

// SampleClassification returns a classifier payload
func SampleClassification() string {
	return `{"brandMentioned": true, "competitors": ["Acme CRM"], "sources": ["https://docs.acme-crm.io/getting-started"]}`
}

// SampleCompetitorList returns a discovery payload in the wrapped shape
func SampleCompetitorList() string {
	return `{"competitors": [
		{"name": "HubSpot", "url": "https://hubspot.com", "category": "CRM"},
		{"name": "Pipedrive", "url": "https://pipedrive.com", "category": "CRM"}
	]}`
}

// SampleHomepageHTML is a small landing page for scraper tests
func SampleHomepageHTML() string {
	return `<!DOCTYPE html>
<html>
<head><title>Acme CRM - Pipelines for startups</title></head>
<body>
<nav><a href="/">Home</a><a href="/pricing">Pricing</a></nav>
<article>
<h1>Acme CRM</h1>
<p>Acme CRM helps early-stage startups manage their sales pipeline, track every deal and automate follow-ups without a dedicated sales operations team.</p>
<p>Connect your inbox, calendar and billing tools in minutes and get a single view of each customer across marketing, sales and support.</p>
<p>Teams on Acme CRM close deals faster with shared pipelines, forecasting dashboards and workflow automation built for founders.</p>
</article>
<script>console.log("tracking")</script>
</body>
</html>`
}
