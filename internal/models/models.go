// internal/models/models.go
package models

import (
	"time"

	"github.com/lib/pq"
)

// Topic groups related test prompts
type Topic struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description" db:"description"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// Prompt is a single test query sent to the provider
type Prompt struct {
	ID        int       `json:"id" db:"id"`
	Text      string    `json:"text" db:"text"`
	TopicID   *int      `json:"topicId" db:"topic_id"` // nil for topic-less prompts
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Response is the recorded provider answer for one prompt
type Response struct {
	ID                   int            `json:"id" db:"id"`
	PromptID             int            `json:"promptId" db:"prompt_id"`
	Text                 string         `json:"text" db:"text"`
	BrandMentioned       bool           `json:"brandMentioned" db:"brand_mentioned"`
	CompetitorsMentioned pq.StringArray `json:"competitorsMentioned" db:"competitors_mentioned"`
	Sources              pq.StringArray `json:"sources" db:"sources"`
	InputTokens          int            `json:"inputTokens" db:"input_tokens"`
	OutputTokens         int            `json:"outputTokens" db:"output_tokens"`
	Cost                 float64        `json:"cost" db:"cost"`
	CreatedAt            time.Time      `json:"createdAt" db:"created_at"`
}

type Competitor struct {
	ID            int        `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	Category      *string    `json:"category" db:"category"`
	MentionCount  int        `json:"mentionCount" db:"mention_count"`
	LastMentioned *time.Time `json:"lastMentioned" db:"last_mentioned"`
}

type Source struct {
	ID            int        `json:"id" db:"id"`
	Domain        string     `json:"domain" db:"domain"`
	URL           *string    `json:"url" db:"url"`
	Title         *string    `json:"title" db:"title"`
	CitationCount int        `json:"citationCount" db:"citation_count"`
	LastCited     *time.Time `json:"lastCited" db:"last_cited"`
}

// AnalyticsSnapshot is appended once at the end of every completed run
type AnalyticsSnapshot struct {
	ID               int       `json:"id" db:"id"`
	Date             time.Time `json:"date" db:"date"`
	TotalPrompts     int       `json:"totalPrompts" db:"total_prompts"`
	BrandMentionRate float64   `json:"brandMentionRate" db:"brand_mention_rate"`
	TopCompetitor    *string   `json:"topCompetitor" db:"top_competitor"`
	TotalSources     int       `json:"totalSources" db:"total_sources"`
	TotalDomains     int       `json:"totalDomains" db:"total_domains"`
}

// PromptWithTopic joins a prompt with its owning topic, if any
type PromptWithTopic struct {
	Prompt
	Topic *Topic `json:"topic"`
}

// ResponseWithPrompt joins a response with its prompt and the prompt's topic
type ResponseWithPrompt struct {
	Response
	Prompt PromptWithTopic `json:"prompt"`
}

// RunStatus is the state of an analysis run
type RunStatus string

const (
	StatusIdle              RunStatus = "idle"
	StatusInitializing      RunStatus = "initializing"
	StatusScraping          RunStatus = "scraping"
	StatusGeneratingPrompts RunStatus = "generating_prompts"
	StatusTestingPrompts    RunStatus = "testing_prompts"
	StatusAnalyzing         RunStatus = "analyzing"
	StatusComplete          RunStatus = "complete"
	StatusError             RunStatus = "error"
)

// Terminal reports whether no further transitions will happen
func (s RunStatus) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Progress is the snapshot pushed to progress sinks and returned to pollers
type Progress struct {
	RunID            string    `json:"runId,omitempty"`
	Status           RunStatus `json:"status"`
	Message          string    `json:"message"`
	Progress         int       `json:"progress"`
	TotalPrompts     int       `json:"totalPrompts"`
	CompletedPrompts int       `json:"completedPrompts"`
	Error            string    `json:"error,omitempty"`
}

// AnalysisResult is the outcome of answering and classifying one prompt
type AnalysisResult struct {
	Response       string   `json:"response"`
	BrandMentioned bool     `json:"brandMentioned"`
	Competitors    []string `json:"competitors"`
	Sources        []string `json:"sources"`
	InputTokens    int      `json:"inputTokens"`
	OutputTokens   int      `json:"outputTokens"`
	Cost           float64  `json:"cost"`
}

// CompetitorCandidate is a competitor suggested by homepage analysis
type CompetitorCandidate struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Category string `json:"category"`
}

// SiteSummary describes what a brand site offers
type SiteSummary struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Services    []string `json:"services"`
}

// TopicSeed is a topic name and description before it is persisted
type TopicSeed struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TopicPlan is a topic with the prompts generated for it
type TopicPlan struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Prompts     []string `json:"prompts"`
}

// SuppliedPrompt is a caller-provided prompt, optionally under a topic
type SuppliedPrompt struct {
	Text    string `json:"text" yaml:"text"`
	TopicID *int   `json:"topicId,omitempty" yaml:"topic_id,omitempty"`
}

// RunSettings tunes prompt generation
type RunSettings struct {
	PromptsPerTopic int `json:"promptsPerTopic"`
	NumberOfTopics  int `json:"numberOfTopics"`
}

// RunRequest describes one analysis run
type RunRequest struct {
	BrandName          string           `json:"brand_name"`
	BrandURL           string           `json:"brand_url,omitempty"`
	UseExistingPrompts bool             `json:"use_existing_prompts,omitempty"`
	SuppliedPrompts    []SuppliedPrompt `json:"supplied_prompts,omitempty"`
	Settings           *RunSettings     `json:"settings,omitempty"`
}

type TopicAnalysis struct {
	TopicID       int     `json:"topicId"`
	TopicName     string  `json:"topicName"`
	MentionRate   float64 `json:"mentionRate"`
	TotalPrompts  int     `json:"totalPrompts"`
	BrandMentions int     `json:"brandMentions"`
}

type CompetitorAnalysis struct {
	CompetitorID int     `json:"competitorId"`
	Name         string  `json:"name"`
	Category     *string `json:"category"`
	MentionCount int     `json:"mentionCount"`
	MentionRate  float64 `json:"mentionRate"`
	ChangeRate   float64 `json:"changeRate"` // no history is kept, always 0
}

type SourceAnalysis struct {
	SourceID      int      `json:"sourceId"`
	Domain        string   `json:"domain"`
	CitationCount int      `json:"citationCount"`
	URLs          []string `json:"urls"`
}

type OverviewMetrics struct {
	BrandMentionRate float64 `json:"brandMentionRate"`
	TotalPrompts     int     `json:"totalPrompts"`
	TopCompetitor    string  `json:"topCompetitor"`
	TotalSources     int     `json:"totalSources"`
	TotalDomains     int     `json:"totalDomains"`
}

type Counts struct {
	TotalResponses   int     `json:"totalResponses"`
	TotalPrompts     int     `json:"totalPrompts"`
	TotalTopics      int     `json:"totalTopics"`
	TotalCompetitors int     `json:"totalCompetitors"`
	TotalSources     int     `json:"totalSources"`
	BrandMentions    int     `json:"brandMentions"`
	BrandMentionRate float64 `json:"brandMentionRate"`
}

// ExportBundle is the full data dump served by the export endpoint
type ExportBundle struct {
	Timestamp   time.Time            `json:"timestamp"`
	Analytics   *AnalyticsSnapshot   `json:"analytics"`
	Topics      []Topic              `json:"topics"`
	Prompts     []Prompt             `json:"prompts"`
	Responses   []ResponseWithPrompt `json:"responses"`
	Competitors []Competitor         `json:"competitors"`
	Sources     []Source             `json:"sources"`
}

// SearchHit is a response matched by the search index
type SearchHit struct {
	ResponseID int     `json:"responseId"`
	PromptText string  `json:"promptText"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
}
