// Package repository is the persistence gateway for topics, prompts,
// responses, competitors, sources and analytics snapshots.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AI-Template-SDK/senso-visibility/internal/models"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

// ClearScope selects what a bulk clear removes.
type ClearScope string

const (
	ClearAll       ClearScope = "all"
	ClearPrompts   ClearScope = "prompts"
	ClearResponses ClearScope = "responses"
)

// Valid reports whether s names a known scope.
func (s ClearScope) Valid() bool {
	return s == ClearAll || s == ClearPrompts || s == ClearResponses
}

// Store is implemented by the Postgres gateway and the in-memory store.
// Unique names and domains are enforced by the store; the GetOrCreate
// methods never fail on a concurrent duplicate insert.
type Store interface {
	GetOrCreateTopic(ctx context.Context, name string, description *string) (*models.Topic, error)
	GetTopic(ctx context.Context, id int) (*models.Topic, error)
	ListTopics(ctx context.Context) ([]models.Topic, error)

	CreatePrompt(ctx context.Context, text string, topicID *int) (*models.Prompt, error)
	// ListPrompts returns prompts in creation order
	ListPrompts(ctx context.Context) ([]models.Prompt, error)
	// ListPromptsWithTopics returns prompts newest first
	ListPromptsWithTopics(ctx context.Context) ([]models.PromptWithTopic, error)

	CreateResponse(ctx context.Context, response *models.Response) error
	GetResponse(ctx context.Context, id int) (*models.ResponseWithPrompt, error)
	// ListResponses returns responses newest first; limit <= 0 returns all
	ListResponses(ctx context.Context, limit int) ([]models.ResponseWithPrompt, error)

	GetCompetitorByName(ctx context.Context, name string) (*models.Competitor, error)
	GetOrCreateCompetitor(ctx context.Context, name, category string) (*models.Competitor, error)
	IncrementCompetitorMentions(ctx context.Context, id int, at time.Time) error
	// ListCompetitors orders by mention count, highest first
	ListCompetitors(ctx context.Context) ([]models.Competitor, error)

	GetSourceByDomain(ctx context.Context, domain string) (*models.Source, error)
	GetOrCreateSource(ctx context.Context, domain, url, title string) (*models.Source, error)
	IncrementSourceCitations(ctx context.Context, id int, at time.Time) error
	ListSources(ctx context.Context) ([]models.Source, error)

	CreateSnapshot(ctx context.Context, snapshot *models.AnalyticsSnapshot) error
	LatestSnapshot(ctx context.Context) (*models.AnalyticsSnapshot, error)

	TopicAnalysis(ctx context.Context) ([]models.TopicAnalysis, error)
	Counts(ctx context.Context) (*models.Counts, error)

	// Clear removes rows in one transaction. Responses always go with
	// their prompts; ClearAll also wipes competitors.
	Clear(ctx context.Context, scope ClearScope) error

	Ping(ctx context.Context) error
	Close() error
}

// MentionRate is 100*part/total, or 0 when total is 0.
func MentionRate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
