package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AI-Template-SDK/senso-visibility/internal/models"
)

// MemoryStore is an in-process Store used by tests and by the CLI when no
// database is configured.
type MemoryStore struct {
	mu          sync.RWMutex
	nextID      int
	topics      []models.Topic
	prompts     []models.Prompt
	responses   []models.Response
	competitors []models.Competitor
	sources     []models.Source
	snapshots   []models.AnalyticsSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) id() int {
	m.nextID++
	return m.nextID
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) GetOrCreateTopic(ctx context.Context, name string, description *string) (*models.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.topics {
		if t.Name == name {
			out := t
			return &out, nil
		}
	}
	t := models.Topic{ID: m.id(), Name: name, Description: description, CreatedAt: time.Now().UTC()}
	m.topics = append(m.topics, t)
	return &t, nil
}

func (m *MemoryStore) GetTopic(ctx context.Context, id int) (*models.Topic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t := m.topicByID(id); t != nil {
		out := *t
		return &out, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) topicByID(id int) *models.Topic {
	for i := range m.topics {
		if m.topics[i].ID == id {
			return &m.topics[i]
		}
	}
	return nil
}

func (m *MemoryStore) ListTopics(ctx context.Context) ([]models.Topic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Topic{}, m.topics...), nil
}

func (m *MemoryStore) CreatePrompt(ctx context.Context, text string, topicID *int) (*models.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if topicID != nil && m.topicByID(*topicID) == nil {
		return nil, fmt.Errorf("failed to create prompt: topic %d does not exist", *topicID)
	}
	p := models.Prompt{ID: m.id(), Text: text, TopicID: topicID, CreatedAt: time.Now().UTC()}
	m.prompts = append(m.prompts, p)
	return &p, nil
}

func (m *MemoryStore) ListPrompts(ctx context.Context) ([]models.Prompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Prompt{}, m.prompts...), nil
}

func (m *MemoryStore) ListPromptsWithTopics(ctx context.Context) ([]models.PromptWithTopic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.PromptWithTopic, 0, len(m.prompts))
	for i := len(m.prompts) - 1; i >= 0; i-- {
		out = append(out, m.withTopic(m.prompts[i]))
	}
	return out, nil
}

func (m *MemoryStore) withTopic(p models.Prompt) models.PromptWithTopic {
	joined := models.PromptWithTopic{Prompt: p}
	if p.TopicID != nil {
		if t := m.topicByID(*p.TopicID); t != nil {
			topic := *t
			joined.Topic = &topic
		}
	}
	return joined
}

func (m *MemoryStore) promptByID(id int) *models.Prompt {
	for i := range m.prompts {
		if m.prompts[i].ID == id {
			return &m.prompts[i]
		}
	}
	return nil
}

func (m *MemoryStore) CreateResponse(ctx context.Context, response *models.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.promptByID(response.PromptID) == nil {
		return fmt.Errorf("failed to create response: prompt %d does not exist", response.PromptID)
	}
	if response.CompetitorsMentioned == nil {
		response.CompetitorsMentioned = []string{}
	}
	if response.Sources == nil {
		response.Sources = []string{}
	}
	response.ID = m.id()
	response.CreatedAt = time.Now().UTC()
	m.responses = append(m.responses, *response)
	return nil
}

func (m *MemoryStore) joinResponse(r models.Response) models.ResponseWithPrompt {
	joined := models.ResponseWithPrompt{Response: r}
	if p := m.promptByID(r.PromptID); p != nil {
		joined.Prompt = m.withTopic(*p)
	}
	return joined
}

func (m *MemoryStore) GetResponse(ctx context.Context, id int) (*models.ResponseWithPrompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.responses {
		if r.ID == id {
			joined := m.joinResponse(r)
			return &joined, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListResponses(ctx context.Context, limit int) ([]models.ResponseWithPrompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ResponseWithPrompt, 0, len(m.responses))
	for i := len(m.responses) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.joinResponse(m.responses[i]))
	}
	return out, nil
}

func (m *MemoryStore) GetCompetitorByName(ctx context.Context, name string) (*models.Competitor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.competitors {
		if c.Name == name {
			out := c
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetOrCreateCompetitor(ctx context.Context, name, category string) (*models.Competitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.competitors {
		if c.Name == name {
			out := c
			return &out, nil
		}
	}
	cat := category
	c := models.Competitor{ID: m.id(), Name: name, Category: &cat}
	m.competitors = append(m.competitors, c)
	return &c, nil
}

func (m *MemoryStore) IncrementCompetitorMentions(ctx context.Context, id int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.competitors {
		if m.competitors[i].ID == id {
			m.competitors[i].MentionCount++
			ts := at
			m.competitors[i].LastMentioned = &ts
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) ListCompetitors(ctx context.Context) ([]models.Competitor, error) {
	m.mu.RLock()
	out := append([]models.Competitor{}, m.competitors...)
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].MentionCount > out[j].MentionCount })
	return out, nil
}

func (m *MemoryStore) GetSourceByDomain(ctx context.Context, domain string) (*models.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sources {
		if s.Domain == domain {
			out := s
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetOrCreateSource(ctx context.Context, domain, url, title string) (*models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sources {
		if s.Domain == domain {
			out := s
			return &out, nil
		}
	}
	u, t := url, title
	s := models.Source{ID: m.id(), Domain: domain, URL: &u, Title: &t}
	m.sources = append(m.sources, s)
	return &s, nil
}

func (m *MemoryStore) IncrementSourceCitations(ctx context.Context, id int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sources {
		if m.sources[i].ID == id {
			m.sources[i].CitationCount++
			ts := at
			m.sources[i].LastCited = &ts
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) ListSources(ctx context.Context) ([]models.Source, error) {
	m.mu.RLock()
	out := append([]models.Source{}, m.sources...)
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CitationCount > out[j].CitationCount })
	return out, nil
}

func (m *MemoryStore) CreateSnapshot(ctx context.Context, snapshot *models.AnalyticsSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snapshot.Date.IsZero() {
		snapshot.Date = time.Now().UTC()
	}
	snapshot.ID = m.id()
	m.snapshots = append(m.snapshots, *snapshot)
	return nil
}

func (m *MemoryStore) LatestSnapshot(ctx context.Context) (*models.AnalyticsSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.snapshots) == 0 {
		return nil, ErrNotFound
	}
	latest := m.snapshots[0]
	for _, s := range m.snapshots[1:] {
		if !s.Date.Before(latest.Date) {
			latest = s
		}
	}
	return &latest, nil
}

// Snapshots returns every snapshot in creation order.
func (m *MemoryStore) Snapshots() []models.AnalyticsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.AnalyticsSnapshot{}, m.snapshots...)
}

func (m *MemoryStore) TopicAnalysis(ctx context.Context) ([]models.TopicAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.TopicAnalysis, 0, len(m.topics))
	for _, t := range m.topics {
		a := models.TopicAnalysis{TopicID: t.ID, TopicName: t.Name}
		promptIDs := map[int]bool{}
		for _, p := range m.prompts {
			if p.TopicID != nil && *p.TopicID == t.ID {
				promptIDs[p.ID] = true
				a.TotalPrompts++
			}
		}
		for _, r := range m.responses {
			if promptIDs[r.PromptID] && r.BrandMentioned {
				a.BrandMentions++
			}
		}
		a.MentionRate = MentionRate(a.BrandMentions, a.TotalPrompts)
		out = append(out, a)
	}
	return out, nil
}

func (m *MemoryStore) Counts(ctx context.Context) (*models.Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := &models.Counts{
		TotalResponses:   len(m.responses),
		TotalPrompts:     len(m.prompts),
		TotalTopics:      len(m.topics),
		TotalCompetitors: len(m.competitors),
		TotalSources:     len(m.sources),
	}
	for _, r := range m.responses {
		if r.BrandMentioned {
			c.BrandMentions++
		}
	}
	c.BrandMentionRate = MentionRate(c.BrandMentions, c.TotalResponses)
	return c, nil
}

func (m *MemoryStore) Clear(ctx context.Context, scope ClearScope) error {
	if !scope.Valid() {
		return fmt.Errorf("unknown clear scope %q", scope)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.responses = nil
	if scope == ClearPrompts || scope == ClearAll {
		m.prompts = nil
	}
	if scope == ClearAll {
		m.competitors = nil
	}
	return nil
}
