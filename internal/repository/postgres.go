package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/AI-Template-SDK/senso-visibility/internal/config"
	"github.com/AI-Template-SDK/senso-visibility/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore implements Store on Postgres through sqlx.
type PostgresStore struct {
	db *sqlx.DB
}

// Connect opens a pooled connection and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewPostgresStore(db), nil
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates missing tables and indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Topics

func (s *PostgresStore) GetOrCreateTopic(ctx context.Context, name string, description *string) (*models.Topic, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO topics (name, description) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		name, description,
	); err != nil {
		return nil, fmt.Errorf("failed to insert topic %q: %w", name, err)
	}

	var topic models.Topic
	if err := s.db.GetContext(ctx, &topic, `SELECT id, name, description, created_at FROM topics WHERE name = $1`, name); err != nil {
		return nil, fmt.Errorf("failed to load topic %q: %w", name, notFound(err))
	}
	return &topic, nil
}

func (s *PostgresStore) GetTopic(ctx context.Context, id int) (*models.Topic, error) {
	var topic models.Topic
	if err := s.db.GetContext(ctx, &topic, `SELECT id, name, description, created_at FROM topics WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &topic, nil
}

func (s *PostgresStore) ListTopics(ctx context.Context) ([]models.Topic, error) {
	topics := []models.Topic{}
	if err := s.db.SelectContext(ctx, &topics, `SELECT id, name, description, created_at FROM topics ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	return topics, nil
}

// Prompts

func (s *PostgresStore) CreatePrompt(ctx context.Context, text string, topicID *int) (*models.Prompt, error) {
	var prompt models.Prompt
	err := s.db.GetContext(ctx, &prompt,
		`INSERT INTO prompts (text, topic_id) VALUES ($1, $2) RETURNING id, text, topic_id, created_at`,
		text, topicID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt: %w", err)
	}
	return &prompt, nil
}

func (s *PostgresStore) ListPrompts(ctx context.Context) ([]models.Prompt, error) {
	prompts := []models.Prompt{}
	if err := s.db.SelectContext(ctx, &prompts, `SELECT id, text, topic_id, created_at FROM prompts ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	return prompts, nil
}

type topicColumns struct {
	TopicRowID       sql.NullInt64  `db:"t_id"`
	TopicName        sql.NullString `db:"t_name"`
	TopicDescription *string        `db:"t_description"`
	TopicCreatedAt   sql.NullTime   `db:"t_created_at"`
}

func (c topicColumns) topic() *models.Topic {
	if !c.TopicRowID.Valid {
		return nil
	}
	return &models.Topic{
		ID:          int(c.TopicRowID.Int64),
		Name:        c.TopicName.String,
		Description: c.TopicDescription,
		CreatedAt:   c.TopicCreatedAt.Time,
	}
}

type promptRow struct {
	models.Prompt
	topicColumns
}

func (s *PostgresStore) ListPromptsWithTopics(ctx context.Context) ([]models.PromptWithTopic, error) {
	var rows []promptRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT p.id, p.text, p.topic_id, p.created_at,
		       t.id AS t_id, t.name AS t_name, t.description AS t_description, t.created_at AS t_created_at
		FROM prompts p
		LEFT JOIN topics t ON t.id = p.topic_id
		ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts with topics: %w", err)
	}

	out := make([]models.PromptWithTopic, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.PromptWithTopic{Prompt: r.Prompt, Topic: r.topic()})
	}
	return out, nil
}

// Responses

func (s *PostgresStore) CreateResponse(ctx context.Context, response *models.Response) error {
	if response.CompetitorsMentioned == nil {
		response.CompetitorsMentioned = []string{}
	}
	if response.Sources == nil {
		response.Sources = []string{}
	}

	rows, err := s.db.NamedQueryContext(ctx, `
		INSERT INTO responses (prompt_id, text, brand_mentioned, competitors_mentioned, sources, input_tokens, output_tokens, cost)
		VALUES (:prompt_id, :text, :brand_mentioned, :competitors_mentioned, :sources, :input_tokens, :output_tokens, :cost)
		RETURNING id, created_at`, response)
	if err != nil {
		return fmt.Errorf("failed to create response: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&response.ID, &response.CreatedAt); err != nil {
			return fmt.Errorf("failed to read response id: %w", err)
		}
	}
	return rows.Err()
}

type responseRow struct {
	models.Response
	PromptText      string    `db:"p_text"`
	PromptTopicID   *int      `db:"p_topic_id"`
	PromptCreatedAt time.Time `db:"p_created_at"`
	topicColumns
}

func (r responseRow) joined() models.ResponseWithPrompt {
	return models.ResponseWithPrompt{
		Response: r.Response,
		Prompt: models.PromptWithTopic{
			Prompt: models.Prompt{
				ID:        r.PromptID,
				Text:      r.PromptText,
				TopicID:   r.PromptTopicID,
				CreatedAt: r.PromptCreatedAt,
			},
			Topic: r.topic(),
		},
	}
}

const responseSelect = `
	SELECT r.id, r.prompt_id, r.text, r.brand_mentioned, r.competitors_mentioned, r.sources,
	       r.input_tokens, r.output_tokens, r.cost, r.created_at,
	       p.text AS p_text, p.topic_id AS p_topic_id, p.created_at AS p_created_at,
	       t.id AS t_id, t.name AS t_name, t.description AS t_description, t.created_at AS t_created_at
	FROM responses r
	JOIN prompts p ON p.id = r.prompt_id
	LEFT JOIN topics t ON t.id = p.topic_id`

func (s *PostgresStore) GetResponse(ctx context.Context, id int) (*models.ResponseWithPrompt, error) {
	var row responseRow
	if err := s.db.GetContext(ctx, &row, responseSelect+` WHERE r.id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	joined := row.joined()
	return &joined, nil
}

func (s *PostgresStore) ListResponses(ctx context.Context, limit int) ([]models.ResponseWithPrompt, error) {
	query := responseSelect + ` ORDER BY r.created_at DESC, r.id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	var rows []responseRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}

	out := make([]models.ResponseWithPrompt, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.joined())
	}
	return out, nil
}

// Competitors

const competitorColumns = `id, name, category, mention_count, last_mentioned`

func (s *PostgresStore) GetCompetitorByName(ctx context.Context, name string) (*models.Competitor, error) {
	var competitor models.Competitor
	if err := s.db.GetContext(ctx, &competitor, `SELECT `+competitorColumns+` FROM competitors WHERE name = $1`, name); err != nil {
		return nil, notFound(err)
	}
	return &competitor, nil
}

func (s *PostgresStore) GetOrCreateCompetitor(ctx context.Context, name, category string) (*models.Competitor, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO competitors (name, category) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		name, category,
	); err != nil {
		return nil, fmt.Errorf("failed to insert competitor %q: %w", name, err)
	}

	competitor, err := s.GetCompetitorByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load competitor %q: %w", name, err)
	}
	return competitor, nil
}

func (s *PostgresStore) IncrementCompetitorMentions(ctx context.Context, id int, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE competitors SET mention_count = mention_count + 1, last_mentioned = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to increment competitor %d: %w", id, err)
	}
	return requireRow(res)
}

func (s *PostgresStore) ListCompetitors(ctx context.Context) ([]models.Competitor, error) {
	competitors := []models.Competitor{}
	if err := s.db.SelectContext(ctx, &competitors,
		`SELECT `+competitorColumns+` FROM competitors ORDER BY mention_count DESC, id`); err != nil {
		return nil, fmt.Errorf("failed to list competitors: %w", err)
	}
	return competitors, nil
}

// Sources

const sourceColumns = `id, domain, url, title, citation_count, last_cited`

func (s *PostgresStore) GetSourceByDomain(ctx context.Context, domain string) (*models.Source, error) {
	var source models.Source
	if err := s.db.GetContext(ctx, &source, `SELECT `+sourceColumns+` FROM sources WHERE domain = $1`, domain); err != nil {
		return nil, notFound(err)
	}
	return &source, nil
}

func (s *PostgresStore) GetOrCreateSource(ctx context.Context, domain, url, title string) (*models.Source, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (domain, url, title) VALUES ($1, $2, $3) ON CONFLICT (domain) DO NOTHING`,
		domain, url, title,
	); err != nil {
		return nil, fmt.Errorf("failed to insert source %q: %w", domain, err)
	}

	source, err := s.GetSourceByDomain(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to load source %q: %w", domain, err)
	}
	return source, nil
}

func (s *PostgresStore) IncrementSourceCitations(ctx context.Context, id int, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sources SET citation_count = citation_count + 1, last_cited = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to increment source %d: %w", id, err)
	}
	return requireRow(res)
}

func (s *PostgresStore) ListSources(ctx context.Context) ([]models.Source, error) {
	sources := []models.Source{}
	if err := s.db.SelectContext(ctx, &sources,
		`SELECT `+sourceColumns+` FROM sources ORDER BY citation_count DESC, id`); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return sources, nil
}

// Analytics

func (s *PostgresStore) CreateSnapshot(ctx context.Context, snapshot *models.AnalyticsSnapshot) error {
	if snapshot.Date.IsZero() {
		snapshot.Date = time.Now().UTC()
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO analytics (date, total_prompts, brand_mention_rate, top_competitor, total_sources, total_domains)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		snapshot.Date, snapshot.TotalPrompts, snapshot.BrandMentionRate, snapshot.TopCompetitor,
		snapshot.TotalSources, snapshot.TotalDomains,
	).Scan(&snapshot.ID)
	if err != nil {
		return fmt.Errorf("failed to create analytics snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context) (*models.AnalyticsSnapshot, error) {
	var snapshot models.AnalyticsSnapshot
	err := s.db.GetContext(ctx, &snapshot, `
		SELECT id, date, total_prompts, brand_mention_rate, top_competitor, total_sources, total_domains
		FROM analytics
		ORDER BY date DESC, id DESC
		LIMIT 1`)
	if err != nil {
		return nil, notFound(err)
	}
	return &snapshot, nil
}

func (s *PostgresStore) TopicAnalysis(ctx context.Context) ([]models.TopicAnalysis, error) {
	var rows []struct {
		TopicID       int    `db:"topic_id"`
		TopicName     string `db:"topic_name"`
		TotalPrompts  int    `db:"total_prompts"`
		BrandMentions int    `db:"brand_mentions"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT t.id AS topic_id, t.name AS topic_name,
		       COUNT(DISTINCT p.id) AS total_prompts,
		       COUNT(r.id) FILTER (WHERE r.brand_mentioned) AS brand_mentions
		FROM topics t
		LEFT JOIN prompts p ON p.topic_id = t.id
		LEFT JOIN responses r ON r.prompt_id = p.id
		GROUP BY t.id, t.name
		ORDER BY t.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate topics: %w", err)
	}

	out := make([]models.TopicAnalysis, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.TopicAnalysis{
			TopicID:       r.TopicID,
			TopicName:     r.TopicName,
			TotalPrompts:  r.TotalPrompts,
			BrandMentions: r.BrandMentions,
			MentionRate:   MentionRate(r.BrandMentions, r.TotalPrompts),
		})
	}
	return out, nil
}

func (s *PostgresStore) Counts(ctx context.Context) (*models.Counts, error) {
	var counts models.Counts
	err := s.db.QueryRowxContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM responses),
			(SELECT COUNT(*) FROM prompts),
			(SELECT COUNT(*) FROM topics),
			(SELECT COUNT(*) FROM competitors),
			(SELECT COUNT(*) FROM sources),
			(SELECT COUNT(*) FROM responses WHERE brand_mentioned)`,
	).Scan(&counts.TotalResponses, &counts.TotalPrompts, &counts.TotalTopics,
		&counts.TotalCompetitors, &counts.TotalSources, &counts.BrandMentions)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}
	counts.BrandMentionRate = MentionRate(counts.BrandMentions, counts.TotalResponses)
	return &counts, nil
}

func (s *PostgresStore) Clear(ctx context.Context, scope ClearScope) error {
	var statements []string
	switch scope {
	case ClearResponses:
		statements = []string{`DELETE FROM responses`}
	case ClearPrompts:
		statements = []string{`DELETE FROM responses`, `DELETE FROM prompts`}
	case ClearAll:
		statements = []string{`DELETE FROM responses`, `DELETE FROM prompts`, `DELETE FROM competitors`}
	default:
		return fmt.Errorf("unknown clear scope %q", scope)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear %s: %w", scope, err)
		}
	}
	return tx.Commit()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
