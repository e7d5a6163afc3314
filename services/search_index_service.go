// services/search_index_service.go
package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"

	"github.com/AI-Template-SDK/senso-visibility/internal/models"
)

const (
	ResponsesCollection = "brand_responses"
	// EmbeddingSize matches text-embedding-3-small
	EmbeddingSize = 1536

	defaultSearchLimit = 10
	maxSnippetChars    = 200
)

type searchIndexService struct {
	typesenseClient *typesense.Client
	qdrantClient    *qdrant.Client
	embedder        Embedder
	logger          zerolog.Logger
}

// NewSearchIndexService indexes responses in Typesense and, when both a
// Qdrant client and an embedder are given, in Qdrant as vectors.
func NewSearchIndexService(typesenseClient *typesense.Client, qdrantClient *qdrant.Client, embedder Embedder, logger zerolog.Logger) SearchIndexService {
	return &searchIndexService{
		typesenseClient: typesenseClient,
		qdrantClient:    qdrantClient,
		embedder:        embedder,
		logger:          logger.With().Str("component", "search_index").Logger(),
	}
}

func (s *searchIndexService) vectorsEnabled() bool {
	return s.qdrantClient != nil && s.embedder != nil
}

func alreadyExists(err error) bool {
	return err != nil && strings.Contains(err.Error(), "already exists")
}

// EnsureCollections creates the Typesense and Qdrant collections, tolerating
// ones that already exist.
func (s *searchIndexService) EnsureCollections(ctx context.Context) error {
	facet := true
	sort := true
	defaultSortField := "created_at"
	schema := &api.CollectionSchema{
		Name: ResponsesCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "response_id", Type: "int32"},
			{Name: "prompt_text", Type: "string"},
			{Name: "text", Type: "string"},
			{Name: "brand_mentioned", Type: "bool", Facet: &facet},
			{Name: "competitors", Type: "string[]", Facet: &facet},
			{Name: "created_at", Type: "int64", Sort: &sort},
		},
		DefaultSortingField: &defaultSortField,
	}
	if _, err := s.typesenseClient.Collections().Create(ctx, schema); err != nil && !alreadyExists(err) {
		return fmt.Errorf("failed to create typesense collection: %w", err)
	}

	if s.vectorsEnabled() {
		err := s.qdrantClient.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: ResponsesCollection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     EmbeddingSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil && !alreadyExists(err) {
			return fmt.Errorf("failed to create qdrant collection: %w", err)
		}
	}
	s.logger.Info().Str("collection", ResponsesCollection).Bool("vectors", s.vectorsEnabled()).Msg("[EnsureCollections] search collections ready")
	return nil
}

// pointID derives a stable Qdrant id so re-indexing a response overwrites it.
func pointID(responseID int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("response-"+strconv.Itoa(responseID))).String()
}

func (s *searchIndexService) IndexResponse(ctx context.Context, response *models.Response, promptText string) error {
	competitors := []string(response.CompetitorsMentioned)
	if competitors == nil {
		competitors = []string{}
	}
	doc := map[string]interface{}{
		"id":              strconv.Itoa(response.ID),
		"response_id":     response.ID,
		"prompt_text":     promptText,
		"text":            response.Text,
		"brand_mentioned": response.BrandMentioned,
		"competitors":     competitors,
		"created_at":      response.CreatedAt.Unix(),
	}
	action := "upsert"
	results, err := s.typesenseClient.Collection(ResponsesCollection).Documents().Import(ctx, []interface{}{doc}, &api.ImportDocumentsParams{Action: &action})
	if err != nil {
		return fmt.Errorf("failed to index response %d in typesense: %w", response.ID, err)
	}
	for _, r := range results {
		if r != nil && !r.Success {
			return fmt.Errorf("typesense rejected response %d: %s", response.ID, r.Error)
		}
	}

	if !s.vectorsEnabled() {
		return nil
	}
	vector, err := s.embedder.Embed(ctx, promptText+"\n\n"+response.Text)
	if err != nil {
		return fmt.Errorf("failed to embed response %d: %w", response.ID, err)
	}
	wait := true
	_, err = s.qdrantClient.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: ResponsesCollection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(pointID(response.ID)),
			Vectors: qdrant.NewVectors(vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"response_id": response.ID,
				"prompt_text": promptText,
				"text":        snippet(response.Text),
			}),
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to index response %d in qdrant: %w", response.ID, err)
	}
	return nil
}

// Search returns keyword matches first, then any vector matches not
// already found.
func (s *searchIndexService) Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.SearchHit{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	hits, err := s.keywordSearch(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	if s.vectorsEnabled() && len(hits) < limit {
		vectorHits, err := s.vectorSearch(ctx, query, limit)
		if err != nil {
			s.logger.Warn().Err(err).Msg("[Search] vector search failed, returning keyword hits only")
		}
		seen := make(map[int]bool, len(hits))
		for _, h := range hits {
			seen[h.ResponseID] = true
		}
		for _, h := range vectorHits {
			if len(hits) == limit {
				break
			}
			if !seen[h.ResponseID] {
				seen[h.ResponseID] = true
				hits = append(hits, h)
			}
		}
	}
	return hits, nil
}

func (s *searchIndexService) keywordSearch(ctx context.Context, query string, limit int) ([]models.SearchHit, error) {
	queryBy := "text,prompt_text"
	params := &api.SearchCollectionParams{
		Q:       &query,
		QueryBy: &queryBy,
		PerPage: &limit,
	}
	result, err := s.typesenseClient.Collection(ResponsesCollection).Documents().Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search typesense: %w", err)
	}

	hits := []models.SearchHit{}
	if result.Hits == nil {
		return hits, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		doc := *hit.Document
		h := models.SearchHit{
			ResponseID: intField(doc["response_id"]),
			PromptText: stringField(doc["prompt_text"]),
			Snippet:    snippet(stringField(doc["text"])),
		}
		if hit.TextMatch != nil {
			h.Score = float64(*hit.TextMatch)
		}
		hits = append(hits, h)
	}
	return hits, nil
}

func (s *searchIndexService) vectorSearch(ctx context.Context, query string, limit int) ([]models.SearchHit, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	points, err := s.qdrantClient.Query(ctx, &qdrant.QueryPoints{
		CollectionName: ResponsesCollection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query qdrant: %w", err)
	}

	hits := make([]models.SearchHit, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		hits = append(hits, models.SearchHit{
			ResponseID: int(payload["response_id"].GetIntegerValue()),
			PromptText: payload["prompt_text"].GetStringValue(),
			Snippet:    payload["text"].GetStringValue(),
			Score:      float64(p.GetScore()),
		})
	}
	return hits, nil
}

// Reset drops and recreates the collections.
func (s *searchIndexService) Reset(ctx context.Context) error {
	if _, err := s.typesenseClient.Collection(ResponsesCollection).Delete(ctx); err != nil && !strings.Contains(err.Error(), "404") {
		return fmt.Errorf("failed to drop typesense collection: %w", err)
	}
	if s.vectorsEnabled() {
		if err := s.qdrantClient.DeleteCollection(ctx, ResponsesCollection); err != nil {
			return fmt.Errorf("failed to drop qdrant collection: %w", err)
		}
	}
	return s.EnsureCollections(ctx)
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= maxSnippetChars {
		return text
	}
	return string(r[:maxSnippetChars]) + "..."
}

func stringField(v interface{}) string {
	s, _ := v.(string)
	return s
}

// intField reads a JSON number, which decodes as float64.
func intField(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}
