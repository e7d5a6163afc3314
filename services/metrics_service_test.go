package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/AI-Template-SDK/senso-visibility/internal/models"
	"github.com/AI-Template-SDK/senso-visibility/internal/repository"
	"github.com/AI-Template-SDK/senso-visibility/services"
)

// seedStore records two responses for one topic, one of which mentions
// the brand, and a competitor cited in both.
func seedStore(t *testing.T) *repository.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()

	description := "Customer tools"
	topic, err := store.GetOrCreateTopic(ctx, "CRM", &description)
	if err != nil {
		t.Fatal(err)
	}
	competitor, err := store.GetOrCreateCompetitor(ctx, "Acme CRM", "CRM")
	if err != nil {
		t.Fatal(err)
	}
	source, err := store.GetOrCreateSource(ctx, "g2.com", "https://www.g2.com/categories/crm", "G2")
	if err != nil {
		t.Fatal(err)
	}

	for i, mentioned := range []bool{true, false} {
		prompt, err := store.CreatePrompt(ctx, []string{"Best CRM?", "Cheapest CRM?"}[i], &topic.ID)
		if err != nil {
			t.Fatal(err)
		}
		if err := store.CreateResponse(ctx, &models.Response{
			PromptID:             prompt.ID,
			Text:                 "answer",
			BrandMentioned:       mentioned,
			CompetitorsMentioned: []string{"Acme CRM"},
			Sources:              []string{},
		}); err != nil {
			t.Fatal(err)
		}
		if err := store.IncrementCompetitorMentions(ctx, competitor.ID, time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.IncrementSourceCitations(ctx, source.ID, time.Now()); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestOverviewMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		metrics := services.NewMetricsService(repository.NewMemoryStore())
		got, err := metrics.OverviewMetrics(ctx)
		if err != nil {
			t.Fatalf("OverviewMetrics() error = %v", err)
		}
		want := models.OverviewMetrics{TopCompetitor: "N/A"}
		if *got != want {
			t.Errorf("OverviewMetrics() = %+v, want %+v", *got, want)
		}
	})

	t.Run("seeded store", func(t *testing.T) {
		metrics := services.NewMetricsService(seedStore(t))
		got, err := metrics.OverviewMetrics(ctx)
		if err != nil {
			t.Fatalf("OverviewMetrics() error = %v", err)
		}
		want := models.OverviewMetrics{
			BrandMentionRate: 50,
			TotalPrompts:     2,
			TopCompetitor:    "Acme CRM",
			TotalSources:     1,
			TotalDomains:     1,
		}
		if *got != want {
			t.Errorf("OverviewMetrics() = %+v, want %+v", *got, want)
		}
	})
}

func TestAnalysisViews(t *testing.T) {
	ctx := context.Background()
	metrics := services.NewMetricsService(seedStore(t))

	topics, err := metrics.TopicAnalysis(ctx)
	if err != nil {
		t.Fatalf("TopicAnalysis() error = %v", err)
	}
	if len(topics) != 1 || topics[0].TopicName != "CRM" || topics[0].TotalPrompts != 2 || topics[0].BrandMentions != 1 || topics[0].MentionRate != 50 {
		t.Errorf("unexpected topic analysis: %+v", topics)
	}

	competitors, err := metrics.CompetitorAnalysis(ctx)
	if err != nil {
		t.Fatalf("CompetitorAnalysis() error = %v", err)
	}
	if len(competitors) != 1 || competitors[0].MentionCount != 2 || competitors[0].MentionRate != 100 || competitors[0].ChangeRate != 0 {
		t.Errorf("unexpected competitor analysis: %+v", competitors)
	}

	sources, err := metrics.SourceAnalysis(ctx)
	if err != nil {
		t.Fatalf("SourceAnalysis() error = %v", err)
	}
	if len(sources) != 1 || sources[0].Domain != "g2.com" || sources[0].CitationCount != 1 {
		t.Fatalf("unexpected source analysis: %+v", sources)
	}
	if len(sources[0].URLs) != 1 || sources[0].URLs[0] != "https://www.g2.com/categories/crm" {
		t.Errorf("unexpected source urls: %v", sources[0].URLs)
	}
}

func TestSnapshotAndExport(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)
	metrics := services.NewMetricsService(store)

	bundle, err := metrics.Export(ctx)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if bundle.Analytics != nil {
		t.Error("expected no analytics before the first snapshot")
	}

	snapshot, err := metrics.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snapshot.TotalPrompts != 2 || snapshot.BrandMentionRate != 50 || snapshot.TotalDomains != 1 {
		t.Errorf("unexpected snapshot: %+v", snapshot)
	}
	if snapshot.TopCompetitor == nil || *snapshot.TopCompetitor != "Acme CRM" {
		t.Errorf("unexpected top competitor: %v", snapshot.TopCompetitor)
	}
	if err := store.CreateSnapshot(ctx, snapshot); err != nil {
		t.Fatal(err)
	}

	bundle, err = metrics.Export(ctx)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if bundle.Analytics == nil || bundle.Analytics.TotalPrompts != 2 {
		t.Errorf("expected the stored snapshot in the export, got %+v", bundle.Analytics)
	}
	if len(bundle.Topics) != 1 || len(bundle.Prompts) != 2 || len(bundle.Responses) != 2 || len(bundle.Competitors) != 1 || len(bundle.Sources) != 1 {
		t.Errorf("export is missing rows: %+v", bundle)
	}
	if bundle.Timestamp.IsZero() {
		t.Error("export timestamp not set")
	}
}
