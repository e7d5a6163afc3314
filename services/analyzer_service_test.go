package services_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/AI-Template-SDK/senso-visibility/internal/models"
	"github.com/AI-Template-SDK/senso-visibility/internal/providers/testutil"
	"github.com/AI-Template-SDK/senso-visibility/internal/repository"
	"github.com/AI-Template-SDK/senso-visibility/services"
)

func newAnalyzer(store repository.Store, provider services.AIProvider, opts ...services.AnalyzerOption) services.AnalyzerService {
	cfg := testutil.SampleConfig()
	cfg.Analysis.PromptDelay = 0
	site := services.NewSiteService(&testutil.FakeFetcher{}, provider, zerolog.Nop())
	opts = append([]services.AnalyzerOption{services.WithCategorizeInterval(0)}, opts...)
	return services.NewAnalyzerService(cfg, store, provider, site, services.NewMetricsService(store), opts...)
}

func waitRun(t *testing.T, h *services.RunHandle) models.Progress {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := h.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run did not finish, last progress %+v", p)
	}
	return p
}

func supplied(texts ...string) []models.SuppliedPrompt {
	out := make([]models.SuppliedPrompt, len(texts))
	for i, text := range texts {
		out[i] = models.SuppliedPrompt{Text: text}
	}
	return out
}

// statusRecorder collects every progress update
type statusRecorder struct {
	mu      sync.Mutex
	updates []models.Progress
}

func (r *statusRecorder) sink(p models.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, p)
}

func (r *statusRecorder) statuses() []models.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RunStatus
	for _, u := range r.updates {
		if len(out) == 0 || out[len(out)-1] != u.Status {
			out = append(out, u.Status)
		}
	}
	return out
}

func TestRunCRMScenario(t *testing.T) {
	store := repository.NewMemoryStore()
	provider := testutil.NewFakeProvider()
	provider.Categories = map[string]string{"Acme CRM": "CRM"}
	provider.AnswerFunc = func(ctx context.Context, brandName, promptText string) (*models.AnalysisResult, error) {
		return &models.AnalysisResult{
			Response:       testutil.SampleAnswer(),
			BrandMentioned: promptText == "Best CRM for startups?",
			Competitors:    []string{"Acme CRM"},
			Sources:        []string{},
			InputTokens:    100,
			OutputTokens:   50,
			Cost:           0.002,
		}, nil
	}
	recorder := &statusRecorder{}
	analyzer := newAnalyzer(store, provider, services.WithProgressSink(recorder.sink))

	h, err := analyzer.StartRun(context.Background(), models.RunRequest{
		BrandName:       "Acme",
		SuppliedPrompts: supplied(testutil.SamplePrompts()...),
	})
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	p := waitRun(t, h)

	if p.Status != models.StatusComplete || p.Progress != 100 || p.CompletedPrompts != 2 || p.TotalPrompts != 2 {
		t.Errorf("unexpected final progress: %+v", p)
	}

	ctx := context.Background()
	responses, _ := store.ListResponses(ctx, 0)
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
	if responses[0].InputTokens != 100 || responses[0].Cost != 0.002 {
		t.Errorf("usage not stored: %+v", responses[0].Response)
	}

	competitors, _ := store.ListCompetitors(ctx)
	if len(competitors) != 1 || competitors[0].Name != "Acme CRM" || competitors[0].MentionCount != 2 {
		t.Fatalf("unexpected competitors: %+v", competitors)
	}
	if competitors[0].Category == nil || *competitors[0].Category != "CRM" {
		t.Errorf("expected category CRM, got %v", competitors[0].Category)
	}
	if len(provider.CategorizeCalls) != 1 {
		t.Errorf("expected one categorization, got %v", provider.CategorizeCalls)
	}

	docs, err := store.GetSourceByDomain(ctx, "docs.acme-crm.io")
	if err != nil {
		t.Fatalf("GetSourceByDomain() error = %v", err)
	}
	if docs.CitationCount != 2 {
		t.Errorf("expected one citation per prompt, got %d", docs.CitationCount)
	}

	snapshots := store.Snapshots()
	if len(snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snapshots))
	}
	snap := snapshots[0]
	if snap.TotalPrompts != 2 || snap.BrandMentionRate != 50 || snap.TopCompetitor == nil || *snap.TopCompetitor != "Acme CRM" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	want := []models.RunStatus{models.StatusInitializing, models.StatusTestingPrompts, models.StatusAnalyzing, models.StatusComplete}
	if got := recorder.statuses(); strings.Join(statusStrings(got), ",") != strings.Join(statusStrings(want), ",") {
		t.Errorf("status sequence = %v, want %v", got, want)
	}
}

func statusStrings(in []models.RunStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func TestRunWithNoPrompts(t *testing.T) {
	store := repository.NewMemoryStore()
	analyzer := newAnalyzer(store, testutil.NewFakeProvider())

	h, err := analyzer.StartRun(context.Background(), models.RunRequest{BrandName: "Acme", UseExistingPrompts: true})
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	p := waitRun(t, h)

	if p.Status != models.StatusComplete || p.TotalPrompts != 0 {
		t.Errorf("unexpected progress: %+v", p)
	}
	snapshots := store.Snapshots()
	if len(snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snapshots))
	}
	s := snapshots[0]
	if s.TotalPrompts != 0 || s.BrandMentionRate != 0 || s.TopCompetitor != nil || s.TotalSources != 0 || s.TotalDomains != 0 {
		t.Errorf("expected an all-zero snapshot, got %+v", s)
	}
}

func TestRunCitesDomainOncePerPrompt(t *testing.T) {
	store := repository.NewMemoryStore()
	provider := testutil.NewFakeProvider()
	provider.AnswerFunc = func(ctx context.Context, brandName, promptText string) (*models.AnalysisResult, error) {
		return &models.AnalysisResult{
			Response:    "Read https://docs.acme-crm.io/start and https://docs.acme-crm.io/api/auth",
			Competitors: []string{},
			Sources:     []string{"https://docs.acme-crm.io/start"},
		}, nil
	}
	analyzer := newAnalyzer(store, provider)

	h, _ := analyzer.StartRun(context.Background(), models.RunRequest{BrandName: "Acme", SuppliedPrompts: supplied("How do I authenticate?")})
	waitRun(t, h)

	sources, _ := store.ListSources(context.Background())
	if len(sources) != 1 {
		t.Fatalf("expected 1 source, got %+v", sources)
	}
	if sources[0].CitationCount != 1 {
		t.Errorf("expected citation count 1, got %d", sources[0].CitationCount)
	}
	if sources[0].URL == nil || *sources[0].URL != "https://docs.acme-crm.io/api/auth" {
		t.Errorf("expected the documentation URL as primary, got %v", sources[0].URL)
	}
}

func TestRunCancelAfterK(t *testing.T) {
	const k = 2
	store := repository.NewMemoryStore()
	provider := testutil.NewFakeProvider()

	var analyzer services.AnalyzerService
	analyzer = newAnalyzer(store, provider, services.WithProgressSink(func(p models.Progress) {
		if p.Status == models.StatusTestingPrompts && p.CompletedPrompts == k {
			analyzer.CancelRun()
		}
	}))

	h, err := analyzer.StartRun(context.Background(), models.RunRequest{
		BrandName:       "Acme",
		SuppliedPrompts: supplied("one two three", "four five six", "seven eight nine", "ten eleven twelve"),
	})
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	p := waitRun(t, h)

	if p.Status != models.StatusError || p.Message != "Analysis cancelled by user" || p.Progress != 0 {
		t.Errorf("unexpected progress: %+v", p)
	}
	if p.CompletedPrompts != k {
		t.Errorf("completed = %d, want %d", p.CompletedPrompts, k)
	}
	prompts, _ := store.ListPrompts(context.Background())
	if len(prompts) != k {
		t.Errorf("expected %d persisted prompts, got %d", k, len(prompts))
	}
	if provider.AnswerCount() != k {
		t.Errorf("expected %d provider calls, got %d", k, provider.AnswerCount())
	}
	if len(store.Snapshots()) != 0 {
		t.Error("a cancelled run must not write a snapshot")
	}
	if analyzer.ActiveRun() != nil {
		t.Error("no run should be active after cancellation")
	}
}

func TestRunCancelDuringDelay(t *testing.T) {
	store := repository.NewMemoryStore()
	provider := testutil.NewFakeProvider()
	cfg := testutil.SampleConfig()
	cfg.Analysis.PromptDelay = time.Hour

	var analyzer services.AnalyzerService
	analyzer = services.NewAnalyzerService(cfg, store, provider, services.NewSiteService(nil, provider, zerolog.Nop()),
		services.NewMetricsService(store),
		services.WithProgressSink(func(p models.Progress) {
			if p.CompletedPrompts == 1 && p.Status == models.StatusTestingPrompts {
				go analyzer.CancelRun()
			}
		}))

	h, _ := analyzer.StartRun(context.Background(), models.RunRequest{BrandName: "Acme", SuppliedPrompts: supplied("one two three", "four five six")})
	p := waitRun(t, h)
	if p.Status != models.StatusError || p.CompletedPrompts != 1 {
		t.Errorf("expected cancellation during the delay, got %+v", p)
	}
}

func TestRunFallbackAnalysis(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	if _, err := store.GetOrCreateCompetitor(ctx, "HubSpot", "CRM"); err != nil {
		t.Fatal(err)
	}

	provider := testutil.NewFakeProvider()
	provider.AnswerFunc = func(ctx context.Context, brandName, promptText string) (*models.AnalysisResult, error) {
		return nil, testutil.ErrProviderDown
	}
	observer := &fakeObserver{}
	analyzer := newAnalyzer(store, provider,
		services.WithRandom(func() float64 { return 0.1 }),
		services.WithRunObserver(observer),
	)

	h, _ := analyzer.StartRun(ctx, models.RunRequest{BrandName: "Acme", SuppliedPrompts: supplied("Is HubSpot good for startups?")})
	p := waitRun(t, h)
	if p.Status != models.StatusComplete {
		t.Fatalf("fallback must not fail the run: %+v", p)
	}

	responses, _ := store.ListResponses(ctx, 0)
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	r := responses[0]
	if !r.BrandMentioned {
		t.Error("expected a brand mention below the fallback probability")
	}
	want := "Based on your is hubspot good for startups?, I'd recommend considering  for your deployment needs. There are also other good options for simple deployments."
	if r.Text != want {
		t.Errorf("fallback text = %q, want %q", r.Text, want)
	}
	if len(r.Sources) != 8 {
		t.Errorf("expected 8 fallback sources, got %v", r.Sources)
	}

	sources, _ := store.ListSources(ctx)
	if len(sources) != 8 {
		t.Errorf("expected 8 source domains, got %d", len(sources))
	}
	// The run wiped the seeded competitor along with the old data
	competitors, _ := store.ListCompetitors(ctx)
	if len(competitors) != 0 {
		t.Errorf("expected competitors to be cleared, got %+v", competitors)
	}

	if observer.started != 1 || observer.fallbacks != 1 || observer.finished != models.StatusComplete {
		t.Errorf("unexpected observer state: %+v", observer)
	}
}

func TestRunFallbackUsesKnownCompetitors(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	topic, _ := store.GetOrCreateTopic(ctx, "CRM", nil)
	existing, err := store.CreatePrompt(ctx, "Is HubSpot good for startups?", &topic.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetOrCreateCompetitor(ctx, "HubSpot", "CRM"); err != nil {
		t.Fatal(err)
	}

	provider := testutil.NewFakeProvider()
	provider.AnswerFunc = func(ctx context.Context, brandName, promptText string) (*models.AnalysisResult, error) {
		return nil, testutil.ErrProviderDown
	}
	analyzer := newAnalyzer(store, provider, services.WithRandom(func() float64 { return 0.9 }))

	h, _ := analyzer.StartRun(ctx, models.RunRequest{BrandName: "Acme", UseExistingPrompts: true})
	waitRun(t, h)

	competitors, _ := store.ListCompetitors(ctx)
	if len(competitors) != 1 || competitors[0].MentionCount != 1 {
		t.Fatalf("expected HubSpot mentioned once, got %+v", competitors)
	}
	responses, _ := store.ListResponses(ctx, 0)
	if responses[0].BrandMentioned {
		t.Error("expected no brand mention above the fallback probability")
	}
	if len(provider.CategorizeCalls) != 0 {
		t.Errorf("known competitors must not be recategorized: %v", provider.CategorizeCalls)
	}
	prompts, _ := store.ListPrompts(ctx)
	if len(prompts) != 1 {
		t.Errorf("existing prompts must not be re-inserted, got %d", len(prompts))
	}
	if responses[0].PromptID != existing.ID {
		t.Errorf("response should point at the reused prompt %d, got %d", existing.ID, responses[0].PromptID)
	}
}

func TestRunGeneratesPromptsFromSite(t *testing.T) {
	store := repository.NewMemoryStore()
	provider := testutil.NewFakeProvider()
	provider.Topics = []models.TopicSeed{
		{Name: "Pipeline Management", Description: "Tracking deals"},
		{Name: "CRM Pricing", Description: "Plans and costs"},
		{Name: "Integrations", Description: "Connecting tools"},
	}
	recorder := &statusRecorder{}
	analyzer := newAnalyzer(store, provider, services.WithProgressSink(recorder.sink))

	h, _ := analyzer.StartRun(context.Background(), models.RunRequest{
		BrandName: "Acme",
		BrandURL:  "https://acme-crm.io",
		Settings:  &models.RunSettings{PromptsPerTopic: 2, NumberOfTopics: 2},
	})
	p := waitRun(t, h)

	if p.Status != models.StatusComplete || p.TotalPrompts != 4 {
		t.Fatalf("unexpected progress: %+v", p)
	}
	topics, _ := store.ListTopics(context.Background())
	if len(topics) != 2 {
		t.Errorf("expected 2 topics, got %+v", topics)
	}
	analysis, _ := store.TopicAnalysis(context.Background())
	for _, a := range analysis {
		if a.TotalPrompts != 2 {
			t.Errorf("topic %s has %d prompts, want 2", a.TopicName, a.TotalPrompts)
		}
	}

	statuses := recorder.statuses()
	if len(statuses) < 3 || statuses[1] != models.StatusScraping || statuses[2] != models.StatusGeneratingPrompts {
		t.Errorf("unexpected status sequence: %v", statuses)
	}
}

func TestStartRunGuardsConcurrentRuns(t *testing.T) {
	store := repository.NewMemoryStore()
	provider := testutil.NewFakeProvider()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	provider.AnswerFunc = func(ctx context.Context, brandName, promptText string) (*models.AnalysisResult, error) {
		once.Do(func() { close(entered) })
		<-release
		return &models.AnalysisResult{Response: "ok", Competitors: []string{}, Sources: []string{}}, nil
	}
	analyzer := newAnalyzer(store, provider)
	ctx := context.Background()

	first, err := analyzer.StartRun(ctx, models.RunRequest{BrandName: "Acme", SuppliedPrompts: supplied("one two three")})
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	<-entered

	second, err := analyzer.StartRun(ctx, models.RunRequest{BrandName: "Other", SuppliedPrompts: supplied("four five six")})
	if !errors.Is(err, services.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if second == nil || second.ID != first.ID {
		t.Errorf("expected the active handle back")
	}
	if analyzer.ActiveRun() == nil || analyzer.ActiveRun().ID != first.ID {
		t.Error("ActiveRun should report the first run")
	}

	close(release)
	waitRun(t, first)

	third, err := analyzer.StartRun(ctx, models.RunRequest{BrandName: "Acme", SuppliedPrompts: supplied("seven eight nine")})
	if err != nil {
		t.Fatalf("a new run should start once the first finished: %v", err)
	}
	waitRun(t, third)
	if provider.AnswerCount() != 2 {
		t.Errorf("expected 2 answered prompts, got %d", provider.AnswerCount())
	}
}

func TestStartRunValidation(t *testing.T) {
	analyzer := newAnalyzer(repository.NewMemoryStore(), testutil.NewFakeProvider())
	if _, err := analyzer.StartRun(context.Background(), models.RunRequest{BrandName: "   "}); !errors.Is(err, services.ErrBrandRequired) {
		t.Errorf("expected ErrBrandRequired, got %v", err)
	}
	if analyzer.CancelRun() {
		t.Error("CancelRun should report false with nothing running")
	}
	if p := analyzer.Progress(); p.Status != models.StatusIdle {
		t.Errorf("expected idle progress, got %+v", p)
	}
}

// failingStore fails every response insert
type failingStore struct {
	*repository.MemoryStore
}

func (s failingStore) CreateResponse(ctx context.Context, response *models.Response) error {
	return errors.New("disk full")
}

type fakeReporter struct {
	mu    sync.Mutex
	calls []string
}

func (r *fakeReporter) ReportRunFailure(ctx context.Context, runID, brandName string, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, brandName+": "+err.Error())
	return nil
}

func TestRunPersistenceFailureAborts(t *testing.T) {
	store := failingStore{repository.NewMemoryStore()}
	reporter := &fakeReporter{}
	analyzer := newAnalyzer(store, testutil.NewFakeProvider(), services.WithFailureReporter(reporter))

	h, _ := analyzer.StartRun(context.Background(), models.RunRequest{BrandName: "Acme", SuppliedPrompts: supplied("one two three", "four five six")})
	p := waitRun(t, h)

	if p.Status != models.StatusError || !strings.HasPrefix(p.Message, "Analysis failed: ") || p.Progress != 0 {
		t.Errorf("unexpected progress: %+v", p)
	}
	if h.Err() == nil {
		t.Error("handle should carry the failure")
	}
	if len(reporter.calls) != 1 || !strings.Contains(reporter.calls[0], "disk full") {
		t.Errorf("expected the failure to be reported, got %v", reporter.calls)
	}
	if len(store.Snapshots()) != 0 {
		t.Error("a failed run must not write a snapshot")
	}
}

type fakeObserver struct {
	mu        sync.Mutex
	started   int
	processed int
	fallbacks int
	finished  models.RunStatus
}

func (o *fakeObserver) RunStarted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *fakeObserver) PromptProcessed(fallback bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.processed++
	if fallback {
		o.fallbacks++
	}
}

func (o *fakeObserver) RunFinished(status models.RunStatus, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = status
}
