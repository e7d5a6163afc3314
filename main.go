// main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/inngest/inngestgo"
	"github.com/joho/godotenv"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
	"github.com/typesense/typesense-go/v2/typesense"

	"github.com/AI-Template-SDK/senso-visibility/internal/api"
	"github.com/AI-Template-SDK/senso-visibility/internal/config"
	"github.com/AI-Template-SDK/senso-visibility/internal/logging"
	"github.com/AI-Template-SDK/senso-visibility/internal/models"
	"github.com/AI-Template-SDK/senso-visibility/internal/providers"
	"github.com/AI-Template-SDK/senso-visibility/internal/providers/common"
	"github.com/AI-Template-SDK/senso-visibility/internal/repository"
	"github.com/AI-Template-SDK/senso-visibility/internal/scraper"
	"github.com/AI-Template-SDK/senso-visibility/internal/telemetry"
	"github.com/AI-Template-SDK/senso-visibility/services"
	"github.com/AI-Template-SDK/senso-visibility/workflows"
)

func main() {
	envFile := ".env"
	if err := godotenv.Load(); err != nil {
		envFile = "dev.env"
		if err := godotenv.Load("dev.env"); err != nil {
			envFile = ""
		}
	}

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if envFile != "" {
		logger.Info().Str("file", envFile).Msg("Loaded env file")
	} else {
		logger.Info().Msg("Note: No .env or dev.env file loaded")
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("port", cfg.Port).
		Str("db_host", cfg.Database.Host).
		Str("db_name", cfg.Database.Name).
		Str("llm_provider", cfg.LLMProvider).
		Msg("Configuration loaded")

	ctx := context.Background()
	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	if cfg.Environment == "development" || cfg.Environment == "" {
		os.Unsetenv("INNGEST_SIGNING_KEY")
		cfg.InngestSigningKey = ""
		logger.Info().Msg("Running in development mode - signing key verification disabled")
	}

	metrics := telemetry.New()
	costService := services.NewCostService()
	fetcher := scraper.New(cfg.Analysis.ScrapeTimeout, scraper.WithLogger(logger))

	provider, err := providers.NewProvider(cfg, costService, fetcher, logger,
		common.WithRetryObserver(metrics.ObserveRetry),
		common.WithCallObserver(metrics.ObserveCall),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create AI provider")
	}
	logger.Info().Str("provider", provider.GetProviderName()).Bool("credentials", provider.HasCredentials()).Msg("AI provider initialized")

	index := newSearchIndex(ctx, cfg, logger)

	slack := workflows.NewSlackReporter(cfg.SlackWebhookURL)
	siteService := services.NewSiteService(fetcher, provider, logger)
	metricsService := services.NewMetricsService(store)

	analyzerOpts := []services.AnalyzerOption{
		services.WithAnalyzerLogger(logger),
		services.WithRunObserver(metrics),
		services.WithFailureReporter(slack),
		services.WithProgressSink(func(p models.Progress) {
			logger.Debug().Str("run_id", p.RunID).Str("status", string(p.Status)).Int("progress", p.Progress).Msg(p.Message)
		}),
	}
	if index != nil {
		analyzerOpts = append(analyzerOpts, services.WithSearchIndex(index))
	}
	analyzer := services.NewAnalyzerService(cfg, store, provider, siteService, metricsService, analyzerOpts...)
	planner := services.NewPlannerService(cfg, store, provider, siteService, analyzer, index, logger)

	client, err := inngestgo.NewClient(
		inngestgo.ClientOpts{
			AppID:    "senso-visibility",
			EventKey: inngestgo.StrPtr(cfg.InngestEventKey),
			Env:      inngestgo.StrPtr(cfg.Environment),
		},
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Inngest client")
	}

	logger.Info().Msg("Initializing and registering workflows...")
	analysisProcessor := workflows.NewAnalysisProcessor(analyzer, store, slack, logger)
	analysisProcessor.SetClient(client)
	analysisProcessor.ProcessAnalysisRequest()

	scheduledProcessor := workflows.NewScheduledProcessor(cfg.Schedule, store, logger)
	scheduledProcessor.SetClient(client)
	scheduledProcessor.DailyAnalysis()

	monitoringProcessor := workflows.NewMonitoringProcessor(metricsService, slack, logger)
	monitoringProcessor.SetClient(client)
	monitoringProcessor.WeeklyVisibilityReport()
	logger.Info().Bool("schedule_enabled", scheduledProcessor.Enabled()).Msg("All processors initialized and functions registered")

	deps := api.Deps{
		Config:    cfg,
		Store:     store,
		Analyzer:  analyzer,
		Analytics: metricsService,
		Planner:   planner,
		Provider:  provider,
		Index:     index,
		Metrics:   metrics.Handler(),
		Inngest:   client.Serve(),
		Logger:    logger,
	}
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info().Str("port", cfg.Port).Msg("Starting brand visibility service")
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("Server stopped")
	}
}

// openStore connects to Postgres and applies the schema. Development
// falls back to an in-memory store when the database is unreachable.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.Store, func()) {
	pg, err := repository.Connect(ctx, cfg.Database)
	if err != nil {
		if cfg.Environment != "development" && cfg.Environment != "" {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		logger.Warn().Err(err).Msg("Database unavailable, using in-memory store")
		return repository.NewMemoryStore(), func() {}
	}
	if err := pg.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate database")
	}
	logger.Info().Msg("Successfully connected to database")
	return pg, func() { pg.Close() }
}

// newSearchIndex returns nil unless SEARCH_INDEX_ENABLED is set. Vectors are
// only indexed when an embedder is available.
func newSearchIndex(ctx context.Context, cfg *config.Config, logger zerolog.Logger) services.SearchIndexService {
	if !cfg.SearchIndexEnabled {
		return nil
	}

	typesenseClient := typesense.NewClient(
		typesense.WithServer(fmt.Sprintf("http://%s:%d", cfg.Typesense.Host, cfg.Typesense.Port)),
		typesense.WithAPIKey(cfg.Typesense.APIKey),
	)

	var qdrantClient *qdrant.Client
	embedder := providers.NewEmbedder(cfg, logger)
	if embedder != nil {
		client, err := qdrant.NewClient(&qdrant.Config{
			Host: cfg.Qdrant.Host,
			Port: cfg.Qdrant.Port,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to create Qdrant client, vector search disabled")
			embedder = nil
		} else {
			qdrantClient = client
		}
	}

	index := services.NewSearchIndexService(typesenseClient, qdrantClient, embedder, logger)
	if err := index.EnsureCollections(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to prepare search collections, response search disabled")
		return nil
	}
	logger.Info().Bool("vectors", qdrantClient != nil).Msg("Response search index is ready")
	return index
}
