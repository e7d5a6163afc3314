// workflows/analysis_processor.go
package workflows

import (
	"context"
	"errors"
	"fmt"

	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"
	"github.com/rs/zerolog"

	"github.com/AI-Template-SDK/senso-visibility/internal/models"
	"github.com/AI-Template-SDK/senso-visibility/internal/repository"
	"github.com/AI-Template-SDK/senso-visibility/services"
)

// AnalysisRequestedEvent is the name of the event that starts a run
const AnalysisRequestedEvent = "brand.analysis.requested"

type AnalysisProcessor struct {
	analyzer services.AnalyzerService
	store    repository.Store
	slack    *SlackReporter
	client   inngestgo.Client
	logger   zerolog.Logger
}

func NewAnalysisProcessor(analyzer services.AnalyzerService, store repository.Store, slack *SlackReporter, logger zerolog.Logger) *AnalysisProcessor {
	return &AnalysisProcessor{
		analyzer: analyzer,
		store:    store,
		slack:    slack,
		logger:   logger.With().Str("component", "analysis_processor").Logger(),
	}
}

func (p *AnalysisProcessor) SetClient(client inngestgo.Client) {
	p.client = client
}

// RunSummary is what the workflow records for a finished run
type RunSummary struct {
	RunID    string                    `json:"run_id"`
	Status   models.RunStatus          `json:"status"`
	Message  string                    `json:"message"`
	Prompts  int                       `json:"prompts"`
	Snapshot *models.AnalyticsSnapshot `json:"snapshot,omitempty"`
}

func (p *AnalysisProcessor) ProcessAnalysisRequest() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:      "brand-analysis-processor",
			Name:    "Run Brand Visibility Analysis",
			Retries: inngestgo.IntPtr(0),
		},
		inngestgo.EventTrigger(AnalysisRequestedEvent, nil),
		func(ctx context.Context, input inngestgo.Input[models.RunRequest]) (any, error) {
			req := input.Event.Data
			p.logger.Info().Str("brand", req.BrandName).Bool("existing_prompts", req.UseExistingPrompts).Msg("[ProcessAnalysisRequest] analysis requested")

			summary, err := step.Run(ctx, "run-analysis", func(ctx context.Context) (*RunSummary, error) {
				return p.RunAnalysis(ctx, req)
			})
			if err != nil {
				return nil, err
			}

			if summary.Status == models.StatusComplete {
				snapshot, err := step.Run(ctx, "load-snapshot", func(ctx context.Context) (*models.AnalyticsSnapshot, error) {
					return p.store.LatestSnapshot(ctx)
				})
				if err != nil {
					p.logger.Warn().Err(err).Msg("[ProcessAnalysisRequest] failed to load snapshot")
				} else {
					summary.Snapshot = snapshot
				}
			}
			return summary, nil
		},
	)

	if err != nil {
		p.logger.Error().Err(err).Msg("[ProcessAnalysisRequest] failed to create function")
	}

	return fn
}

// RunAnalysis starts a run and blocks until it ends. A run that is already
// in progress is reported as skipped. Run failures are reported by the
// analyzer itself; failures to start are reported here.
func (p *AnalysisProcessor) RunAnalysis(ctx context.Context, req models.RunRequest) (*RunSummary, error) {
	handle, err := p.analyzer.StartRun(ctx, req)
	if errors.Is(err, services.ErrRunInProgress) {
		p.logger.Info().Str("run_id", handle.ID).Msg("[RunAnalysis] run already in progress, skipping")
		return &RunSummary{RunID: handle.ID, Status: handle.Status(), Message: "skipped: another run is in progress"}, nil
	}
	if err != nil {
		if p.slack != nil && p.slack.Enabled() {
			if serr := p.slack.ReportErrorToSlack(ctx, fmt.Errorf("failed to start analysis for %s: %w", req.BrandName, err)); serr != nil {
				p.logger.Warn().Err(serr).Msg("[RunAnalysis] failed to report to slack")
			}
		}
		return nil, fmt.Errorf("failed to start analysis: %w", err)
	}

	progress, err := handle.Wait(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		// the run failed; its status and message are in progress
		p.logger.Error().Err(err).Str("run_id", handle.ID).Msg("[RunAnalysis] analysis failed")
	} else if err != nil {
		return nil, fmt.Errorf("failed waiting for run %s: %w", handle.ID, err)
	}

	return &RunSummary{
		RunID:   handle.ID,
		Status:  progress.Status,
		Message: progress.Message,
		Prompts: progress.TotalPrompts,
	}, nil
}
