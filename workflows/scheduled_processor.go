// workflows/scheduled_processor.go
package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"
	"github.com/rs/zerolog"

	"github.com/AI-Template-SDK/senso-visibility/internal/config"
	"github.com/AI-Template-SDK/senso-visibility/internal/repository"
)

type ScheduledProcessor struct {
	schedule config.ScheduleConfig
	store    repository.Store
	client   inngestgo.Client
	logger   zerolog.Logger
}

func NewScheduledProcessor(schedule config.ScheduleConfig, store repository.Store, logger zerolog.Logger) *ScheduledProcessor {
	return &ScheduledProcessor{
		schedule: schedule,
		store:    store,
		logger:   logger.With().Str("component", "scheduled_processor").Logger(),
	}
}

func (p *ScheduledProcessor) SetClient(client inngestgo.Client) {
	p.client = client
}

// Enabled reports whether a brand is scheduled for daily re-runs
func (p *ScheduledProcessor) Enabled() bool {
	return p.schedule.BrandName != ""
}

func (p *ScheduledProcessor) DailyAnalysis() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:   "daily-brand-analysis",
			Name: "Daily Brand Visibility Re-run",
		},
		inngestgo.CronTrigger(p.schedule.Cron),
		func(ctx context.Context, input inngestgo.Input[any]) (any, error) {
			now := time.Now()
			if !p.Enabled() {
				return map[string]interface{}{
					"execution_date": now.Format("2006-01-02"),
					"message":        "No brand scheduled",
				}, nil
			}

			data, err := step.Run(ctx, "build-request", func(ctx context.Context) (map[string]interface{}, error) {
				return p.BuildEventData(ctx)
			})
			if err != nil {
				return nil, fmt.Errorf("failed to build scheduled request: %w", err)
			}

			_, err = step.Run(ctx, "send-analysis-request", func(ctx context.Context) (string, error) {
				return p.client.Send(ctx, inngestgo.Event{Name: AnalysisRequestedEvent, Data: data})
			})
			if err != nil {
				return nil, fmt.Errorf("failed to send analysis request: %w", err)
			}

			p.logger.Info().Str("brand", p.schedule.BrandName).Interface("existing_prompts", data["use_existing_prompts"]).Msg("[DailyAnalysis] analysis requested")
			return map[string]interface{}{
				"execution_date": now.Format("2006-01-02"),
				"brand":          p.schedule.BrandName,
				"request":        data,
				"message":        fmt.Sprintf("Triggered analysis for %s", p.schedule.BrandName),
			}, nil
		},
	)

	if err != nil {
		p.logger.Error().Err(err).Msg("[DailyAnalysis] failed to create function")
	}

	return fn
}

// BuildEventData is the payload of the scheduled analysis event. Stored
// prompts are re-tested when there are any.
func (p *ScheduledProcessor) BuildEventData(ctx context.Context) (map[string]interface{}, error) {
	prompts, err := p.store.ListPrompts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	data := map[string]interface{}{
		"brand_name":           p.schedule.BrandName,
		"use_existing_prompts": len(prompts) > 0,
		"triggered_by":         "automatic_scheduler",
	}
	if p.schedule.BrandURL != "" {
		data["brand_url"] = p.schedule.BrandURL
	}
	return data, nil
}
