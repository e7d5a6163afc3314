// workflows/monitoring.go
package workflows

import (
	"context"
	"fmt"
	"strings"

	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"
	"github.com/rs/zerolog"

	"github.com/AI-Template-SDK/senso-visibility/internal/models"
	"github.com/AI-Template-SDK/senso-visibility/services"
)

// MonitoringProcessor posts a weekly visibility summary to Slack
type MonitoringProcessor struct {
	metrics services.MetricsService
	slack   *SlackReporter
	client  inngestgo.Client
	logger  zerolog.Logger
}

func NewMonitoringProcessor(metrics services.MetricsService, slack *SlackReporter, logger zerolog.Logger) *MonitoringProcessor {
	return &MonitoringProcessor{
		metrics: metrics,
		slack:   slack,
		logger:  logger.With().Str("component", "monitoring").Logger(),
	}
}

func (p *MonitoringProcessor) SetClient(client inngestgo.Client) {
	p.client = client
}

func (p *MonitoringProcessor) WeeklyVisibilityReport() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:   "weekly-visibility-report",
			Name: "Weekly Brand Visibility Report",
		},
		inngestgo.CronTrigger("0 0 * * 0"), // Every Sunday at midnight
		func(ctx context.Context, input inngestgo.Input[any]) (any, error) {
			report, err := step.Run(ctx, "build-report", func(ctx context.Context) (string, error) {
				return p.BuildReport(ctx)
			})
			if err != nil {
				return nil, err
			}

			if !p.slack.Enabled() {
				return map[string]interface{}{"report": report, "posted": false}, nil
			}
			_, err = step.Run(ctx, "post-report", func(ctx context.Context) (bool, error) {
				return true, p.slack.PostReport(ctx, report)
			})
			if err != nil {
				return nil, fmt.Errorf("failed to post report: %w", err)
			}
			return map[string]interface{}{"report": report, "posted": true}, nil
		},
	)

	if err != nil {
		p.logger.Error().Err(err).Msg("[WeeklyVisibilityReport] failed to create function")
	}

	return fn
}

// BuildReport renders the current dashboard numbers as a Slack message
func (p *MonitoringProcessor) BuildReport(ctx context.Context) (string, error) {
	overview, err := p.metrics.OverviewMetrics(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load overview metrics: %w", err)
	}
	competitors, err := p.metrics.CompetitorAnalysis(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load competitor analysis: %w", err)
	}
	sources, err := p.metrics.SourceAnalysis(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load source analysis: %w", err)
	}
	return formatReport(overview, competitors, sources), nil
}

const reportedCompetitors = 3

func formatReport(overview *models.OverviewMetrics, competitors []models.CompetitorAnalysis, sources []models.SourceAnalysis) string {
	citations := 0
	for _, s := range sources {
		citations += s.CitationCount
	}

	var b strings.Builder
	b.WriteString(":bar_chart: *Weekly Brand Visibility*\n")
	fmt.Fprintf(&b, "*Mention rate:* %.1f%% over %d prompts\n", overview.BrandMentionRate, overview.TotalPrompts)
	fmt.Fprintf(&b, "*Sources:* %d citations across %d domains\n", citations, len(sources))

	if len(competitors) > 0 {
		b.WriteString("*Top competitors:*\n")
		for i, c := range competitors {
			if i == reportedCompetitors {
				break
			}
			fmt.Fprintf(&b, "  %d. %s (%d mentions, %.1f%%)\n", i+1, c.Name, c.MentionCount, c.MentionRate)
		}
	}
	b.WriteString(visibilityRecommendation(overview.BrandMentionRate, overview.TotalPrompts))
	return b.String()
}

func visibilityRecommendation(rate float64, prompts int) string {
	switch {
	case prompts == 0:
		return "No prompts have been tested yet"
	case rate < 20:
		return "Visibility is low; publish content on the topics where competitors are cited"
	case rate < 50:
		return "Visibility is moderate and could be improved"
	}
	return "Visibility is strong across tested prompts"
}
