package workflows

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type SlackPayload struct {
	Text string `json:"text"`
}

// SlackReporter posts run failures and reports to an incoming webhook. A reporter with
// no webhook URL drops every report.
type SlackReporter struct {
	webhookURL string
	client     *http.Client
}

func NewSlackReporter(webhookURL string) *SlackReporter {
	return &SlackReporter{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Enabled reports whether a webhook is configured
func (s *SlackReporter) Enabled() bool {
	return s != nil && s.webhookURL != ""
}

// ReportErrorToSlack posts an error message to the alerts channel.
func (s *SlackReporter) ReportErrorToSlack(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if !s.Enabled() {
		return errors.New("SLACK_WEBHOOK_URL is not set")
	}

	message := fmt.Sprintf(
		":rotating_light: *Brand Analysis Error*\n"+
			"*Time:* %s\n"+
			"*Error:* ```%s```",
		time.Now().UTC().Format(time.RFC3339),
		err.Error(),
	)

	return s.post(ctx, message)
}

// PostReport posts a plain message, such as the weekly visibility report.
func (s *SlackReporter) PostReport(ctx context.Context, text string) error {
	if !s.Enabled() {
		return errors.New("SLACK_WEBHOOK_URL is not set")
	}
	return s.post(ctx, text)
}

func (s *SlackReporter) post(ctx context.Context, text string) error {
	body, err := json.Marshal(SlackPayload{Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// ReportRunFailure reports an analysis run that ended in error.
func (s *SlackReporter) ReportRunFailure(ctx context.Context, runID, brandName string, err error) error {
	if err == nil || !s.Enabled() {
		return nil
	}
	if brandName == "" {
		brandName = "unknown"
	}
	if runID == "" {
		runID = "unknown"
	}

	reportErr := fmt.Errorf(
		"analysis run failed: run_id=%s brand=%s error=%v",
		runID,
		brandName,
		err,
	)
	return s.ReportErrorToSlack(ctx, reportErr)
}
