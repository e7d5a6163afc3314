package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/AI-Template-SDK/senso-visibility/internal/models"
	"github.com/AI-Template-SDK/senso-visibility/services"
)

type ProgressOutput struct {
	Body models.Progress
}

func (h *Handler) GetProgress(ctx context.Context, input *struct{}) (*ProgressOutput, error) {
	return &ProgressOutput{Body: h.analyzer.Progress()}, nil
}

type StartAnalysisInput struct {
	Body struct {
		BrandName          string              `json:"brandName" minLength:"1" doc:"Brand to look for in answers"`
		BrandURL           string              `json:"brandUrl,omitempty" doc:"Brand homepage used to derive topics"`
		UseExistingPrompts *bool               `json:"useExistingPrompts,omitempty" doc:"Re-test stored prompts. Defaults to true when prompts exist."`
		Settings           *models.RunSettings `json:"settings,omitempty"`
	}
}

type RunStartedBody struct {
	Success     bool             `json:"success"`
	RunID       string           `json:"runId"`
	Status      models.RunStatus `json:"status"`
	Message     string           `json:"message"`
	PromptCount int              `json:"promptCount,omitempty"`
}

type StartAnalysisOutput struct {
	Body RunStartedBody
}

func (h *Handler) StartAnalysis(ctx context.Context, input *StartAnalysisInput) (*StartAnalysisOutput, error) {
	useExisting := false
	if input.Body.UseExistingPrompts != nil {
		useExisting = *input.Body.UseExistingPrompts
	} else {
		prompts, err := h.store.ListPrompts(ctx)
		if err != nil {
			return nil, h.toHTTPError(err, "Failed to start analysis")
		}
		useExisting = len(prompts) > 0
	}

	handle, err := h.analyzer.StartRun(ctx, models.RunRequest{
		BrandName:          input.Body.BrandName,
		BrandURL:           input.Body.BrandURL,
		UseExistingPrompts: useExisting,
		Settings:           input.Body.Settings,
	})
	if err != nil {
		if conflict := runConflict(handle, err); conflict != nil {
			return nil, conflict
		}
		return nil, h.toHTTPError(err, "Failed to start analysis")
	}

	message := "Analysis started with new prompts"
	if useExisting {
		message = "Analysis started with saved prompts"
	}
	h.logger.Info().Str("run_id", handle.ID).Bool("existing_prompts", useExisting).Msg("[StartAnalysis] analysis started")
	return &StartAnalysisOutput{Body: RunStartedBody{
		Success: true,
		RunID:   handle.ID,
		Status:  models.StatusInitializing,
		Message: message,
	}}, nil
}

type MessageBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type MessageOutput struct {
	Body MessageBody
}

func (h *Handler) CancelAnalysis(ctx context.Context, input *struct{}) (*MessageOutput, error) {
	if !h.analyzer.CancelRun() {
		return &MessageOutput{Body: MessageBody{Success: false, Message: "No analysis is running"}}, nil
	}
	return &MessageOutput{Body: MessageBody{Success: true, Message: "Analysis cancelled successfully"}}, nil
}

// runConflict reports a refused start with the id of the run in the way
func runConflict(handle *services.RunHandle, err error) error {
	if errors.Is(err, services.ErrRunInProgress) && handle != nil {
		return huma.Error409Conflict(fmt.Sprintf("analysis run %s is already in progress", handle.ID))
	}
	return nil
}
