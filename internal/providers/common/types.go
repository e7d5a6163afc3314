package common

import (
	"context"
	"errors"
)

// ErrNoCredentials is returned when the selected backend has no API key.
var ErrNoCredentials = errors.New("no provider credentials configured")

// CompletionRequest is one chat turn sent to a backend
type CompletionRequest struct {
	Name        string // operation name, used in logs and metrics
	System      string
	User        string
	MaxTokens   int
	Temperature float64
	// Schema requests structured JSON output. Backends without native schema
	// support fall back to a JSON-only instruction.
	Schema     interface{}
	SchemaName string
}

// Completion is the text a backend produced plus usage accounting
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Cost         float64
}

// Completer is the one remote capability each backend must provide. The
// shared engine builds every operation on top of it.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	ProviderName() string
	HasCredentials() bool
}

// PageFetcher returns the readable text of a page, or "" when it cannot be
// fetched.
type PageFetcher interface {
	FetchPageText(ctx context.Context, pageURL string) string
}
