package domain

import "context"

// CompletionRequest is the assembled unit sent to an LLM backend.
// SystemPrompt already includes any tool enrichment.
type CompletionRequest struct {
	SystemPrompt string
	UserText     string
	Images       []ResolvedImage
	Model        string
	MaxTokens    int
	Temperature  float64
}

// CompletionResponse is a generated reply from an LLM backend.
type CompletionResponse struct {
	Content string
}

// Provider is the interface all LLM backends must implement. A failed
// call returns a *BackendError.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
