package ports

import "context"

// CompletionRequest is a single prompt sent to a language model
type CompletionRequest struct {
	// System sets the model's role
	System string

	// Prompt is the user message
	Prompt string

	// JSON asks the provider to constrain the reply to a JSON document
	JSON bool
}

// Completer defines the interface for interacting with LLM services
type Completer interface {
	// Complete returns the model's raw text reply
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Name identifies the provider and model, for logs
	Name() string
}
