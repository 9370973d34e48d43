package ai

import (
	"context"

	"applysharp/internal/observability"

	"google.golang.org/genai"
)

// Provider sends one prompt to a text-generation backend and returns the raw
// JSON text of the reply.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	GetCircuitBreakerStats() map[string]any
	Close() error
}

// Request is a single structured-output call
type Request struct {
	Operation    string
	SystemPrompt string
	UserPrompt   string

	// Schema describes the expected JSON document. Gemini enforces it
	// natively; other providers receive it as part of the instructions.
	Schema *genai.Schema
}

// Response is the unparsed model output
type Response struct {
	Text  string
	Usage *TokenUsage
}

// TokenUsage represents token usage information from AI responses
type TokenUsage = observability.TokenUsage

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Provider    string `json:"provider"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// Draft is a typed model reply that can check its own shape.
type Draft interface {
	Validate() error
}
