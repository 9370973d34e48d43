package ai

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"text/template"

	"applysharp/internal/config"
	"applysharp/internal/errors"
	"applysharp/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

// operationClient is the provider and prompts of one generation call
type operationClient struct {
	op       config.Operation
	provider Provider
	system   string
	user     *template.Template
}

// Service drafts the generated artifacts, one provider per operation
type Service struct {
	clients map[config.Operation]*operationClient
	metrics *observability.Metrics
	logger  *errors.Logger
}

// Operations lists the generation calls in a fixed order.
var Operations = []config.Operation{config.OperationCV, config.OperationCoverLetter, config.OperationOutreach}

// NewService creates providers for every operation from cfg
func NewService(cfg *config.Config, metrics *observability.Metrics, logger *errors.Logger) (*Service, error) {
	providers := make(map[config.Operation]Provider, len(Operations))
	for _, op := range Operations {
		opCfg := cfg.GetOperationConfig(op)

		logger.Debug("Initializing AI provider",
			"provider", opCfg.Provider,
			"operation_type", op,
			"model", opCfg.Model,
			"temperature", opCfg.Temperature,
			"timeout", opCfg.Timeout,
			"max_retries", opCfg.MaxRetries,
			"use_system_prompts", opCfg.UseSystemPrompts)

		var provider Provider
		var err error
		switch opCfg.Provider {
		case "gemini":
			provider, err = NewGeminiProvider(opCfg, cfg.AI.APIKey, string(op), logger)
		case "anthropic":
			provider, err = NewAnthropicProvider(opCfg, cfg.AI.Anthropic, string(op), logger)
		default:
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
				fmt.Sprintf("Unsupported AI provider: %s", opCfg.Provider), nil)
		}
		if err != nil {
			return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed, "Failed to create AI provider", err)
		}
		providers[op] = provider
	}

	return NewServiceWithProviders(providers, cfg.Prompts, metrics, logger)
}

// NewServiceWithProviders builds a service around existing providers
func NewServiceWithProviders(providers map[config.Operation]Provider, prompts config.PromptConfig, metrics *observability.Metrics, logger *errors.Logger) (*Service, error) {
	custom := map[config.Operation]config.OperationPrompts{
		config.OperationCV:          prompts.CV,
		config.OperationCoverLetter: prompts.CoverLetter,
		config.OperationOutreach:    prompts.Outreach,
	}

	s := &Service{
		clients: make(map[config.Operation]*operationClient, len(Operations)),
		metrics: metrics,
		logger:  logger,
	}
	for _, op := range Operations {
		provider, ok := providers[op]
		if !ok || provider == nil {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, fmt.Sprintf("no AI provider for %s", op), nil)
		}
		system, user, err := parsePrompts(op, custom[op])
		if err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "Invalid prompt template", err)
		}
		s.clients[op] = &operationClient{op: op, provider: provider, system: system, user: user}
	}
	return s, nil
}

// DraftCV writes both CV versions and the model's change log
func (s *Service) DraftCV(ctx context.Context, data PromptData) (CVDraft, error) {
	draft, err := executeAIOperation[CVDraft](ctx, s, config.OperationCV, data, CVDraftSchema(),
		attribute.Int("input.cv_length", len(data.CVText)),
		attribute.Int("input.references", len(data.References)))
	if err != nil {
		return CVDraft{}, err
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.Int("output.change_log_entries", len(draft.ChangeLog)))
	}
	return draft, nil
}

// DraftCoverLetter writes the cover letter
func (s *Service) DraftCoverLetter(ctx context.Context, data PromptData) (CoverLetterDraft, error) {
	return executeAIOperation[CoverLetterDraft](ctx, s, config.OperationCoverLetter, data, CoverLetterDraftSchema())
}

// DraftOutreach writes the LinkedIn tips and the application strategy
func (s *Service) DraftOutreach(ctx context.Context, data PromptData) (OutreachDraft, error) {
	return executeAIOperation[OutreachDraft](ctx, s, config.OperationOutreach, data, OutreachDraftSchema(),
		attribute.Bool("input.has_linkedin", data.LinkedInText != ""))
}

// executeAIOperation renders the prompt, calls the provider and decodes a
// validated draft. Transport failures are AI errors; an undecodable or
// invalid reply is a GenerationPartialFailure with code INVALID_SCHEMA.
func executeAIOperation[Out Draft](
	ctx context.Context,
	s *Service,
	op config.Operation,
	data PromptData,
	schema *genai.Schema,
	spanAttributes ...attribute.KeyValue,
) (Out, error) {
	var output Out
	client := s.clients[op]

	userPrompt, err := renderPrompt(client.user, data)
	if err != nil {
		return output, errors.NewInternalError(errors.ErrCodeAIServiceFailed, "Failed to render prompt", err)
	}

	req := Request{Operation: string(op), SystemPrompt: client.system, UserPrompt: userPrompt, Schema: schema}

	err = s.metrics.TrackAIOperationWithTokens(ctx, string(op), func(ctx context.Context) *observability.AIOperationResult {
		trace.SpanFromContext(ctx).SetAttributes(spanAttributes...)

		resp, err := client.provider.Generate(ctx, req)
		if err != nil {
			return &observability.AIOperationResult{Error: err}
		}
		err = decodeJSON(resp.Text, &output)
		if err == nil {
			err = output.Validate()
		}
		if err != nil {
			return &observability.AIOperationResult{
				Error:      errors.NewGenerationPartialFailureError(errors.ErrCodeInvalidSchema, fmt.Sprintf("The %s reply did not match the expected format", op), err),
				TokenUsage: resp.Usage,
			}
		}
		return &observability.AIOperationResult{TokenUsage: resp.Usage}
	})
	if err != nil {
		s.logger.LogError(err, "AI operation failed", "operation", op)
		return output, err
	}
	return output, nil
}

// decodeJSON parses a JSON reply strictly
func decodeJSON(text string, out any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(stripCodeFence(text))))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return stderrors.New("trailing data after JSON object")
	}
	return nil
}

// stripCodeFence removes a surrounding ```json fence some models add
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// GetModelInfo returns information about each operation's model for health checks
func (s *Service) GetModelInfo(ctx context.Context) map[string]*ModelInfo {
	info := make(map[string]*ModelInfo, len(s.clients))
	for op, c := range s.clients {
		info[string(op)] = c.provider.GetModelInfo(ctx)
	}
	return info
}

// GetCircuitBreakerStats returns the breaker statistics of every operation
func (s *Service) GetCircuitBreakerStats() map[string]any {
	stats := make(map[string]any, len(s.clients))
	for op, c := range s.clients {
		stats[string(op)] = c.provider.GetCircuitBreakerStats()
	}
	return stats
}

// Close closes every provider
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.clients {
		if err := c.provider.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
