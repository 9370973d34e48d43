package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"applysharp/internal/config"
	"applysharp/internal/errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const defaultAnthropicMaxTokens = 4500

// AnthropicProvider implements Provider for the Anthropic Messages API
type AnthropicProvider struct {
	client         anthropic.Client
	config         config.ResolvedAIConfig
	circuitBreaker *CircuitBreaker[*Response]
	modelBreaker   *CircuitBreaker[*ModelInfo]
	retry          retryPolicy
	logger         *errors.Logger
}

var _ Provider = (*AnthropicProvider)(nil)

// NewAnthropicProvider creates an Anthropic provider for one generation operation
func NewAnthropicProvider(cfg config.ResolvedAIConfig, anthropicCfg config.AnthropicConfig, operationType string, logger *errors.Logger) (*AnthropicProvider, error) {
	if anthropicCfg.APIKey == "" {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey, "Anthropic API key is required", nil)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(anthropicCfg.APIKey),
		// retries are handled by executeWithRetry
		option.WithMaxRetries(0),
	}
	if anthropicCfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(anthropicCfg.BaseURL))
	}

	return &AnthropicProvider{
		client:         anthropic.NewClient(opts...),
		config:         cfg,
		circuitBreaker: NewAICircuitBreaker(operationType, cfg.CircuitBreaker, logger),
		modelBreaker:   NewModelCircuitBreaker(operationType, cfg.CircuitBreaker, logger),
		retry:          retryPolicy{maxRetries: cfg.MaxRetries, timeout: cfg.Timeout, logger: logger},
		logger:         logger,
	}, nil
}

// Generate implements Provider
func (a *AnthropicProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, span := otel.Tracer("applysharp.ai.anthropic").Start(ctx, "anthropic."+req.Operation)
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "anthropic"),
		attribute.String("ai.model", a.config.Model),
		attribute.Float64("ai.temperature", float64(a.config.Temperature)),
		attribute.Int("input.prompt_length", len(req.UserPrompt)),
	)

	params, err := a.buildParams(req)
	if err != nil {
		span.RecordError(err)
		return nil, errors.NewInternalError(errors.ErrCodeAIServiceFailed, "Failed to build request for "+req.Operation, err)
	}

	resp, err := a.circuitBreaker.Execute(func() (*Response, error) {
		return executeWithRetry(ctx, a.retry, req.Operation, func(ctx context.Context) (*Response, error) {
			msg, err := a.client.Messages.New(ctx, params)
			if err != nil {
				return nil, err
			}

			var text strings.Builder
			for _, block := range msg.Content {
				if block.Type == "text" {
					text.WriteString(block.Text)
				}
			}
			return &Response{
				Text: text.String(),
				Usage: &TokenUsage{
					InputTokens:  msg.Usage.InputTokens,
					OutputTokens: msg.Usage.OutputTokens,
					TotalTokens:  msg.Usage.InputTokens + msg.Usage.OutputTokens,
				},
			}, nil
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed, "Failed to generate content for "+req.Operation, err)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return resp, nil
}

// buildParams puts the system prompt and the JSON schema in the system
// block, since the Messages API has no response schema parameter.
func (a *AnthropicProvider) buildParams(req Request) (anthropic.MessageNewParams, error) {
	system := req.SystemPrompt
	if req.Schema != nil {
		schema, err := json.Marshal(req.Schema)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("failed to encode response schema: %w", err)
		}
		system = strings.TrimSpace(system + "\n\nRespond ONLY with a JSON object matching this schema, no other text:\n" + string(schema))
	}

	maxTokens := a.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.config.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{{
			Role:    anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(req.UserPrompt)},
		}},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if a.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(a.config.Temperature))
	}
	return params, nil
}

// GetModelInfo checks the readiness and availability of the configured model
func (a *AnthropicProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	info, err := a.modelBreaker.Execute(func() (*ModelInfo, error) {
		checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
		defer cancel()

		model, err := a.client.Models.Get(checkCtx, a.config.Model, anthropic.ModelGetParams{})
		if err != nil {
			return nil, err
		}
		return &ModelInfo{
			Provider:    "anthropic",
			Name:        a.config.Model,
			DisplayName: model.DisplayName,
			Version:     model.ID,
			Available:   true,
		}, nil
	})
	if err != nil {
		a.logger.Warn("Model availability check failed",
			"model", a.config.Model,
			"provider", "anthropic",
			"error", err.Error())
		return &ModelInfo{
			Provider: "anthropic",
			Name:     a.config.Model,
			Error:    fmt.Sprintf("Failed to get model info: %v", err),
		}
	}
	return info
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (a *AnthropicProvider) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"ai_operations":    a.circuitBreaker.GetStats(),
		"model_operations": a.modelBreaker.GetStats(),
		"overall_healthy":  a.circuitBreaker.IsHealthy() && a.modelBreaker.IsHealthy(),
	}
}

// Close implements Provider
func (a *AnthropicProvider) Close() error {
	return nil
}
