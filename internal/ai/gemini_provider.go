package ai

import (
	"context"
	"fmt"
	"time"

	"applysharp/internal/config"
	"applysharp/internal/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"
)

const modelCheckTimeout = 10 * time.Second

// GeminiProvider implements Provider for Google Gemini
type GeminiProvider struct {
	client         *genai.Client
	config         config.ResolvedAIConfig
	circuitBreaker *CircuitBreaker[*Response]
	modelBreaker   *CircuitBreaker[*ModelInfo]
	retry          retryPolicy
	logger         *errors.Logger
}

// Ensure GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a Gemini provider for one generation operation
func NewGeminiProvider(cfg config.ResolvedAIConfig, apiKey, operationType string, logger *errors.Logger) (*GeminiProvider, error) {
	return newGeminiProvider(cfg, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, operationType, logger)
}

func newGeminiProvider(cfg config.ResolvedAIConfig, clientCfg *genai.ClientConfig, operationType string, logger *errors.Logger) (*GeminiProvider, error) {
	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed, "Failed to create Gemini client", err)
	}

	return &GeminiProvider{
		client:         client,
		config:         cfg,
		circuitBreaker: NewAICircuitBreaker(operationType, cfg.CircuitBreaker, logger),
		modelBreaker:   NewModelCircuitBreaker(operationType, cfg.CircuitBreaker, logger),
		retry:          retryPolicy{maxRetries: cfg.MaxRetries, timeout: cfg.Timeout, logger: logger},
		logger:         logger,
	}, nil
}

// Generate implements Provider
func (g *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, span := otel.Tracer("applysharp.ai.gemini").Start(ctx, "gemini."+req.Operation)
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.Float64("ai.temperature", float64(g.config.Temperature)),
		attribute.Int("input.prompt_length", len(req.UserPrompt)),
	)

	genaiConfig := g.buildConfig(req.Schema)
	userPrompt := req.UserPrompt
	if req.SystemPrompt != "" {
		if g.config.UseSystemPrompts {
			genaiConfig.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
		} else {
			userPrompt = req.SystemPrompt + "\n\n" + req.UserPrompt
		}
	}

	resp, err := g.circuitBreaker.Execute(func() (*Response, error) {
		return executeWithRetry(ctx, g.retry, req.Operation, func(ctx context.Context) (*Response, error) {
			result, err := g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(userPrompt), genaiConfig)
			if err != nil {
				return nil, err
			}
			return &Response{Text: result.Text(), Usage: extractTokenUsage(result)}, nil
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

// buildConfig requests JSON output matching schema
func (g *GeminiProvider) buildConfig(schema *genai.Schema) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	if g.config.Temperature > 0 {
		temperature := g.config.Temperature
		cfg.Temperature = &temperature
	}
	if g.config.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(g.config.MaxTokens)
	}
	return cfg
}

// GetModelInfo checks the readiness and availability of the configured model
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	info, err := g.modelBreaker.Execute(func() (*ModelInfo, error) {
		checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
		defer cancel()

		model, err := g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
		if err != nil {
			return nil, err
		}
		return &ModelInfo{
			Provider:    "gemini",
			Name:        g.config.Model,
			DisplayName: model.DisplayName,
			Version:     model.Version,
			Available:   true,
		}, nil
	})
	if err != nil {
		g.logger.Warn("Model availability check failed",
			"model", g.config.Model,
			"provider", "gemini",
			"error", err.Error())
		return &ModelInfo{
			Provider: "gemini",
			Name:     g.config.Model,
			Error:    fmt.Sprintf("Failed to get model info: %v", err),
		}
	}
	return info
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (g *GeminiProvider) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"ai_operations":    g.circuitBreaker.GetStats(),
		"model_operations": g.modelBreaker.GetStats(),
		"overall_healthy":  g.circuitBreaker.IsHealthy() && g.modelBreaker.IsHealthy(),
	}
}

// Close implements Provider
func (g *GeminiProvider) Close() error {
	return nil
}

// extractTokenUsage extracts token usage information from Gemini API response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
