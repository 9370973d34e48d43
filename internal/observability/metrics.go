package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all custom metrics for applysharp. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// AI operation metrics
	AIProcessingTime metric.Float64Histogram
	AIRequestCount   metric.Int64Counter
	AIErrorCount     metric.Int64Counter
	AITokenUsage     metric.Int64Histogram

	// Intelligence gathering
	ContainerDuration metric.Float64Histogram
	ContainerResults  metric.Int64Counter

	// Business metrics
	Analyses          metric.Int64Counter
	Generations       metric.Int64Counter
	GenerationRetries metric.Int64Counter
	SessionsDeleted   metric.Int64Counter

	// Infrastructure
	RateLimitHits     metric.Int64Counter
	PasswordRotations metric.Int64Counter
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// AIOperationResult holds the result of an AI operation including token usage
type AIOperationResult struct {
	Error      error
	TokenUsage *TokenUsage
}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.AIProcessingTime, err = meter.Float64Histogram("applysharp_ai_processing_duration_seconds",
		metric.WithDescription("Time spent processing AI requests"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create AI processing time metric: %w", err)
	}
	if m.AIRequestCount, err = meter.Int64Counter("applysharp_ai_requests_total",
		metric.WithDescription("Total number of AI requests")); err != nil {
		return nil, fmt.Errorf("failed to create AI request count metric: %w", err)
	}
	if m.AIErrorCount, err = meter.Int64Counter("applysharp_ai_errors_total",
		metric.WithDescription("Total number of AI request errors")); err != nil {
		return nil, fmt.Errorf("failed to create AI error count metric: %w", err)
	}
	if m.AITokenUsage, err = meter.Int64Histogram("applysharp_ai_token_usage_total",
		metric.WithDescription("Token usage for AI requests (input, output, total)"), metric.WithUnit("tokens")); err != nil {
		return nil, fmt.Errorf("failed to create AI token usage metric: %w", err)
	}

	if m.ContainerDuration, err = meter.Float64Histogram("applysharp_intel_container_duration_seconds",
		metric.WithDescription("Time spent gathering one intelligence container"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create container duration metric: %w", err)
	}
	if m.ContainerResults, err = meter.Int64Counter("applysharp_intel_container_results_total",
		metric.WithDescription("Container query outcomes by status (ok, empty, degraded)")); err != nil {
		return nil, fmt.Errorf("failed to create container results metric: %w", err)
	}

	if m.Analyses, err = meter.Int64Counter("applysharp_analyses_total",
		metric.WithDescription("Total number of analyses")); err != nil {
		return nil, fmt.Errorf("failed to create analyses metric: %w", err)
	}
	if m.Generations, err = meter.Int64Counter("applysharp_generations_total",
		metric.WithDescription("Total number of artifact bundle generations")); err != nil {
		return nil, fmt.Errorf("failed to create generations metric: %w", err)
	}
	if m.GenerationRetries, err = meter.Int64Counter("applysharp_generation_retries_total",
		metric.WithDescription("Bundle generations retried after a partial failure")); err != nil {
		return nil, fmt.Errorf("failed to create generation retries metric: %w", err)
	}
	if m.SessionsDeleted, err = meter.Int64Counter("applysharp_sessions_deleted_total",
		metric.WithDescription("Sessions deleted, by reason")); err != nil {
		return nil, fmt.Errorf("failed to create sessions deleted metric: %w", err)
	}

	if m.RateLimitHits, err = meter.Int64Counter("applysharp_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits")); err != nil {
		return nil, fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}
	if m.PasswordRotations, err = meter.Int64Counter("applysharp_password_rotations_total",
		metric.WithDescription("Access password rotations picked up from Vault")); err != nil {
		return nil, fmt.Errorf("failed to create password rotations metric: %w", err)
	}

	return m, nil
}

// TrackAIOperationWithTokens instruments an AI operation with tracing, metrics, and token usage
func (m *Metrics) TrackAIOperationWithTokens(ctx context.Context, operation string, fn func(context.Context) *AIOperationResult) error {
	ctx, span := otel.Tracer("applysharp.ai").Start(ctx, "ai."+operation)
	defer span.End()

	start := time.Now()
	result := fn(ctx)
	duration := time.Since(start).Seconds()

	var err error
	if result != nil {
		err = result.Error
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	}
	span.SetAttributes(attrs...)

	if result != nil && result.TokenUsage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", result.TokenUsage.InputTokens),
			attribute.Int64("ai.tokens.output", result.TokenUsage.OutputTokens),
			attribute.Int64("ai.tokens.total", result.TokenUsage.TotalTokens),
		)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if m == nil {
		return err
	}

	m.AIProcessingTime.Record(ctx, duration, metric.WithAttributes(attrs...))
	m.AIRequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil {
		m.AIErrorCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if result != nil && result.TokenUsage != nil {
		m.recordTokenMetrics(ctx, operation, result.TokenUsage)
	}
	return err
}

// recordTokenMetrics records individual token usage metrics
func (m *Metrics) recordTokenMetrics(ctx context.Context, operation string, usage *TokenUsage) {
	tokenTypes := []struct {
		tokenType string
		value     int64
	}{
		{"input", usage.InputTokens},
		{"output", usage.OutputTokens},
		{"total", usage.TotalTokens},
	}

	for _, tt := range tokenTypes {
		m.AITokenUsage.Record(ctx, tt.value, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("token_type", tt.tokenType),
		))
	}
}

// RecordContainer records one intelligence container outcome.
func (m *Metrics) RecordContainer(ctx context.Context, container, status string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("container", container),
		attribute.String("status", status),
	)
	m.ContainerDuration.Record(ctx, duration.Seconds(), attrs)
	m.ContainerResults.Add(ctx, 1, attrs)
}

// RecordBusinessMetric records business-specific metrics
func (m *Metrics) RecordBusinessMetric(ctx context.Context, metricType string, success bool, attributes ...attribute.KeyValue) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(append([]attribute.KeyValue{
		attribute.Bool("success", success),
	}, attributes...)...)

	switch metricType {
	case "analysis":
		m.Analyses.Add(ctx, 1, attrs)
	case "generation":
		m.Generations.Add(ctx, 1, attrs)
	case "generation_retry":
		m.GenerationRetries.Add(ctx, 1, attrs)
	case "password_rotation":
		m.PasswordRotations.Add(ctx, 1, attrs)
	}
}

// RecordSessionDeleted records a session deletion with its reason (finished, expired, deleted).
func (m *Metrics) RecordSessionDeleted(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.SessionsDeleted.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordRateLimitHit records a rejected request.
func (m *Metrics) RecordRateLimitHit(ctx context.Context, limiter string) {
	if m == nil {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("limiter", limiter)))
}
