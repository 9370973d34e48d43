package ai

import (
	"fmt"

	"applysharp/internal/config"
	"applysharp/internal/errors"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker wraps one kind of provider call with the circuit breaker
// pattern. A nil *CircuitBreaker runs calls unprotected.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// NewAICircuitBreaker creates the breaker guarding generation calls of one operation
func NewAICircuitBreaker(operationType string, cfg config.CircuitBreakerConfig, logger *errors.Logger) *CircuitBreaker[*Response] {
	if !cfg.Enabled {
		return nil
	}

	return newCircuitBreaker[*Response](fmt.Sprintf("AI-%s", operationType), operationType, cfg, func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureThreshold
	}, logger)
}

// NewModelCircuitBreaker creates the breaker guarding model availability checks
func NewModelCircuitBreaker(operationType string, cfg config.CircuitBreakerConfig, logger *errors.Logger) *CircuitBreaker[*ModelInfo] {
	if !cfg.Enabled {
		return nil
	}

	// Model info is less critical, so use more lenient settings
	return newCircuitBreaker[*ModelInfo](fmt.Sprintf("AI-Model-%s", operationType), operationType, cfg, func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= 5 && failureRatio >= 0.8
	}, logger)
}

func newCircuitBreaker[T any](name, operationType string, cfg config.CircuitBreakerConfig, readyToTrip func(gobreaker.Counts) bool, logger *errors.Logger) *CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: readyToTrip,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger == nil {
				return
			}
			logger.Info("Circuit breaker state changed",
				"name", name,
				"operation_type", operationType,
				"from", from.String(),
				"to", to.String(),
				"max_requests", cfg.MaxRequests,
				"failure_threshold", cfg.FailureThreshold)
		},
	}

	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute executes the provided function with circuit breaker protection
func (cb *CircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	if cb == nil || cb.cb == nil {
		return fn()
	}
	return cb.cb.Execute(fn)
}

// GetStats returns circuit breaker statistics
func (cb *CircuitBreaker[T]) GetStats() map[string]any {
	if cb == nil || cb.cb == nil {
		return map[string]any{
			"enabled": false,
		}
	}

	return map[string]any{
		"name":    cb.cb.Name(),
		"state":   cb.cb.State().String(),
		"counts":  cb.cb.Counts(),
		"enabled": true,
	}
}

// IsHealthy returns true if the circuit breaker is in closed state
func (cb *CircuitBreaker[T]) IsHealthy() bool {
	if cb == nil || cb.cb == nil {
		return true
	}
	return cb.cb.State() == gobreaker.StateClosed
}
