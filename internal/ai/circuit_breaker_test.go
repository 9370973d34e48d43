package ai

import (
	stderrors "errors"
	"testing"
	"time"

	"applysharp/internal/config"
)

func TestIndependentCircuitBreakerConfigurations(t *testing.T) {
	cvConfig := config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          60 * time.Second,
		MinRequests:      3,
		FailureThreshold: 0.6,
	}

	coverLetterConfig := config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          45 * time.Second,
		MinRequests:      2,
		FailureThreshold: 0.7,
	}

	cvCB := NewAICircuitBreaker("cv", cvConfig, nil)
	coverLetterCB := NewAICircuitBreaker("coverLetter", coverLetterConfig, nil)
	modelCB := NewModelCircuitBreaker("cv", cvConfig, nil)

	tests := []struct {
		name         string
		stats        map[string]any
		expectedName string
	}{
		{name: "CVCircuitBreaker", stats: cvCB.GetStats(), expectedName: "AI-cv"},
		{name: "CoverLetterCircuitBreaker", stats: coverLetterCB.GetStats(), expectedName: "AI-coverLetter"},
		{name: "ModelCircuitBreaker", stats: modelCB.GetStats(), expectedName: "AI-Model-cv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, ok := tt.stats["name"].(string)
			if !ok {
				t.Fatal("Circuit breaker name not found")
			}
			if name != tt.expectedName {
				t.Errorf("Expected circuit breaker name '%s', got '%s'", tt.expectedName, name)
			}

			state, ok := tt.stats["state"].(string)
			if !ok {
				t.Fatal("Circuit breaker state not found")
			}
			if state != "closed" {
				t.Errorf("Expected initial state 'closed', got '%s'", state)
			}

			enabled, ok := tt.stats["enabled"].(bool)
			if !ok || !enabled {
				t.Error("Circuit breaker should be enabled")
			}
		})
	}

	t.Run("IndependentInstances", func(t *testing.T) {
		if cvCB == coverLetterCB {
			t.Error("CV and cover letter circuit breakers should be different instances")
		}
		if !cvCB.IsHealthy() || !coverLetterCB.IsHealthy() || !modelCB.IsHealthy() {
			t.Error("All circuit breakers should be healthy initially")
		}
	})
}

func TestCircuitBreakerTrips(t *testing.T) {
	cb := NewAICircuitBreaker("trip", config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		MinRequests:      2,
		FailureThreshold: 0.5,
	}, nil)

	failing := func() (*Response, error) { return nil, stderrors.New("upstream down") }
	for range 2 {
		if _, err := cb.Execute(failing); err == nil {
			t.Fatal("Expected upstream error")
		}
	}

	if cb.IsHealthy() {
		t.Fatal("Circuit breaker should be open after repeated failures")
	}

	called := false
	_, err := cb.Execute(func() (*Response, error) {
		called = true
		return &Response{}, nil
	})
	if err == nil {
		t.Error("Open circuit breaker should reject calls")
	}
	if called {
		t.Error("Open circuit breaker should not run the call")
	}
}

func TestCircuitBreakerDisabled(t *testing.T) {
	cb := NewAICircuitBreaker("disabled", config.CircuitBreakerConfig{Enabled: false}, nil)
	if cb != nil {
		t.Fatal("Circuit breaker should be nil when disabled")
	}

	resp, err := cb.Execute(func() (*Response, error) { return &Response{Text: "ok"}, nil })
	if err != nil || resp.Text != "ok" {
		t.Errorf("Nil circuit breaker should run the call directly, got %v, %v", resp, err)
	}
	if enabled := cb.GetStats()["enabled"]; enabled != false {
		t.Errorf("Expected enabled=false, got %v", enabled)
	}
	if !cb.IsHealthy() {
		t.Error("Nil circuit breaker should report healthy")
	}
}
