package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"

	"applysharp/internal/errors"
)

// healthHandler reports liveness and the number of active sessions
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	active := 0
	if s.Sessions != nil {
		active = s.Sessions.Len()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"version":         s.Version,
		"sessions_active": active,
	})
}

// statsHandler provides server statistics including rate limiting and circuit breaker info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "applysharp",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"password_gate":          s.Password.Enabled(),
		},
	}

	if s.Sessions != nil {
		response["sessions"] = s.Sessions.GetStats()
	}
	if s.AI != nil {
		response["circuit_breakers"] = s.AI.GetCircuitBreakerStats()
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{"enabled": false}
	}
	if s.AnalysisLimiter != nil {
		response["analysis_limit"] = s.AnalysisLimiter.GetStats()
	} else {
		response["analysis_limit"] = map[string]any{"enabled": false}
	}

	writeJSON(w, http.StatusOK, response)
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return fmt.Errorf("content-type must be application/json")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return maxBytesErr
		}
		return fmt.Errorf("failed to read request body: %w", err)
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("Failed to close request body: %v", err)
		}
	}()

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	return nil
}

// writeJSON writes v with the given status
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeAppError maps err to its status and writes {error, message}.
// Internal failures get a generic message.
func writeAppError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		writeErrorResponse(w, "INTERNAL_ERROR", "Something went wrong. Please try again.", http.StatusInternalServerError)
		return
	}

	if seconds, ok := appErr.Context["retry_after"].(int); ok {
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	message := appErr.Message
	if status == http.StatusInternalServerError {
		message = "Something went wrong. Please try again."
	}
	writeErrorResponse(w, appErr.Code, message, status)
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   error,
		Message: message,
	})
}
