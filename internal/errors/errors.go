package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeInvalidInput             ErrorType = "invalid_input"
	ErrorTypeUnauthorized             ErrorType = "unauthorized"
	ErrorTypeIntelligenceUnavailable  ErrorType = "intelligence_unavailable"
	ErrorTypeSessionExpired           ErrorType = "session_expired"
	ErrorTypeSessionConsumed          ErrorType = "session_consumed"
	ErrorTypeNotFound                 ErrorType = "not_found"
	ErrorTypeRateLimited              ErrorType = "rate_limited"
	ErrorTypeGenerationPartialFailure ErrorType = "generation_partial_failure"
	ErrorTypeIO                       ErrorType = "io"
	ErrorTypeAI                       ErrorType = "ai"
	ErrorTypeNetwork                  ErrorType = "network"
	ErrorTypeConfig                   ErrorType = "config"
	ErrorTypeInternal                 ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"cause,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{
		Type:    typ,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error constructors for different types
func NewInvalidInputError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInvalidInput, code, message, cause)
}

func NewUnauthorizedError(code, message string) *AppError {
	return newAppError(ErrorTypeUnauthorized, code, message, nil)
}

func NewIntelligenceUnavailableError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIntelligenceUnavailable, code, message, cause)
}

func NewSessionExpiredError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeSessionExpired, code, message, cause)
}

func NewSessionConsumedError(code, message string) *AppError {
	return newAppError(ErrorTypeSessionConsumed, code, message, nil)
}

func NewNotFoundError(code, message string) *AppError {
	return newAppError(ErrorTypeNotFound, code, message, nil)
}

func NewRateLimitedError(code, message string) *AppError {
	return newAppError(ErrorTypeRateLimited, code, message, nil)
}

func NewGenerationPartialFailureError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeGenerationPartialFailure, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, message, cause)
}

func NewAIError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeAI, code, message, cause)
}

func NewNetworkError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeNetwork, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

// WithContext adds context to an error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// TypeOf returns the type of the outermost AppError in err's chain, or
// ErrorTypeInternal when there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsType reports whether any AppError in err's chain has the given type.
func IsType(err error, typ ErrorType) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Type == typ {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// HTTPStatus maps an error to the status code surfaced at the HTTP boundary.
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case ErrorTypeInvalidInput:
		return http.StatusBadRequest
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeSessionExpired:
		return http.StatusGone
	case ErrorTypeSessionConsumed:
		return http.StatusConflict
	case ErrorTypeRateLimited:
		return http.StatusTooManyRequests
	case ErrorTypeIntelligenceUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeGenerationPartialFailure, ErrorTypeAI, ErrorTypeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Logger wraps slog with application-specific methods. A nil *Logger
// discards everything.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a new structured logger writing JSON to stderr.
func NewLogger(level slog.Level) *Logger {
	return NewLoggerWithWriter(os.Stderr, level)
}

// NewLoggerWithWriter creates a structured logger writing JSON to w.
func NewLoggerWithWriter(w io.Writer, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}
	return &Logger{logger: slog.New(slog.NewJSONHandler(w, opts))}
}

// LogError logs an application error with appropriate level and context
func (l *Logger) LogError(err error, message string, args ...any) {
	if l == nil || err == nil {
		return
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		logArgs := []any{
			"error_type", appErr.Type,
			"error_code", appErr.Code,
			"error_message", appErr.Message,
		}
		if appErr.Cause != nil {
			logArgs = append(logArgs, "cause", appErr.Cause.Error())
		}
		for key, value := range appErr.Context {
			logArgs = append(logArgs, key, value)
		}
		logArgs = append(logArgs, args...)
		l.logger.Error(message, logArgs...)
		return
	}

	logArgs := append([]any{"error", err.Error()}, args...)
	l.logger.Error(message, logArgs...)
}

func (l *Logger) Info(message string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Info(message, args...)
}

func (l *Logger) Debug(message string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Debug(message, args...)
}

func (l *Logger) Warn(message string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Warn(message, args...)
}

// With returns a logger that always includes the given attributes.
func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{logger: l.logger.With(args...)}
}

// Slog exposes the underlying slog logger for libraries that accept one.
func (l *Logger) Slog() *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.logger
}

// New creates a new logger instance
func New(level string) (*Logger, error) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	return NewLogger(slogLevel), nil
}

// Common error codes
const (
	ErrCodeMissingField      = "MISSING_FIELD"
	ErrCodeFileTooLarge      = "FILE_TOO_LARGE"
	ErrCodeUnreadablePDF     = "UNREADABLE_PDF"
	ErrCodeEmptyCV           = "EMPTY_CV"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeWrongPassword     = "WRONG_PASSWORD"
	ErrCodeNoIntelligence    = "NO_INTELLIGENCE"
	ErrCodeSessionNotFound   = "SESSION_NOT_FOUND"
	ErrCodeSessionExpired    = "SESSION_EXPIRED"
	ErrCodeSessionConsumed   = "SESSION_CONSUMED"
	ErrCodeHourlyLimit       = "HOURLY_LIMIT"
	ErrCodeDailyLimit        = "DAILY_LIMIT"
	ErrCodeTooManyRequests   = "TOO_MANY_REQUESTS"
	ErrCodeArtifactFailed    = "ARTIFACT_FAILED"
	ErrCodeInvalidSchema     = "INVALID_SCHEMA"
	ErrCodeUnknownCitation   = "UNKNOWN_CITATION"
	ErrCodeAIServiceFailed   = "AI_SERVICE_FAILED"
	ErrCodeAITimeout         = "AI_TIMEOUT"
	ErrCodeSearchFailed      = "SEARCH_FAILED"
	ErrCodeMissingAPIKey     = "MISSING_API_KEY"
	ErrCodeInvalidConfig     = "INVALID_CONFIG"
	ErrCodeFileNotFound      = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable   = "FILE_NOT_READABLE"
	ErrCodeSecretUnavailable = "SECRET_UNAVAILABLE"
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
)
