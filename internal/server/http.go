package server

import (
	"context"
	"time"

	"applysharp/internal/config"
	"applysharp/internal/errors"
	"applysharp/internal/observability"
	"applysharp/internal/pipeline"
	"applysharp/internal/types"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Pipeline runs the user-facing operations. pipeline.Service implements it.
type Pipeline interface {
	Analyze(ctx context.Context, req pipeline.AnalyzeRequest) (*types.AnalyzeResponse, error)
	Generate(ctx context.Context, req types.GenerateRequest) (*types.GenerateResponse, error)
}

// SessionStats reports on the session store
type SessionStats interface {
	Len() int
	GetStats() map[string]any
}

// AIStats reports on the generation providers
type AIStats interface {
	GetCircuitBreakerStats() map[string]any
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	TLSConfig config.TLSConfig

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64
	MaxFileSize    int64

	AllowedOrigin string

	// Rate limiting
	RateLimit       *config.RateLimitConfig
	RateLimiter     *RateLimiter
	AnalysisLimiter *AnalysisLimiter

	Password *PasswordGate
	Vault    VaultClientInterface

	Pipeline Pipeline
	Sessions SessionStats
	AI       AIStats

	Observability *observability.ObservabilityManager
	Logger        *errors.Logger
}

// Deps are the collaborators a Server is built around
type Deps struct {
	Version       string
	Pipeline      Pipeline
	Sessions      SessionStats
	AI            AIStats
	Vault         VaultClientInterface
	Observability *observability.ObservabilityManager
}

// NewServer creates a new Server instance from the application config
func NewServer(appCfg *config.Config, deps Deps, logger *errors.Logger) *Server {
	srv := appCfg.Server

	var rateLimiter *RateLimiter
	if srv.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(srv.RateLimit.RequestsPerMin, srv.RateLimit.Window, srv.RateLimit.BurstCapacity, logger)
	}

	var analysisLimiter *AnalysisLimiter
	if srv.AnalysisLimit.Enabled {
		analysisLimiter = NewAnalysisLimiter(srv.AnalysisLimit.PerHour, srv.AnalysisLimit.PerDay)
	}

	om := deps.Observability
	if om == nil {
		om, _ = observability.NewObservabilityManager(observability.ObservabilityConfig{})
	}

	return &Server{
		Host:            srv.Host,
		Port:            srv.Port,
		Version:         deps.Version,
		AppConfig:       appCfg,
		TLSConfig:       srv.TLS,
		ReadTimeout:     srv.ReadTimeout,
		WriteTimeout:    srv.WriteTimeout,
		IdleTimeout:     srv.IdleTimeout,
		MaxRequestSize:  srv.MaxRequestSize,
		MaxFileSize:     appCfg.App.MaxFileSize,
		AllowedOrigin:   srv.CORS.AllowedOrigin,
		RateLimit:       &srv.RateLimit,
		RateLimiter:     rateLimiter,
		AnalysisLimiter: analysisLimiter,
		Password:        NewPasswordGate(srv.Password),
		Vault:           deps.Vault,
		Pipeline:        deps.Pipeline,
		Sessions:        deps.Sessions,
		AI:              deps.AI,
		Observability:   om,
		Logger:          logger,
	}
}
