package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"applysharp/internal/errors"
)

// shutdownTimeout bounds how long in-flight requests may take to drain.
const shutdownTimeout = 30 * time.Second

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	httpServer := s.setupHTTPServer()

	if err := s.configureTLS(httpServer); err != nil {
		return err
	}

	watcher, err := s.startPasswordWatcher()
	if err != nil {
		return err
	}
	if watcher != nil {
		defer func() { _ = watcher.Stop() }()
	}

	if !s.Password.Enabled() {
		s.Logger.Warn("No app password configured, the API is open to anyone who can reach it")
	}

	go s.analysisLimitCleanup(ctx)

	s.displayServerInfo()

	return s.startWithGracefulShutdown(ctx, httpServer)
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer() *http.Server {
	addr := fmt.Sprintf("%s:%s", s.Host, s.Port)

	return &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}
}

// configureTLS validates the static certificate pair when TLS is enabled
func (s *Server) configureTLS(server *http.Server) error {
	if !s.TLSConfig.Enabled {
		return nil
	}
	if s.TLSConfig.CertFile == "" || s.TLSConfig.KeyFile == "" {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "TLS is enabled but certFile or keyFile is missing", nil)
	}
	if _, err := tls.LoadX509KeyPair(s.TLSConfig.CertFile, s.TLSConfig.KeyFile); err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to load TLS certificate", err)
	}

	server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	return nil
}

// startPasswordWatcher follows password rotations in Vault when configured
func (s *Server) startPasswordWatcher() (*VaultWatcher, error) {
	if s.Vault == nil || s.AppConfig == nil || s.AppConfig.Vault.Secrets.Password == "" {
		return nil, nil
	}

	vaultCfg := s.AppConfig.Vault
	watcher := NewVaultWatcher(s.Vault, vaultCfg.Secrets.Password, vaultCfg.PasswordPollInterval,
		func(password string, err error) {
			ctx := context.Background()
			if err != nil {
				s.Observability.GetMetrics().RecordBusinessMetric(ctx, "password_rotation", false)
				return
			}
			s.Password.Set(password)
			s.Observability.GetMetrics().RecordBusinessMetric(ctx, "password_rotation", true)
			s.Logger.Info("App password rotated")
		}, s.Logger)

	if err := watcher.Start(); err != nil {
		return nil, fmt.Errorf("failed to start vault password watcher: %w", err)
	}
	return watcher, nil
}

// analysisLimitCleanup forgets idle clients of the analysis limiter
func (s *Server) analysisLimitCleanup(ctx context.Context) {
	if s.AnalysisLimiter == nil {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.AnalysisLimiter.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}

// startWithGracefulShutdown starts the HTTP server and handles graceful shutdown
func (s *Server) startWithGracefulShutdown(ctx context.Context, server *http.Server) error {
	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	go func() {
		s.Logger.Info("Starting HTTP server",
			"address", server.Addr,
			"tls_enabled", server.TLSConfig != nil)

		var err error
		if server.TLSConfig != nil {
			err = server.ListenAndServeTLS(s.TLSConfig.CertFile, s.TLSConfig.KeyFile)
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
		s.Logger.Info("Received shutdown signal, starting graceful shutdown")
		return s.performGracefulShutdown(server)
	}
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.cleanupRateLimiter()

	s.Logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

// cleanupRateLimiter cleans up the rate limiter resources
func (s *Server) cleanupRateLimiter() {
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}
}
