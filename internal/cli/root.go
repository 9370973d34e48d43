package cli

import (
	"context"
	"time"

	"applysharp/internal/config"
	"applysharp/internal/errors"

	"github.com/spf13/cobra"
)

// shutdownTimeout bounds how long telemetry exporters may take to flush.
const shutdownTimeout = 5 * time.Second

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

// Use variables of these types as the keys.
var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootCmd = &cobra.Command{
	Use:   "applysharp",
	Short: "Tailor a CV and cover letter to a specific job",
	Long: `ApplySharp researches a job posting, inspects your CV against it and,
after a few questions, drafts an ATS-friendly CV, a human-friendly CV, a
cover letter and an application strategy. Every edit to your CV is listed
in a change log.

Run it as an HTTP service with "serve", or locally with "analyze" and "tailor".`,
	SilenceUsage: true,
}

func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	// Attach the config and logger to the context, making them available to all subcommands
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg
	}
	panic("config not found in context") // Should not happen if properly initialized
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) *errors.Logger {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger
	}
	panic("logger not found in context") // Should not happen if properly initialized
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(tailorCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}
