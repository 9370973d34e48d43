package cli

import (
	"fmt"

	"applysharp/internal/config"
	"applysharp/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP server behind the web frontend.

Available endpoints:
- POST /api/analyze: Upload a CV (and optionally a LinkedIn PDF) with the job details
- POST /api/generate: Answer the questions and receive the tailored documents
- GET /health: Health check endpoint
- GET /stats: Server statistics, session counts and rate limiting info

Both API endpoints require the shared app password when one is configured,
sent as "password" in the request or in the X-App-Password header.

TLS Configuration:
- Use --tls to serve HTTPS
- Use --cert-file and --key-file for the TLS certificate pair`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().Bool("tls", false, "Serve HTTPS (overrides config)")
	serveCmd.Flags().String("cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().String("key-file", "", "Server private key file (PEM, overrides config)")
	serveCmd.Flags().String("allowed-origin", "", "Browser origin allowed to call the API (overrides config)")
}

// applyServeFlags copies explicitly set flags over the loaded configuration
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetString("port")
	}
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("tls") {
		cfg.Server.TLS.Enabled, _ = flags.GetBool("tls")
	}
	if flags.Changed("cert-file") {
		cfg.Server.TLS.CertFile, _ = flags.GetString("cert-file")
	}
	if flags.Changed("key-file") {
		cfg.Server.TLS.KeyFile, _ = flags.GetString("key-file")
	}
	if flags.Changed("allowed-origin") {
		cfg.Server.CORS.AllowedOrigin, _ = flags.GetString("allowed-origin")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	applyServeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	vaultClient, err := config.ApplyVaultSecrets(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to load secrets from vault: %w", err)
	}

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	deps := server.Deps{
		Version:       Version,
		Pipeline:      a.Pipeline,
		Sessions:      a.Sessions,
		AI:            a.AI,
		Observability: a.Observability(),
	}
	// A typed nil client would defeat the watcher's nil check.
	if vaultClient != nil {
		deps.Vault = vaultClient
	}

	return server.NewServer(cfg, deps, logger).Start(ctx)
}
