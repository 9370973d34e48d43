package cli

import (
	"context"
	"fmt"

	"applysharp/internal/common"
	"applysharp/internal/config"
	"applysharp/internal/errors"
	"applysharp/internal/extract"
	"applysharp/internal/types"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [cv-file]",
	Short: "Analyze a CV against a job posting",
	Long: `Research the job and inspect a CV against it. The CV may be a text-layer
PDF or a plain text file; --job takes the job description the same way.

The analysis includes:
- Heads-up tips from ATS, company culture and role research
- Skills the posting asks for that the CV never mentions
- Employment gaps and LinkedIn contradictions
- Date and heading fixes that will be applied automatically
- AI-sounding vocabulary that will be rewritten
- Questions whose answers feed "tailor --answers"`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return prepareOutput(cmd, &analyzeConfig)
	},
	RunE: runAnalyze,
}

var (
	analyzeConfig common.CommandConfig
	analyzeDocs   documentFlags
)

// documentFlags describe the job and the optional LinkedIn export
type documentFlags struct {
	Company  string
	Role     string
	Location string
	JobFile  string
	LinkedIn string
}

func (d *documentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&d.Company, "company", "", "Company name")
	cmd.Flags().StringVar(&d.Role, "role", "", "Role title")
	cmd.Flags().StringVar(&d.Location, "location", "", "Job location")
	cmd.Flags().StringVar(&d.JobFile, "job", "", "Job description file (text or PDF)")
	cmd.Flags().StringVar(&d.LinkedIn, "linkedin", "", "LinkedIn profile export (PDF, optional)")
	for _, name := range []string{"company", "role", "location", "job"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

// load reads the documents into an analysis input
func (d *documentFlags) load(ctx context.Context, loader *extract.FileLoader, cvPath string) (types.AnalyzeInput, error) {
	description, err := loader.Load(ctx, "Job description", d.JobFile)
	if err != nil {
		return types.AnalyzeInput{}, err
	}
	cvText, err := loader.Load(ctx, "CV", cvPath)
	if err != nil {
		return types.AnalyzeInput{}, err
	}
	linkedInText, err := loader.Load(ctx, "LinkedIn PDF", d.LinkedIn)
	if err != nil {
		return types.AnalyzeInput{}, err
	}

	return types.AnalyzeInput{
		Job: types.Job{
			Company:     d.Company,
			Role:        d.Role,
			Location:    d.Location,
			Description: description,
		},
		CVText:       cvText,
		LinkedInText: linkedInText,
	}, nil
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	analyzeCmd.Flags().StringVar(&analyzeConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")
	analyzeDocs.register(analyzeCmd)
	registerFormatCompletion(analyzeCmd)
}

// prepareOutput applies the default format and validates it
func prepareOutput(cmd *cobra.Command, cmdConfig *common.CommandConfig) error {
	cfg := getConfigFromContext(cmd.Context())
	if cmdConfig.OutputFormat == "" {
		cmdConfig.OutputFormat = cfg.App.DefaultFormat
	}
	return common.ValidateOutputFormat(cmdConfig.OutputFormat, cfg.App.SupportedFormats)
}

func registerFormatCompletion(cmd *cobra.Command) {
	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

// setupLocalApp loads Vault secrets and wires the pipeline for a one-shot command
func setupLocalApp(ctx context.Context, cfg *config.Config, logger *errors.Logger) (*app, error) {
	if _, err := config.ApplyVaultSecrets(cfg, logger); err != nil {
		return nil, fmt.Errorf("failed to load secrets from vault: %w", err)
	}
	return buildApp(ctx, cfg, logger)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	a, err := setupLocalApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	loader := extract.NewFileLoader(a.Extractor, cfg.App.MaxFileSize, logger)

	logDetails := func(input types.AnalyzeInput, cmdConfig common.CommandConfig) {
		logger.Info("Starting CV analysis",
			"company", input.Job.Company,
			"role", input.Job.Role,
			"cv_chars", len(input.CVText),
			"has_linkedin", input.LinkedInText != "",
			"output_format", cmdConfig.OutputFormat)
	}

	err = common.RunCommand(ctx, cmd.OutOrStdout(), logger, analyzeConfig,
		func(ctx context.Context) (types.AnalyzeInput, error) {
			return analyzeDocs.load(ctx, loader, args[0])
		},
		a.Pipeline.AnalyzeText,
		logDetails,
	)
	if err != nil {
		return fmt.Errorf("failed to analyze CV: %w", err)
	}
	logger.Info("CV analysis completed successfully")
	return nil
}
