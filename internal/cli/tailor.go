package cli

import (
	"context"
	"fmt"

	"applysharp/internal/common"
	"applysharp/internal/extract"
	"applysharp/internal/types"

	"github.com/spf13/cobra"
)

var tailorCmd = &cobra.Command{
	Use:   "tailor [cv-file]",
	Short: "Generate a tailored CV, cover letter and application strategy",
	Long: `Run the analysis and the generation in one go. Question answers come from
--answers, a YAML or JSON file mapping question ids (as printed by "analyze")
to your answers. Unanswered questions are sent as "No additional information."

The output holds the ATS and human CV versions, the cover letter, the
application strategy, LinkedIn tips and a change log listing every edit.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return prepareOutput(cmd, &tailorConfig)
	},
	RunE: runTailor,
}

var (
	tailorConfig  common.CommandConfig
	tailorDocs    documentFlags
	tailorAnswers string
)

func init() {
	tailorCmd.Flags().StringVarP(&tailorConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	tailorCmd.Flags().StringVar(&tailorConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")
	tailorCmd.Flags().StringVar(&tailorAnswers, "answers", "", "YAML or JSON file of question answers")
	tailorDocs.register(tailorCmd)
	registerFormatCompletion(tailorCmd)
}

// tailorInput is an analysis input plus the applicant's answers
type tailorInput struct {
	Analyze types.AnalyzeInput
	Answers map[string]string
}

func runTailor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	a, err := setupLocalApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	loader := extract.NewFileLoader(a.Extractor, cfg.App.MaxFileSize, logger)
	files := common.NewFileProcessor(logger)

	buildInput := func(ctx context.Context) (tailorInput, error) {
		answers, err := files.ReadAnswers(tailorAnswers)
		if err != nil {
			return tailorInput{}, err
		}
		in, err := tailorDocs.load(ctx, loader, args[0])
		if err != nil {
			return tailorInput{}, err
		}
		return tailorInput{Analyze: in, Answers: answers}, nil
	}

	logDetails := func(input tailorInput, cmdConfig common.CommandConfig) {
		logger.Info("Starting CV tailoring",
			"company", input.Analyze.Job.Company,
			"role", input.Analyze.Job.Role,
			"cv_chars", len(input.Analyze.CVText),
			"answers", len(input.Answers),
			"output_format", cmdConfig.OutputFormat)
	}

	tailorOperation := func(ctx context.Context, input tailorInput) (*types.GenerateResponse, error) {
		analysis, err := a.Pipeline.AnalyzeText(ctx, input.Analyze)
		if err != nil {
			return nil, err
		}

		known := make(map[string]bool, len(analysis.Questions))
		for _, q := range analysis.Questions {
			known[q.ID] = true
			if _, ok := input.Answers[q.ID]; !ok {
				logger.Info("Question left unanswered", "question_id", q.ID, "question", q.Question)
			}
		}
		for id := range input.Answers {
			if !known[id] {
				logger.Warn("Answer does not match any question", "question_id", id)
			}
		}

		return a.Pipeline.Generate(ctx, types.GenerateRequest{
			SessionID:   analysis.SessionID,
			UserAnswers: input.Answers,
		})
	}

	if err := common.RunCommand(ctx, cmd.OutOrStdout(), logger, tailorConfig, buildInput, tailorOperation, logDetails); err != nil {
		return fmt.Errorf("failed to tailor CV: %w", err)
	}
	logger.Info("CV tailoring completed successfully")
	return nil
}
