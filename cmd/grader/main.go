package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/smartgrade/grader-api/internal/config"
	"github.com/smartgrade/grader-api/internal/engine"
	"github.com/smartgrade/grader-api/internal/keywords"
	"github.com/smartgrade/grader-api/internal/rubric"
	"github.com/smartgrade/grader-api/internal/scorer"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "grader",
		Short:         "Grades free-text answer scripts against a model answer script",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newEvaluateCmd(), newKeywordsCmd())
	return root
}

func newEvaluateCmd() *cobra.Command {
	var (
		schemaPath  string
		studentPath string
		rubricPath  string
		outPath     string
		maxMarksCSV string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate an extracted student script against a model answer script",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger := zerolog.New(os.Stderr).Level(cfg.LoggerLevel()).With().Timestamp().Logger()

			schemaText, err := os.ReadFile(schemaPath)
			if err != nil {
				return fmt.Errorf("read schema text: %w", err)
			}
			studentText, err := os.ReadFile(studentPath)
			if err != nil {
				return fmt.Errorf("read student text: %w", err)
			}
			maxMarks, err := parseMaxMarks(maxMarksCSV)
			if err != nil {
				return err
			}

			var embedder scorer.Embedder
			if cfg.EmbeddingAPIKey != "" {
				embedder, err = scorer.NewOpenAIEmbedder(scorer.EmbedderConfig{
					APIKey:  cfg.EmbeddingAPIKey,
					BaseURL: cfg.EmbeddingBaseURL,
					Model:   cfg.EmbeddingModel,
				})
				if err != nil {
					return fmt.Errorf("create embedder: %w", err)
				}
			} else {
				logger.Warn().Msg("no embedding api key configured; similarity scores will be 0")
			}

			var grammar scorer.GrammarChecker
			if cfg.LanguageToolURL != "" {
				grammar = scorer.NewLanguageToolChecker(cfg.LanguageToolURL, cfg.GrammarTimeout)
			}

			validate := validator.New(validator.WithRequiredStructEnabled())
			rubricService := rubric.NewService(validate, logger)
			extractor := keywords.NewExtractor(cfg.NumKeywords, logger)
			similarity := scorer.NewSimilarityScorer(embedder, cfg.EmbeddingModel, logger)
			quality := scorer.NewQualityScorer(grammar, cfg.GrammarTimeout, logger)
			eng := engine.New(similarity, quality, extractor, rubricService, cfg.Weights(), logger)

			var preset *rubric.Rubric
			if rubricPath != "" {
				loaded, err := rubric.LoadFile(rubricPath)
				if err != nil {
					return fmt.Errorf("load rubric: %w", err)
				}
				preset = &loaded
			}

			result, err := eng.EvaluateScripts(cmd.Context(), string(schemaText), string(studentText), preset, maxMarks)
			if err != nil {
				return err
			}

			payload, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			if err := os.WriteFile(outPath, payload, 0o644); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
			logger.Info().Float64("total_score", result.TotalScore).Str("path", outPath).Msg("results written")
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "path to the extracted model answer script text")
	cmd.Flags().StringVar(&studentPath, "student", "", "path to the extracted student script text")
	cmd.Flags().StringVar(&rubricPath, "rubric", "", "optional rubric JSON overriding the derived rubric")
	cmd.Flags().StringVar(&outPath, "out", "result.json", "path for the result JSON document")
	cmd.Flags().StringVar(&maxMarksCSV, "max-marks", "", "comma-separated max marks per question, e.g. 5,10,8")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("student")
	return cmd
}

func newKeywordsCmd() *cobra.Command {
	var (
		inputPath string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Print the top-ranked key phrases of a text (diagnostics)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger := zerolog.New(os.Stderr).Level(cfg.LoggerLevel()).With().Timestamp().Logger()

			text, err := os.ReadFile(inputPath)
			if err != nil {
				return fmt.Errorf("read input text: %w", err)
			}

			extractor := keywords.NewExtractor(cfg.NumKeywords, logger)
			for _, phrase := range extractor.Extract(string(text), limit) {
				fmt.Fprintln(cmd.OutOrStdout(), phrase)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "path to the text to analyze")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum phrases to print (0 uses the configured default)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// parseMaxMarks parses "5,10,8" into a positional override list.
func parseMaxMarks(csv string) ([]int, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	marks := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("max-marks must be comma-separated integers like 5,10,8")
		}
		marks = append(marks, n)
	}
	return marks, nil
}
