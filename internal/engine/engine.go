// Package engine drives a full evaluation run: schema and student scripts are
// segmented into per-question answers, each question is scored by the
// similarity, quality, and rubric signals, and the weighted blend is clamped
// to the question's maximum marks and aggregated into a total.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/smartgrade/grader-api/internal/dto"
	"github.com/smartgrade/grader-api/internal/keywords"
	"github.com/smartgrade/grader-api/internal/observability"
	"github.com/smartgrade/grader-api/internal/rubric"
	"github.com/smartgrade/grader-api/internal/scorer"
	"github.com/smartgrade/grader-api/internal/textproc"
)

// DefaultMaxMarks is awarded to a question absent any override.
const DefaultMaxMarks = 5

// Engine evaluates student scripts against model answer scripts.
type Engine struct {
	similarity scorer.SimilarityScorer
	quality    scorer.QualityScorer
	keywords   *keywords.Extractor
	rubrics    *rubric.Service
	weights    dto.Weights
	tracer     trace.Tracer
	logger     zerolog.Logger
}

// New constructs the engine with its scoring services and blend weights.
func New(
	similarity scorer.SimilarityScorer,
	quality scorer.QualityScorer,
	extractor *keywords.Extractor,
	rubrics *rubric.Service,
	weights dto.Weights,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		similarity: similarity,
		quality:    quality,
		keywords:   extractor,
		rubrics:    rubrics,
		weights:    weights,
		tracer:     otel.Tracer("github.com/smartgrade/grader-api/internal/engine"),
		logger:     logger.With().Str("component", "evaluation_engine").Logger(),
	}
}

// ParseSchema segments the model-answer script into per-question model
// answers and derives a rubric skeleton: one entry per discovered question
// with empty expected keywords (filled from the model answer at scoring time)
// and max marks from the positional override list, defaulting to 5.
func (e *Engine) ParseSchema(schemaText string, maxMarks []int) (map[int]string, rubric.Rubric) {
	fragments := textproc.Segment(schemaText)

	modelAnswers := make(map[int]string, len(fragments))
	r := rubric.Rubric{Questions: make([]rubric.Entry, 0, len(fragments))}
	for _, f := range fragments {
		modelAnswers[f.ID] = f.Text
		r.Questions = append(r.Questions, rubric.Entry{
			QuestionID: f.ID,
			MaxMarks:   float64(marksFor(f.ID, maxMarks)),
		})
	}
	return modelAnswers, r
}

// ParseStudentAnswers segments the student script into per-question answers.
func (e *Engine) ParseStudentAnswers(studentText string) map[int]string {
	return textproc.SegmentMap(studentText)
}

// Evaluate scores every rubric question and aggregates a total. Individual
// scorers fail open to zero; an unexpected failure here is logged with the
// run ID and returned to the caller.
func (e *Engine) Evaluate(
	ctx context.Context,
	studentAnswers, modelAnswers map[int]string,
	r rubric.Rubric,
	maxMarks []int,
) (dto.EvaluationResult, error) {
	runID := uuid.NewString()
	logger := e.logger.With().Str("run_id", runID).Logger()

	ctx, span := e.tracer.Start(ctx, "engine.evaluate", trace.WithAttributes(
		attribute.String("evaluation.run_id", runID),
		attribute.Int("evaluation.questions", len(r.Questions)),
	))
	defer span.End()

	start := time.Now()
	result, err := e.evaluate(ctx, logger, studentAnswers, modelAnswers, r, maxMarks)
	observability.EvaluationDuration().Observe(time.Since(start).Seconds())
	if err != nil {
		observability.EvaluationFailures().Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation_failed")
		logger.Error().Err(err).Msg("evaluation failed")
		return dto.EvaluationResult{}, err
	}

	logger.Info().
		Int("questions", len(result.Questions)).
		Float64("total_score", result.TotalScore).
		Msg("evaluation complete")
	return result, nil
}

func (e *Engine) evaluate(
	ctx context.Context,
	logger zerolog.Logger,
	studentAnswers, modelAnswers map[int]string,
	r rubric.Rubric,
	maxMarks []int,
) (result dto.EvaluationResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("evaluation panicked: %v", rec)
		}
	}()

	// validation failure is a soft warning in this path; scoring continues
	if verr := e.rubrics.Validate(r); verr != nil {
		logger.Warn().Err(verr).Msg("rubric failed validation; continuing")
	}

	entries := r.Questions
	modelList := make([]string, len(entries))
	studentList := make([]string, len(entries))
	for i, q := range entries {
		modelList[i] = modelAnswers[q.QuestionID]
		studentList[i] = studentAnswers[q.QuestionID]
	}

	// one batched call amortizes embedding cost across the script
	sims := e.similarity.ScoreBatch(ctx, modelList, studentList)

	questions := make([]dto.ScoreBreakdown, 0, len(entries))
	total := 0.0
	for i, q := range entries {
		entry := q
		if marks, ok := marksOverride(q.QuestionID, maxMarks); ok {
			entry.MaxMarks = float64(marks)
		}
		if len(entry.ExpectedKeywords) == 0 {
			entry.ExpectedKeywords = e.keywords.Extract(modelList[i], 0)
		}

		sim := sims[i]
		qual := e.quality.Score(ctx, studentList[i], 1.0)
		rubricScore := e.rubrics.ScoreAnswer(studentList[i], entry)

		rubricNorm := 0.0
		if entry.MaxMarks > 0 {
			rubricNorm = rubricScore / entry.MaxMarks
		}
		combined := e.weights.Similarity*sim + e.weights.Quality*qual + e.weights.Rubric*rubricNorm
		final := combined * entry.MaxMarks
		if final < 0 {
			final = 0
		}
		if final > entry.MaxMarks {
			final = entry.MaxMarks
		}

		logger.Debug().
			Int("question_id", q.QuestionID).
			Float64("similarity", sim).
			Float64("quality", qual).
			Float64("rubric", rubricScore).
			Float64("final_marks", final).
			Msg("scored question")

		questions = append(questions, dto.ScoreBreakdown{
			QuestionID:      q.QuestionID,
			StudentAnswer:   studentList[i],
			SimilarityScore: dto.Round4(sim),
			QualityScore:    dto.Round4(qual),
			RubricScore:     dto.Round4(rubricScore),
			FinalMarks:      dto.Round4(final),
			MaxMarks:        entry.MaxMarks,
			Feedback:        feedback(sim, qual),
		})
		total += final
	}

	return dto.EvaluationResult{Questions: questions, TotalScore: dto.Round4(total)}, nil
}

// EvaluateScripts runs the full pipeline over raw schema and student text.
// A preset rubric overrides the one derived from the schema.
func (e *Engine) EvaluateScripts(
	ctx context.Context,
	schemaText, studentText string,
	preset *rubric.Rubric,
	maxMarks []int,
) (dto.EvaluationResult, error) {
	modelAnswers, derived := e.ParseSchema(schemaText, maxMarks)
	studentAnswers := e.ParseStudentAnswers(studentText)

	r := derived
	if preset != nil {
		r = *preset
	}
	return e.Evaluate(ctx, studentAnswers, modelAnswers, r, maxMarks)
}

func marksFor(questionID int, maxMarks []int) int {
	if marks, ok := marksOverride(questionID, maxMarks); ok {
		return marks
	}
	return DefaultMaxMarks
}

// marksOverride resolves the positional override list, 1-indexed by question ID.
func marksOverride(questionID int, maxMarks []int) (int, bool) {
	if questionID >= 1 && questionID <= len(maxMarks) {
		return maxMarks[questionID-1], true
	}
	return 0, false
}

func feedback(similarity, quality float64) string {
	parts := make([]string, 0, 2)
	switch {
	case similarity < 0.4:
		parts = append(parts, "Answer differs substantially from expected answer.")
	case similarity < 0.7:
		parts = append(parts, "Answer partially matches expected answer.")
	default:
		parts = append(parts, "Answer closely matches expected answer.")
	}
	if quality < 0.5 {
		parts = append(parts, "Poor clarity/grammar detected.")
	} else {
		parts = append(parts, "Good clarity and coherence.")
	}
	return strings.Join(parts, " ")
}
