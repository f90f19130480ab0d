package scorer

import (
	"context"
	"math"
	"time"

	"github.com/jonreiter/govader"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/smartgrade/grader-api/internal/observability"
)

// QualityScorer computes a bounded writing-quality score for a single text.
// It fails open: any internal failure scores 0.0 and is logged.
type QualityScorer interface {
	Score(ctx context.Context, text string, maxScore float64) float64
}

const (
	grammarWeight   = 0.7
	sentimentWeight = 0.3
	issuePenalty    = 0.05
	defaultTimeout  = 6 * time.Second
)

type qualityScorer struct {
	sentiment *govader.SentimentIntensityAnalyzer
	grammar   GrammarChecker
	timeout   time.Duration
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewQualityScorer builds the quality scorer. The grammar checker may be nil,
// in which case the heuristic issue count is always used. The timeout bounds
// each external grammar check; the fallback kicks in when it expires.
func NewQualityScorer(grammar GrammarChecker, timeout time.Duration, logger zerolog.Logger) QualityScorer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &qualityScorer{
		sentiment: govader.NewSentimentIntensityAnalyzer(),
		grammar:   grammar,
		timeout:   timeout,
		tracer:    otel.Tracer("github.com/smartgrade/grader-api/internal/scorer"),
		logger:    logger.With().Str("component", "quality_scorer").Logger(),
	}
}

// Score blends a grammar-issue penalty (0.7) with a sentiment factor (0.3).
// Sentiment is a deliberate proxy for writing tone, not a grammar measure.
func (s *qualityScorer) Score(ctx context.Context, text string, maxScore float64) (score float64) {
	if text == "" {
		return 0.0
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("quality scoring failed; scoring 0")
			score = 0.0
		}
	}()

	ctx, span := s.tracer.Start(ctx, "quality.score")
	defer span.End()

	compound := s.sentiment.PolarityScores(text).Compound
	issues := s.grammarIssues(ctx, text)

	penalty := math.Min(1.0, float64(issues)*issuePenalty)
	sentimentFactor := (compound + 1) / 2

	score = (grammarWeight*(1-penalty) + sentimentWeight*sentimentFactor) * maxScore
	if score < 0 {
		score = 0
	}
	if score > maxScore {
		score = maxScore
	}
	s.logger.Debug().
		Int("issues", issues).
		Float64("compound", compound).
		Float64("score", score).
		Msg("computed quality score")
	return score
}

// grammarIssues consults the external checker under a hard deadline. The
// check runs in its own goroutine so a hang can never stall the caller past
// the timeout; unavailability, errors, and timeouts all fall back to the
// heuristic count.
func (s *qualityScorer) grammarIssues(ctx context.Context, text string) int {
	if s.grammar == nil {
		s.logger.Debug().Msg("no grammar checker configured; using heuristic")
		return heuristicGrammarIssues(text)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type outcome struct {
		issues int
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		issues, err := s.grammar.Check(ctx, text)
		done <- outcome{issues: issues, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			observability.GrammarFallbacks().WithLabelValues("error").Inc()
			s.logger.Warn().Err(res.err).Msg("grammar check failed; using heuristic fallback")
			return heuristicGrammarIssues(text)
		}
		return res.issues
	case <-ctx.Done():
		observability.GrammarFallbacks().WithLabelValues("timeout").Inc()
		s.logger.Warn().Dur("timeout", s.timeout).Msg("grammar check timed out; using heuristic fallback")
		return heuristicGrammarIssues(text)
	}
}
