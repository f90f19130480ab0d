// Package rubric holds the per-question grading configuration and turns a
// student answer plus its rubric entry into a raw point score.
package rubric

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// ErrNoQuestions indicates a rubric without a questions list.
var ErrNoQuestions = errors.New("rubric has no questions list")

// ErrDuplicateQuestion indicates two entries sharing a question ID.
var ErrDuplicateQuestion = errors.New("duplicate question id in rubric")

// LengthPenalty deducts marks when an answer falls below a minimum word count.
type LengthPenalty struct {
	MinWords         int     `json:"min_words" validate:"gte=0"`
	DeductPerMissing float64 `json:"deduct_per_missing_word" validate:"gte=0"`
}

// Penalties groups the penalty rules attached to an entry.
type Penalties struct {
	Length *LengthPenalty `json:"length_penalty,omitempty"`
}

// Entry is the grading configuration for one question. ExpectedKeywords may
// be left empty and populated lazily from the model answer at scoring time.
type Entry struct {
	QuestionID       int                `json:"question_id" validate:"gt=0"`
	MaxMarks         float64            `json:"max_marks" validate:"gte=0"`
	ExpectedKeywords []string           `json:"expected_keywords,omitempty"`
	Penalties        Penalties          `json:"penalties,omitempty"`
	Bonus            map[string]float64 `json:"bonus,omitempty"`
}

// Rubric is an ordered list of per-question entries.
type Rubric struct {
	Questions []Entry `json:"questions" validate:"dive"`
}

// Index returns the entries keyed by question ID, last-write-wins on
// duplicates. Validate rejects duplicates, so a validated rubric indexes
// losslessly.
func (r Rubric) Index() map[int]Entry {
	out := make(map[int]Entry, len(r.Questions))
	for _, q := range r.Questions {
		out[q.QuestionID] = q
	}
	return out
}

// Service validates rubrics and scores answers against entries.
type Service struct {
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewService constructs the rubric service.
func NewService(validate *validator.Validate, logger zerolog.Logger) *Service {
	return &Service{
		validate: validate,
		logger:   logger.With().Str("component", "rubric_engine").Logger(),
	}
}

// Validate checks the rubric's structural invariants: a questions list is
// present, every entry carries a positive question ID and non-negative max
// marks, and question IDs are unique.
func (s *Service) Validate(r Rubric) error {
	if r.Questions == nil {
		return ErrNoQuestions
	}
	if err := s.validate.Struct(r); err != nil {
		return fmt.Errorf("rubric structure: %w", err)
	}
	seen := make(map[int]struct{}, len(r.Questions))
	for _, q := range r.Questions {
		if _, dup := seen[q.QuestionID]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateQuestion, q.QuestionID)
		}
		seen[q.QuestionID] = struct{}{}
	}
	return nil
}

// ScoreAnswer converts a student answer and its rubric entry into a raw point
// score in [0, MaxMarks]: keyword coverage earns up to 0.7 of the maximum (a
// 0.2 participation baseline when no keywords are configured), a length
// penalty deducts per missing word, and matched bonus keywords add their
// value. Internal failure scores 0.0 and is logged.
func (s *Service) ScoreAnswer(answer string, e Entry) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Int("question_id", e.QuestionID).
				Msg("rubric scoring failed; scoring 0")
			score = 0.0
		}
	}()

	if e.MaxMarks == 0 {
		return 0.0
	}

	lowered := strings.ToLower(answer)

	if len(e.ExpectedKeywords) > 0 {
		found := 0
		for _, kw := range e.ExpectedKeywords {
			if strings.Contains(lowered, strings.ToLower(kw)) {
				found++
			}
		}
		score += float64(found) / float64(len(e.ExpectedKeywords)) * e.MaxMarks * 0.7
	} else {
		score += e.MaxMarks * 0.2
	}

	if lp := e.Penalties.Length; lp != nil {
		words := len(strings.Fields(lowered))
		if words < lp.MinWords {
			score -= float64(lp.MinWords-words) * lp.DeductPerMissing
		}
	}

	for kw, value := range e.Bonus {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			score += value
		}
	}

	if score < 0 {
		score = 0
	}
	if score > e.MaxMarks {
		score = e.MaxMarks
	}
	s.logger.Debug().Int("question_id", e.QuestionID).Float64("score", score).
		Float64("max_marks", e.MaxMarks).Msg("applied rubric")
	return score
}
