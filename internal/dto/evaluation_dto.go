package dto

import "math"

// Weights blends the similarity, quality, and rubric signals into final marks.
// The engine assumes but does not enforce that the three sum to 1.0; callers
// supplying weights with a different sum get proportionally scaled marks.
type Weights struct {
	Similarity float64 `json:"similarity" validate:"gte=0"`
	Quality    float64 `json:"quality" validate:"gte=0"`
	Rubric     float64 `json:"rubric" validate:"gte=0"`
}

// DefaultWeights returns the stock 0.6/0.3/0.1 blend.
func DefaultWeights() Weights {
	return Weights{Similarity: 0.6, Quality: 0.3, Rubric: 0.1}
}

// ScoreBreakdown is the per-question evaluation output. All score fields are
// rounded to four decimal places at construction so serialization round-trips.
type ScoreBreakdown struct {
	QuestionID      int     `json:"question_id"`
	StudentAnswer   string  `json:"student_answer"`
	SimilarityScore float64 `json:"similarity_score"`
	QualityScore    float64 `json:"quality_score"`
	RubricScore     float64 `json:"rubric_score"`
	FinalMarks      float64 `json:"final_marks"`
	MaxMarks        float64 `json:"max_marks"`
	Feedback        string  `json:"feedback"`
}

// EvaluationResult aggregates the per-question breakdowns of one run.
type EvaluationResult struct {
	Questions  []ScoreBreakdown `json:"questions"`
	TotalScore float64          `json:"total_score"`
}

// Round4 rounds a score to the four-decimal precision of the output contract.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
