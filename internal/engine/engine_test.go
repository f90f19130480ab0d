package engine

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/smartgrade/grader-api/internal/dto"
	"github.com/smartgrade/grader-api/internal/keywords"
	"github.com/smartgrade/grader-api/internal/rubric"
	"github.com/smartgrade/grader-api/internal/scorer"
)

type fakeSimilarity struct{ value float64 }

func (f fakeSimilarity) Score(ctx context.Context, a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return f.value
}

func (f fakeSimilarity) ScoreBatch(ctx context.Context, as, bs []string) []float64 {
	out := make([]float64, len(as))
	for i := range as {
		out[i] = f.Score(ctx, as[i], bs[i])
	}
	return out
}

type fakeQuality struct{ value float64 }

func (f fakeQuality) Score(ctx context.Context, text string, maxScore float64) float64 {
	if text == "" {
		return 0
	}
	return f.value * maxScore
}

// bagOfWordsEmbedder embeds texts as shared-vocabulary token-count vectors,
// giving deterministic cosine similarities without a backend.
type bagOfWordsEmbedder struct {
	mu    sync.Mutex
	vocab map[string]int
	calls int
}

func (b *bagOfWordsEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.vocab == nil {
		b.vocab = make(map[string]int)
	}
	const dim = 64
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		vec := make([]float32, dim)
		for _, word := range strings.Fields(strings.ToLower(in)) {
			word = strings.Trim(word, ".,!?")
			if word == "" {
				continue
			}
			if _, ok := b.vocab[word]; !ok {
				b.vocab[word] = len(b.vocab)
			}
			vec[b.vocab[word]%dim]++
		}
		out[i] = vec
	}
	return out, nil
}

func newTestEngine(sim scorer.SimilarityScorer, qual scorer.QualityScorer, weights dto.Weights) *Engine {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return New(
		sim,
		qual,
		keywords.NewExtractor(0, zerolog.Nop()),
		rubric.NewService(validate, zerolog.Nop()),
		weights,
		zerolog.Nop(),
	)
}

func TestParseSchemaDefaultsAndOverrides(t *testing.T) {
	eng := newTestEngine(fakeSimilarity{}, fakeQuality{}, dto.DefaultWeights())

	modelAnswers, r := eng.ParseSchema("Q1: Answer: alpha Q2: Answer: beta Q3: Answer: gamma", []int{7, 10})
	require.Equal(t, map[int]string{1: "alpha", 2: "beta", 3: "gamma"}, modelAnswers)
	require.Len(t, r.Questions, 3)
	require.Equal(t, 7.0, r.Questions[0].MaxMarks)
	require.Equal(t, 10.0, r.Questions[1].MaxMarks)
	// no positional override for question 3
	require.Equal(t, float64(DefaultMaxMarks), r.Questions[2].MaxMarks)
	for _, q := range r.Questions {
		require.Empty(t, q.ExpectedKeywords)
	}
}

func TestEvaluateSimilarityAloneGivesFullCredit(t *testing.T) {
	eng := newTestEngine(fakeSimilarity{value: 1.0}, fakeQuality{value: 0.2}, dto.Weights{Similarity: 1})

	answers := map[int]string{1: "the exact same answer"}
	r := rubric.Rubric{Questions: []rubric.Entry{{QuestionID: 1, MaxMarks: 5, ExpectedKeywords: []string{"answer"}}}}

	result, err := eng.Evaluate(context.Background(), answers, answers, r, nil)
	require.NoError(t, err)
	require.Len(t, result.Questions, 1)
	require.InDelta(t, 5.0, result.Questions[0].FinalMarks, 1e-9)
}

func TestEvaluateZeroMaxMarksGuard(t *testing.T) {
	eng := newTestEngine(fakeSimilarity{value: 1.0}, fakeQuality{value: 1.0}, dto.DefaultWeights())

	answers := map[int]string{1: "an answer"}
	r := rubric.Rubric{Questions: []rubric.Entry{{QuestionID: 1, MaxMarks: 0}}}

	result, err := eng.Evaluate(context.Background(), answers, answers, r, nil)
	require.NoError(t, err)
	require.Zero(t, result.Questions[0].FinalMarks)
	require.Zero(t, result.TotalScore)
}

func TestEvaluateMaxMarksOverrideWins(t *testing.T) {
	eng := newTestEngine(fakeSimilarity{value: 1.0}, fakeQuality{}, dto.Weights{Similarity: 1})

	answers := map[int]string{1: "answer"}
	r := rubric.Rubric{Questions: []rubric.Entry{{QuestionID: 1, MaxMarks: 5}}}

	result, err := eng.Evaluate(context.Background(), answers, answers, r, []int{8})
	require.NoError(t, err)
	require.Equal(t, 8.0, result.Questions[0].MaxMarks)
	require.InDelta(t, 8.0, result.Questions[0].FinalMarks, 1e-9)
}

func TestEvaluateFeedbackThresholds(t *testing.T) {
	cases := []struct {
		similarity float64
		quality    float64
		wants      []string
	}{
		{0.3, 0.8, []string{"differs substantially", "Good clarity"}},
		{0.5, 0.8, []string{"partially matches", "Good clarity"}},
		{0.9, 0.3, []string{"closely matches", "Poor clarity"}},
	}
	for _, tc := range cases {
		eng := newTestEngine(fakeSimilarity{value: tc.similarity}, fakeQuality{value: tc.quality}, dto.DefaultWeights())
		answers := map[int]string{1: "an answer"}
		r := rubric.Rubric{Questions: []rubric.Entry{{QuestionID: 1, MaxMarks: 5}}}

		result, err := eng.Evaluate(context.Background(), answers, answers, r, nil)
		require.NoError(t, err)
		for _, want := range tc.wants {
			require.Contains(t, result.Questions[0].Feedback, want)
		}
	}
}

func TestEvaluateMissingStudentAnswerScoresLow(t *testing.T) {
	eng := newTestEngine(fakeSimilarity{value: 1.0}, fakeQuality{value: 1.0}, dto.DefaultWeights())

	model := map[int]string{1: "the model answer"}
	r := rubric.Rubric{Questions: []rubric.Entry{{QuestionID: 1, MaxMarks: 5, ExpectedKeywords: []string{"model"}}}}

	result, err := eng.Evaluate(context.Background(), map[int]string{}, model, r, nil)
	require.NoError(t, err)
	require.Equal(t, "", result.Questions[0].StudentAnswer)
	require.Zero(t, result.Questions[0].SimilarityScore)
	require.Zero(t, result.Questions[0].QualityScore)
}

func TestEvaluateInvalidRubricContinues(t *testing.T) {
	eng := newTestEngine(fakeSimilarity{value: 1.0}, fakeQuality{value: 1.0}, dto.Weights{Similarity: 1})

	answers := map[int]string{1: "an answer", 2: "another"}
	// duplicate IDs fail validation but scoring still proceeds
	r := rubric.Rubric{Questions: []rubric.Entry{
		{QuestionID: 1, MaxMarks: 5},
		{QuestionID: 1, MaxMarks: 5},
	}}

	result, err := eng.Evaluate(context.Background(), answers, answers, r, nil)
	require.NoError(t, err)
	require.Len(t, result.Questions, 2)
}

func TestEvaluateScriptsEndToEnd(t *testing.T) {
	embedder := &bagOfWordsEmbedder{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	eng := New(
		scorer.NewSimilarityScorer(embedder, "bow-test", zerolog.Nop()),
		scorer.NewQualityScorer(nil, 0, zerolog.Nop()),
		keywords.NewExtractor(0, zerolog.Nop()),
		rubric.NewService(validate, zerolog.Nop()),
		dto.DefaultWeights(),
		zerolog.Nop(),
	)

	schema := "Q1: Answer: Paris is the capital of France."
	student := "Q1: Answer: The capital of France is Paris."

	result, err := eng.EvaluateScripts(context.Background(), schema, student, nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Questions, 1)

	q := result.Questions[0]
	require.Equal(t, 1, q.QuestionID)
	require.Equal(t, 5.0, q.MaxMarks)
	// same token multiset, so the bag-of-words cosine is 1
	require.Greater(t, q.SimilarityScore, 0.7)
	require.Contains(t, q.Feedback, "closely matches")
	require.Greater(t, q.QualityScore, 0.5)
	// expected keywords auto-populated from the model answer all match
	require.InDelta(t, 3.5, q.RubricScore, 1e-9)
	require.Greater(t, q.FinalMarks, 3.5)
	require.LessOrEqual(t, q.FinalMarks, 5.0)
	require.InDelta(t, q.FinalMarks, result.TotalScore, 1e-4)
}

func TestEvaluationResultJSONRoundTrip(t *testing.T) {
	eng := newTestEngine(fakeSimilarity{value: 0.83519}, fakeQuality{value: 0.612345}, dto.DefaultWeights())

	answers := map[int]string{1: "first answer", 2: "second answer"}
	r := rubric.Rubric{Questions: []rubric.Entry{
		{QuestionID: 1, MaxMarks: 5, ExpectedKeywords: []string{"first"}},
		{QuestionID: 2, MaxMarks: 10, ExpectedKeywords: []string{"second"}},
	}}

	result, err := eng.Evaluate(context.Background(), answers, answers, r, nil)
	require.NoError(t, err)

	payload, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded dto.EvaluationResult
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Equal(t, result, decoded)
}
