package rubric

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService(validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
}

func TestValidateRequiresQuestionsList(t *testing.T) {
	svc := newTestService()
	require.ErrorIs(t, svc.Validate(Rubric{}), ErrNoQuestions)
	require.NoError(t, svc.Validate(Rubric{Questions: []Entry{}}))
}

func TestValidateRejectsMissingIDAndNegativeMarks(t *testing.T) {
	svc := newTestService()
	require.Error(t, svc.Validate(Rubric{Questions: []Entry{{MaxMarks: 5}}}))
	require.Error(t, svc.Validate(Rubric{Questions: []Entry{{QuestionID: 1, MaxMarks: -1}}}))
	require.NoError(t, svc.Validate(Rubric{Questions: []Entry{{QuestionID: 1, MaxMarks: 0}}}))
}

func TestValidateRejectsDuplicateQuestionIDs(t *testing.T) {
	svc := newTestService()
	err := svc.Validate(Rubric{Questions: []Entry{
		{QuestionID: 1, MaxMarks: 5},
		{QuestionID: 1, MaxMarks: 10},
	}})
	require.ErrorIs(t, err, ErrDuplicateQuestion)
}

func TestIndexLastWriteWins(t *testing.T) {
	r := Rubric{Questions: []Entry{
		{QuestionID: 1, MaxMarks: 5},
		{QuestionID: 1, MaxMarks: 10},
	}}
	require.Equal(t, 10.0, r.Index()[1].MaxMarks)
}

func TestScoreAnswerZeroMaxMarks(t *testing.T) {
	svc := newTestService()
	got := svc.ScoreAnswer("gravity", Entry{QuestionID: 1, MaxMarks: 0, ExpectedKeywords: []string{"gravity"}})
	require.Zero(t, got)
}

func TestScoreAnswerKeywordCoverage(t *testing.T) {
	svc := newTestService()
	entry := Entry{QuestionID: 1, MaxMarks: 10, ExpectedKeywords: []string{"gravity", "mass"}}

	require.InDelta(t, 7.0, svc.ScoreAnswer("Gravity acts on mass.", entry), 1e-9)
	require.InDelta(t, 3.5, svc.ScoreAnswer("only gravity here", entry), 1e-9)
	require.Zero(t, svc.ScoreAnswer("nothing relevant", entry))
}

func TestScoreAnswerBaselineWithoutKeywords(t *testing.T) {
	svc := newTestService()
	got := svc.ScoreAnswer("any answer at all", Entry{QuestionID: 1, MaxMarks: 10})
	require.InDelta(t, 2.0, got, 1e-9)
}

func TestScoreAnswerLengthPenaltyClampsAtZero(t *testing.T) {
	svc := newTestService()
	entry := Entry{
		QuestionID:       1,
		MaxMarks:         10,
		ExpectedKeywords: []string{"x"},
		Penalties: Penalties{Length: &LengthPenalty{
			MinWords:         5,
			DeductPerMissing: 2,
		}},
	}
	// coverage 7.0 minus 4 missing words * 2 = -1, clamped to 0
	require.Zero(t, svc.ScoreAnswer("x", entry))
}

func TestScoreAnswerBonusClampsAtMax(t *testing.T) {
	svc := newTestService()
	entry := Entry{
		QuestionID:       1,
		MaxMarks:         5,
		ExpectedKeywords: []string{"gravity"},
		Bonus:            map[string]float64{"newton": 3},
	}
	// coverage 3.5 plus bonus 3 = 6.5, clamped to 5
	require.InDelta(t, 5.0, svc.ScoreAnswer("gravity newton", entry), 1e-9)
}

func TestScoreAnswerBonusIgnoredWhenAbsent(t *testing.T) {
	svc := newTestService()
	entry := Entry{
		QuestionID:       1,
		MaxMarks:         5,
		ExpectedKeywords: []string{"gravity"},
		Bonus:            map[string]float64{"newton": 3},
	}
	require.InDelta(t, 3.5, svc.ScoreAnswer("gravity alone", entry), 1e-9)
}

func TestParseValidDocument(t *testing.T) {
	data := []byte(`{
		"questions": [
			{
				"question_id": 1,
				"max_marks": 10,
				"expected_keywords": ["gravity", "mass"],
				"penalties": {"length_penalty": {"min_words": 20, "deduct_per_missing_word": 0.5}},
				"bonus": {"newton": 1.5}
			}
		]
	}`)
	r, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, r.Questions, 1)
	require.Equal(t, 1, r.Questions[0].QuestionID)
	require.Equal(t, 10.0, r.Questions[0].MaxMarks)
	require.Equal(t, []string{"gravity", "mass"}, r.Questions[0].ExpectedKeywords)
	require.NotNil(t, r.Questions[0].Penalties.Length)
	require.Equal(t, 20, r.Questions[0].Penalties.Length.MinWords)
	require.Equal(t, 1.5, r.Questions[0].Bonus["newton"])
}

func TestParseRejectsEntryMissingMaxMarks(t *testing.T) {
	_, err := Parse([]byte(`{"questions": [{"question_id": 1}]}`))
	require.ErrorContains(t, err, "rubric schema")
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"questions": [`))
	require.ErrorContains(t, err, "parse rubric json")
}
