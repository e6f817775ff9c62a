package quiz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioSession has three questions worth [1,1,2] with keys [A,C,B],
// answered [A,B,-].
func scenarioSession(t *testing.T) *Session {
	t.Helper()
	qs := []QuestionRecord{
		{Text: "q1", CorrectProvisional: strp("A"), Marks: 1},
		{Text: "q2", CorrectProvisional: strp("C"), Marks: 1},
		{Text: "q3", CorrectProvisional: strp("B"), Marks: 2},
	}
	s, err := Start(qs, Config{ExamName: "Scenario"}, t0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Answer(0, OptionA))
	require.NoError(t, s.Answer(1, OptionB))
	return s
}

func TestScore_RequiresSubmit(t *testing.T) {
	s := scenarioSession(t)
	_, err := Score(s, DefaultResolver)
	assert.ErrorIs(t, err, ErrSessionNotSubmitted)
}

func TestScore_Scenario(t *testing.T) {
	s := scenarioSession(t)
	s.Submit(t0.Add(10 * time.Minute))

	r, err := Score(s, DefaultResolver)
	require.NoError(t, err)

	assert.Equal(t, s.ID, r.ID)
	assert.Equal(t, "Scenario", r.ExamName)
	assert.Equal(t, 3, r.TotalQuestions)
	assert.Equal(t, 2, r.Attempted)
	assert.Equal(t, 1, r.CorrectCount)
	assert.Equal(t, 4.0, r.TotalMarks)
	assert.Equal(t, 1.0, r.ObtainedMarks)
	assert.Equal(t, 25.0, r.Percentage)
	assert.Equal(t, t0.Add(10*time.Minute), r.SubmittedAt)

	require.Len(t, r.PerQuestion, 3)
	assert.True(t, r.PerQuestion[0].IsCorrect)
	assert.Equal(t, OptionB, r.PerQuestion[1].UserAnswer)
	assert.Equal(t, OptionC, r.PerQuestion[1].CorrectAnswer)
	assert.False(t, r.PerQuestion[1].IsCorrect)
	assert.Equal(t, OptionNone, r.PerQuestion[2].UserAnswer)
	assert.False(t, r.PerQuestion[2].IsCorrect)
	assert.Equal(t, "q3", r.PerQuestion[2].Question.Text)
}

func TestScore_IsDeterministic(t *testing.T) {
	s := scenarioSession(t)
	s.Submit(t0)

	a, err := Score(s, DefaultResolver)
	require.NoError(t, err)
	b, err := Score(s, DefaultResolver)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestScore_UnknownKeyNeverCorrect(t *testing.T) {
	qs := []QuestionRecord{{Text: "no key"}}
	s, err := Start(qs, Config{}, t0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Answer(0, OptionA))
	s.Submit(t0)

	r, err := Score(s, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Attempted)
	assert.Equal(t, 0, r.CorrectCount)
	assert.Equal(t, OptionNone, r.PerQuestion[0].CorrectAnswer)
}

func TestScore_FinalKeyPreference(t *testing.T) {
	qs := []QuestionRecord{{CorrectFinal: strp("B"), CorrectProvisional: strp("C")}}

	for _, tc := range []struct {
		useFinal bool
		correct  bool
	}{{true, true}, {false, false}} {
		s, err := Start(qs, Config{UseFinalKey: tc.useFinal}, t0, nil)
		require.NoError(t, err)
		require.NoError(t, s.Answer(0, OptionB))
		s.Submit(t0)

		r, err := Score(s, DefaultResolver)
		require.NoError(t, err)
		assert.Equal(t, tc.correct, r.PerQuestion[0].IsCorrect)
	}
}

func TestScore_NegativeMarksNotApplied(t *testing.T) {
	qs := []QuestionRecord{{CorrectProvisional: strp("A"), Marks: 4, NegativeMarks: 1}}
	s, err := Start(qs, Config{}, t0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Answer(0, OptionD))
	s.Submit(t0)

	r, err := Score(s, DefaultResolver)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.ObtainedMarks)
	assert.Equal(t, 0.0, r.Percentage)
}

func TestScore_ZeroMarkQuestion(t *testing.T) {
	qs := []QuestionRecord{
		{Text: "warm-up", CorrectProvisional: strp("A"), Marks: 0},
		{Text: "real", CorrectProvisional: strp("B"), Marks: 2},
	}
	s, err := Start(qs, Config{}, t0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Answer(0, OptionA))
	s.Submit(t0)

	r, err := Score(s, DefaultResolver)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.PerQuestion[0].Question.Marks)
	assert.True(t, r.PerQuestion[0].IsCorrect)
	assert.Equal(t, 1, r.CorrectCount)
	assert.Equal(t, 2.0, r.TotalMarks)
	assert.Equal(t, 0.0, r.ObtainedMarks)
	assert.Equal(t, 0.0, r.Percentage)
}

func TestScore_AllZeroMarks(t *testing.T) {
	s, err := Start([]QuestionRecord{{CorrectProvisional: strp("A")}}, Config{}, t0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Answer(0, OptionA))
	s.Submit(t0)

	r, err := Score(s, DefaultResolver)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.TotalMarks)
	assert.Equal(t, 0.0, r.Percentage)
}

func TestScore_CustomResolver(t *testing.T) {
	s := scenarioSession(t)
	s.Submit(t0)

	alwaysB := ResolverFunc(func(QuestionRecord, bool) Option { return OptionB })
	r, err := Score(s, alwaysB)
	require.NoError(t, err)
	assert.Equal(t, 1, r.CorrectCount)
	assert.True(t, r.PerQuestion[1].IsCorrect)
}
