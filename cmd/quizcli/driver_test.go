package main

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stemsi/litmusq-backend/internal/quiz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

// bank has three questions worth [1,1,2] keyed [A,C,B].
func bank() []quiz.QuestionRecord {
	return []quiz.QuestionRecord{
		{Text: "q1", CorrectProvisional: strp("A"), Marks: 1},
		{Text: "q2", CorrectProvisional: strp("C"), Marks: 1},
		{Text: "q3", CorrectProvisional: strp("B"), Marks: 2},
	}
}

func runWithin(t *testing.T, d *driver, sess *quiz.Session) (*quiz.Result, bool) {
	t.Helper()
	type outcome struct {
		res *quiz.Result
		ok  bool
	}
	done := make(chan outcome, 1)
	go func() {
		res, ok := d.run(sess)
		done <- outcome{res, ok}
	}()

	select {
	case o := <-done:
		return o.res, o.ok
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not finish")
		return nil, false
	}
}

func TestDriver_Commands(t *testing.T) {
	var out bytes.Buffer
	d := newDriver(&out, strings.NewReader("a A\nn\na b\nm\nx\ns\ny\n"))

	sess, err := quiz.Start(bank(), quiz.Config{ExamName: "CLI"}, time.Now(), nil)
	require.NoError(t, err)

	res, ok := runWithin(t, d, sess)
	require.True(t, ok)
	assert.Equal(t, 2, res.Attempted)
	assert.Equal(t, 1, res.CorrectCount)
	assert.Equal(t, 25.0, res.Percentage)
	assert.True(t, res.PerQuestion[1].Marked)
	assert.Contains(t, out.String(), help)

	next, ok := d.askRetest(res)
	require.True(t, ok)
	require.Len(t, next, 2)
	assert.Equal(t, "q2", next[0].Text)
	assert.Equal(t, "q3", next[1].Text)
}

func TestDriver_QuitOnEndOfInput(t *testing.T) {
	d := newDriver(io.Discard, strings.NewReader("a A\n"))
	sess, err := quiz.Start(bank(), quiz.Config{}, time.Now(), nil)
	require.NoError(t, err)

	res, ok := runWithin(t, d, sess)
	assert.False(t, ok)
	assert.Nil(t, res)
	assert.False(t, sess.Submitted())
}

func TestDriver_IdlePromptSubmitsAtDeadline(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	var out bytes.Buffer
	d := newDriver(&out, pr)
	d.tick = 10 * time.Millisecond

	start := time.Now()
	sess, err := quiz.Start(bank(), quiz.Config{DurationMinutes: 1}, start, nil)
	require.NoError(t, err)
	d.now = func() time.Time { return start.Add(time.Minute + time.Second) }

	// Nothing is ever typed.
	res, ok := runWithin(t, d, sess)
	require.True(t, ok)
	assert.True(t, sess.Submitted())
	assert.Equal(t, *sess.Clock.Deadline, res.SubmittedAt)
	assert.Equal(t, 0, res.Attempted)
	assert.Contains(t, out.String(), "Time is up.")
}
