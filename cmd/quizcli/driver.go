package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/stemsi/litmusq-backend/internal/quiz"
)

const help = "Commands: n next, p prev, g <no> go to, a <A-D> answer, c clear, m mark, s submit, q quit"

type driver struct {
	out   io.Writer
	lines chan string
	// tick is how often an idle prompt checks the deadline.
	tick time.Duration
	now  func() time.Time
}

// newDriver starts reading in line by line in the background.
func newDriver(out io.Writer, in io.Reader) *driver {
	d := &driver{
		out:   out,
		lines: make(chan string),
		tick:  time.Second,
		now:   time.Now,
	}
	go func() {
		defer close(d.lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			d.lines <- sc.Text()
		}
	}()
	return d
}

// run drives sess until it is submitted. ok is false when the user quits.
func (d *driver) run(sess *quiz.Session) (*quiz.Result, bool) {
	_ = sess.GoTo(0)
	fmt.Fprintln(d.out, help)

	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	for !sess.Submitted() {
		d.printQuestion(sess)
		fmt.Fprint(d.out, "> ")

		line, open, expired := d.readLine(sess, ticker.C)
		now := d.now()
		if expired || (open && sess.IsExpired(now)) {
			fmt.Fprintln(d.out, "\nTime is up.")
			sess.Submit(*sess.Clock.Deadline)
			break
		}
		if !open {
			return nil, false
		}

		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		var err error
		switch strings.ToLower(cmd) {
		case "n":
			err = sess.Next()
		case "p":
			err = sess.Previous()
		case "g":
			var no int
			if no, err = strconv.Atoi(arg); err == nil {
				err = sess.GoTo(no - 1)
			}
		case "a":
			var opt quiz.Option
			if opt, err = quiz.ParseOption(arg); err == nil {
				err = sess.Answer(sess.CurrentIndex(), opt)
			}
		case "c":
			err = sess.ClearAnswer(sess.CurrentIndex())
		case "m":
			err = sess.ToggleMark(sess.CurrentIndex())
		case "s":
			sess.Submit(now)
		case "q":
			return nil, false
		default:
			fmt.Fprintln(d.out, help)
		}
		if err != nil {
			fmt.Fprintf(d.out, "! %v\n", err)
		}
	}

	res, err := quiz.Score(sess, quiz.DefaultResolver)
	if err != nil {
		fmt.Fprintf(d.out, "! %v\n", err)
		return nil, false
	}
	return res, true
}

// readLine waits for the next input line. expired is set as soon as sess
// passes its deadline, without waiting for input. open is false once input ends.
func (d *driver) readLine(sess *quiz.Session, tick <-chan time.Time) (line string, open, expired bool) {
	for {
		select {
		case l, ok := <-d.lines:
			return l, ok, false
		case <-tick:
			if sess.IsExpired(d.now()) {
				return "", true, true
			}
		}
	}
}

func (d *driver) printQuestion(sess *quiz.Session) {
	idx := sess.CurrentIndex()
	q, _ := sess.Question(idx)
	st, _ := sess.Status(idx)
	w := width()

	fmt.Fprintf(d.out, "\n[%d/%d] %s", idx+1, sess.Len(), st.Phase)
	if left, ok := sess.Clock.Remaining(d.now()); ok {
		fmt.Fprintf(d.out, "  %s left", left.Truncate(time.Second))
	}
	fmt.Fprintf(d.out, "\n%s\n", wrap(q.Text, w))
	for i, opt := range quiz.Options {
		marker := " "
		if st.Selected == opt {
			marker = "*"
		}
		fmt.Fprintf(d.out, " %s %s) %s\n", marker, opt, wrap(q.OptionText[i], w-6))
	}
}

func (d *driver) printResult(r *quiz.Result) {
	fmt.Fprintf(d.out, "\n%s: %d/%d attempted, %d correct, %.2f/%.2f marks (%.1f%%)\n",
		r.ExamName, r.Attempted, r.TotalQuestions, r.CorrectCount, r.ObtainedMarks, r.TotalMarks, r.Percentage)
	for _, qr := range r.PerQuestion {
		mark := "x"
		if qr.IsCorrect {
			mark = "ok"
		}
		answer := string(qr.UserAnswer)
		if answer == "" {
			answer = "-"
		}
		fmt.Fprintf(d.out, " %3d  %-2s  yours %s  key %s\n", qr.Index+1, mark, answer, qr.CorrectAnswer)
	}
}

// askRetest offers a retest of the incorrect and unanswered questions.
func (d *driver) askRetest(r *quiz.Result) ([]quiz.QuestionRecord, bool) {
	next, err := quiz.DeriveRetestQuestions(r, quiz.RetestIncorrectAndUnanswered)
	if errors.Is(err, quiz.ErrEmptySelection) {
		fmt.Fprintln(d.out, "Nothing to retest.")
		return nil, false
	}
	if err != nil {
		fmt.Fprintf(d.out, "! %v\n", err)
		return nil, false
	}

	fmt.Fprintf(d.out, "Retest %d incorrect or unanswered questions? [y/N] ", len(next))
	line, ok := <-d.lines
	if !ok || !strings.EqualFold(strings.TrimSpace(line), "y") {
		return nil, false
	}
	return next, true
}
