package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/litmusq-backend/internal/model"
	"github.com/stemsi/litmusq-backend/internal/quiz"
	"github.com/stemsi/litmusq-backend/internal/repository"
)

// QuestionSource loads the questions of a bank in source order.
type QuestionSource interface {
	LoadQuestions(ctx context.Context, bankID uuid.UUID) ([]quiz.QuestionRecord, error)
}

// BankLookup resolves bank metadata.
type BankLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.QuestionBank, error)
}

// SessionStore parks live sessions between requests.
type SessionStore interface {
	Save(ctx context.Context, st *repository.StoredSession) error
	Load(ctx context.Context, id uuid.UUID) (*repository.StoredSession, error)
	Update(ctx context.Context, id uuid.UUID, fn func(st *repository.StoredSession) error) error
	ActiveSession(ctx context.Context, userID int) (uuid.UUID, bool, error)
	ForgetDeadline(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	Publish(ctx context.Context, id uuid.UUID, event any) error
}

// ProgressStore is a user's persisted test history.
type ProgressStore interface {
	AppendResult(ctx context.Context, userID int, r *quiz.Result) error
	LoadHistory(ctx context.Context, userID int) ([]quiz.Result, error)
	GetResult(ctx context.Context, userID int, id uuid.UUID) (*quiz.Result, error)
	DeleteHistoryEntry(ctx context.Context, userID int, id uuid.UUID) (bool, error)
	DiscardResult(ctx context.Context, userID int, r *quiz.Result) error
}

// ResultPublisher queues results for asynchronous persistence.
type ResultPublisher interface {
	Push(ctx context.Context, e repository.ResultEntry) error
}

// StartParams configures a new session from a bank.
type StartParams struct {
	BankID          uuid.UUID
	ExamName        string
	Count           int
	DurationMinutes int
	UseFinalKey     bool
	Shuffle         bool
}

// RetestParams configures a session derived from a past result.
type RetestParams struct {
	Mode            quiz.RetestMode
	Count           int
	DurationMinutes int
	UseFinalKey     bool
	Shuffle         bool
}

// errUnchanged aborts a store update that has nothing to write.
var errUnchanged = errors.New("unchanged")

// SessionService drives quiz sessions whose state lives in a SessionStore.
// Every call restores the session, applies one operation and saves it back.
type SessionService struct {
	store     SessionStore
	questions QuestionSource
	banks     BankLookup
	progress  ProgressStore
	results   ResultPublisher
	resolver  quiz.KeyResolver
	log       zerolog.Logger

	now func() time.Time
	rng *rand.Rand
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	store SessionStore,
	questions QuestionSource,
	banks BankLookup,
	progress ProgressStore,
	results ResultPublisher,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		store:     store,
		questions: questions,
		banks:     banks,
		progress:  progress,
		results:   results,
		resolver:  quiz.DefaultResolver,
		log:       log.With().Str("component", "session_service").Logger(),
		now:       time.Now,
	}
}

// Start begins a session over questions drawn from a bank and shows the first question.
func (s *SessionService) Start(ctx context.Context, userID int, p StartParams) (*quiz.Session, error) {
	bank, err := s.banks.GetByID(ctx, p.BankID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBankNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bank: %w", err)
	}

	questions, err := s.questions.LoadQuestions(ctx, p.BankID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	name := p.ExamName
	if name == "" {
		name = bank.Name
	}

	return s.begin(ctx, userID, questions, quiz.Config{
		ExamName:        name,
		BankID:          p.BankID.String(),
		Count:           p.Count,
		DurationMinutes: p.DurationMinutes,
		UseFinalKey:     p.UseFinalKey,
		Shuffle:         p.Shuffle,
	})
}

// Retest starts a fresh session from the questions of a past result that match mode.
func (s *SessionService) Retest(ctx context.Context, userID int, resultID uuid.UUID, p RetestParams) (*quiz.Session, error) {
	past, err := s.loadResult(ctx, userID, resultID)
	if err != nil {
		return nil, err
	}

	questions, err := quiz.DeriveRetestQuestions(past, p.Mode)
	if err != nil {
		return nil, err
	}

	origin := past.ID
	return s.begin(ctx, userID, questions, quiz.Config{
		ExamName:        past.ExamName,
		BankID:          past.BankID,
		Count:           p.Count,
		DurationMinutes: p.DurationMinutes,
		UseFinalKey:     p.UseFinalKey,
		Shuffle:         p.Shuffle,
		OriginOf:        &origin,
	})
}

func (s *SessionService) begin(ctx context.Context, userID int, questions []quiz.QuestionRecord, cfg quiz.Config) (*quiz.Session, error) {
	sess, err := quiz.Start(questions, cfg, s.now(), s.rng)
	if err != nil {
		return nil, err
	}
	sess.SetNow(s.now)
	if err := sess.GoTo(0); err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, &repository.StoredSession{UserID: userID, Snapshot: sess.Snapshot()}); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.log.Info().
		Int("user_id", userID).
		Str("session_id", sess.ID.String()).
		Int("questions", sess.Len()).
		Bool("timed", sess.Clock.Timed()).
		Msg("Session started")

	return sess, nil
}

// Get returns the session, submitting it first if its deadline has passed.
func (s *SessionService) Get(ctx context.Context, userID int, id uuid.UUID) (*quiz.Session, error) {
	return s.mutate(ctx, &userID, id, nil)
}

// Active returns the user's most recent unfinished session.
func (s *SessionService) Active(ctx context.Context, userID int) (*quiz.Session, error) {
	id, ok, err := s.store.ActiveSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("active session: %w", err)
	}
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Get(ctx, userID, id)
}

// GoTo moves to a question. Out-of-range indexes leave the session unchanged.
func (s *SessionService) GoTo(ctx context.Context, userID int, id uuid.UUID, idx int) (*quiz.Session, error) {
	return s.mutate(ctx, &userID, id, func(q *quiz.Session) error { return q.GoTo(idx) })
}

// Next moves to the following question.
func (s *SessionService) Next(ctx context.Context, userID int, id uuid.UUID) (*quiz.Session, error) {
	return s.mutate(ctx, &userID, id, (*quiz.Session).Next)
}

// Previous moves to the preceding question.
func (s *SessionService) Previous(ctx context.Context, userID int, id uuid.UUID) (*quiz.Session, error) {
	return s.mutate(ctx, &userID, id, (*quiz.Session).Previous)
}

// Answer selects an option for a question.
func (s *SessionService) Answer(ctx context.Context, userID int, id uuid.UUID, idx int, opt quiz.Option) (*quiz.Session, error) {
	return s.mutate(ctx, &userID, id, func(q *quiz.Session) error { return q.Answer(idx, opt) })
}

// Clear removes the selection of a question.
func (s *SessionService) Clear(ctx context.Context, userID int, id uuid.UUID, idx int) (*quiz.Session, error) {
	return s.mutate(ctx, &userID, id, func(q *quiz.Session) error { return q.ClearAnswer(idx) })
}

// ToggleMark flips the review flag of a question.
func (s *SessionService) ToggleMark(ctx context.Context, userID int, id uuid.UUID, idx int) (*quiz.Session, error) {
	return s.mutate(ctx, &userID, id, func(q *quiz.Session) error { return q.ToggleMark(idx) })
}

// Submit ends the session and returns its Result. Submitting an already
// submitted session returns the same Result again.
func (s *SessionService) Submit(ctx context.Context, userID int, id uuid.UUID) (*quiz.Result, error) {
	sess, err := s.mutate(ctx, &userID, id, func(q *quiz.Session) error {
		if q.Submitted() {
			return errUnchanged
		}
		q.Submit(s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quiz.Score(sess, s.resolver)
}

// SubmitExpired submits a session whose deadline has passed, regardless of
// owner. It reports whether this call ended the session.
func (s *SessionService) SubmitExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	var ended bool
	_, err := s.mutateWith(ctx, nil, id, nil, func() { ended = true })
	if errors.Is(err, ErrSessionNotFound) {
		return false, s.store.ForgetDeadline(ctx, id)
	}
	return ended, err
}

// History lists the user's results, newest first.
func (s *SessionService) History(ctx context.Context, userID int) ([]quiz.Result, error) {
	results, err := s.progress.LoadHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return results, nil
}

// Result returns one of the user's results with its per-question detail.
func (s *SessionService) Result(ctx context.Context, userID int, id uuid.UUID) (*quiz.Result, error) {
	return s.loadResult(ctx, userID, id)
}

// DeleteHistoryEntry removes a result from the user's history. A result
// still waiting in the persistence queue is stored as deleted so the worker
// cannot bring it back, and the submitted snapshot is dropped.
func (s *SessionService) DeleteHistoryEntry(ctx context.Context, userID int, id uuid.UUID) error {
	ok, err := s.progress.DeleteHistoryEntry(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete history entry: %w", err)
	}
	if !ok {
		res, err := s.submittedResult(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := s.progress.DiscardResult(ctx, userID, res); err != nil {
			return fmt.Errorf("discard result: %w", err)
		}
	}

	if err := s.store.Delete(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("session_id", id.String()).Msg("Drop submitted session failed")
	}
	return nil
}

// loadResult reads a result from the Progress Store. A result still queued
// for persistence is rebuilt from its submitted session, whose id it shares.
func (s *SessionService) loadResult(ctx context.Context, userID int, id uuid.UUID) (*quiz.Result, error) {
	res, err := s.progress.GetResult(ctx, userID, id)
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, repository.ErrResultDeleted):
		return nil, ErrResultNotFound
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("get result: %w", err)
	}
	return s.submittedResult(ctx, userID, id)
}

// submittedResult scores the user's submitted session id from its snapshot.
func (s *SessionService) submittedResult(ctx context.Context, userID int, id uuid.UUID) (*quiz.Result, error) {
	st, err := s.store.Load(ctx, id)
	if errors.Is(err, repository.ErrSessionMissing) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if st.UserID != userID || !st.Snapshot.Submitted {
		return nil, ErrResultNotFound
	}

	sess, err := quiz.Restore(st.Snapshot)
	if err != nil {
		return nil, err
	}
	return quiz.Score(sess, s.resolver)
}

func (s *SessionService) mutate(ctx context.Context, userID *int, id uuid.UUID, op func(*quiz.Session) error) (*quiz.Session, error) {
	return s.mutateWith(ctx, userID, id, op, nil)
}

// mutateWith restores a session, auto-submits it once the deadline has
// passed, applies op and saves the result. A nil userID skips the owner
// check. onEnded runs when this call moved the session into its terminal state.
func (s *SessionService) mutateWith(ctx context.Context, userID *int, id uuid.UUID, op func(*quiz.Session) error, onEnded func()) (*quiz.Session, error) {
	var (
		sess  *quiz.Session
		owner int
		auto  bool
		ended bool
		opErr error
	)

	err := s.store.Update(ctx, id, func(st *repository.StoredSession) error {
		auto, ended, opErr = false, false, nil

		if userID != nil && st.UserID != *userID {
			return ErrNotOwner
		}
		owner = st.UserID

		restored, err := quiz.Restore(st.Snapshot)
		if err != nil {
			return err
		}
		restored.SetNow(s.now)
		sess = restored

		if !sess.Submitted() && sess.IsExpired(s.now()) {
			sess.Submit(*sess.Clock.Deadline)
			auto, ended = true, true
		}

		if op != nil {
			wasSubmitted := sess.Submitted()
			opErr = op(sess)
			if !wasSubmitted && sess.Submitted() {
				ended = true
			}
		}

		switch {
		case ended:
		case errors.Is(opErr, errUnchanged), op == nil:
			return errUnchanged
		case opErr != nil:
			return opErr
		}

		st.Snapshot = sess.Snapshot()
		return nil
	})

	if errors.Is(err, errUnchanged) {
		err = nil
	}
	if errors.Is(opErr, errUnchanged) {
		opErr = nil
	}
	switch {
	case errors.Is(err, repository.ErrSessionMissing):
		return nil, ErrSessionNotFound
	case err != nil:
		return nil, err
	}

	if ended {
		s.finish(ctx, owner, sess, auto)
		if onEnded != nil {
			onEnded()
		}
	}
	if opErr != nil {
		return nil, opErr
	}
	return sess, nil
}

// finish scores a just-submitted session, queues the result and tells
// stream subscribers. Failures are logged; the snapshot keeps the result
// recoverable until it expires.
func (s *SessionService) finish(ctx context.Context, userID int, sess *quiz.Session, auto bool) {
	log := s.log.With().Int("user_id", userID).Str("session_id", sess.ID.String()).Logger()

	res, err := quiz.Score(sess, s.resolver)
	if err != nil {
		log.Error().Err(err).Msg("Score failed")
		return
	}

	entry := repository.ResultEntry{UserID: userID, Result: res}
	if err := s.results.Push(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("Result queue unavailable, writing directly")
		if err := s.progress.AppendResult(ctx, userID, res); err != nil {
			log.Error().Err(err).Msg("Result persist failed")
		}
	}

	event := model.SessionEvent{
		Type:      model.SessionEventSubmitted,
		SessionID: sess.ID,
		Auto:      auto,
		At:        *sess.SubmittedAt,
	}
	if err := s.store.Publish(ctx, sess.ID, event); err != nil {
		log.Warn().Err(err).Msg("Publish submit event failed")
	}

	log.Info().
		Bool("auto", auto).
		Float64("percentage", res.Percentage).
		Msg("Session submitted")
}
