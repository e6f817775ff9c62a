package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/litmusq-backend/internal/quiz"
)

// ErrResultDeleted is returned by GetResult for a result its owner deleted.
var ErrResultDeleted = errors.New("result deleted")

// ResultEntry is a scored Result waiting to be stored for its owner.
type ResultEntry struct {
	UserID   int          `json:"user_id"`
	Result   *quiz.Result `json:"result"`
	Attempts int          `json:"attempts,omitempty"`
}

// ResultRepository is the Progress Store: a user's scored test history.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

const insertResultSQL = `INSERT INTO quiz_results (
		id, user_id, exam_name, bank_id, origin_of, use_final_key, started_at, submitted_at,
		total_questions, attempted, correct_count, total_marks, obtained_marks, percentage, per_question)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (id) DO NOTHING`

func insertArgs(userID int, r *quiz.Result) ([]any, error) {
	perQuestion, err := json.Marshal(r.PerQuestion)
	if err != nil {
		return nil, fmt.Errorf("encode per-question detail: %w", err)
	}
	return []any{
		r.ID, userID, r.ExamName, r.BankID, r.OriginOf, r.UseFinalKey, r.StartedAt, r.SubmittedAt,
		r.TotalQuestions, r.Attempted, r.CorrectCount, r.TotalMarks, r.ObtainedMarks, r.Percentage, perQuestion,
	}, nil
}

// discardResultSQL stores a result already marked deleted, or marks the
// stored one. A later insertResultSQL for the same id then does nothing.
const discardResultSQL = `INSERT INTO quiz_results (
		id, user_id, exam_name, bank_id, origin_of, use_final_key, started_at, submitted_at,
		total_questions, attempted, correct_count, total_marks, obtained_marks, percentage, per_question,
		deleted_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
	ON CONFLICT (id) DO UPDATE
	SET deleted_at = COALESCE(quiz_results.deleted_at, EXCLUDED.deleted_at)
	WHERE quiz_results.user_id = EXCLUDED.user_id`

// AppendResult stores one result. Storing the same result twice is a no-op,
// and so is storing a result that was already discarded.
func (r *ResultRepository) AppendResult(ctx context.Context, userID int, res *quiz.Result) error {
	args, err := insertArgs(userID, res)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, insertResultSQL, args...)
	return err
}

// AppendBatch stores many results in a single round trip.
func (r *ResultRepository) AppendBatch(ctx context.Context, entries []ResultEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		args, err := insertArgs(e.UserID, e.Result)
		if err != nil {
			return err
		}
		batch.Queue(insertResultSQL, args...)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

const resultColumns = `id, exam_name, bank_id, origin_of, use_final_key, started_at, submitted_at,
	total_questions, attempted, correct_count, total_marks, obtained_marks, percentage`

func scanResult(row pgx.Row, res *quiz.Result, extra ...any) error {
	dest := []any{
		&res.ID, &res.ExamName, &res.BankID, &res.OriginOf, &res.UseFinalKey, &res.StartedAt, &res.SubmittedAt,
		&res.TotalQuestions, &res.Attempted, &res.CorrectCount, &res.TotalMarks, &res.ObtainedMarks, &res.Percentage,
	}
	return row.Scan(append(dest, extra...)...)
}

// LoadHistory returns a user's results, newest first. Per-question detail is
// left out; use GetResult for a single full record.
func (r *ResultRepository) LoadHistory(ctx context.Context, userID int) ([]quiz.Result, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+`
		 FROM quiz_results WHERE user_id = $1 AND deleted_at IS NULL
		 ORDER BY submitted_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []quiz.Result
	for rows.Next() {
		var res quiz.Result
		if err := scanResult(rows, &res); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// GetResult loads one of the user's results with its per-question detail.
// Returns pgx.ErrNoRows when the user has no such result and
// ErrResultDeleted when the user deleted it.
func (r *ResultRepository) GetResult(ctx context.Context, userID int, id uuid.UUID) (*quiz.Result, error) {
	res := &quiz.Result{}
	var (
		perQuestion []byte
		deleted     bool
	)
	err := scanResult(r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+`, per_question, deleted_at IS NOT NULL
		 FROM quiz_results WHERE id = $1 AND user_id = $2`, id, userID,
	), res, &perQuestion, &deleted)
	if err != nil {
		return nil, err
	}
	if deleted {
		return nil, ErrResultDeleted
	}
	if err := json.Unmarshal(perQuestion, &res.PerQuestion); err != nil {
		return nil, fmt.Errorf("decode per-question detail: %w", err)
	}
	return res, nil
}

// DeleteHistoryEntry marks one of the user's stored results deleted and
// reports whether a live one existed. The row stays so a queued copy of the
// same result cannot be inserted again.
func (r *ResultRepository) DeleteHistoryEntry(ctx context.Context, userID int, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_results SET deleted_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DiscardResult records res as deleted for userID, whether or not it has
// been stored yet.
func (r *ResultRepository) DiscardResult(ctx context.Context, userID int, res *quiz.Result) error {
	args, err := insertArgs(userID, res)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, discardResultSQL, args...)
	return err
}
