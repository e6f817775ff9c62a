package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/litmusq-backend/internal/quiz"
)

// QuestionRepository reads and writes the questions of a bank.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `serial_no, question_text, option_a, option_b, option_c, option_d,
	explanation, correct_final, correct_provisional, marks, negative_marks`

// LoadQuestions returns every question of a bank in sheet order.
func (r *QuestionRepository) LoadQuestions(ctx context.Context, bankID uuid.UUID) ([]quiz.QuestionRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+`
		 FROM questions WHERE bank_id = $1
		 ORDER BY position`, bankID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []quiz.QuestionRecord
	for rows.Next() {
		var q quiz.QuestionRecord
		if err := rows.Scan(
			&q.SerialNo, &q.Text,
			&q.OptionText[0], &q.OptionText[1], &q.OptionText[2], &q.OptionText[3],
			&q.Explanation, &q.CorrectFinal, &q.CorrectProvisional, &q.Marks, &q.NegativeMarks,
		); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// replaceForBank swaps the bank's questions inside tx using COPY.
func replaceForBank(ctx context.Context, tx pgx.Tx, bankID uuid.UUID, questions []quiz.QuestionRecord) error {
	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE bank_id = $1`, bankID); err != nil {
		return err
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"questions"},
		[]string{"bank_id", "position", "serial_no", "question_text", "option_a", "option_b", "option_c", "option_d",
			"explanation", "correct_final", "correct_provisional", "marks", "negative_marks"},
		pgx.CopyFromSlice(len(questions), func(i int) ([]any, error) {
			q := questions[i]
			return []any{
				bankID, i, q.SerialNo, q.Text,
				q.OptionText[0], q.OptionText[1], q.OptionText[2], q.OptionText[3],
				q.Explanation, q.CorrectFinal, q.CorrectProvisional, q.Marks, q.NegativeMarks,
			}, nil
		}),
	)
	return err
}
