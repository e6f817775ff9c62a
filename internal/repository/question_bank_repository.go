package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/litmusq-backend/internal/model"
	"github.com/stemsi/litmusq-backend/internal/quiz"
)

// QuestionBankRepository handles question bank data access.
type QuestionBankRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionBankRepository creates a new QuestionBankRepository.
func NewQuestionBankRepository(pool *pgxpool.Pool) *QuestionBankRepository {
	return &QuestionBankRepository{pool: pool}
}

// List returns all banks ordered by name.
func (r *QuestionBankRepository) List(ctx context.Context) ([]model.QuestionBank, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT b.id, b.name, b.description, b.sheet_name, b.created_at, b.updated_at,
		        (SELECT COUNT(*) FROM questions q WHERE q.bank_id = b.id)
		 FROM question_banks b
		 ORDER BY b.name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var banks []model.QuestionBank
	for rows.Next() {
		var b model.QuestionBank
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.SheetName, &b.CreatedAt, &b.UpdatedAt, &b.QuestionCount); err != nil {
			return nil, err
		}
		banks = append(banks, b)
	}
	return banks, rows.Err()
}

// GetByID retrieves a bank. Returns pgx.ErrNoRows when it does not exist.
func (r *QuestionBankRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.QuestionBank, error) {
	b := &model.QuestionBank{}
	err := r.pool.QueryRow(ctx,
		`SELECT b.id, b.name, b.description, b.sheet_name, b.created_at, b.updated_at,
		        (SELECT COUNT(*) FROM questions q WHERE q.bank_id = b.id)
		 FROM question_banks b WHERE b.id = $1`, id,
	).Scan(&b.ID, &b.Name, &b.Description, &b.SheetName, &b.CreatedAt, &b.UpdatedAt, &b.QuestionCount)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Upsert stores the bank under its name and replaces its questions in one transaction.
// Importing a sheet twice under the same name refreshes the bank in place.
func (r *QuestionBankRepository) Upsert(ctx context.Context, b *model.QuestionBank, questions []quiz.QuestionRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO question_banks (name, description, sheet_name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE
		 SET description = EXCLUDED.description, sheet_name = EXCLUDED.sheet_name, updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		b.Name, b.Description, b.SheetName,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert bank: %w", err)
	}

	if err := replaceForBank(ctx, tx, b.ID, questions); err != nil {
		return fmt.Errorf("copy questions: %w", err)
	}
	b.QuestionCount = len(questions)

	return tx.Commit(ctx)
}
