package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/litmusq-backend/internal/model"
	"github.com/stemsi/litmusq-backend/internal/quiz"
	"github.com/stemsi/litmusq-backend/internal/source"
)

// BankStore persists question banks.
type BankStore interface {
	List(ctx context.Context) ([]model.QuestionBank, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.QuestionBank, error)
	Upsert(ctx context.Context, b *model.QuestionBank, questions []quiz.QuestionRecord) error
}

// BankCache is told when a bank's questions change.
type BankCache interface {
	Invalidate(ctx context.Context, bankID uuid.UUID) error
}

// BankService manages question banks.
type BankService struct {
	banks BankStore
	cache BankCache
	log   zerolog.Logger
}

// NewBankService creates a new BankService.
func NewBankService(banks BankStore, cache BankCache, log zerolog.Logger) *BankService {
	return &BankService{
		banks: banks,
		cache: cache,
		log:   log.With().Str("component", "bank_service").Logger(),
	}
}

// List returns every bank.
func (s *BankService) List(ctx context.Context) ([]model.QuestionBank, error) {
	banks, err := s.banks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list banks: %w", err)
	}
	if banks == nil {
		banks = []model.QuestionBank{}
	}
	return banks, nil
}

// Get returns one bank.
func (s *BankService) Get(ctx context.Context, id uuid.UUID) (*model.QuestionBank, error) {
	b, err := s.banks.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBankNotFound
	}
	return b, err
}

// Import reads one sheet of an XLSX workbook and stores it as a bank named
// req.Name, replacing the questions of an existing bank with that name.
func (s *BankService) Import(ctx context.Context, req model.ImportBankRequest, workbook io.Reader) (*model.QuestionBank, error) {
	sheet, err := source.ReadWorkbook(workbook, req.SheetName)
	if err != nil {
		return nil, err
	}
	if len(sheet.Questions) == 0 {
		return nil, quiz.ErrNoQuestions
	}

	bank := &model.QuestionBank{
		Name:        req.Name,
		Description: req.Description,
		SheetName:   sheet.Name,
	}
	if err := s.banks.Upsert(ctx, bank, sheet.Questions); err != nil {
		return nil, fmt.Errorf("store bank: %w", err)
	}

	if err := s.cache.Invalidate(ctx, bank.ID); err != nil {
		s.log.Warn().Err(err).Str("bank_id", bank.ID.String()).Msg("Bank cache invalidation failed")
	}

	s.log.Info().
		Str("bank_id", bank.ID.String()).
		Str("sheet", sheet.Name).
		Int("questions", len(sheet.Questions)).
		Msg("Bank imported")

	return bank, nil
}
