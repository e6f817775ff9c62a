package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/litmusq-backend/internal/model"
	"github.com/stemsi/litmusq-backend/internal/quiz"
	"github.com/stemsi/litmusq-backend/internal/repository"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func strp(s string) *string { return &s }

// memBanks is an in-memory BankStore and QuestionSource.
type memBanks struct {
	mu        sync.Mutex
	banks     map[uuid.UUID]*model.QuestionBank
	questions map[uuid.UUID][]quiz.QuestionRecord
	loads     int
}

func newMemBanks() *memBanks {
	return &memBanks{
		banks:     map[uuid.UUID]*model.QuestionBank{},
		questions: map[uuid.UUID][]quiz.QuestionRecord{},
	}
}

func (m *memBanks) add(name string, qs []quiz.QuestionRecord) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.banks[id] = &model.QuestionBank{ID: id, Name: name, QuestionCount: len(qs)}
	m.questions[id] = qs
	return id
}

func (m *memBanks) List(context.Context) ([]model.QuestionBank, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.QuestionBank
	for _, b := range m.banks {
		out = append(out, *b)
	}
	return out, nil
}

func (m *memBanks) GetByID(_ context.Context, id uuid.UUID) (*model.QuestionBank, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.banks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *b
	return &cp, nil
}

func (m *memBanks) Upsert(_ context.Context, b *model.QuestionBank, qs []quiz.QuestionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.banks {
		if existing.Name == b.Name {
			b.ID = id
		}
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.QuestionCount = len(qs)
	cp := *b
	m.banks[b.ID] = &cp
	m.questions[b.ID] = qs
	return nil
}

func (m *memBanks) LoadQuestions(_ context.Context, id uuid.UUID) ([]quiz.QuestionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	return append([]quiz.QuestionRecord(nil), m.questions[id]...), nil
}

// memProgress is an in-memory ProgressStore. Deleted results keep their
// slot so a second append of the same id stays a no-op.
type memProgress struct {
	mu      sync.Mutex
	results map[int][]quiz.Result
	deleted map[uuid.UUID]bool
}

func newMemProgress() *memProgress {
	return &memProgress{results: map[int][]quiz.Result{}, deleted: map[uuid.UUID]bool{}}
}

func (m *memProgress) find(userID int, id uuid.UUID) int {
	for i, r := range m.results[userID] {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (m *memProgress) AppendResult(_ context.Context, userID int, r *quiz.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.find(userID, r.ID) < 0 {
		m.results[userID] = append(m.results[userID], *r)
	}
	return nil
}

func (m *memProgress) LoadHistory(_ context.Context, userID int) ([]quiz.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []quiz.Result
	for _, r := range m.results[userID] {
		if !m.deleted[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memProgress) GetResult(_ context.Context, userID int, id uuid.UUID) (*quiz.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(userID, id)
	if i < 0 {
		return nil, pgx.ErrNoRows
	}
	if m.deleted[id] {
		return nil, repository.ErrResultDeleted
	}
	cp := m.results[userID][i]
	return &cp, nil
}

func (m *memProgress) DeleteHistoryEntry(_ context.Context, userID int, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.find(userID, id) < 0 || m.deleted[id] {
		return false, nil
	}
	m.deleted[id] = true
	return true, nil
}

func (m *memProgress) DiscardResult(_ context.Context, userID int, r *quiz.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.find(userID, r.ID) < 0 {
		m.results[userID] = append(m.results[userID], *r)
	}
	m.deleted[r.ID] = true
	return nil
}

// memQueue records pushed results, or fails when err is set.
type memQueue struct {
	mu      sync.Mutex
	entries []repository.ResultEntry
	err     error
}

func (q *memQueue) Push(_ context.Context, e repository.ResultEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.entries = append(q.entries, e)
	return nil
}

func (q *memQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
