package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/litmusq-backend/internal/config"
	"github.com/stemsi/litmusq-backend/internal/middleware"
	"github.com/stemsi/litmusq-backend/internal/model"
	"github.com/stemsi/litmusq-backend/internal/quiz"
	"github.com/stemsi/litmusq-backend/internal/repository"
	"github.com/stemsi/litmusq-backend/internal/response"
	"github.com/stemsi/litmusq-backend/internal/service"
	"github.com/stemsi/litmusq-backend/internal/validator"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

func strp(s string) *string { return &s }

// memBanks is an in-memory bank store and question source.
type memBanks struct {
	mu        sync.Mutex
	banks     map[uuid.UUID]model.QuestionBank
	questions map[uuid.UUID][]quiz.QuestionRecord
}

func (m *memBanks) List(context.Context) ([]model.QuestionBank, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.QuestionBank, 0, len(m.banks))
	for _, b := range m.banks {
		out = append(out, b)
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
	return &b, nil
}

func (m *memBanks) Upsert(_ context.Context, b *model.QuestionBank, qs []quiz.QuestionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = uuid.New()
	b.QuestionCount = len(qs)
	m.banks[b.ID] = *b
	m.questions[b.ID] = qs
	return nil
}

func (m *memBanks) LoadQuestions(_ context.Context, id uuid.UUID) ([]quiz.QuestionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]quiz.QuestionRecord(nil), m.questions[id]...), nil
}

func (m *memBanks) Invalidate(context.Context, uuid.UUID) error { return nil }

// memProgress is an in-memory result history with soft deletes.
type memProgress struct {
	mu      sync.Mutex
	results map[int][]quiz.Result
	deleted map[uuid.UUID]bool
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
	r := m.results[userID][i]
	return &r, nil
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

// directQueue writes results straight into the history so tests need no worker.
type directQueue struct{ progress *memProgress }

func (q directQueue) Push(ctx context.Context, e repository.ResultEntry) error {
	return q.progress.AppendResult(ctx, e.UserID, e.Result)
}

type fixture struct {
	engine *gin.Engine
	auth   *service.AuthService
	store  *repository.SessionStore
	svc    *service.SessionService
	bankID uuid.UUID
}

// newFixture serves the session, history and bank routes over miniredis and
// in-memory stores. The bank has three questions worth [1,1,2] keyed [A,C,B].
func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	banks := &memBanks{banks: map[uuid.UUID]model.QuestionBank{}, questions: map[uuid.UUID][]quiz.QuestionRecord{}}
	progress := &memProgress{results: map[int][]quiz.Result{}, deleted: map[uuid.UUID]bool{}}

	bank := &model.QuestionBank{Name: "Physics"}
	require.NoError(t, banks.Upsert(context.Background(), bank, []quiz.QuestionRecord{
		{SerialNo: 1, Text: "q1", OptionText: [4]string{"a", "b", "c", "d"}, CorrectProvisional: strp("A"), Marks: 1},
		{SerialNo: 2, Text: "q2", OptionText: [4]string{"a", "b", "c", "d"}, CorrectProvisional: strp("C"), Marks: 1},
		{SerialNo: 3, Text: "q3", OptionText: [4]string{"a", "b", "c", "d"}, CorrectProvisional: strp("B"), Marks: 2},
	}))

	log := zerolog.Nop()
	store := repository.NewSessionStore(rdb, time.Hour)
	svc := service.NewSessionService(store, banks, banks, progress, directQueue{progress}, log)
	bankSvc := service.NewBankService(banks, banks, log)
	auth := service.NewAuthService(&config.Config{JWTSecret: "handler-test-secret", JWTExpiry: time.Hour})

	r := gin.New()
	r.Use(response.RequestIDMiddleware())

	sessions := NewSessionHandler(svc, log)
	history := NewHistoryHandler(svc, log)
	bankH := NewBankHandler(bankSvc, 1<<20, log)
	wsH := NewWSHandler(svc, store, log, nil)

	r.GET("/banks", bankH.ListBanks)
	r.POST("/admin/banks", middleware.RequireJWT(auth), middleware.RequireRole(service.RoleAdmin), bankH.ImportBank)

	api := r.Group("", middleware.RequireJWT(auth))
	api.POST("/sessions", sessions.StartSession)
	api.GET("/sessions/active", sessions.GetActiveSession)
	api.GET("/sessions/:id", sessions.GetSession)
	api.POST("/sessions/:id/goto", sessions.GoTo)
	api.POST("/sessions/:id/next", sessions.Next)
	api.POST("/sessions/:id/previous", sessions.Previous)
	api.PUT("/sessions/:id/answers/:index", sessions.Answer)
	api.DELETE("/sessions/:id/answers/:index", sessions.ClearAnswer)
	api.POST("/sessions/:id/marks/:index", sessions.ToggleMark)
	api.POST("/sessions/:id/submit", sessions.Submit)
	api.GET("/history", history.ListHistory)
	api.GET("/history/:result_id", history.GetResult)
	api.DELETE("/history/:result_id", history.DeleteResult)
	api.POST("/history/:result_id/retest", history.Retest)

	r.GET("/ws/sessions/:id/stream", middleware.RequireWSAuth(auth), wsH.SessionStream)

	return &fixture{engine: r, auth: auth, store: store, svc: svc, bankID: bank.ID}
}

func (f *fixture) token(t *testing.T, userID int, role service.Role) string {
	t.Helper()
	tok, err := f.auth.GenerateToken(userID, role)
	require.NoError(t, err)
	return tok
}

// envelope is the decoded response.Response with raw data.
type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return f.serve(t, req)
}

func (f *fixture) upload(t *testing.T, token string, fields map[string]string, filename string, file []byte) (int, envelope) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/banks", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return f.serve(t, req)
}

func (f *fixture) serve(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

// sessionOf decodes {"session": ...}.
func sessionOf(t *testing.T, env envelope) model.SessionView {
	t.Helper()
	var data struct {
		Session model.SessionView `json:"session"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.Session
}

func (f *fixture) start(t *testing.T, token string, minutes int) model.SessionView {
	t.Helper()
	code, env := f.do(t, http.MethodPost, "/sessions", token, map[string]any{
		"bank_id":          f.bankID,
		"duration_minutes": minutes,
		"shuffle":          false,
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	return sessionOf(t, env)
}
