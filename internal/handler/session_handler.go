package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/litmusq-backend/internal/middleware"
	"github.com/stemsi/litmusq-backend/internal/model"
	"github.com/stemsi/litmusq-backend/internal/quiz"
	"github.com/stemsi/litmusq-backend/internal/response"
	"github.com/stemsi/litmusq-backend/internal/service"
	"github.com/stemsi/litmusq-backend/internal/validator"
)

// SessionHandler exposes the running-test endpoints.
type SessionHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "session_handler").Logger(),
	}
}

// StartSession godoc
// POST /api/v1/sessions
// Starts a test over a question bank.
func (h *SessionHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessionService.Start(c.Request.Context(), claims.UserID, service.StartParams{
		BankID:          req.BankID,
		ExamName:        req.ExamName,
		Count:           req.Count,
		DurationMinutes: req.DurationMinutes,
		UseFinalKey:     req.UseFinalKey,
		Shuffle:         *req.Shuffle,
	})
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": model.NewSessionView(sess, time.Now())})
}

// GetActiveSession godoc
// GET /api/v1/sessions/active
// Returns the caller's unfinished session, for resuming after a reload.
func (h *SessionHandler) GetActiveSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	h.respond(c, func() (*quiz.Session, error) {
		return h.sessionService.Active(c.Request.Context(), claims.UserID)
	})
}

// GetSession godoc
// GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	h.withSession(c, h.sessionService.Get)
}

// GoTo godoc
// POST /api/v1/sessions/:id/goto
func (h *SessionHandler) GoTo(c *gin.Context) {
	var req model.GoToRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.withSession(c, func(ctx context.Context, userID int, id uuid.UUID) (*quiz.Session, error) {
		return h.sessionService.GoTo(ctx, userID, id, *req.Index)
	})
}

// Next godoc
// POST /api/v1/sessions/:id/next
func (h *SessionHandler) Next(c *gin.Context) {
	h.withSession(c, h.sessionService.Next)
}

// Previous godoc
// POST /api/v1/sessions/:id/previous
func (h *SessionHandler) Previous(c *gin.Context) {
	h.withSession(c, h.sessionService.Previous)
}

// Answer godoc
// PUT /api/v1/sessions/:id/answers/:index
func (h *SessionHandler) Answer(c *gin.Context) {
	idx, ok := parseIndex(c)
	if !ok {
		return
	}
	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	opt, err := quiz.ParseOption(req.Option)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	h.withSession(c, func(ctx context.Context, userID int, id uuid.UUID) (*quiz.Session, error) {
		return h.sessionService.Answer(ctx, userID, id, idx, opt)
	})
}

// ClearAnswer godoc
// DELETE /api/v1/sessions/:id/answers/:index
func (h *SessionHandler) ClearAnswer(c *gin.Context) {
	idx, ok := parseIndex(c)
	if !ok {
		return
	}
	h.withSession(c, func(ctx context.Context, userID int, id uuid.UUID) (*quiz.Session, error) {
		return h.sessionService.Clear(ctx, userID, id, idx)
	})
}

// ToggleMark godoc
// POST /api/v1/sessions/:id/marks/:index
func (h *SessionHandler) ToggleMark(c *gin.Context) {
	idx, ok := parseIndex(c)
	if !ok {
		return
	}
	h.withSession(c, func(ctx context.Context, userID int, id uuid.UUID) (*quiz.Session, error) {
		return h.sessionService.ToggleMark(ctx, userID, id, idx)
	})
}

// Submit godoc
// POST /api/v1/sessions/:id/submit
// Ends the test and returns the scored result with answer keys.
func (h *SessionHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.sessionService.Submit(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// ─── helpers ────────────────────────────────────────────────────────

type sessionOp func(ctx context.Context, userID int, id uuid.UUID) (*quiz.Session, error)

func (h *SessionHandler) withSession(c *gin.Context, op sessionOp) {
	claims := middleware.GetClaims(c)
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	h.respond(c, func() (*quiz.Session, error) {
		return op(c.Request.Context(), claims.UserID, id)
	})
}

func (h *SessionHandler) respond(c *gin.Context, load func() (*quiz.Session, error)) {
	sess, err := load()
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": model.NewSessionView(sess, time.Now())})
}

func parseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func parseIndex(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrQuestionOutOfRange)
		return 0, false
	}
	return idx, true
}
