package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/litmusq-backend/internal/middleware"
	"github.com/stemsi/litmusq-backend/internal/model"
	"github.com/stemsi/litmusq-backend/internal/quiz"
	"github.com/stemsi/litmusq-backend/internal/response"
	"github.com/stemsi/litmusq-backend/internal/service"
	"github.com/stemsi/litmusq-backend/internal/validator"
)

// HistoryHandler serves past results and retests.
type HistoryHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(sessionService *service.SessionService, log zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "history_handler").Logger(),
	}
}

// ListHistory godoc
// GET /api/v1/history
// Returns the caller's results, newest first.
func (h *HistoryHandler) ListHistory(c *gin.Context) {
	claims := middleware.GetClaims(c)

	results, err := h.sessionService.History(c.Request.Context(), claims.UserID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	entries := make([]model.HistoryEntry, len(results))
	for i, r := range results {
		entries[i] = model.NewHistoryEntry(r)
	}
	response.Success(c, http.StatusOK, gin.H{"history": entries})
}

// GetResult godoc
// GET /api/v1/history/:result_id
// Returns one result including the per-question review.
func (h *HistoryHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := parseUUID(c, "result_id")
	if !ok {
		return
	}

	result, err := h.sessionService.Result(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// DeleteResult godoc
// DELETE /api/v1/history/:result_id
func (h *HistoryHandler) DeleteResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := parseUUID(c, "result_id")
	if !ok {
		return
	}

	if err := h.sessionService.DeleteHistoryEntry(c.Request.Context(), claims.UserID, id); err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Result deleted"})
}

// Retest godoc
// POST /api/v1/history/:result_id/retest
// Starts a fresh session over the questions a past result selects.
func (h *HistoryHandler) Retest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := parseUUID(c, "result_id")
	if !ok {
		return
	}

	var req model.RetestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	mode := quiz.RetestIncorrectAndUnanswered
	if req.Mode != "" {
		var err error
		if mode, err = quiz.ParseRetestMode(req.Mode); err != nil {
			failWith(c, h.log, err)
			return
		}
	}

	sess, err := h.sessionService.Retest(c.Request.Context(), claims.UserID, id, service.RetestParams{
		Mode:            mode,
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
