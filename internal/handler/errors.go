package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/litmusq-backend/internal/quiz"
	"github.com/stemsi/litmusq-backend/internal/repository"
	"github.com/stemsi/litmusq-backend/internal/response"
	"github.com/stemsi/litmusq-backend/internal/service"
	"github.com/stemsi/litmusq-backend/internal/source"
)

// classify maps a service or core error to an HTTP status and error code.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, quiz.ErrInvalidOption):
		return http.StatusBadRequest, response.ErrInvalidOption
	case errors.Is(err, quiz.ErrQuestionOutOfRange):
		return http.StatusBadRequest, response.ErrQuestionOutOfRange
	case errors.Is(err, quiz.ErrInvalidRetestMode):
		return http.StatusBadRequest, response.ErrInvalidRetestMode
	case errors.Is(err, quiz.ErrSessionTerminated):
		return http.StatusConflict, response.ErrSessionTerminated
	case errors.Is(err, quiz.ErrSessionNotSubmitted):
		return http.StatusConflict, response.ErrSessionNotSubmitted
	case errors.Is(err, repository.ErrSessionBusy):
		return http.StatusConflict, response.ErrSessionBusy
	case errors.Is(err, quiz.ErrEmptySelection):
		return http.StatusUnprocessableEntity, response.ErrNothingToRetest
	case errors.Is(err, quiz.ErrNoQuestions):
		return http.StatusUnprocessableEntity, response.ErrNoQuestions
	case errors.Is(err, quiz.ErrNegativeMarks),
		errors.Is(err, source.ErrUnreadableWorkbook),
		errors.Is(err, source.ErrSheetNotFound),
		errors.Is(err, source.ErrMissingColumn),
		errors.Is(err, source.ErrInvalidNumeric):
		return http.StatusUnprocessableEntity, response.ErrInvalidSheet
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrResultNotFound),
		errors.Is(err, service.ErrBankNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrNotOwner):
		return http.StatusForbidden, response.ErrNotOwner
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// failWith writes the envelope for err, logging anything unexpected.
func failWith(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.Fail(c, status, code)
}
