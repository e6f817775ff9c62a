package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/litmusq-backend/internal/model"
	"github.com/stemsi/litmusq-backend/internal/response"
	"github.com/stemsi/litmusq-backend/internal/service"
	"github.com/stemsi/litmusq-backend/internal/validator"
)

// BankHandler lists and imports question banks.
type BankHandler struct {
	bankService    *service.BankService
	maxUploadBytes int64
	log            zerolog.Logger
}

// NewBankHandler creates a new BankHandler.
func NewBankHandler(bankService *service.BankService, maxUploadBytes int64, log zerolog.Logger) *BankHandler {
	return &BankHandler{
		bankService:    bankService,
		maxUploadBytes: maxUploadBytes,
		log:            log.With().Str("component", "bank_handler").Logger(),
	}
}

// ListBanks godoc
// GET /api/v1/banks
func (h *BankHandler) ListBanks(c *gin.Context) {
	banks, err := h.bankService.List(c.Request.Context())
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"banks": banks})
}

// ImportBank godoc
// POST /api/v1/admin/banks
// Imports one worksheet of an uploaded .xlsx workbook as a question bank.
// Re-importing under an existing name replaces that bank's questions.
func (h *BankHandler) ImportBank(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
			return
		}
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	var req model.ImportBankRequest
	if fields := validator.BindForm(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFile)
		return
	}

	bank, err := h.bankService.Import(c.Request.Context(), req, file)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"bank": bank})
}
