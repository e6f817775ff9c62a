package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionBank is a named collection of questions, usually one sheet of an
// imported workbook.
type QuestionBank struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	SheetName     string    `json:"sheet_name"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ImportBankRequest carries the form fields sent alongside an uploaded workbook.
type ImportBankRequest struct {
	Name        string `form:"name" binding:"required,min=3,max=255"`
	Description string `form:"description" binding:"omitempty,max=2000"`
	// SheetName picks the worksheet; empty means the first sheet.
	SheetName string `form:"sheet_name" binding:"omitempty,max=255"`
}
