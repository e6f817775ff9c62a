// Package source reads question banks from spreadsheet workbooks.
package source

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/stemsi/litmusq-backend/internal/quiz"
	"github.com/xuri/excelize/v2"
)

// Column headers recognised in a bank sheet. Matching ignores case and
// surrounding spaces.
const (
	ColSerialNo           = "Sl No"
	ColQuestion           = "Question"
	ColOptionA            = "Option A"
	ColOptionB            = "Option B"
	ColOptionC            = "Option C"
	ColOptionD            = "Option D"
	ColExplanation        = "Explanation"
	ColCorrectFinal       = "Correct Option (Final)"
	ColCorrectProvisional = "Correct Option (Provisional)"
	ColMarks              = "Marks"
	ColNegativeMarks      = "Negative Marks"
)

var requiredColumns = []string{ColQuestion, ColOptionA, ColOptionB, ColOptionC, ColOptionD}

var (
	ErrUnreadableWorkbook = errors.New("not a readable xlsx workbook")
	ErrSheetNotFound      = errors.New("sheet not found")
	ErrMissingColumn      = errors.New("missing required column")
	ErrInvalidNumeric     = errors.New("invalid numeric cell")
)

// Sheet is one parsed worksheet.
type Sheet struct {
	Name      string
	Questions []quiz.QuestionRecord
}

// SheetNames lists the worksheets of a workbook in tab order.
func SheetNames(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// ReadWorkbook parses sheetName from the workbook in r. An empty sheetName
// picks the first sheet.
func ReadWorkbook(r io.Reader, sheetName string) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	defer f.Close()

	if sheetName == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrSheetNotFound
		}
		sheetName = sheets[0]
	} else if idx, _ := f.GetSheetIndex(sheetName); idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheetName)
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}

	questions, err := parseRows(rows)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheetName, err)
	}
	return &Sheet{Name: sheetName, Questions: questions}, nil
}

func parseRows(rows [][]string) ([]quiz.QuestionRecord, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, ColQuestion)
	}

	cols := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		cols[normalizeHeader(h)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[normalizeHeader(name)]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := cols[normalizeHeader(name)]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []quiz.QuestionRecord
	for n, row := range rows[1:] {
		line := n + 2
		text := cell(row, ColQuestion)
		if text == "" {
			continue
		}

		q := quiz.QuestionRecord{
			Text: text,
			OptionText: [4]string{
				cell(row, ColOptionA), cell(row, ColOptionB),
				cell(row, ColOptionC), cell(row, ColOptionD),
			},
			Explanation:        cell(row, ColExplanation),
			CorrectFinal:       optional(cell(row, ColCorrectFinal)),
			CorrectProvisional: optional(cell(row, ColCorrectProvisional)),
		}

		q.SerialNo = len(out) + 1
		if raw := cell(row, ColSerialNo); raw != "" {
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d %s=%q", ErrInvalidNumeric, line, ColSerialNo, raw)
			}
			q.SerialNo = int(f)
		}

		var err error
		q.Marks = quiz.DefaultMarks
		if raw := cell(row, ColMarks); raw != "" {
			if q.Marks, err = number(raw); err != nil || q.Marks < 0 {
				return nil, fmt.Errorf("%w: row %d %s=%q", ErrInvalidNumeric, line, ColMarks, raw)
			}
		}
		if q.NegativeMarks, err = number(cell(row, ColNegativeMarks)); err != nil {
			return nil, fmt.Errorf("%w: row %d %s", err, line, ColNegativeMarks)
		}

		out = append(out, q)
	}
	return out, nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func number(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, ErrInvalidNumeric
	}
	return f, nil
}
