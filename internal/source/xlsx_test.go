package source

import (
	"bytes"
	"testing"

	"github.com/stemsi/litmusq-backend/internal/quiz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, sheets map[string][][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cellRef, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cellRef, &row))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

var header = []any{
	"Sl No", "Question", "Option A", "Option B", "Option C", "Option D",
	"Explanation", "Correct Option (Final)", "correct option (provisional)", "Marks", "Negative Marks",
}

func TestReadWorkbook(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"Physics": {
			header,
			{11, "Unit of force?", "Newton", "Joule", "Watt", "Pascal", "F=ma", "A", "B", 2, 0.5},
			{nil, "", "", "", "", ""},
			{"", "Unit of power?", "Newton", "Joule", "Watt", "Pascal", "", "", "3"},
		},
	})

	sheet, err := ReadWorkbook(buf, "")
	require.NoError(t, err)
	assert.Equal(t, "Physics", sheet.Name)
	require.Len(t, sheet.Questions, 2)

	q := sheet.Questions[0]
	assert.Equal(t, 11, q.SerialNo)
	assert.Equal(t, "Unit of force?", q.Text)
	assert.Equal(t, [4]string{"Newton", "Joule", "Watt", "Pascal"}, q.OptionText)
	assert.Equal(t, "F=ma", q.Explanation)
	assert.Equal(t, quiz.OptionA, quiz.ResolveAnswerKey(q, true))
	assert.Equal(t, quiz.OptionB, quiz.ResolveAnswerKey(q, false))
	assert.Equal(t, 2.0, q.Marks)
	assert.Equal(t, 0.5, q.NegativeMarks)

	q = sheet.Questions[1]
	assert.Equal(t, 2, q.SerialNo)
	assert.Nil(t, q.CorrectFinal)
	assert.Equal(t, quiz.OptionC, quiz.ResolveAnswerKey(q, true))
	assert.Equal(t, quiz.DefaultMarks, q.Marks)
}

func TestReadWorkbook_Marks(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"Marks": {
			header,
			{1, "zero", "a", "b", "c", "d", "", "", "A", 0},
			{2, "blank", "a", "b", "c", "d", "", "", "A", ""},
			{3, "two", "a", "b", "c", "d", "", "", "A", 2},
		},
	})

	sheet, err := ReadWorkbook(buf, "")
	require.NoError(t, err)
	require.Len(t, sheet.Questions, 3)
	assert.Equal(t, 0.0, sheet.Questions[0].Marks)
	assert.Equal(t, quiz.DefaultMarks, sheet.Questions[1].Marks)
	assert.Equal(t, 2.0, sheet.Questions[2].Marks)
}

func TestReadWorkbook_NegativeMarks(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"Bad": {header, {1, "q", "a", "b", "c", "d", "", "", "A", -1}},
	})

	_, err := ReadWorkbook(buf, "")
	assert.ErrorIs(t, err, ErrInvalidNumeric)
	assert.Contains(t, err.Error(), "row 2")
}

func TestReadWorkbook_NamedSheet(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"Chemistry": {header, {1, "pH of water?", "7", "1", "14", "0", "", "A"}},
	})

	_, err := ReadWorkbook(bytes.NewReader(buf.Bytes()), "Biology")
	assert.ErrorIs(t, err, ErrSheetNotFound)

	sheet, err := ReadWorkbook(bytes.NewReader(buf.Bytes()), "Chemistry")
	require.NoError(t, err)
	assert.Len(t, sheet.Questions, 1)

	names, err := SheetNames(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{"Chemistry"}, names)
}

func TestReadWorkbook_MissingColumn(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"Bad": {{"Question", "Option A", "Option B", "Option C"}},
	})

	_, err := ReadWorkbook(buf, "")
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "Option D")
}

func TestReadWorkbook_BadNumber(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"Bad": {header, {1, "q", "a", "b", "c", "d", "", "", "A", "lots"}},
	})

	_, err := ReadWorkbook(buf, "")
	assert.ErrorIs(t, err, ErrInvalidNumeric)
	assert.Contains(t, err.Error(), "row 2")
}
