package core

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"
)

func TestParseFileCSV(t *testing.T) {
	src := strings.Join([]string{
		`employee_id,date,time_in,notes`,
		`E123,2025-11-03,09:00,"late, roadworks"`,
		`E124,2025-11-03, 08:55 ,`,
	}, "\n")

	parsed, err := ParseFile(strings.NewReader(src), "punches.csv", 100)
	assert.NoError(t, err)
	assert.Equal(t, []string{"employee_id", "date", "time_in", "notes"}, parsed.Headers)
	assert.Len(t, parsed.Rows, 2)

	assert.Equal(t, 1, parsed.Rows[0].Number)
	assert.Equal(t, "late, roadworks", parsed.Rows[0].Fields["notes"])
	assert.Equal(t, "08:55", parsed.Rows[1].Fields["time_in"])
	assert.Equal(t, "", parsed.Rows[1].Fields["notes"])
}

func TestParseFileRaggedRows(t *testing.T) {
	src := "employee_id,date,time_in\nE123,2025-11-03\nE124,2025-11-03,09:00,extra"

	parsed, err := ParseFile(strings.NewReader(src), "punches.csv", 100)
	assert.NoError(t, err)
	assert.Len(t, parsed.Rows, 2)

	// short rows pad with blanks, long rows drop the overflow
	assert.Equal(t, "", parsed.Rows[0].Fields["time_in"])
	assert.Equal(t, "09:00", parsed.Rows[1].Fields["time_in"])
	assert.Len(t, parsed.Rows[1].Fields, 3)
}

func TestParseFileBlankHeaders(t *testing.T) {
	src := "employee_id,,time_in\nE123,2025-11-03,09:00"

	parsed, err := ParseFile(strings.NewReader(src), "punches.csv", 100)
	assert.NoError(t, err)
	assert.Equal(t, []string{"employee_id", "unnamed-column-1", "time_in"}, parsed.Headers)
	assert.Equal(t, "2025-11-03", parsed.Rows[0].Fields["unnamed-column-1"])
}

func TestParseFileRowLimit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("employee_id,date,time_in\n")
	for i := 0; i < 3; i++ {
		sb.WriteString("E123,2025-11-03,09:00\n")
	}

	parsed, err := ParseFile(strings.NewReader(sb.String()), "punches.csv", 3)
	assert.NoError(t, err)
	assert.Len(t, parsed.Rows, 3)

	sb.WriteString("E123,2025-11-03,09:00\n")
	_, err = ParseFile(strings.NewReader(sb.String()), "punches.csv", 3)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestParseFileUnsupportedFormat(t *testing.T) {
	tests := []string{"punches.xls", "punches.pdf", "punches"}
	for _, filename := range tests {
		t.Run(filename, func(t *testing.T) {
			_, err := ParseFile(strings.NewReader("x"), filename, 100)
			assert.ErrorIs(t, err, ErrUnsupportedFormat)
		})
	}
}

func TestParseFileUnreadable(t *testing.T) {
	_, err := ParseFile(strings.NewReader(""), "punches.csv", 100)
	assert.ErrorIs(t, err, ErrFileUnreadable)

	_, err = ParseFile(strings.NewReader("not a workbook"), "punches.xlsx", 100)
	assert.ErrorIs(t, err, ErrFileUnreadable)
}

func TestParseFileSpreadsheet(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	assert.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Staff ID", "Work Date", "Punch In", "Punch Out"}))
	assert.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"E123", "2025-11-03", "09:00", "17:30"}))
	assert.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"E124", "2025-11-03", "22:00", "06:00"}))

	buf, err := f.WriteToBuffer()
	assert.NoError(t, err)

	parsed, err := ParseFile(bytes.NewReader(buf.Bytes()), "punches.xlsx", 100)
	assert.NoError(t, err)
	assert.Equal(t, []string{"Staff ID", "Work Date", "Punch In", "Punch Out"}, parsed.Headers)
	assert.Len(t, parsed.Rows, 2)
	assert.Equal(t, "22:00", parsed.Rows[1].Fields["Punch In"])
}

func TestParseFileSpreadsheetRowLimit(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	assert.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"employee_id", "date", "time_in"}))
	for i := 0; i < 3; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		assert.NoError(t, err)
		assert.NoError(t, f.SetSheetRow(sheet, cell, &[]any{"E123", "2025-11-03", "09:00"}))
	}

	buf, err := f.WriteToBuffer()
	assert.NoError(t, err)

	_, err = ParseFile(bytes.NewReader(buf.Bytes()), "punches.xlsx", 2)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestTemplateRoundTrip(t *testing.T) {
	buf, err := BuildTemplate()
	assert.NoError(t, err)

	parsed, err := ParseFile(bytes.NewReader(buf.Bytes()), "attendance-template.xlsx", 100)
	assert.NoError(t, err)
	assert.Equal(t, CanonicalFields, parsed.Headers)
	assert.Len(t, parsed.Rows, 1)

	_, missing, err := ResolveColumnMapping(parsed.Headers, ColumnMapping{})
	assert.NoError(t, err)
	assert.Empty(t, missing)
}
