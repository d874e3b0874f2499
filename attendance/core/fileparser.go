package core

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"rostera.com.au/rostera/utils"
)

// Fatal file-level errors. Any of these abort the job before a single row
// is attempted.
var (
	ErrFileTooLarge      = errors.New("file exceeds the row limit")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrFileUnreadable    = errors.New("file could not be read")
)

// RawRow is one source row, dynamic until validated: string values keyed
// by source column name.
type RawRow struct {
	Number int // 1-based position in the source file, headers excluded
	Fields map[string]string
}

// ParsedFile is the decoded upload: normalized headers plus every data
// row. Re-parsing requires re-reading the source bytes.
type ParsedFile struct {
	Headers []string
	Rows    []RawRow
}

// ParseFile decodes an uploaded punch file. Delimited text and the two
// spreadsheet variants excelize reads (.xlsx, .xlsm) are accepted; the
// first spreadsheet sheet only, with the first row as headers.
func ParseFile(r io.Reader, filename string, maxRows int) (*ParsedFile, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return parseDelimited(r, maxRows)
	case ".xlsx", ".xlsm":
		return parseSpreadsheet(r, maxRows)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

func parseDelimited(r io.Reader, maxRows int) (*ParsedFile, error) {
	records, err := utils.ParseCSV(r, maxRows)
	if err != nil {
		if errors.Is(err, utils.ErrRowLimit) {
			return nil, fmt.Errorf("%w: more than %d rows", ErrFileTooLarge, maxRows)
		}
		return nil, fmt.Errorf("%w: %v", ErrFileUnreadable, err)
	}

	return assemble(records)
}

func parseSpreadsheet(r io.Reader, maxRows int) (*ParsedFile, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileUnreadable, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrFileUnreadable)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileUnreadable, err)
	}

	if maxRows > 0 && len(rows) > maxRows+1 {
		return nil, fmt.Errorf("%w: more than %d rows", ErrFileTooLarge, maxRows)
	}

	return assemble(rows)
}

func assemble(records [][]string) (*ParsedFile, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrFileUnreadable)
	}

	headers := NormalizeHeaders(records[0])

	parsed := &ParsedFile{Headers: headers}
	for i, record := range records[1:] {
		fields := make(map[string]string, len(headers))
		for j, header := range headers {
			value := ""
			if j < len(record) {
				value = strings.TrimSpace(record[j])
			}
			fields[header] = value
		}
		parsed.Rows = append(parsed.Rows, RawRow{Number: i + 1, Fields: fields})
	}

	return parsed, nil
}
