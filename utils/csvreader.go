package utils

import (
	"encoding/csv"
	"errors"
	"io"
)

// ErrRowLimit is returned when a CSV stream holds more data rows than the
// caller allows.
var ErrRowLimit = errors.New("row limit exceeded")

// ParseCSV decodes delimited text into records. Quoted fields containing
// the delimiter are handled by encoding/csv. maxRows caps the number of
// data rows (the header row is not counted); 0 means unlimited.
func ParseCSV(r io.Reader, maxRows int) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are resolved against headers later

	var records [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		records = append(records, record)
		if maxRows > 0 && len(records) > maxRows+1 {
			return nil, ErrRowLimit
		}
	}

	return records, nil
}
