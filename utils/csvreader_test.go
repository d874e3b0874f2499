package utils

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParseCSV(t *testing.T) {
	csvData := `employee_identifier,date,time_in
E100,2025-11-03,09:00
"E2,2",2025-11-03,09:30`

	reader := strings.NewReader(csvData)

	got, err := ParseCSV(reader, 0)
	if err != nil {
		t.Fatalf("ParseCSV returned error: %v", err)
	}

	want := [][]string{
		{"employee_identifier", "date", "time_in"},
		{"E100", "2025-11-03", "09:00"},
		{"E2,2", "2025-11-03", "09:30"},
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseCSV returned %+v, want %+v", got, want)
	}
}

func TestParseCSVRowLimit(t *testing.T) {
	csvData := `a,b
1,2
3,4
5,6`

	_, err := ParseCSV(strings.NewReader(csvData), 2)
	if err != nil {
		t.Fatalf("limit of 2 should admit 2 data rows: %v", err)
	}

	_, err = ParseCSV(strings.NewReader(csvData), 1)
	if !errors.Is(err, ErrRowLimit) {
		t.Errorf("expected ErrRowLimit, got %v", err)
	}
}

func TestParseCSVRaggedRows(t *testing.T) {
	csvData := `a,b,c
1,2
3,4,5,6`

	got, err := ParseCSV(strings.NewReader(csvData), 0)
	if err != nil {
		t.Fatalf("ParseCSV returned error: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 records, got %d", len(got))
	}
}
