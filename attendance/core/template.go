package core

import (
	"bytes"

	"github.com/xuri/excelize/v2"
)

// BuildTemplate produces an example workbook with the canonical column
// names and one sample row. Convenience only; uploads may use any header
// names the mapping resolver or an explicit mapping can bind.
func BuildTemplate() (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	headers := make([]interface{}, len(CanonicalFields))
	for i, field := range CanonicalFields {
		headers[i] = field
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, err
	}

	example := []interface{}{"E123", "jane.doe@example.com", "2025-11-03", "09:00", "17:30", "Australia/Brisbane", "gate-2", "badge reissued"}
	if err := f.SetSheetRow(sheet, "A2", &example); err != nil {
		return nil, err
	}

	return f.WriteToBuffer()
}
