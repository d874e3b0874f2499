package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveColumnMapping(t *testing.T) {
	tests := []struct {
		name     string
		headers  []string
		explicit ColumnMapping
		want     ColumnMapping
		missing  []string
	}{
		{
			name:    "Canonical headers",
			headers: []string{"employee_identifier", "date", "time_in", "time_out"},
			want: ColumnMapping{
				EmployeeIdentifier: "employee_identifier",
				Date:               "date",
				TimeIn:             "time_in",
				TimeOut:            "time_out",
			},
		},
		{
			name:    "Synonyms with mixed case and spaces",
			headers: []string{"Staff ID", "Work Date", "Punch In", "Punch Out", "Terminal"},
			want: ColumnMapping{
				EmployeeIdentifier: "Staff ID",
				Date:               "Work Date",
				TimeIn:             "Punch In",
				TimeOut:            "Punch Out",
				DeviceID:           "Terminal",
			},
		},
		{
			name:    "Synonym priority picks check_in over in",
			headers: []string{"emp_id", "date", "in", "check_in"},
			want: ColumnMapping{
				EmployeeIdentifier: "emp_id",
				Date:               "date",
				TimeIn:             "check_in",
			},
		},
		{
			name:     "Explicit choice beats inference",
			headers:  []string{"employee_identifier", "date", "time_in", "custom_start"},
			explicit: ColumnMapping{TimeIn: "custom_start"},
			want: ColumnMapping{
				EmployeeIdentifier: "employee_identifier",
				Date:               "date",
				TimeIn:             "custom_start",
			},
		},
		{
			name:    "Blank header is never auto-inferred",
			headers: []string{"", "date", "time_in"},
			want: ColumnMapping{
				Date:   "date",
				TimeIn: "time_in",
			},
			missing: []string{FieldEmployeeIdentifier},
		},
		{
			name:     "Blank header selectable via placeholder",
			headers:  []string{"", "date", "time_in"},
			explicit: ColumnMapping{EmployeeIdentifier: "unnamed-column-0"},
			want: ColumnMapping{
				EmployeeIdentifier: "unnamed-column-0",
				Date:               "date",
				TimeIn:             "time_in",
			},
		},
		{
			name:    "No identifier-like column",
			headers: []string{"name", "date", "time_in"},
			want: ColumnMapping{
				Date:   "date",
				TimeIn: "time_in",
			},
			missing: []string{FieldEmployeeIdentifier},
		},
		{
			name:    "Email column does not satisfy the identifier",
			headers: []string{"email", "date", "time_in"},
			want: ColumnMapping{
				EmployeeEmail: "email",
				Date:          "date",
				TimeIn:        "time_in",
			},
			missing: []string{FieldEmployeeIdentifier},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapping, missing, err := ResolveColumnMapping(tt.headers, tt.explicit)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, mapping)
			assert.Equal(t, tt.missing, missing)
		})
	}
}

func TestResolveColumnMappingUnknownColumn(t *testing.T) {
	headers := []string{"employee_id", "date", "time_in"}

	_, _, err := ResolveColumnMapping(headers, ColumnMapping{TimeIn: "start_of_shift"})

	var unknownCol *UnknownColumnError
	assert.ErrorAs(t, err, &unknownCol)
	assert.Equal(t, FieldTimeIn, unknownCol.Field)
	assert.Equal(t, "start_of_shift", unknownCol.Column)
}

func TestResolveColumnMappingDeterministic(t *testing.T) {
	headers := []string{"Badge", "shift_date", "Start", "Finish", "tz", "remarks"}

	first, firstMissing, err := ResolveColumnMapping(headers, ColumnMapping{})
	assert.NoError(t, err)
	for i := 0; i < 20; i++ {
		mapping, missing, err := ResolveColumnMapping(headers, ColumnMapping{})
		assert.NoError(t, err)
		assert.Equal(t, first, mapping)
		assert.Equal(t, firstMissing, missing)
	}
}

func TestResolveColumnMappingColumnClaimedOnce(t *testing.T) {
	// an explicitly claimed column is off limits to inference
	headers := []string{"employee_id", "date", "time_in"}
	mapping, missing, err := ResolveColumnMapping(headers, ColumnMapping{TimeOut: "time_in"})

	assert.NoError(t, err)
	assert.Equal(t, []string{FieldTimeIn}, missing)
	assert.Equal(t, "", mapping.TimeIn)
	assert.Equal(t, "time_in", mapping.TimeOut)
}

func TestNormalizeHeaders(t *testing.T) {
	got := NormalizeHeaders([]string{" Badge ", "", "date"})
	assert.Equal(t, []string{"Badge", "unnamed-column-1", "date"}, got)
}
