package core

import (
	"fmt"
	"strings"

	"rostera.com.au/rostera/utils"
)

// Logical fields a punch file can carry.
const (
	FieldEmployeeIdentifier = "employee_identifier"
	FieldEmployeeEmail      = "employee_email"
	FieldDate               = "date"
	FieldTimeIn             = "time_in"
	FieldTimeOut            = "time_out"
	FieldTimezone           = "timezone"
	FieldDeviceID           = "device_id"
	FieldNotes              = "notes"
)

// CanonicalFields lists every logical field in template column order.
var CanonicalFields = []string{
	FieldEmployeeIdentifier,
	FieldEmployeeEmail,
	FieldDate,
	FieldTimeIn,
	FieldTimeOut,
	FieldTimezone,
	FieldDeviceID,
	FieldNotes,
}

// RequiredFields must be mapped before a job may enter processing.
var RequiredFields = []string{FieldEmployeeIdentifier, FieldDate, FieldTimeIn}

// fieldSynonyms in priority order; the first synonym found among the
// headers wins for its field.
var fieldSynonyms = map[string][]string{
	FieldEmployeeIdentifier: {"employee_identifier", "employee_id", "employee_code", "employee_no", "emp_id", "staff_id", "staff_no", "badge", "tag"},
	FieldEmployeeEmail:      {"employee_email", "email", "e_mail", "mail"},
	FieldDate:               {"date", "work_date", "workdate", "shift_date", "day"},
	FieldTimeIn:             {"time_in", "timein", "check_in", "checkin", "punch_in", "punchin", "clock_in", "clockin", "start_time", "start", "in"},
	FieldTimeOut:            {"time_out", "timeout", "check_out", "checkout", "punch_out", "punchout", "clock_out", "clockout", "end_time", "finish_time", "finish", "end", "out"},
	FieldTimezone:           {"timezone", "time_zone", "tz", "zone"},
	FieldDeviceID:           {"device_id", "deviceid", "device", "terminal", "terminal_id", "machine_id"},
	FieldNotes:              {"notes", "note", "comment", "comments", "remarks"},
}

// ColumnMapping binds logical fields to source column names. Empty means
// unmapped.
type ColumnMapping struct {
	EmployeeIdentifier string `json:"employee_identifier,omitempty"`
	EmployeeEmail      string `json:"employee_email,omitempty"`
	Date               string `json:"date,omitempty"`
	TimeIn             string `json:"time_in,omitempty"`
	TimeOut            string `json:"time_out,omitempty"`
	Timezone           string `json:"timezone,omitempty"`
	DeviceID           string `json:"device_id,omitempty"`
	Notes              string `json:"notes,omitempty"`
}

func (m *ColumnMapping) Column(field string) string {
	switch field {
	case FieldEmployeeIdentifier:
		return m.EmployeeIdentifier
	case FieldEmployeeEmail:
		return m.EmployeeEmail
	case FieldDate:
		return m.Date
	case FieldTimeIn:
		return m.TimeIn
	case FieldTimeOut:
		return m.TimeOut
	case FieldTimezone:
		return m.Timezone
	case FieldDeviceID:
		return m.DeviceID
	case FieldNotes:
		return m.Notes
	}
	return ""
}

func (m *ColumnMapping) setColumn(field, column string) {
	switch field {
	case FieldEmployeeIdentifier:
		m.EmployeeIdentifier = column
	case FieldEmployeeEmail:
		m.EmployeeEmail = column
	case FieldDate:
		m.Date = column
	case FieldTimeIn:
		m.TimeIn = column
	case FieldTimeOut:
		m.TimeOut = column
	case FieldTimezone:
		m.Timezone = column
	case FieldDeviceID:
		m.DeviceID = column
	case FieldNotes:
		m.Notes = column
	}
}

// Merge overlays explicit client choices onto m. Explicit choices always
// win over inferred ones.
func (m *ColumnMapping) Merge(explicit ColumnMapping) {
	for _, field := range CanonicalFields {
		if col := explicit.Column(field); col != "" {
			m.setColumn(field, col)
		}
	}
}

// MappingIncompleteError blocks entry into processing; it is not a fatal
// job error.
type MappingIncompleteError struct {
	Missing []string
}

func (e *MappingIncompleteError) Error() string {
	return fmt.Sprintf("column mapping incomplete, unmapped required fields: %s", strings.Join(e.Missing, ", "))
}

// UnknownColumnError rejects an explicit mapping naming a column the file
// does not have. Caught at submission time; accepting it would fail every
// row with MissingField instead.
type UnknownColumnError struct {
	Field  string
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("column %q mapped to %s does not exist in the file", e.Column, e.Field)
}

// NormalizeHeaders trims headers and assigns blank cells a synthetic
// placeholder so they can still be selected explicitly. Placeholders are
// never auto-inferred.
func NormalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("unnamed-column-%d", i)
		}
		out[i] = h
	}
	return out
}

func canonicalHeader(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return h
}

// ResolveColumnMapping infers a mapping from the normalized header row,
// then overlays the client's explicit choices. It returns the mapping and
// the required fields still unmapped; a non-empty remainder means the job
// cannot start processing yet. An explicit choice naming a column the file
// does not have is an UnknownColumnError.
func ResolveColumnMapping(headers []string, explicit ColumnMapping) (ColumnMapping, []string, error) {
	headers = NormalizeHeaders(headers)

	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}

	used := make(map[string]bool)
	for _, field := range CanonicalFields {
		if col := explicit.Column(field); col != "" {
			if !known[col] {
				return ColumnMapping{}, nil, &UnknownColumnError{Field: field, Column: col}
			}
			used[col] = true
		}
	}

	var mapping ColumnMapping
	for _, field := range CanonicalFields {
		if explicit.Column(field) != "" {
			continue
		}
		for _, syn := range fieldSynonyms[field] {
			matched := ""
			for i, h := range headers {
				if strings.HasPrefix(h, "unnamed-column-") {
					continue // placeholders are explicit-only
				}
				if canonicalHeader(h) == syn && !used[headers[i]] {
					matched = headers[i]
					break
				}
			}
			if matched != "" {
				mapping.setColumn(field, matched)
				used[matched] = true
				break
			}
		}
	}

	mapping.Merge(explicit)
	return mapping, unmappedRequired(mapping), nil
}

func unmappedRequired(mapping ColumnMapping) []string {
	missing := utils.Filter(RequiredFields, func(field string) bool {
		return mapping.Column(field) == ""
	})
	if len(missing) == 0 {
		return nil
	}
	return missing
}
