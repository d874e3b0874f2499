package core

import (
	"context"
	"fmt"
	"time"

	"rostera.com.au/rostera/attendance/model"
	rcore "rostera.com.au/rostera/core"
)

type RowErrorKind string

const (
	ErrMissingField     RowErrorKind = "MissingField"
	ErrInvalidDate      RowErrorKind = "InvalidDate"
	ErrInvalidTime      RowErrorKind = "InvalidTime"
	ErrInvalidTimezone  RowErrorKind = "InvalidTimezone"
	ErrEmployeeNotFound RowErrorKind = "EmployeeNotFound"
	ErrDuplicateRow     RowErrorKind = "DuplicateRow"

	// ErrInternal marks a row whose outcome could not be determined for
	// infrastructure reasons; the row stays retryable.
	ErrInternal RowErrorKind = "Internal"
)

// RowError is captured and stored with the row; it never propagates past
// the row boundary.
type RowError struct {
	Kind    RowErrorKind
	Message string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func rowErrorf(kind RowErrorKind, format string, args ...any) *RowError {
	return &RowError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// EmployeeDirectory resolves human-provided identifiers to employee
// records. Lookups miss with (nil, nil).
type EmployeeDirectory interface {
	FindByCode(ctx context.Context, code string) (*rcore.Employee, error)
	FindByEmail(ctx context.Context, email string) (*rcore.Employee, error)
}

// EventFinder checks for an already-persisted event occupying the same
// employee/date/time-in slot.
type EventFinder interface {
	FindEventBySlot(ctx context.Context, employeeID uint, workDate, timeIn string) (*model.AttendanceEvent, error)
}

// EventCandidate is a fully-typed attendance event ready for persistence.
type EventCandidate struct {
	EmployeeID uint
	WorkDate   string
	TimeIn     string
	TimeOut    *string
	Timezone   string
	DeviceID   *string
	Notes      *string
}

// Transformer converts one raw row into an event candidate. Rows are
// independent; the first failed check wins.
type Transformer struct {
	Mapping         ColumnMapping
	DefaultTimezone string
	Directory       EmployeeDirectory
	Events          EventFinder
}

// Transform validates a single raw row. Exactly one of the results is
// non-nil. A non-nil *RowError carries a message specific enough for a
// human to correct the source file.
func (t *Transformer) Transform(ctx context.Context, row RawRow, rowID uint) (*EventCandidate, *RowError, error) {
	value := func(field string) string {
		col := t.Mapping.Column(field)
		if col == "" {
			return ""
		}
		return row.Fields[col]
	}

	// 1. Required fields present.
	for _, field := range RequiredFields {
		if value(field) == "" {
			return nil, rowErrorf(ErrMissingField, "column %q (%s) is empty", t.Mapping.Column(field), field), nil
		}
	}

	// 2. Calendar date.
	rawDate := value(FieldDate)
	workDate, err := time.Parse(dateLayout, rawDate)
	if err != nil {
		return nil, rowErrorf(ErrInvalidDate, "column %q: %q is not a valid YYYY-MM-DD date", t.Mapping.Column(FieldDate), rawDate), nil
	}

	// 3. Times.
	rawTimeIn := value(FieldTimeIn)
	timeIn, err := time.Parse(timeLayout, rawTimeIn)
	if err != nil {
		return nil, rowErrorf(ErrInvalidTime, "column %q: %q is not a valid HH:MM time", t.Mapping.Column(FieldTimeIn), rawTimeIn), nil
	}

	var timeOut *time.Time
	rawTimeOut := value(FieldTimeOut)
	if rawTimeOut != "" {
		parsed, err := time.Parse(timeLayout, rawTimeOut)
		if err != nil {
			return nil, rowErrorf(ErrInvalidTime, "column %q: %q is not a valid HH:MM time", t.Mapping.Column(FieldTimeOut), rawTimeOut), nil
		}
		timeOut = &parsed
	}

	// 4. Timezone: per-row value wins over the upload default.
	tzName := value(FieldTimezone)
	if tzName == "" {
		tzName = t.DefaultTimezone
	}
	if _, err := time.LoadLocation(tzName); err != nil {
		return nil, rowErrorf(ErrInvalidTimezone, "unknown timezone %q", tzName), nil
	}

	// 5. Employee, by identifier first, then email.
	identifier := value(FieldEmployeeIdentifier)
	emp, err := t.Directory.FindByCode(ctx, identifier)
	if err != nil {
		return nil, nil, err
	}
	if emp == nil {
		if email := value(FieldEmployeeEmail); email != "" {
			emp, err = t.Directory.FindByEmail(ctx, email)
			if err != nil {
				return nil, nil, err
			}
		}
	}
	if emp == nil {
		return nil, rowErrorf(ErrEmployeeNotFound, "no employee matches identifier %q", identifier), nil
	}

	// 6. Duplicate slot from a different upload row.
	existing, err := t.Events.FindEventBySlot(ctx, emp.EmployeeID, workDate.Format(dateLayout), timeIn.Format(timeLayout))
	if err != nil {
		return nil, nil, err
	}
	if existing != nil && (existing.UploadRowID == nil || *existing.UploadRowID != rowID) {
		return nil, rowErrorf(ErrDuplicateRow, "an attendance event already exists for employee %s on %s at %s",
			emp.Code, workDate.Format(dateLayout), timeIn.Format(timeLayout)), nil
	}

	candidate := &EventCandidate{
		EmployeeID: emp.EmployeeID,
		WorkDate:   workDate.Format(dateLayout),
		TimeIn:     timeIn.Format(timeLayout),
		Timezone:   tzName,
	}

	if timeOut != nil {
		formatted := timeOut.Format(timeLayout)
		candidate.TimeOut = &formatted
	}
	if deviceID := value(FieldDeviceID); deviceID != "" {
		candidate.DeviceID = &deviceID
	}

	notes := value(FieldNotes)
	// Overnight shifts are valid: a punch-out at or before the punch-in is
	// read as the next calendar day and noted, never rejected. HH:MM values
	// bound any shift below 24 hours.
	if timeOut != nil && !timeOut.After(timeIn) {
		note := fmt.Sprintf("time_out %s is not after time_in %s; recorded as an overnight shift", rawTimeOut, rawTimeIn)
		if notes != "" {
			notes = notes + "; " + note
		} else {
			notes = note
		}
	}
	if notes != "" {
		candidate.Notes = &notes
	}

	return candidate, nil, nil
}
