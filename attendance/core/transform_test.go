package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rostera.com.au/rostera/attendance/model"
	rcore "rostera.com.au/rostera/core"
	"rostera.com.au/rostera/utils"
)

type fakeDirectory struct {
	byCode  map[string]*rcore.Employee
	byEmail map[string]*rcore.Employee
}

func (d *fakeDirectory) FindByCode(_ context.Context, code string) (*rcore.Employee, error) {
	return d.byCode[code], nil
}

func (d *fakeDirectory) FindByEmail(_ context.Context, email string) (*rcore.Employee, error) {
	return d.byEmail[email], nil
}

type fakeEvents struct {
	existing map[string]*model.AttendanceEvent
}

func slotKey(employeeID uint, workDate, timeIn string) string {
	return fmt.Sprintf("%d|%s|%s", employeeID, workDate, timeIn)
}

func (e *fakeEvents) FindEventBySlot(_ context.Context, employeeID uint, workDate, timeIn string) (*model.AttendanceEvent, error) {
	if e.existing == nil {
		return nil, nil
	}
	return e.existing[slotKey(employeeID, workDate, timeIn)], nil
}

func templateMapping() ColumnMapping {
	mapping, _, _ := ResolveColumnMapping(CanonicalFields, ColumnMapping{})
	return mapping
}

func newTestTransformer(events *fakeEvents) *Transformer {
	jane := &rcore.Employee{EmployeeID: 7, Code: "E123", FirstName: "Jane", Surname: "Doe"}
	if events == nil {
		events = &fakeEvents{}
	}
	return &Transformer{
		Mapping:         templateMapping(),
		DefaultTimezone: "Australia/Brisbane",
		Directory: &fakeDirectory{
			byCode:  map[string]*rcore.Employee{"E123": jane},
			byEmail: map[string]*rcore.Employee{"jane.doe@example.com": jane},
		},
		Events: events,
	}
}

func punchRow(overrides map[string]string) RawRow {
	fields := map[string]string{
		FieldEmployeeIdentifier: "E123",
		FieldEmployeeEmail:      "",
		FieldDate:               "2025-11-03",
		FieldTimeIn:             "09:00",
		FieldTimeOut:            "17:30",
		FieldTimezone:           "Asia/Kolkata",
		FieldDeviceID:           "",
		FieldNotes:              "",
	}
	for k, v := range overrides {
		fields[k] = v
	}
	return RawRow{Number: 1, Fields: fields}
}

func TestTransformSuccess(t *testing.T) {
	tr := newTestTransformer(nil)

	candidate, rowErr, err := tr.Transform(context.Background(), punchRow(nil), 1)
	require.NoError(t, err)
	require.Nil(t, rowErr)
	require.NotNil(t, candidate)

	assert.Equal(t, uint(7), candidate.EmployeeID)
	assert.Equal(t, "2025-11-03", candidate.WorkDate)
	assert.Equal(t, "09:00", candidate.TimeIn)
	require.NotNil(t, candidate.TimeOut)
	assert.Equal(t, "17:30", *candidate.TimeOut)
	assert.Equal(t, "Asia/Kolkata", candidate.Timezone)
	assert.Nil(t, candidate.DeviceID)
	assert.Nil(t, candidate.Notes)
}

func TestTransformOptionalFields(t *testing.T) {
	tr := newTestTransformer(nil)

	row := punchRow(map[string]string{
		FieldTimeOut:  "",
		FieldTimezone: "",
		FieldDeviceID: "gate-2",
		FieldNotes:    "badge reissued",
	})

	candidate, rowErr, err := tr.Transform(context.Background(), row, 1)
	require.NoError(t, err)
	require.Nil(t, rowErr)

	assert.Nil(t, candidate.TimeOut)
	assert.Equal(t, "Australia/Brisbane", candidate.Timezone)
	assert.Equal(t, "gate-2", *candidate.DeviceID)
	assert.Equal(t, "badge reissued", *candidate.Notes)
}

func TestTransformOvernightShift(t *testing.T) {
	tr := newTestTransformer(nil)

	row := punchRow(map[string]string{FieldTimeIn: "22:00", FieldTimeOut: "06:00"})

	candidate, rowErr, err := tr.Transform(context.Background(), row, 1)
	require.NoError(t, err)
	require.Nil(t, rowErr)

	assert.Equal(t, "22:00", candidate.TimeIn)
	assert.Equal(t, "06:00", *candidate.TimeOut)
	require.NotNil(t, candidate.Notes)
	assert.Contains(t, *candidate.Notes, "overnight shift")
}

func TestTransformEmailFallback(t *testing.T) {
	tr := newTestTransformer(nil)

	row := punchRow(map[string]string{
		FieldEmployeeIdentifier: "UNKNOWN",
		FieldEmployeeEmail:      "jane.doe@example.com",
	})

	candidate, rowErr, err := tr.Transform(context.Background(), row, 1)
	require.NoError(t, err)
	require.Nil(t, rowErr)
	assert.Equal(t, uint(7), candidate.EmployeeID)
}

func TestTransformRowErrors(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
		kind      RowErrorKind
	}{
		{
			name:      "Missing identifier",
			overrides: map[string]string{FieldEmployeeIdentifier: ""},
			kind:      ErrMissingField,
		},
		{
			name:      "Missing date",
			overrides: map[string]string{FieldDate: ""},
			kind:      ErrMissingField,
		},
		{
			name:      "Missing time in",
			overrides: map[string]string{FieldTimeIn: ""},
			kind:      ErrMissingField,
		},
		{
			name:      "Date in wrong format",
			overrides: map[string]string{FieldDate: "03/11/2025"},
			kind:      ErrInvalidDate,
		},
		{
			name:      "Impossible date",
			overrides: map[string]string{FieldDate: "2025-02-30"},
			kind:      ErrInvalidDate,
		},
		{
			name:      "Time in out of range",
			overrides: map[string]string{FieldTimeIn: "25:00"},
			kind:      ErrInvalidTime,
		},
		{
			name:      "Time out not a time",
			overrides: map[string]string{FieldTimeOut: "evening"},
			kind:      ErrInvalidTime,
		},
		{
			name:      "Unknown timezone",
			overrides: map[string]string{FieldTimezone: "Mars/Olympus_Mons"},
			kind:      ErrInvalidTimezone,
		},
		{
			name:      "Unknown employee",
			overrides: map[string]string{FieldEmployeeIdentifier: "E999"},
			kind:      ErrEmployeeNotFound,
		},
		{
			name: "Unknown employee and unknown email",
			overrides: map[string]string{
				FieldEmployeeIdentifier: "E999",
				FieldEmployeeEmail:      "nobody@example.com",
			},
			kind: ErrEmployeeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTransformer(nil)

			candidate, rowErr, err := tr.Transform(context.Background(), punchRow(tt.overrides), 1)
			require.NoError(t, err)
			require.NotNil(t, rowErr)
			assert.Nil(t, candidate)
			assert.Equal(t, tt.kind, rowErr.Kind)
			assert.NotEmpty(t, rowErr.Message)
		})
	}
}

func TestTransformValidationOrder(t *testing.T) {
	// a row broken in several ways reports the earliest check only
	tr := newTestTransformer(nil)

	row := punchRow(map[string]string{
		FieldDate:               "garbage",
		FieldTimeIn:             "garbage",
		FieldEmployeeIdentifier: "E999",
	})

	_, rowErr, err := tr.Transform(context.Background(), row, 1)
	require.NoError(t, err)
	require.NotNil(t, rowErr)
	assert.Equal(t, ErrInvalidDate, rowErr.Kind)
}

func TestTransformDuplicateSlot(t *testing.T) {
	events := &fakeEvents{existing: map[string]*model.AttendanceEvent{
		slotKey(7, "2025-11-03", "09:00"): {
			ID:          41,
			EmployeeID:  7,
			WorkDate:    "2025-11-03",
			TimeIn:      "09:00",
			UploadRowID: utils.Ptr(uint(5)),
		},
	}}
	tr := newTestTransformer(events)

	// another row owns the slot
	candidate, rowErr, err := tr.Transform(context.Background(), punchRow(nil), 1)
	require.NoError(t, err)
	require.NotNil(t, rowErr)
	assert.Nil(t, candidate)
	assert.Equal(t, ErrDuplicateRow, rowErr.Kind)

	// the same row retried against its own earlier event is not a duplicate
	candidate, rowErr, err = tr.Transform(context.Background(), punchRow(nil), 5)
	require.NoError(t, err)
	require.Nil(t, rowErr)
	require.NotNil(t, candidate)
}
