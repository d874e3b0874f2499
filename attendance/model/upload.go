package model

import (
	"time"

	"gorm.io/datatypes"
)

type UploadStatus string

const (
	UploadPending    UploadStatus = "pending"
	UploadProcessing UploadStatus = "processing"
	UploadCompleted  UploadStatus = "completed"
	UploadPartial    UploadStatus = "partial"
	UploadFailed     UploadStatus = "failed"
)

// TerminalUploadStatuses are the states a retry may leave from.
var TerminalUploadStatuses = []UploadStatus{UploadCompleted, UploadPartial, UploadFailed}

// Terminal reports whether the upload has finished a processing pass.
// A retry is the only way out of a terminal status.
func (s UploadStatus) Terminal() bool {
	return s == UploadCompleted || s == UploadPartial || s == UploadFailed
}

// Upload is one submitted punch file and its processing lifecycle.
type Upload struct {
	ID            string `gorm:"primaryKey;size:36"`
	FileName      string `gorm:"size:255"`
	Headers       datatypes.JSON
	Mapping       datatypes.JSON
	Timezone      string       `gorm:"size:64"`
	Status        UploadStatus `gorm:"size:16;index"`
	TotalRows     int
	SucceededRows int
	FailedRows    int
	FatalError    *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;<-:create"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP on update CURRENT_TIMESTAMP"`
}

func (Upload) TableName() string {
	return "attendance_uploads"
}

type RowOutcome string

const (
	RowPending   RowOutcome = "pending"
	RowSucceeded RowOutcome = "succeeded"
	RowFailed    RowOutcome = "failed"
)

// UploadRow is one source row as captured at parse time. RowNumber is
// 1-based and follows source file order, not processing order.
type UploadRow struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	UploadID     string `gorm:"size:36;uniqueIndex:idx_upload_row,priority:1;not null"`
	RowNumber    int    `gorm:"uniqueIndex:idx_upload_row,priority:2;not null"`
	RawValues    datatypes.JSONMap
	Outcome      RowOutcome `gorm:"size:16;index"`
	ErrorKind    *string    `gorm:"size:32"`
	ErrorMessage *string    `gorm:"type:text"`
	EventID      *uint

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;<-:create"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP on update CURRENT_TIMESTAMP"`
}

func (UploadRow) TableName() string {
	return "attendance_upload_rows"
}

// AttendanceEvent is a normalized punch-in/punch-out record. The unique
// index on employee + date + time-in is what makes re-imports idempotent;
// the application-level duplicate check alone would race under concurrent
// retries.
type AttendanceEvent struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	EmployeeID uint   `gorm:"uniqueIndex:idx_punch,priority:1;not null"`
	WorkDate   string `gorm:"type:date;uniqueIndex:idx_punch,priority:2;not null"`
	TimeIn     string `gorm:"size:5;uniqueIndex:idx_punch,priority:3;not null"`
	TimeOut    *string `gorm:"size:5"`
	Timezone   string  `gorm:"size:64"`
	DeviceID   *string `gorm:"size:64"`
	Notes      *string `gorm:"type:text"`
	UploadRowID *uint  `gorm:"index"`

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;<-:create"`
}

func (AttendanceEvent) TableName() string {
	return "attendance_events"
}
