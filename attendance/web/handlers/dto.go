package handlers

import (
	"time"

	attendance "rostera.com.au/rostera/attendance/core"
	"rostera.com.au/rostera/attendance/model"
)

type UploadCreatedDTO struct {
	UploadID       string   `json:"uploadId"`
	Status         string   `json:"status"`
	TotalRows      int      `json:"totalRows"`
	UnmappedFields []string `json:"unmappedFields,omitempty"`
}

type UploadStatusDTO struct {
	UploadID         string                       `json:"uploadId"`
	FileName         string                       `json:"fileName"`
	Status           string                       `json:"status"`
	TotalRows        int                          `json:"totalRows"`
	SucceededRows    int                          `json:"succeededRows"`
	FailedRows       int                          `json:"failedRows"`
	FatalError       *string                      `json:"fatalError,omitempty"`
	FailedRowDetails []attendance.FailedRowDetail `json:"failedRowDetails"`
	FailedRowTotal   int64                        `json:"failedRowTotal"`
}

func newStatusDTO(snapshot *attendance.Snapshot) UploadStatusDTO {
	return UploadStatusDTO{
		UploadID:         snapshot.Upload.ID,
		FileName:         snapshot.Upload.FileName,
		Status:           string(snapshot.Upload.Status),
		TotalRows:        snapshot.Upload.TotalRows,
		SucceededRows:    snapshot.Upload.SucceededRows,
		FailedRows:       snapshot.Upload.FailedRows,
		FatalError:       snapshot.Upload.FatalError,
		FailedRowDetails: snapshot.FailedRows,
		FailedRowTotal:   snapshot.FailedTotal,
	}
}

// UploadRejectedDTO is the error-shaped body for 400 responses that still
// carry the persisted upload id, so the caller can resume via the mapping
// endpoint or inspect the failed job.
type UploadRejectedDTO struct {
	Message        string   `json:"message"`
	UploadID       string   `json:"uploadId,omitempty"`
	Status         string   `json:"status,omitempty"`
	UnmappedFields []string `json:"unmappedFields,omitempty"`
}

type UploadSummaryDTO struct {
	UploadID      string `json:"uploadId"`
	FileName      string `json:"fileName"`
	Status        string `json:"status"`
	TotalRows     int    `json:"totalRows"`
	SucceededRows int    `json:"succeededRows"`
	FailedRows    int    `json:"failedRows"`
	CreatedAt     string `json:"createdAt"`
}

func newSummaryDTO(upload model.Upload) UploadSummaryDTO {
	return UploadSummaryDTO{
		UploadID:      upload.ID,
		FileName:      upload.FileName,
		Status:        string(upload.Status),
		TotalRows:     upload.TotalRows,
		SucceededRows: upload.SucceededRows,
		FailedRows:    upload.FailedRows,
		CreatedAt:     upload.CreatedAt.Format(time.RFC3339),
	}
}

// MappingDTO mirrors the recognized logical fields; every value is a
// source column name.
type MappingDTO struct {
	EmployeeIdentifier string `json:"employee_identifier"`
	EmployeeEmail      string `json:"employee_email"`
	Date               string `json:"date"`
	TimeIn             string `json:"time_in"`
	TimeOut            string `json:"time_out"`
	Timezone           string `json:"timezone"`
	DeviceID           string `json:"device_id"`
	Notes              string `json:"notes"`
}

func (d MappingDTO) toMapping() attendance.ColumnMapping {
	return attendance.ColumnMapping{
		EmployeeIdentifier: d.EmployeeIdentifier,
		EmployeeEmail:      d.EmployeeEmail,
		Date:               d.Date,
		TimeIn:             d.TimeIn,
		TimeOut:            d.TimeOut,
		Timezone:           d.Timezone,
		DeviceID:           d.DeviceID,
		Notes:              d.Notes,
	}
}

func uploadCreatedDTO(upload *model.Upload, missing []string) UploadCreatedDTO {
	return UploadCreatedDTO{
		UploadID:       upload.ID,
		Status:         string(upload.Status),
		TotalRows:      upload.TotalRows,
		UnmappedFields: missing,
	}
}
