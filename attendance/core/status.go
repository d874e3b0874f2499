package core

import (
	"context"

	"gorm.io/gorm"
	"rostera.com.au/rostera/attendance/model"
	rcore "rostera.com.au/rostera/core"
	"rostera.com.au/rostera/utils"
)

// FailedRowDetail is what a polling client needs to correct the source
// file: the row's position and a specific error message.
type FailedRowDetail struct {
	RowNumber    int    `json:"rowNumber"`
	ErrorKind    string `json:"errorKind"`
	ErrorMessage string `json:"errorMessage"`
}

// Snapshot is a read-only view over one upload. It is taken from the
// persisted state and never blocks on job processing.
type Snapshot struct {
	Upload      model.Upload
	FailedRows  []FailedRowDetail
	FailedTotal int64
}

// ListUploads pages the tenant's uploads, newest first.
func ListUploads(ctx context.Context, dm *rcore.DatabaseManager, tenant string, limit, offset int) ([]model.Upload, int64, error) {
	var uploads []model.Upload
	var total int64
	err := dm.Exec(ctx, tenant, func(db *gorm.DB) error {
		var err error
		uploads, total, err = listUploads(db, limit, offset)
		return err
	})
	return uploads, total, err
}

// GetStatus reads the current snapshot for an upload. Failed rows are
// ordered by their position in the source file, not by completion order,
// and paginated with limit/offset.
func GetStatus(ctx context.Context, dm *rcore.DatabaseManager, tenant, id string, limit, offset int) (*Snapshot, error) {
	var snapshot *Snapshot
	err := dm.Exec(ctx, tenant, func(db *gorm.DB) error {
		upload, err := getUpload(db, id)
		if err != nil {
			return err
		}
		if upload == nil {
			return ErrUploadNotFound
		}

		failedTotal, err := countRowsByOutcome(db, id, model.RowFailed)
		if err != nil {
			return err
		}

		var rows []model.UploadRow
		if err := db.
			Where("upload_id = ? AND outcome = ?", id, model.RowFailed).
			Order("row_number").
			Limit(limit).
			Offset(offset).
			Find(&rows).Error; err != nil {
			return err
		}

		details := utils.Map(rows, func(row model.UploadRow) FailedRowDetail {
			detail := FailedRowDetail{RowNumber: row.RowNumber}
			if row.ErrorKind != nil {
				detail.ErrorKind = *row.ErrorKind
			}
			if row.ErrorMessage != nil {
				detail.ErrorMessage = *row.ErrorMessage
			}
			return detail
		})

		snapshot = &Snapshot{Upload: *upload, FailedRows: details, FailedTotal: failedTotal}
		return nil
	})
	return snapshot, err
}
