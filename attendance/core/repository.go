package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"rostera.com.au/rostera/attendance/model"
	rcore "rostera.com.au/rostera/core"
)

// gormDirectory adapts a tenant-bound *gorm.DB to the transformer's
// lookup seams.
type gormDirectory struct {
	db *gorm.DB
}

func (d gormDirectory) FindByCode(ctx context.Context, code string) (*rcore.Employee, error) {
	return rcore.FindEmployeeByCode(d.db.WithContext(ctx), code)
}

func (d gormDirectory) FindByEmail(ctx context.Context, email string) (*rcore.Employee, error) {
	return rcore.FindEmployeeByEmail(d.db.WithContext(ctx), email)
}

func (d gormDirectory) FindEventBySlot(ctx context.Context, employeeID uint, workDate, timeIn string) (*model.AttendanceEvent, error) {
	var event model.AttendanceEvent
	result := d.db.WithContext(ctx).
		Where("employee_id = ? AND work_date = ? AND time_in = ?", employeeID, workDate, timeIn).
		First(&event)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &event, nil
}

const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}

func createUpload(db *gorm.DB, upload *model.Upload, rows []model.UploadRow) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(upload).Error; err != nil {
			return fmt.Errorf("failed to create upload: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return fmt.Errorf("failed to create upload rows: %w", err)
		}
		return nil
	})
}

func getUpload(db *gorm.DB, id string) (*model.Upload, error) {
	var upload model.Upload
	result := db.Where("id = ?", id).First(&upload)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &upload, nil
}

// rowsForPass returns the rows a processing pass may touch: pending on the
// initial pass, failed on a retry. Succeeded rows are never selected.
func rowsForPass(db *gorm.DB, uploadID string) ([]model.UploadRow, error) {
	var rows []model.UploadRow
	err := db.
		Where("upload_id = ? AND outcome IN ?", uploadID, []model.RowOutcome{model.RowPending, model.RowFailed}).
		Order("row_number").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rows for upload %s: %w", uploadID, err)
	}
	return rows, nil
}

func listUploads(db *gorm.DB, limit, offset int) ([]model.Upload, int64, error) {
	var total int64
	if err := db.Model(&model.Upload{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var uploads []model.Upload
	err := db.
		Order("created_at DESC, id").
		Limit(limit).
		Offset(offset).
		Find(&uploads).Error
	if err != nil {
		return nil, 0, err
	}
	return uploads, total, nil
}

func setUploadStatus(db *gorm.DB, id string, status model.UploadStatus) error {
	return db.Model(&model.Upload{}).Where("id = ?", id).
		Update("status", status).Error
}

// transitionUploadStatus flips the status only when it currently is one of
// from, in a single conditional UPDATE. The returned bool reports whether
// this caller won the transition; a loss means a concurrent request moved
// the upload first.
func transitionUploadStatus(db *gorm.DB, id string, from []model.UploadStatus, to model.UploadStatus) (bool, error) {
	result := db.Model(&model.Upload{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func setUploadMapping(db *gorm.DB, id string, mapping ColumnMapping) error {
	payload, err := json.Marshal(mapping)
	if err != nil {
		return err
	}
	return db.Model(&model.Upload{}).Where("id = ?", id).
		Update("mapping", payload).Error
}

// counterDeltas is the aggregate effect of one row outcome change on the
// upload counters. Succeeded rows never change outcome again, and a row
// failing again carries its count forward unchanged.
func counterDeltas(prior, next model.RowOutcome) (succeeded, failed int) {
	switch {
	case prior == model.RowPending && next == model.RowSucceeded:
		return 1, 0
	case prior == model.RowPending && next == model.RowFailed:
		return 0, 1
	case prior == model.RowFailed && next == model.RowSucceeded:
		return 1, -1
	default:
		return 0, 0
	}
}

// bumpCounters applies counterDeltas as single atomic SQL increments, so a
// concurrent status read never sees a half-applied transition.
func bumpCounters(db *gorm.DB, uploadID string, prior, next model.RowOutcome) error {
	dSucceeded, dFailed := counterDeltas(prior, next)
	if dSucceeded == 0 && dFailed == 0 {
		return nil
	}

	updates := map[string]interface{}{}
	if dSucceeded != 0 {
		updates["succeeded_rows"] = gorm.Expr("succeeded_rows + ?", dSucceeded)
	}
	if dFailed != 0 {
		updates["failed_rows"] = gorm.Expr("failed_rows + ?", dFailed)
	}
	return db.Model(&model.Upload{}).Where("id = ?", uploadID).
		UpdateColumns(updates).Error
}

// saveRowSuccess persists the event and flips the row in one transaction.
// A duplicate-key rejection from the storage unique index is translated
// into a DuplicateRow failure; concurrent retries or re-uploads of the
// same file race on exactly this index.
func saveRowSuccess(db *gorm.DB, row *model.UploadRow, candidate *EventCandidate) error {
	event := model.AttendanceEvent{
		EmployeeID:  candidate.EmployeeID,
		WorkDate:    candidate.WorkDate,
		TimeIn:      candidate.TimeIn,
		TimeOut:     candidate.TimeOut,
		Timezone:    candidate.Timezone,
		DeviceID:    candidate.DeviceID,
		Notes:       candidate.Notes,
		UploadRowID: &row.ID,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&event).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{
			"outcome":       model.RowSucceeded,
			"event_id":      event.ID,
			"error_kind":    nil,
			"error_message": nil,
		}
		if err := tx.Model(&model.UploadRow{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
			return err
		}
		return bumpCounters(tx, row.UploadID, row.Outcome, model.RowSucceeded)
	})

	if isDuplicateKey(err) {
		return saveRowFailure(db, row, rowErrorf(ErrDuplicateRow,
			"an attendance event already exists for this employee on %s at %s", candidate.WorkDate, candidate.TimeIn))
	}
	return err
}

func saveRowFailure(db *gorm.DB, row *model.UploadRow, rowErr *RowError) error {
	return db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"outcome":       model.RowFailed,
			"error_kind":    string(rowErr.Kind),
			"error_message": rowErr.Message,
		}
		if err := tx.Model(&model.UploadRow{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
			return err
		}
		return bumpCounters(tx, row.UploadID, row.Outcome, model.RowFailed)
	})
}

// failPendingRows marks every row still without an outcome as failed, so
// the job settles with each row terminal and the counters summing to the
// total. A row can be left pending when persisting its outcome errored
// mid-pass; the failure keeps it selectable by a retry.
func failPendingRows(db *gorm.DB, uploadID string) error {
	var rows []model.UploadRow
	err := db.
		Where("upload_id = ? AND outcome = ?", uploadID, model.RowPending).
		Find(&rows).Error
	if err != nil {
		return err
	}

	for i := range rows {
		rowErr := rowErrorf(ErrInternal, "row outcome could not be persisted; retry the upload")
		if err := saveRowFailure(db, &rows[i], rowErr); err != nil {
			return err
		}
	}
	return nil
}

func countRowsByOutcome(db *gorm.DB, uploadID string, outcome model.RowOutcome) (int64, error) {
	var count int64
	err := db.Model(&model.UploadRow{}).
		Where("upload_id = ? AND outcome = ?", uploadID, outcome).
		Count(&count).Error
	return count, err
}
