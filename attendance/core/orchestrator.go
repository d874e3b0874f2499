package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"rostera.com.au/rostera/attendance/model"
	rcore "rostera.com.au/rostera/core"
)

// ErrJobNotTerminal rejects a retry attempted while the job is still
// processing (or has not started).
var ErrJobNotTerminal = errors.New("upload is not in a terminal state")

// ErrUploadNotFound is returned for unknown upload ids.
var ErrUploadNotFound = errors.New("upload not found")

// Notifier receives ops alerts. Satisfied by communication.Slack.
type Notifier interface {
	Error(message string) error
}

// Orchestrator owns the lifecycle of upload jobs for every tenant. One
// job is processed by a single pass at a time; distinct jobs share nothing
// but the database pool.
type Orchestrator struct {
	dm       *rcore.DatabaseManager
	log      *logrus.Logger
	notifier Notifier
	workers  int
}

func NewOrchestrator(dm *rcore.DatabaseManager, log *logrus.Logger, notifier Notifier, workers int) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{dm: dm, log: log, notifier: notifier, workers: workers}
}

// CreateUpload persists the job record and one row per source row, with
// the mapping resolved from the header row plus the client's explicit
// choices. When required fields remain unmapped the job is created in
// pending and the missing field names are returned; processing is blocked
// until the mapping is completed.
func (o *Orchestrator) CreateUpload(ctx context.Context, tenant, fileName, timezone string, parsed *ParsedFile, explicit ColumnMapping) (*model.Upload, []string, error) {
	mapping, missing, err := ResolveColumnMapping(parsed.Headers, explicit)
	if err != nil {
		return nil, nil, err
	}

	headersJSON, err := json.Marshal(parsed.Headers)
	if err != nil {
		return nil, nil, err
	}
	mappingJSON, err := json.Marshal(mapping)
	if err != nil {
		return nil, nil, err
	}

	upload := &model.Upload{
		ID:        uuid.New().String(),
		FileName:  fileName,
		Headers:   headersJSON,
		Mapping:   mappingJSON,
		Timezone:  timezone,
		Status:    model.UploadPending,
		TotalRows: len(parsed.Rows),
	}

	rows := make([]model.UploadRow, 0, len(parsed.Rows))
	for _, raw := range parsed.Rows {
		values := make(map[string]interface{}, len(raw.Fields))
		for k, v := range raw.Fields {
			values[k] = v
		}
		rows = append(rows, model.UploadRow{
			UploadID:  upload.ID,
			RowNumber: raw.Number,
			RawValues: values,
			Outcome:   model.RowPending,
		})
	}

	if err := o.dm.Exec(ctx, tenant, func(db *gorm.DB) error {
		return createUpload(db, upload, rows)
	}); err != nil {
		return nil, nil, err
	}

	return upload, missing, nil
}

// CreateFailedUpload records a job that died before any row could be
// attempted (unreadable, too large, wrong format). Only the job record is
// persisted.
func (o *Orchestrator) CreateFailedUpload(ctx context.Context, tenant, fileName, timezone string, fatal error) (*model.Upload, error) {
	message := fatal.Error()
	upload := &model.Upload{
		ID:         uuid.New().String(),
		FileName:   fileName,
		Timezone:   timezone,
		Status:     model.UploadFailed,
		FatalError: &message,
	}

	if err := o.dm.Exec(ctx, tenant, func(db *gorm.DB) error {
		return createUpload(db, upload, nil)
	}); err != nil {
		return nil, err
	}

	o.notifyFailure(tenant, upload.ID, fileName, message)
	return upload, nil
}

// CompleteMapping overlays the client's explicit choices onto the stored
// mapping and re-resolves against the stored headers. The job must still
// be pending. A non-empty remainder keeps the job pending.
func (o *Orchestrator) CompleteMapping(ctx context.Context, tenant, id string, explicit ColumnMapping) ([]string, error) {
	var missing []string
	err := o.dm.Exec(ctx, tenant, func(db *gorm.DB) error {
		upload, err := getUpload(db, id)
		if err != nil {
			return err
		}
		if upload == nil {
			return ErrUploadNotFound
		}
		if upload.Status != model.UploadPending {
			return fmt.Errorf("upload %s is %s, mapping can only change while pending", id, upload.Status)
		}

		var headers []string
		if err := json.Unmarshal(upload.Headers, &headers); err != nil {
			return fmt.Errorf("stored headers are unreadable: %w", err)
		}

		stored, err := decodeMapping(upload.Mapping)
		if err != nil {
			return err
		}
		stored.Merge(explicit)

		mapping, unmapped, err := ResolveColumnMapping(headers, stored)
		if err != nil {
			return err
		}
		missing = unmapped
		return setUploadMapping(db, id, mapping)
	})
	return missing, err
}

// Begin transitions pending -> processing. It refuses while required
// fields are unmapped.
func (o *Orchestrator) Begin(ctx context.Context, tenant, id string) error {
	return o.dm.Exec(ctx, tenant, func(db *gorm.DB) error {
		upload, err := getUpload(db, id)
		if err != nil {
			return err
		}
		if upload == nil {
			return ErrUploadNotFound
		}
		if upload.Status != model.UploadPending {
			return fmt.Errorf("upload %s is already %s", id, upload.Status)
		}

		mapping, err := decodeMapping(upload.Mapping)
		if err != nil {
			return err
		}
		if missing := unmappedRequired(mapping); len(missing) > 0 {
			return &MappingIncompleteError{Missing: missing}
		}

		won, err := transitionUploadStatus(db, id, []model.UploadStatus{model.UploadPending}, model.UploadProcessing)
		if err != nil {
			return err
		}
		if !won {
			return fmt.Errorf("upload %s is no longer pending", id)
		}
		return nil
	})
}

// BeginRetry re-enters processing from a terminal state, touching only
// failed rows. Retrying with zero failed rows is a no-op that leaves the
// job terminal and unchanged; started reports whether a pass should run.
func (o *Orchestrator) BeginRetry(ctx context.Context, tenant, id string) (bool, error) {
	started := false
	err := o.dm.Exec(ctx, tenant, func(db *gorm.DB) error {
		upload, err := getUpload(db, id)
		if err != nil {
			return err
		}
		if upload == nil {
			return ErrUploadNotFound
		}
		failed, err := countRowsByOutcome(db, id, model.RowFailed)
		if err != nil {
			return err
		}

		start, err := retryStart(upload.Status, failed)
		if err != nil {
			return err
		}
		if !start {
			return nil
		}

		// the check above raced anyone else retrying; the conditional
		// transition decides who runs the pass
		won, err := transitionUploadStatus(db, id, model.TerminalUploadStatuses, model.UploadProcessing)
		if err != nil {
			return err
		}
		if !won {
			return ErrJobNotTerminal
		}

		started = true
		return nil
	})
	return started, err
}

// retryStart decides what a retry request may do: an error while the job
// is not terminal, a no-op when nothing failed, a new pass otherwise.
func retryStart(status model.UploadStatus, failedRows int64) (bool, error) {
	if !status.Terminal() {
		return false, ErrJobNotTerminal
	}
	return failedRows > 0, nil
}

// RunPass processes every non-succeeded row of the upload to a terminal
// outcome and settles the job status. It is called on a background
// goroutine and runs to completion regardless of the client; there is no
// mid-flight cancellation.
func (o *Orchestrator) RunPass(tenant, id string) {
	ctx := context.Background()
	log := o.log.WithFields(logrus.Fields{"tenant": tenant, "upload_id": id})

	var upload *model.Upload
	var rows []model.UploadRow
	err := o.dm.Exec(ctx, tenant, func(db *gorm.DB) error {
		var err error
		if upload, err = getUpload(db, id); err != nil {
			return err
		}
		if upload == nil {
			return ErrUploadNotFound
		}
		rows, err = rowsForPass(db, id)
		return err
	})
	if err != nil {
		log.WithError(err).Error("failed to load upload for processing")
		return
	}

	mapping, err := decodeMapping(upload.Mapping)
	if err != nil {
		log.WithError(err).Error("stored column mapping is unreadable")
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(o.workers)
	for i := range rows {
		row := rows[i]
		g.Go(func() error {
			if err := o.processRow(ctx, tenant, upload, mapping, row); err != nil {
				log.WithError(err).WithField("row_number", row.RowNumber).Error("failed to persist row outcome")
			}
			return nil
		})
	}
	g.Wait()

	if err := o.settle(ctx, tenant, id, log); err != nil {
		log.WithError(err).Error("failed to settle upload status")
	}
}

// processRow runs one row through transform and persists its outcome on a
// dedicated tenant connection. Row errors become stored failures; only
// infrastructure errors escape.
func (o *Orchestrator) processRow(ctx context.Context, tenant string, upload *model.Upload, mapping ColumnMapping, row model.UploadRow) error {
	return o.dm.Exec(ctx, tenant, func(db *gorm.DB) error {
		directory := gormDirectory{db: db}
		transformer := &Transformer{
			Mapping:         mapping,
			DefaultTimezone: upload.Timezone,
			Directory:       directory,
			Events:          directory,
		}

		raw := RawRow{Number: row.RowNumber, Fields: stringFields(row.RawValues)}
		candidate, rowErr, err := transformer.Transform(ctx, raw, row.ID)
		if err != nil {
			// infrastructure failure: record it so the row stays retryable
			return saveRowFailure(db, &row, &RowError{Kind: ErrInternal, Message: err.Error()})
		}
		if rowErr != nil {
			return saveRowFailure(db, &row, rowErr)
		}
		return saveRowSuccess(db, &row, candidate)
	})
}

// settle moves processing -> completed|partial|failed from the final
// counters. Rows left without an outcome by a persistence failure are
// swept into failed first, so a terminal job always has
// succeeded + failed == total and every row reachable by a retry.
func (o *Orchestrator) settle(ctx context.Context, tenant, id string, log *logrus.Entry) error {
	return o.dm.Exec(ctx, tenant, func(db *gorm.DB) error {
		if err := failPendingRows(db, id); err != nil {
			return err
		}

		upload, err := getUpload(db, id)
		if err != nil {
			return err
		}
		if upload == nil {
			return ErrUploadNotFound
		}

		status := terminalStatus(upload.TotalRows, upload.SucceededRows, upload.FailedRows)
		if err := setUploadStatus(db, id, status); err != nil {
			return err
		}

		log.WithFields(logrus.Fields{
			"status":    status,
			"total":     upload.TotalRows,
			"succeeded": upload.SucceededRows,
			"failed":    upload.FailedRows,
		}).Info("upload pass finished")

		if status == model.UploadFailed {
			o.notifyFailure(tenant, id, upload.FileName, fmt.Sprintf("all %d rows failed", upload.TotalRows))
		}
		return nil
	})
}

func (o *Orchestrator) notifyFailure(tenant, id, fileName, detail string) {
	if o.notifier == nil {
		return
	}
	message := fmt.Sprintf("attendance upload failed: tenant=%s upload=%s file=%s: %s", tenant, id, fileName, detail)
	if err := o.notifier.Error(message); err != nil {
		o.log.WithError(err).Warn("failed to send failure notification")
	}
}

// terminalStatus derives the terminal state from final counters: all
// succeeded -> completed, all failed -> failed, mixed -> partial.
func terminalStatus(total, succeeded, failed int) model.UploadStatus {
	switch {
	case succeeded == total:
		return model.UploadCompleted
	case failed == total && total > 0:
		return model.UploadFailed
	default:
		return model.UploadPartial
	}
}

func decodeMapping(raw []byte) (ColumnMapping, error) {
	var mapping ColumnMapping
	if len(raw) == 0 {
		return mapping, nil
	}
	if err := json.Unmarshal(raw, &mapping); err != nil {
		return mapping, fmt.Errorf("stored column mapping is unreadable: %w", err)
	}
	return mapping, nil
}

func stringFields(values map[string]interface{}) map[string]string {
	fields := make(map[string]string, len(values))
	for k, v := range values {
		if s, ok := v.(string); ok {
			fields[k] = s
			continue
		}
		fields[k] = fmt.Sprintf("%v", v)
	}
	return fields
}
