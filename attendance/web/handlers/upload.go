package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	attendance "rostera.com.au/rostera/attendance/core"
	"rostera.com.au/rostera/attendance/model"
	web "rostera.com.au/rostera/web/common"
)

// Create accepts a multipart punch file plus an optional explicit column
// mapping. It answers 202 once the mapping is complete and processing has
// started, or 400 with the unmapped required fields.
func (ep *Endpoint) Create(c *gin.Context) {
	tenant := hostTenant(c)
	ctx := c.Request.Context()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, web.NewErrorResponse("multipart field 'file' is required"))
		return
	}

	// enforced before any parsing starts
	if fileHeader.Size > ep.maxFileBytes {
		c.JSON(http.StatusBadRequest, web.NewErrorResponse(
			fmt.Sprintf("file exceeds the %d byte limit", ep.maxFileBytes)))
		return
	}

	var explicit attendance.ColumnMapping
	if raw := c.PostForm("mapping"); raw != "" {
		var dto MappingDTO
		if err := json.Unmarshal([]byte(raw), &dto); err != nil {
			c.JSON(http.StatusBadRequest, web.NewErrorResponse("field 'mapping' is not valid JSON"))
			return
		}
		explicit = dto.toMapping()
	}

	// LoadLocation("") silently yields UTC, so an empty field must fall
	// back before validation, not after
	timezone := formTimezone(c, ep.defaultTimezone)
	if _, err := time.LoadLocation(timezone); err != nil {
		c.JSON(http.StatusBadRequest, web.NewErrorResponse(fmt.Sprintf("unknown timezone %q", timezone)))
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, web.NewErrorResponse("uploaded file could not be read"))
		return
	}
	defer src.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(src); err != nil {
		c.JSON(http.StatusBadRequest, web.NewErrorResponse("uploaded file could not be read"))
		return
	}
	raw := buf.Bytes()

	parsed, parseErr := attendance.ParseFile(bytes.NewReader(raw), fileHeader.Filename, ep.maxRows)
	if parseErr != nil {
		// job-level fatal: only the job record is persisted
		upload, err := ep.orchestrator.CreateFailedUpload(ctx, tenant, fileHeader.Filename, timezone, parseErr)
		if err != nil {
			c.JSON(http.StatusInternalServerError, web.NewErrorResponse(err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, UploadRejectedDTO{
			Message:  parseErr.Error(),
			UploadID: upload.ID,
			Status:   string(upload.Status),
		})
		return
	}

	upload, missing, err := ep.orchestrator.CreateUpload(ctx, tenant, fileHeader.Filename, timezone, parsed, explicit)
	if err != nil {
		var unknownCol *attendance.UnknownColumnError
		if errors.As(err, &unknownCol) {
			c.JSON(http.StatusBadRequest, web.NewErrorResponse(unknownCol.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, web.NewErrorResponse(err.Error()))
		return
	}

	ep.archive(tenant, upload.ID, fileHeader.Filename, raw)

	if len(missing) > 0 {
		c.JSON(http.StatusBadRequest, UploadRejectedDTO{
			Message:        "required fields are not mapped; complete the mapping to start processing",
			UploadID:       upload.ID,
			Status:         string(upload.Status),
			UnmappedFields: missing,
		})
		return
	}

	if err := ep.orchestrator.Begin(ctx, tenant, upload.ID); err != nil {
		c.JSON(http.StatusInternalServerError, web.NewErrorResponse(err.Error()))
		return
	}
	go ep.orchestrator.RunPass(tenant, upload.ID)

	c.JSON(http.StatusAccepted, web.NewSuccessResponse(uploadCreatedDTO(upload, nil)))
}

// CompleteMapping supplies the mappings a pending job is still missing
// and starts processing once every required field is bound.
func (ep *Endpoint) CompleteMapping(c *gin.Context) {
	tenant := hostTenant(c)
	ctx := c.Request.Context()
	id := c.Param("id")

	var dto MappingDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, web.NewErrorResponse(web.FormatBindingError(err)))
		return
	}

	missing, err := ep.orchestrator.CompleteMapping(ctx, tenant, id, dto.toMapping())
	if err != nil {
		if errors.Is(err, attendance.ErrUploadNotFound) {
			c.JSON(http.StatusNotFound, web.NewErrorResponse("upload not found"))
			return
		}
		c.JSON(http.StatusBadRequest, web.NewErrorResponse(err.Error()))
		return
	}

	if len(missing) > 0 {
		c.JSON(http.StatusBadRequest, UploadRejectedDTO{
			Message:        "required fields are still not mapped",
			UploadID:       id,
			Status:         string(model.UploadPending),
			UnmappedFields: missing,
		})
		return
	}

	if err := ep.orchestrator.Begin(ctx, tenant, id); err != nil {
		c.JSON(http.StatusInternalServerError, web.NewErrorResponse(err.Error()))
		return
	}
	go ep.orchestrator.RunPass(tenant, id)

	c.JSON(http.StatusAccepted, web.NewSuccessResponse(gin.H{
		"uploadId": id,
		"status":   model.UploadProcessing,
	}))
}

// Status answers the latest persisted snapshot. It never blocks on job
// processing and is the sole channel for row-error visibility.
func (ep *Endpoint) Status(c *gin.Context) {
	tenant := hostTenant(c)

	limit := 100
	offset := 0
	if val, err := strconv.Atoi(c.Query("limit")); err == nil && val > 0 {
		limit = val
	}
	if val, err := strconv.Atoi(c.Query("offset")); err == nil && val >= 0 {
		offset = val
	}

	snapshot, err := attendance.GetStatus(c.Request.Context(), ep.dm, tenant, c.Param("id"), limit, offset)
	if err != nil {
		if errors.Is(err, attendance.ErrUploadNotFound) {
			c.JSON(http.StatusNotFound, web.NewErrorResponse("upload not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, web.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, web.NewSuccessResponse(newStatusDTO(snapshot)))
}

// List pages the tenant's uploads, newest first.
func (ep *Endpoint) List(c *gin.Context) {
	tenant := hostTenant(c)

	limit := 50
	offset := 0
	if val, err := strconv.Atoi(c.Query("limit")); err == nil && val > 0 {
		limit = val
	}
	if val, err := strconv.Atoi(c.Query("offset")); err == nil && val >= 0 {
		offset = val
	}

	uploads, total, err := attendance.ListUploads(c.Request.Context(), ep.dm, tenant, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, web.NewErrorResponse(err.Error()))
		return
	}

	summaries := make([]UploadSummaryDTO, 0, len(uploads))
	for _, upload := range uploads {
		summaries = append(summaries, newSummaryDTO(upload))
	}

	c.JSON(http.StatusOK, web.NewSearchResponse(summaries, total))
}

// DownloadFile streams the archived original upload back to the caller.
func (ep *Endpoint) DownloadFile(c *gin.Context) {
	tenant := hostTenant(c)
	id := c.Param("id")

	if ep.archiver == nil {
		c.JSON(http.StatusNotFound, web.NewErrorResponse("upload archival is not configured"))
		return
	}

	snapshot, err := attendance.GetStatus(c.Request.Context(), ep.dm, tenant, id, 0, 0)
	if err != nil {
		if errors.Is(err, attendance.ErrUploadNotFound) {
			c.JSON(http.StatusNotFound, web.NewErrorResponse("upload not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, web.NewErrorResponse(err.Error()))
		return
	}

	key := archiveKey(tenant, id, snapshot.Upload.FileName)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", snapshot.Upload.FileName))
	c.Header("Content-Type", "application/octet-stream")
	if err := ep.archiver.ReadFile(c.Request.Context(), key, c.Writer); err != nil {
		c.JSON(http.StatusNotFound, web.NewErrorResponse("archived file is not available"))
		return
	}
}

// Retry re-queues only the rows currently marked failed.
func (ep *Endpoint) Retry(c *gin.Context) {
	tenant := hostTenant(c)
	id := c.Param("id")

	started, err := ep.orchestrator.BeginRetry(c.Request.Context(), tenant, id)
	if err != nil {
		switch {
		case errors.Is(err, attendance.ErrUploadNotFound):
			c.JSON(http.StatusNotFound, web.NewErrorResponse("upload not found"))
		case errors.Is(err, attendance.ErrJobNotTerminal):
			c.JSON(http.StatusConflict, web.NewErrorResponse("upload is still processing"))
		default:
			c.JSON(http.StatusInternalServerError, web.NewErrorResponse(err.Error()))
		}
		return
	}

	if !started {
		// zero failed rows: terminal state left unchanged
		c.JSON(http.StatusOK, web.NewSuccessResponse(gin.H{
			"uploadId": id,
			"retried":  false,
		}))
		return
	}

	go ep.orchestrator.RunPass(tenant, id)

	c.JSON(http.StatusAccepted, web.NewSuccessResponse(gin.H{
		"uploadId": id,
		"retried":  true,
	}))
}

// Template serves an example workbook with the canonical column names.
func (ep *Endpoint) Template(c *gin.Context) {
	buf, err := attendance.BuildTemplate()
	if err != nil {
		c.JSON(http.StatusInternalServerError, web.NewErrorResponse(err.Error()))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="attendance-import-template.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// formTimezone reads the timezone form field, treating an empty or
// whitespace value the same as an absent one.
func formTimezone(c *gin.Context, fallback string) string {
	tz := strings.TrimSpace(c.PostForm("timezone"))
	if tz == "" {
		return fallback
	}
	return tz
}

func archiveKey(tenant, uploadID, fileName string) string {
	return fmt.Sprintf("%s/%s/%s", tenant, uploadID, fileName)
}

func (ep *Endpoint) archive(tenant, uploadID, fileName string, raw []byte) {
	if ep.archiver == nil {
		return
	}
	key := archiveKey(tenant, uploadID, fileName)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		// best effort; the job does not depend on the archive
		_ = ep.archiver.Store(ctx, key, bytes.NewReader(raw))
	}()
}
