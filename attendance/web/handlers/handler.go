package handlers

import (
	"context"
	"io"
	"net"

	"github.com/gin-gonic/gin"
	attendance "rostera.com.au/rostera/attendance/core"
	"rostera.com.au/rostera/core"
)

// Archiver keeps the original upload bytes for audit. Satisfied by the S3
// filesystem; nil disables archival.
type Archiver interface {
	Store(ctx context.Context, key string, body io.Reader) error
	ReadFile(ctx context.Context, key string, out io.Writer) error
}

type Endpoint struct {
	dm           *core.DatabaseManager
	orchestrator *attendance.Orchestrator
	archiver     Archiver

	maxFileBytes    int64
	maxRows         int
	defaultTimezone string
}

type Options struct {
	MaxFileBytes    int64
	MaxRows         int
	DefaultTimezone string
	Archiver        Archiver
}

func Register(r *gin.RouterGroup, dm *core.DatabaseManager, orchestrator *attendance.Orchestrator, opts Options) {
	endpoint := &Endpoint{
		dm:              dm,
		orchestrator:    orchestrator,
		archiver:        opts.Archiver,
		maxFileBytes:    opts.MaxFileBytes,
		maxRows:         opts.MaxRows,
		defaultTimezone: opts.DefaultTimezone,
	}

	r.POST("/attendance/uploads", endpoint.Create)
	r.GET("/attendance/uploads", endpoint.List)
	r.GET("/attendance/uploads/template", endpoint.Template)
	r.GET("/attendance/uploads/:id", endpoint.Status)
	r.GET("/attendance/uploads/:id/file", endpoint.DownloadFile)
	r.PUT("/attendance/uploads/:id/mapping", endpoint.CompleteMapping)
	r.POST("/attendance/uploads/:id/retry", endpoint.Retry)
}

func hostTenant(c *gin.Context) string {
	host := c.Request.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return core.TenantFromHost(host)
}
