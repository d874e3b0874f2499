package core

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type LogLevel int

const (
	LogLevelSilent LogLevel = iota + 1
	LogLevelError
	LogLevelWarn
	LogLevelInfo
)

// DatabaseManager owns the global MySQL pool. Each tenant lives in its own
// schema; every query runs on a connection switched to that schema, so the
// tenant is always an explicit parameter and never ambient state.
type DatabaseManager struct {
	SqlDB    *sql.DB
	LogLevel LogLevel
}

// New creates the global pool. dsn should NOT include a schema
// (just host/user/pass).
func New(dsn string, maxConnection int) (*DatabaseManager, error) {
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxConnection)
	sqlDB.SetMaxIdleConns(maxConnection)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping pool: %w", err)
	}

	return &DatabaseManager{SqlDB: sqlDB}, nil
}

// TenantFromHost maps a request host to a tenant schema name,
// e.g. "acme.rostera.com.au" -> "acme". For local development the schema
// embedded in the DSN is used.
func TenantFromHost(host string) string {
	if host == "localhost" {
		dsn := os.Getenv("DSN")

		parts := strings.SplitN(dsn, "?", 2)
		segments := strings.Split(parts[0], "/")
		return segments[len(segments)-1]
	}

	parts := strings.Split(host, ".")
	return parts[0]
}

// GetDB gets a *gorm.DB bound to a single connection switched to the
// tenant's schema with `USE`.
func (dm *DatabaseManager) GetDB(ctx context.Context, tenant string) (*gorm.DB, *sql.Conn, error) {
	conn, err := dm.SqlDB.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get conn: %w", err)
	}
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	if _, err := conn.ExecContext(ctx, "USE `"+tenant+"`"); err != nil {
		return nil, nil, fmt.Errorf("failed to use schema %s: %w", tenant, err)
	}

	dialector := mysql.New(mysql.Config{
		Conn: conn, // lock GORM to this connection
	})

	gormLogLevel := logger.Silent
	switch dm.LogLevel {
	case LogLevelError:
		gormLogLevel = logger.Error
	case LogLevelWarn:
		gormLogLevel = logger.Warn
	case LogLevelInfo:
		gormLogLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	// cancel the deferred close; caller will close
	defer func() { conn = nil }()
	return db, conn, nil
}

// Exec runs fn against the tenant's schema on a dedicated connection.
func (dm *DatabaseManager) Exec(ctx context.Context, tenant string, fn func(db *gorm.DB) error) error {
	db, conn, err := dm.GetDB(ctx, tenant)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(db)
}

// Close closes the global pool.
func (dm *DatabaseManager) Close() error {
	return dm.SqlDB.Close()
}
