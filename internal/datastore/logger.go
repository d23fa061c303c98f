// Package datastore logging infrastructure for database operations
package datastore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tphakala/brandforge-go/internal/logging"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	// slowQueryThreshold defines the duration after which a query is considered slow.
	slowQueryThreshold = 1 * time.Second
)

var (
	datastoreLogger *slog.Logger
	loggerOnce      sync.Once
)

// getLogger returns the package logger, falling back to the default slog
// logger when the logging system has not been initialized (tests).
func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		datastoreLogger = logging.ForService("datastore")
		if datastoreLogger == nil {
			datastoreLogger = slog.Default().With("service", "datastore")
		}
	})
	return datastoreLogger
}

// slogGormLogger adapts the application slog logger to GORM's logger interface.
type slogGormLogger struct {
	level gormlogger.LogLevel
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return &slogGormLogger{level: level}
}

func (l *slogGormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &slogGormLogger{level: level}
}

func (l *slogGormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		getLogger().Info(msg, "data", data)
	}
}

func (l *slogGormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		getLogger().Warn(msg, "data", data)
	}
}

func (l *slogGormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		getLogger().Error(msg, "data", data)
	}
}

func (l *slogGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && l.level >= gormlogger.Error && !isRecordNotFound(err):
		getLogger().Error("Query failed",
			"sql", sql,
			"rows", rows,
			"elapsed", elapsed,
			"error", err)
	case elapsed > slowQueryThreshold && l.level >= gormlogger.Warn:
		getLogger().Warn("Slow query",
			"sql", sql,
			"rows", rows,
			"elapsed", elapsed)
	case l.level >= gormlogger.Info:
		getLogger().Debug("Query",
			"sql", sql,
			"rows", rows,
			"elapsed", elapsed)
	}
}

func isRecordNotFound(err error) bool {
	return err != nil && err.Error() == gorm.ErrRecordNotFound.Error()
}
