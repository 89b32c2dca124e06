package gormdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/jcmexdev/order-fulfillment/internal/pkg/interceptors"
)

const slowQueryThreshold = 200 * time.Millisecond

// Logger routes GORM's logging into slog.
type Logger struct {
	level gormlogger.LogLevel
	log   *slog.Logger
}

func NewLogger(log *slog.Logger, level gormlogger.LogLevel) *Logger {
	return &Logger{level: level, log: log.With("component", "gorm")}
}

func (l *Logger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &Logger{level: level, log: l.log}
}

func (l *Logger) with(ctx context.Context) *slog.Logger {
	if id := interceptors.RequestID(ctx); id != "" {
		return l.log.With("request_id", id)
	}
	return l.log
}

func (l *Logger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.with(ctx).InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.with(ctx).WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *Logger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.with(ctx).ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *Logger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	log := l.with(ctx).With("sql", sql, "elapsed", elapsed, "rows", rows)

	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gormlogger.ErrRecordNotFound):
		log.ErrorContext(ctx, "database operation failed", "error", err)
	case elapsed > slowQueryThreshold && l.level >= gormlogger.Warn:
		log.WarnContext(ctx, "slow sql query")
	case l.level >= gormlogger.Info:
		log.DebugContext(ctx, "sql query executed")
	}
}
