package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormConfig tunes the GORM adapter
type GormConfig struct {
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

// DefaultGormConfig flags statements slower than 200ms
func DefaultGormConfig() GormConfig {
	return GormConfig{SlowThreshold: 200 * time.Millisecond}
}

// GormLogger writes GORM's statement log to zap
type GormLogger struct {
	level  gormlogger.LogLevel
	logger *zap.Logger
	config GormConfig
}

var _ gormlogger.Interface = (*GormLogger)(nil)

// NewGormLogger adapts log to GORM at the given level
func NewGormLogger(log *zap.Logger, level gormlogger.LogLevel, cfg GormConfig) *GormLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &GormLogger{level: level, logger: log, config: cfg}
}

// GormLevel maps a level name to a GORM level; unknown names give error
func GormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "info", "debug":
		return gormlogger.Info
	case "warn":
		return gormlogger.Warn
	case "silent":
		return gormlogger.Silent
	default:
		return gormlogger.Error
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &GormLogger{level: level, logger: l.logger, config: l.config}
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		FromContext(ctx, l.logger).Info(fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		FromContext(ctx, l.logger).Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		FromContext(ctx, l.logger).Error(fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	sql, rows := fc()
	elapsed := time.Since(begin)
	fields := []zap.Field{
		zap.String("sql", sql),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
	}
	log := FromContext(ctx, l.logger)

	if err != nil && l.level >= gormlogger.Error {
		if errors.Is(err, gormlogger.ErrRecordNotFound) && l.config.IgnoreRecordNotFoundError {
			return
		}
		log.Error("statement failed", append(fields, zap.Error(err))...)
		return
	}

	if l.config.SlowThreshold != 0 && elapsed > l.config.SlowThreshold && l.level >= gormlogger.Warn {
		log.Warn("slow statement", append(fields, zap.Duration("threshold", l.config.SlowThreshold))...)
		return
	}

	if l.level >= gormlogger.Info {
		log.Info("statement executed", fields...)
	}
}
