package polardbx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	gormUtils "gorm.io/gorm/utils"

	"github.com/ninja0404/whale-signal/pkg/logger"
)

var _ gormLogger.Interface = &MysqlLogger{}

// NewMysqlLogger routes gorm logs into zap; slow is the slow query bar, zero disables it
func NewMysqlLogger(logger *logger.Logger, loggerLevel gormLogger.LogLevel, slow time.Duration) *MysqlLogger {
	level := gormLogger.Error
	if loggerLevel >= gormLogger.Info {
		level = gormLogger.Info
	}
	return &MysqlLogger{
		logger:      logger,
		loggerLevel: loggerLevel,
		loggerConfig: gormLogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		},
	}
}

type MysqlLogger struct {
	logger       *logger.Logger
	loggerLevel  gormLogger.LogLevel
	loggerConfig gormLogger.Config
}

func (l *MysqlLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	newLogger := *l
	newLogger.loggerLevel = level
	return &newLogger
}

func (l *MysqlLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.loggerLevel >= gormLogger.Info {
		formattedMsg := fmt.Sprintf(msg, data...)
		l.logger.Info(formattedMsg)
	}
}

func (l *MysqlLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.loggerLevel >= gormLogger.Warn {
		formattedMsg := fmt.Sprintf(msg, data...)
		l.logger.Warn(formattedMsg)
	}
}

func (l *MysqlLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.loggerLevel >= gormLogger.Error {
		formattedMsg := fmt.Sprintf(msg, data...)
		l.logger.Error(formattedMsg)
	}
}

func (l *MysqlLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.loggerLevel <= gormLogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	fields := func() []logger.Field {
		sql, rows := fc()
		return []logger.Field{
			logger.String("caller", gormUtils.FileWithLineNum()),
			logger.Float64("elapsed_ms", float64(elapsed.Nanoseconds())/1e6),
			logger.Int64("rows", rows),
			logger.String("sql", sql),
		}
	}

	switch {
	case err != nil && l.loggerLevel >= gormLogger.Error && (!errors.Is(err, gorm.ErrRecordNotFound) || !l.loggerConfig.IgnoreRecordNotFoundError):
		l.logger.Error("sql error", append(fields(), logger.FieldErr(err))...)
	case elapsed > l.loggerConfig.SlowThreshold && l.loggerConfig.SlowThreshold != 0 && l.loggerLevel >= gormLogger.Warn:
		l.logger.Warn(fmt.Sprintf("slow sql >= %v", l.loggerConfig.SlowThreshold), fields()...)
	case l.loggerLevel == gormLogger.Info:
		l.logger.Info("sql", fields()...)
	}
}

func mappingLoggerLevel(level string, openDebug bool) gormLogger.LogLevel {
	if openDebug {
		return gormLogger.Info
	}
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "":
		return gormLogger.Warn
	case "error", "dpanic", "panic", "fatal":
		return gormLogger.Error
	default:
		return gormLogger.Silent
	}
}
