package logger

import (
	"io"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newRotate rotates by size through lumberjack and additionally by wall clock interval
func newRotate(config *Config) io.Writer {
	rotateLog := &lumberjack.Logger{
		Filename:   config.Filename(),
		MaxSize:    config.MaxSize, // MB
		MaxAge:     config.MaxAge,  // days
		MaxBackups: config.MaxBackup,
		LocalTime:  true,
		Compress:   false,
	}
	if config.Interval > 0 {
		go func() {
			ticker := time.NewTicker(config.Interval)
			defer ticker.Stop()
			for range ticker.C {
				_ = rotateLog.Rotate()
			}
		}()
	}
	return rotateLog
}
