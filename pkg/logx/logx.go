// Package logx builds the component loggers used across the service, with
// optional size-based rotation of the log file.
package logx

import (
	"io"
	"log"
	"os"

	"github.com/bf1digital/spot-dispatch/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a prefixed logger honoring the logging configuration: stdout,
// a rotated file, or both. log.Logger is goroutine-safe; timestamps are UTC
// with microseconds.
func New(cfg *config.LoggingConfig, prefix string) *log.Logger {
	flags := log.LstdFlags | log.Lmicroseconds | log.LUTC

	var writers []io.Writer
	switch cfg.Output {
	case "file":
		writers = append(writers, rotatingWriter(cfg))
	case "both":
		writers = append(writers, os.Stdout, rotatingWriter(cfg))
	default:
		writers = append(writers, os.Stdout)
	}

	return log.New(io.MultiWriter(writers...), prefix, flags)
}

func rotatingWriter(cfg *config.LoggingConfig) io.Writer {
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}
