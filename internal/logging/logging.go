// Package logging builds the process logger from LogConfig.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"pingwatch/internal/config"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// New creates a logger. The returned closer releases the rotated file, if any.
func New(cfg config.LogConfig) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
		})
	default:
		return nil, nil, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}

	closer := io.Closer(nopCloser{})
	switch strings.ToLower(cfg.Output) {
	case "stdout", "":
		log.SetOutput(os.Stdout)
	case "stderr":
		log.SetOutput(os.Stderr)
	case "file":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("log.file_path is required when output is file")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		rotated := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		// debug runs also echo to the console
		if level == logrus.DebugLevel || level == logrus.TraceLevel {
			log.SetOutput(io.MultiWriter(os.Stdout, rotated))
		} else {
			log.SetOutput(rotated)
		}
		closer = rotated
	default:
		return nil, nil, fmt.Errorf("unsupported log output: %s", cfg.Output)
	}

	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
