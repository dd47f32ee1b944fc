package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// ConsoleLogger builds a plain stdout logger for CLIs and tests.
func ConsoleLogger(level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(os.Stdout)
	return logger
}

// FileLogger builds the root logger writing to stdout and, when the path is
// usable, to a log file. The returned file handle is owned by the caller.
func FileLogger(level logrus.Level, logPath string) (*os.File, *logrus.Logger, error) {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{})

	if logPath == "" {
		logger.SetOutput(os.Stdout)
		return nil, logger, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		logger.SetOutput(os.Stdout)
		logger.WithError(err).Warn("failed to create log directory, logging to stdout only")
		return nil, logger, nil
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logger.SetOutput(os.Stdout)
		logger.WithError(err).Warn("failed to open log file, logging to stdout only")
		return nil, logger, nil
	}

	logger.SetOutput(io.MultiWriter(os.Stdout, f))
	return f, logger, nil
}
