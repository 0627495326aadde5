package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is a wrapper around logrus.Logger
type Logger struct {
	*logrus.Logger
	file *os.File
}

// New creates a new logger writing text lines to stdout
func New() *Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(textFormatter())
	log.SetLevel(logrus.InfoLevel)

	return &Logger{Logger: log}
}

// Discard returns a logger that drops everything, for tests
func Discard() *Logger {
	l := New()
	l.SetOutput(io.Discard)
	return l
}

func textFormatter() logrus.Formatter {
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	}
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		l.Logger.SetLevel(logrus.DebugLevel)
	case "info":
		l.Logger.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		l.Logger.SetLevel(logrus.WarnLevel)
	case "error":
		l.Logger.SetLevel(logrus.ErrorLevel)
	default:
		l.Logger.SetLevel(logrus.InfoLevel)
	}
}

// SetFormat switches between "text" and "json" output
func (l *Logger) SetFormat(format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		l.Logger.SetFormatter(textFormatter())
	case "json":
		l.Logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	default:
		return fmt.Errorf("unknown log format %q: must be 'text' or 'json'", format)
	}
	return nil
}

// TeeToFile appends every entry to path as well as the current output
func (l *Logger) TeeToFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	l.Logger.SetOutput(io.MultiWriter(l.Logger.Out, f))
	l.file = f
	return nil
}

// Close releases the log file, if any
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
