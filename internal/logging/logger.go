// Package logging provides the leveled logger shared by the bridge components.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"

	"github.com/flightbridge/internal/config"
)

// Level is a log severity
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// ParseLevel maps a config level name to a Level. Unknown names fall back to info.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes level-prefixed lines to stdout and, optionally, a rotating file
type Logger struct {
	logger *log.Logger
	level  Level
	prefix string
	file   *lumberjack.Logger
}

// New creates a logger from the logging section of the configuration
func New(cfg config.LoggingConfig) *Logger {
	var output io.Writer = os.Stdout
	var file *lumberjack.Logger

	if cfg.File != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		output = io.MultiWriter(os.Stdout, file)
	}

	return &Logger{
		logger: log.New(output, "", log.LstdFlags|log.Lmicroseconds),
		level:  ParseLevel(cfg.Level),
		file:   file,
	}
}

// NewWithWriter creates a logger writing to w only
func NewWithWriter(w io.Writer, level Level) *Logger {
	return &Logger{
		logger: log.New(w, "", log.LstdFlags),
		level:  level,
	}
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return NewWithWriter(io.Discard, LevelError+1)
}

// WithPrefix returns a logger sharing the same output with a component tag appended
func (l *Logger) WithPrefix(prefix string) *Logger {
	newPrefix := l.prefix
	if newPrefix != "" {
		newPrefix += " "
	}
	newPrefix += "[" + prefix + "]"

	return &Logger{
		logger: l.logger,
		level:  l.level,
		prefix: newPrefix,
		file:   l.file,
	}
}

// Enabled reports whether messages at level would be written
func (l *Logger) Enabled(level Level) bool {
	return level >= l.level
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.output(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.output(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.output(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.output(LevelError, format, args...) }

func (l *Logger) output(level Level, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		msg = l.prefix + " " + msg
	}
	// depth 3: output <- Infof <- caller
	l.logger.Output(3, levelNames[level]+" "+msg)
}

// Close flushes and closes the rotating file, if any
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
