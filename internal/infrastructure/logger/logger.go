package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console

	// File, when set, receives every event at debug level and above as JSON,
	// rotated by size.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// New creates a new zerolog logger based on config. The returned closer
// flushes the log file and must be called on shutdown.
func New(cfg Config) (zerolog.Logger, io.Closer) {
	return newWithOutput(cfg, os.Stdout)
}

func newWithOutput(cfg Config, stdout io.Writer) (zerolog.Logger, io.Closer) {
	var console io.Writer = stdout

	if cfg.Format == "console" {
		console = zerolog.ConsoleWriter{
			Out:        stdout,
			TimeFormat: time.RFC3339,
		}
	}

	level := parseLevel(cfg.Level)
	writers := []io.Writer{
		levelWriter{Writer: console, min: level},
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		writers = append(writers, file)
		closer = file
	}

	minLevel := level
	if cfg.File != "" && zerolog.DebugLevel < minLevel {
		minLevel = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(minLevel).
		With().
		Timestamp().
		Caller().
		Logger(), closer
}

// levelWriter drops events below min so the console keeps its own level
// while the file captures debug.
type levelWriter struct {
	io.Writer
	min zerolog.Level
}

func (w levelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l < w.min {
		return len(p), nil
	}
	return w.Write(p)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
