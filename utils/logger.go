package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const timeLayout = "2006-01-02 15:04:05"

// Logger provides leveled, printf-style logging throughout the application.
type Logger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a Logger writing to stdout at the given level
// ("debug", "info", "warn", "error"). Unknown levels fall back to info.
func NewLogger(level string) *Logger {
	core := zapcore.NewCore(consoleEncoder(true), zapcore.AddSync(os.Stdout), parseLevel(level))
	return &Logger{sugar: zap.New(core).Sugar()}
}

// NewFileLogger tees console output into a daily file
// <dir>/scraping_YYYY-MM-DD.log.
func NewFileLogger(level, dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, eris.Wrap(err, "logger: create log dir")
	}

	name := filepath.Join(dir, fmt.Sprintf("scraping_%s.log", time.Now().Format("2006-01-02")))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, eris.Wrapf(err, "logger: open %q", name)
	}

	lvl := parseLevel(level)
	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder(true), zapcore.AddSync(os.Stdout), lvl),
		zapcore.NewCore(consoleEncoder(false), zapcore.AddSync(f), lvl),
	)
	return &Logger{sugar: zap.New(core).Sugar()}, nil
}

// NewNopLogger discards everything. Handy in tests.
func NewNopLogger() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

func consoleEncoder(color bool) zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if color {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.CallerKey = ""
	cfg.NameKey = ""
	return zapcore.NewConsoleEncoder(cfg)
}

func parseLevel(level string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// With returns a child logger that attaches key=value to every entry.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{sugar: l.sugar.With(key, value)}
}

func (l *Logger) Info(format string, args ...any) {
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.sugar.Debugf(format, args...)
}

// Sync flushes buffered entries. Errors from syncing a terminal are ignored.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}
