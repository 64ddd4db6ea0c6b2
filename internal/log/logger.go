// Package log provides a global logger with configurable logging level. Messages are written to
// stderr through zap's console encoder.

package log

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	LevelNone    Level = iota // Disables logging.
	LevelError                // Logs anamolies that are not expected to occur during normal use.
	LevelWarning              // Logs anamolies that are expected to occur occasionally during normal use.
	LevelInfo                 // Logs major events.
	LevelDebug                // Logs detailed IO
)

// zapDisabled is above every level zap emits, so nothing passes the filter.
const zapDisabled = zapcore.FatalLevel + 1

var zapLevels = map[Level]zapcore.Level{
	LevelNone:    zapDisabled,
	LevelError:   zapcore.ErrorLevel,
	LevelWarning: zapcore.WarnLevel,
	LevelInfo:    zapcore.InfoLevel,
	LevelDebug:   zapcore.DebugLevel,
}

var levelNames = map[string]Level{
	"none":    LevelNone,
	"error":   LevelError,
	"warn":    LevelWarning,
	"warning": LevelWarning,
	"info":    LevelInfo,
	"debug":   LevelDebug,
}

var (
	globalLogLevel Level
	logMutex       sync.Mutex
	atomicLevel    = zap.NewAtomicLevelAt(zapDisabled)
	sugar          = newLogger(atomicLevel)
)

func newLogger(level zap.AtomicLevel) *zap.SugaredLogger {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "timestamp",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(zapcore.AddSync(stderr{})), level)
	return zap.New(core).Sugar()
}

func SetLevel(level Level) {
	logMutex.Lock()
	defer logMutex.Unlock()
	globalLogLevel = level
	zl, ok := zapLevels[level]
	if !ok {
		zl = zapcore.DebugLevel
	}
	atomicLevel.SetLevel(zl)
}

func logLevel() Level {
	logMutex.Lock()
	defer logMutex.Unlock()
	return globalLogLevel
}

// ParseLevel converts a level name ("none", "error", "warn", "info", "debug") into a Level.
func ParseLevel(name string) (Level, error) {
	level, ok := levelNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return LevelNone, fmt.Errorf("unknown log level '%s'", name)
	}
	return level, nil
}

// Enabled returns true if messages at level are currently written.
func Enabled(level Level) bool {
	return level != LevelNone && level <= logLevel()
}

// Sync flushes buffered log entries. Call before the process exits.
func Sync() {
	_ = sugar.Sync()
}

func Debug(format string, a ...interface{}) {
	sugar.Debugf(format, a...)
}
func Info(format string, a ...interface{}) {
	sugar.Infof(format, a...)
}
func Warning(format string, a ...interface{}) {
	sugar.Warnf(format, a...)
}
func Error(format string, a ...interface{}) {
	sugar.Errorf(format, a...)
}
