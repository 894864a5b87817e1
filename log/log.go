package log

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	}
	return zapcore.ErrorLevel
}

// ParseLevel maps the names accepted by the plugin and the command line.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", s)
}

type Logger struct {
	name  string
	level zap.AtomicLevel
	sugar *zap.SugaredLogger
	Debug *levelLogger
	Info  *levelLogger
	Warn  *levelLogger
	Error *levelLogger
}

type levelLogger struct {
	level  Level
	logger *Logger
}

// Global logger instance
var defaultLogger = NewLogger("default", InfoLevel)

// Package-level functions that use the default logger
func Debug() *levelLogger { return defaultLogger.Debug }
func Info() *levelLogger  { return defaultLogger.Info }
func Warn() *levelLogger  { return defaultLogger.Warn }
func Error() *levelLogger { return defaultLogger.Error }

// Function to change the default logger's level
func SetLevel(level Level) {
	defaultLogger.SetLevel(level)
}

func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level.zapLevel())
}

// Sync flushes buffered entries, typically before the process exits.
func Sync() error {
	return defaultLogger.sugar.Sync()
}

func (l *levelLogger) Printf(format string, v ...interface{}) {
	l.log(strings.TrimSuffix(fmt.Sprintf(format, v...), "\n"))
}

func (l *levelLogger) Println(v ...interface{}) {
	l.log(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (l *levelLogger) log(msg string) {
	switch l.level {
	case DebugLevel:
		l.logger.sugar.Debug(msg)
	case InfoLevel:
		l.logger.sugar.Info(msg)
	case WarnLevel:
		l.logger.sugar.Warn(msg)
	default:
		l.logger.sugar.Error(msg)
	}
}

func Init(name string, level Level) {
	defaultLogger = NewLogger(name, level)
}

func NewLogger(name string, level Level) *Logger {
	return newLogger(name, level, zapcore.Lock(os.Stdout))
}

func newLogger(name string, level Level, out zapcore.WriteSyncer) *Logger {
	atomic := zap.NewAtomicLevelAt(level.zapLevel())
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	config.EncodeLevel = zapcore.LowercaseLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(config), out, atomic)

	logger := &Logger{
		name:  name,
		level: atomic,
		sugar: zap.New(core).Named(name).Sugar(),
	}
	logger.Debug = &levelLogger{level: DebugLevel, logger: logger}
	logger.Info = &levelLogger{level: InfoLevel, logger: logger}
	logger.Warn = &levelLogger{level: WarnLevel, logger: logger}
	logger.Error = &levelLogger{level: ErrorLevel, logger: logger}
	return logger
}
