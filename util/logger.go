// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	ncerr "tcpcomm/internal/errors"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// Zap has no level below Debug, so verbose output uses DebugLevel and
// debug output one step further down.
const (
	zapVerbose = zapcore.DebugLevel
	zapDebug   = zapcore.DebugLevel - 1
)

// Level classifies entries written through [Logger.Append].
type Level int

const (
	LevelNormal Level = iota
	LevelInformation
	LevelNotice
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInformation:
		return "information"
	case LevelNotice:
		return "notice"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	}
	return "normal"
}

// Logger writes levelled messages through zap.  The console core goes to
// stderr; additional cores (rolling files, test observers) can be
// attached and receive the same entries.
type Logger struct {
	mu         sync.Mutex
	level      LogLevel
	output     io.Writer
	timestamps bool
	extra      []zapcore.Core
	closers    []func() error
	z          *zap.Logger
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	l := &Logger{
		level:      LogLevel(verbosity),
		output:     os.Stderr,
		timestamps: verbosity >= 3,
	}
	l.rebuild()
	return l
}

// Discard returns a quiet Logger whose output goes nowhere.
func Discard() *Logger {
	l := NewLogger(0)
	l.SetOutput(io.Discard)
	return l
}

// SetTimestamps enables or disables timestamp prefixes on the console.
func (l *Logger) SetTimestamps(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timestamps = on
	l.rebuild()
}

// SetOutput overrides the console writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
	l.rebuild()
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Attach tees every subsequent entry into core as well.
func (l *Logger) Attach(core zapcore.Core) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.extra = append(l.extra, core)
	l.rebuild()
}

// Zap exposes the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.z
}

// Info prints when verbosity ≥ 1.  Prefixed with [INF].
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(zapcore.InfoLevel, format, args...)
}

// Warn prints when verbosity ≥ 1.  Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(zapcore.WarnLevel, format, args...)
}

// Verbose prints when verbosity ≥ 2.  Prefixed with [VRB].
func (l *Logger) Verbose(format string, args ...interface{}) {
	l.write(zapVerbose, format, args...)
}

// Debug prints when verbosity ≥ 3.  Prefixed with [DBG].
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(zapDebug, format, args...)
}

// Error always prints regardless of verbosity.  Prefixed with [ERR].
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(zapcore.ErrorLevel, format, args...)
}

// Append writes one entry in the (message, level, detail) shape used by
// the connection components.  Warning and Error entries are always
// written; the others need verbosity ≥ 1.
func (l *Logger) Append(msg string, level Level, detail string) {
	fields := make([]zap.Field, 0, 2)
	if level == LevelInformation || level == LevelNotice {
		fields = append(fields, zap.Stringer("class", level))
	}
	if detail != "" {
		fields = append(fields, zap.String("detail", detail))
	}

	lvl := zapcore.InfoLevel
	switch level {
	case LevelWarning:
		lvl = zapcore.WarnLevel
	case LevelError:
		lvl = zapcore.ErrorLevel
	}
	if ce := l.Zap().Check(lvl, msg); ce != nil {
		ce.Write(fields...)
	}
}

// Report appends err at LevelError as "<kind>:<message>" with its cause
// chain as detail.  A nil err is ignored.
func (l *Logger) Report(err error) {
	if err == nil {
		return
	}
	summary, detail := ncerr.Describe(err)
	l.Append(summary, LevelError, detail)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.Zap().Sync()
}

// Close flushes and releases every attached sink.
func (l *Logger) Close() error {
	l.mu.Lock()
	closers := l.closers
	l.closers = nil
	l.mu.Unlock()

	_ = l.Sync()
	var errs []error
	for _, c := range closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return ncerr.Join(errs...)
}

func (l *Logger) write(lvl zapcore.Level, format string, args ...interface{}) {
	if ce := l.Zap().Check(lvl, fmt.Sprintf(format, args...)); ce != nil {
		ce.Write()
	}
}

// enabler maps the -v count onto zap levels.
func (l *Logger) enabler() zap.LevelEnablerFunc {
	threshold := zapcore.ErrorLevel
	switch {
	case l.level >= LogDebug:
		threshold = zapDebug
	case l.level >= LogVerbose:
		threshold = zapVerbose
	case l.level >= LogNormal:
		threshold = zapcore.InfoLevel
	}
	return func(lvl zapcore.Level) bool { return lvl >= threshold }
}

// rebuild must be called with l.mu held.
func (l *Logger) rebuild() {
	enc := encoderConfig(l.timestamps)
	console := zapcore.NewCore(zapcore.NewConsoleEncoder(enc),
		zapcore.AddSync(l.output), l.enabler())

	cores := append([]zapcore.Core{console}, l.extra...)
	l.z = zap.New(zapcore.NewTee(cores...))
}

func encoderConfig(timestamps bool) zapcore.EncoderConfig {
	cfg := zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		EncodeLevel:      encodeLevel,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
	if timestamps {
		cfg.TimeKey = "ts"
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	}
	return cfg
}

func encodeLevel(lvl zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch {
	case lvl >= zapcore.ErrorLevel:
		enc.AppendString("[ERR]")
	case lvl == zapcore.WarnLevel:
		enc.AppendString("[WRN]")
	case lvl == zapcore.InfoLevel:
		enc.AppendString("[INF]")
	case lvl == zapVerbose:
		enc.AppendString("[VRB]")
	default:
		enc.AppendString("[DBG]")
	}
}
