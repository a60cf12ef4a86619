package util

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures the rolling log file attached by [Logger.AddFile].
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Daily      bool // also rotate at every local midnight

	// FlushInterval bounds how long entries wait in the write queue
	// (default 100ms).
	FlushInterval time.Duration
}

// AddFile attaches a rolling file sink.  Entries are queued in memory and
// flushed by a background goroutine; [Logger.Close] drains the queue.
func (l *Logger) AddFile(opts FileOptions) error {
	if dir := filepath.Dir(opts.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	lj := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    max(opts.MaxSizeMB, 1),
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
		LocalTime:  true,
	}

	flush := opts.FlushInterval
	if flush <= 0 {
		flush = 100 * time.Millisecond
	}
	ws := &zapcore.BufferedWriteSyncer{WS: zapcore.AddSync(lj), FlushInterval: flush}

	l.mu.Lock()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(fileEncoderConfig()), ws, l.enabler())
	l.extra = append(l.extra, core)
	l.rebuild()

	stop := make(chan struct{})
	if opts.Daily {
		go rotateDaily(lj, stop, time.Now)
	}
	l.closers = append(l.closers, func() error {
		close(stop)
		if err := ws.Stop(); err != nil {
			return err
		}
		return lj.Close()
	})
	l.mu.Unlock()
	return nil
}

// fileEncoderConfig always stamps the full date, since file entries
// outlive the session that wrote them.
func fileEncoderConfig() zapcore.EncoderConfig {
	cfg := encoderConfig(true)
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	return cfg
}

// rotateDaily forces a rollover at each local midnight until stop is
// closed.
func rotateDaily(lj *lumberjack.Logger, stop <-chan struct{}, now func() time.Time) {
	for {
		timer := time.NewTimer(untilMidnight(now()))
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
			_ = lj.Rotate()
		}
	}
}

// untilMidnight returns the time left until the next local midnight.
func untilMidnight(t time.Time) time.Duration {
	y, m, d := t.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
	return next.Sub(t)
}
