package debug

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	file    *os.File
	mu      sync.Mutex
	enabled bool
	logger  = log.NewWithOptions(io.Discard, log.Options{
		Level:           log.DebugLevel,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})
)

// DefaultPath is ~/.config/go-pianoroll/debug.log
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "go-pianoroll", "debug.log")
}

// Enable starts debug logging to path (DefaultPath when empty)
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	enabled = true
	logger.SetOutput(f)
	logger.Info("=== Debug logging started ===")
	return nil
}

// EnableWriter sends records to w instead of a file
func EnableWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	enabled = true
	logger.SetOutput(w)
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	logger.SetOutput(io.Discard)
	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
}

// Enabled reports whether records are being written anywhere
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Logger exposes the shared logger for hosts that want to add fields
func Logger() *log.Logger {
	return logger
}

// Log writes a structured record tagged with category
func Log(category, msg string, keyvals ...any) {
	if !Enabled() {
		return
	}
	logger.WithPrefix(category).Debug(msg, keyvals...)
}

var counters = make(map[string]int)

// LogEvery logs only every n calls (use for high-frequency events)
func LogEvery(n int, category, msg string, keyvals ...any) {
	mu.Lock()
	key := category + msg
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if n <= 1 || count%n == 0 {
		Log(category, msg, append(keyvals, "every", n, "count", count)...)
	}
}

// Since is a helper for timing a block: defer debug.Since("io", "save", time.Now())
func Since(category, msg string, start time.Time) {
	Log(category, msg, "took", time.Since(start))
}

type loggerKey struct{}

// WithContext stores l (the shared logger when nil) in ctx
func WithContext(ctx context.Context, l *log.Logger) context.Context {
	if l == nil {
		l = logger
	}
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored in ctx, or the shared one
func FromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*log.Logger); ok {
		return l
	}
	return logger
}
