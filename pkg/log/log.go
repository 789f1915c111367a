package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Level names printed in front of each line.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelDebug = "DEBUG"
)

// Logger is a named logger. Loggers are memoized per name and safe for
// concurrent use.
type Logger struct {
	name string
}

var (
	globalDebug  atomic.Bool
	serviceDebug sync.Map // map[string]*atomic.Bool
	loggers      sync.Map // map[string]*Logger

	outMu sync.Mutex
	out   io.Writer = os.Stderr
)

// Now returns the timestamp used for log lines. Tests may replace it.
var Now = time.Now

// ForService returns the logger for name, creating it on first use.
func ForService(name string) *Logger {
	if name == "" {
		name = "aurorax"
	}
	if l, ok := loggers.Load(name); ok {
		return l.(*Logger)
	}
	l, _ := loggers.LoadOrStore(name, &Logger{name: name})
	return l.(*Logger)
}

// SetGlobalDebug turns debug output on or off for every logger.
func SetGlobalDebug(enabled bool) {
	globalDebug.Store(enabled)
}

// GlobalDebug reports whether debug output is enabled for every logger.
func GlobalDebug() bool {
	return globalDebug.Load()
}

// EnableDebugFor turns debug output on for a single logger name.
func EnableDebugFor(name string) {
	setServiceDebug(name, true)
}

// DisableDebugFor turns debug output off for a single logger name. Global
// debug still wins.
func DisableDebugFor(name string) {
	setServiceDebug(name, false)
}

func setServiceDebug(name string, enabled bool) {
	if name == "" {
		return
	}
	v, _ := serviceDebug.LoadOrStore(name, &atomic.Bool{})
	v.(*atomic.Bool).Store(enabled)
}

// DebugEnabledFor reports whether Debugf calls on the named logger print.
func DebugEnabledFor(name string) bool {
	if globalDebug.Load() {
		return true
	}
	if v, ok := serviceDebug.Load(name); ok {
		return v.(*atomic.Bool).Load()
	}
	return false
}

// SetOutput redirects all loggers. A nil writer is ignored.
func SetOutput(w io.Writer) {
	if w == nil {
		return
	}
	outMu.Lock()
	out = w
	outMu.Unlock()
}

// Name returns the logger name.
func (l *Logger) Name() string {
	return l.name
}

func (l *Logger) write(level, msg string) {
	line := fmt.Sprintf("%s %s [%s] %s\n", Now().Format("2006/01/02 15:04:05.000000"), level, l.name, msg)
	outMu.Lock()
	defer outMu.Unlock()
	_, _ = io.WriteString(out, line)
}

// Infof logs at INFO level.
func (l *Logger) Infof(format string, args ...any) {
	l.write(LevelInfo, fmt.Sprintf(format, args...))
}

// Warnf logs at WARN level.
func (l *Logger) Warnf(format string, args ...any) {
	l.write(LevelWarn, fmt.Sprintf(format, args...))
}

// Errorf logs at ERROR level.
func (l *Logger) Errorf(format string, args ...any) {
	l.write(LevelError, fmt.Sprintf(format, args...))
}

// Debugf logs at DEBUG level when debug is enabled for this logger.
func (l *Logger) Debugf(format string, args ...any) {
	if !DebugEnabledFor(l.name) {
		return
	}
	l.write(LevelDebug, fmt.Sprintf(format, args...))
}
