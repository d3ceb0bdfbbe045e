// Package logutil provides the leveled, component-tagged logger used across
// taosgen, in the spirit of the teacher's util/log package: a thin
// structured wrapper over a single writer rather than a full logging
// framework.
package logutil

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
)

// Severity orders log levels; only messages at or above the configured
// threshold are emitted.
type Severity int32

// Recognized severities, increasing in importance.
const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARN"
	case SeverityError:
		return "ERROR"
	case SeverityFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

var (
	mu        sync.Mutex
	out       io.Writer = os.Stderr
	threshold int32     = int32(SeverityInfo)
	backend             = log.New(out, "", log.LstdFlags|log.Lmicroseconds)
)

// SetOutput redirects all future log output; used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	backend = log.New(out, "", log.LstdFlags|log.Lmicroseconds)
}

// SetThreshold sets the minimum severity that is actually written.
func SetThreshold(s Severity) {
	atomic.StoreInt32(&threshold, int32(s))
}

// Logger is a component-scoped handle; every message it writes is tagged
// with the component name so a reader can tell which subsystem emitted it.
type Logger struct {
	component string
}

// New returns a Logger tagged with component, e.g. "orchestrator" or
// "sink.kafka".
func New(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) emit(sev Severity, format string, args ...interface{}) {
	if int32(sev) < atomic.LoadInt32(&threshold) {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	backend.Printf("[%s] %s: %s", sev, l.component, msg)
}

// Infof logs at SeverityInfo.
func (l *Logger) Infof(format string, args ...interface{}) { l.emit(SeverityInfo, format, args...) }

// Warningf logs at SeverityWarning.
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.emit(SeverityWarning, format, args...)
}

// Errorf logs at SeverityError.
func (l *Logger) Errorf(format string, args ...interface{}) { l.emit(SeverityError, format, args...) }

// Fatalf logs at SeverityFatal and exits the process.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.emit(SeverityFatal, format, args...)
	os.Exit(1)
}

// Truncate trims s to at most n runes, appending an ellipsis marker when
// truncated. Used to build the "offending request preview" in error logs
// (spec §7: SQL truncated to 300 chars).
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "...(truncated)"
}
