package ulogger

import (
	"strings"
	"sync"
	"testing"
)

type verboseState struct {
	mu    sync.Mutex
	t     testing.TB
	level int
	done  bool
}

// VerboseTestLogger writes log lines through t.Logf, so they show up next to
// the test that produced them. Lines logged after the test finished are dropped.
type VerboseTestLogger struct {
	state   *verboseState
	service string
}

// NewVerboseTestLogger logs at DEBUG unless WithLevel says otherwise.
func NewVerboseTestLogger(t testing.TB, options ...Option) *VerboseTestLogger {
	o := DefaultOptions()
	o.logLevel = "DEBUG"

	for _, opt := range options {
		opt(o)
	}

	state := &verboseState{t: t, level: levelFromString(o.logLevel)}

	t.Cleanup(func() {
		state.mu.Lock()
		defer state.mu.Unlock()

		state.done = true
	})

	return &VerboseTestLogger{state: state}
}

func levelFromString(level string) int {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

func (l *VerboseTestLogger) LogLevel() int {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()

	return l.state.level
}

func (l *VerboseTestLogger) SetLogLevel(level string) {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()

	l.state.level = levelFromString(level)
}

// New shares the test and level with l and tags lines with service.
func (l *VerboseTestLogger) New(service string, options ...Option) Logger {
	return &VerboseTestLogger{state: l.state, service: service}
}

func (l *VerboseTestLogger) Duplicate(options ...Option) Logger {
	return &VerboseTestLogger{state: l.state, service: l.service}
}

func (l *VerboseTestLogger) log(level int, tag string, format string, args ...interface{}) {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()

	if l.state.done || level < l.state.level {
		return
	}

	if l.service != "" {
		tag += " " + l.service + ":"
	}

	l.state.t.Logf(tag+" "+format, args...)
}

func (l *VerboseTestLogger) Debugf(format string, args ...interface{}) {
	l.log(LevelDebug, "[DEBUG]", format, args...)
}

func (l *VerboseTestLogger) Infof(format string, args ...interface{}) {
	l.log(LevelInfo, "[INFO]", format, args...)
}

func (l *VerboseTestLogger) Warnf(format string, args ...interface{}) {
	l.log(LevelWarn, "[WARN]", format, args...)
}

func (l *VerboseTestLogger) Errorf(format string, args ...interface{}) {
	l.log(LevelError, "[ERROR]", format, args...)
}

// Fatalf fails the test. It must be called from the test goroutine.
func (l *VerboseTestLogger) Fatalf(format string, args ...interface{}) {
	l.state.t.Fatalf("[FATAL] "+format, args...)
}
