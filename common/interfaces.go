// Package common provides shared constants, types, and utilities
// used across the VPN launcher.
package common

import (
	"fmt"
	"sync"
)

// Severity tags a status event.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityException
)

// String returns the severity tag.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityException:
		return "EXCEPTION"
	default:
		return "UNKNOWN"
	}
}

// StatusEvent is one human-readable message for the status stream.
type StatusEvent struct {
	Severity Severity
	Message  string
	// Err is set for SeverityException events.
	Err error
}

// String formats the event for display.
func (e StatusEvent) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// StatusSink receives status events. It is write-only: nothing in the
// launch path reads events back.
type StatusSink interface {
	Emit(event StatusEvent)
}

// Logger defines the interface for structured logging.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...interface{})
	// Info logs an informational message.
	Info(msg string, args ...interface{})
	// Warn logs a warning message.
	Warn(msg string, args ...interface{})
	// Error logs an error message.
	Error(msg string, args ...interface{})
}

// LoggerSink routes status events to a Logger by severity.
type LoggerSink struct {
	Logger Logger
}

// NewLoggerSink returns a sink writing to the default application logger.
func NewLoggerSink() *LoggerSink {
	return &LoggerSink{Logger: GetLogger()}
}

// Emit implements StatusSink.
func (s *LoggerSink) Emit(event StatusEvent) {
	switch event.Severity {
	case SeverityDebug:
		s.Logger.Debug("%s", event.String())
	case SeverityInfo:
		s.Logger.Info("%s", event.String())
	case SeverityWarning:
		s.Logger.Warn("%s", event.String())
	default:
		s.Logger.Error("%s", event.String())
	}
}

// MultiSink fans events out to every sink in order.
type MultiSink []StatusSink

// Emit implements StatusSink.
func (m MultiSink) Emit(event StatusEvent) {
	for _, s := range m {
		if s != nil {
			s.Emit(event)
		}
	}
}

// MemorySink keeps every event in memory. The CLI uses it to print a
// provisioning trace; tests use it to assert on emitted events.
type MemorySink struct {
	mu     sync.Mutex
	events []StatusEvent
}

// Emit implements StatusSink.
func (m *MemorySink) Emit(event StatusEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

// Events returns a copy of the recorded events.
func (m *MemorySink) Events() []StatusEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StatusEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Count returns how many recorded events have the given severity.
func (m *MemorySink) Count(severity Severity) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Severity == severity {
			n++
		}
	}
	return n
}

// Helpers for emitting to a possibly nil sink.

func Emit(sink StatusSink, severity Severity, format string, args ...interface{}) {
	if sink == nil {
		return
	}
	sink.Emit(StatusEvent{Severity: severity, Message: fmt.Sprintf(format, args...)})
}

func EmitException(sink StatusSink, err error, format string, args ...interface{}) {
	if sink == nil {
		return
	}
	sink.Emit(StatusEvent{Severity: SeverityException, Message: fmt.Sprintf(format, args...), Err: err})
}
