package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Common field constructors for event store logging.

// ExecutionID adds an execution id field.
func ExecutionID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("execution_id", id)
	}
}

// ThreadID adds a thread id field.
func ThreadID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("thread_id", id)
	}
}

// Segment adds a WAL segment path field.
func Segment(path string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("segment", path)
	}
}

// File adds a file path field.
func File(path string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("file", path)
	}
}

// Events adds an event count field.
func Events(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("events", n)
	}
}

// Files adds a file count field.
func Files(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("files", n)
	}
}

// Deleted adds a deleted count field.
func Deleted(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("deleted", n)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// Bytes adds a byte count field.
func Bytes(n int64) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("bytes", n)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}

// LogEvent is a wrapper that allows adding Fields to a bolt.Event.
type LogEvent struct {
	event *bolt.Event
}

// Add applies a field to the event and returns the wrapper for chaining.
func (l *LogEvent) Add(f Field) *LogEvent {
	l.event = f(l.event)
	return l
}

// Msg sends the log event with a message.
func (l *LogEvent) Msg(msg string) {
	l.event.Msg(msg)
}

// Convenience constructors that return LogEvent for field chaining.

// Debug returns a LogEvent wrapper for debug level logging.
func Debug() *LogEvent {
	return &LogEvent{event: Get().Debug()}
}

// Info returns a LogEvent wrapper for info level logging.
func Info() *LogEvent {
	return &LogEvent{event: Get().Info()}
}

// Warn returns a LogEvent wrapper for warn level logging.
func Warn() *LogEvent {
	return &LogEvent{event: Get().Warn()}
}

// Error returns a LogEvent wrapper for error level logging.
func Error() *LogEvent {
	return &LogEvent{event: Get().Error()}
}
