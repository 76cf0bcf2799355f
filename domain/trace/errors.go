package trace

import "errors"

// Domain errors for the event store.
var (
	// ErrExecutionNotFound is returned when an execution has no index row.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrSegmentNotFound is returned when a WAL segment does not exist.
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrUnknownEventType is returned when an event type string is not a
	// member of the closed event type set. This is a data-integrity error,
	// never silently defaulted.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrSegmentParse is returned when a serialized record cannot be
	// decoded. Individual malformed WAL lines are skipped during reads;
	// this surfaces only where a whole record is expected to be valid.
	ErrSegmentParse = errors.New("malformed segment record")

	// ErrColumnarFormat is returned when a columnar file is missing an
	// expected column or is otherwise malformed.
	ErrColumnarFormat = errors.New("malformed columnar file")
)
