package trace

import (
	"encoding/json"
	"time"
)

// ExecutionTrace is the complete record of one traced execution, as
// produced by the workflow execution engine.
type ExecutionTrace struct {
	// ThreadID is the checkpointing thread for this execution, if any.
	ThreadID string `json:"thread_id,omitempty"`

	// ExecutionID uniquely identifies this execution.
	ExecutionID string `json:"execution_id,omitempty"`

	// ParentExecutionID is the execution id of the invoking parent graph
	// for subgraph executions.
	ParentExecutionID string `json:"parent_execution_id,omitempty"`

	// RootExecutionID is the execution id of the top-level graph.
	RootExecutionID string `json:"root_execution_id,omitempty"`

	// Depth is the subgraph nesting depth (0 for top-level graphs).
	Depth *uint32 `json:"depth,omitempty"`

	// NodesExecuted lists all node executions in order.
	NodesExecuted []NodeExecution `json:"nodes_executed"`

	// TotalDurationMs is the total execution duration in milliseconds.
	TotalDurationMs int64 `json:"total_duration_ms"`

	// TotalTokens is the total tokens used across all nodes.
	TotalTokens int64 `json:"total_tokens"`

	// Completed reports whether the execution ran to completion.
	Completed bool `json:"completed"`

	// StartedAt is the execution start timestamp (RFC 3339).
	StartedAt string `json:"started_at,omitempty"`

	// EndedAt is the execution end timestamp (RFC 3339).
	EndedAt string `json:"ended_at,omitempty"`

	// FinalState is a snapshot of the final state, if captured.
	FinalState json.RawMessage `json:"final_state,omitempty"`

	// Metadata carries custom execution metadata.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NodeExecution records one node invocation within an execution.
type NodeExecution struct {
	// Node is the node name.
	Node string `json:"node"`

	// DurationMs is the node execution duration in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// TokensUsed is the tokens consumed during this execution.
	TokensUsed int64 `json:"tokens_used"`

	// Success reports whether the node execution succeeded.
	Success bool `json:"success"`

	// ErrorMessage holds the failure message when Success is false.
	ErrorMessage string `json:"error_message,omitempty"`

	// Index is the order of this execution within the trace.
	Index int `json:"index"`

	// StartedAt is the node start timestamp (RFC 3339), if captured.
	StartedAt string `json:"started_at,omitempty"`

	// Metadata carries custom node metadata.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// StartedAtMs returns the trace start time in Unix milliseconds,
// or 0 if unset or unparseable.
func (t *ExecutionTrace) StartedAtMs() int64 {
	return rfc3339Ms(t.StartedAt)
}

// EndedAtMs returns the trace end time in Unix milliseconds,
// or 0 if unset or unparseable.
func (t *ExecutionTrace) EndedAtMs() int64 {
	return rfc3339Ms(t.EndedAt)
}

func rfc3339Ms(s string) int64 {
	if s == "" {
		return 0
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0
	}
	return ts.UnixMilli()
}

// ExecutionSummary is the metadata index row for one execution.
// It is mutable until retention deletes it.
type ExecutionSummary struct {
	// ExecutionID is the unique key.
	ExecutionID string `json:"execution_id"`

	// ThreadID is the checkpointing thread, if any.
	ThreadID string `json:"thread_id,omitempty"`

	// StartedAtMs is the execution start time in Unix milliseconds.
	StartedAtMs int64 `json:"started_at_ms"`

	// EndedAtMs is the execution end time in Unix milliseconds.
	EndedAtMs int64 `json:"ended_at_ms"`

	// DurationMs is the total execution duration in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// TotalTokens is the total tokens used.
	TotalTokens int64 `json:"total_tokens"`

	// Completed reports whether the execution ran to completion.
	Completed bool `json:"completed"`

	// SegmentPath is the last-known storage location of this execution's
	// events. It is advisory, not authoritative: the read path must
	// tolerate it pointing at a segment already compacted away.
	SegmentPath string `json:"segment_path,omitempty"`
}
