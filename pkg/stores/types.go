package stores

import (
	"context"
	"time"
)

// ExecutionStatus represents the status of a recorded build execution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusSucceeded ExecutionStatus = "succeeded"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// EventLevel represents the severity level of a journal event.
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// Execution is the journal record of one build execution.
type Execution struct {
	Name        string          `json:"name"`
	RequestID   string          `json:"request_id"`
	RequestType string          `json:"request_type"`
	StackID     string          `json:"stack_id"`
	BuildID     *string         `json:"build_id,omitempty"`
	Status      ExecutionStatus `json:"status"`
	BuildStatus *string         `json:"build_status,omitempty"`
	Error       *string         `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Event is an append-only journal entry tied to a lifecycle request and,
// optionally, to an execution.
type Event struct {
	ID            int64      `json:"id"`
	ExecutionName *string    `json:"execution_name,omitempty"`
	RequestID     string     `json:"request_id"`
	Level         EventLevel `json:"level"`
	Message       string     `json:"message"`
	Timestamp     time.Time  `json:"timestamp"`
}

// Store defines the interface for the persistence layer.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Execution operations
	CreateExecution(ctx context.Context, exec *Execution) error
	GetExecution(ctx context.Context, name string) (*Execution, error)
	UpdateExecution(ctx context.Context, name string, status ExecutionStatus, buildID, buildStatus, errMsg *string) error
	ListExecutions(ctx context.Context, limit, offset int) ([]*Execution, error)

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, requestID string, limit int) ([]*Event, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
