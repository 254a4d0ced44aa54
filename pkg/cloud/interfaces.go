package cloud

import (
	"context"
	"errors"
	"fmt"
)

// BuildPhase represents the reported phase of a build run.
type BuildPhase string

const (
	// BuildInProgress indicates the build is still running.
	BuildInProgress BuildPhase = "IN_PROGRESS"

	// BuildSucceeded indicates the build reached a successful terminal state.
	BuildSucceeded BuildPhase = "SUCCEEDED"

	// BuildFailed indicates the build reached a failed terminal state.
	BuildFailed BuildPhase = "FAILED"
)

// IsTerminal returns true if the phase represents a final state.
func (p BuildPhase) IsTerminal() bool {
	return p == BuildSucceeded || p == BuildFailed
}

// Validate checks if the build phase is valid.
func (p BuildPhase) Validate() error {
	switch p {
	case BuildInProgress, BuildSucceeded, BuildFailed:
		return nil
	default:
		return fmt.Errorf("invalid build phase: %s", p)
	}
}

// BuildExecutor runs a long build/deploy job against a fixed project.
// The project identifier is injected configuration of the implementation,
// not a call parameter.
type BuildExecutor interface {
	// Start begins a new build with the given environment overrides and
	// returns an opaque handle identifying the run.
	Start(ctx context.Context, env map[string]string) (string, error)

	// Status reports the current phase of a previously started build.
	Status(ctx context.Context, handle string) (BuildPhase, error)
}

// StackDescription is the observed state of a provisioned stack.
type StackDescription struct {
	// Name is the stack name.
	Name string `json:"name"`

	// Status is the raw stack status string as reported by the platform
	// (e.g. "CREATE_COMPLETE", "UPDATE_COMPLETE_CLEANUP_IN_PROGRESS").
	Status string `json:"status"`

	// Outputs are the stack's published key/value outputs.
	Outputs map[string]string `json:"outputs,omitempty"`
}

// StackQuery inspects and tears down provisioned stacks.
type StackQuery interface {
	// Describe returns the current status and outputs of a stack.
	// A missing stack yields ErrStackNotFound.
	Describe(ctx context.Context, stackName string) (*StackDescription, error)

	// Delete requests teardown of a stack. Deleting a stack that does not
	// exist yields ErrStackNotFound; callers decide whether that is an error.
	Delete(ctx context.Context, stackName string) error
}

// ErrStackNotFound is returned when the queried stack does not exist.
var ErrStackNotFound = errors.New("stack not found")
