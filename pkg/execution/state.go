package execution

import "fmt"

// State represents the current step of the build state machine.
type State string

const (
	// StateStartBuild submits the build to the executor.
	StateStartBuild State = "start_build"

	// StateCheckStatus polls the executor for the build's phase.
	StateCheckStatus State = "check_status"

	// StateSuccess delivers the success callback with collected outputs.
	StateSuccess State = "success"

	// StateFail delivers the failure callback.
	StateFail State = "fail"

	// StateHandleError delivers the failure callback after a timeout or an
	// unrecoverable executor error.
	StateHandleError State = "handle_error"
)

// Validate checks if the state is valid.
func (s State) Validate() error {
	switch s {
	case StateStartBuild, StateCheckStatus, StateSuccess, StateFail, StateHandleError:
		return nil
	default:
		return fmt.Errorf("invalid execution state: %s", s)
	}
}

// IsTerminal returns true if the state machine stops at this state.
func (s State) IsTerminal() bool {
	switch s {
	case StateSuccess, StateFail, StateHandleError:
		return true
	default:
		return false
	}
}
