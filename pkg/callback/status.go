package callback

import "fmt"

// Status is the terminal outcome reported to the requester.
type Status string

const (
	// StatusSuccess indicates the lifecycle request completed successfully,
	// including the no-op outcomes (skipped rebuilds, cleanup deletes).
	StatusSuccess Status = "SUCCESS"

	// StatusFailed indicates the lifecycle request failed terminally.
	StatusFailed Status = "FAILED"
)

// Validate checks if the status is valid.
func (s Status) Validate() error {
	switch s {
	case StatusSuccess, StatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid callback status: %s", s)
	}
}

// BuildStatus distinguishes how the terminal outcome was reached. It is the
// closed set consumed by the requester's downstream tooling.
type BuildStatus string

const (
	// BuildStatusCompleted indicates a build ran and succeeded.
	BuildStatusCompleted BuildStatus = "COMPLETED"

	// BuildStatusFailed indicates a build ran and failed, timed out, or
	// could not be started.
	BuildStatusFailed BuildStatus = "FAILED"

	// BuildStatusSkipped indicates an Update whose relevant parameters were
	// unchanged; no build was started.
	BuildStatusSkipped BuildStatus = "SKIPPED"

	// BuildStatusCleanupSkipped indicates a Delete that arrived while the
	// owning stack was still cleaning up a concurrent Update; no teardown
	// was performed.
	BuildStatusCleanupSkipped BuildStatus = "CLEANUP_SKIPPED"

	// BuildStatusDeleted indicates a genuine teardown completed (or the
	// provisioned stack was already absent).
	BuildStatusDeleted BuildStatus = "DELETED"
)

// Validate checks if the build status is valid.
func (s BuildStatus) Validate() error {
	switch s {
	case BuildStatusCompleted, BuildStatusFailed, BuildStatusSkipped,
		BuildStatusCleanupSkipped, BuildStatusDeleted:
		return nil
	default:
		return fmt.Errorf("invalid build status: %s", s)
	}
}
