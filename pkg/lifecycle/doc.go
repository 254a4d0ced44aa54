// Package lifecycle implements the control plane for declarative
// infrastructure-change requests: the Create/Update/Delete dispatcher, the
// change detector that decides whether a rebuild is required, and the
// classified error model shared across the orchestration core.
//
// Every dispatched request results in exactly one terminal callback to the
// requester, either sent immediately by the dispatcher (no-op outcomes,
// teardowns, launch failures) or delegated to the execution state machine.
package lifecycle
