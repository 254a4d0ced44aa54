// Package execution runs the asynchronous build state machine. An execution
// starts a build, polls the executor until the build reaches a terminal
// phase or the deadline expires, collects stack outputs on success, and
// delivers exactly one completion callback to the requester.
package execution
