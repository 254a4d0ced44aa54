// Package outputs collects stack outputs for inclusion in completion
// callbacks. Collection is best-effort: a successful build whose outputs
// cannot be read still completes successfully, with empty output data.
package outputs
