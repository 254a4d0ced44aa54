// Package stores provides the persistence layer for the orchestration core:
// a journal of dispatch decisions and build executions plus an append-only
// event log, backed by SQLite. The journal is strictly observational — a
// journal failure never blocks or alters the lifecycle outcome reported to
// the requester.
package stores
