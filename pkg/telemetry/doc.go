// Package telemetry provides the observability building blocks for the
// stackrelay control plane: structured logging via zerolog, Prometheus
// metrics for dispatch and execution outcomes, and OpenTelemetry tracing
// around the dispatch/build/callback path.
package telemetry
