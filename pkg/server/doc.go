// Package server exposes the inbound HTTP surface of the stackrelay
// service: lifecycle request ingestion, health checks, and metrics.
package server
