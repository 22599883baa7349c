// Package api exposes the orchestrator over HTTP: synchronous asks, queued
// runs backed by the task service, run history, the tool catalogue, health and
// Prometheus metrics, and optionally the MCP endpoint.
package api
