// Package observability exposes Prometheus metrics for the extraction
// pipeline and the HTTP API.
package observability
