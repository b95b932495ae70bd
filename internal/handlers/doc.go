// Package handlers provides the HTTP handlers of the ytstream API.
//
// It includes handlers for:
//   - Video metadata lookup (/api/info)
//   - Media delivery as a download or an inline stream
//   - Health, liveness and readiness probes
//   - Build information and Prometheus metrics
//
// Metadata lookups go through the shared metadata cache; format resolution
// runs on every request. Once a stream has started, a delivery failure can
// only be signalled by dropping the connection, so the media handlers panic
// with http.ErrAbortHandler in that case.
package handlers
