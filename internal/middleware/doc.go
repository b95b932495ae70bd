// Package middleware provides the HTTP middleware chain for the ytstream
// server.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Request IDs carried in X-Request-ID
//   - CORS for browser front ends on other origins
//   - Prometheus request metrics labelled by route template
//   - gzip compression for JSON and static assets
//
// Every response writer wrapper implements Unwrap so that
// http.ResponseController can reach the connection for flushes and write
// deadlines. The download and stream endpoints are never compressed.
package middleware
