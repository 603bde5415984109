// Package http serves the operations endpoints of the billboard server.
//
// The router exposes the following endpoints:
//   - GET /healthz: pings the store and reports the schema migration state.
//     Responds 200 with {"status":"ok",...} or 503 with {"status":"unavailable",...}.
//   - GET /metrics: Prometheus text exposition of the server collectors.
//
// The billboard protocol itself is served by package transport; this listener
// carries no user data and requires no session.
package http
