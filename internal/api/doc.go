// Package api implements the HTTP REST API and WebSocket server for the show core.
//
// This package provides:
//   - REST endpoints to create, inspect, drive and release execution contexts
//   - Ad-hoc effect insertion into the system live context
//   - Session history queries backed by the session repository
//   - WebSocket hub broadcasting ticks, context lifecycle and session events
//   - Prometheus exposition on /metrics
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API server sits beside the tick loop. Requests mutate the execution
// Manager directly; the Manager's observers feed the WebSocket hub, so every
// client sees the same events regardless of whether a change came from HTTP,
// MQTT or the executor itself.
//
// # Graceful Degradation
//
// Session history and metrics are optional. Without a session store the
// history endpoints answer 503; without metrics /metrics is not mounted.
package api
