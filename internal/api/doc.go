// Package api implements the HTTP REST API for the Haiku fan bridge.
//
// This package provides:
//   - Live-read endpoints for fan power, speed, whoosh, and light
//   - Command endpoints that return the authoritative read-back value
//   - A cached full-state endpoint backed by the bridge state cache
//   - Middleware stack (request ID, logging, recovery, CORS, rate
//     limiting, body size cap)
//
// # Architecture
//
// The server sits beside the MQTT command ingress as the second way to
// drive the fan. Writes go through the shared bridge dispatcher, so an
// HTTP command updates the cache and the retained MQTT topics exactly
// like an MQTT command does. Reads on the attribute endpoints hit the
// device directly; only /api/fan/state is served from the cache.
//
// # Error Envelope
//
// Failures use a structured JSON envelope:
//
//	{"status": 503, "code": "service_unavailable", "message": "..."}
//
// Validation failures are 400 "validation", dispatcher failures 500
// "command_failed", device reads that time out 503
// "service_unavailable", and an empty cache 503 "state_unavailable".
//
// # Graceful Degradation
//
// The server operates without MQTT: commands still apply and the
// response still carries the read-back value; only the retained topic
// publishes are skipped.
package api
