// Package bridge connects a Haiku fan session to MQTT and to the HTTP
// API. It owns the write path, the state cache, and the two state
// refresh mechanisms (read-back after writes, periodic polling).
//
// # Components
//
// Five pieces cooperate, each independently constructible and testable:
//
//	┌──────────┐ intents ┌────────────┐ writes  ┌─────────┐
//	│ Commands ├────────►│ Dispatcher ├────────►│ Device  │
//	│ (MQTT)   │         │            │◄────────┤ (fan)   │
//	└──────────┘         └─────┬──────┘ reads   └────┬────┘
//	                           │ patches             │ reads
//	                     ┌─────▼──────┐         ┌────▼────┐
//	                     │ StateCache │◄────────┤ Poller  │
//	                     └─────┬──────┘ replaces└────┬────┘
//	                           │                     │
//	                           ▼                     ▼
//	                     ┌────────────────────────────┐
//	                     │         Publisher          │
//	                     │ (retained MQTT state keys) │
//	                     └────────────────────────────┘
//
// The HTTP API drives the Dispatcher directly for writes and reads the
// StateCache (or the device) for queries.
//
// # Write Path
//
// Every write follows the same sequence regardless of origin: validate
// the intent, send it to the fan, wait a settle delay, read the
// affected attribute back, patch the cache, publish the refreshed
// fields. The read-back value is authoritative because the fan snaps
// levels to its raw scale; a request for 50% fan speed lands on raw 4
// and reads back as 57%.
//
// # State Topics
//
// The Publisher writes one retained plain-text message per attribute
// ({base}/power, {base}/speed, ...). Speed and light level are
// published as percentages, with the raw device units mirrored on the
// _raw topics. Each poll cycle additionally publishes the whole
// snapshot as retained JSON on {base}/state, in raw units. Commands
// arrive on {base}/{field}/set for the four commandable fields; whoosh
// is settable over HTTP only.
//
// # Polling
//
// The fan pushes nothing. Changes made with the IR remote or the vendor
// app only become visible by asking, so the Poller re-reads the full
// state on an interval and republishes it. A cycle where every read
// fails leaves the cache untouched; consumers keep the last known state
// rather than seeing it vanish.
package bridge
