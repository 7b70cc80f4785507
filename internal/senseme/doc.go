// Package senseme implements the SenseME UDP protocol spoken by Haiku
// ceiling-fan controllers.
//
// This package provides the device-facing half of the bridge. It frames
// commands, parses replies, owns the UDP socket, and exposes typed
// get/set operations for the fan motor, whoosh mode, and light.
//
// # Architecture
//
// The session sits between the bridge orchestration layer and the fan:
//
//	┌─────────────────┐            ┌─────────────────┐
//	│  Bridge / API   │  typed ops │     Session     │    UDP :31415
//	│   (callers)     │◄──────────►│   (this pkg)    │◄────────────► Fan
//	└─────────────────┘            └─────────────────┘
//
// # Wire Format
//
// Commands and replies are ASCII frames with `;`-separated fields and
// no escape mechanism:
//
//	outbound:  <Name;FAN;SPD;SET;4>
//	inbound:   (Name;FAN;SPD;ACTUAL;4)
//
// There are no message IDs; a reply can only be correlated with the
// most recently sent command. The session therefore allows at most one
// command in flight and holds its lock for the entire
// send/receive/decode cycle.
//
// # Scales
//
// The device speaks raw integer scales: fan speed 0-7, light level
// 0-16. The conversion helpers translate between those scales and
// 0-100 percentages using integer round-half-up arithmetic; the
// mappings are intentionally not exact inverses for every input.
//
// # Connection Model
//
// UDP is connectionless, so "connected" means only that the socket is
// allocated and the device identity (the frame name prefix) has been
// resolved. Any transport fault drops the session back to disconnected
// and the next operation transparently reconnects. There are no
// automatic retries: each operation gets exactly one round trip.
//
// # Thread Safety
//
// All exported methods on Session are safe for concurrent use.
package senseme
