package api

import (
	"net/http"
)

// handleIndex returns a service descriptor listing the API surface.
// Useful as a quick smoke test and for discovering routes with curl.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "haikubridge",
		"version": s.version,
		"endpoints": []string{
			"GET /health",
			"GET /api/fan/state",
			"GET|POST /api/fan/power",
			"GET|POST /api/fan/speed",
			"GET|POST /api/fan/whoosh",
			"GET|POST /api/light/power",
			"GET|POST /api/light/level",
		},
	})
}

// handleHealth returns the bridge health status. The fan and broker
// flags report last-known connectivity without blocking on either; a
// "connected" fan is a UDP socket with a resolved identity, not a
// liveness guarantee.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	mqttConnected := s.broker != nil && s.broker.IsConnected()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        s.version,
		"fan_connected":  s.device.IsConnected(),
		"mqtt_connected": mqttConnected,
	})
}
