package api

import (
	"encoding/json"
	"net/http"

	"github.com/haikubridge/haikubridge/internal/bridge"
	"github.com/haikubridge/haikubridge/internal/senseme"
)

// levelRequest is the body for POST /api/light/level. A pointer
// distinguishes a missing field from a literal 0.
type levelRequest struct {
	Level *int `json:"level"`
}

// handleGetLightPower reads the light power state live from the
// device. The state is derived from the brightness level: any nonzero
// level means ON.
func (s *Server) handleGetLightPower(w http.ResponseWriter, _ *http.Request) {
	state, err := s.device.GetLightPower()
	if err != nil {
		s.logger.Warn("light power read failed", "error", err)
		writeUnavailable(w, "failed to read light power")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"power": state})
}

// handleSetLightPower turns the light on or off. Turning it off
// remembers the current level; turning it back on restores that level.
func (s *Server) handleSetLightPower(w http.ResponseWriter, r *http.Request) {
	s.handleSetSwitch(w, r, bridge.FieldLightPower, "power")
}

// handleGetLightLevel reads the raw brightness level (0-16) live from
// the device.
func (s *Server) handleGetLightLevel(w http.ResponseWriter, _ *http.Request) {
	level, err := s.device.GetLightLevel()
	if err != nil {
		s.logger.Warn("light level read failed", "error", err)
		writeUnavailable(w, "failed to read light level")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"level": level})
}

// handleSetLightLevel sets the raw brightness level (0-16). The
// response carries the value the fan reports after the write.
func (s *Server) handleSetLightLevel(w http.ResponseWriter, r *http.Request) {
	var req levelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Level == nil {
		writeValidationError(w, "level is required")
		return
	}
	if *req.Level < senseme.LightMin || *req.Level > senseme.LightMax {
		writeValidationError(w, "level must be between 0 and 16")
		return
	}

	res, err := s.dispatcher.Handle(r.Context(), bridge.Intent{
		Field: bridge.FieldLightLevel,
		Level: *req.Level,
		Scale: bridge.ScaleRaw,
	})
	if err != nil {
		s.commandError(w, "light_level", err)
		return
	}

	resp := map[string]any{"success": true}
	if res.Snapshot.LightLevel != nil {
		resp["level"] = *res.Snapshot.LightLevel
	}
	writeJSON(w, http.StatusOK, resp)
}
