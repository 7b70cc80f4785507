package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/haikubridge/haikubridge/internal/bridge"
	"github.com/haikubridge/haikubridge/internal/senseme"
)

// stateRequest is the body for the ON/OFF command endpoints.
type stateRequest struct {
	State string `json:"state"`
}

// speedRequest is the body for POST /api/fan/speed. A pointer
// distinguishes a missing field from a literal 0.
type speedRequest struct {
	Speed *int `json:"speed"`
}

// handleFanState returns the full cached snapshot. The cache fills on
// the first successful poll cycle or command read-back.
func (s *Server) handleFanState(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.cache.Read()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, ErrCodeStateUnavailable,
			"fan state not read yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleGetFanPower reads the fan power state live from the device.
func (s *Server) handleGetFanPower(w http.ResponseWriter, _ *http.Request) {
	state, err := s.device.GetPower()
	if err != nil {
		s.logger.Warn("fan power read failed", "error", err)
		writeUnavailable(w, "failed to read fan power")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"power": state})
}

// handleSetFanPower turns the fan motor on or off.
func (s *Server) handleSetFanPower(w http.ResponseWriter, r *http.Request) {
	s.handleSetSwitch(w, r, bridge.FieldPower, "power")
}

// handleGetFanSpeed reads the raw fan speed (0-7) live from the device.
func (s *Server) handleGetFanSpeed(w http.ResponseWriter, _ *http.Request) {
	speed, err := s.device.GetSpeed()
	if err != nil {
		s.logger.Warn("fan speed read failed", "error", err)
		writeUnavailable(w, "failed to read fan speed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"speed": speed})
}

// handleSetFanSpeed sets the raw fan speed (0-7). The response carries
// the value the fan reports after the write, which is authoritative.
func (s *Server) handleSetFanSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Speed == nil {
		writeValidationError(w, "speed is required")
		return
	}
	if *req.Speed < senseme.SpeedMin || *req.Speed > senseme.SpeedMax {
		writeValidationError(w, "speed must be between 0 and 7")
		return
	}

	res, err := s.dispatcher.Handle(r.Context(), bridge.Intent{
		Field: bridge.FieldSpeed,
		Level: *req.Speed,
		Scale: bridge.ScaleRaw,
	})
	if err != nil {
		s.commandError(w, "speed", err)
		return
	}

	resp := map[string]any{"success": true}
	if res.Snapshot.Speed != nil {
		resp["speed"] = *res.Snapshot.Speed
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetWhoosh reads the whoosh mode live from the device.
func (s *Server) handleGetWhoosh(w http.ResponseWriter, _ *http.Request) {
	state, err := s.device.GetWhoosh()
	if err != nil {
		s.logger.Warn("whoosh read failed", "error", err)
		writeUnavailable(w, "failed to read whoosh mode")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"whoosh": state})
}

// handleSetWhoosh toggles the whoosh breeze-simulation mode. Whoosh is
// deliberately absent from the MQTT command topics; this endpoint is
// the only remote way to change it.
func (s *Server) handleSetWhoosh(w http.ResponseWriter, r *http.Request) {
	s.handleSetSwitch(w, r, bridge.FieldWhoosh, "whoosh")
}

// handleSetSwitch serves the ON/OFF command endpoints, which differ
// only in the intent field and the response key.
func (s *Server) handleSetSwitch(w http.ResponseWriter, r *http.Request, field bridge.Field, key string) {
	var req stateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	state, err := senseme.ParsePowerState(req.State)
	if err != nil {
		writeValidationError(w, "state must be ON or OFF")
		return
	}

	res, err := s.dispatcher.Handle(r.Context(), bridge.Intent{Field: field, State: state})
	if err != nil {
		s.commandError(w, string(field), err)
		return
	}

	resp := map[string]any{"success": true}
	if value, ok := switchValue(field, res.Snapshot); ok {
		resp[key] = value
	}
	writeJSON(w, http.StatusOK, resp)
}

// switchValue extracts the read-back value for a switch field. ok is
// false when the read-back failed and the snapshot is empty.
func switchValue(field bridge.Field, snap bridge.Snapshot) (senseme.PowerState, bool) {
	switch field {
	case bridge.FieldPower:
		if snap.Power != nil {
			return *snap.Power, true
		}
	case bridge.FieldWhoosh:
		if snap.Whoosh != nil {
			return *snap.Whoosh, true
		}
	case bridge.FieldLightPower:
		if snap.LightPower != nil {
			return *snap.LightPower, true
		}
	}
	return "", false
}

// commandError maps a dispatcher failure to the right error response.
func (s *Server) commandError(w http.ResponseWriter, field string, err error) {
	if errors.Is(err, bridge.ErrInvalidIntent) || errors.Is(err, senseme.ErrValueOutOfRange) || errors.Is(err, senseme.ErrInvalidState) {
		writeValidationError(w, err.Error())
		return
	}
	s.logger.Error("command failed", "field", field, "error", err)
	writeError(w, http.StatusInternalServerError, ErrCodeCommandFailed,
		"failed to apply "+field+" command")
}
