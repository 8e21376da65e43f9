package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/packetninja/dpbridge/internal/bridge"
	"github.com/packetninja/dpbridge/internal/profile"
)

// registerDeviceRequest is the body for POST /devices.
type registerDeviceRequest struct {
	DeviceID string `json:"device_id"`
	VendorID string `json:"vendor_id"`
	ModelID  string `json:"model_id"`
}

// setStateRequest is the body for PUT /devices/{id}/state.
type setStateRequest struct {
	Capability string `json:"capability"`
	Value      any    `json:"value"`
}

// affinityResponse is the body for GET /devices/{id}/affinity.
// Timestamp fields are RFC3339 and omitted while unset.
type affinityResponse struct {
	DeviceID         string `json:"device_id"`
	Affinity         string `json:"affinity"`
	Decided          bool   `json:"decided"`
	ClusterEvents    int    `json:"cluster_events"`
	DataPointEvents  int    `json:"datapoint_events"`
	LastClusterHit   string `json:"last_cluster_hit,omitempty"`
	LastDataPointHit string `json:"last_datapoint_hit,omitempty"`
	DecidedAt        string `json:"decided_at,omitempty"`
}

// handleListDevices returns all device sessions.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.bridge.Devices()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleRegisterDevice registers a device explicitly with its
// fingerprint, so the capability profile can resolve before traffic
// arrives.
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}

	fp := profile.Fingerprint{VendorID: req.VendorID, ModelID: req.ModelID}
	if err := s.bridge.AddDevice(req.DeviceID, fp); err != nil {
		if errors.Is(err, bridge.ErrDeviceExists) {
			writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
			return
		}
		writeInternalError(w, err.Error())
		return
	}

	info, _ := s.bridge.Device(req.DeviceID)
	writeJSON(w, http.StatusCreated, info)
}

// handleGetDevice returns one device session.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, ok := s.bridge.Device(id)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleRemoveDevice drops a device session and all its learned state.
func (s *Server) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.bridge.RemoveDevice(id); err != nil {
		if errors.Is(err, bridge.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// handleSetDeviceState encodes a capability command and sends it to the
// device through the radio front-end.
func (s *Server) handleSetDeviceState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Capability == "" {
		writeBadRequest(w, "capability is required")
		return
	}

	err := s.bridge.SendCommand(id, profile.Capability(req.Capability), req.Value)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
	case errors.Is(err, bridge.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
	case errors.Is(err, bridge.ErrNoMapping), errors.Is(err, bridge.ErrInvalidPayload):
		writeBadRequest(w, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}

// handleGetAffinity returns the protocol affinity for a device: the
// committed decision, or the live observation counts while the window
// is still open.
func (s *Server) handleGetAffinity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, ok := s.bridge.Device(id)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	resp := affinityResponse{
		DeviceID:        id,
		Affinity:        string(info.Affinity),
		Decided:         info.AffinityDecided,
		ClusterEvents:   info.ClusterEvents,
		DataPointEvents: info.DataPointEvents,
	}
	if !info.LastClusterHit.IsZero() {
		resp.LastClusterHit = info.LastClusterHit.Format(time.RFC3339)
	}
	if !info.LastDataPointHit.IsZero() {
		resp.LastDataPointHit = info.LastDataPointHit.Format(time.RFC3339)
	}
	if d, ok := s.bridge.ProtocolAffinity(id); ok {
		resp.DecidedAt = d.DecidedAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDecideAffinity closes a device's observation window early,
// committing the affinity from the counts so far.
func (s *Server) handleDecideAffinity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := s.bridge.DecideAffinity(id)
	if err != nil {
		if errors.Is(err, bridge.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleListLearned returns the learned scaling divisors across all
// devices.
func (s *Server) handleListLearned(w http.ResponseWriter, _ *http.Request) {
	learned := s.bridge.Learned()
	writeJSON(w, http.StatusOK, map[string]any{
		"learned": learned,
		"count":   len(learned),
	})
}

// handleForgetLearned clears a device's learned scaling state so
// learning starts over from its next reading.
func (s *Server) handleForgetLearned(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.bridge.ForgetLearned(id); err != nil {
		if errors.Is(err, bridge.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
