package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/packetninja/dpbridge/internal/profile"
)

// registerProfileRequest is the body for POST /profiles.
type registerProfileRequest struct {
	VendorID string           `json:"vendor_id"`
	ModelID  string           `json:"model_id"`
	Profile  *profile.Profile `json:"profile"`
}

// handleListProfiles returns the fingerprints of all registered
// capability profiles.
func (s *Server) handleListProfiles(w http.ResponseWriter, _ *http.Request) {
	fingerprints := s.registry.Fingerprints()
	sort.Strings(fingerprints)
	writeJSON(w, http.StatusOK, map[string]any{
		"fingerprints": fingerprints,
		"count":        len(fingerprints),
	})
}

// handleRegisterProfile registers or replaces the capability profile
// for a fingerprint at runtime.
func (s *Server) handleRegisterProfile(w http.ResponseWriter, r *http.Request) {
	var req registerProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	fp := profile.Fingerprint{VendorID: req.VendorID, ModelID: req.ModelID}
	if err := s.registry.Register(fp, req.Profile); err != nil {
		if errors.Is(err, profile.ErrInvalidFingerprint) || errors.Is(err, profile.ErrInvalidProfile) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"fingerprint": fp.Key(),
		"status":      "registered",
	})
}
