package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/packetninja/dpbridge/internal/bridge"
	"github.com/packetninja/dpbridge/internal/infrastructure/config"
	"github.com/packetninja/dpbridge/internal/infrastructure/logging"
	"github.com/packetninja/dpbridge/internal/profile"
)

// ===== Test Setup =====

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	registry := profile.NewRegistry()
	manager := bridge.NewManager(bridge.Options{
		Registry: registry,
		Window:   time.Hour,
	})
	t.Cleanup(func() { _ = manager.Close() })

	logger := logging.New(config.LoggingConfig{Level: "error", Format: "text"}, "test")
	s, err := New(Deps{
		Logger:   logger,
		Bridge:   manager,
		Registry: registry,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, s.buildRouter()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return out
}

// ===== Health =====

func TestHandleHealth(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
}

// ===== Devices =====

func TestDeviceRegistrationLifecycle(t *testing.T) {
	_, router := newTestServer(t)

	// Register
	rec := doJSON(t, router, http.MethodPost, "/api/v1/devices", map[string]string{
		"device_id": "zb-0012",
		"vendor_id": "_TZE200_abc",
		"model_id":  "TS0601",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	// Duplicate registration conflicts
	rec = doJSON(t, router, http.MethodPost, "/api/v1/devices", map[string]string{
		"device_id": "zb-0012",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", rec.Code)
	}

	// Missing device id
	rec = doJSON(t, router, http.MethodPost, "/api/v1/devices", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty register status = %d, want 400", rec.Code)
	}

	// List includes the device
	rec = doJSON(t, router, http.MethodGet, "/api/v1/devices", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["count"].(float64) != 1 {
		t.Errorf("device count = %v, want 1", body["count"])
	}

	// Get one
	rec = doJSON(t, router, http.MethodGet, "/api/v1/devices/zb-0012", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["device_id"] != "zb-0012" {
		t.Errorf("device_id = %v", body["device_id"])
	}

	// Remove
	rec = doJSON(t, router, http.MethodDelete, "/api/v1/devices/zb-0012", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/api/v1/devices/zb-0012", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestHandleGetDeviceNotFound(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/devices/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "not_found" {
		t.Errorf("error code = %v, want not_found", body["code"])
	}
}

func TestHandleSetDeviceState(t *testing.T) {
	s, router := newTestServer(t)
	if err := s.bridge.AddDevice("zb-0012", profile.Fingerprint{}); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}

	tests := []struct {
		name       string
		deviceID   string
		body       map[string]any
		wantStatus int
	}{
		{"valid onoff command", "zb-0012", map[string]any{"capability": "onoff", "value": true}, http.StatusAccepted},
		{"unknown device", "ghost", map[string]any{"capability": "onoff", "value": true}, http.StatusNotFound},
		{"unmapped capability", "zb-0012", map[string]any{"capability": "alarm_smoke", "value": true}, http.StatusBadRequest},
		{"wrong value type", "zb-0012", map[string]any{"capability": "onoff", "value": "yes"}, http.StatusBadRequest},
		{"missing capability", "zb-0012", map[string]any{"value": true}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPut, "/api/v1/devices/"+tt.deviceID+"/state", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

// ===== Affinity =====

func TestAffinityEndpoints(t *testing.T) {
	s, router := newTestServer(t)
	if err := s.bridge.AddDevice("zb-0012", profile.Fingerprint{}); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := s.bridge.HandleClusterReport("zb-0012", 0x0402, "measuredValue", 2150); err != nil {
			t.Fatalf("HandleClusterReport() error = %v", err)
		}
	}

	// Still observing: hybrid, not decided
	rec := doJSON(t, router, http.MethodGet, "/api/v1/devices/zb-0012/affinity", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get affinity status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["affinity"] != "hybrid" || body["decided"] != false {
		t.Errorf("observing affinity = %v decided = %v, want hybrid/false", body["affinity"], body["decided"])
	}
	if body["cluster_events"].(float64) != 5 {
		t.Errorf("cluster_events = %v, want 5", body["cluster_events"])
	}

	// Force the decision
	rec = doJSON(t, router, http.MethodPost, "/api/v1/devices/zb-0012/affinity/decide", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("decide status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["affinity"] != "cluster_only" {
		t.Errorf("decided affinity = %v, want cluster_only", body["affinity"])
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/devices/zb-0012/affinity", nil)
	body = decodeBody(t, rec)
	if body["affinity"] != "cluster_only" || body["decided"] != true {
		t.Errorf("committed affinity = %v decided = %v", body["affinity"], body["decided"])
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/devices/ghost/affinity/decide", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("decide for unknown device status = %d, want 404", rec.Code)
	}
}

// ===== Learned State =====

func TestLearnedEndpoints(t *testing.T) {
	s, router := newTestServer(t)

	// Three miscalibrated temperature reports promote divisor 100.
	frame := []byte{101, 0x02, 0x00, 0x04, 0x00, 0x00, 0x09, 0xE2} // dp 101, value 2530
	for i := 0; i < 3; i++ {
		if err := s.bridge.HandleRawFrame("zb-0012", frame); err != nil {
			t.Fatalf("HandleRawFrame() error = %v", err)
		}
	}

	rec := doJSON(t, router, http.MethodGet, "/api/v1/learned", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list learned status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["count"].(float64) != 1 {
		t.Fatalf("learned count = %v, want 1: %s", body["count"], rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/devices/zb-0012/learned", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("forget learned status = %d, want 200", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/api/v1/learned", nil)
	if body := decodeBody(t, rec); body["count"].(float64) != 0 {
		t.Errorf("learned count after reset = %v, want 0", body["count"])
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/devices/ghost/learned", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("forget for unknown device status = %d, want 404", rec.Code)
	}
}

// ===== Profiles =====

func TestProfileEndpoints(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/profiles", nil)
	if body := decodeBody(t, rec); body["count"].(float64) != 0 {
		t.Fatalf("initial profile count = %v, want 0", body["count"])
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/profiles", map[string]any{
		"vendor_id": "_TZE200_abc",
		"model_id":  "TS0601",
		"profile": map[string]any{
			"capabilities": []string{"measure_temperature"},
			"datapoints": map[string]any{
				"101": map[string]any{
					"capability": "measure_temperature",
					"rule": map[string]any{
						"kind":        "divisor",
						"divisor":     10,
						"valid_range": map[string]float64{"min": -40, "max": 125},
					},
				},
			},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register profile status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["fingerprint"] != "_tze200_abc/ts0601" {
		t.Errorf("fingerprint = %v", body["fingerprint"])
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/profiles", nil)
	if body := decodeBody(t, rec); body["count"].(float64) != 1 {
		t.Errorf("profile count = %v, want 1", body["count"])
	}

	// Missing fingerprint fields
	rec = doJSON(t, router, http.MethodPost, "/api/v1/profiles", map[string]any{
		"profile": map[string]any{"capabilities": []string{"onoff"}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid fingerprint status = %d, want 400", rec.Code)
	}

	// Structurally invalid profile
	rec = doJSON(t, router, http.MethodPost, "/api/v1/profiles", map[string]any{
		"vendor_id": "v", "model_id": "m",
		"profile": map[string]any{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid profile status = %d, want 400", rec.Code)
	}
}
