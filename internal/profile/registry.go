package profile

import (
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry maps device fingerprints to capability profiles.
//
// Resolution is exact case-insensitive match only; fuzzy or prefix
// matching belongs to the driver-selection heuristic upstream, not
// here. Runtime registration is supported and idempotent:
// re-registering a fingerprint overwrites the previous profile.
//
// All public methods are thread-safe.
type Registry struct {
	profiles map[string]*Profile // keyed by Fingerprint.Key()
	mu       sync.RWMutex
	logger   Logger
}

// NewRegistry creates an empty profile registry.
func NewRegistry() *Registry {
	return &Registry{
		profiles: make(map[string]*Profile),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Resolve looks up the capability profile for a fingerprint.
//
// The second return value is false when the fingerprint is unmapped.
// Absence of a mapping is not an error: callers fall back to
// best-effort live-traffic inference (see InferProfile) at explicitly
// lower confidence.
//
// The returned profile is a deep copy; callers can safely modify it.
func (r *Registry) Resolve(fp Fingerprint) (*Profile, bool) {
	r.mu.RLock()
	p, ok := r.profiles[fp.Key()]
	r.mu.RUnlock()

	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Register adds or replaces the profile for a fingerprint.
//
// Registration is idempotent; an existing mapping is overwritten.
// Structural problems fail with ErrInvalidProfile; the soft invariant
// (every mapped capability should appear in the capability list) is
// logged, not fatal.
func (r *Registry) Register(fp Fingerprint, p *Profile) error {
	if fp.VendorID == "" || fp.ModelID == "" {
		return fmt.Errorf("%w: vendor and model ids are required", ErrInvalidFingerprint)
	}
	if err := validateProfile(p); err != nil {
		return err
	}

	for _, warning := range softWarnings(p) {
		r.logger.Warn("profile soft invariant violation", "fingerprint", fp.String(), "detail", warning)
	}

	r.mu.Lock()
	_, replaced := r.profiles[fp.Key()]
	r.profiles[fp.Key()] = p.Clone()
	r.mu.Unlock()

	if replaced {
		r.logger.Info("profile re-registered", "fingerprint", fp.String())
	} else {
		r.logger.Debug("profile registered", "fingerprint", fp.String(),
			"capabilities", len(p.Capabilities), "datapoints", len(p.DataPoints))
	}
	return nil
}

// Count returns the number of registered profiles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

// Fingerprints returns the keys of all registered profiles. Intended
// for the operational API; order is unspecified.
func (r *Registry) Fingerprints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.profiles))
	for k := range r.profiles {
		keys = append(keys, k)
	}
	return keys
}

// validateProfile checks the hard structural invariants of a profile.
func validateProfile(p *Profile) error {
	if p == nil {
		return fmt.Errorf("%w: profile is nil", ErrInvalidProfile)
	}
	if len(p.Capabilities) == 0 && len(p.DataPoints) == 0 {
		return fmt.Errorf("%w: profile has neither capabilities nor datapoint mappings", ErrInvalidProfile)
	}

	seen := make(map[Capability]struct{}, len(p.Capabilities))
	for _, c := range p.Capabilities {
		if c == "" {
			return fmt.Errorf("%w: empty capability id", ErrInvalidProfile)
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("%w: duplicate capability %q", ErrInvalidProfile, c)
		}
		seen[c] = struct{}{}
	}

	for id, m := range p.DataPoints {
		if m.Capability == "" {
			return fmt.Errorf("%w: datapoint %d maps to an empty capability", ErrInvalidProfile, id)
		}
	}
	return nil
}

// softWarnings collects soft invariant violations: datapoint mappings
// referencing capabilities absent from the capability list.
func softWarnings(p *Profile) []string {
	var warnings []string
	for id, m := range p.DataPoints {
		if !p.HasCapability(m.Capability) {
			warnings = append(warnings,
				fmt.Sprintf("datapoint %d maps to capability %q not in capability list", id, m.Capability))
		}
	}
	return warnings
}
