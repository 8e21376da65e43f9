package normalize

import (
	"github.com/packetninja/dpbridge/internal/profile"
)

// Normalizer combines the pure conversion algorithm with the adaptive
// learner: learned divisors short-circuit the correction search, and
// every successful correction feeds back into the learner.
//
// Like the learner it wraps, a Normalizer is not safe for concurrent
// use; the bridge manager serializes all protocol events.
type Normalizer struct {
	learner *Learner
	logger  Logger
}

// NewNormalizer creates a normalizer around a learner.
func NewNormalizer(learner *Learner) *Normalizer {
	return &Normalizer{learner: learner, logger: noopLogger{}}
}

// SetLogger sets the logger for the normalizer.
func (n *Normalizer) SetLogger(logger Logger) {
	n.logger = logger
}

// Learner exposes the wrapped learner for state queries and resets.
func (n *Normalizer) Learner() *Learner {
	return n.learner
}

// Normalize converts a decoded raw value for one (device, capability)
// pair into its semantic unit.
//
// For numeric rules the flow is:
//
//  1. The observation is recorded with the learner (which may trigger
//     its majority-vote promotion).
//  2. The base transform is tried; an in-range result needs no
//     correction, so an already-correct value passes through
//     unchanged.
//  3. A previously learned divisor is applied directly and
//     range-checked, bypassing the full correction search. If the
//     direct application fails validation the divisor is dropped and
//     the full search runs again.
//  4. Otherwise the full divisor/multiplier correction search runs,
//     and any success is reported back to the learner.
//
// Direct transforms (bit extraction, enum mapping, custom functions)
// bypass the learner entirely; there is nothing to learn about
// boolean or enumerated outcomes.
func (n *Normalizer) Normalize(deviceID string, capability profile.Capability, raw any, rule profile.ConversionRule) Result {
	switch rule.Kind {
	case profile.RuleBitExtract, profile.RuleEnumMap, profile.RuleCustom:
		r, err := Apply(raw, rule)
		if err != nil {
			n.logger.Warn("direct transform failed",
				"device", deviceID, "capability", capability, "error", err)
			return Result{IsValid: false, Value: nil, Correction: CorrectionRejected}
		}
		return r
	case profile.RuleDivisor, profile.RuleMultiplier:
		// Numeric path continues below.
	default:
		n.logger.Warn("unknown rule kind",
			"device", deviceID, "capability", capability, "kind", rule.Kind)
		return Result{IsValid: false, Value: nil, Correction: CorrectionRejected}
	}

	f, err := toFloat(raw)
	if err != nil {
		n.logger.Warn("non-numeric raw value",
			"device", deviceID, "capability", capability, "error", err)
		return Result{IsValid: false, Value: nil, Correction: CorrectionRejected}
	}

	n.learner.Observe(deviceID, capability, f, rule)

	// An in-range base transform needs no correction; this keeps
	// normalization idempotent for well-scaled devices.
	candidate := baseTransform(f, rule)
	if !rule.ValidRange.Defined() || rule.ValidRange.Contains(candidate) {
		return Result{IsValid: true, Value: candidate, Correction: CorrectionNone}
	}

	// Learned-divisor shortcut: direct application, range-checked.
	if d, ok := n.learner.Learned(deviceID, capability); ok {
		v := f / d
		if rule.ValidRange.Contains(v) {
			return Result{
				IsValid:        true,
				Value:          v,
				Correction:     CorrectionDivisor,
				AppliedDivisor: d,
			}
		}
		n.learner.Unlearn(deviceID, capability)
	}

	r, err := Apply(raw, rule)
	if err != nil {
		n.logger.Warn("normalization failed",
			"device", deviceID, "capability", capability, "error", err)
		return Result{IsValid: false, Value: nil, Correction: CorrectionRejected}
	}

	switch r.Correction {
	case CorrectionDivisor:
		n.learner.RecordCorrection(deviceID, capability, r.AppliedDivisor)
	case CorrectionMultiplier:
		// Multiplier corrections are not tallied for promotion; only
		// divisor scalings are learnable.
		n.logger.Debug("multiplier correction applied",
			"device", deviceID, "capability", capability, "multiplier", r.AppliedMultiplier)
	case CorrectionNone, CorrectionClampedMin, CorrectionRejected:
		// Nothing to report.
	}
	return r
}
