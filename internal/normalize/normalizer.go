package normalize

import (
	"fmt"
	"sort"

	"github.com/packetninja/dpbridge/internal/profile"
)

// Correction identifies which automatic correction, if any, produced a
// normalized value.
type Correction string

// Correction kinds.
const (
	// CorrectionNone means the base transform landed in range.
	CorrectionNone Correction = "none"

	// CorrectionDivisor means an alternative divisor was applied.
	CorrectionDivisor Correction = "divisor"

	// CorrectionMultiplier means an alternative multiplier was applied.
	CorrectionMultiplier Correction = "multiplier"

	// CorrectionClampedMin means the result fell below the valid
	// minimum and was clamped to it (treated as a plausible boundary
	// report).
	CorrectionClampedMin Correction = "clamped_min"

	// CorrectionRejected means the value stayed above the valid
	// maximum after every correction and was discarded as erratic.
	CorrectionRejected Correction = "rejected"
)

// Result is the outcome of normalizing one raw value.
type Result struct {
	// IsValid reports whether Value may be used. A rejected reading
	// has IsValid false and a nil Value.
	IsValid bool `json:"is_valid"`

	// Value is the normalized semantic value (float64, bool, string
	// or int64 depending on the rule kind). Nil when rejected.
	Value any `json:"value"`

	// Correction records which automatic correction produced Value.
	Correction Correction `json:"correction"`

	// AppliedDivisor is the divisor used when Correction is
	// CorrectionDivisor, zero otherwise.
	AppliedDivisor float64 `json:"applied_divisor,omitempty"`

	// AppliedMultiplier is the multiplier used when Correction is
	// CorrectionMultiplier, zero otherwise.
	AppliedMultiplier float64 `json:"applied_multiplier,omitempty"`
}

// Apply converts a decoded raw value into a semantic unit via a
// conversion rule, validating it and attempting automatic correction
// when it lands out of range.
//
// The algorithm:
//
//  1. Direct transforms (bit extraction, enum mapping, custom
//     function) are applied and returned as-is; range correction never
//     applies to boolean or enumerated outcomes.
//  2. The base transform raw/divisor*multiplier + offset is computed;
//     a result inside the rule's valid range returns with
//     CorrectionNone.
//  3. Candidate divisors are tried largest-first (skipping the
//     identity divisor 1); the first whose quotient lands inside the
//     valid range wins, preferring but not requiring the narrower
//     typical range by virtue of the search order.
//  4. Candidate multipliers are tried the same way.
//  5. A result still below the valid minimum is clamped to it; a
//     result still above the maximum is rejected with a nil value.
//
// Apply is pure: learner integration (learned-divisor shortcuts and
// correction reporting) lives in Normalizer.Normalize.
func Apply(raw any, rule profile.ConversionRule) (Result, error) {
	switch rule.Kind {
	case profile.RuleBitExtract:
		return applyBitExtract(raw, rule)
	case profile.RuleEnumMap:
		return applyEnumMap(raw, rule)
	case profile.RuleCustom:
		return applyCustom(raw, rule)
	case profile.RuleDivisor, profile.RuleMultiplier:
		return applyNumeric(raw, rule)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownRuleKind, rule.Kind)
	}
}

// applyBitExtract extracts a single bit from a bitmap (or returns the
// full mask as an integer when the rule requests it).
func applyBitExtract(raw any, rule profile.ConversionRule) (Result, error) {
	// Booleans pass through: the device already sent the final form.
	if b, ok := raw.(bool); ok {
		return Result{IsValid: true, Value: b, Correction: CorrectionNone}, nil
	}

	f, err := toFloat(raw)
	if err != nil {
		return Result{}, err
	}
	mask := uint32(int64(f)) //nolint:gosec // wire values are 32-bit

	if rule.FullMask {
		return Result{IsValid: true, Value: int64(mask), Correction: CorrectionNone}, nil
	}
	bit := (mask >> rule.Bit) & 0x01
	return Result{IsValid: true, Value: bit != 0, Correction: CorrectionNone}, nil
}

// applyEnumMap maps an enum ordinal through the rule's named-value
// table. An ordinal without a table entry passes through unchanged;
// surfacing the raw ordinal beats dropping the report.
func applyEnumMap(raw any, rule profile.ConversionRule) (Result, error) {
	f, err := toFloat(raw)
	if err != nil {
		return Result{}, err
	}
	ordinal := uint8(int64(f) & 0xFF) //nolint:gosec // enum ordinals are single-byte

	if name, ok := rule.Enum[ordinal]; ok {
		return Result{IsValid: true, Value: name, Correction: CorrectionNone}, nil
	}
	return Result{IsValid: true, Value: int64(ordinal), Correction: CorrectionNone}, nil
}

// applyCustom runs the rule's opaque transform function.
func applyCustom(raw any, rule profile.ConversionRule) (Result, error) {
	if rule.Custom == nil {
		return Result{}, ErrMissingCustomFunc
	}
	v, err := rule.Custom(raw)
	if err != nil {
		return Result{IsValid: false, Value: nil, Correction: CorrectionRejected}, nil //nolint:nilerr // failure degrades to rejection
	}
	return Result{IsValid: true, Value: v, Correction: CorrectionNone}, nil
}

// applyNumeric runs the scaled transform with range validation and
// the divisor/multiplier correction search.
func applyNumeric(raw any, rule profile.ConversionRule) (Result, error) {
	f, err := toFloat(raw)
	if err != nil {
		return Result{}, err
	}

	candidate := baseTransform(f, rule)

	// No configured range means no validation is possible.
	if !rule.ValidRange.Defined() {
		return Result{IsValid: true, Value: candidate, Correction: CorrectionNone}, nil
	}

	if rule.ValidRange.Contains(candidate) {
		return Result{IsValid: true, Value: candidate, Correction: CorrectionNone}, nil
	}

	if r, ok := searchDivisors(f, rule); ok {
		return r, nil
	}
	if r, ok := searchMultipliers(f, rule); ok {
		return r, nil
	}

	// Below-minimum results are plausible boundary reports; clamp.
	// Above-maximum results are erratic; reject rather than clamp.
	if candidate < rule.ValidRange.Min {
		return Result{IsValid: true, Value: rule.ValidRange.Min, Correction: CorrectionClampedMin}, nil
	}
	return Result{IsValid: false, Value: nil, Correction: CorrectionRejected}, nil
}

// baseTransform computes raw/divisor*multiplier + offset with identity
// defaults for unset parameters.
func baseTransform(raw float64, rule profile.ConversionRule) float64 {
	divisor := rule.Divisor
	if divisor == 0 {
		divisor = 1
	}
	multiplier := rule.Multiplier
	if multiplier == 0 {
		multiplier = 1
	}
	return raw/divisor*multiplier + rule.Offset
}

// searchDivisors tries the rule's candidate divisors largest-first,
// skipping the identity divisor. The first quotient landing inside the
// valid range is accepted.
//
// The order-based preference means a typical-range landing wins only
// when it appears before a merely-valid landing; this mirrors the
// behaviour real device telemetry was calibrated against.
func searchDivisors(raw float64, rule profile.ConversionRule) (Result, bool) {
	divisors := append([]float64(nil), rule.CandidateDivisors...)
	sort.Sort(sort.Reverse(sort.Float64Slice(divisors)))

	for _, d := range divisors {
		if d == 0 || d == 1 {
			continue
		}
		v := raw / d
		if rule.ValidRange.Contains(v) {
			return Result{
				IsValid:        true,
				Value:          v,
				Correction:     CorrectionDivisor,
				AppliedDivisor: d,
			}, true
		}
	}
	return Result{}, false
}

// searchMultipliers tries the rule's candidate multipliers in
// configured order after the divisor search has failed.
func searchMultipliers(raw float64, rule profile.ConversionRule) (Result, bool) {
	for _, m := range rule.CandidateMultipliers {
		if m == 0 || m == 1 {
			continue
		}
		v := raw * m
		if rule.ValidRange.Contains(v) {
			return Result{
				IsValid:           true,
				Value:             v,
				Correction:        CorrectionMultiplier,
				AppliedMultiplier: m,
			}, true
		}
	}
	return Result{}, false
}

// toFloat coerces the value kinds the type decoder produces.
func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrNotNumeric, raw)
	}
}
