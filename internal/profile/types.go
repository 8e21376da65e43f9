package profile

import (
	"fmt"
	"strings"
)

// Capability is a normalized, protocol-agnostic semantic property of a
// device. Capability values are stable identifiers shared with the
// host platform's capability-synchronization layer.
type Capability string

// Control capabilities.
const (
	CapOnOff              Capability = "onoff"
	CapDim                Capability = "dim"
	CapTargetTemperature  Capability = "target_temperature"
	CapThermostatMode     Capability = "thermostat_mode"
	CapWindowCoveringsSet Capability = "windowcoverings_set"
	CapChildLock          Capability = "child_lock"
)

// Measurement capabilities.
const (
	CapMeasureTemperature Capability = "measure_temperature"
	CapMeasureHumidity    Capability = "measure_humidity"
	CapMeasureBattery     Capability = "measure_battery"
	CapMeasurePower       Capability = "measure_power"
	CapMeasureCurrent     Capability = "measure_current"
	CapMeasureVoltage     Capability = "measure_voltage"
	CapMeasureCO2         Capability = "measure_co2"
	CapMeasurePM25        Capability = "measure_pm25"
	CapMeasureLuminance   Capability = "measure_luminance"
)

// Alarm capabilities.
const (
	CapAlarmMotion  Capability = "alarm_motion"
	CapAlarmContact Capability = "alarm_contact"
	CapAlarmWater   Capability = "alarm_water"
	CapAlarmSmoke   Capability = "alarm_smoke"
	CapAlarmBattery Capability = "alarm_battery"
	CapAlarmTamper  Capability = "alarm_tamper"
)

// AllCapabilities returns all valid capability values.
func AllCapabilities() []Capability {
	return []Capability{
		// Control
		CapOnOff, CapDim, CapTargetTemperature, CapThermostatMode,
		CapWindowCoveringsSet, CapChildLock,
		// Measurement
		CapMeasureTemperature, CapMeasureHumidity, CapMeasureBattery,
		CapMeasurePower, CapMeasureCurrent, CapMeasureVoltage,
		CapMeasureCO2, CapMeasurePM25, CapMeasureLuminance,
		// Alarm
		CapAlarmMotion, CapAlarmContact, CapAlarmWater, CapAlarmSmoke,
		CapAlarmBattery, CapAlarmTamper,
	}
}

// Fingerprint identifies a device's hardware/firmware combination.
// It is an opaque lookup key; both fields are compared
// case-insensitively.
type Fingerprint struct {
	VendorID string `yaml:"vendor_id" json:"vendor_id"`
	ModelID  string `yaml:"model_id" json:"model_id"`
}

// Key returns the canonical lowercase lookup key for the fingerprint.
func (f Fingerprint) Key() string {
	return strings.ToLower(f.VendorID) + "/" + strings.ToLower(f.ModelID)
}

// String returns a human-readable representation.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%s/%s", f.VendorID, f.ModelID)
}

// RuleKind selects the conversion strategy for a capability. The set
// is closed: every consumer dispatches through an exhaustive switch so
// a new kind cannot silently fall through unhandled.
type RuleKind string

// Conversion rule kinds.
const (
	// RuleDivisor divides the raw value by a fixed divisor (with
	// optional multiplier and offset) and range-checks the result.
	RuleDivisor RuleKind = "divisor"

	// RuleMultiplier multiplies the raw value by a fixed factor.
	RuleMultiplier RuleKind = "multiplier"

	// RuleBitExtract extracts a single bit from a bitmap value,
	// yielding a boolean (or the full mask when Bit is unset and
	// FullMask is true).
	RuleBitExtract RuleKind = "bit_extract"

	// RuleEnumMap maps an enum ordinal through a named-value table.
	RuleEnumMap RuleKind = "enum_map"

	// RuleCustom applies a caller-supplied transform function.
	// Custom rules cannot be expressed in YAML; they are registered
	// at runtime only.
	RuleCustom RuleKind = "custom"
)

// Range is an inclusive numeric interval.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Defined reports whether the range carries real bounds. The zero
// value means "no range configured".
func (r Range) Defined() bool {
	return r.Max > r.Min
}

// Contains reports whether v lies inside the inclusive range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// ConversionRule describes how a decoded raw value becomes a semantic
// unit, and which corrections are permitted when the configured
// scaling turns out to be wrong for a particular firmware.
type ConversionRule struct {
	// Kind selects the conversion strategy.
	Kind RuleKind `yaml:"kind" json:"kind"`

	// Divisor, Multiplier and Offset are the base transform
	// parameters: candidate = raw/Divisor*Multiplier + Offset.
	// Zero values default to the identity (divisor 1, multiplier 1).
	Divisor    float64 `yaml:"divisor,omitempty" json:"divisor,omitempty"`
	Multiplier float64 `yaml:"multiplier,omitempty" json:"multiplier,omitempty"`
	Offset     float64 `yaml:"offset,omitempty" json:"offset,omitempty"`

	// Bit is the bit index for RuleBitExtract (0 = least significant).
	Bit uint `yaml:"bit,omitempty" json:"bit,omitempty"`

	// FullMask requests the full bitmap value as an integer instead
	// of single-bit extraction.
	FullMask bool `yaml:"full_mask,omitempty" json:"full_mask,omitempty"`

	// Enum maps ordinals to named values for RuleEnumMap.
	Enum map[uint8]string `yaml:"enum,omitempty" json:"enum,omitempty"`

	// ValidRange is the hard physical plausibility window. Results
	// outside it trigger automatic correction.
	ValidRange Range `yaml:"valid_range,omitempty" json:"valid_range,omitempty"`

	// TypicalRange is the narrower everyday window, a subset of
	// ValidRange, used to prefer plausible corrections and to drive
	// the adaptive learner's majority vote.
	TypicalRange Range `yaml:"typical_range,omitempty" json:"typical_range,omitempty"`

	// CandidateDivisors are the alternative scalings tried
	// largest-first when the base transform lands out of range.
	CandidateDivisors []float64 `yaml:"candidate_divisors,omitempty" json:"candidate_divisors,omitempty"`

	// CandidateMultipliers are tried after divisors, smallest-first.
	CandidateMultipliers []float64 `yaml:"candidate_multipliers,omitempty" json:"candidate_multipliers,omitempty"`

	// Custom is an opaque transform applied for RuleCustom. Not
	// serializable; runtime registration only.
	Custom func(raw any) (any, error) `yaml:"-" json:"-"`
}

// Clone returns an independent copy of the rule. Slice and map fields
// are duplicated so callers can mutate the copy freely.
func (r ConversionRule) Clone() ConversionRule {
	cpy := r
	if r.Enum != nil {
		cpy.Enum = make(map[uint8]string, len(r.Enum))
		for k, v := range r.Enum {
			cpy.Enum[k] = v
		}
	}
	if r.CandidateDivisors != nil {
		cpy.CandidateDivisors = append([]float64(nil), r.CandidateDivisors...)
	}
	if r.CandidateMultipliers != nil {
		cpy.CandidateMultipliers = append([]float64(nil), r.CandidateMultipliers...)
	}
	return cpy
}

// DataPointMapping binds one DataPoint id to a capability and its
// conversion rule.
type DataPointMapping struct {
	Capability Capability     `yaml:"capability" json:"capability"`
	Rule       ConversionRule `yaml:"rule" json:"rule"`
}

// Profile is the capability profile resolved for a device
// fingerprint: the ordered capability list, the DataPoint-to-capability
// map, and free-form per-profile options.
type Profile struct {
	// Capabilities is the ordered, unique capability list exposed to
	// the host platform.
	Capabilities []Capability `yaml:"capabilities" json:"capabilities"`

	// DataPoints maps DataPoint ids to capability mappings.
	DataPoints map[uint8]DataPointMapping `yaml:"datapoints" json:"datapoints"`

	// Options holds free-form profile configuration.
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty"`

	// Inferred marks a profile produced by best-effort live-traffic
	// inference rather than a registry hit. Inferred profiles carry
	// explicitly lower confidence.
	Inferred bool `yaml:"-" json:"inferred,omitempty"`
}

// Clone returns an independent deep copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cpy := &Profile{Inferred: p.Inferred}
	if p.Capabilities != nil {
		cpy.Capabilities = append([]Capability(nil), p.Capabilities...)
	}
	if p.DataPoints != nil {
		cpy.DataPoints = make(map[uint8]DataPointMapping, len(p.DataPoints))
		for id, m := range p.DataPoints {
			cpy.DataPoints[id] = DataPointMapping{
				Capability: m.Capability,
				Rule:       m.Rule.Clone(),
			}
		}
	}
	if p.Options != nil {
		cpy.Options = make(map[string]any, len(p.Options))
		for k, v := range p.Options {
			cpy.Options[k] = v
		}
	}
	return cpy
}

// HasCapability reports whether the capability appears in the
// profile's capability list.
func (p *Profile) HasCapability(c Capability) bool {
	for _, have := range p.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}
