package profile

import "sort"

// Conventional DataPoint id assignments observed across the vendor's
// device families. Firmware authors reuse these slots consistently
// enough that they make a usable fallback when a fingerprint has no
// registered profile, but they are conventions, not guarantees, which
// is why inferred profiles carry lower confidence.
var conventionalDataPoints = map[uint8]DataPointMapping{
	1: {Capability: CapOnOff, Rule: ConversionRule{Kind: RuleBitExtract, Bit: 0}},
	2: {Capability: CapDim, Rule: ConversionRule{
		Kind:              RuleDivisor,
		Divisor:           10,
		ValidRange:        Range{Min: 0, Max: 100},
		TypicalRange:      Range{Min: 0, Max: 100},
		CandidateDivisors: []float64{1000, 100, 10},
	}},
	4: {Capability: CapMeasureBattery, Rule: ConversionRule{
		Kind:              RuleDivisor,
		Divisor:           1,
		ValidRange:        Range{Min: 0, Max: 100},
		TypicalRange:      Range{Min: 5, Max: 100},
		CandidateDivisors: []float64{100, 10},
	}},
	18: {Capability: CapMeasureCurrent, Rule: ConversionRule{
		Kind:              RuleDivisor,
		Divisor:           1000,
		ValidRange:        Range{Min: 0, Max: 100},
		TypicalRange:      Range{Min: 0, Max: 16},
		CandidateDivisors: []float64{1000, 100, 10},
	}},
	19: {Capability: CapMeasurePower, Rule: ConversionRule{
		Kind:              RuleDivisor,
		Divisor:           10,
		ValidRange:        Range{Min: 0, Max: 10000},
		TypicalRange:      Range{Min: 0, Max: 3680},
		CandidateDivisors: []float64{100, 10},
	}},
	20: {Capability: CapMeasureVoltage, Rule: ConversionRule{
		Kind:              RuleDivisor,
		Divisor:           10,
		ValidRange:        Range{Min: 0, Max: 500},
		TypicalRange:      Range{Min: 200, Max: 250},
		CandidateDivisors: []float64{100, 10},
	}},
	101: {Capability: CapMeasureTemperature, Rule: ConversionRule{
		Kind:              RuleDivisor,
		Divisor:           10,
		ValidRange:        Range{Min: -40, Max: 125},
		TypicalRange:      Range{Min: -10, Max: 40},
		CandidateDivisors: []float64{100, 10},
	}},
	102: {Capability: CapMeasureHumidity, Rule: ConversionRule{
		Kind:              RuleDivisor,
		Divisor:           1,
		ValidRange:        Range{Min: 0, Max: 100},
		TypicalRange:      Range{Min: 20, Max: 80},
		CandidateDivisors: []float64{100, 10},
	}},
	103: {Capability: CapAlarmWater, Rule: ConversionRule{Kind: RuleBitExtract, Bit: 0}},
	104: {Capability: CapAlarmMotion, Rule: ConversionRule{Kind: RuleBitExtract, Bit: 0}},
}

// ConventionalMapping returns the conventional capability mapping for
// a DataPoint id, if one exists.
func ConventionalMapping(id uint8) (DataPointMapping, bool) {
	m, ok := conventionalDataPoints[id]
	if !ok {
		return DataPointMapping{}, false
	}
	return DataPointMapping{Capability: m.Capability, Rule: m.Rule.Clone()}, true
}

// ConventionalDataPointFor returns the lowest conventional DataPoint id
// mapped to a capability. This is the reverse lookup used when encoding
// commands for a device without a registered profile.
func ConventionalDataPointFor(c Capability) (uint8, DataPointMapping, bool) {
	var (
		best  uint8
		found bool
	)
	for id, m := range conventionalDataPoints {
		if m.Capability != c {
			continue
		}
		if !found || id < best {
			best = id
			found = true
		}
	}
	if !found {
		return 0, DataPointMapping{}, false
	}
	m, _ := ConventionalMapping(best)
	return best, m, true
}

// InferProfile builds a best-effort profile from DataPoint ids seen in
// live traffic, using the conventional id assignments.
//
// This is the fallback path for unmapped fingerprints. Ids without a
// conventional assignment are skipped; the resulting profile is marked
// Inferred so downstream consumers can treat it with lower confidence.
// Returns nil when none of the observed ids are conventional.
func InferProfile(observedIDs []uint8) *Profile {
	ids := append([]uint8(nil), observedIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	p := &Profile{
		DataPoints: make(map[uint8]DataPointMapping),
		Inferred:   true,
	}
	for _, id := range ids {
		m, ok := ConventionalMapping(id)
		if !ok {
			continue
		}
		if _, dup := p.DataPoints[id]; dup {
			continue
		}
		p.DataPoints[id] = m
		if !p.HasCapability(m.Capability) {
			p.Capabilities = append(p.Capabilities, m.Capability)
		}
	}

	if len(p.DataPoints) == 0 {
		return nil
	}
	return p
}
