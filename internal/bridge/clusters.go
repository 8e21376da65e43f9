package bridge

import (
	"github.com/packetninja/dpbridge/internal/arbiter"
	"github.com/packetninja/dpbridge/internal/profile"
)

// clusterAttributeMappings binds (cluster, attribute) pairs to
// capabilities and conversion rules. Unlike DataPoint scaling, these
// units are fixed by the cluster specifications, so no candidate
// divisors are configured: the adaptive learner has nothing to correct
// on this path.
var clusterAttributeMappings = map[uint16]map[string]profile.DataPointMapping{
	arbiter.ClusterOnOff: {
		"onOff": {Capability: profile.CapOnOff, Rule: profile.ConversionRule{
			Kind: profile.RuleBitExtract, Bit: 0,
		}},
	},
	arbiter.ClusterLevelControl: {
		// currentLevel is 0-254; expose percent.
		"currentLevel": {Capability: profile.CapDim, Rule: profile.ConversionRule{
			Kind:       profile.RuleDivisor,
			Divisor:    2.54,
			ValidRange: profile.Range{Min: 0, Max: 100},
		}},
	},
	arbiter.ClusterPowerConfig: {
		// batteryPercentageRemaining reports in half-percent units.
		"batteryPercentageRemaining": {Capability: profile.CapMeasureBattery, Rule: profile.ConversionRule{
			Kind:       profile.RuleDivisor,
			Divisor:    2,
			ValidRange: profile.Range{Min: 0, Max: 100},
		}},
	},
	arbiter.ClusterTemperature: {
		// measuredValue is hundredths of a degree.
		"measuredValue": {Capability: profile.CapMeasureTemperature, Rule: profile.ConversionRule{
			Kind:       profile.RuleDivisor,
			Divisor:    100,
			ValidRange: profile.Range{Min: -40, Max: 125},
		}},
	},
	arbiter.ClusterHumidity: {
		"measuredValue": {Capability: profile.CapMeasureHumidity, Rule: profile.ConversionRule{
			Kind:       profile.RuleDivisor,
			Divisor:    100,
			ValidRange: profile.Range{Min: 0, Max: 100},
		}},
	},
	arbiter.ClusterIlluminance: {
		"measuredValue": {Capability: profile.CapMeasureLuminance, Rule: profile.ConversionRule{
			Kind:       profile.RuleDivisor,
			Divisor:    1,
			ValidRange: profile.Range{Min: 0, Max: 100000},
		}},
	},
	arbiter.ClusterMetering: {
		"instantaneousDemand": {Capability: profile.CapMeasurePower, Rule: profile.ConversionRule{
			Kind:       profile.RuleDivisor,
			Divisor:    10,
			ValidRange: profile.Range{Min: 0, Max: 10000},
		}},
	},
	arbiter.ClusterElectrical: {
		"activePower": {Capability: profile.CapMeasurePower, Rule: profile.ConversionRule{
			Kind:       profile.RuleDivisor,
			Divisor:    10,
			ValidRange: profile.Range{Min: 0, Max: 10000},
		}},
		"rmsCurrent": {Capability: profile.CapMeasureCurrent, Rule: profile.ConversionRule{
			Kind:       profile.RuleDivisor,
			Divisor:    1000,
			ValidRange: profile.Range{Min: 0, Max: 100},
		}},
		"rmsVoltage": {Capability: profile.CapMeasureVoltage, Rule: profile.ConversionRule{
			Kind:       profile.RuleDivisor,
			Divisor:    10,
			ValidRange: profile.Range{Min: 0, Max: 500},
		}},
	},
	arbiter.ClusterCO2: {
		// measuredValue is a fraction; expose ppm.
		"measuredValue": {Capability: profile.CapMeasureCO2, Rule: profile.ConversionRule{
			Kind:       profile.RuleMultiplier,
			Multiplier: 1e6,
			ValidRange: profile.Range{Min: 0, Max: 10000},
		}},
	},
	arbiter.ClusterPM25: {
		"measuredValue": {Capability: profile.CapMeasurePM25, Rule: profile.ConversionRule{
			Kind:       profile.RuleDivisor,
			Divisor:    1,
			ValidRange: profile.Range{Min: 0, Max: 1000},
		}},
	},
}

// clusterMapping returns the capability mapping for a (cluster,
// attribute) pair, if the bridge recognizes it.
func clusterMapping(clusterID uint16, attribute string) (profile.DataPointMapping, bool) {
	attrs, ok := clusterAttributeMappings[clusterID]
	if !ok {
		return profile.DataPointMapping{}, false
	}
	m, ok := attrs[attribute]
	if !ok {
		return profile.DataPointMapping{}, false
	}
	return profile.DataPointMapping{Capability: m.Capability, Rule: m.Rule.Clone()}, true
}
