package arbiter

import "github.com/packetninja/dpbridge/internal/profile"

// Standard cluster ids the arbiter recognizes for capability
// discovery.
const (
	ClusterPowerConfig  uint16 = 0x0001
	ClusterOnOff        uint16 = 0x0006
	ClusterLevelControl uint16 = 0x0008
	ClusterIlluminance  uint16 = 0x0400
	ClusterTemperature  uint16 = 0x0402
	ClusterHumidity     uint16 = 0x0405
	ClusterIASZone      uint16 = 0x0500
	ClusterMetering     uint16 = 0x0702
	ClusterElectrical   uint16 = 0x0B04
	ClusterWindowCover  uint16 = 0x0102
	ClusterThermostat   uint16 = 0x0201
	ClusterCO2          uint16 = 0x040D
	ClusterPM25         uint16 = 0x042A
)

// clusterCapabilities maps a standard cluster to the capabilities its
// attribute reports can drive. IAS Zone is deliberately absent: zone
// status semantics depend on the zone type, which the arbiter does not
// track, so IAS devices rely on profiles or DataPoint conventions.
var clusterCapabilities = map[uint16][]profile.Capability{
	ClusterPowerConfig:  {profile.CapMeasureBattery, profile.CapAlarmBattery},
	ClusterOnOff:        {profile.CapOnOff},
	ClusterLevelControl: {profile.CapDim},
	ClusterIlluminance:  {profile.CapMeasureLuminance},
	ClusterTemperature:  {profile.CapMeasureTemperature},
	ClusterHumidity:     {profile.CapMeasureHumidity},
	ClusterMetering:     {profile.CapMeasurePower},
	ClusterElectrical:   {profile.CapMeasurePower, profile.CapMeasureCurrent, profile.CapMeasureVoltage},
	ClusterWindowCover:  {profile.CapWindowCoveringsSet},
	ClusterThermostat:   {profile.CapTargetTemperature, profile.CapThermostatMode},
	ClusterCO2:          {profile.CapMeasureCO2},
	ClusterPM25:         {profile.CapMeasurePM25},
}

// clusterNames gives human-readable names for logging and the
// operational API.
var clusterNames = map[uint16]string{
	ClusterPowerConfig:  "power_configuration",
	ClusterOnOff:        "on_off",
	ClusterLevelControl: "level_control",
	ClusterIlluminance:  "illuminance_measurement",
	ClusterTemperature:  "temperature_measurement",
	ClusterHumidity:     "humidity_measurement",
	ClusterIASZone:      "ias_zone",
	ClusterMetering:     "metering",
	ClusterElectrical:   "electrical_measurement",
	ClusterWindowCover:  "window_covering",
	ClusterThermostat:   "thermostat",
	ClusterCO2:          "co2_measurement",
	ClusterPM25:         "pm25_measurement",
}

// CapabilitiesForCluster returns the capabilities a cluster's reports
// can drive, or nil for unrecognized clusters.
func CapabilitiesForCluster(clusterID uint16) []profile.Capability {
	caps, ok := clusterCapabilities[clusterID]
	if !ok {
		return nil
	}
	return append([]profile.Capability(nil), caps...)
}

// ClusterName returns a human-readable cluster name, or "unknown" for
// unrecognized clusters.
func ClusterName(clusterID uint16) string {
	if name, ok := clusterNames[clusterID]; ok {
		return name
	}
	return "unknown"
}
