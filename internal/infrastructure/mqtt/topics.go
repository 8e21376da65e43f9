package mqtt

import "fmt"

// Topic prefixes for the bridge's MQTT surface.
//
// Device traffic uses the flat scheme: dpbridge/{category}/{device_id}[/...]
const (
	// TopicPrefix is the base for all bridge topics.
	TopicPrefix = "dpbridge"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "dpbridge/system"
)

// Topics provides builders for the bridge's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.State("zb-0012", "measure_temperature")
//	// Returns: "dpbridge/state/zb-0012/measure_temperature"
type Topics struct{}

// =============================================================================
// Inbound Device Traffic
// =============================================================================

// Raw returns the topic carrying tunnelled DataPoint payloads for a
// device, published by the radio front-end.
//
// Example: dpbridge/raw/zb-0012
func (Topics) Raw(deviceID string) string {
	return fmt.Sprintf("%s/raw/%s", TopicPrefix, deviceID)
}

// Cluster returns the topic carrying parsed standard cluster reports
// for a device. The cluster id is hex-encoded.
//
// Example: dpbridge/cluster/zb-0012/0402
func (Topics) Cluster(deviceID string, clusterID uint16) string {
	return fmt.Sprintf("%s/cluster/%s/%04x", TopicPrefix, deviceID, clusterID)
}

// =============================================================================
// Outbound State
// =============================================================================

// State returns the topic for normalized capability values.
//
// Example: dpbridge/state/zb-0012/measure_temperature
func (Topics) State(deviceID, capability string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, deviceID, capability)
}

// Affinity returns the topic for protocol affinity decisions.
//
// Example: dpbridge/affinity/zb-0012
func (Topics) Affinity(deviceID string) string {
	return fmt.Sprintf("%s/affinity/%s", TopicPrefix, deviceID)
}

// Command returns the topic for outbound encoded DataPoint commands,
// consumed by the radio front-end.
//
// Example: dpbridge/command/zb-0012
func (Topics) Command(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, deviceID)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic.
//
// Example: dpbridge/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// SystemShutdown returns the shutdown signal topic.
//
// Example: dpbridge/system/shutdown
func (Topics) SystemShutdown() string {
	return fmt.Sprintf("%s/shutdown", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllRaw returns a pattern matching all raw DataPoint traffic.
//
// Pattern: dpbridge/raw/+
func (Topics) AllRaw() string {
	return fmt.Sprintf("%s/raw/+", TopicPrefix)
}

// AllClusters returns a pattern matching all cluster reports.
//
// Pattern: dpbridge/cluster/+/+
func (Topics) AllClusters() string {
	return fmt.Sprintf("%s/cluster/+/+", TopicPrefix)
}

// AllStates returns a pattern matching all normalized state updates.
//
// Pattern: dpbridge/state/+/+
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefix)
}

// AllAffinities returns a pattern matching all affinity decisions.
//
// Pattern: dpbridge/affinity/+
func (Topics) AllAffinities() string {
	return fmt.Sprintf("%s/affinity/+", TopicPrefix)
}

// AllTopics returns a pattern matching all bridge topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: dpbridge/#
func (Topics) AllTopics() string {
	return "dpbridge/#"
}
