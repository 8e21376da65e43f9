package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteCapabilityValue writes a single normalized capability value.
//
// This is the primary method for recording device telemetry.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Unique identifier for the device (e.g., "zb-0012")
//   - capability: The normalized capability (e.g., "measure_temperature")
//   - value: The normalized numeric value
//
// Example:
//
//	client.WriteCapabilityValue("zb-0012", "measure_temperature", 21.5)
//	client.WriteCapabilityValue("zb-0015", "measure_power", 23.0)
func (c *Client) WriteCapabilityValue(deviceID string, capability string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"capability_values",
		map[string]string{
			"device_id":  deviceID,
			"capability": capability,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCorrectionEvent records a scaling correction applied during
// normalization. Correction frequency per device is the primary
// data-quality signal for misdeclared firmware scaling.
//
// Parameters:
//   - deviceID: Device identifier
//   - capability: The affected capability
//   - correction: Correction kind ("divisor", "multiplier", "clamped_min")
//   - factor: The applied divisor or multiplier (0 for clamps)
func (c *Client) WriteCorrectionEvent(deviceID string, capability string, correction string, factor float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"corrections",
		map[string]string{
			"device_id":  deviceID,
			"capability": capability,
			"correction": correction,
		},
		map[string]interface{}{
			"factor": factor,
			"count":  1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRejection records a raw value that could not be normalized into
// the capability's valid range.
//
// Parameters:
//   - deviceID: Device identifier
//   - capability: The affected capability
//   - raw: The rejected raw value
func (c *Client) WriteRejection(deviceID string, capability string, raw float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"rejections",
		map[string]string{
			"device_id":  deviceID,
			"capability": capability,
		},
		map[string]interface{}{
			"raw":   raw,
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteAffinityDecision records a protocol affinity commit with the
// traffic counts it was decided from.
//
// Parameters:
//   - deviceID: Device identifier
//   - affinity: The committed affinity ("datapoint_only", "cluster_only", "hybrid")
//   - clusterEvents: Standard cluster events observed during the window
//   - dataPointEvents: Tunnelled DataPoint events observed during the window
func (c *Client) WriteAffinityDecision(deviceID string, affinity string, clusterEvents, dataPointEvents int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"affinity_decisions",
		map[string]string{
			"device_id": deviceID,
			"affinity":  affinity,
		},
		map[string]interface{}{
			"cluster_events":   clusterEvents,
			"datapoint_events": dataPointEvents,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "gw-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
