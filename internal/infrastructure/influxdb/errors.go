package influxdb

import "errors"

// Sentinel errors for the telemetry sink. Telemetry is optional: the
// bridge starts without InfluxDB and callers treat ErrDisabled as a
// normal configuration, not a failure.
//
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without telemetry
//	}
var (
	// ErrNotConnected indicates the client is not connected to InfluxDB.
	// Write helpers silently drop points in this state; only health
	// checks surface it.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates InfluxDB integration is disabled in config.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
