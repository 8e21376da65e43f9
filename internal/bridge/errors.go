package bridge

import "errors"

// Bridge errors.
var (
	// ErrDeviceNotFound is returned when an operation references an
	// unregistered device.
	ErrDeviceNotFound = errors.New("bridge: device not found")

	// ErrDeviceExists is returned when registering a device id twice.
	ErrDeviceExists = errors.New("bridge: device already registered")

	// ErrInvalidTopic is returned for MQTT topics that do not match
	// the expected scheme.
	ErrInvalidTopic = errors.New("bridge: invalid topic")

	// ErrInvalidPayload is returned for malformed MQTT payloads.
	ErrInvalidPayload = errors.New("bridge: invalid payload")

	// ErrNoMapping is returned when a command targets a capability the
	// device's profile does not map to a DataPoint.
	ErrNoMapping = errors.New("bridge: no datapoint mapping for capability")

	// ErrClosed is returned for operations on a closed manager.
	ErrClosed = errors.New("bridge: manager closed")
)
