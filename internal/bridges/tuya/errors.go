package tuya

import "errors"

// Domain errors for the DataPoint codec package.
var (
	// ErrTruncatedFrame is returned when a frame header or payload would
	// read past the end of the buffer. Records decoded before the
	// truncation point are still returned.
	ErrTruncatedFrame = errors.New("tuya: truncated frame")

	// ErrTypeMismatch is returned when a payload length is inconsistent
	// with the declared data type.
	ErrTypeMismatch = errors.New("tuya: payload inconsistent with declared type")

	// ErrUnknownType is returned when a type tag outside the known set
	// is encountered.
	ErrUnknownType = errors.New("tuya: unknown data type")

	// ErrEncodingFailed is returned when a native value cannot be
	// serialized for the requested data type.
	ErrEncodingFailed = errors.New("tuya: encoding failed")
)
