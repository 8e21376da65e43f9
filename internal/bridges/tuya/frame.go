package tuya

import (
	"encoding/binary"
	"fmt"
)

// Frame layout constants.
const (
	// headerSize is the fixed DataPoint frame header: 1-byte id,
	// 1-byte type tag, 2-byte big-endian payload length.
	headerSize = 4

	// valueSize is the wire size of value and bitmap payloads.
	valueSize = 4
)

// DecodeFrames decodes a batch of DataPoint records from a tunneled
// channel payload.
//
// The input may arrive wrapped as raw bytes, base64 text, a JSON array
// or object-with-data-field, or hexadecimal text; each normalization
// path is tried in that fixed priority order and the first that yields
// a well-formed byte sequence wins (see unwrapPayload).
//
// Each frame is a 4-byte header followed by exactly the declared number
// of payload bytes. A declared length of zero is valid (bare signal).
// If a header or payload would read past the buffer end, decoding stops
// and the already-decoded prefix is returned together with
// ErrTruncatedFrame describing the discarded remainder. Truncation is
// a data-quality condition, never fatal: callers log the error and
// process the returned records.
//
// Empty or absent input yields an empty slice and no error.
func DecodeFrames(input []byte) ([]DataPoint, error) {
	data := unwrapPayload(input)
	if len(data) == 0 {
		return nil, nil
	}

	var records []DataPoint
	offset := 0
	for offset < len(data) {
		if len(data)-offset < headerSize {
			return records, fmt.Errorf("%w: %d trailing bytes at offset %d (need %d for header)",
				ErrTruncatedFrame, len(data)-offset, offset, headerSize)
		}

		id := data[offset]
		typeTag := DataType(data[offset+1])
		length := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		offset += headerSize

		if len(data)-offset < length {
			return records, fmt.Errorf("%w: payload for dp %d declares %d bytes, %d remain",
				ErrTruncatedFrame, id, length, len(data)-offset)
		}

		payload := make([]byte, length)
		copy(payload, data[offset:offset+length])
		offset += length

		records = append(records, DataPoint{
			ID:      id,
			Type:    typeTag,
			Payload: payload,
		})
	}

	return records, nil
}

// EncodeDataPoint serializes one native value as a single DataPoint
// frame, the inverse of DecodeFrames for one record.
//
// Payload encoding per type:
//   - boolean and enum serialize to 1 byte
//   - value and bitmap serialize to 4 bytes big-endian
//   - string serializes to its UTF-8 byte form
//   - raw passes bytes through unchanged
//
// Returns ErrEncodingFailed if the value's Go type does not match the
// requested data type, or ErrUnknownType for an unrecognised tag.
func EncodeDataPoint(id uint8, typeTag DataType, value any) ([]byte, error) {
	payload, err := encodePayload(typeTag, value)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0xFFFF {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds frame limit", ErrEncodingFailed, len(payload))
	}

	buf := make([]byte, headerSize+len(payload))
	buf[0] = id
	buf[1] = byte(typeTag)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(payload))) //nolint:gosec // bounded above
	copy(buf[headerSize:], payload)
	return buf, nil
}

// encodePayload converts a native value to its wire payload bytes.
func encodePayload(typeTag DataType, value any) ([]byte, error) {
	switch typeTag {
	case TypeRaw:
		b, ok := value.([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: raw requires []byte, got %T", ErrEncodingFailed, value)
		}
		return b, nil

	case TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: boolean requires bool, got %T", ErrEncodingFailed, value)
		}
		if b {
			return []byte{0x01}, nil
		}
		return []byte{0x00}, nil

	case TypeValue:
		v, ok := toInt64(value)
		if !ok {
			return nil, fmt.Errorf("%w: value requires an integer, got %T", ErrEncodingFailed, value)
		}
		buf := make([]byte, valueSize)
		binary.BigEndian.PutUint32(buf, uint32(v)) //nolint:gosec // two's complement wire form
		return buf, nil

	case TypeString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: string requires string, got %T", ErrEncodingFailed, value)
		}
		return []byte(s), nil

	case TypeEnum:
		v, ok := toInt64(value)
		if !ok || v < 0 || v > 0xFF {
			return nil, fmt.Errorf("%w: enum requires an ordinal 0-255, got %v", ErrEncodingFailed, value)
		}
		return []byte{byte(v)}, nil

	case TypeBitmap:
		v, ok := toInt64(value)
		if !ok || v < 0 || v > 0xFFFFFFFF {
			return nil, fmt.Errorf("%w: bitmap requires a 32-bit mask, got %v", ErrEncodingFailed, value)
		}
		buf := make([]byte, valueSize)
		binary.BigEndian.PutUint32(buf, uint32(v))
		return buf, nil

	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownType, uint8(typeTag))
	}
}

// toInt64 widens the integer kinds a caller may plausibly hand us.
func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case float64:
		// JSON numbers arrive as float64; accept exact integers only.
		if v == float64(int64(v)) {
			return int64(v), true
		}
		return 0, false
	default:
		return 0, false
	}
}
