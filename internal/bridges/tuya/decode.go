package tuya

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// DecodeValue interprets a record's payload per its declared type tag
// and returns the native Go value:
//
//   - raw → []byte (pass-through)
//   - boolean → bool (first byte nonzero)
//   - value → int64 (big-endian signed, width chosen by payload length)
//   - string → string (UTF-8)
//   - enum → uint8 (first byte ordinal)
//   - bitmap → uint32 (big-endian mask)
//
// Vendor firmware is inconsistent about integer widths: the same
// DataPoint may arrive as 1, 2 or 4 bytes across firmware revisions,
// so value payloads accept all three and sign-extend accordingly.
//
// A type/length mismatch returns an ErrTypeMismatch-wrapped error; the
// caller drops and logs the record rather than propagating a failure.
func DecodeValue(dp DataPoint) (any, error) {
	switch dp.Type {
	case TypeRaw:
		return dp.Payload, nil

	case TypeBoolean:
		if len(dp.Payload) == 0 {
			return nil, fmt.Errorf("%w: boolean dp %d with empty payload", ErrTypeMismatch, dp.ID)
		}
		return dp.Payload[0] != 0, nil

	case TypeValue:
		return decodeInteger(dp)

	case TypeString:
		if !utf8.Valid(dp.Payload) {
			return nil, fmt.Errorf("%w: string dp %d is not valid UTF-8", ErrTypeMismatch, dp.ID)
		}
		return string(dp.Payload), nil

	case TypeEnum:
		if len(dp.Payload) == 0 {
			return nil, fmt.Errorf("%w: enum dp %d with empty payload", ErrTypeMismatch, dp.ID)
		}
		return dp.Payload[0], nil

	case TypeBitmap:
		return decodeBitmap(dp)

	default:
		return nil, fmt.Errorf("%w: dp %d has tag 0x%02X", ErrUnknownType, dp.ID, uint8(dp.Type))
	}
}

// decodeInteger decodes a big-endian signed integer at 8, 16 or 32-bit
// width selected by payload length.
func decodeInteger(dp DataPoint) (int64, error) {
	switch len(dp.Payload) {
	case 1:
		return int64(int8(dp.Payload[0])), nil
	case 2:
		return int64(int16(binary.BigEndian.Uint16(dp.Payload))), nil
	case 4:
		return int64(int32(binary.BigEndian.Uint32(dp.Payload))), nil
	default:
		return 0, fmt.Errorf("%w: value dp %d has %d-byte payload (want 1, 2 or 4)",
			ErrTypeMismatch, dp.ID, len(dp.Payload))
	}
}

// decodeBitmap decodes a big-endian mask of 8, 16 or 32 bits.
func decodeBitmap(dp DataPoint) (uint32, error) {
	switch len(dp.Payload) {
	case 1:
		return uint32(dp.Payload[0]), nil
	case 2:
		return uint32(binary.BigEndian.Uint16(dp.Payload)), nil
	case 4:
		return binary.BigEndian.Uint32(dp.Payload), nil
	default:
		return 0, fmt.Errorf("%w: bitmap dp %d has %d-byte payload (want 1, 2 or 4)",
			ErrTypeMismatch, dp.ID, len(dp.Payload))
	}
}
