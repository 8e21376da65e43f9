package tuya

import "fmt"

// DataType identifies how a DataPoint payload must be interpreted.
//
// The values match the type tags used on the wire by the tunneled
// DataPoint sub-protocol.
type DataType uint8

// DataPoint type tags.
const (
	// TypeRaw carries opaque bytes (pass-through).
	TypeRaw DataType = 0x00

	// TypeBoolean carries a single byte; nonzero means true.
	TypeBoolean DataType = 0x01

	// TypeValue carries a big-endian signed integer (1, 2 or 4 bytes,
	// depending on what the device firmware chose to send).
	TypeValue DataType = 0x02

	// TypeString carries UTF-8 text.
	TypeString DataType = 0x03

	// TypeEnum carries a single byte ordinal, optionally mapped to a
	// named value by a conversion rule.
	TypeEnum DataType = 0x04

	// TypeBitmap carries a big-endian mask of up to 32 bits.
	TypeBitmap DataType = 0x05
)

// String returns the human-readable name of the data type.
func (t DataType) String() string {
	switch t {
	case TypeRaw:
		return "raw"
	case TypeBoolean:
		return "boolean"
	case TypeValue:
		return "value"
	case TypeString:
		return "string"
	case TypeEnum:
		return "enum"
	case TypeBitmap:
		return "bitmap"
	default:
		return fmt.Sprintf("unknown(0x%02X)", uint8(t))
	}
}

// Valid reports whether the type tag is one of the known wire values.
func (t DataType) Valid() bool {
	return t <= TypeBitmap
}

// DataPoint is one vendor DataPoint record as carried on the wire.
//
// The id is a small integer addressing a value slot on the device.
// It has no uniqueness constraint within a frame batch: devices may
// report the same id multiple times in one frame.
type DataPoint struct {
	// ID is the DataPoint identifier (value slot address).
	ID uint8

	// Type constrains how Payload must be parsed.
	Type DataType

	// Payload is the raw value bytes. May be empty (bare signal).
	Payload []byte
}

// String returns a human-readable representation of the record.
func (dp DataPoint) String() string {
	return fmt.Sprintf("DataPoint{ID:%d, Type:%s, Payload:%X}", dp.ID, dp.Type, dp.Payload)
}
