package tuya

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"
)

// ─── Frame Decoding ────────────────────────────────────────────────

func TestDecodeFrames(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    []DataPoint
		wantErr bool
	}{
		{
			name:  "single boolean frame",
			input: []byte{0x01, 0x01, 0x00, 0x01, 0x01},
			want: []DataPoint{
				{ID: 1, Type: TypeBoolean, Payload: []byte{0x01}},
			},
		},
		{
			name: "two frames in one batch",
			input: []byte{
				0x01, 0x01, 0x00, 0x01, 0x00, // dp 1 boolean false
				0x04, 0x02, 0x00, 0x04, 0x00, 0x00, 0x00, 0x64, // dp 4 value 100
			},
			want: []DataPoint{
				{ID: 1, Type: TypeBoolean, Payload: []byte{0x00}},
				{ID: 4, Type: TypeValue, Payload: []byte{0x00, 0x00, 0x00, 0x64}},
			},
		},
		{
			name:  "zero-length payload is a valid bare signal",
			input: []byte{0x65, 0x01, 0x00, 0x00},
			want: []DataPoint{
				{ID: 101, Type: TypeBoolean, Payload: []byte{}},
			},
		},
		{
			name: "duplicate ids within a batch are preserved",
			input: []byte{
				0x02, 0x02, 0x00, 0x04, 0x00, 0x00, 0x00, 0x0A,
				0x02, 0x02, 0x00, 0x04, 0x00, 0x00, 0x00, 0x0B,
			},
			want: []DataPoint{
				{ID: 2, Type: TypeValue, Payload: []byte{0x00, 0x00, 0x00, 0x0A}},
				{ID: 2, Type: TypeValue, Payload: []byte{0x00, 0x00, 0x00, 0x0B}},
			},
		},
		{
			name:  "empty input yields empty sequence",
			input: nil,
			want:  nil,
		},
		{
			name: "complete frame followed by truncated header",
			input: []byte{
				0x01, 0x01, 0x00, 0x01, 0x01, // complete
				0x02, 0x02, // truncated header
			},
			want: []DataPoint{
				{ID: 1, Type: TypeBoolean, Payload: []byte{0x01}},
			},
			wantErr: true,
		},
		{
			name: "complete frame followed by truncated payload",
			input: []byte{
				0x01, 0x01, 0x00, 0x01, 0x01, // complete
				0x02, 0x02, 0x00, 0x04, 0x00, 0x01, // declares 4, only 2 remain
			},
			want: []DataPoint{
				{ID: 1, Type: TypeBoolean, Payload: []byte{0x01}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeFrames(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeFrames() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrTruncatedFrame) {
				t.Errorf("DecodeFrames() error = %v, want ErrTruncatedFrame", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("DecodeFrames() yielded %d records, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i].ID || got[i].Type != tt.want[i].Type ||
					!bytes.Equal(got[i].Payload, tt.want[i].Payload) {
					t.Errorf("record %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// ─── Wrapper Encodings ─────────────────────────────────────────────

func TestDecodeFramesWrappers(t *testing.T) {
	// dp 1, boolean, true — the canonical single-record batch.
	raw := []byte{0x01, 0x01, 0x00, 0x01, 0x01}

	tests := []struct {
		name  string
		input []byte
	}{
		{"raw bytes", raw},
		{"base64 text", []byte(base64.StdEncoding.EncodeToString(raw))},
		{"hex text", []byte(hex.EncodeToString(raw))},
		{"hex text with 0x prefix", []byte("0x" + hex.EncodeToString(raw))},
		{"json byte array", []byte("[1, 1, 0, 1, 1]")},
		{"json object with array data", []byte(`{"data": [1, 1, 0, 1, 1]}`)},
		{"json object with base64 data", []byte(`{"data": "` + base64.StdEncoding.EncodeToString(raw) + `"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeFrames(tt.input)
			if err != nil {
				t.Fatalf("DecodeFrames() error = %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("DecodeFrames() yielded %d records, want 1", len(got))
			}
			if got[0].ID != 1 || got[0].Type != TypeBoolean || !bytes.Equal(got[0].Payload, []byte{0x01}) {
				t.Errorf("record = %v, want {ID:1, Type:boolean, Payload:[01]}", got[0])
			}
		})
	}
}

func TestDecodeFramesGarbageInput(t *testing.T) {
	// Unparsable text falls through every wrapper path and the decoder
	// salvages nothing; no panic, no fatal error semantics.
	got, err := DecodeFrames([]byte("not a frame"))
	if len(got) != 0 {
		t.Errorf("DecodeFrames() yielded %d records, want 0", len(got))
	}
	if err == nil {
		t.Error("DecodeFrames() expected truncation error for garbage input")
	}
}

// ─── Round-trip ────────────────────────────────────────────────────

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		id      uint8
		typeTag DataType
		value   any
		want    any
	}{
		{"raw", 15, TypeRaw, []byte{0xDE, 0xAD}, []byte{0xDE, 0xAD}},
		{"boolean true", 1, TypeBoolean, true, true},
		{"boolean false", 1, TypeBoolean, false, false},
		{"value positive", 2, TypeValue, int64(3500), int64(3500)},
		{"value negative", 2, TypeValue, int64(-40), int64(-40)},
		{"string", 3, TypeString, "heat", "heat"},
		{"enum", 4, TypeEnum, uint8(2), uint8(2)},
		{"bitmap", 5, TypeBitmap, uint32(0x0000000A), uint32(0x0000000A)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := EncodeDataPoint(tt.id, tt.typeTag, tt.value)
			if err != nil {
				t.Fatalf("EncodeDataPoint() error = %v", err)
			}

			records, err := DecodeFrames(frame)
			if err != nil {
				t.Fatalf("DecodeFrames() error = %v", err)
			}
			if len(records) != 1 {
				t.Fatalf("round trip yielded %d records, want 1", len(records))
			}
			if records[0].ID != tt.id || records[0].Type != tt.typeTag {
				t.Errorf("record = %v, want id %d type %s", records[0], tt.id, tt.typeTag)
			}

			got, err := DecodeValue(records[0])
			if err != nil {
				t.Fatalf("DecodeValue() error = %v", err)
			}
			switch want := tt.want.(type) {
			case []byte:
				if !bytes.Equal(got.([]byte), want) {
					t.Errorf("DecodeValue() = %X, want %X", got, want)
				}
			default:
				if got != tt.want {
					t.Errorf("DecodeValue() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
				}
			}
		})
	}
}

func TestEncodeDataPointPayloadSizes(t *testing.T) {
	tests := []struct {
		name    string
		typeTag DataType
		value   any
		wantLen int
	}{
		{"boolean is 1 byte", TypeBoolean, true, 1},
		{"enum is 1 byte", TypeEnum, 3, 1},
		{"value is 4 bytes", TypeValue, 7, 4},
		{"bitmap is 4 bytes", TypeBitmap, 0xFF, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := EncodeDataPoint(1, tt.typeTag, tt.value)
			if err != nil {
				t.Fatalf("EncodeDataPoint() error = %v", err)
			}
			if gotLen := len(frame) - headerSize; gotLen != tt.wantLen {
				t.Errorf("payload length = %d, want %d", gotLen, tt.wantLen)
			}
		})
	}
}

func TestEncodeDataPointRejectsMismatchedValues(t *testing.T) {
	tests := []struct {
		name    string
		typeTag DataType
		value   any
	}{
		{"boolean with string", TypeBoolean, "true"},
		{"value with bool", TypeValue, true},
		{"enum out of range", TypeEnum, 300},
		{"raw with string", TypeRaw, "bytes"},
		{"unknown tag", DataType(0x09), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeDataPoint(1, tt.typeTag, tt.value); err == nil {
				t.Errorf("EncodeDataPoint(%s, %v) expected error", tt.typeTag, tt.value)
			}
		})
	}
}
