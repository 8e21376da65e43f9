package tuya

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// unwrapPayload normalizes the different wrapper encodings seen on the
// tunneled channel down to raw frame bytes.
//
// Depending on firmware and gateway generation, the same DataPoint
// batch may arrive as:
//   - raw binary frames
//   - base64 text of the frames
//   - a JSON array of byte values, or a JSON object whose "data" field
//     holds either of the above
//   - hexadecimal text of the frames
//
// Paths are tried in that fixed priority order; the first that yields a
// non-empty byte sequence starting with a well-formed frame wins. If
// nothing matches, the input bytes are returned unchanged (UTF-8
// fallback) and the frame decoder salvages what it can.
func unwrapPayload(input []byte) []byte {
	if len(input) == 0 {
		return nil
	}

	if hasCompleteFrame(input) {
		return input
	}
	if b, ok := tryBase64(input); ok && hasCompleteFrame(b) {
		return b
	}
	if b, ok := tryJSON(input); ok && hasCompleteFrame(b) {
		return b
	}
	if b, ok := tryHex(input); ok && hasCompleteFrame(b) {
		return b
	}

	return input
}

// hasCompleteFrame reports whether data begins with one fully contained
// DataPoint frame: a 4-byte header whose declared payload length fits
// inside the buffer.
func hasCompleteFrame(data []byte) bool {
	if len(data) < headerSize {
		return false
	}
	length := int(binary.BigEndian.Uint16(data[2:4]))
	return len(data)-headerSize >= length
}

// tryBase64 attempts a strict base64 decode of the input text.
func tryBase64(input []byte) ([]byte, bool) {
	s := strings.TrimSpace(string(input))
	if s == "" {
		return nil, false
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(b) == 0 {
		return nil, false
	}
	return b, true
}

// tryJSON attempts to interpret the input as a JSON array of byte
// values, or as a JSON object carrying the frame bytes in a "data"
// field (itself an array, base64 string, or hex string).
func tryJSON(input []byte) ([]byte, bool) {
	trimmed := strings.TrimSpace(string(input))
	if trimmed == "" {
		return nil, false
	}

	switch trimmed[0] {
	case '[':
		var nums []int
		if err := json.Unmarshal([]byte(trimmed), &nums); err != nil {
			return nil, false
		}
		return bytesFromInts(nums)

	case '{':
		var obj struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal([]byte(trimmed), &obj); err != nil || len(obj.Data) == 0 {
			return nil, false
		}

		// data may be a nested array of byte values...
		var nums []int
		if err := json.Unmarshal(obj.Data, &nums); err == nil {
			return bytesFromInts(nums)
		}

		// ...or a string holding base64 or hex text.
		var s string
		if err := json.Unmarshal(obj.Data, &s); err != nil {
			return nil, false
		}
		if b, ok := tryBase64([]byte(s)); ok {
			return b, true
		}
		return tryHex([]byte(s))

	default:
		return nil, false
	}
}

// bytesFromInts converts a JSON number array to bytes, rejecting
// anything outside the 0-255 range.
func bytesFromInts(nums []int) ([]byte, bool) {
	if len(nums) == 0 {
		return nil, false
	}
	b := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 0xFF {
			return nil, false
		}
		b[i] = byte(n)
	}
	return b, true
}

// tryHex attempts a hexadecimal decode of the input text. A leading
// "0x" prefix and surrounding whitespace are tolerated.
func tryHex(input []byte) ([]byte, bool) {
	s := strings.TrimSpace(string(input))
	s = strings.TrimPrefix(s, "0x")
	if s == "" || len(s)%2 != 0 {
		return nil, false
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) == 0 {
		return nil, false
	}
	return b, true
}
