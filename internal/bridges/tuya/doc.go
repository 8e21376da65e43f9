// Package tuya implements the codec for the vendor-proprietary
// DataPoint sub-protocol tunneled inside a private channel.
//
// A DataPoint batch is a sequence of variable-length frames, each a
// 4-byte header (id, type tag, big-endian payload length) followed by
// the payload. Gateways and firmware generations disagree about how
// the batch is wrapped in transit, so the codec normalizes raw bytes,
// base64 text, JSON arrays/objects and hexadecimal text before
// parsing.
//
// # Key Operations
//
//   - DecodeFrames: tolerant batch decode; truncated input yields the
//     valid prefix plus ErrTruncatedFrame, never a hard failure
//   - EncodeDataPoint: serialize one native value as a frame
//   - DecodeValue: interpret a record's payload per its type tag
//
// # Thread Safety
//
// The codec is pure and stateless; all functions are safe for
// concurrent use across devices and goroutines.
package tuya
