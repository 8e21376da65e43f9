// Package profile maps device fingerprints (vendor id + model id) to
// capability profiles: which normalized capabilities a device exposes,
// how its DataPoint ids map onto them, and the conversion rule for
// each.
//
// Profiles come from three places, in decreasing confidence:
//
//   - YAML profile files shipped with the gateway (LoadDir)
//   - runtime registration through the operational API (Register)
//   - best-effort inference from live traffic against conventional
//     DataPoint id assignments (InferProfile), used when a fingerprint
//     is unmapped
//
// Resolution is exact case-insensitive match only. An unmapped
// fingerprint is not an error; it simply routes the caller to the
// inference fallback.
package profile
