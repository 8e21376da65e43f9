// Package normalize converts decoded raw device values into semantic
// units, and adaptively learns the correct scaling when vendor
// firmware disagrees with the configured conversion rule.
//
// # Components
//
//   - Apply: the pure conversion algorithm — base transform, range
//     validation, and the divisor/multiplier correction search
//   - Learner: per-(device, capability) rolling history, correction
//     tallies, and the two divisor promotion rules
//   - Normalizer: ties the two together so learned divisors
//     short-circuit the search and corrections feed the learner
//   - SQLiteStore: durable learned-divisor state across restarts
//
// # Error Policy
//
// Nothing here is fatal. An uncorrectable out-of-range reading is
// rejected (the capability is simply not updated) and surfaced as a
// data-quality warning; malformed inputs degrade to rejection the
// same way.
package normalize
