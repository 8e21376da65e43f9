// Package bridge is the integration layer of the normalization core:
// it owns per-device sessions and moves protocol events through the
// decode → map → arbitrate → normalize → publish pipeline.
//
// # Data Flow
//
//	dpbridge/raw/{device}      ─▶ tuya.DecodeFrames ─▶ DecodeValue ─┐
//	                                                               ├─▶ profile mapping ─▶ normalize ─▶ dpbridge/state/…
//	dpbridge/cluster/{device}  ─▶ cluster attribute mapping ────────┘
//	                                      │
//	                                      └─▶ arbiter (observation window) ─▶ dpbridge/affinity/…
//
// The manager serializes all protocol events with a single mutex, so
// the profile/normalize/learner core underneath it needs no locking of
// its own. Affinity decisions arrive asynchronously from the arbiter's
// window timer and re-enter through the same mutex.
//
// Devices are registered explicitly (AddDevice, with a fingerprint for
// profile resolution) or implicitly on first traffic, in which case the
// capability profile is inferred from conventional DataPoint ids.
package bridge
