// Package arbiter decides, per device, which protocol personality to
// trust: vendor DataPoint tunnelling, standard cluster reporting, or
// both.
//
// Many devices expose the same physical measurement twice, once as a
// tunnelled DataPoint and once as a standard cluster attribute report,
// and some firmware revisions report garbage on one of the two paths.
// The arbiter counts traffic on both paths during an observation
// window after a device joins and then commits to an affinity:
//
//	┌──────────────┐  window elapses   ┌──────────────┐
//	│  observing    │ ────────────────▶ │   decided    │
//	│  (hybrid)     │                   │ dp-only /    │
//	│  count C, T   │                   │ cluster-only │
//	└──────────────┘                   │ / hybrid     │
//	                                    └──────────────┘
//
// A strongly one-sided traffic pattern (one path carrying more than
// twice the other's events) commits to that path alone; anything less
// decisive stays hybrid. Decisions persist across restarts so a
// rejoining device does not re-enter observation.
package arbiter
