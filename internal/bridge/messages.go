package bridge

import (
	"time"

	"github.com/packetninja/dpbridge/internal/arbiter"
	"github.com/packetninja/dpbridge/internal/profile"
)

// ClusterMessage is the payload of dpbridge/cluster/{device}/{cluster}
// topics: one parsed attribute report from the radio front-end. The
// cluster id itself travels in the topic.
type ClusterMessage struct {
	Attribute string  `json:"attribute"`
	Value     float64 `json:"value"`
}

// StateMessage is the payload published to
// dpbridge/state/{device}/{capability} after normalization.
type StateMessage struct {
	DeviceID   string             `json:"device_id"`
	Capability profile.Capability `json:"capability"`
	Value      any                `json:"value"`

	// Correction names the scaling fix applied, empty when the value
	// passed through unchanged.
	Correction string `json:"correction,omitempty"`

	// Source is the protocol path the value arrived on: "datapoint" or
	// "cluster".
	Source string `json:"source"`

	Timestamp time.Time `json:"timestamp"`
}

// AffinityMessage is the payload published to
// dpbridge/affinity/{device} when an observation window commits.
type AffinityMessage struct {
	DeviceID        string               `json:"device_id"`
	Affinity        arbiter.Affinity     `json:"affinity"`
	ClusterEvents   int                  `json:"cluster_events"`
	DataPointEvents int                  `json:"datapoint_events"`
	Capabilities    []profile.Capability `json:"capabilities,omitempty"`
	DecidedAt       time.Time            `json:"decided_at"`
}

// CommandMessage is the payload published to dpbridge/command/{device}:
// an encoded DataPoint frame for the radio front-end to tunnel.
type CommandMessage struct {
	DeviceID  string    `json:"device_id"`
	Frame     []byte    `json:"frame"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviceInfo is the operational-API view of one device session. The
// last-hit timestamps track the most recent event on each protocol
// path; the zero time means that path has never reported.
type DeviceInfo struct {
	DeviceID         string               `json:"device_id"`
	Fingerprint      profile.Fingerprint  `json:"fingerprint"`
	ProfileInferred  bool                 `json:"profile_inferred"`
	Capabilities     []profile.Capability `json:"capabilities"`
	Affinity         arbiter.Affinity     `json:"affinity"`
	AffinityDecided  bool                 `json:"affinity_decided"`
	ClusterEvents    int                  `json:"cluster_events"`
	DataPointEvents  int                  `json:"datapoint_events"`
	LastClusterHit   time.Time            `json:"last_cluster_hit"`
	LastDataPointHit time.Time            `json:"last_datapoint_hit"`
}

// Protocol path names used in state messages and logs.
const (
	sourceDataPoint = "datapoint"
	sourceCluster   = "cluster"
)
