package arbiter

import (
	"sort"
	"sync"
	"time"

	"github.com/packetninja/dpbridge/internal/profile"
)

// DefaultWindow is the observation period after a device joins during
// which both protocol paths are processed and counted.
const DefaultWindow = 15 * time.Minute

// Affinity is the committed protocol personality for a device.
type Affinity string

// Affinity values.
const (
	// AffinityDataPointOnly trusts tunnelled DataPoints exclusively;
	// cluster attribute reports are dropped.
	AffinityDataPointOnly Affinity = "datapoint_only"

	// AffinityClusterOnly trusts standard cluster reports exclusively;
	// tunnelled DataPoints are dropped.
	AffinityClusterOnly Affinity = "cluster_only"

	// AffinityHybrid processes both paths. This is also the effective
	// mode while an arbiter is still observing.
	AffinityHybrid Affinity = "hybrid"
)

// Valid reports whether the affinity is a known value.
func (a Affinity) Valid() bool {
	switch a {
	case AffinityDataPointOnly, AffinityClusterOnly, AffinityHybrid:
		return true
	}
	return false
}

// Logger defines the logging interface used by the arbiter.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Decision is the committed outcome of one observation window. The
// last-hit timestamps carry the most recent event seen on each path
// when the window closed; a zero value means that path never reported.
type Decision struct {
	DeviceID         string               `json:"device_id"`
	Affinity         Affinity             `json:"affinity"`
	ClusterEvents    int                  `json:"cluster_events"`
	DataPointEvents  int                  `json:"datapoint_events"`
	Capabilities     []profile.Capability `json:"capabilities,omitempty"`
	LastClusterHit   time.Time            `json:"last_cluster_hit"`
	LastDataPointHit time.Time            `json:"last_datapoint_hit"`
	DecidedAt        time.Time            `json:"decided_at"`
}

// Arbiter runs the observation window for one device and commits its
// protocol affinity when the window elapses.
//
// The window timer fires on a runtime goroutine, so unlike the rest of
// the normalization core the arbiter guards its state with a mutex.
type Arbiter struct {
	mu sync.Mutex

	deviceID string
	window   time.Duration
	logger   Logger

	clusterEvents    int
	dataPointEvents  int
	lastClusterHit   time.Time
	lastDataPointHit time.Time
	clusters         map[uint16]struct{}
	dataPoints       map[uint8]struct{}

	decided  bool
	affinity Affinity
	decision Decision

	timer    *time.Timer
	onDecide func(Decision)
}

// New creates an arbiter for a device. onDecide is invoked exactly
// once, when the observation window elapses or Decide forces an early
// commit; it may be nil. The arbiter starts idle: call Start to open
// the window.
func New(deviceID string, window time.Duration, onDecide func(Decision)) *Arbiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Arbiter{
		deviceID:   deviceID,
		window:     window,
		logger:     noopLogger{},
		clusters:   make(map[uint16]struct{}),
		dataPoints: make(map[uint8]struct{}),
		affinity:   AffinityHybrid,
		onDecide:   onDecide,
	}
}

// SetLogger sets the logger for the arbiter.
func (a *Arbiter) SetLogger(logger Logger) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger = logger
}

// Start opens the observation window. Calling Start on a decided or
// already-started arbiter is a no-op.
func (a *Arbiter) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.decided || a.timer != nil {
		return
	}
	a.timer = time.AfterFunc(a.window, a.windowElapsed)
	a.logger.Debug("observation window opened",
		"device", a.deviceID, "window", a.window)
}

// Stop cancels a pending window without deciding. Used on device
// removal; a stopped arbiter never invokes onDecide.
func (a *Arbiter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// ObserveDataPoint counts one tunnelled DataPoint event, stamps the
// path's last-hit time, and records the id for capability discovery.
// Counting continues after a decision so the operational API always
// reports live totals.
func (a *Arbiter) ObserveDataPoint(id uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dataPointEvents++
	a.lastDataPointHit = time.Now().UTC()
	a.dataPoints[id] = struct{}{}
}

// ObserveCluster counts one standard cluster report, stamps the path's
// last-hit time, and records the cluster id for capability discovery.
func (a *Arbiter) ObserveCluster(clusterID uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clusterEvents++
	a.lastClusterHit = time.Now().UTC()
	a.clusters[clusterID] = struct{}{}
}

// Affinity returns the effective affinity: hybrid while observing, the
// committed value once decided.
func (a *Arbiter) Affinity() Affinity {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.decided {
		return AffinityHybrid
	}
	return a.affinity
}

// Decided reports whether the arbiter has committed.
func (a *Arbiter) Decided() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.decided
}

// Counts returns the live event totals for both paths.
func (a *Arbiter) Counts() (clusterEvents, dataPointEvents int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clusterEvents, a.dataPointEvents
}

// LastHits returns the most recent event time on each path. A zero
// time means that path has never reported.
func (a *Arbiter) LastHits() (lastClusterHit, lastDataPointHit time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastClusterHit, a.lastDataPointHit
}

// Decide forces an immediate commit, closing the window early. It
// returns the decision; on an already-decided arbiter it returns the
// existing decision unchanged.
func (a *Arbiter) Decide() Decision {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.decided {
		return a.decision
	}
	return a.commit()
}

// Decision returns the committed decision and whether one exists.
func (a *Arbiter) Decision() (Decision, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.decision, a.decided
}

// Restore installs a persisted decision, skipping the observation
// window entirely. It fails if the arbiter has already decided.
func (a *Arbiter) Restore(d Decision) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.decided {
		return ErrAlreadyDecided
	}
	if !d.Affinity.Valid() {
		d.Affinity = AffinityHybrid
	}
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.decided = true
	a.affinity = d.Affinity
	a.decision = d
	a.clusterEvents = d.ClusterEvents
	a.dataPointEvents = d.DataPointEvents
	a.lastClusterHit = d.LastClusterHit
	a.lastDataPointHit = d.LastDataPointHit
	a.logger.Info("protocol affinity restored",
		"device", a.deviceID, "affinity", d.Affinity)
	return nil
}

// windowElapsed is the timer callback.
func (a *Arbiter) windowElapsed() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.decided {
		return
	}
	a.commit()
}

// commit decides from the current counts and fires onDecide. Caller
// holds the mutex.
func (a *Arbiter) commit() Decision {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}

	a.affinity = decideAffinity(a.clusterEvents, a.dataPointEvents)
	a.decided = true
	a.decision = Decision{
		DeviceID:         a.deviceID,
		Affinity:         a.affinity,
		ClusterEvents:    a.clusterEvents,
		DataPointEvents:  a.dataPointEvents,
		Capabilities:     a.discoveredCapabilities(),
		LastClusterHit:   a.lastClusterHit,
		LastDataPointHit: a.lastDataPointHit,
		DecidedAt:        time.Now().UTC(),
	}

	a.logger.Info("protocol affinity decided",
		"device", a.deviceID,
		"affinity", a.affinity,
		"cluster_events", a.clusterEvents,
		"datapoint_events", a.dataPointEvents,
	)

	if a.onDecide != nil {
		// Fired outside the lock would be kinder to callers, but the
		// bridge manager only records the decision, so a reentrant
		// call back into this arbiter cannot happen.
		go a.onDecide(a.decision)
	}
	return a.decision
}

// discoveredCapabilities maps the observed clusters and DataPoint ids
// to capabilities, deduplicated and sorted for stable output. Caller
// holds the mutex.
func (a *Arbiter) discoveredCapabilities() []profile.Capability {
	seen := make(map[profile.Capability]struct{})
	for clusterID := range a.clusters {
		for _, c := range CapabilitiesForCluster(clusterID) {
			seen[c] = struct{}{}
		}
	}
	for id := range a.dataPoints {
		if m, ok := profile.ConventionalMapping(id); ok {
			seen[m.Capability] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	caps := make([]profile.Capability, 0, len(seen))
	for c := range seen {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// decideAffinity is the pure decision rule: a path carrying more than
// twice the other's traffic wins outright, anything closer stays
// hybrid. A silent device (no traffic on either path) also stays
// hybrid.
func decideAffinity(clusterEvents, dataPointEvents int) Affinity {
	switch {
	case dataPointEvents > 2*clusterEvents && dataPointEvents > 0:
		return AffinityDataPointOnly
	case clusterEvents > 2*dataPointEvents && clusterEvents > 0:
		return AffinityClusterOnly
	default:
		return AffinityHybrid
	}
}
