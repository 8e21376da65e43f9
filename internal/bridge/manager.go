package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/packetninja/dpbridge/internal/arbiter"
	"github.com/packetninja/dpbridge/internal/bridges/tuya"
	"github.com/packetninja/dpbridge/internal/infrastructure/mqtt"
	"github.com/packetninja/dpbridge/internal/normalize"
	"github.com/packetninja/dpbridge/internal/profile"
)

// Publisher is the outbound message sink. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Metrics is the telemetry sink for normalized values and pipeline
// events. *influxdb.Client satisfies it.
type Metrics interface {
	WriteCapabilityValue(deviceID, capability string, value float64)
	WriteCorrectionEvent(deviceID, capability, correction string, factor float64)
	WriteRejection(deviceID, capability string, raw float64)
	WriteAffinityDecision(deviceID, affinity string, clusterEvents, dataPointEvents int)
}

// Logger defines the logging interface used by the manager.
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

// Options configures a Manager. Registry and Normalizer default to
// empty in-memory instances; everything else is optional.
type Options struct {
	Registry      *profile.Registry
	Normalizer    *normalize.Normalizer
	AffinityStore arbiter.Store
	Publisher     Publisher
	Metrics       Metrics
	Logger        Logger

	// Window is the arbitration observation period per device; zero
	// means arbiter.DefaultWindow.
	Window time.Duration

	// QoS applies to all outbound publishes.
	QoS byte
}

// session is the per-device pipeline state: resolved profile, protocol
// arbiter, and the DataPoint ids seen so far (for profile inference).
type session struct {
	deviceID    string
	fingerprint profile.Fingerprint
	prof        *profile.Profile
	arb         *arbiter.Arbiter
	observed    map[uint8]struct{}
}

// mapping resolves a DataPoint id to a capability mapping: the device
// profile first, then the conventional id assignments.
func (s *session) mapping(id uint8) (profile.DataPointMapping, bool) {
	if s.prof != nil {
		if m, ok := s.prof.DataPoints[id]; ok {
			return m, true
		}
	}
	return profile.ConventionalMapping(id)
}

// Manager owns device sessions and runs protocol events through the
// decode, map, arbitrate, normalize, publish pipeline.
//
// All event handling is serialized through one mutex, which is what
// lets the profile/normalize core underneath stay lock-free.
type Manager struct {
	mu sync.Mutex

	registry   *profile.Registry
	normalizer *normalize.Normalizer
	store      arbiter.Store
	publisher  Publisher
	metrics    Metrics
	logger     Logger
	window     time.Duration
	qos        byte
	topics     mqtt.Topics

	sessions map[string]*session

	// restored holds persisted affinity decisions for devices that have
	// not produced traffic yet this run.
	restored map[string]arbiter.Decision

	closed bool
}

// NewManager creates a bridge manager.
func NewManager(opts Options) *Manager {
	if opts.Registry == nil {
		opts.Registry = profile.NewRegistry()
	}
	if opts.Normalizer == nil {
		opts.Normalizer = normalize.NewNormalizer(normalize.NewLearner(nil))
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Manager{
		registry:   opts.Registry,
		normalizer: opts.Normalizer,
		store:      opts.AffinityStore,
		publisher:  opts.Publisher,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		window:     opts.Window,
		qos:        opts.QoS,
		sessions:   make(map[string]*session),
		restored:   make(map[string]arbiter.Decision),
	}
}

// RestoreAffinities preloads persisted affinity decisions. Devices with
// a restored decision skip the observation window when their session is
// created. Call once on startup, before traffic arrives.
func (m *Manager) RestoreAffinities(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	decisions, err := m.store.LoadDecisions(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range decisions {
		if s, ok := m.sessions[d.DeviceID]; ok {
			if err := s.arb.Restore(d); err != nil {
				m.logger.Warn("restoring affinity", "device", d.DeviceID, "error", err)
			}
			continue
		}
		m.restored[d.DeviceID] = d
	}
	m.logger.Info("affinity decisions restored", "count", len(decisions))
	return nil
}

// AddDevice registers a device explicitly, resolving its capability
// profile from the fingerprint and opening the observation window.
func (m *Manager) AddDevice(deviceID string, fp profile.Fingerprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, exists := m.sessions[deviceID]; exists {
		return fmt.Errorf("%w: %s", ErrDeviceExists, deviceID)
	}

	s := m.newSessionLocked(deviceID, fp)
	if s.prof == nil {
		m.logger.Info("device registered without profile, will infer from traffic",
			"device", deviceID, "fingerprint", fp.String())
	} else {
		m.logger.Info("device registered",
			"device", deviceID, "fingerprint", fp.String(),
			"capabilities", len(s.prof.Capabilities))
	}
	return nil
}

// RemoveDevice drops a device session and clears all its learned
// state: arbitration decision, learned divisors, and history.
func (m *Manager) RemoveDevice(deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[deviceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}

	s.arb.Stop()
	delete(m.sessions, deviceID)
	delete(m.restored, deviceID)
	m.normalizer.Learner().ResetDevice(deviceID)
	if m.store != nil {
		if err := m.store.DeleteDecision(context.Background(), deviceID); err != nil {
			m.logger.Error("deleting affinity decision", "device", deviceID, "error", err)
		}
	}
	m.logger.Info("device removed", "device", deviceID)
	return nil
}

// newSessionLocked creates and installs a session. Caller holds the
// mutex.
func (m *Manager) newSessionLocked(deviceID string, fp profile.Fingerprint) *session {
	s := &session{
		deviceID:    deviceID,
		fingerprint: fp,
		observed:    make(map[uint8]struct{}),
	}
	if prof, ok := m.registry.Resolve(fp); ok {
		s.prof = prof
	}

	s.arb = arbiter.New(deviceID, m.window, m.affinityDecided)
	s.arb.SetLogger(m.logger)
	if d, ok := m.restored[deviceID]; ok {
		delete(m.restored, deviceID)
		if err := s.arb.Restore(d); err != nil {
			m.logger.Warn("restoring affinity", "device", deviceID, "error", err)
		}
	} else {
		s.arb.Start()
	}

	m.sessions[deviceID] = s
	return s
}

// sessionLocked returns the session for a device, creating one
// implicitly on first traffic. Caller holds the mutex.
func (m *Manager) sessionLocked(deviceID string) *session {
	if s, ok := m.sessions[deviceID]; ok {
		return s
	}
	m.logger.Debug("implicit device registration", "device", deviceID)
	return m.newSessionLocked(deviceID, profile.Fingerprint{})
}

// HandleRawMessage processes one MQTT message from a raw DataPoint
// topic (dpbridge/raw/{device}).
func (m *Manager) HandleRawMessage(topic string, payload []byte) error {
	deviceID, err := deviceFromTopic(topic, "raw", 3)
	if err != nil {
		return err
	}
	return m.HandleRawFrame(deviceID, payload)
}

// HandleRawFrame decodes a tunnelled DataPoint payload and runs every
// record through the pipeline. The payload may arrive wrapped (base64,
// JSON, hex); the frame codec handles unwrapping.
//
// A truncated batch is a data-quality condition, not a failure: the
// decodable prefix is processed and the remainder logged.
func (m *Manager) HandleRawFrame(deviceID string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	s := m.sessionLocked(deviceID)

	records, err := tuya.DecodeFrames(payload)
	if err != nil {
		m.logger.Warn("datapoint payload truncated",
			"device", deviceID, "decoded", len(records), "error", err)
	}

	// Every record counts toward arbitration, even ones dropped below.
	for _, dp := range records {
		s.arb.ObserveDataPoint(dp.ID)
		s.observed[dp.ID] = struct{}{}
	}

	if s.arb.Affinity() == arbiter.AffinityClusterOnly {
		m.logger.Debug("datapoint traffic dropped by affinity",
			"device", deviceID, "records", len(records))
		return nil
	}

	for _, dp := range records {
		raw, err := tuya.DecodeValue(dp)
		if err != nil {
			m.logger.Warn("datapoint value decode failed",
				"device", deviceID, "dp", dp.ID, "error", err)
			continue
		}

		mapping, ok := s.mapping(dp.ID)
		if !ok {
			m.logger.Debug("unmapped datapoint",
				"device", deviceID, "dp", dp.ID, "type", dp.Type)
			continue
		}

		res := m.normalizer.Normalize(deviceID, mapping.Capability, raw, mapping.Rule)
		m.emitLocked(s, mapping.Capability, res, raw, sourceDataPoint)
	}
	return nil
}

// HandleClusterMessage processes one MQTT message from a cluster topic
// (dpbridge/cluster/{device}/{cluster}, cluster id hex-encoded).
func (m *Manager) HandleClusterMessage(topic string, payload []byte) error {
	deviceID, err := deviceFromTopic(topic, "cluster", 4)
	if err != nil {
		return err
	}
	parts := strings.Split(topic, "/")
	clusterID, err := strconv.ParseUint(parts[3], 16, 16)
	if err != nil {
		return fmt.Errorf("%w: bad cluster id %q", ErrInvalidTopic, parts[3])
	}

	var msg ClusterMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if msg.Attribute == "" {
		return fmt.Errorf("%w: missing attribute", ErrInvalidPayload)
	}
	return m.HandleClusterReport(deviceID, uint16(clusterID), msg.Attribute, msg.Value)
}

// HandleClusterReport runs one parsed cluster attribute report through
// the pipeline. Cluster attribute units are fixed by the cluster
// specifications, so this path uses the pure conversion without the
// adaptive learner.
func (m *Manager) HandleClusterReport(deviceID string, clusterID uint16, attribute string, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	s := m.sessionLocked(deviceID)

	s.arb.ObserveCluster(clusterID)

	if s.arb.Affinity() == arbiter.AffinityDataPointOnly {
		m.logger.Debug("cluster traffic dropped by affinity",
			"device", deviceID, "cluster", arbiter.ClusterName(clusterID))
		return nil
	}

	mapping, ok := clusterMapping(clusterID, attribute)
	if !ok {
		m.logger.Debug("unmapped cluster attribute",
			"device", deviceID,
			"cluster", arbiter.ClusterName(clusterID),
			"attribute", attribute)
		return nil
	}

	res, err := normalize.Apply(value, mapping.Rule)
	if err != nil {
		m.logger.Warn("cluster value conversion failed",
			"device", deviceID, "attribute", attribute, "error", err)
		return nil
	}
	m.emitLocked(s, mapping.Capability, res, value, sourceCluster)
	return nil
}

// emitLocked publishes a normalization result and records telemetry.
// Caller holds the mutex.
func (m *Manager) emitLocked(s *session, capability profile.Capability, res normalize.Result, raw any, source string) {
	if !res.IsValid {
		m.logger.Warn("reading rejected",
			"device", s.deviceID, "capability", capability, "raw", raw, "source", source)
		if m.metrics != nil {
			if f, ok := metricValue(raw); ok {
				m.metrics.WriteRejection(s.deviceID, string(capability), f)
			}
		}
		return
	}

	correction := ""
	if res.Correction != normalize.CorrectionNone {
		correction = string(res.Correction)
	}
	m.publishJSON(m.topics.State(s.deviceID, string(capability)), StateMessage{
		DeviceID:   s.deviceID,
		Capability: capability,
		Value:      res.Value,
		Correction: correction,
		Source:     source,
		Timestamp:  time.Now().UTC(),
	}, true)

	if m.metrics == nil {
		return
	}
	if f, ok := metricValue(res.Value); ok {
		m.metrics.WriteCapabilityValue(s.deviceID, string(capability), f)
	}
	switch res.Correction {
	case normalize.CorrectionDivisor:
		m.metrics.WriteCorrectionEvent(s.deviceID, string(capability), string(res.Correction), res.AppliedDivisor)
	case normalize.CorrectionMultiplier:
		m.metrics.WriteCorrectionEvent(s.deviceID, string(capability), string(res.Correction), res.AppliedMultiplier)
	case normalize.CorrectionClampedMin:
		m.metrics.WriteCorrectionEvent(s.deviceID, string(capability), string(res.Correction), 0)
	case normalize.CorrectionNone, normalize.CorrectionRejected:
	}
}

// affinityDecided is the arbiter decision callback. It runs on its own
// goroutine (the window timer fires on the runtime), re-entering the
// manager through the usual mutex.
func (m *Manager) affinityDecided(d arbiter.Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A device that never matched a registered profile gets one
	// inferred from the DataPoint ids it actually sent.
	if s, ok := m.sessions[d.DeviceID]; ok && s.prof == nil {
		ids := make([]uint8, 0, len(s.observed))
		for id := range s.observed {
			ids = append(ids, id)
		}
		if p := profile.InferProfile(ids); p != nil {
			s.prof = p
			m.logger.Info("profile inferred from traffic",
				"device", d.DeviceID, "capabilities", len(p.Capabilities))
		}
	}

	if m.store != nil {
		if err := m.store.SaveDecision(context.Background(), d); err != nil {
			m.logger.Error("persisting affinity decision", "device", d.DeviceID, "error", err)
		}
	}

	m.publishJSON(m.topics.Affinity(d.DeviceID), AffinityMessage{
		DeviceID:        d.DeviceID,
		Affinity:        d.Affinity,
		ClusterEvents:   d.ClusterEvents,
		DataPointEvents: d.DataPointEvents,
		Capabilities:    d.Capabilities,
		DecidedAt:       d.DecidedAt,
	}, true)

	if m.metrics != nil {
		m.metrics.WriteAffinityDecision(d.DeviceID, string(d.Affinity), d.ClusterEvents, d.DataPointEvents)
	}
}

// SendCommand encodes a capability value as a DataPoint frame and
// publishes it for the radio front-end to tunnel to the device.
func (m *Manager) SendCommand(deviceID string, capability profile.Capability, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	s, ok := m.sessions[deviceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}

	id, mapping, ok := commandTarget(s, capability)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoMapping, capability)
	}

	frame, err := encodeCommand(id, mapping.Rule, value)
	if err != nil {
		return err
	}

	m.publishJSON(m.topics.Command(deviceID), CommandMessage{
		DeviceID:  deviceID,
		Frame:     frame,
		Timestamp: time.Now().UTC(),
	}, false)
	m.logger.Debug("command sent",
		"device", deviceID, "capability", capability, "dp", id)
	return nil
}

// commandTarget finds the DataPoint id to write for a capability: the
// device profile first, then the conventional assignments.
func commandTarget(s *session, capability profile.Capability) (uint8, profile.DataPointMapping, bool) {
	if s.prof != nil {
		var (
			best  uint8
			m     profile.DataPointMapping
			found bool
		)
		for id, dm := range s.prof.DataPoints {
			if dm.Capability != capability {
				continue
			}
			if !found || id < best {
				best, m, found = id, dm, true
			}
		}
		if found {
			return best, m, true
		}
	}
	return profile.ConventionalDataPointFor(capability)
}

// encodeCommand converts a semantic value into a wire frame, inverting
// the capability's conversion rule.
func encodeCommand(id uint8, rule profile.ConversionRule, value any) ([]byte, error) {
	switch rule.Kind {
	case profile.RuleBitExtract:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects bool, got %T", ErrInvalidPayload, rule.Kind, value)
		}
		return tuya.EncodeDataPoint(id, tuya.TypeBoolean, b)

	case profile.RuleEnumMap:
		name, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects string, got %T", ErrInvalidPayload, rule.Kind, value)
		}
		for ordinal, n := range rule.Enum {
			if n == name {
				return tuya.EncodeDataPoint(id, tuya.TypeEnum, ordinal)
			}
		}
		return nil, fmt.Errorf("%w: unknown enum value %q", ErrInvalidPayload, name)

	case profile.RuleDivisor, profile.RuleMultiplier:
		f, ok := metricValue(value)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a number, got %T", ErrInvalidPayload, rule.Kind, value)
		}
		divisor := rule.Divisor
		if divisor == 0 {
			divisor = 1
		}
		multiplier := rule.Multiplier
		if multiplier == 0 {
			multiplier = 1
		}
		raw := int64(math.Round((f - rule.Offset) / multiplier * divisor))
		return tuya.EncodeDataPoint(id, tuya.TypeValue, raw)

	default:
		return nil, fmt.Errorf("%w: rule kind %q is not commandable", ErrNoMapping, rule.Kind)
	}
}

// Devices returns the operational view of every session, sorted by
// device id.
func (m *Manager) Devices() []DeviceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]DeviceInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, m.deviceInfoLocked(s))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].DeviceID < infos[j].DeviceID })
	return infos
}

// Device returns the operational view of one session.
func (m *Manager) Device(deviceID string) (DeviceInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[deviceID]
	if !ok {
		return DeviceInfo{}, false
	}
	return m.deviceInfoLocked(s), true
}

// ProtocolAffinity returns the committed affinity decision for a
// device, if one exists.
func (m *Manager) ProtocolAffinity(deviceID string) (arbiter.Decision, bool) {
	m.mu.Lock()
	s, ok := m.sessions[deviceID]
	m.mu.Unlock()
	if !ok {
		return arbiter.Decision{}, false
	}
	return s.arb.Decision()
}

// DecideAffinity closes a device's observation window early, forcing
// an immediate commit.
func (m *Manager) DecideAffinity(deviceID string) (arbiter.Decision, error) {
	m.mu.Lock()
	s, ok := m.sessions[deviceID]
	m.mu.Unlock()
	if !ok {
		return arbiter.Decision{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	return s.arb.Decide(), nil
}

// Learned returns the current learned divisors across all devices.
func (m *Manager) Learned() []normalize.LearnedDivisor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.normalizer.Learner().Snapshot()
}

// ForgetLearned clears all learned scaling state for a device. The
// device stays registered; learning starts over from its next reading.
func (m *Manager) ForgetLearned(deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[deviceID]; !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	m.normalizer.Learner().ResetDevice(deviceID)
	m.logger.Info("learned state cleared", "device", deviceID)
	return nil
}

// Close stops all observation windows and rejects further events.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	for _, s := range m.sessions {
		s.arb.Stop()
	}
	m.closed = true
	return nil
}

// deviceInfoLocked builds the operational view for a session. Caller
// holds the mutex.
func (m *Manager) deviceInfoLocked(s *session) DeviceInfo {
	info := DeviceInfo{
		DeviceID:    s.deviceID,
		Fingerprint: s.fingerprint,
		Affinity:    s.arb.Affinity(),
	}
	if s.prof != nil {
		info.ProfileInferred = s.prof.Inferred
		info.Capabilities = append([]profile.Capability(nil), s.prof.Capabilities...)
	}
	if d, ok := s.arb.Decision(); ok {
		info.AffinityDecided = true
		if info.Capabilities == nil {
			info.Capabilities = d.Capabilities
		}
	}
	info.ClusterEvents, info.DataPointEvents = s.arb.Counts()
	info.LastClusterHit, info.LastDataPointHit = s.arb.LastHits()
	return info
}

// publishJSON marshals and publishes a message, logging failures
// instead of propagating them: a broker hiccup must not stall the
// pipeline.
func (m *Manager) publishJSON(topic string, v any, retained bool) {
	if m.publisher == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		m.logger.Error("marshalling message", "topic", topic, "error", err)
		return
	}
	if err := m.publisher.Publish(topic, payload, m.qos, retained); err != nil {
		m.logger.Error("publishing message", "topic", topic, "error", err)
	}
}

// deviceFromTopic extracts the device id from a bridge topic of the
// given category, validating the segment count.
func deviceFromTopic(topic, category string, segments int) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != segments || parts[0] != mqtt.TopicPrefix || parts[1] != category || parts[2] == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	return parts[2], nil
}

// metricValue coerces a normalized value into a float for telemetry.
// Strings and byte payloads have no numeric form and are skipped.
func metricValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint32:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
