package normalize

import (
	"context"
	"sort"
	"time"

	"github.com/packetninja/dpbridge/internal/profile"
)

// Learner promotion thresholds.
const (
	// promotionHits is the tally a corrective divisor must reach to
	// become the learned divisor (promotion rule A).
	promotionHits = 3

	// voteMinSamples is the history length at which the majority vote
	// runs when nothing has been learned yet (promotion rule B).
	voteMinSamples = 5
)

// Logger defines the logging interface used by the learner.
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

// LearnedDivisor is one persisted learned-scaling record, the shape of
// the learner's durable state surface.
type LearnedDivisor struct {
	DeviceID   string             `json:"device_id"`
	Capability profile.Capability `json:"capability"`
	Divisor    float64            `json:"divisor"`
	Hits       int                `json:"hits"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// Store persists learned divisors across process restarts. The
// learner treats persistence as best-effort: a failing store degrades
// to in-memory learning, never to a crash.
type Store interface {
	// SaveLearnedDivisor inserts or replaces the learned divisor for
	// a (device, capability) pair.
	SaveLearnedDivisor(ctx context.Context, rec LearnedDivisor) error

	// LoadLearnedDivisors returns all persisted records.
	LoadLearnedDivisors(ctx context.Context) ([]LearnedDivisor, error)

	// DeleteLearnedDivisor removes the record for a pair, if any.
	DeleteLearnedDivisor(ctx context.Context, deviceID string, capability profile.Capability) error
}

// pairKey identifies one (device, capability) learning arena slot.
type pairKey struct {
	deviceID   string
	capability profile.Capability
}

// entry is the owned learning state for one pair: bounded raw history,
// per-divisor correction tally, and the learned-divisor slot.
type entry struct {
	history    *history
	tally      map[float64]int
	learned    float64
	hasLearned bool
}

// Learner observes rolling raw-value history per (device, capability)
// and statistically infers the correct scaling divisor when the
// configured one is wrong or unknown.
//
// Two promotion rules, with rule B pre-empting rule A:
//
//   - A: a divisor that has succeeded promotionHits times in the
//     correction search becomes the learned divisor.
//   - B: once history holds voteMinSamples observations with nothing
//     learned, a majority vote counts how many historical raws land in
//     the rule's typical range under each candidate divisor; any
//     candidate reaching 50% of history length is learned immediately.
//
// The learner is NOT safe for concurrent use: the host integration
// layer delivers protocol events serially and the bridge manager
// serializes access, so per-pair state needs no locking.
type Learner struct {
	entries map[pairKey]*entry
	store   Store
	logger  Logger
}

// NewLearner creates an empty learner. The store is optional; pass nil
// for purely in-memory learning.
func NewLearner(store Store) *Learner {
	return &Learner{
		entries: make(map[pairKey]*entry),
		store:   store,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the learner.
func (l *Learner) SetLogger(logger Logger) {
	l.logger = logger
}

// Preload seeds learned divisors from the store. Call once on
// startup, before traffic arrives.
func (l *Learner) Preload(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	records, err := l.store.LoadLearnedDivisors(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		e := l.entry(rec.DeviceID, rec.Capability)
		e.learned = rec.Divisor
		e.hasLearned = true
		e.tally[rec.Divisor] = rec.Hits
	}
	l.logger.Info("learned divisors preloaded", "count", len(records))
	return nil
}

// entry returns the arena slot for a pair, creating it lazily on
// first observation.
func (l *Learner) entry(deviceID string, capability profile.Capability) *entry {
	key := pairKey{deviceID: deviceID, capability: capability}
	e, ok := l.entries[key]
	if !ok {
		e = &entry{history: newHistory(), tally: make(map[float64]int)}
		l.entries[key] = e
	}
	return e
}

// Observe records a raw observation and, when history is deep enough
// with nothing learned yet, runs the majority vote (promotion rule B)
// against the rule's candidate divisors and typical range.
func (l *Learner) Observe(deviceID string, capability profile.Capability, raw float64, rule profile.ConversionRule) {
	e := l.entry(deviceID, capability)
	e.history.push(raw)

	if e.hasLearned || e.history.len() < voteMinSamples {
		return
	}
	if d, ok := majorityVote(e.history.snapshot(), rule); ok {
		l.promote(deviceID, capability, e, d, "majority_vote")
	}
}

// RecordCorrection tallies a successful corrective divisor reported by
// the normalizer and promotes it once it reaches the hit threshold
// (promotion rule A).
func (l *Learner) RecordCorrection(deviceID string, capability profile.Capability, divisor float64) {
	if divisor == 0 || divisor == 1 {
		return
	}
	e := l.entry(deviceID, capability)
	e.tally[divisor]++

	if !e.hasLearned && e.tally[divisor] >= promotionHits {
		l.promote(deviceID, capability, e, divisor, "repeated_correction")
	}
}

// Learned returns the learned divisor for a pair, if one has been
// promoted.
func (l *Learner) Learned(deviceID string, capability profile.Capability) (float64, bool) {
	key := pairKey{deviceID: deviceID, capability: capability}
	e, ok := l.entries[key]
	if !ok || !e.hasLearned {
		return 0, false
	}
	return e.learned, true
}

// Unlearn drops a learned divisor that has stopped validating,
// falling the pair back to the full correction search. History and
// tallies are preserved so a better divisor can be promoted.
func (l *Learner) Unlearn(deviceID string, capability profile.Capability) {
	key := pairKey{deviceID: deviceID, capability: capability}
	e, ok := l.entries[key]
	if !ok || !e.hasLearned {
		return
	}
	delete(e.tally, e.learned)
	e.learned = 0
	e.hasLearned = false

	l.logger.Warn("learned divisor dropped", "device", deviceID, "capability", capability)
	if l.store != nil {
		if err := l.store.DeleteLearnedDivisor(context.Background(), deviceID, capability); err != nil {
			l.logger.Error("deleting learned divisor", "device", deviceID, "capability", capability, "error", err)
		}
	}
}

// Reset clears history, tally and learned divisor for one pair.
func (l *Learner) Reset(deviceID string, capability profile.Capability) {
	key := pairKey{deviceID: deviceID, capability: capability}
	delete(l.entries, key)

	if l.store != nil {
		if err := l.store.DeleteLearnedDivisor(context.Background(), deviceID, capability); err != nil {
			l.logger.Error("deleting learned divisor", "device", deviceID, "capability", capability, "error", err)
		}
	}
}

// ResetDevice clears all learning state for a device, across every
// capability. Used on device removal.
func (l *Learner) ResetDevice(deviceID string) {
	for key := range l.entries {
		if key.deviceID == deviceID {
			l.Reset(key.deviceID, key.capability)
		}
	}
}

// Snapshot returns the current learned divisors for the operational
// API, sorted by device then capability.
func (l *Learner) Snapshot() []LearnedDivisor {
	var records []LearnedDivisor
	for key, e := range l.entries {
		if !e.hasLearned {
			continue
		}
		records = append(records, LearnedDivisor{
			DeviceID:   key.deviceID,
			Capability: key.capability,
			Divisor:    e.learned,
			Hits:       e.tally[e.learned],
		})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].DeviceID != records[j].DeviceID {
			return records[i].DeviceID < records[j].DeviceID
		}
		return records[i].Capability < records[j].Capability
	})
	return records
}

// promote installs a learned divisor and persists it best-effort.
func (l *Learner) promote(deviceID string, capability profile.Capability, e *entry, divisor float64, reason string) {
	e.learned = divisor
	e.hasLearned = true

	l.logger.Info("divisor learned",
		"device", deviceID,
		"capability", capability,
		"divisor", divisor,
		"reason", reason,
	)

	if l.store != nil {
		rec := LearnedDivisor{
			DeviceID:   deviceID,
			Capability: capability,
			Divisor:    divisor,
			Hits:       e.tally[divisor],
			UpdatedAt:  time.Now().UTC(),
		}
		if err := l.store.SaveLearnedDivisor(context.Background(), rec); err != nil {
			l.logger.Error("persisting learned divisor", "device", deviceID, "capability", capability, "error", err)
		}
	}
}

// majorityVote counts, for each candidate divisor, how many historical
// raws land in the typical range when divided by it. The first
// candidate (largest-first) reaching half the history length wins.
func majorityVote(raws []float64, rule profile.ConversionRule) (float64, bool) {
	if !rule.TypicalRange.Defined() || len(raws) == 0 {
		return 0, false
	}

	divisors := append([]float64(nil), rule.CandidateDivisors...)
	sort.Sort(sort.Reverse(sort.Float64Slice(divisors)))

	for _, d := range divisors {
		if d == 0 || d == 1 {
			continue
		}
		hits := 0
		for _, raw := range raws {
			if rule.TypicalRange.Contains(raw / d) {
				hits++
			}
		}
		if hits*2 >= len(raws) {
			return d, true
		}
	}
	return 0, false
}
