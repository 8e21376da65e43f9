package arbiter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/packetninja/dpbridge/internal/profile"
)

// Store persists affinity decisions so rejoining devices skip the
// observation window.
type Store interface {
	// SaveDecision inserts or replaces the decision for a device.
	SaveDecision(ctx context.Context, d Decision) error

	// LoadDecisions returns all persisted decisions.
	LoadDecisions(ctx context.Context) ([]Decision, error)

	// DeleteDecision removes a device's decision, if any.
	DeleteDecision(ctx context.Context, deviceID string) error
}

// SQLiteStore implements Store using SQLite.
//
// Schema: migrations/20260301_120000_learned_state.up.sql
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed affinity store. The db
// parameter should be an open SQLite connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// SaveDecision inserts or replaces the decision for a device. The
// discovered capability set is stored as a JSON array so a restored
// device reports the same capabilities it was decided with.
func (s *SQLiteStore) SaveDecision(ctx context.Context, d Decision) error {
	query := `
		INSERT INTO protocol_affinity (device_id, affinity, cluster_events, datapoint_events,
			capabilities, last_cluster_hit, last_datapoint_hit, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			affinity = excluded.affinity,
			cluster_events = excluded.cluster_events,
			datapoint_events = excluded.datapoint_events,
			capabilities = excluded.capabilities,
			last_cluster_hit = excluded.last_cluster_hit,
			last_datapoint_hit = excluded.last_datapoint_hit,
			decided_at = excluded.decided_at`

	decidedAt := d.DecidedAt
	if decidedAt.IsZero() {
		decidedAt = time.Now().UTC()
	}

	caps, err := encodeCapabilities(d.Capabilities)
	if err != nil {
		return fmt.Errorf("%w: encoding capabilities: %w", ErrStoreFailed, err)
	}

	_, err = s.db.ExecContext(ctx, query,
		d.DeviceID, string(d.Affinity), d.ClusterEvents, d.DataPointEvents,
		caps, encodeTime(d.LastClusterHit), encodeTime(d.LastDataPointHit),
		decidedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: saving decision: %w", ErrStoreFailed, err)
	}
	return nil
}

// LoadDecisions returns all persisted decisions.
func (s *SQLiteStore) LoadDecisions(ctx context.Context) ([]Decision, error) {
	query := `
		SELECT device_id, affinity, cluster_events, datapoint_events,
			capabilities, last_cluster_hit, last_datapoint_hit, decided_at
		FROM protocol_affinity
		ORDER BY device_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: querying decisions: %w", ErrStoreFailed, err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var decisions []Decision
	for rows.Next() {
		var (
			d             Decision
			affinity      string
			caps          string
			lastCluster   string
			lastDataPoint string
			decidedAt     string
		)
		if err := rows.Scan(&d.DeviceID, &affinity, &d.ClusterEvents, &d.DataPointEvents,
			&caps, &lastCluster, &lastDataPoint, &decidedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning decision: %w", ErrStoreFailed, err)
		}
		d.Affinity = Affinity(affinity)
		if d.Capabilities, err = decodeCapabilities(caps); err != nil {
			return nil, fmt.Errorf("%w: decoding capabilities for %s: %w", ErrStoreFailed, d.DeviceID, err)
		}
		d.LastClusterHit = decodeTime(lastCluster)
		d.LastDataPointHit = decodeTime(lastDataPoint)
		d.DecidedAt = decodeTime(decidedAt)
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating decisions: %w", ErrStoreFailed, err)
	}
	return decisions, nil
}

// DeleteDecision removes a device's decision, if any.
func (s *SQLiteStore) DeleteDecision(ctx context.Context, deviceID string) error {
	query := `DELETE FROM protocol_affinity WHERE device_id = ?`
	if _, err := s.db.ExecContext(ctx, query, deviceID); err != nil {
		return fmt.Errorf("%w: deleting decision: %w", ErrStoreFailed, err)
	}
	return nil
}

// encodeCapabilities renders the capability set as a JSON array. A nil
// set is stored as "[]" to keep the column NOT NULL.
func encodeCapabilities(caps []profile.Capability) (string, error) {
	if len(caps) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(caps)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeCapabilities parses the stored JSON array, returning nil for
// an empty set.
func decodeCapabilities(s string) ([]profile.Capability, error) {
	if s == "" || s == "[]" {
		return nil, nil
	}
	var caps []profile.Capability
	if err := json.Unmarshal([]byte(s), &caps); err != nil {
		return nil, err
	}
	return caps, nil
}

// encodeTime renders a timestamp as RFC3339, empty for the zero time.
func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// decodeTime parses an RFC3339 timestamp, returning the zero time for
// empty or malformed input.
func decodeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
