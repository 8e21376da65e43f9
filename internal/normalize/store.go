package normalize

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/packetninja/dpbridge/internal/profile"
)

// SQLiteStore implements Store using SQLite.
//
// Schema: migrations/20260301_120000_learned_state.up.sql
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed learned-state store.
// The db parameter should be an open SQLite connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// SaveLearnedDivisor inserts or replaces the learned divisor for a
// (device, capability) pair.
func (s *SQLiteStore) SaveLearnedDivisor(ctx context.Context, rec LearnedDivisor) error {
	query := `
		INSERT INTO learned_divisors (device_id, capability, divisor, hits, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(device_id, capability) DO UPDATE SET
			divisor = excluded.divisor,
			hits = excluded.hits,
			updated_at = excluded.updated_at`

	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.DeviceID, string(rec.Capability), rec.Divisor, rec.Hits, updatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: saving learned divisor: %w", ErrStoreFailed, err)
	}
	return nil
}

// LoadLearnedDivisors returns all persisted records.
func (s *SQLiteStore) LoadLearnedDivisors(ctx context.Context) ([]LearnedDivisor, error) {
	query := `
		SELECT device_id, capability, divisor, hits, updated_at
		FROM learned_divisors
		ORDER BY device_id, capability`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: querying learned divisors: %w", ErrStoreFailed, err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var records []LearnedDivisor
	for rows.Next() {
		var (
			rec        LearnedDivisor
			capability string
			updatedAt  string
		)
		if err := rows.Scan(&rec.DeviceID, &capability, &rec.Divisor, &rec.Hits, &updatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning learned divisor: %w", ErrStoreFailed, err)
		}
		rec.Capability = profile.Capability(capability)
		if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
			rec.UpdatedAt = t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating learned divisors: %w", ErrStoreFailed, err)
	}
	return records, nil
}

// DeleteLearnedDivisor removes the record for a pair, if any.
func (s *SQLiteStore) DeleteLearnedDivisor(ctx context.Context, deviceID string, capability profile.Capability) error {
	query := `DELETE FROM learned_divisors WHERE device_id = ? AND capability = ?`
	if _, err := s.db.ExecContext(ctx, query, deviceID, string(capability)); err != nil {
		return fmt.Errorf("%w: deleting learned divisor: %w", ErrStoreFailed, err)
	}
	return nil
}
