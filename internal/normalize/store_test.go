package normalize

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/packetninja/dpbridge/internal/profile"
)

// setupTestDB creates an in-memory SQLite database with the
// learned-state schema applied.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck

	schema := `
		CREATE TABLE learned_divisors (
			device_id  TEXT    NOT NULL,
			capability TEXT    NOT NULL,
			divisor    REAL    NOT NULL,
			hits       INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT    NOT NULL,
			PRIMARY KEY (device_id, capability)
		)`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	return db
}

func TestSQLiteStoreSaveAndLoad(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	recs := []LearnedDivisor{
		{DeviceID: "dev-a", Capability: profile.CapMeasureTemperature, Divisor: 100, Hits: 3},
		{DeviceID: "dev-a", Capability: profile.CapMeasureHumidity, Divisor: 10, Hits: 5},
		{DeviceID: "dev-b", Capability: profile.CapMeasurePower, Divisor: 10, Hits: 4},
	}
	for _, rec := range recs {
		if err := store.SaveLearnedDivisor(ctx, rec); err != nil {
			t.Fatalf("SaveLearnedDivisor() error = %v", err)
		}
	}

	got, err := store.LoadLearnedDivisors(ctx)
	if err != nil {
		t.Fatalf("LoadLearnedDivisors() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("loaded %d records, want 3", len(got))
	}

	// Ordered by device then capability.
	if got[0].Capability != profile.CapMeasureHumidity || got[0].Divisor != 10 {
		t.Errorf("first record = %+v, want dev-a humidity /10", got[0])
	}
	if got[2].DeviceID != "dev-b" || got[2].Divisor != 10 {
		t.Errorf("last record = %+v, want dev-b power /10", got[2])
	}
	if got[0].UpdatedAt.IsZero() {
		t.Error("UpdatedAt not populated on load")
	}
}

func TestSQLiteStoreUpsert(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	rec := LearnedDivisor{
		DeviceID:   "dev-a",
		Capability: profile.CapMeasureTemperature,
		Divisor:    100,
		Hits:       3,
		UpdatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.SaveLearnedDivisor(ctx, rec); err != nil {
		t.Fatalf("SaveLearnedDivisor() error = %v", err)
	}

	rec.Divisor = 10
	rec.Hits = 7
	if err := store.SaveLearnedDivisor(ctx, rec); err != nil {
		t.Fatalf("SaveLearnedDivisor() upsert error = %v", err)
	}

	got, err := store.LoadLearnedDivisors(ctx)
	if err != nil {
		t.Fatalf("LoadLearnedDivisors() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("loaded %d records after upsert, want 1", len(got))
	}
	if got[0].Divisor != 10 || got[0].Hits != 7 {
		t.Errorf("record = %+v, want divisor 10 hits 7", got[0])
	}
}

func TestSQLiteStoreDelete(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	rec := LearnedDivisor{DeviceID: "dev-a", Capability: profile.CapMeasureTemperature, Divisor: 100, Hits: 3}
	if err := store.SaveLearnedDivisor(ctx, rec); err != nil {
		t.Fatalf("SaveLearnedDivisor() error = %v", err)
	}

	if err := store.DeleteLearnedDivisor(ctx, "dev-a", profile.CapMeasureTemperature); err != nil {
		t.Fatalf("DeleteLearnedDivisor() error = %v", err)
	}

	got, err := store.LoadLearnedDivisors(ctx)
	if err != nil {
		t.Fatalf("LoadLearnedDivisors() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("loaded %d records after delete, want 0", len(got))
	}

	// Deleting a missing record is not an error.
	if err := store.DeleteLearnedDivisor(ctx, "dev-x", profile.CapOnOff); err != nil {
		t.Errorf("DeleteLearnedDivisor() on missing record error = %v", err)
	}
}

func TestLearnerPreloadFromStore(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	rec := LearnedDivisor{DeviceID: "dev-a", Capability: profile.CapMeasureTemperature, Divisor: 100, Hits: 3}
	if err := store.SaveLearnedDivisor(ctx, rec); err != nil {
		t.Fatalf("SaveLearnedDivisor() error = %v", err)
	}

	learner := NewLearner(store)
	if err := learner.Preload(ctx); err != nil {
		t.Fatalf("Preload() error = %v", err)
	}

	d, ok := learner.Learned("dev-a", profile.CapMeasureTemperature)
	if !ok || d != 100 {
		t.Errorf("Learned() = %v, %v; want preloaded 100", d, ok)
	}
}

func TestLearnerPromotionPersists(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	learner := NewLearner(store)

	for i := 0; i < 3; i++ {
		learner.RecordCorrection("dev-a", profile.CapMeasureTemperature, 100)
	}

	got, err := store.LoadLearnedDivisors(context.Background())
	if err != nil {
		t.Fatalf("LoadLearnedDivisors() error = %v", err)
	}
	if len(got) != 1 || got[0].Divisor != 100 {
		t.Fatalf("persisted records = %+v, want one divisor-100 record", got)
	}

	learner.Unlearn("dev-a", profile.CapMeasureTemperature)
	got, err = store.LoadLearnedDivisors(context.Background())
	if err != nil {
		t.Fatalf("LoadLearnedDivisors() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("persisted records after Unlearn = %+v, want none", got)
	}
}
