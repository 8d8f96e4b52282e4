package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/cognicore/korpus/pkg/korpus/codec"
	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/store"
)

func openTest(t *testing.T) store.Store {
	t.Helper()
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// TestSchemaCreationIdempotent tests that running initSchema multiple times is safe
func TestSchemaCreationIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open database: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := initSchema(ctx, db); err != nil {
			t.Fatalf("initSchema iteration %d: %v", i, err)
		}
	}

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&count)
	if err != nil {
		t.Fatalf("Count tables: %v", err)
	}
	if count != 3 { // runs, dictionary_entries, split_stats
		t.Errorf("Expected 3 tables, got %d", count)
	}
}

func TestRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openTest(t)

	started := time.Date(2024, 5, 4, 12, 0, 0, 123, time.UTC)
	run := store.Run{ID: "01HXAMPLE0000000000000000", Topic: "startrek", StartedAt: started}
	if err := st.UpsertRun(ctx, run); err != nil {
		t.Fatalf("UpsertRun: %v", err)
	}

	got, found, err := st.GetRun(ctx, run.ID)
	if err != nil || !found {
		t.Fatalf("GetRun: found=%v err=%v", found, err)
	}
	if got.Topic != "startrek" || !got.StartedAt.Equal(started) {
		t.Errorf("GetRun = %+v, want %+v", got, run)
	}

	if _, found, err := st.GetRun(ctx, "missing"); err != nil || found {
		t.Errorf("GetRun(missing) = found %v, err %v", found, err)
	}

	// Upsert updates in place.
	run.Topic = "starwars"
	if err := st.UpsertRun(ctx, run); err != nil {
		t.Fatalf("UpsertRun update: %v", err)
	}
	runs, err := st.RunsByTopic(ctx, "starwars")
	if err != nil {
		t.Fatalf("RunsByTopic: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Errorf("RunsByTopic = %+v", runs)
	}
	if runs, _ := st.RunsByTopic(ctx, "startrek"); len(runs) != 0 {
		t.Errorf("Expected no startrek runs after update, got %d", len(runs))
	}
}

func TestDictionaryRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openTest(t)

	run := store.Run{ID: "r1", Topic: "t", StartedAt: time.Now()}
	if err := st.UpsertRun(ctx, run); err != nil {
		t.Fatalf("UpsertRun: %v", err)
	}

	d := codec.Build([]string{"a", "a", "b", "c", "c", "c"}, 1)
	if err := st.ReplaceDictionary(ctx, run.ID, d); err != nil {
		t.Fatalf("ReplaceDictionary: %v", err)
	}
	got, err := st.GetDictionary(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetDictionary: %v", err)
	}
	if !reflect.DeepEqual(got.Tokens(), d.Tokens()) {
		t.Errorf("Tokens = %v, want %v", got.Tokens(), d.Tokens())
	}

	// Replace drops previous entries.
	smaller := codec.Build([]string{"x"}, 0)
	if err := st.ReplaceDictionary(ctx, run.ID, smaller); err != nil {
		t.Fatalf("ReplaceDictionary again: %v", err)
	}
	got, err = st.GetDictionary(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetDictionary: %v", err)
	}
	if want := []string{"x", codec.Unknown}; !reflect.DeepEqual(got.Tokens(), want) {
		t.Errorf("Tokens = %v, want %v", got.Tokens(), want)
	}

	if _, err := st.GetDictionary(ctx, "nope"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDictionaryRequiresRun(t *testing.T) {
	st := openTest(t)
	err := st.ReplaceDictionary(context.Background(), "no-such-run", codec.Build(nil, 0))
	if err == nil {
		t.Error("Expected foreign key violation for unknown run")
	}
}

func TestSplits(t *testing.T) {
	ctx := context.Background()
	st := openTest(t)
	if err := st.UpsertRun(ctx, store.Run{ID: "r1", Topic: "t", StartedAt: time.Now()}); err != nil {
		t.Fatalf("UpsertRun: %v", err)
	}

	for _, s := range []store.SplitStats{
		{Name: "valid", Articles: 1, Tokens: 10},
		{Name: "train", Articles: 8, Tokens: 90, Unknown: 3},
		{Name: "train", Articles: 8, Tokens: 95, Unknown: 4},
	} {
		if err := st.UpsertSplit(ctx, "r1", s); err != nil {
			t.Fatalf("UpsertSplit(%s): %v", s.Name, err)
		}
	}

	got, err := st.GetSplits(ctx, "r1")
	if err != nil {
		t.Fatalf("GetSplits: %v", err)
	}
	want := []store.SplitStats{
		{Name: "train", Articles: 8, Tokens: 95, Unknown: 4},
		{Name: "valid", Articles: 1, Tokens: 10},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetSplits = %+v, want %+v", got, want)
	}
}
