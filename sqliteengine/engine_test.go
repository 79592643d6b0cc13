package sqliteengine_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	_ "modernc.org/sqlite"

	"github.com/chronos-atlas/chronos"
	"github.com/chronos-atlas/chronos/enginetest"
	"github.com/chronos-atlas/chronos/internal/dbtest"
	"github.com/chronos-atlas/chronos/sqliteengine"
)

func open(t *testing.T, path string) *sqliteengine.Engine {
	t.Helper()
	engine, err := sqliteengine.Open(context.Background(), path)
	if err != nil {
		t.Fatal("Open failed:", err)
	}
	t.Cleanup(func() {
		if err := engine.Close(); err != nil {
			t.Error("Close failed:", err)
		}
	})
	return engine
}

func TestEngine(t *testing.T) {
	enginetest.Run(t, open(t, dbtest.SQLitePath(t)))
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := sqliteengine.Open(context.Background(), " "); err == nil {
		t.Error("Open(blank path) succeeded, want error")
	}
}

// Reopening the same file reproduces the listings and resolutions of the
// previous session.
func TestReloadIsStable(t *testing.T) {
	ctx := context.Background()
	path := dbtest.SQLitePath(t)

	first, err := sqliteengine.Open(ctx, path)
	if err != nil {
		t.Fatal("Open failed:", err)
	}
	store := chronos.New(first)
	if err := store.Init(ctx); err != nil {
		t.Fatal("Init failed:", err)
	}
	b, err := store.BootstrapProject(ctx, "reload", "Reload")
	if err != nil {
		t.Fatal("BootstrapProject failed:", err)
	}
	planet, err := store.CreateEntity(ctx, "reload", chronos.TypePlanet, b.Universe.ID)
	if err != nil {
		t.Fatal("CreateEntity failed:", err)
	}
	for tick, name := range map[chronos.Tick]string{0: "Earth", 100: "New Earth"} {
		if _, err := store.RecordFact(ctx, planet.ID, b.Canon.ID, chronos.AttrName, chronos.String(name), tick); err != nil {
			t.Fatal("RecordFact failed:", err)
		}
	}
	branch, err := store.CreateSpacetime(ctx, "reload", "Elsewhere", b.Canon.ID, 50)
	if err != nil {
		t.Fatal("CreateSpacetime failed:", err)
	}

	wantEntities, err := store.Entities(ctx, "reload")
	if err != nil {
		t.Fatal("Entities failed:", err)
	}
	wantState, err := store.State(ctx, planet.ID, branch.ID, chronos.Forever)
	if err != nil {
		t.Fatal("State failed:", err)
	}
	if err := first.Close(); err != nil {
		t.Fatal("Close failed:", err)
	}

	store = chronos.New(open(t, path))
	if err := store.Init(ctx); err != nil {
		t.Fatal("Init after reopen failed:", err)
	}
	gotEntities, err := store.Entities(ctx, "reload")
	if err != nil {
		t.Fatal("Entities after reopen failed:", err)
	}
	if diff := cmp.Diff(wantEntities, gotEntities); diff != "" {
		t.Errorf("Entities after reopen mismatch (-want +got):\n%s", diff)
	}
	gotState, err := store.State(ctx, planet.ID, branch.ID, chronos.Forever)
	if err != nil {
		t.Fatal("State after reopen failed:", err)
	}
	if diff := cmp.Diff(wantState, gotState); diff != "" {
		t.Errorf("State after reopen mismatch (-want +got):\n%s", diff)
	}
	if want := (chronos.State{chronos.AttrName: chronos.String("Earth")}); !cmp.Equal(want, gotState) {
		t.Errorf("State(branch @50) = %v, want %v", gotState, want)
	}
}

func TestMigrationsApplyOnce(t *testing.T) {
	ctx := context.Background()
	path := dbtest.SQLitePath(t)
	engine := open(t, path)
	for range 3 {
		if err := engine.Init(ctx); err != nil {
			t.Fatal("Init failed:", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, "SELECT version_id FROM goose_db_version WHERE version_id > 0 ORDER BY id")
	if err != nil {
		t.Fatal("Failed to list migrations:", err)
	}
	defer rows.Close()
	var got []int64
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			t.Fatal(err)
		}
		got = append(got, version)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{1}, got); diff != "" {
		t.Errorf("applied migrations mismatch (-want +got):\n%s", diff)
	}
}

// A database holding a foreign table of the same name must not pass for a
// chronos database.
func TestInitRejectsConflictingSchema(t *testing.T) {
	ctx := context.Background()
	path := dbtest.SQLitePath(t)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, "CREATE TABLE entities (id TEXT PRIMARY KEY, name TEXT)"); err != nil {
		t.Fatal("Failed to create the foreign table:", err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	store := chronos.New(open(t, path))
	// The failed migration is not recorded, so every attempt fails alike.
	for i := range 2 {
		if err := store.Init(ctx); err == nil {
			t.Fatalf("Init #%d succeeded on a conflicting schema, want error", i)
		}
	}
}

func TestClosedEngineFailsWithStoreError(t *testing.T) {
	ctx := context.Background()
	engine, err := sqliteengine.Open(ctx, dbtest.SQLitePath(t))
	if err != nil {
		t.Fatal("Open failed:", err)
	}
	store := chronos.New(engine)
	if err := store.Init(ctx); err != nil {
		t.Fatal("Init failed:", err)
	}
	b, err := store.BootstrapProject(ctx, "closed", "")
	if err != nil {
		t.Fatal("BootstrapProject failed:", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatal("Close failed:", err)
	}

	taxonomy := []error{
		chronos.ErrNotFound,
		chronos.ErrConstraintViolation,
		chronos.ErrInvalidValue,
		chronos.ErrCycleDetected,
	}
	tests := []struct {
		op   string
		call func() error
	}{
		{op: "get entities", call: func() error {
			_, err := store.Entities(ctx, "closed")
			return err
		}},
		{op: "record fact", call: func() error {
			_, err := store.RecordFact(ctx, b.Universe.ID, b.Canon.ID, "age", chronos.Number(1), 1)
			return err
		}},
	}
	for _, tt := range tests {
		err := tt.call()
		var storeErr *chronos.StoreError
		if !errors.As(err, &storeErr) {
			t.Errorf("%s on a closed engine = %v, want a *chronos.StoreError", tt.op, err)
			continue
		}
		if storeErr.Op != tt.op {
			t.Errorf("%s on a closed engine: Op = %q, want %q", tt.op, storeErr.Op, tt.op)
		}
		for _, target := range taxonomy {
			if errors.Is(err, target) {
				t.Errorf("%s on a closed engine = %v, must not match %v", tt.op, err, target)
			}
		}
	}
}
