package enginetest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chronos-atlas/chronos"
)

// world carries the store under test and the identifiers created by previous
// test-cases, by a name of the case's choosing (e.g. "earth").
type world struct {
	store   *chronos.Store
	engine  chronos.Engine
	project chronos.ProjectID
	ids     map[string]chronos.EntityID
}

// id returns a previously remembered identifier; it is a bug in the suite to
// ask for one that was never remembered.
func (w *world) id(name string) chronos.EntityID {
	id, ok := w.ids[name]
	if !ok {
		panic("enginetest: no entity remembered as " + name)
	}
	return id
}

func (w *world) remember(name string, id chronos.EntityID) {
	w.ids[name] = id
}

// wantErr reports a problem unless err matches every target.
func wantErr(t *testing.T, what string, err error, targets ...error) {
	t.Helper()
	if err == nil {
		t.Errorf("%v succeeded, want error matching %v", what, targets)
		return
	}
	for _, target := range targets {
		if !errors.Is(err, target) {
			t.Errorf("%v = %v, want error matching %v", what, err, target)
		}
	}
}

// create registers an entity or fails the test-case.
func create(ctx context.Context, t *testing.T, w *world, name string, typ chronos.EntityType, parent string) chronos.Entity {
	t.Helper()
	e, err := w.store.CreateEntity(ctx, w.project, typ, w.id(parent))
	if err != nil {
		t.Fatalf("CreateEntity(%v under %v) failed: %v", name, parent, err)
	}
	w.remember(name, e.ID)
	return e
}

// record appends a fact or fails the test-case.
func record(ctx context.Context, t *testing.T, w *world, entity, spacetime, attr string, v chronos.Value, validFrom chronos.Tick) chronos.Fact {
	t.Helper()
	f, err := w.store.RecordFact(ctx, w.id(entity), w.id(spacetime), attr, v, validFrom)
	if err != nil {
		t.Fatalf("RecordFact(%v.%v = %v @%v in %v) failed: %v", entity, attr, v, validFrom, spacetime, err)
	}
	return f
}

// branch creates a divergent spacetime or fails the test-case.
func branch(ctx context.Context, t *testing.T, w *world, name, parent string, at chronos.Tick) chronos.Spacetime {
	t.Helper()
	st, err := w.store.CreateSpacetime(ctx, w.project, name, w.id(parent), at)
	if err != nil {
		t.Fatalf("CreateSpacetime(%v from %v @%v) failed: %v", name, parent, at, err)
	}
	w.remember(name, st.ID)
	return st
}

// checkState compares the resolved state of an entity with the expected one.
func checkState(ctx context.Context, t *testing.T, w *world, entity, spacetime string, at chronos.Tick, want chronos.State) {
	t.Helper()
	got, err := w.store.State(ctx, w.id(entity), w.id(spacetime), at)
	if err != nil {
		t.Errorf("State(%v, %v, %v) failed: %v", entity, spacetime, at, err)
		return
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("State(%v, %v, %v) mismatch (-want +got):\n%s", entity, spacetime, at, diff)
	}
}

// checkStatus compares the derived status of an entity with the expected one.
func checkStatus(ctx context.Context, t *testing.T, w *world, entity, spacetime string, at chronos.Tick, want chronos.Status) {
	t.Helper()
	got, err := w.store.Status(ctx, w.id(entity), w.id(spacetime), at)
	if err != nil {
		t.Errorf("Status(%v, %v, %v) failed: %v", entity, spacetime, at, err)
		return
	}
	if got != want {
		t.Errorf("Status(%v, %v, %v) = %v, want %v", entity, spacetime, at, got, want)
	}
}

// countEntities returns the number of entities of the project.
func countEntities(ctx context.Context, t *testing.T, w *world) int {
	t.Helper()
	entities, err := w.store.Entities(ctx, w.project)
	if err != nil {
		t.Fatalf("Entities(%v) failed: %v", w.project, err)
	}
	return len(entities)
}

// entityIDs projects entities onto their identifiers, for readable diffs.
func entityIDs(entities []chronos.Entity) []chronos.EntityID {
	out := make([]chronos.EntityID, len(entities))
	for i, e := range entities {
		out[i] = e.ID
	}
	return out
}

func spacetimeIDs(spacetimes []chronos.Spacetime) []chronos.EntityID {
	out := make([]chronos.EntityID, len(spacetimes))
	for i, st := range spacetimes {
		out[i] = st.ID
	}
	return out
}
