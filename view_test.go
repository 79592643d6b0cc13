package chronos_test

import (
	"maps"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chronos-atlas/chronos"
	"github.com/chronos-atlas/chronos/memengine"
)

func TestAttributeViewLoad(t *testing.T) {
	ctx := t.Context()
	store := chronos.New(memengine.New())
	b, err := store.BootstrapProject(ctx, "view", "Discworld")
	if err != nil {
		t.Fatal("BootstrapProject failed:", err)
	}
	turtle, err := store.CreateEntity(ctx, "view", chronos.TypeCharacter, b.Universe.ID)
	if err != nil {
		t.Fatal("CreateEntity failed:", err)
	}
	nameless, err := store.CreateEntity(ctx, "view", chronos.TypeItem, b.Universe.ID)
	if err != nil {
		t.Fatal("CreateEntity failed:", err)
	}
	if _, err := store.RecordFact(ctx, turtle.ID, b.Canon.ID, chronos.AttrName, chronos.String("A'Tuin"), 10); err != nil {
		t.Fatal("RecordFact failed:", err)
	}

	early := chronos.NewAttributeView(chronos.AttrName, b.Canon.ID, 5)
	if err := early.Load(ctx, store, "view"); err != nil {
		t.Fatal("Load failed:", err)
	}
	if _, ok := early.Find(turtle.ID); ok {
		t.Errorf("Find(turtle) at tick 5 found a name recorded at tick 10")
	}

	v := chronos.NewAttributeView(chronos.AttrName, b.Canon.ID, 10)
	if v.Attribute() != chronos.AttrName {
		t.Errorf("Attribute() = %q, want %q", v.Attribute(), chronos.AttrName)
	}
	if err := v.Load(ctx, store, "view"); err != nil {
		t.Fatal("Load failed:", err)
	}
	want := map[chronos.EntityID]chronos.Value{
		b.Universe.ID: chronos.String("Discworld"),
		turtle.ID:     chronos.String("A'Tuin"),
	}
	if diff := cmp.Diff(want, maps.Collect(v.All())); diff != "" {
		t.Errorf("All() mismatch (-want +got):\n%s", diff)
	}
	if v.Len() != len(want) {
		t.Errorf("Len() = %d, want %d", v.Len(), len(want))
	}
	if _, ok := v.Find(nameless.ID); ok {
		t.Errorf("Find(nameless) found a name")
	}
}

func TestAttributeViewObserve(t *testing.T) {
	ctx := t.Context()
	store := chronos.New(memengine.New())
	b, err := store.BootstrapProject(ctx, "view", "")
	if err != nil {
		t.Fatal("BootstrapProject failed:", err)
	}
	future, err := store.CreateSpacetime(ctx, "view", "Future", b.Canon.ID, 100)
	if err != nil {
		t.Fatal("CreateSpacetime failed:", err)
	}
	v := chronos.NewAttributeView(chronos.AttrStatus, future.ID, 200)

	observe := func(f chronos.Fact) {
		t.Helper()
		if err := v.Observe(ctx, store, chronos.Changed{Change: chronos.FactRecorded{Fact: f}, Project: "view"}); err != nil {
			t.Fatal("Observe failed:", err)
		}
	}
	record := func(spacetime chronos.EntityID, attr string, value chronos.Value, at chronos.Tick) chronos.Fact {
		t.Helper()
		f, err := store.RecordFact(ctx, b.Universe.ID, spacetime, attr, value, at)
		if err != nil {
			t.Fatal("RecordFact failed:", err)
		}
		return f
	}

	// A fact of another attribute changes nothing.
	observe(record(b.Canon.ID, "age", chronos.Number(1), 0))
	if v.Len() != 0 {
		t.Errorf("Observe(age) populated the view")
	}

	// Inherited from canon before the branch.
	observe(record(b.Canon.ID, chronos.AttrStatus, chronos.String("alive"), 50))
	if got, _ := v.Find(b.Universe.ID); got != chronos.String("alive") {
		t.Errorf("Find(universe) = %v, want alive", got)
	}

	// Canon after the branch is invisible from the future.
	observe(record(b.Canon.ID, chronos.AttrStatus, chronos.String("dead"), 150))
	if got, _ := v.Find(b.Universe.ID); got != chronos.String("alive") {
		t.Errorf("Find(universe) = %v, want alive", got)
	}

	// Shadowed by the future's own history.
	observe(record(future.ID, chronos.AttrStatus, chronos.String("dead"), 120))
	if got, _ := v.Find(b.Universe.ID); got != chronos.String("dead") {
		t.Errorf("Find(universe) = %v, want dead", got)
	}

	// Other kinds of changes are ignored.
	err = v.Observe(ctx, store, chronos.Changed{Change: chronos.SpacetimeCreated{Spacetime: future}})
	if err != nil || v.Len() != 1 {
		t.Errorf("Observe(SpacetimeCreated) = %v with %d values, want nil with 1", err, v.Len())
	}
}

func TestAttributeViewForeignViewpoint(t *testing.T) {
	ctx := t.Context()
	store := chronos.New(memengine.New())
	b, err := store.BootstrapProject(ctx, "view", "")
	if err != nil {
		t.Fatal("BootstrapProject failed:", err)
	}

	// The viewpoint spacetime does not exist in this store.
	v := chronos.NewAttributeView(chronos.AttrName, chronos.NewEntityID(), 0)
	f := chronos.Fact{Entity: b.Universe.ID, Spacetime: b.Canon.ID, Attribute: chronos.AttrName, Value: chronos.String("x")}
	if err := v.Observe(ctx, store, chronos.Changed{Change: chronos.FactRecorded{Fact: f}}); err != nil {
		t.Errorf("Observe(foreign viewpoint) = %v, want nil", err)
	}
	if err := v.Refresh(ctx, store, b.Universe.ID); err == nil {
		t.Errorf("Refresh(foreign viewpoint) succeeded, want error")
	}
}
