package chronos_test

import (
	"errors"
	"testing"

	"github.com/chronos-atlas/chronos"
	"github.com/chronos-atlas/chronos/memengine"
)

func TestNewPanicsWithoutEngine(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("New(nil) did not panic")
		}
	}()
	chronos.New(nil)
}

func TestMaxAncestryDepth(t *testing.T) {
	ctx := t.Context()
	store := chronos.New(memengine.New(), chronos.WithMaxAncestryDepth(3))
	b, err := store.BootstrapProject(ctx, "deep", "")
	if err != nil {
		t.Fatal("BootstrapProject failed:", err)
	}

	parent := b.Canon.ID
	for _, name := range []string{"first", "second"} {
		st, err := store.CreateSpacetime(ctx, "deep", name, parent, 0)
		if err != nil {
			t.Fatalf("CreateSpacetime(%s) failed: %v", name, err)
		}
		parent = st.ID
	}
	chain, err := store.AncestryChain(ctx, parent)
	if err != nil || len(chain) != 3 {
		t.Fatalf("AncestryChain() = (%d links, %v), want 3 links", len(chain), err)
	}

	_, err = store.CreateSpacetime(ctx, "deep", "third", parent, 0)
	if !errors.Is(err, chronos.ErrConstraintViolation) || !errors.Is(err, chronos.ErrCycleDetected) {
		t.Errorf("CreateSpacetime(too deep) = %v, want %v and %v", err, chronos.ErrConstraintViolation, chronos.ErrCycleDetected)
	}
}

func TestOptionsIgnoreNonPositiveValues(t *testing.T) {
	ctx := t.Context()
	store := chronos.New(memengine.New(),
		chronos.WithMaxAncestryDepth(0),
		chronos.WithResolveConcurrency(-1),
	)
	b, err := store.BootstrapProject(ctx, "opts", "")
	if err != nil {
		t.Fatal("BootstrapProject failed:", err)
	}
	// A depth of zero would fail every resolution.
	states, err := store.States(ctx, []chronos.EntityID{b.Universe.ID, b.Canon.ID}, b.Canon.ID, 0)
	if err != nil {
		t.Fatal("States failed:", err)
	}
	if got := states[b.Universe.ID][chronos.AttrName]; got != chronos.String(chronos.DefaultProjectName) {
		t.Errorf("name of universe = %v, want %q", got, chronos.DefaultProjectName)
	}
}
