/*
Package enginetest provides a suite of tests designed to assess chronos storage
engines (e.g. in-memory, sqlite, neo4j).

The tests operate on the specific engine through a [chronos.Store], so they
check both the functional correctness of the engine and its compliance with the
behaviours the store relies upon: the error taxonomy, atomic commands, creation
ordering, and the lookups used by state resolution.

Call enginetest.Run in its own test to invoke the test-suite:

	func TestEngine(t *testing.T) {
		engine := memengine.New()
		enginetest.Run(t, engine)
	}

The engine must be empty. The test cases in this suite focus on store-level
scenarios:

  - Bootstrapping projects and building entity hierarchies.
  - Recording facts, out of order, and rejecting invalid ones.
  - Resolving states across canonical and divergent spacetimes.

So, specific engines are encouraged to perform additional tests which are
specific to the underlying storage (e.g. reloading a database file).
*/
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chronos-atlas/chronos"
)

type testCase struct {
	// Subtest name.
	name string
	// A path leading to the test-case's file and line in the source code.
	location string
	// run executes the case against the shared world. It reports problems on t;
	// any problem stops the suite since later cases build on earlier ones.
	run func(ctx context.Context, t *testing.T, w *world)
}

const otherProject = chronos.ProjectID("enginetest-other")

var cases = []testCase{
	{
		name:     "bootstrap-fresh-project",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			b, err := w.store.BootstrapProject(ctx, w.project, "Cosmos")
			if err != nil {
				t.Fatalf("BootstrapProject failed: %v", err)
			}
			if !b.Universe.IsRoot() || b.Universe.Type != chronos.TypeUniverse || b.Universe.Project != w.project {
				t.Errorf("BootstrapProject universe = %+v, want a root universe of %v", b.Universe, w.project)
			}
			if !b.Canon.IsCanonical() || b.Canon.BranchTime != 0 || b.Canon.Name != chronos.CanonName {
				t.Errorf("BootstrapProject canon = %+v, want a canonical spacetime at tick 0", b.Canon)
			}
			if b.Canon.Parent != b.Universe.ID || b.Canon.Type != chronos.TypeSpacetime {
				t.Errorf("BootstrapProject canon entity = %+v, want a spacetime under the universe", b.Canon.Entity)
			}
			w.remember("universe", b.Universe.ID)
			w.remember("canon", b.Canon.ID)

			name, ok, err := w.store.Name(ctx, b.Universe.ID, b.Canon.ID, 0)
			if err != nil || !ok || name != "Cosmos" {
				t.Errorf("Name(universe, canon, 0) = %q, %v, %v; want %q", name, ok, err, "Cosmos")
			}
		},
	},
	{
		name:     "bootstrap-is-idempotent",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			before := countEntities(ctx, t, w)
			b, err := w.store.BootstrapProject(ctx, w.project, "Another Name")
			if err != nil {
				t.Fatalf("BootstrapProject failed: %v", err)
			}
			if b.Universe.ID != w.id("universe") || b.Canon.ID != w.id("canon") {
				t.Errorf("BootstrapProject = (%v, %v), want the existing (%v, %v)", b.Universe.ID, b.Canon.ID, w.id("universe"), w.id("canon"))
			}
			if after := countEntities(ctx, t, w); after != before {
				t.Errorf("len(Entities) = %v after a second bootstrap, want %v", after, before)
			}
			facts, err := w.store.RawFacts(ctx, w.id("universe"), w.id("canon"))
			if err != nil {
				t.Fatalf("RawFacts failed: %v", err)
			}
			if len(facts) != 1 {
				t.Errorf("len(RawFacts(universe, canon)) = %v, want 1", len(facts))
			}
		},
	},
	{
		name:     "bootstrap-other-project",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			b, err := w.store.BootstrapProject(ctx, otherProject, "")
			if err != nil {
				t.Fatalf("BootstrapProject(%v) failed: %v", otherProject, err)
			}
			if b.Universe.ID == w.id("universe") {
				t.Errorf("projects share their root universe")
			}
			w.remember("other-universe", b.Universe.ID)
			w.remember("other-canon", b.Canon.ID)

			name, _, err := w.store.Name(ctx, b.Universe.ID, b.Canon.ID, 0)
			if err != nil || name != chronos.DefaultProjectName {
				t.Errorf("Name(other universe) = %q, %v; want %q", name, err, chronos.DefaultProjectName)
			}
		},
	},
	{
		name:     "registry-rejects-invalid-entities",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			before := countEntities(ctx, t, w)

			_, err := w.store.CreateEntity(ctx, w.project, chronos.TypeUniverse, chronos.EntityID{})
			wantErr(t, "CreateEntity(second root)", err, chronos.ErrConstraintViolation)

			_, err = w.store.CreateEntity(ctx, "enginetest-rootless", chronos.TypePlanet, chronos.EntityID{})
			wantErr(t, "CreateEntity(root planet)", err, chronos.ErrConstraintViolation)

			_, err = w.store.CreateEntity(ctx, w.project, chronos.TypePlanet, chronos.NewEntityID())
			wantErr(t, "CreateEntity(unknown parent)", err, chronos.ErrNotFound)

			_, err = w.store.CreateEntity(ctx, w.project, chronos.TypeSpacetime, w.id("universe"))
			wantErr(t, "CreateEntity(spacetime)", err, chronos.ErrConstraintViolation)

			_, err = w.store.CreateEntity(ctx, w.project, chronos.EntityType("moon"), w.id("universe"))
			wantErr(t, "CreateEntity(unknown type)", err, chronos.ErrConstraintViolation)

			_, err = w.store.CreateEntity(ctx, otherProject, chronos.TypeGalaxy, w.id("universe"))
			wantErr(t, "CreateEntity(cross-project parent)", err, chronos.ErrConstraintViolation)

			if after := countEntities(ctx, t, w); after != before {
				t.Errorf("len(Entities) = %v after rejected commands, want %v", after, before)
			}
		},
	},
	{
		name:     "build-hierarchy",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			galaxy := create(ctx, t, w, "galaxy", chronos.TypeGalaxy, "universe")
			system := create(ctx, t, w, "system", chronos.TypeSystem, "galaxy")
			create(ctx, t, w, "earth", chronos.TypePlanet, "system")
			create(ctx, t, w, "ada", chronos.TypeCharacter, "earth")
			create(ctx, t, w, "sword", chronos.TypeItem, "ada")
			create(ctx, t, w, "gravity", chronos.TypeRule, "universe")

			if galaxy.Parent != w.id("universe") || system.Parent != galaxy.ID {
				t.Errorf("CreateEntity parents = (%v, %v), want (%v, %v)", galaxy.Parent, system.Parent, w.id("universe"), galaxy.ID)
			}
			if system.Seq <= galaxy.Seq {
				t.Errorf("CreateEntity Seq = %v after %v, want increasing", system.Seq, galaxy.Seq)
			}

			children, err := w.store.Children(ctx, w.id("universe"))
			if err != nil {
				t.Fatalf("Children(universe) failed: %v", err)
			}
			want := []chronos.EntityID{w.id("canon"), w.id("galaxy"), w.id("gravity")}
			if diff := cmp.Diff(want, entityIDs(children)); diff != "" {
				t.Errorf("Children(universe) mismatch (-want +got):\n%s", diff)
			}

			children, err = w.store.Children(ctx, w.id("earth"))
			if err != nil {
				t.Fatalf("Children(earth) failed: %v", err)
			}
			if diff := cmp.Diff([]chronos.EntityID{w.id("ada")}, entityIDs(children)); diff != "" {
				t.Errorf("Children(earth) mismatch (-want +got):\n%s", diff)
			}

			children, err = w.store.Children(ctx, w.id("sword"))
			if err != nil || len(children) != 0 {
				t.Errorf("Children(sword) = %v, %v; want none", children, err)
			}

			_, err = w.store.Children(ctx, chronos.NewEntityID())
			wantErr(t, "Children(unknown)", err, chronos.ErrNotFound)
		},
	},
	{
		name:     "entities-in-creation-order",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			entities, err := w.store.Entities(ctx, w.project)
			if err != nil {
				t.Fatalf("Entities failed: %v", err)
			}
			want := []chronos.EntityID{
				w.id("universe"), w.id("canon"), w.id("galaxy"), w.id("system"),
				w.id("earth"), w.id("ada"), w.id("sword"), w.id("gravity"),
			}
			if diff := cmp.Diff(want, entityIDs(entities)); diff != "" {
				t.Errorf("Entities mismatch (-want +got):\n%s", diff)
			}
			for i := 1; i < len(entities); i++ {
				if entities[i].Seq <= entities[i-1].Seq {
					t.Errorf("Entities[%d].Seq = %v after %v, want increasing", i, entities[i].Seq, entities[i-1].Seq)
				}
			}

			got, err := w.store.Entity(ctx, w.id("earth"))
			if err != nil {
				t.Fatalf("Entity(earth) failed: %v", err)
			}
			if diff := cmp.Diff(entities[4], got); diff != "" {
				t.Errorf("Entity(earth) mismatch (-want +got):\n%s", diff)
			}
			_, err = w.store.Entity(ctx, chronos.NewEntityID())
			wantErr(t, "Entity(unknown)", err, chronos.ErrNotFound)
		},
	},
	{
		name:     "parent-chains-end-at-the-root",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			entities, err := w.store.Entities(ctx, w.project)
			if err != nil {
				t.Fatalf("Entities failed: %v", err)
			}
			var roots int
			for _, e := range entities {
				if e.IsRoot() {
					roots++
				}
				cur := e
				for steps := 0; !cur.IsRoot(); steps++ {
					if steps > len(entities) {
						t.Fatalf("parent chain of %v does not terminate", e.ID)
					}
					cur, err = w.store.Entity(ctx, cur.Parent)
					if err != nil {
						t.Fatalf("Entity(parent of %v) failed: %v", e.ID, err)
					}
					if cur.Project != w.project {
						t.Errorf("parent %v of %v belongs to %v", cur.ID, e.ID, cur.Project)
					}
				}
				if cur.ID != w.id("universe") {
					t.Errorf("parent chain of %v ends at %v, want the root universe", e.ID, cur.ID)
				}
			}
			if roots != 1 {
				t.Errorf("project has %d roots, want exactly 1", roots)
			}
		},
	},
	{
		name:     "record-facts-out-of-order",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			record(ctx, t, w, "earth", "canon", "population", chronos.Number(50), 50)
			record(ctx, t, w, "earth", "canon", "name", chronos.String("Earth"), 0)
			f := record(ctx, t, w, "earth", "canon", "population", chronos.Number(10), 10)

			want := chronos.ComputeFactID(w.id("earth"), w.id("canon"), "population", 10)
			if f.ID != want {
				t.Errorf("RecordFact ID = %v, want %v", f.ID, want)
			}

			facts, err := w.store.RawFacts(ctx, w.id("earth"), w.id("canon"))
			if err != nil {
				t.Fatalf("RawFacts failed: %v", err)
			}
			type row struct {
				Attribute string
				Value     chronos.Value
				ValidFrom chronos.Tick
			}
			var got []row
			for _, f := range facts {
				got = append(got, row{f.Attribute, f.Value, f.ValidFrom})
			}
			wantRows := []row{
				{"name", chronos.String("Earth"), 0},
				{"population", chronos.Number(10), 10},
				{"population", chronos.Number(50), 50},
			}
			if diff := cmp.Diff(wantRows, got); diff != "" {
				t.Errorf("RawFacts(earth, canon) mismatch (-want +got):\n%s", diff)
			}
		},
	},
	{
		name:     "fact-log-rejects-invalid-facts",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			earth, canon := w.id("earth"), w.id("canon")

			_, err := w.store.RecordFact(ctx, earth, canon, "population", chronos.Number(7), 10)
			wantErr(t, "RecordFact(duplicate key)", err, chronos.ErrConstraintViolation)

			_, err = w.store.RecordFact(ctx, earth, canon, "", chronos.String("x"), 0)
			wantErr(t, "RecordFact(empty attribute)", err, chronos.ErrInvalidValue)
			_, err = w.store.RecordFact(ctx, earth, canon, "mass", nil, 0)
			wantErr(t, "RecordFact(nil value)", err, chronos.ErrInvalidValue)
			_, err = w.store.RecordFact(ctx, earth, canon, "mass", chronos.Number(math.NaN()), 0)
			wantErr(t, "RecordFact(NaN)", err, chronos.ErrInvalidValue)
			_, err = w.store.RecordFact(ctx, earth, canon, "mass", chronos.Number(math.Inf(1)), 0)
			wantErr(t, "RecordFact(+Inf)", err, chronos.ErrInvalidValue)
			_, err = w.store.RecordFact(ctx, earth, canon, "moon", chronos.Ref{}, 0)
			wantErr(t, "RecordFact(zero reference)", err, chronos.ErrInvalidValue)

			_, err = w.store.RecordFact(ctx, earth, canon, "moon", chronos.Ref(chronos.NewEntityID()), 0)
			wantErr(t, "RecordFact(dangling reference)", err, chronos.ErrNotFound)
			_, err = w.store.RecordFact(ctx, chronos.NewEntityID(), canon, "mass", chronos.Number(1), 0)
			wantErr(t, "RecordFact(unknown entity)", err, chronos.ErrNotFound)
			_, err = w.store.RecordFact(ctx, earth, chronos.NewEntityID(), "mass", chronos.Number(1), 0)
			wantErr(t, "RecordFact(unknown spacetime)", err, chronos.ErrNotFound)
			_, err = w.store.RecordFact(ctx, earth, w.id("galaxy"), "mass", chronos.Number(1), 0)
			wantErr(t, "RecordFact(entity as spacetime)", err, chronos.ErrNotFound)

			_, err = w.store.RecordFact(ctx, earth, w.id("other-canon"), "mass", chronos.Number(1), 0)
			wantErr(t, "RecordFact(cross-project spacetime)", err, chronos.ErrConstraintViolation)
			_, err = w.store.RecordFact(ctx, earth, canon, "twin", chronos.Ref(w.id("other-universe")), 0)
			wantErr(t, "RecordFact(cross-project reference)", err, chronos.ErrConstraintViolation)

			facts, err := w.store.RawFacts(ctx, earth, canon)
			if err != nil {
				t.Fatalf("RawFacts failed: %v", err)
			}
			if len(facts) != 3 {
				t.Errorf("len(RawFacts(earth, canon)) = %v after rejected facts, want 3", len(facts))
			}

			_, err = w.store.RawFacts(ctx, chronos.NewEntityID(), canon)
			wantErr(t, "RawFacts(unknown entity)", err, chronos.ErrNotFound)
		},
	},
	{
		name:     "references-resolve",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			record(ctx, t, w, "sword", "canon", "owner", chronos.Ref(w.id("ada")), 30)
			checkState(ctx, t, w, "sword", "canon", 30, chronos.State{
				"owner": chronos.Ref(w.id("ada")),
			})
		},
	},
	{
		name:     "resolve-canon",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			checkState(ctx, t, w, "earth", "canon", -1, chronos.State{})
			checkState(ctx, t, w, "earth", "canon", 5, chronos.State{
				"name": chronos.String("Earth"),
			})
			checkState(ctx, t, w, "earth", "canon", 10, chronos.State{
				"name":       chronos.String("Earth"),
				"population": chronos.Number(10),
			})
			checkState(ctx, t, w, "earth", "canon", 49, chronos.State{
				"name":       chronos.String("Earth"),
				"population": chronos.Number(10),
			})
			checkState(ctx, t, w, "earth", "canon", 1000, chronos.State{
				"name":       chronos.String("Earth"),
				"population": chronos.Number(50),
			})
			checkState(ctx, t, w, "galaxy", "canon", 1000, chronos.State{})

			_, err := w.store.State(ctx, chronos.NewEntityID(), w.id("canon"), 0)
			wantErr(t, "State(unknown entity)", err, chronos.ErrNotFound)
			_, err = w.store.State(ctx, w.id("earth"), chronos.NewEntityID(), 0)
			wantErr(t, "State(unknown spacetime)", err, chronos.ErrNotFound)
		},
	},
	{
		name:     "earth-becomes-new-earth",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			record(ctx, t, w, "earth", "canon", "name", chronos.String("New Earth"), 100)

			checkState(ctx, t, w, "earth", "canon", 50, chronos.State{
				"name":       chronos.String("Earth"),
				"population": chronos.Number(50),
			})
			checkState(ctx, t, w, "earth", "canon", 100, chronos.State{
				"name":       chronos.String("New Earth"),
				"population": chronos.Number(50),
			})
			checkState(ctx, t, w, "earth", "canon", 150, chronos.State{
				"name":       chronos.String("New Earth"),
				"population": chronos.Number(50),
			})
		},
	},
	{
		name:     "what-if-branch",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			record(ctx, t, w, "earth", "canon", "climate", chronos.String("temperate"), 75)
			record(ctx, t, w, "earth", "canon", "climate", chronos.String("frozen"), 76)
			record(ctx, t, w, "earth", "canon", "moons", chronos.Number(1), 70)
			record(ctx, t, w, "earth", "canon", "moons", chronos.Number(2), 100)

			whatIf := branch(ctx, t, w, "what-if", "canon", 75)
			if whatIf.IsCanonical() || whatIf.ParentSpacetime != w.id("canon") || whatIf.Parent != w.id("universe") {
				t.Errorf("CreateSpacetime = %+v, want a divergent spacetime of canon under the universe", whatIf)
			}
			divergent, err := w.store.IsDivergent(ctx, whatIf.ID)
			if err != nil || !divergent {
				t.Errorf("IsDivergent(what-if) = %v, %v; want true", divergent, err)
			}
			divergent, err = w.store.IsDivergent(ctx, w.id("canon"))
			if err != nil || divergent {
				t.Errorf("IsDivergent(canon) = %v, %v; want false", divergent, err)
			}

			record(ctx, t, w, "earth", "what-if", "name", chronos.String("Ruined Earth"), 80)

			// History up to and including the branch time is inherited.
			checkState(ctx, t, w, "earth", "what-if", 50, chronos.State{
				"name":       chronos.String("Earth"),
				"population": chronos.Number(50),
			})
			checkState(ctx, t, w, "earth", "what-if", 75, chronos.State{
				"name":       chronos.String("Earth"),
				"population": chronos.Number(50),
				"climate":    chronos.String("temperate"),
				"moons":      chronos.Number(1),
			})
			// Facts of the parent after the branch time are not.
			checkState(ctx, t, w, "earth", "what-if", 200, chronos.State{
				"name":       chronos.String("Ruined Earth"),
				"population": chronos.Number(50),
				"climate":    chronos.String("temperate"),
				"moons":      chronos.Number(1),
			})
			// And the parent never sees the branch.
			checkState(ctx, t, w, "earth", "canon", 200, chronos.State{
				"name":       chronos.String("New Earth"),
				"population": chronos.Number(50),
				"climate":    chronos.String("frozen"),
				"moons":      chronos.Number(2),
			})

			facts, err := w.store.RawFacts(ctx, w.id("earth"), whatIf.ID)
			if err != nil {
				t.Fatalf("RawFacts(earth, what-if) failed: %v", err)
			}
			if len(facts) != 1 || facts[0].Value != chronos.String("Ruined Earth") {
				t.Errorf("RawFacts(earth, what-if) = %v, want only its own fact", facts)
			}
		},
	},
	{
		name:     "nested-branches",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			branch(ctx, t, w, "deeper", "what-if", 120)
			branch(ctx, t, w, "shallow", "what-if", 60)

			check := func(name string, want []chronos.Tick) {
				chain, err := w.store.AncestryChain(ctx, w.id(name))
				if err != nil {
					t.Errorf("AncestryChain(%v) failed: %v", name, err)
					return
				}
				got := make([]chronos.Tick, len(chain))
				for i, link := range chain {
					got[i] = link.Horizon
				}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("AncestryChain(%v) horizons mismatch (-want +got):\n%s", name, diff)
				}
				if last := chain[len(chain)-1].Spacetime; last.ID != w.id("canon") {
					t.Errorf("AncestryChain(%v) ends at %v, want canon", name, last.ID)
				}
			}
			check("canon", []chronos.Tick{chronos.Forever})
			check("what-if", []chronos.Tick{chronos.Forever, 75})
			check("deeper", []chronos.Tick{chronos.Forever, 120, 75})
			check("shallow", []chronos.Tick{chronos.Forever, 60, 75})

			checkState(ctx, t, w, "earth", "deeper", 200, chronos.State{
				"name":       chronos.String("Ruined Earth"),
				"population": chronos.Number(50),
				"climate":    chronos.String("temperate"),
				"moons":      chronos.Number(1),
			})
			// Every ancestor is cut at the branch point of the link immediately
			// below it: what-if at 60 hides "Ruined Earth", while canon stays
			// visible up to 75, where what-if forked from it.
			checkState(ctx, t, w, "earth", "shallow", 200, chronos.State{
				"name":       chronos.String("Earth"),
				"population": chronos.Number(50),
				"climate":    chronos.String("temperate"),
				"moons":      chronos.Number(1),
			})

			_, err := w.store.AncestryChain(ctx, chronos.NewEntityID())
			wantErr(t, "AncestryChain(unknown)", err, chronos.ErrNotFound)
		},
	},
	{
		name:     "spacetime-tree-rejects-invalid-branches",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			before := countEntities(ctx, t, w)

			_, err := w.store.CreateSpacetime(ctx, w.project, "Negative", w.id("canon"), -1)
			wantErr(t, "CreateSpacetime(negative branch time)", err, chronos.ErrConstraintViolation)
			_, err = w.store.CreateSpacetime(ctx, w.project, "Second Canon", chronos.EntityID{}, 0)
			wantErr(t, "CreateSpacetime(second canon)", err, chronos.ErrConstraintViolation)
			_, err = w.store.CreateSpacetime(ctx, w.project, "Orphan", chronos.NewEntityID(), 10)
			wantErr(t, "CreateSpacetime(unknown parent)", err, chronos.ErrNotFound)
			_, err = w.store.CreateSpacetime(ctx, w.project, "Planet", w.id("earth"), 10)
			wantErr(t, "CreateSpacetime(entity as parent)", err, chronos.ErrNotFound)
			_, err = w.store.CreateSpacetime(ctx, w.project, "Foreign", w.id("other-canon"), 10)
			wantErr(t, "CreateSpacetime(cross-project parent)", err, chronos.ErrConstraintViolation)
			_, err = w.store.CreateSpacetime(ctx, "enginetest-rootless", "Canon", chronos.EntityID{}, 0)
			wantErr(t, "CreateSpacetime(rootless project)", err, chronos.ErrNotFound)

			if after := countEntities(ctx, t, w); after != before {
				t.Errorf("len(Entities) = %v after rejected commands, want %v", after, before)
			}
		},
	},
	{
		name:     "ancestry-walk-is-bounded",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			bounded := chronos.New(w.engine, chronos.WithMaxAncestryDepth(2))

			_, err := bounded.AncestryChain(ctx, w.id("deeper"))
			wantErr(t, "AncestryChain(deeper than the bound)", err, chronos.ErrCycleDetected)
			_, err = bounded.State(ctx, w.id("earth"), w.id("deeper"), 0)
			wantErr(t, "State(deeper than the bound)", err, chronos.ErrCycleDetected)
			_, err = bounded.CreateSpacetime(ctx, w.project, "Too Deep", w.id("what-if"), 100)
			wantErr(t, "CreateSpacetime(deeper than the bound)", err, chronos.ErrConstraintViolation, chronos.ErrCycleDetected)

			if _, err := bounded.AncestryChain(ctx, w.id("what-if")); err != nil {
				t.Errorf("AncestryChain(what-if) within the bound failed: %v", err)
			}
		},
	},
	{
		name:     "spacetime-listings",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			spacetimes, err := w.store.Spacetimes(ctx, w.project)
			if err != nil {
				t.Fatalf("Spacetimes failed: %v", err)
			}
			want := []chronos.EntityID{w.id("canon"), w.id("what-if"), w.id("deeper"), w.id("shallow")}
			if diff := cmp.Diff(want, spacetimeIDs(spacetimes)); diff != "" {
				t.Errorf("Spacetimes mismatch (-want +got):\n%s", diff)
			}

			canon, err := w.store.Canon(ctx, w.project)
			if err != nil {
				t.Fatalf("Canon failed: %v", err)
			}
			if diff := cmp.Diff(spacetimes[0], canon); diff != "" {
				t.Errorf("Canon mismatch (-want +got):\n%s", diff)
			}
			st, err := w.store.Spacetime(ctx, w.id("deeper"))
			if err != nil {
				t.Fatalf("Spacetime(deeper) failed: %v", err)
			}
			if st.Name != "deeper" || st.BranchTime != 120 || st.ParentSpacetime != w.id("what-if") {
				t.Errorf("Spacetime(deeper) = %+v", st)
			}

			_, err = w.store.Canon(ctx, "enginetest-rootless")
			wantErr(t, "Canon(rootless project)", err, chronos.ErrNotFound)
			_, err = w.store.Spacetime(ctx, w.id("earth"))
			wantErr(t, "Spacetime(planet)", err, chronos.ErrNotFound)
		},
	},
	{
		name:     "entity-status",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			record(ctx, t, w, "ada", "canon", chronos.AttrBirthTick, chronos.Number(20), 0)
			record(ctx, t, w, "ada", "canon", chronos.AttrDeathTick, chronos.Number(90), 0)
			record(ctx, t, w, "ada", "what-if", chronos.AttrStatus, chronos.String("alive"), 76)

			checkStatus(ctx, t, w, "ada", "canon", 10, chronos.StatusUnborn)
			checkStatus(ctx, t, w, "ada", "canon", 50, chronos.StatusAlive)
			checkStatus(ctx, t, w, "ada", "canon", 90, chronos.StatusDead)
			checkStatus(ctx, t, w, "ada", "what-if", 95, chronos.StatusAlive)

			if _, err := w.store.RetireEntity(ctx, w.id("ada"), w.id("canon"), 200); err != nil {
				t.Fatalf("RetireEntity failed: %v", err)
			}
			checkStatus(ctx, t, w, "ada", "canon", 150, chronos.StatusDead)
			checkStatus(ctx, t, w, "ada", "canon", 200, chronos.StatusRetired)
			checkStatus(ctx, t, w, "ada", "what-if", 300, chronos.StatusAlive)

			// Retired entities are never deleted.
			if _, err := w.store.Entity(ctx, w.id("ada")); err != nil {
				t.Errorf("Entity(retired) failed: %v", err)
			}
		},
	},
	{
		name:     "bulk-states",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			got, err := w.store.States(ctx, []chronos.EntityID{w.id("earth"), w.id("universe"), w.id("galaxy")}, w.id("canon"), 150)
			if err != nil {
				t.Fatalf("States failed: %v", err)
			}
			want := map[chronos.EntityID]chronos.State{
				w.id("earth"): {
					"name":       chronos.String("New Earth"),
					"population": chronos.Number(50),
					"climate":    chronos.String("frozen"),
					"moons":      chronos.Number(2),
				},
				w.id("universe"): {"name": chronos.String("Cosmos")},
				w.id("galaxy"):   {},
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("States mismatch (-want +got):\n%s", diff)
			}

			_, err = w.store.States(ctx, []chronos.EntityID{w.id("earth"), chronos.NewEntityID()}, w.id("canon"), 150)
			wantErr(t, "States(unknown entity)", err, chronos.ErrNotFound)
		},
	},
	{
		name:     "resolution-is-pure",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			entities := countEntities(ctx, t, w)
			facts, err := w.store.RawFacts(ctx, w.id("earth"), w.id("what-if"))
			if err != nil {
				t.Fatalf("RawFacts failed: %v", err)
			}

			first, err := w.store.State(ctx, w.id("earth"), w.id("deeper"), 130)
			if err != nil {
				t.Fatalf("State failed: %v", err)
			}
			second, err := w.store.State(ctx, w.id("earth"), w.id("deeper"), 130)
			if err != nil {
				t.Fatalf("State failed: %v", err)
			}
			if diff := cmp.Diff(first, second); diff != "" {
				t.Errorf("State is not repeatable (-first +second):\n%s", diff)
			}

			if after := countEntities(ctx, t, w); after != entities {
				t.Errorf("len(Entities) = %v after resolutions, want %v", after, entities)
			}
			after, err := w.store.RawFacts(ctx, w.id("earth"), w.id("what-if"))
			if err != nil {
				t.Fatalf("RawFacts failed: %v", err)
			}
			if diff := cmp.Diff(facts, after); diff != "" {
				t.Errorf("RawFacts changed by resolutions (-before +after):\n%s", diff)
			}
		},
	},
	{
		name:     "resolution-is-monotonic",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			// Facts are never retracted, so an attribute that is present at some
			// tick stays present at every later tick.
			for _, spacetime := range []string{"canon", "what-if", "deeper", "shallow"} {
				present := make(map[string]chronos.Tick)
				for at := chronos.Tick(-10); at <= 250; at += 5 {
					state, err := w.store.State(ctx, w.id("earth"), w.id(spacetime), at)
					if err != nil {
						t.Fatalf("State(earth, %v, %v) failed: %v", spacetime, at, err)
					}
					for attr, since := range present {
						if _, ok := state[attr]; !ok {
							t.Errorf("State(earth, %v, %v) lost %q, present since %v", spacetime, at, attr, since)
						}
					}
					for attr := range state {
						if _, ok := present[attr]; !ok {
							present[attr] = at
						}
					}
				}
			}
		},
	},
	{
		name:     "failed-commands-leave-no-trace",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			errBoom := errors.New("boom")
			var inserted chronos.Entity
			err := w.engine.Apply(ctx, func(ctx context.Context, tx chronos.Tx) error {
				var err error
				inserted, err = tx.InsertEntity(ctx, chronos.Entity{
					ID:      chronos.NewEntityID(),
					Project: w.project,
					Type:    chronos.TypeRegion,
					Parent:  w.id("earth"),
				})
				if err != nil {
					return err
				}
				if _, err := tx.Entity(ctx, inserted.ID); err != nil {
					return fmt.Errorf("read own write: %w", err)
				}
				err = tx.InsertFact(ctx, chronos.Fact{
					ID:        chronos.ComputeFactID(inserted.ID, w.id("canon"), "name", 0),
					Entity:    inserted.ID,
					Spacetime: w.id("canon"),
					Attribute: "name",
					Value:     chronos.String("Atlantis"),
				})
				if err != nil {
					return err
				}
				return errBoom
			})
			if !errors.Is(err, errBoom) {
				t.Fatalf("Apply(failing command) = %v, want %v", err, errBoom)
			}

			_, err = w.store.Entity(ctx, inserted.ID)
			wantErr(t, "Entity(rolled back)", err, chronos.ErrNotFound)
			children, err := w.store.Children(ctx, w.id("earth"))
			if err != nil {
				t.Fatalf("Children(earth) failed: %v", err)
			}
			if diff := cmp.Diff([]chronos.EntityID{w.id("ada")}, entityIDs(children)); diff != "" {
				t.Errorf("Children(earth) after rollback mismatch (-want +got):\n%s", diff)
			}

			// A failed command must not consume its fact key either.
			err = w.engine.Apply(ctx, func(ctx context.Context, tx chronos.Tx) error {
				if err := tx.InsertFact(ctx, chronos.Fact{
					ID:        chronos.ComputeFactID(w.id("galaxy"), w.id("canon"), "name", 0),
					Entity:    w.id("galaxy"),
					Spacetime: w.id("canon"),
					Attribute: "name",
					Value:     chronos.String("Milky Way"),
				}); err != nil {
					return err
				}
				return errBoom
			})
			if !errors.Is(err, errBoom) {
				t.Fatalf("Apply(failing command) = %v, want %v", err, errBoom)
			}
			checkState(ctx, t, w, "galaxy", "canon", 0, chronos.State{})
			record(ctx, t, w, "galaxy", "canon", "name", chronos.String("Milky Way"), 0)
			checkState(ctx, t, w, "galaxy", "canon", 0, chronos.State{"name": chronos.String("Milky Way")})
		},
	},
	{
		name:     "a-second-root-is-rejected-by-the-engine",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			// The registry never asks for this, but the engine must hold the line
			// on its own.
			err := w.engine.Apply(ctx, func(ctx context.Context, tx chronos.Tx) error {
				_, err := tx.InsertEntity(ctx, chronos.Entity{
					ID:      chronos.NewEntityID(),
					Project: w.project,
					Type:    chronos.TypeUniverse,
				})
				return err
			})
			wantErr(t, "InsertEntity(second root)", err, chronos.ErrConstraintViolation)

			err = w.engine.Apply(ctx, func(ctx context.Context, tx chronos.Tx) error {
				_, err := tx.InsertSpacetime(ctx, chronos.Spacetime{
					Entity: chronos.Entity{
						ID:      chronos.NewEntityID(),
						Project: w.project,
						Type:    chronos.TypeSpacetime,
						Parent:  w.id("universe"),
					},
					Name: "Second Canon",
				})
				return err
			})
			wantErr(t, "InsertSpacetime(second canon)", err, chronos.ErrConstraintViolation)

			err = w.engine.Apply(ctx, func(ctx context.Context, tx chronos.Tx) error {
				_, err := tx.InsertEntity(ctx, chronos.Entity{
					ID:      w.id("earth"),
					Project: w.project,
					Type:    chronos.TypePlanet,
					Parent:  w.id("system"),
				})
				return err
			})
			wantErr(t, "InsertEntity(duplicate id)", err, chronos.ErrConstraintViolation)
		},
	},
	{
		name:     "ancestor-window-is-cut-by-the-link-below",
		location: locateSource(),
		run: func(ctx context.Context, t *testing.T, w *world) {
			create(ctx, t, w, "seven", chronos.TypePlanet, "system")
			record(ctx, t, w, "seven", "canon", "name", chronos.String("Earth"), 0)
			record(ctx, t, w, "seven", "canon", "name", chronos.String("Seven"), 7)
			// late forks from canon at 10, and early forks from late at 5. Canon
			// is cut at 10, not at the earlier branch point further down.
			branch(ctx, t, w, "late", "canon", 10)
			early := branch(ctx, t, w, "early", "late", 5)

			chain, err := w.store.AncestryChain(ctx, early.ID)
			if err != nil {
				t.Fatalf("AncestryChain(early) failed: %v", err)
			}
			type link struct {
				Spacetime chronos.EntityID
				Horizon   chronos.Tick
			}
			var got []link
			for _, a := range chain {
				got = append(got, link{a.Spacetime.ID, a.Horizon})
			}
			want := []link{
				{w.id("early"), chronos.Forever},
				{w.id("late"), 5},
				{w.id("canon"), 10},
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("AncestryChain(early) mismatch (-want +got):\n%s", diff)
			}

			checkState(ctx, t, w, "seven", "early", 20, chronos.State{"name": chronos.String("Seven")})
			checkState(ctx, t, w, "seven", "early", 7, chronos.State{"name": chronos.String("Seven")})
			checkState(ctx, t, w, "seven", "early", 6, chronos.State{"name": chronos.String("Earth")})
		},
	},
}

// Run runs the suite against the given engine, which must be empty. Run calls
// Store.Init first, so engines that need setup do not need it beforehand.
func Run(t *testing.T, engine chronos.Engine) {
	// We deliberately use the background context because this test-suite does not
	// check performance. Also, engine implementations should not depend on specific
	// context values.
	ctx := context.Background()

	w := &world{
		store:   chronos.New(engine),
		engine:  engine,
		project: "enginetest",
		ids:     make(map[string]chronos.EntityID),
	}
	if err := w.store.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	// All test-cases run in-order, on the same engine, because each case builds
	// on the entities and facts of the previous ones.
	//
	// That is, a test case cannot run if the previous case had failed.
	for _, c := range cases {
		// We encourage developers to read the source code directly, especially when
		// failures are not clear enough.
		t.Logf("Read the source for test-case %v at %v", c.name, c.location)
		c.run(ctx, t, w)
		if t.Failed() {
			t.Fatalf("Test-case %v failed; skipping the rest of the suite", c.name)
		}
	}
}

// Call this function to set the location of every test-case in the source file.
// The returned string is used to guide developers of storage engines to the
// appropriate test-case.
func locateSource() (path string) {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		panic("runtime.Caller failed")
	}
	return fmt.Sprintf("%v:%v", file, line)
}
