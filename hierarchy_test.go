package chronos

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// outline records the order of visits, with a closing ")" for every nil visit.
type outline struct {
	names map[EntityID]string
	trail *[]string
}

func (o outline) Visit(e *Entity) Visitor {
	if e == nil {
		*o.trail = append(*o.trail, ")")
		return nil
	}
	*o.trail = append(*o.trail, o.names[e.ID])
	return o
}

func testForest() (entities []Entity, names map[EntityID]string) {
	names = make(map[EntityID]string)
	add := func(name string, typ EntityType, parent EntityID) EntityID {
		id := NewEntityID()
		names[id] = name
		entities = append(entities, Entity{ID: id, Type: typ, Parent: parent, Seq: uint64(len(entities) + 1)})
		return id
	}
	universe := add("universe", TypeUniverse, EntityID{})
	add("canon", TypeSpacetime, universe)
	galaxy := add("galaxy", TypeGalaxy, universe)
	sol := add("sol", TypeSystem, galaxy)
	add("earth", TypePlanet, sol)
	add("mars", TypePlanet, sol)
	add("ruleset", TypeRule, universe)
	return entities, names
}

func TestWalk(t *testing.T) {
	entities, names := testForest()
	tree := NewTree(entities)
	if tree.Len() != len(entities) {
		t.Errorf("Len() = %d, want %d", tree.Len(), len(entities))
	}

	var trail []string
	Walk(outline{names: names, trail: &trail}, tree)
	want := "universe canon ) galaxy sol earth ) mars ) ) ) ruleset ) )"
	if got := strings.Join(trail, " "); got != want {
		t.Errorf("Walk() visited %q, want %q", got, want)
	}
}

func TestTreeOrphansBecomeRoots(t *testing.T) {
	entities, names := testForest()
	// Drop the universe: its children are orphaned.
	tree := NewTree(entities[1:])

	var got []string
	for _, root := range tree.Roots() {
		got = append(got, names[root.ID])
	}
	if diff := cmp.Diff([]string{"canon", "galaxy", "ruleset"}, got); diff != "" {
		t.Errorf("Roots() mismatch (-want +got):\n%s", diff)
	}
}

func TestTreeChildren(t *testing.T) {
	entities, names := testForest()
	tree := NewTree(entities)
	sol := entities[3].ID

	var got []string
	for _, child := range tree.Children(sol) {
		got = append(got, names[child.ID])
	}
	if diff := cmp.Diff([]string{"earth", "mars"}, got); diff != "" {
		t.Errorf("Children(sol) mismatch (-want +got):\n%s", diff)
	}
	if children := tree.Children(NewEntityID()); len(children) != 0 {
		t.Errorf("Children(unknown) = %v, want none", children)
	}
	if _, ok := tree.Entity(sol); !ok {
		t.Errorf("Entity(sol) not found")
	}
}

func TestInspectPrunes(t *testing.T) {
	entities, names := testForest()
	tree := NewTree(entities)

	var visited []string
	Inspect(tree, func(e *Entity) bool {
		if e == nil {
			return false
		}
		visited = append(visited, names[e.ID])
		return e.Type != TypeGalaxy
	})
	want := []string{"universe", "canon", "galaxy", "ruleset"}
	if diff := cmp.Diff(want, visited); diff != "" {
		t.Errorf("Inspect() visited mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkSubtree(t *testing.T) {
	entities, names := testForest()
	tree := NewTree(entities)

	var trail []string
	WalkSubtree(outline{names: names, trail: &trail}, tree, entities[2].ID)
	want := "galaxy sol earth ) mars ) ) )"
	if got := strings.Join(trail, " "); got != want {
		t.Errorf("WalkSubtree(galaxy) visited %q, want %q", got, want)
	}

	trail = nil
	WalkSubtree(outline{names: names, trail: &trail}, tree, NewEntityID())
	if len(trail) != 0 {
		t.Errorf("WalkSubtree(unknown) visited %q, want nothing", trail)
	}
}
