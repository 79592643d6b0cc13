package chronos

// Tree is an immutable view of an entity hierarchy, built once from a flat
// list. It answers "who are the children of X" from an index rather than by
// filtering the list on every level.
type Tree struct {
	roots    []EntityID
	nodes    map[EntityID]Entity
	children map[EntityID][]EntityID
}

// NewTree indexes the given entities, which should be in creation order (as
// returned by Store.Entities); children keep the relative order of the list.
//
// Entities whose parent is absent from the list (including the project root)
// become roots of the Tree, so a partial list still yields a forest.
func NewTree(entities []Entity) *Tree {
	t := &Tree{
		nodes:    make(map[EntityID]Entity, len(entities)),
		children: make(map[EntityID][]EntityID),
	}
	for _, e := range entities {
		t.nodes[e.ID] = e
	}
	for _, e := range entities {
		if _, ok := t.nodes[e.Parent]; ok && !e.Parent.IsZero() {
			t.children[e.Parent] = append(t.children[e.Parent], e.ID)
		} else {
			t.roots = append(t.roots, e.ID)
		}
	}
	return t
}

// Len returns the number of entities in the Tree.
func (t *Tree) Len() int { return len(t.nodes) }

// Entity looks up an entity of the Tree.
func (t *Tree) Entity(id EntityID) (Entity, bool) {
	e, ok := t.nodes[id]
	return e, ok
}

// Roots returns the top-level entities of the Tree.
func (t *Tree) Roots() []Entity {
	return t.collect(t.roots)
}

// Children returns the direct children of the given entity.
func (t *Tree) Children(id EntityID) []Entity {
	return t.collect(t.children[id])
}

func (t *Tree) collect(ids []EntityID) []Entity {
	entities := make([]Entity, len(ids))
	for i, id := range ids {
		entities[i] = t.nodes[id]
	}
	return entities
}

// A Visitor's Visit method is invoked for each entity encountered by Walk. If
// the result visitor w is not nil, Walk visits each child of the entity with
// the visitor w, followed by a call of w.Visit(nil).
type Visitor interface {
	Visit(e *Entity) (w Visitor)
}

// Walk traverses a Tree in depth-first order: It calls WalkSubtree for each of
// the roots of the tree; the tree must not be nil.
func Walk(v Visitor, t *Tree) {
	for _, root := range t.roots {
		WalkSubtree(v, t, root)
	}
}

// WalkSubtree traverses the subtree of the given entity in depth-first order:
// It starts by calling v.Visit with the entity. If the visitor w returned by
// v.Visit is not nil, WalkSubtree is invoked recursively with visitor w for each
// child of the entity, followed by a call of w.Visit(nil).
func WalkSubtree(v Visitor, t *Tree, id EntityID) {
	e, ok := t.nodes[id]
	if !ok {
		return
	}
	if v = v.Visit(&e); v == nil {
		return
	}
	for _, child := range t.children[id] {
		WalkSubtree(v, t, child)
	}
	v.Visit(nil)
}

type inspector func(e *Entity) bool

func (f inspector) Visit(e *Entity) Visitor {
	if f(e) {
		return f
	}
	return nil
}

// Inspect traverses a Tree in depth-first order: It starts by calling f for
// every root of the tree; the tree must not be nil. If f returns true, Inspect
// invokes f recursively for each child of the entity, followed by a call of
// f(nil).
func Inspect(t *Tree, f func(e *Entity) bool) {
	Walk(inspector(f), t)
}
