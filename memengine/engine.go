// Package memengine implements a volatile, in-process chronos.Engine.
//
// All data lives in maps guarded by a single sync.RWMutex: commands run under
// the write lock and queries under the read lock, so readers never observe a
// partial command. A failed command is rolled back from an undo log before the
// lock is released.
//
// The facts of every (entity, spacetime, attribute) key are kept sorted by
// ValidFrom, which makes Latest a binary search.
package memengine

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/chronos-atlas/chronos"
)

// Engine is an in-memory chronos.Engine. The zero value is not usable; call
// New.
type Engine struct {
	mu sync.RWMutex

	seq uint64

	entities map[chronos.EntityID]chronos.Entity
	// Creation-ordered indexes.
	projectEntities   map[chronos.ProjectID][]chronos.EntityID
	projectSpacetimes map[chronos.ProjectID][]chronos.EntityID
	children          map[chronos.EntityID][]chronos.EntityID

	roots map[chronos.ProjectID]chronos.EntityID
	canon map[chronos.ProjectID]chronos.EntityID

	spacetimes map[chronos.EntityID]chronos.Spacetime

	factIDs map[chronos.FactID]struct{}
	// Facts of a key, sorted by ValidFrom.
	facts map[factKey][]chronos.Fact
	// Attribute names of a (entity, spacetime) pair.
	attributes map[pairKey]map[string]struct{}
}

type pairKey struct {
	entity, spacetime chronos.EntityID
}

type factKey struct {
	pairKey
	attribute string
}

func keyOf(f chronos.Fact) factKey {
	return factKey{pairKey{f.Entity, f.Spacetime}, f.Attribute}
}

// New returns an empty Engine.
func New() *Engine {
	return &Engine{
		entities:          make(map[chronos.EntityID]chronos.Entity),
		projectEntities:   make(map[chronos.ProjectID][]chronos.EntityID),
		projectSpacetimes: make(map[chronos.ProjectID][]chronos.EntityID),
		children:          make(map[chronos.EntityID][]chronos.EntityID),
		roots:             make(map[chronos.ProjectID]chronos.EntityID),
		canon:             make(map[chronos.ProjectID]chronos.EntityID),
		spacetimes:        make(map[chronos.EntityID]chronos.Spacetime),
		factIDs:           make(map[chronos.FactID]struct{}),
		facts:             make(map[factKey][]chronos.Fact),
		attributes:        make(map[pairKey]map[string]struct{}),
	}
}

// Apply runs cmd under the write lock. If cmd fails, every mutation it made is
// undone before Apply returns the error.
func (e *Engine) Apply(ctx context.Context, cmd chronos.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := &tx{reader: reader{e}}
	if err := cmd(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// View runs q under the read lock.
func (e *Engine) View(ctx context.Context, q chronos.Query) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return q(ctx, reader{e})
}

// reader implements chronos.Reader; the caller holds the lock.
type reader struct {
	e *Engine
}

func (r reader) Entity(_ context.Context, id chronos.EntityID) (chronos.Entity, error) {
	ent, ok := r.e.entities[id]
	if !ok {
		return chronos.Entity{}, chronos.ErrNotFound
	}
	return ent, nil
}

func (r reader) Root(_ context.Context, project chronos.ProjectID) (chronos.Entity, error) {
	id, ok := r.e.roots[project]
	if !ok {
		return chronos.Entity{}, chronos.ErrNotFound
	}
	return r.e.entities[id], nil
}

func (r reader) Entities(_ context.Context, project chronos.ProjectID) ([]chronos.Entity, error) {
	return r.collect(r.e.projectEntities[project]), nil
}

func (r reader) Children(_ context.Context, parent chronos.EntityID) ([]chronos.Entity, error) {
	return r.collect(r.e.children[parent]), nil
}

func (r reader) collect(ids []chronos.EntityID) []chronos.Entity {
	entities := make([]chronos.Entity, len(ids))
	for i, id := range ids {
		entities[i] = r.e.entities[id]
	}
	return entities
}

func (r reader) Spacetime(_ context.Context, id chronos.EntityID) (chronos.Spacetime, error) {
	st, ok := r.e.spacetimes[id]
	if !ok {
		return chronos.Spacetime{}, chronos.ErrNotFound
	}
	return st, nil
}

func (r reader) Canon(_ context.Context, project chronos.ProjectID) (chronos.Spacetime, error) {
	id, ok := r.e.canon[project]
	if !ok {
		return chronos.Spacetime{}, chronos.ErrNotFound
	}
	return r.e.spacetimes[id], nil
}

func (r reader) Spacetimes(_ context.Context, project chronos.ProjectID) ([]chronos.Spacetime, error) {
	ids := r.e.projectSpacetimes[project]
	spacetimes := make([]chronos.Spacetime, len(ids))
	for i, id := range ids {
		spacetimes[i] = r.e.spacetimes[id]
	}
	return spacetimes, nil
}

func (r reader) Attributes(_ context.Context, entity, spacetime chronos.EntityID) ([]string, error) {
	set := r.e.attributes[pairKey{entity, spacetime}]
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r reader) Facts(ctx context.Context, entity, spacetime chronos.EntityID) ([]chronos.Fact, error) {
	names, _ := r.Attributes(ctx, entity, spacetime)
	var facts []chronos.Fact
	for _, name := range names {
		facts = append(facts, r.e.facts[factKey{pairKey{entity, spacetime}, name}]...)
	}
	return facts, nil
}

func (r reader) Latest(_ context.Context, entity, spacetime chronos.EntityID, attribute string, at chronos.Tick) (chronos.Fact, bool, error) {
	facts := r.e.facts[factKey{pairKey{entity, spacetime}, attribute}]
	// The first fact that is valid strictly after at; its predecessor (if any)
	// is the one we look for.
	i := sort.Search(len(facts), func(i int) bool { return facts[i].ValidFrom > at })
	if i == 0 {
		return chronos.Fact{}, false, nil
	}
	return facts[i-1], true, nil
}

// tx implements chronos.Tx. Every mutation pushes its inverse onto the undo
// log.
type tx struct {
	reader
	undo []func()
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) InsertEntity(_ context.Context, ent chronos.Entity) (chronos.Entity, error) {
	e := t.e
	if _, ok := e.entities[ent.ID]; ok {
		return chronos.Entity{}, fmt.Errorf("duplicate entity %v: %w", ent.ID, chronos.ErrConstraintViolation)
	}
	if ent.IsRoot() {
		if _, ok := e.roots[ent.Project]; ok {
			return chronos.Entity{}, fmt.Errorf("second root of project %q: %w", ent.Project, chronos.ErrConstraintViolation)
		}
	}

	e.seq++
	ent.Seq = e.seq
	e.entities[ent.ID] = ent
	e.projectEntities[ent.Project] = append(e.projectEntities[ent.Project], ent.ID)
	if ent.IsRoot() {
		e.roots[ent.Project] = ent.ID
	} else {
		e.children[ent.Parent] = append(e.children[ent.Parent], ent.ID)
	}

	t.undo = append(t.undo, func() {
		if ent.IsRoot() {
			delete(e.roots, ent.Project)
		} else {
			e.children[ent.Parent] = dropLast(e.children[ent.Parent])
			if len(e.children[ent.Parent]) == 0 {
				delete(e.children, ent.Parent)
			}
		}
		e.projectEntities[ent.Project] = dropLast(e.projectEntities[ent.Project])
		if len(e.projectEntities[ent.Project]) == 0 {
			delete(e.projectEntities, ent.Project)
		}
		delete(e.entities, ent.ID)
		e.seq--
	})
	return ent, nil
}

func (t *tx) InsertSpacetime(ctx context.Context, st chronos.Spacetime) (chronos.Spacetime, error) {
	e := t.e
	if st.IsCanonical() {
		if _, ok := e.canon[st.Project]; ok {
			return chronos.Spacetime{}, fmt.Errorf("second canon of project %q: %w", st.Project, chronos.ErrConstraintViolation)
		}
	}
	ent, err := t.InsertEntity(ctx, st.Entity)
	if err != nil {
		return chronos.Spacetime{}, err
	}
	st.Entity = ent

	e.spacetimes[st.ID] = st
	e.projectSpacetimes[st.Project] = append(e.projectSpacetimes[st.Project], st.ID)
	if st.IsCanonical() {
		e.canon[st.Project] = st.ID
	}

	t.undo = append(t.undo, func() {
		if st.IsCanonical() {
			delete(e.canon, st.Project)
		}
		e.projectSpacetimes[st.Project] = dropLast(e.projectSpacetimes[st.Project])
		if len(e.projectSpacetimes[st.Project]) == 0 {
			delete(e.projectSpacetimes, st.Project)
		}
		delete(e.spacetimes, st.ID)
	})
	return st, nil
}

func (t *tx) InsertFact(_ context.Context, f chronos.Fact) error {
	e := t.e
	if _, ok := e.factIDs[f.ID]; ok {
		return fmt.Errorf("duplicate %v: %w", f.ID, chronos.ErrConstraintViolation)
	}

	key := keyOf(f)
	facts := e.facts[key]
	i := sort.Search(len(facts), func(i int) bool { return facts[i].ValidFrom > f.ValidFrom })
	e.facts[key] = slices.Insert(facts, i, f)
	e.factIDs[f.ID] = struct{}{}

	set, ok := e.attributes[key.pairKey]
	if !ok {
		set = make(map[string]struct{})
		e.attributes[key.pairKey] = set
	}
	_, known := set[f.Attribute]
	set[f.Attribute] = struct{}{}

	t.undo = append(t.undo, func() {
		if !known {
			delete(set, f.Attribute)
			if len(set) == 0 {
				delete(e.attributes, key.pairKey)
			}
		}
		delete(e.factIDs, f.ID)
		facts := e.facts[key]
		j := slices.IndexFunc(facts, func(g chronos.Fact) bool { return g.ID == f.ID })
		facts = slices.Delete(facts, j, j+1)
		if len(facts) == 0 {
			delete(e.facts, key)
		} else {
			e.facts[key] = facts
		}
	})
	return nil
}

func dropLast(ids []chronos.EntityID) []chronos.EntityID {
	return ids[:len(ids)-1]
}
