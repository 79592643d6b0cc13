package chronos

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"sync"

	"github.com/danielorbach/go-component"
	"gocloud.dev/pubsub"
)

// AttributeView correlates the entities of a project with the resolved value of
// a single attribute at a fixed viewpoint (a spacetime and a tick). A typical
// use is the outline of a project, which labels every entity with its name.
//
// Use Find to read the view, and Load, Refresh or TrackAttribute to maintain
// it.
//
// AttributeView is safe for concurrent use.
type AttributeView struct {
	attribute string
	spacetime EntityID
	at        Tick

	mu sync.Mutex
	m  map[EntityID]Value
}

// NewAttributeView returns an empty view of the attribute as seen at tick at of
// the spacetime.
func NewAttributeView(attribute string, spacetime EntityID, at Tick) *AttributeView {
	return &AttributeView{
		attribute: attribute,
		spacetime: spacetime,
		at:        at,
		m:         make(map[EntityID]Value),
	}
}

// Attribute returns the attribute the view tracks.
func (v *AttributeView) Attribute() string { return v.attribute }

// Find returns the last known value of the attribute for the entity. If the
// entity has no such value, Find indicates that by returning ok == false.
func (v *AttributeView) Find(id EntityID) (value Value, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	value, ok = v.m[id]
	return value, ok
}

// Len returns the number of entities with a value.
func (v *AttributeView) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.m)
}

// All iterates over a snapshot of the view, in no particular order.
func (v *AttributeView) All() iter.Seq2[EntityID, Value] {
	v.mu.Lock()
	snapshot := maps.Clone(v.m)
	v.mu.Unlock()
	return maps.All(snapshot)
}

// set stores value for the entity, or expunges the entity when value is nil.
func (v *AttributeView) set(id EntityID, value Value) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if value == nil {
		delete(v.m, id)
		return
	}
	v.m[id] = value
}

// Load resolves the attribute for every entity of the project and replaces
// the content of the view.
func (v *AttributeView) Load(ctx context.Context, store *Store, project ProjectID) error {
	entities, err := store.Entities(ctx, project)
	if err != nil {
		return fmt.Errorf("list entities: %w", err)
	}
	ids := make([]EntityID, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	states, err := store.States(ctx, ids, v.spacetime, v.at)
	if err != nil {
		return fmt.Errorf("resolve states: %w", err)
	}

	m := make(map[EntityID]Value, len(states))
	for id, state := range states {
		if value, ok := state[v.attribute]; ok {
			m[id] = value
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.m = m
	return nil
}

// Refresh resolves the attribute for a single entity and updates the view. An
// entity whose attribute has become absent is expunged.
func (v *AttributeView) Refresh(ctx context.Context, store *Store, entity EntityID) error {
	value, ok, err := store.Resolve(ctx, entity, v.spacetime, v.attribute, v.at)
	if err != nil {
		return fmt.Errorf("resolve %q of %v: %w", v.attribute, entity, err)
	}
	if !ok {
		value = nil
	}
	v.set(entity, value)
	return nil
}

// Observe updates the view according to a change notification. Only facts of
// the tracked attribute can alter the view; other changes are ignored.
func (v *AttributeView) Observe(ctx context.Context, store *Store, c Changed) error {
	recorded, ok := c.Change.(FactRecorded)
	if !ok || recorded.Fact.Attribute != v.attribute {
		return nil
	}
	// The fact may belong to a spacetime that the viewpoint does not inherit
	// from, or be shadowed by a nearer fact; resolving again settles both.
	err := v.Refresh(ctx, store, recorded.Fact.Entity)
	if errors.Is(err, ErrNotFound) {
		// The viewpoint spacetime belongs to another store or project.
		return nil
	}
	return err
}

// TrackAttribute returns a component.Proc that follows the change feed of a
// Store and maintains an up-to-date view of the attribute.
//
// The procedure handles one Changed message at a time. Use Load beforehand to
// populate the view with the state preceding the subscription.
func TrackAttribute(v *AttributeView, store *Store, sub *pubsub.Subscription) component.Proc {
	return Watch(sub, func(ctx context.Context, c Changed) error {
		return v.Observe(ctx, store, c)
	})
}
