package chronos

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// State resolves the effective attributes of the entity as seen at tick at of
// the given spacetime.
//
// Every attribute is looked up along the ancestry chain of the spacetime,
// nearest first: in each link, the fact with the greatest ValidFrom not after
// min(at, link horizon) is a candidate, and the first candidate wins. A
// divergent spacetime therefore sees its parent's history up to and including
// its branch time, and its own facts override inherited ones.
//
// State never writes. It fails with ErrNotFound for an unknown entity or
// spacetime and with ErrCycleDetected for a corrupted ancestry; missing data
// simply yields absent attributes.
func (s *Store) State(ctx context.Context, entity, spacetime EntityID, at Tick) (state State, err error) {
	ctx, end := startOperation(ctx, "get entity state",
		entityAttr("chronos.entity", entity),
		entityAttr("chronos.spacetime", spacetime),
		attribute.Int64("chronos.at", int64(at)),
	)
	defer func() { end(err) }()

	err = s.view(ctx, "get entity state", func(ctx context.Context, r Reader) error {
		if _, err := requireEntity(ctx, r, entity); err != nil {
			return err
		}
		chain, err := ancestry(ctx, r, spacetime, s.maxDepth)
		if err != nil {
			return err
		}
		state, err = resolveState(ctx, r, entity, chain, at)
		return err
	})
	return state, err
}

// resolveState implements State over an already walked chain.
func resolveState(ctx context.Context, r Reader, entity EntityID, chain []Ancestor, at Tick) (State, error) {
	resolveDepth.Record(ctx, int64(len(chain)))

	// Gather every attribute that any link assigns, in a stable order.
	var attrs []string
	seen := make(map[string]struct{})
	for _, link := range chain {
		names, err := r.Attributes(ctx, entity, link.Spacetime.ID)
		if err != nil {
			return nil, fmt.Errorf("attributes in %v: %w", link.Spacetime.ID, err)
		}
		for _, name := range names {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				attrs = append(attrs, name)
			}
		}
	}
	sort.Strings(attrs)

	state := make(State, len(attrs))
	for _, name := range attrs {
		v, ok, err := resolveAttribute(ctx, r, entity, chain, name, at)
		if err != nil {
			return nil, err
		}
		if ok {
			state[name] = v
		}
	}
	return state, nil
}

// resolveAttribute returns the first visible fact of the attribute along the
// chain.
func resolveAttribute(ctx context.Context, r Reader, entity EntityID, chain []Ancestor, attr string, at Tick) (Value, bool, error) {
	for _, link := range chain {
		limit := min(at, link.Horizon)
		f, ok, err := r.Latest(ctx, entity, link.Spacetime.ID, attr, limit)
		if err != nil {
			return nil, false, fmt.Errorf("latest %q in %v: %w", attr, link.Spacetime.ID, err)
		}
		if ok {
			return f.Value, true, nil
		}
	}
	return nil, false, nil
}

// Resolve is like State but resolves a single attribute, reporting ok == false
// when it is absent.
func (s *Store) Resolve(ctx context.Context, entity, spacetime EntityID, attr string, at Tick) (v Value, ok bool, err error) {
	ctx, end := startOperation(ctx, "resolve attribute",
		entityAttr("chronos.entity", entity),
		entityAttr("chronos.spacetime", spacetime),
		attribute.String("chronos.attribute", attr),
		attribute.Int64("chronos.at", int64(at)),
	)
	defer func() { end(err) }()

	err = s.view(ctx, "resolve attribute", func(ctx context.Context, r Reader) error {
		if _, err := requireEntity(ctx, r, entity); err != nil {
			return err
		}
		chain, err := ancestry(ctx, r, spacetime, s.maxDepth)
		if err != nil {
			return err
		}
		resolveDepth.Record(ctx, int64(len(chain)))
		v, ok, err = resolveAttribute(ctx, r, entity, chain, attr, at)
		return err
	})
	return v, ok, err
}

// States resolves many entities at the same viewpoint, e.g. to label every
// entity of an outline at once. Resolutions run concurrently, bounded by
// WithResolveConcurrency; each one observes a committed state of the store.
//
// It fails if any of the resolutions fails.
func (s *Store) States(ctx context.Context, entities []EntityID, spacetime EntityID, at Tick) (_ map[EntityID]State, err error) {
	ctx, end := startOperation(ctx, "get entity states",
		entityAttr("chronos.spacetime", spacetime),
		attribute.Int("chronos.entities", len(entities)),
		attribute.Int64("chronos.at", int64(at)),
	)
	defer func() { end(err) }()

	// Spacetimes never change once created, so a single walk serves every
	// resolution below.
	var chain []Ancestor
	err = s.view(ctx, "get entity states", func(ctx context.Context, r Reader) error {
		var err error
		chain, err = ancestry(ctx, r, spacetime, s.maxDepth)
		return err
	})
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		states = make(map[EntityID]State, len(entities))
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range entities {
		g.Go(func() error {
			return s.view(ctx, "get entity states", func(ctx context.Context, r Reader) error {
				if _, err := requireEntity(ctx, r, id); err != nil {
					return err
				}
				state, err := resolveState(ctx, r, id, chain, at)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				states[id] = state
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return states, nil
}

// Status derives the lifecycle status of the entity from its resolved state:
//
//   - StatusRetired if "retired" is true; it wins over everything else.
//   - Otherwise an explicit "status" string of "dead" or "alive".
//   - Otherwise StatusUnborn before "birth_tick", StatusDead from "death_tick"
//     onwards (birth taking precedence), and StatusAlive in any other case.
func (s *Store) Status(ctx context.Context, entity, spacetime EntityID, at Tick) (Status, error) {
	state, err := s.State(ctx, entity, spacetime, at)
	if err != nil {
		return "", err
	}
	return StatusOf(state, at), nil
}

// StatusOf derives the Status of a state resolved at tick at; see
// Store.Status.
func StatusOf(state State, at Tick) Status {
	if retired, ok := state[AttrRetired].(Bool); ok && bool(retired) {
		return StatusRetired
	}

	status := StatusAlive
	if death, ok := state[AttrDeathTick].(Number); ok && float64(at) >= float64(death) {
		status = StatusDead
	}
	if birth, ok := state[AttrBirthTick].(Number); ok && float64(at) < float64(birth) {
		status = StatusUnborn
	}
	if explicit, ok := state[AttrStatus].(String); ok {
		switch strings.ToLower(string(explicit)) {
		case string(StatusDead):
			status = StatusDead
		case string(StatusAlive):
			status = StatusAlive
		}
	}
	return status
}

// Name resolves the "name" attribute of the entity. It reports ok == false
// when the entity has no name, or its name is not a String.
func (s *Store) Name(ctx context.Context, entity, spacetime EntityID, at Tick) (name string, ok bool, err error) {
	v, ok, err := s.Resolve(ctx, entity, spacetime, AttrName, at)
	if err != nil || !ok {
		return "", false, err
	}
	str, ok := v.(String)
	return string(str), ok, nil
}
