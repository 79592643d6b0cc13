package chronos

import (
	"context"
	"fmt"
	"runtime"

	"gocloud.dev/pubsub"
)

// DefaultMaxAncestryDepth bounds the ancestry walk unless WithMaxAncestryDepth
// says otherwise.
const DefaultMaxAncestryDepth = 256

// Store is the entry point to a fact store. It enforces the invariants of the
// entity registry, the spacetime tree and the fact log, and resolves states,
// delegating persistence to an Engine.
//
// A Store is safe for concurrent use; its engine decides how commands are
// serialised.
type Store struct {
	engine      Engine
	topic       *pubsub.Topic
	maxDepth    int
	concurrency int
}

// An Option configures a Store.
type Option func(*Store)

// WithPublisher makes the Store publish a Changed notification to the topic
// after every acknowledged command. The Store does not own the topic; callers
// remain responsible for shutting it down.
func WithPublisher(topic *pubsub.Topic) Option {
	return func(s *Store) { s.topic = topic }
}

// WithMaxAncestryDepth bounds the number of spacetimes an ancestry walk visits
// before failing with ErrCycleDetected. Values below 1 are ignored.
func WithMaxAncestryDepth(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxDepth = n
		}
	}
}

// WithResolveConcurrency bounds the number of states that Store.States
// resolves simultaneously. Values below 1 are ignored. The default is
// GOMAXPROCS.
func WithResolveConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New returns a Store backed by the given engine.
func New(engine Engine, opts ...Option) *Store {
	if engine == nil {
		panic("chronos: nil engine")
	}
	s := &Store{
		engine:      engine,
		maxDepth:    DefaultMaxAncestryDepth,
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the engine the Store was created with.
func (s *Store) Engine() Engine { return s.engine }

// Init prepares the engine for use (schemas, constraints, migrations). It is
// idempotent, and a no-op for engines that need no setup.
func (s *Store) Init(ctx context.Context) (err error) {
	ctx, end := startOperation(ctx, "init")
	defer func() { end(err) }()

	i, ok := s.engine.(Initializer)
	if !ok {
		return nil
	}
	if err := i.Init(ctx); err != nil {
		return &StoreError{Op: "init", Err: err}
	}
	return nil
}

// view runs q on the engine and classifies its error for op.
func (s *Store) view(ctx context.Context, op string, q Query) error {
	return classify(op, s.engine.View(ctx, q))
}

// apply runs cmd on the engine and classifies its error for op.
func (s *Store) apply(ctx context.Context, op string, cmd Command) error {
	return classify(op, s.engine.Apply(ctx, cmd))
}

// requireEntity fails with ErrNotFound unless id names an entity.
func requireEntity(ctx context.Context, r Reader, id EntityID) (Entity, error) {
	if id.IsZero() {
		return Entity{}, fmt.Errorf("zero entity id: %w", ErrNotFound)
	}
	e, err := r.Entity(ctx, id)
	if err != nil {
		return Entity{}, fmt.Errorf("entity %v: %w", id, err)
	}
	return e, nil
}

// requireSpacetime fails with ErrNotFound unless id names a spacetime.
func requireSpacetime(ctx context.Context, r Reader, id EntityID) (Spacetime, error) {
	if id.IsZero() {
		return Spacetime{}, fmt.Errorf("zero spacetime id: %w", ErrNotFound)
	}
	st, err := r.Spacetime(ctx, id)
	if err != nil {
		return Spacetime{}, fmt.Errorf("spacetime %v: %w", id, err)
	}
	return st, nil
}
