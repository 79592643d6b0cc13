package chronos

import "context"

// A Command is a function that applies a set of mutations to the store using
// the given Tx and returns a non-nil error if those fail. It supports
// transactional semantics via an Engine.
//
// Commands must not retain the Tx after they return.
type Command func(ctx context.Context, tx Tx) error

// A Query is a function that reads from the store using the given Reader. All
// reads of a single Query observe the same committed state.
type Query func(ctx context.Context, r Reader) error

// An Engine applies Commands atomically and runs Queries against a consistent
// view of its storage.
//
// It is up to the Engine to maintain the data integrity; therefore, any Command
// that fails must not commit changes. A Command is durable by the time Apply
// returns nil.
//
// An Engine's methods are called concurrently. Thus, implementations must
// allow for concurrent execution, although they may serialise commands.
type Engine interface {
	Apply(ctx context.Context, cmd Command) error
	View(ctx context.Context, q Query) error
}

// An Initializer is an Engine that requires one-off setup (schemas,
// constraints, migrations) before use. Store.Init calls Init; it must be
// idempotent.
type Initializer interface {
	Init(ctx context.Context) error
}

// Reader defines the read primitives over the registry, the spacetime tree and
// the fact log. Specific engines are expected to implement these.
//
// Lookups of a single record return an error wrapping ErrNotFound when the
// record does not exist. Listings of nothing return an empty slice and a nil
// error.
type Reader interface {
	// Entity returns the entity with the given id; spacetimes are entities too.
	Entity(ctx context.Context, id EntityID) (Entity, error)
	// Root returns the root universe of the project.
	Root(ctx context.Context, project ProjectID) (Entity, error)
	// Entities lists every entity of the project in creation order.
	Entities(ctx context.Context, project ProjectID) ([]Entity, error)
	// Children lists the direct children of parent in creation order.
	Children(ctx context.Context, parent EntityID) ([]Entity, error)

	// Spacetime returns the spacetime with the given id.
	Spacetime(ctx context.Context, id EntityID) (Spacetime, error)
	// Canon returns the canonical spacetime of the project.
	Canon(ctx context.Context, project ProjectID) (Spacetime, error)
	// Spacetimes lists every spacetime of the project in creation order.
	Spacetimes(ctx context.Context, project ProjectID) ([]Spacetime, error)

	// Facts lists the facts recorded for entity in exactly the given spacetime,
	// ordered by attribute then ValidFrom.
	Facts(ctx context.Context, entity, spacetime EntityID) ([]Fact, error)
	// Attributes lists, in lexical order, the attribute names with at least one
	// fact for entity in exactly the given spacetime.
	Attributes(ctx context.Context, entity, spacetime EntityID) ([]string, error)
	// Latest returns the fact with the greatest ValidFrom <= at for the given
	// key, or ok == false if there is none.
	Latest(ctx context.Context, entity, spacetime EntityID, attribute string, at Tick) (f Fact, ok bool, err error)
}

// Tx extends Reader with the write primitives of a Command. Writes are visible
// to later reads of the same Tx.
type Tx interface {
	Reader

	// InsertEntity stores a new entity and returns it with its Seq assigned. It
	// fails with ErrConstraintViolation for a duplicate id or a second root of a
	// project. It does not validate the parent; that is the registry's concern.
	InsertEntity(ctx context.Context, e Entity) (Entity, error)
	// InsertSpacetime stores the spacetime and its entity row, returning it with
	// its Seq assigned. It fails with ErrConstraintViolation for a duplicate id
	// or a second canonical spacetime of a project.
	InsertSpacetime(ctx context.Context, s Spacetime) (Spacetime, error)
	// InsertFact appends a fact. It fails with ErrConstraintViolation when a fact
	// with the same ID (i.e. the same key and ValidFrom) exists.
	InsertFact(ctx context.Context, f Fact) error
}
