package chronos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielorbach/go-component"
)

// CreateEntity registers a new entity of the given type under parent and
// returns it. A zero parent registers the root universe of the project, which
// must be of type TypeUniverse and must not exist yet.
//
// It fails with ErrNotFound if parent does not exist, and with
// ErrConstraintViolation if the entity would become a second root, if the
// parent belongs to another project, or if typ is unknown. Spacetimes are
// entities too, but they are created with CreateSpacetime.
func (s *Store) CreateEntity(ctx context.Context, project ProjectID, typ EntityType, parent EntityID) (e Entity, err error) {
	ctx, end := startOperation(ctx, "create entity", projectAttr(project), entityAttr("chronos.parent", parent))
	defer func() { end(err) }()

	switch {
	case project == "":
		return Entity{}, fmt.Errorf("create entity: empty project: %w", ErrConstraintViolation)
	case !typ.Valid():
		return Entity{}, fmt.Errorf("create entity: unknown type %q: %w", typ, ErrConstraintViolation)
	case typ == TypeSpacetime:
		return Entity{}, fmt.Errorf("create entity: spacetimes are created as such: %w", ErrConstraintViolation)
	}

	err = s.apply(ctx, "create entity", func(ctx context.Context, tx Tx) error {
		var err error
		e, err = createEntity(ctx, tx, project, typ, parent)
		return err
	})
	if err != nil {
		return Entity{}, err
	}
	component.Logger(ctx).Debug("Entity created",
		slog.String("project", string(project)),
		slog.Any("entity", e.ID),
		slog.String("type", string(e.Type)),
	)
	s.publish(ctx, project, EntityCreated{Entity: e})
	return e, nil
}

// createEntity validates the parent of a new entity inside the command that
// inserts it, so that no concurrent command can invalidate the checks.
func createEntity(ctx context.Context, tx Tx, project ProjectID, typ EntityType, parent EntityID) (Entity, error) {
	if parent.IsZero() {
		if typ != TypeUniverse {
			return Entity{}, fmt.Errorf("root entity of type %q: %w", typ, ErrConstraintViolation)
		}
		_, err := tx.Root(ctx, project)
		if err == nil {
			return Entity{}, fmt.Errorf("project %q already has a root universe: %w", project, ErrConstraintViolation)
		}
		if !errors.Is(err, ErrNotFound) {
			return Entity{}, fmt.Errorf("lookup root: %w", err)
		}
	} else {
		p, err := requireEntity(ctx, tx, parent)
		if err != nil {
			return Entity{}, fmt.Errorf("parent: %w", err)
		}
		if p.Project != project {
			return Entity{}, fmt.Errorf("parent %v belongs to project %q: %w", parent, p.Project, ErrConstraintViolation)
		}
	}

	return tx.InsertEntity(ctx, Entity{
		ID:      NewEntityID(),
		Project: project,
		Type:    typ,
		Parent:  parent,
	})
}

// Entity returns the entity with the given id.
func (s *Store) Entity(ctx context.Context, id EntityID) (e Entity, err error) {
	ctx, end := startOperation(ctx, "get entity", entityAttr("chronos.entity", id))
	defer func() { end(err) }()

	err = s.view(ctx, "get entity", func(ctx context.Context, r Reader) error {
		var err error
		e, err = requireEntity(ctx, r, id)
		return err
	})
	return e, err
}

// Entities lists every entity of the project, spacetimes included, in creation
// order.
func (s *Store) Entities(ctx context.Context, project ProjectID) (entities []Entity, err error) {
	ctx, end := startOperation(ctx, "get entities", projectAttr(project))
	defer func() { end(err) }()

	err = s.view(ctx, "get entities", func(ctx context.Context, r Reader) error {
		var err error
		entities, err = r.Entities(ctx, project)
		return err
	})
	return entities, err
}

// Children lists the direct children of parent in creation order. It fails
// with ErrNotFound if parent does not exist.
func (s *Store) Children(ctx context.Context, parent EntityID) (children []Entity, err error) {
	ctx, end := startOperation(ctx, "get children", entityAttr("chronos.parent", parent))
	defer func() { end(err) }()

	err = s.view(ctx, "get children", func(ctx context.Context, r Reader) error {
		if _, err := requireEntity(ctx, r, parent); err != nil {
			return err
		}
		var err error
		children, err = r.Children(ctx, parent)
		return err
	})
	return children, err
}

// Tree returns the hierarchy of the project's entities.
func (s *Store) Tree(ctx context.Context, project ProjectID) (*Tree, error) {
	entities, err := s.Entities(ctx, project)
	if err != nil {
		return nil, err
	}
	return NewTree(entities), nil
}
