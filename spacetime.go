package chronos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielorbach/go-component"
	"go.opentelemetry.io/otel/attribute"
)

// CreateSpacetime creates a timeline of the project. With a zero parent it
// creates the canonical spacetime, of which a project has at most one.
// Otherwise, it creates a divergent spacetime that inherits the history of
// parent up to and including branchTime.
//
// The entity row of a spacetime has TypeSpacetime and the root universe of the
// project as its parent.
//
// It fails with ErrNotFound if the project has no root universe or parent does
// not exist, and with ErrConstraintViolation for a second canonical spacetime,
// a negative branchTime, a parent of another project or a parent whose own
// ancestry is corrupted.
func (s *Store) CreateSpacetime(ctx context.Context, project ProjectID, name string, parent EntityID, branchTime Tick) (st Spacetime, err error) {
	ctx, end := startOperation(ctx, "create spacetime",
		projectAttr(project),
		entityAttr("chronos.parent", parent),
		attribute.Int64("chronos.branch_time", int64(branchTime)),
	)
	defer func() { end(err) }()

	if branchTime < 0 {
		return Spacetime{}, fmt.Errorf("create spacetime: negative branch time %d: %w", branchTime, ErrConstraintViolation)
	}

	err = s.apply(ctx, "create spacetime", func(ctx context.Context, tx Tx) error {
		var err error
		st, err = s.createSpacetime(ctx, tx, project, name, parent, branchTime)
		return err
	})
	if err != nil {
		return Spacetime{}, err
	}
	component.Logger(ctx).Debug("Spacetime created",
		slog.String("project", string(project)),
		slog.Any("spacetime", st.ID),
		slog.Any("parent", st.ParentSpacetime),
		slog.Int64("branch-time", int64(st.BranchTime)),
	)
	s.publish(ctx, project, SpacetimeCreated{Spacetime: st})
	return st, nil
}

func (s *Store) createSpacetime(ctx context.Context, tx Tx, project ProjectID, name string, parent EntityID, branchTime Tick) (Spacetime, error) {
	root, err := tx.Root(ctx, project)
	if err != nil {
		return Spacetime{}, fmt.Errorf("root universe of project %q: %w", project, err)
	}

	if parent.IsZero() {
		_, err := tx.Canon(ctx, project)
		if err == nil {
			return Spacetime{}, fmt.Errorf("project %q already has a canonical spacetime: %w", project, ErrConstraintViolation)
		}
		if !errors.Is(err, ErrNotFound) {
			return Spacetime{}, fmt.Errorf("lookup canon: %w", err)
		}
	} else {
		p, err := requireSpacetime(ctx, tx, parent)
		if err != nil {
			return Spacetime{}, fmt.Errorf("parent: %w", err)
		}
		if p.Project != project {
			return Spacetime{}, fmt.Errorf("parent %v belongs to project %q: %w", parent, p.Project, ErrConstraintViolation)
		}
		// The new link counts towards the depth bound of every resolution from
		// the new branch.
		if _, err := ancestry(ctx, tx, parent, s.maxDepth-1); err != nil {
			if errors.Is(err, ErrCycleDetected) {
				return Spacetime{}, fmt.Errorf("%w: parent ancestry: %w", ErrConstraintViolation, err)
			}
			return Spacetime{}, fmt.Errorf("parent ancestry: %w", err)
		}
	}

	return tx.InsertSpacetime(ctx, Spacetime{
		Entity: Entity{
			ID:      NewEntityID(),
			Project: project,
			Type:    TypeSpacetime,
			Parent:  root.ID,
		},
		Name:            name,
		ParentSpacetime: parent,
		BranchTime:      branchTime,
	})
}

// ancestry walks from start to the canonical spacetime, nearest first. The
// first link sees its whole history; every later link sees its history up to
// the branch time at which the link immediately below it diverged.
//
// The walk fails with ErrCycleDetected if it revisits a spacetime or visits
// more than maxDepth of them.
func ancestry(ctx context.Context, r Reader, start EntityID, maxDepth int) ([]Ancestor, error) {
	var (
		chain   []Ancestor
		seen    = make(map[EntityID]struct{})
		horizon = Forever
	)
	for id := start; ; {
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: spacetime %v visited twice", ErrCycleDetected, id)
		}
		if len(chain) >= maxDepth {
			return nil, fmt.Errorf("%w: deeper than %d spacetimes", ErrCycleDetected, maxDepth)
		}
		st, err := requireSpacetime(ctx, r, id)
		if err != nil {
			return nil, err
		}
		seen[id] = struct{}{}
		chain = append(chain, Ancestor{Spacetime: st, Horizon: horizon})
		if st.IsCanonical() {
			return chain, nil
		}
		horizon = st.BranchTime
		id = st.ParentSpacetime
	}
}

// AncestryChain returns the chain of spacetimes from the given one to the
// canonical spacetime of its project, nearest first. Each link carries the
// branch time at which the link before it diverged.
func (s *Store) AncestryChain(ctx context.Context, spacetime EntityID) (chain []Ancestor, err error) {
	ctx, end := startOperation(ctx, "get ancestry chain", entityAttr("chronos.spacetime", spacetime))
	defer func() { end(err) }()

	err = s.view(ctx, "get ancestry chain", func(ctx context.Context, r Reader) error {
		var err error
		chain, err = ancestry(ctx, r, spacetime, s.maxDepth)
		return err
	})
	return chain, err
}

// IsDivergent reports whether the spacetime has a parent.
func (s *Store) IsDivergent(ctx context.Context, spacetime EntityID) (bool, error) {
	st, err := s.Spacetime(ctx, spacetime)
	if err != nil {
		return false, err
	}
	return !st.IsCanonical(), nil
}

// Spacetime returns the spacetime with the given id.
func (s *Store) Spacetime(ctx context.Context, id EntityID) (st Spacetime, err error) {
	ctx, end := startOperation(ctx, "get spacetime", entityAttr("chronos.spacetime", id))
	defer func() { end(err) }()

	err = s.view(ctx, "get spacetime", func(ctx context.Context, r Reader) error {
		var err error
		st, err = requireSpacetime(ctx, r, id)
		return err
	})
	return st, err
}

// Canon returns the canonical spacetime of the project.
func (s *Store) Canon(ctx context.Context, project ProjectID) (st Spacetime, err error) {
	ctx, end := startOperation(ctx, "get canon", projectAttr(project))
	defer func() { end(err) }()

	err = s.view(ctx, "get canon", func(ctx context.Context, r Reader) error {
		var err error
		st, err = r.Canon(ctx, project)
		if err != nil {
			return fmt.Errorf("canon of project %q: %w", project, err)
		}
		return nil
	})
	return st, err
}

// Spacetimes lists the spacetimes of the project in creation order.
func (s *Store) Spacetimes(ctx context.Context, project ProjectID) (spacetimes []Spacetime, err error) {
	ctx, end := startOperation(ctx, "get spacetimes", projectAttr(project))
	defer func() { end(err) }()

	err = s.view(ctx, "get spacetimes", func(ctx context.Context, r Reader) error {
		var err error
		spacetimes, err = r.Spacetimes(ctx, project)
		return err
	})
	return spacetimes, err
}
