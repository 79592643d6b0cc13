package chronos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielorbach/go-component"
)

// DefaultProjectName names the root universe of a project bootstrapped without
// a name.
const DefaultProjectName = "My World"

// CanonName is the name of the canonical spacetime created by
// BootstrapProject.
const CanonName = "Canon"

// BootstrapProject guarantees that the project has a root universe and a
// canonical spacetime, and returns both.
//
// On a fresh project it creates, in a single atomic command, the root universe,
// the canonical spacetime (named CanonName, branching at tick 0) and the fact
// "name = name" on the universe in canon at tick 0. On a bootstrapped project it
// changes nothing. A project holding a root universe but no canonical
// spacetime gets one.
func (s *Store) BootstrapProject(ctx context.Context, project ProjectID, name string) (b Bootstrap, err error) {
	ctx, end := startOperation(ctx, "bootstrap project", projectAttr(project))
	defer func() { end(err) }()
	logger := component.Logger(ctx).With(slog.String("project", string(project)))

	if project == "" {
		return Bootstrap{}, fmt.Errorf("bootstrap project: empty project: %w", ErrConstraintViolation)
	}
	if name == "" {
		name = DefaultProjectName
	}

	// Most calls find a bootstrapped project; answer those without a write.
	var done bool
	err = s.view(ctx, "bootstrap project", func(ctx context.Context, r Reader) error {
		var err error
		b, done, err = lookupBootstrap(ctx, r, project)
		return err
	})
	if err != nil {
		return Bootstrap{}, err
	}
	if done {
		logger.Debug("Project already bootstrapped")
		return b, nil
	}

	var changes []Change
	err = s.apply(ctx, "bootstrap project", func(ctx context.Context, tx Tx) error {
		// Engines may retry a command, so start afresh every time.
		changes = nil

		var done bool
		var err error
		b, done, err = lookupBootstrap(ctx, tx, project)
		if err != nil || done {
			return err
		}

		fresh := b.Universe.ID.IsZero()
		if fresh {
			b.Universe, err = createEntity(ctx, tx, project, TypeUniverse, EntityID{})
			if err != nil {
				return fmt.Errorf("root universe: %w", err)
			}
			changes = append(changes, EntityCreated{Entity: b.Universe})
		}

		b.Canon, err = s.createSpacetime(ctx, tx, project, CanonName, EntityID{}, 0)
		if err != nil {
			return fmt.Errorf("canon: %w", err)
		}
		changes = append(changes, SpacetimeCreated{Spacetime: b.Canon})

		// An existing universe keeps its facts.
		if fresh {
			f := Fact{
				ID:        ComputeFactID(b.Universe.ID, b.Canon.ID, AttrName, 0),
				Entity:    b.Universe.ID,
				Spacetime: b.Canon.ID,
				Attribute: AttrName,
				Value:     String(name),
				ValidFrom: 0,
			}
			if err := tx.InsertFact(ctx, f); err != nil {
				return fmt.Errorf("name universe: %w", err)
			}
			changes = append(changes, FactRecorded{Fact: f})
		}
		return nil
	})
	if err != nil {
		return Bootstrap{}, err
	}

	logger.Info("Project bootstrapped",
		slog.Any("universe", b.Universe.ID),
		slog.Any("canon", b.Canon.ID),
	)
	s.publish(ctx, project, changes...)
	return b, nil
}

// lookupBootstrap returns what exists of the project's bootstrap, with done
// reporting whether both the universe and the canon exist.
func lookupBootstrap(ctx context.Context, r Reader, project ProjectID) (b Bootstrap, done bool, err error) {
	b.Universe, err = r.Root(ctx, project)
	if errors.Is(err, ErrNotFound) {
		return Bootstrap{}, false, nil
	} else if err != nil {
		return Bootstrap{}, false, fmt.Errorf("lookup root: %w", err)
	}

	b.Canon, err = r.Canon(ctx, project)
	if errors.Is(err, ErrNotFound) {
		return b, false, nil
	} else if err != nil {
		return Bootstrap{}, false, fmt.Errorf("lookup canon: %w", err)
	}
	return b, true, nil
}
