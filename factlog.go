package chronos

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielorbach/go-component"
	"go.opentelemetry.io/otel/attribute"
)

// RecordFact appends the fact "entity.attribute = value from validFrom" to the
// log of the given spacetime and returns it. Facts are immutable: a later fact
// of the same key supersedes an earlier one from its ValidFrom onwards.
// Insertion order does not matter.
//
// It fails with ErrInvalidValue for an empty attribute or an invalid value
// (see ValidateValue), with ErrNotFound if the entity, the spacetime or the
// target of a Ref does not exist, and with ErrConstraintViolation if a fact
// of the same key and validFrom exists or the entity and spacetime (or a Ref
// target) belong to different projects.
func (s *Store) RecordFact(ctx context.Context, entity, spacetime EntityID, attr string, value Value, validFrom Tick) (f Fact, err error) {
	ctx, end := startOperation(ctx, "record fact",
		entityAttr("chronos.entity", entity),
		entityAttr("chronos.spacetime", spacetime),
		attribute.String("chronos.attribute", attr),
		attribute.Int64("chronos.valid_from", int64(validFrom)),
	)
	defer func() { end(err) }()

	if attr == "" {
		return Fact{}, fmt.Errorf("record fact: empty attribute: %w", ErrInvalidValue)
	}
	if err := ValidateValue(value); err != nil {
		return Fact{}, fmt.Errorf("record fact: %w", err)
	}

	var project ProjectID
	err = s.apply(ctx, "record fact", func(ctx context.Context, tx Tx) error {
		e, err := requireEntity(ctx, tx, entity)
		if err != nil {
			return err
		}
		st, err := requireSpacetime(ctx, tx, spacetime)
		if err != nil {
			return err
		}
		if e.Project != st.Project {
			return fmt.Errorf("entity of project %q in spacetime of project %q: %w", e.Project, st.Project, ErrConstraintViolation)
		}
		if ref, ok := value.(Ref); ok {
			target, err := requireEntity(ctx, tx, EntityID(ref))
			if err != nil {
				return fmt.Errorf("reference: %w", err)
			}
			if target.Project != e.Project {
				return fmt.Errorf("reference to project %q: %w", target.Project, ErrConstraintViolation)
			}
		}

		f = Fact{
			ID:        ComputeFactID(entity, spacetime, attr, validFrom),
			Entity:    entity,
			Spacetime: spacetime,
			Attribute: attr,
			Value:     value,
			ValidFrom: validFrom,
		}
		project = e.Project
		return tx.InsertFact(ctx, f)
	})
	if err != nil {
		return Fact{}, err
	}
	component.Logger(ctx).Debug("Fact recorded",
		slog.Any("fact", f.ID),
		slog.String("attribute", attr),
		slog.Int64("valid-from", int64(validFrom)),
	)
	s.publish(ctx, project, FactRecorded{Fact: f})
	return f, nil
}

// RetireEntity records the tombstone fact "retired = true" for the entity at
// the given tick. Entities are never deleted; a retired entity keeps its
// history and resolves with StatusRetired from that tick onwards.
func (s *Store) RetireEntity(ctx context.Context, entity, spacetime EntityID, at Tick) (Fact, error) {
	return s.RecordFact(ctx, entity, spacetime, AttrRetired, Bool(true), at)
}

// RawFacts lists the facts recorded for the entity in exactly the given
// spacetime, without inheritance, ordered by attribute then ValidFrom.
func (s *Store) RawFacts(ctx context.Context, entity, spacetime EntityID) (facts []Fact, err error) {
	ctx, end := startOperation(ctx, "get raw facts",
		entityAttr("chronos.entity", entity),
		entityAttr("chronos.spacetime", spacetime),
	)
	defer func() { end(err) }()

	err = s.view(ctx, "get raw facts", func(ctx context.Context, r Reader) error {
		if _, err := requireEntity(ctx, r, entity); err != nil {
			return err
		}
		if _, err := requireSpacetime(ctx, r, spacetime); err != nil {
			return err
		}
		var err error
		facts, err = r.Facts(ctx, entity, spacetime)
		return err
	})
	return facts, err
}
