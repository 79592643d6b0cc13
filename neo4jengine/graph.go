package neo4jengine

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/chronos-atlas/chronos"
)

// reader implements chronos.Reader within a single neo4j transaction.
type reader struct {
	tx       neo4j.ManagedTransaction
	database string
}

func (r reader) Entity(ctx context.Context, id chronos.EntityID) (chronos.Entity, error) {
	node, ok, err := r.single(ctx, `MATCH (n:Entity {id: $id}) RETURN n`, map[string]any{
		"id": id.String(),
	})
	if err != nil || !ok {
		return chronos.Entity{}, notFound(err, ok)
	}
	return parseEntity(node)
}

func (r reader) Root(ctx context.Context, project chronos.ProjectID) (chronos.Entity, error) {
	node, ok, err := r.single(ctx, `MATCH (n:Entity {root_of: $project}) RETURN n`, map[string]any{
		"project": string(project),
	})
	if err != nil || !ok {
		return chronos.Entity{}, notFound(err, ok)
	}
	return parseEntity(node)
}

func (r reader) Entities(ctx context.Context, project chronos.ProjectID) ([]chronos.Entity, error) {
	return r.entities(ctx, `MATCH (n:Entity {project: $project}) RETURN n ORDER BY n.seq`, map[string]any{
		"project": string(project),
	})
}

func (r reader) Children(ctx context.Context, parent chronos.EntityID) ([]chronos.Entity, error) {
	return r.entities(ctx, `MATCH (n:Entity)-[:CHILD_OF]->(:Entity {id: $parent}) RETURN n ORDER BY n.seq`, map[string]any{
		"parent": parent.String(),
	})
}

func (r reader) entities(ctx context.Context, query string, params map[string]any) ([]chronos.Entity, error) {
	nodes, err := r.collect(ctx, query, params)
	if err != nil {
		return nil, err
	}
	entities := make([]chronos.Entity, len(nodes))
	for i, node := range nodes {
		if entities[i], err = parseEntity(node); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

func (r reader) Spacetime(ctx context.Context, id chronos.EntityID) (chronos.Spacetime, error) {
	node, ok, err := r.single(ctx, `MATCH (n:Spacetime {id: $id}) RETURN n`, map[string]any{
		"id": id.String(),
	})
	if err != nil || !ok {
		return chronos.Spacetime{}, notFound(err, ok)
	}
	return parseSpacetime(node)
}

func (r reader) Canon(ctx context.Context, project chronos.ProjectID) (chronos.Spacetime, error) {
	node, ok, err := r.single(ctx, `MATCH (n:Spacetime {canon_of: $project}) RETURN n`, map[string]any{
		"project": string(project),
	})
	if err != nil || !ok {
		return chronos.Spacetime{}, notFound(err, ok)
	}
	return parseSpacetime(node)
}

func (r reader) Spacetimes(ctx context.Context, project chronos.ProjectID) ([]chronos.Spacetime, error) {
	nodes, err := r.collect(ctx, `MATCH (n:Spacetime {project: $project}) RETURN n ORDER BY n.seq`, map[string]any{
		"project": string(project),
	})
	if err != nil {
		return nil, err
	}
	spacetimes := make([]chronos.Spacetime, len(nodes))
	for i, node := range nodes {
		if spacetimes[i], err = parseSpacetime(node); err != nil {
			return nil, err
		}
	}
	return spacetimes, nil
}

func (r reader) Facts(ctx context.Context, entity, spacetime chronos.EntityID) ([]chronos.Fact, error) {
	nodes, err := r.collect(ctx, `
		MATCH (n:Fact {entity: $entity, spacetime: $spacetime})
		RETURN n
		ORDER BY n.attribute, n.valid_from
	`, map[string]any{
		"entity":    entity.String(),
		"spacetime": spacetime.String(),
	})
	if err != nil {
		return nil, err
	}
	var facts []chronos.Fact
	for _, node := range nodes {
		f, err := parseFact(node)
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, nil
}

func (r reader) Attributes(ctx context.Context, entity, spacetime chronos.EntityID) ([]string, error) {
	result, err := r.tx.Run(ctx, `
		MATCH (n:Fact {entity: $entity, spacetime: $spacetime})
		RETURN DISTINCT n.attribute AS attribute
		ORDER BY attribute
	`, map[string]any{
		"entity":    entity.String(),
		"spacetime": spacetime.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("run cypher: %w", err)
	}
	var names []string
	for result.Next(ctx) {
		name, err := getRecordProperty[string](result.Record(), "attribute")
		if err != nil {
			return nil, fmt.Errorf("get attribute: %w", err)
		}
		names = append(names, name)
	}
	return names, result.Err()
}

func (r reader) Latest(ctx context.Context, entity, spacetime chronos.EntityID, attribute string, at chronos.Tick) (chronos.Fact, bool, error) {
	node, ok, err := r.single(ctx, `
		MATCH (n:Fact {entity: $entity, spacetime: $spacetime, attribute: $attribute})
		WHERE n.valid_from <= $at
		RETURN n
		ORDER BY n.valid_from DESC
		LIMIT 1
	`, map[string]any{
		"entity":    entity.String(),
		"spacetime": spacetime.String(),
		"attribute": attribute,
		"at":        int64(at),
	})
	if err != nil || !ok {
		return chronos.Fact{}, false, err
	}
	f, err := parseFact(node)
	if err != nil {
		return chronos.Fact{}, false, err
	}
	return f, true, nil
}

// single runs a query returning at most one node in column n.
func (r reader) single(ctx context.Context, query string, params map[string]any) (neo4j.Node, bool, error) {
	nodes, err := r.collect(ctx, query, params)
	switch {
	case err != nil:
		return neo4j.Node{}, false, err
	case len(nodes) == 0:
		return neo4j.Node{}, false, nil
	case len(nodes) > 1:
		return neo4j.Node{}, false, fmt.Errorf("query matched %d nodes, want at most 1", len(nodes))
	}
	return nodes[0], true, nil
}

// collect runs a query returning nodes in column n.
func (r reader) collect(ctx context.Context, query string, params map[string]any) ([]neo4j.Node, error) {
	result, err := r.tx.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("run cypher: %w", err)
	}
	var nodes []neo4j.Node
	for result.Next(ctx) {
		node, err := getRecordProperty[neo4j.Node](result.Record(), "n")
		if err != nil {
			return nil, fmt.Errorf("get n: %w", err)
		}
		nodes = append(nodes, node)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return nodes, nil
}

// notFound returns err, or chronos.ErrNotFound when a lookup found nothing.
func notFound(err error, found bool) error {
	if err == nil && !found {
		return chronos.ErrNotFound
	}
	return err
}

// writer implements chronos.Tx within a single neo4j write transaction.
type writer struct {
	reader
}

func (w writer) InsertEntity(ctx context.Context, e chronos.Entity) (chronos.Entity, error) {
	if e.IsRoot() {
		if _, err := w.Root(ctx, e.Project); err == nil {
			return chronos.Entity{}, fmt.Errorf("second root of project %q: %w", e.Project, chronos.ErrConstraintViolation)
		} else if !isNotFound(err) {
			return chronos.Entity{}, err
		}
	}

	params := map[string]any{
		"id":      e.ID.String(),
		"project": string(e.Project),
		"type":    string(e.Type),
		"parent":  nil,
		"root_of": nil,
	}
	if e.IsRoot() {
		params["root_of"] = string(e.Project)
	} else {
		params["parent"] = e.Parent.String()
	}

	// The sequence node is locked by the increment until the transaction ends,
	// so concurrent commands obtain distinct, increasing numbers.
	node, ok, err := w.single(ctx, `
		MERGE (c:Sequence {name: 'entity'})
		ON CREATE SET c.value = 0
		SET c.value = c.value + 1
		CREATE (n:Entity {id: $id, project: $project, type: $type, seq: c.value})
		SET n.parent = $parent, n.root_of = $root_of
		WITH n
		OPTIONAL MATCH (p:Entity {id: $parent})
		FOREACH (x IN CASE WHEN p IS NULL THEN [] ELSE [1] END | CREATE (n)-[:CHILD_OF]->(p))
		RETURN n
	`, params)
	if err != nil {
		return chronos.Entity{}, constraint(err, "insert entity %v", e.ID)
	}
	if !ok {
		panicWithCorruptedGraph(ctx, w.database, fmt.Sprintf("insert entity %v created no node", e.ID))
	}
	return parseEntity(node)
}

func (w writer) InsertSpacetime(ctx context.Context, st chronos.Spacetime) (chronos.Spacetime, error) {
	if st.IsCanonical() {
		if _, err := w.Canon(ctx, st.Project); err == nil {
			return chronos.Spacetime{}, fmt.Errorf("second canon of project %q: %w", st.Project, chronos.ErrConstraintViolation)
		} else if !isNotFound(err) {
			return chronos.Spacetime{}, err
		}
	}

	if _, err := w.InsertEntity(ctx, st.Entity); err != nil {
		return chronos.Spacetime{}, err
	}

	params := map[string]any{
		"id":          st.ID.String(),
		"name":        st.Name,
		"branch_time": int64(st.BranchTime),
		"parent":      nil,
		"canon_of":    nil,
	}
	if st.IsCanonical() {
		params["canon_of"] = string(st.Project)
	} else {
		params["parent"] = st.ParentSpacetime.String()
	}

	node, ok, err := w.single(ctx, `
		MATCH (n:Entity {id: $id})
		SET n:Spacetime, n.name = $name, n.branch_time = $branch_time,
		    n.parent_spacetime = $parent, n.canon_of = $canon_of
		WITH n
		OPTIONAL MATCH (p:Spacetime {id: $parent})
		FOREACH (x IN CASE WHEN p IS NULL THEN [] ELSE [1] END | CREATE (n)-[:BRANCHED_FROM {at: $branch_time}]->(p))
		RETURN n
	`, params)
	if err != nil {
		return chronos.Spacetime{}, constraint(err, "insert spacetime %v", st.ID)
	}
	if !ok {
		panicWithCorruptedGraph(ctx, w.database, fmt.Sprintf("spacetime %v lost its entity node", st.ID))
	}
	return parseSpacetime(node)
}

func (w writer) InsertFact(ctx context.Context, f chronos.Fact) error {
	kind, text, err := chronos.EncodeValue(f.Value)
	if err != nil {
		return err
	}
	id, _ := f.ID.MarshalText()

	result, err := w.tx.Run(ctx, `
		MATCH (e:Entity {id: $entity}), (s:Spacetime {id: $spacetime})
		CREATE (n:Fact {
			id: $id, entity: $entity, spacetime: $spacetime, attribute: $attribute,
			value_kind: $value_kind, value: $value, valid_from: $valid_from
		})
		CREATE (n)-[:ABOUT]->(e), (n)-[:IN]->(s)
		RETURN count(n) AS facts
	`, map[string]any{
		"id":         string(id),
		"entity":     f.Entity.String(),
		"spacetime":  f.Spacetime.String(),
		"attribute":  f.Attribute,
		"value_kind": kind.String(),
		"value":      text,
		"valid_from": int64(f.ValidFrom),
	})
	if err != nil {
		return constraint(err, "insert %v", f.ID)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return constraint(err, "insert %v", f.ID)
	}
	facts, err := getRecordProperty[int64](record, "facts")
	if err != nil {
		return fmt.Errorf("get facts: %w", err)
	}
	// The fact log checks the entity and spacetime within the same transaction,
	// so anything but a single node means the graph lost its integrity.
	if facts != 1 {
		panicWithCorruptedGraph(ctx, w.database, fmt.Sprintf("insert %v created %v nodes instead of 1", f.ID, facts))
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, chronos.ErrNotFound)
}

func parseEntity(node neo4j.Node) (chronos.Entity, error) {
	var e chronos.Entity
	id, err := getNodeProperty[string](node, "id")
	if err != nil {
		return e, fmt.Errorf("get id: %w", err)
	}
	if e.ID, err = chronos.ParseEntityID(id); err != nil {
		return e, fmt.Errorf("corrupt entity node %v: %w", node.ElementId, err)
	}
	project, err := getNodeProperty[string](node, "project")
	if err != nil {
		return e, fmt.Errorf("get project: %w", err)
	}
	typ, err := getNodeProperty[string](node, "type")
	if err != nil {
		return e, fmt.Errorf("get type: %w", err)
	}
	seq, err := getNodeProperty[int64](node, "seq")
	if err != nil {
		return e, fmt.Errorf("get seq: %w", err)
	}
	e.Project, e.Type, e.Seq = chronos.ProjectID(project), chronos.EntityType(typ), uint64(seq)

	parent, ok, err := lookupNodeProperty[string](node, "parent")
	if err != nil {
		return e, fmt.Errorf("get parent: %w", err)
	}
	if ok {
		if e.Parent, err = chronos.ParseEntityID(parent); err != nil {
			return e, fmt.Errorf("corrupt parent of %v: %w", e.ID, err)
		}
	}
	return e, nil
}

func parseSpacetime(node neo4j.Node) (chronos.Spacetime, error) {
	var (
		st  chronos.Spacetime
		err error
	)
	if st.Entity, err = parseEntity(node); err != nil {
		return st, err
	}
	if st.Name, err = getNodeProperty[string](node, "name"); err != nil {
		return st, fmt.Errorf("get name: %w", err)
	}
	branchTime, err := getNodeProperty[int64](node, "branch_time")
	if err != nil {
		return st, fmt.Errorf("get branch_time: %w", err)
	}
	st.BranchTime = chronos.Tick(branchTime)

	parent, ok, err := lookupNodeProperty[string](node, "parent_spacetime")
	if err != nil {
		return st, fmt.Errorf("get parent_spacetime: %w", err)
	}
	if ok {
		if st.ParentSpacetime, err = chronos.ParseEntityID(parent); err != nil {
			return st, fmt.Errorf("corrupt parent of spacetime %v: %w", st.ID, err)
		}
	}
	return st, nil
}

func parseFact(node neo4j.Node) (chronos.Fact, error) {
	var f chronos.Fact
	props := make(map[string]string, 6)
	for _, key := range []string{"id", "entity", "spacetime", "attribute", "value_kind", "value"} {
		v, err := getNodeProperty[string](node, key)
		if err != nil {
			return f, fmt.Errorf("get %v: %w", key, err)
		}
		props[key] = v
	}
	validFrom, err := getNodeProperty[int64](node, "valid_from")
	if err != nil {
		return f, fmt.Errorf("get valid_from: %w", err)
	}

	if err := f.ID.UnmarshalText([]byte(props["id"])); err != nil {
		return f, fmt.Errorf("corrupt fact node %v: %w", node.ElementId, err)
	}
	if f.Entity, err = chronos.ParseEntityID(props["entity"]); err != nil {
		return f, fmt.Errorf("corrupt entity of %v: %w", f.ID, err)
	}
	if f.Spacetime, err = chronos.ParseEntityID(props["spacetime"]); err != nil {
		return f, fmt.Errorf("corrupt spacetime of %v: %w", f.ID, err)
	}
	kind, err := chronos.ParseKind(props["value_kind"])
	if err != nil {
		return f, fmt.Errorf("corrupt value of %v: %w", f.ID, err)
	}
	if f.Value, err = chronos.DecodeValue(kind, props["value"]); err != nil {
		return f, fmt.Errorf("corrupt value of %v: %w", f.ID, err)
	}
	f.Attribute = props["attribute"]
	f.ValidFrom = chronos.Tick(validFrom)
	return f, nil
}

// The recordProperty interface defines generic constraints for the values
// supported by getRecordProperty and getNodeProperty.
//
// These type constraints protect against unsupported neo4j types like int,
// uint32, etc. When a new type is necessary, add it to the list here.
type recordProperty interface {
	int64 | string | neo4j.Node
}

func getRecordProperty[T recordProperty](record *neo4j.Record, key string) (value T, err error) {
	prop, exists := record.Get(key)
	if !exists {
		return value, errPropertyNotFound
	}
	v, ok := prop.(T)
	if !ok {
		return value, unexpectedPropertyTypeError{Type: reflect.TypeOf(prop)}
	}
	return v, nil
}

func getNodeProperty[T recordProperty](node neo4j.Node, key string) (value T, err error) {
	value, ok, err := lookupNodeProperty[T](node, key)
	if err == nil && !ok {
		err = errPropertyNotFound
	}
	return value, err
}

// lookupNodeProperty is getNodeProperty for optional properties: a missing
// property is not an error.
func lookupNodeProperty[T recordProperty](node neo4j.Node, key string) (value T, ok bool, err error) {
	prop, exists := node.Props[key]
	if !exists || prop == nil {
		return value, false, nil
	}
	v, ok := prop.(T)
	if !ok {
		return value, false, unexpectedPropertyTypeError{Type: reflect.TypeOf(prop)}
	}
	return v, true, nil
}
