package neo4jengine

import (
	"context"
	"fmt"
	"strings"

	"github.com/danielorbach/go-component"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// schema lists the constraints and indexes of a chronos graph. Each statement
// is idempotent.
//
// Uniqueness constraints ignore nodes lacking the property, so root_of and
// canon_of, which are set only on the root and canon of each project, limit
// every project to a single root and a single canon.
var schema = []string{
	`CREATE CONSTRAINT chronos_entity_id IF NOT EXISTS FOR (n:Entity) REQUIRE n.id IS UNIQUE`,
	`CREATE CONSTRAINT chronos_project_root IF NOT EXISTS FOR (n:Entity) REQUIRE n.root_of IS UNIQUE`,
	`CREATE CONSTRAINT chronos_project_canon IF NOT EXISTS FOR (n:Spacetime) REQUIRE n.canon_of IS UNIQUE`,
	`CREATE CONSTRAINT chronos_fact_id IF NOT EXISTS FOR (n:Fact) REQUIRE n.id IS UNIQUE`,
	`CREATE CONSTRAINT chronos_sequence_name IF NOT EXISTS FOR (n:Sequence) REQUIRE n.name IS UNIQUE`,
	`CREATE INDEX chronos_entity_project IF NOT EXISTS FOR (n:Entity) ON (n.project, n.seq)`,
	`CREATE INDEX chronos_fact_key IF NOT EXISTS FOR (n:Fact) ON (n.entity, n.spacetime, n.attribute, n.valid_from)`,
}

// BootstrapDatabase creates the named database, unless it exists, along with
// the constraints and indexes of a chronos graph. Creating databases requires
// the enterprise edition of Neo4j; on the community edition use the default
// database with Engine.Init instead.
//
// To execute queries against the created database, open a session with the
// database name as the default database. For example:
//
//	s := d.NewSession(ctx, neo4j.SessionConfig{DatabaseName: name})
//	defer func() { _ = s.Close(ctx) }()
//	... use s ...
//
// This function is idempotent.
func BootstrapDatabase(ctx context.Context, d neo4j.DriverWithContext, name string) error {
	if err := createDatabase(ctx, d, name); err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	return createSchema(ctx, d, name)
}

// createSchema runs every statement of the schema in its own auto-commit
// transaction, as Neo4j does not mix schema changes with other statements.
func createSchema(ctx context.Context, d neo4j.DriverWithContext, database string) error {
	logger := component.Logger(ctx).With("neo4j.database", database)

	s := d.NewSession(ctx, neo4j.SessionConfig{DatabaseName: database, AccessMode: neo4j.AccessModeWrite})
	defer func() {
		if err := s.Close(ctx); err != nil {
			logger.Error("Failed to close neo4j session", "error", err)
		}
	}()

	for _, statement := range schema {
		result, err := s.Run(ctx, statement, nil)
		if err != nil {
			return fmt.Errorf("create schema: %v: %w", statement, err)
		}
		if _, err := result.Consume(ctx); err != nil {
			return fmt.Errorf("create schema: %v: %w", statement, err)
		}
	}
	logger.Debug("Ensured chronos schema", "statements", len(schema))
	return nil
}

func createDatabase(ctx context.Context, d neo4j.DriverWithContext, name string) error {
	if name == "" {
		panic("neo4jengine: database name must not be empty")
	}
	if name == "neo4j" {
		panic("neo4jengine: database name must not be neo4j: reserved for the default database")
	}
	if strings.HasPrefix(name, "system") || strings.HasPrefix(name, "_") {
		panic("neo4jengine: Names that begin with an underscore and with the prefix system are reserved for internal use")
	}

	s := d.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() { _ = s.Close(ctx) }()

	result, err := s.Run(ctx, `CREATE DATABASE $name IF NOT EXISTS WAIT`, map[string]any{
		"name": name,
	})
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}
