package neo4jengine

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/danielorbach/go-component"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/chronos-atlas/chronos"
)

// Engine stores chronos projects in a Neo4j graph.
//
// Every entity is an :Entity node linked to its parent by a CHILD_OF
// relationship; spacetimes carry the additional :Spacetime label and a
// BRANCHED_FROM relationship to their parent spacetime. Facts are :Fact nodes
// linked to their entity (ABOUT) and spacetime (IN). Identifiers are kept as
// node properties so that every lookup goes through a uniqueness constraint or
// an index created by Init.
//
// Each command executes in its own managed write transaction, which is rolled
// back should the command fail. Each query executes in its own managed read
// transaction. Queries never overlap commands; see phaseMutex.
type Engine struct {
	driver   neo4j.DriverWithContext // Connection to the neo4j server/cluster.
	database string                  // Target database name that identifies the specific underlying neo4j graph.
	txMutex  phaseMutex
}

// NewEngine returns an Engine using the given database as the underlying neo4j
// graph. Call Init (or chronos.Store.Init) before use.
func NewEngine(driver neo4j.DriverWithContext, database string) *Engine {
	return &Engine{
		driver:   driver,
		database: database,
	}
}

// Init creates the constraints and indexes chronos relies on in the engine's
// database, which must already exist. It is idempotent.
func (e *Engine) Init(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Init", trace.WithAttributes(
		attribute.String("neo4j.database", e.database),
	))
	defer span.End()

	if err := createSchema(ctx, e.driver, e.database); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Apply opens a new write transaction and passes a chronos.Tx that executes
// Cypher queries within that transaction to the given command.
//
// If the command returns a non-nil error, the transaction is rolled back and
// the error is returned to the caller of Apply. The driver may retry the
// command on transient failures, so commands must not keep state across calls.
//
// The function panics if the records returned by a Cypher query do not have
// the shape the surrounding code expects, which only happens when a developer
// changed a query without care, or when the graph has been corrupted.
func (e *Engine) Apply(ctx context.Context, cmd chronos.Command) (err error) {
	ctx, span := tracer.Start(ctx, "Apply", trace.WithAttributes(
		attribute.String("neo4j.database", e.database),
	))
	defer span.End()
	logger := component.Logger(ctx).With("neo4j.database", e.database)

	// A new session for every command keeps session-specific failures from
	// leaking into subsequent operations.
	s := e.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: e.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer func() {
		if err := s.Close(ctx); err != nil {
			logger.Error("Failed to close session", "error", err, "mode", "write")
		}
	}()

	e.txMutex.WLock()
	defer e.txMutex.WUnlock()

	_, err = s.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, cmd(ctx, writer{reader{tx: tx, database: e.database}})
	})
	return e.check(ctx, span, err)
}

// View opens a new read transaction and passes a chronos.Reader scoped to it
// to the given query. It panics under the same conditions as Apply.
func (e *Engine) View(ctx context.Context, q chronos.Query) (err error) {
	ctx, span := tracer.Start(ctx, "View", trace.WithAttributes(
		attribute.String("neo4j.database", e.database),
	))
	defer span.End()

	s := e.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: e.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer func() {
		if err := s.Close(ctx); err != nil {
			component.Logger(ctx).Error("Failed to close session", "error", err, "mode", "read")
		}
	}()

	e.txMutex.RLock()
	defer e.txMutex.RUnlock()

	_, err = s.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, q(ctx, reader{tx: tx, database: e.database})
	})
	return e.check(ctx, span, err)
}

// check translates the outcome of a managed transaction.
func (e *Engine) check(ctx context.Context, span trace.Span, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, errPropertyNotFound) || errors.As(err, &unexpectedPropertyTypeError{}):
		component.Logger(ctx).Error("A Cypher query was modified without care", "error", err)
		panic(fmt.Errorf("seek developer attention: neo4j cypher query: %w", err))
	}
	span.SetStatus(codes.Error, err.Error())
	if isTaxonomyError(err) {
		return err
	}
	return fmt.Errorf("neo4j execute: %w", err)
}

func isTaxonomyError(err error) bool {
	return errors.Is(err, chronos.ErrNotFound) ||
		errors.Is(err, chronos.ErrConstraintViolation) ||
		errors.Is(err, chronos.ErrInvalidValue) ||
		errors.Is(err, chronos.ErrCycleDetected)
}

// A errPropertyNotFound occurs when a property of a record or node is missing.
//
// When encountering this error, it most likely occurs when changing a Cypher
// query without modifying the surrounding code properly. Expect a panic
// eventually.
var errPropertyNotFound = errors.New("property not found")

// An unexpectedPropertyTypeError occurs when a property of a record or node has
// a runtime type that is different from the expected type. The error message
// contains the effective type of the property at runtime.
//
// Expect a panic eventually.
type unexpectedPropertyTypeError struct {
	Type reflect.Type // Effective type encountered at runtime.
}

func (e unexpectedPropertyTypeError) Error() string {
	if e.Type == nil {
		return "unexpected property type: nil"
	}
	return "unexpected property type: " + e.Type.String()
}

// panicWithCorruptedGraph stops all operations on a graph that violates what
// chronos writes, after emitting logs, traces and metrics about it.
func panicWithCorruptedGraph(ctx context.Context, database, reason string) {
	component.Logger(ctx).ErrorContext(ctx, "Encountered corrupted neo4j graph", "error", reason, "neo4j.database", database)
	trace.SpanFromContext(ctx).SetStatus(codes.Error, reason)
	corruptedGraphCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("neo4j.database", database),
	))
	panic(fmt.Errorf("neo4j graph violates chronos invariants: %v", reason))
}

// constraintValidationFailed is the status code of a write rejected by a
// uniqueness constraint.
const constraintValidationFailed = "Neo.ClientError.Schema.ConstraintValidationFailed"

// constraint wraps err, mapping uniqueness violations onto
// chronos.ErrConstraintViolation.
func constraint(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) && neoErr.Code == constraintValidationFailed {
		return fmt.Errorf("%s: %w: %v", msg, chronos.ErrConstraintViolation, neoErr.Msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
