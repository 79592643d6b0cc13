// Package sqliteengine implements a chronos.Engine on a local SQLite database,
// using the pure-Go modernc.org/sqlite driver.
//
// The engine holds a single connection: SQLite supports a single writer, and
// every command runs in one SQL transaction that is committed (with
// synchronous=FULL) before Apply returns. The schema is created by embedded
// migrations applied from Init.
package sqliteengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/danielorbach/go-component"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/chronos-atlas/chronos"
	"github.com/chronos-atlas/chronos/sqliteengine/migrations"
)

var tracer = otel.Tracer("github.com/chronos-atlas/chronos/sqliteengine")

// Engine is a chronos.Engine backed by a SQLite database file.
type Engine struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the SQLite database at path and configures its
// connection. Call Init (or chronos.Store.Init) before use to apply the
// schema.
func Open(ctx context.Context, path string) (*Engine, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqliteengine: database path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqliteengine: open database: %w", err)
	}

	// Limit to one connection. SQLite only supports a single writer; using one
	// connection also means the PRAGMAs below hold for every transaction.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqliteengine: %s: %w", pragma, err)
		}
	}
	return &Engine{db: db, path: path}, nil
}

// Init applies the embedded migrations that were not applied yet.
func (e *Engine) Init(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Init", trace.WithAttributes(
		attribute.String("sqlite.path", e.path),
	))
	defer span.End()

	if err := applyMigrations(ctx, e.db, migrations.FS); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Apply runs cmd in a SQL transaction, committed if and only if cmd succeeds.
func (e *Engine) Apply(ctx context.Context, cmd chronos.Command) (err error) {
	ctx, span := tracer.Start(ctx, "Apply", trace.WithAttributes(
		attribute.String("sqlite.path", e.path),
	))
	defer span.End()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				component.Logger(ctx).Error("Failed to roll back transaction", "error", rbErr)
			}
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err := cmd(ctx, writer{reader{tx}}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// View runs q in a SQL transaction that is always rolled back.
func (e *Engine) View(ctx context.Context, q chronos.Query) error {
	ctx, span := tracer.Start(ctx, "View", trace.WithAttributes(
		attribute.String("sqlite.path", e.path),
	))
	defer span.End()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := q(ctx, reader{tx}); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// reader implements chronos.Reader on a transaction.
type reader struct {
	tx *sql.Tx
}

const entityColumns = `e.seq, e.id, e.project_id, e.type, e.parent_id`

const spacetimeColumns = entityColumns + `, s.name, s.parent_spacetime_id, s.branch_time`

const spacetimeFrom = `spacetimes s JOIN entities e ON e.id = s.id`

const factColumns = `id, entity_id, spacetime_id, attribute, value_kind, value, valid_from`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner, extra ...any) (chronos.Entity, error) {
	var (
		seq              int64
		id, project, typ string
		parent           sql.NullString
		entity           chronos.Entity
		err              error
	)
	dest := append([]any{&seq, &id, &project, &typ, &parent}, extra...)
	if err := row.Scan(dest...); err != nil {
		return chronos.Entity{}, err
	}
	entity.Seq = uint64(seq)
	entity.Project = chronos.ProjectID(project)
	entity.Type = chronos.EntityType(typ)
	if entity.ID, err = chronos.ParseEntityID(id); err != nil {
		return chronos.Entity{}, fmt.Errorf("corrupt entity row %d: %w", seq, err)
	}
	if parent.Valid {
		if entity.Parent, err = chronos.ParseEntityID(parent.String); err != nil {
			return chronos.Entity{}, fmt.Errorf("corrupt parent of entity %v: %w", entity.ID, err)
		}
	}
	return entity, nil
}

func scanSpacetime(row scanner) (chronos.Spacetime, error) {
	var (
		st         chronos.Spacetime
		parent     sql.NullString
		branchTime int64
		err        error
	)
	st.Entity, err = scanEntity(row, &st.Name, &parent, &branchTime)
	if err != nil {
		return chronos.Spacetime{}, err
	}
	st.BranchTime = chronos.Tick(branchTime)
	if parent.Valid {
		if st.ParentSpacetime, err = chronos.ParseEntityID(parent.String); err != nil {
			return chronos.Spacetime{}, fmt.Errorf("corrupt parent of spacetime %v: %w", st.ID, err)
		}
	}
	return st, nil
}

func scanFact(row scanner) (chronos.Fact, error) {
	var (
		f                     chronos.Fact
		id, entity, spacetime string
		kind, text            string
		validFrom             int64
	)
	if err := row.Scan(&id, &entity, &spacetime, &f.Attribute, &kind, &text, &validFrom); err != nil {
		return chronos.Fact{}, err
	}
	if err := f.ID.UnmarshalText([]byte(id)); err != nil {
		return chronos.Fact{}, fmt.Errorf("corrupt fact id %q: %w", id, err)
	}
	var err error
	if f.Entity, err = chronos.ParseEntityID(entity); err != nil {
		return chronos.Fact{}, fmt.Errorf("corrupt entity of %v: %w", f.ID, err)
	}
	if f.Spacetime, err = chronos.ParseEntityID(spacetime); err != nil {
		return chronos.Fact{}, fmt.Errorf("corrupt spacetime of %v: %w", f.ID, err)
	}
	k, err := chronos.ParseKind(kind)
	if err != nil {
		return chronos.Fact{}, fmt.Errorf("corrupt value of %v: %w", f.ID, err)
	}
	if f.Value, err = chronos.DecodeValue(k, text); err != nil {
		return chronos.Fact{}, fmt.Errorf("corrupt value of %v: %w", f.ID, err)
	}
	f.ValidFrom = chronos.Tick(validFrom)
	return f, nil
}

// notFound maps sql.ErrNoRows onto chronos.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return chronos.ErrNotFound
	}
	return err
}

func (r reader) Entity(ctx context.Context, id chronos.EntityID) (chronos.Entity, error) {
	row := r.tx.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities e WHERE e.id = ?`, id.String())
	e, err := scanEntity(row)
	return e, notFound(err)
}

func (r reader) Root(ctx context.Context, project chronos.ProjectID) (chronos.Entity, error) {
	row := r.tx.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities e WHERE e.project_id = ? AND e.parent_id IS NULL`, string(project))
	e, err := scanEntity(row)
	return e, notFound(err)
}

func (r reader) Entities(ctx context.Context, project chronos.ProjectID) ([]chronos.Entity, error) {
	return r.entities(ctx, `SELECT `+entityColumns+` FROM entities e WHERE e.project_id = ? ORDER BY e.seq`, string(project))
}

func (r reader) Children(ctx context.Context, parent chronos.EntityID) ([]chronos.Entity, error) {
	return r.entities(ctx, `SELECT `+entityColumns+` FROM entities e WHERE e.parent_id = ? ORDER BY e.seq`, parent.String())
}

func (r reader) entities(ctx context.Context, query string, args ...any) ([]chronos.Entity, error) {
	rows, err := r.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entities := make([]chronos.Entity, 0)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func (r reader) Spacetime(ctx context.Context, id chronos.EntityID) (chronos.Spacetime, error) {
	row := r.tx.QueryRowContext(ctx, `SELECT `+spacetimeColumns+` FROM `+spacetimeFrom+` WHERE s.id = ?`, id.String())
	st, err := scanSpacetime(row)
	return st, notFound(err)
}

func (r reader) Canon(ctx context.Context, project chronos.ProjectID) (chronos.Spacetime, error) {
	row := r.tx.QueryRowContext(ctx, `SELECT `+spacetimeColumns+` FROM `+spacetimeFrom+` WHERE s.project_id = ? AND s.parent_spacetime_id IS NULL`, string(project))
	st, err := scanSpacetime(row)
	return st, notFound(err)
}

func (r reader) Spacetimes(ctx context.Context, project chronos.ProjectID) ([]chronos.Spacetime, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT `+spacetimeColumns+` FROM `+spacetimeFrom+` WHERE s.project_id = ? ORDER BY e.seq`, string(project))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	spacetimes := make([]chronos.Spacetime, 0)
	for rows.Next() {
		st, err := scanSpacetime(rows)
		if err != nil {
			return nil, err
		}
		spacetimes = append(spacetimes, st)
	}
	return spacetimes, rows.Err()
}

func (r reader) Facts(ctx context.Context, entity, spacetime chronos.EntityID) ([]chronos.Fact, error) {
	rows, err := r.tx.QueryContext(ctx,
		`SELECT `+factColumns+` FROM facts WHERE entity_id = ? AND spacetime_id = ? ORDER BY attribute, valid_from`,
		entity.String(), spacetime.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []chronos.Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

func (r reader) Attributes(ctx context.Context, entity, spacetime chronos.EntityID) ([]string, error) {
	rows, err := r.tx.QueryContext(ctx,
		`SELECT DISTINCT attribute FROM facts WHERE entity_id = ? AND spacetime_id = ? ORDER BY attribute`,
		entity.String(), spacetime.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r reader) Latest(ctx context.Context, entity, spacetime chronos.EntityID, attribute string, at chronos.Tick) (chronos.Fact, bool, error) {
	row := r.tx.QueryRowContext(ctx,
		`SELECT `+factColumns+` FROM facts
		 WHERE entity_id = ? AND spacetime_id = ? AND attribute = ? AND valid_from <= ?
		 ORDER BY valid_from DESC
		 LIMIT 1`,
		entity.String(), spacetime.String(), attribute, int64(at),
	)
	f, err := scanFact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return chronos.Fact{}, false, nil
	}
	if err != nil {
		return chronos.Fact{}, false, err
	}
	return f, true, nil
}

// writer implements chronos.Tx on a transaction.
type writer struct {
	reader
}

func (w writer) InsertEntity(ctx context.Context, e chronos.Entity) (chronos.Entity, error) {
	var parent sql.NullString
	if !e.IsRoot() {
		parent = sql.NullString{String: e.Parent.String(), Valid: true}
	}
	res, err := w.tx.ExecContext(ctx,
		`INSERT INTO entities (id, project_id, type, parent_id) VALUES (?, ?, ?, ?)`,
		e.ID.String(), string(e.Project), string(e.Type), parent,
	)
	if err != nil {
		return chronos.Entity{}, constraint(err, "insert entity %v", e.ID)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return chronos.Entity{}, fmt.Errorf("sequence of entity %v: %w", e.ID, err)
	}
	e.Seq = uint64(seq)
	return e, nil
}

func (w writer) InsertSpacetime(ctx context.Context, st chronos.Spacetime) (chronos.Spacetime, error) {
	if st.IsCanonical() {
		// Check first so that a second canon does not consume an entity row
		// before the unique index fires.
		if _, err := w.Canon(ctx, st.Project); err == nil {
			return chronos.Spacetime{}, fmt.Errorf("second canon of project %q: %w", st.Project, chronos.ErrConstraintViolation)
		} else if !errors.Is(err, chronos.ErrNotFound) {
			return chronos.Spacetime{}, err
		}
	}

	e, err := w.InsertEntity(ctx, st.Entity)
	if err != nil {
		return chronos.Spacetime{}, err
	}
	st.Entity = e

	var parent sql.NullString
	if !st.IsCanonical() {
		parent = sql.NullString{String: st.ParentSpacetime.String(), Valid: true}
	}
	_, err = w.tx.ExecContext(ctx,
		`INSERT INTO spacetimes (id, project_id, name, parent_spacetime_id, branch_time) VALUES (?, ?, ?, ?, ?)`,
		st.ID.String(), string(st.Project), st.Name, parent, int64(st.BranchTime),
	)
	if err != nil {
		return chronos.Spacetime{}, constraint(err, "insert spacetime %v", st.ID)
	}
	return st, nil
}

func (w writer) InsertFact(ctx context.Context, f chronos.Fact) error {
	kind, text, err := chronos.EncodeValue(f.Value)
	if err != nil {
		return err
	}
	id, _ := f.ID.MarshalText()
	_, err = w.tx.ExecContext(ctx,
		`INSERT INTO facts (`+factColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(id), f.Entity.String(), f.Spacetime.String(), f.Attribute, kind.String(), text, int64(f.ValidFrom),
	)
	if err != nil {
		return constraint(err, "insert %v", f.ID)
	}
	return nil
}

// constraint wraps err, mapping unique and primary key violations onto
// chronos.ErrConstraintViolation.
func constraint(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return fmt.Errorf("%s: %w: %v", msg, chronos.ErrConstraintViolation, err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
