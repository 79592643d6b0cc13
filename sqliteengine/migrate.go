package sqliteengine

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/danielorbach/go-component"
	"github.com/pressly/goose/v3"
)

// applyMigrations runs the goose migrations of fsys that were not applied yet,
// in version order. Each file runs in its own transaction together with its
// record in the goose version table, so a failing file leaves no trace and is
// attempted again by the next call.
func applyMigrations(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	logger := component.Logger(ctx)
	for _, r := range results {
		logger.Info("Applied migration",
			slog.String("migration", r.Source.Path),
			slog.Int64("version", r.Source.Version),
			slog.Duration("duration", r.Duration),
		)
	}
	return nil
}
