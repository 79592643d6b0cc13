package neo4jengine

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/chronos-atlas/chronos"
	"github.com/chronos-atlas/chronos/internal/dbtest"
)

func TestBootstrapDatabase(t *testing.T) {
	d := dbtest.SetupNeo4j(t)
	ctx := context.Background()

	const database = "chronos-schema"
	// Bootstrapping an existing database changes nothing.
	for range 2 {
		if err := BootstrapDatabase(ctx, d, database); err != nil {
			t.Fatalf("BootstrapDatabase(%q) failed: %v", database, err)
		}
	}
	s := d.NewSession(ctx, neo4j.SessionConfig{DatabaseName: database})
	t.Cleanup(func() {
		if err := s.Close(ctx); err != nil {
			t.Error("Failed to close session:", err)
		}
	})

	t.Run("Constraints", func(t *testing.T) {
		got := showNames(ctx, t, s, "SHOW CONSTRAINTS YIELD name")
		want := []string{
			"chronos_entity_id",
			"chronos_fact_id",
			"chronos_project_canon",
			"chronos_project_root",
			"chronos_sequence_name",
		}
		if diff := cmp.Diff(want, got, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
			t.Errorf("constraints mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Indexes", func(t *testing.T) {
		got := showNames(ctx, t, s, "SHOW INDEXES YIELD name")
		for _, want := range []string{"chronos_entity_project", "chronos_fact_key"} {
			if !slices.Contains(got, want) {
				t.Errorf("index %q is missing from %q", want, got)
			}
		}
	})

	t.Run("SecondRootIsRejected", func(t *testing.T) {
		create := func() error {
			result, err := s.Run(ctx, `CREATE (:Entity {id: randomUUID(), project: 'twins', root_of: 'twins'})`, nil)
			if err != nil {
				return err
			}
			_, err = result.Consume(ctx)
			return err
		}
		if err := create(); err != nil {
			t.Fatal("Failed to create the first root:", err)
		}
		err := constraint(create(), "insert second root")
		if !errors.Is(err, chronos.ErrConstraintViolation) {
			t.Errorf("second root = %v, want %v", err, chronos.ErrConstraintViolation)
		}
	})
}

// showNames collects the name column of a SHOW statement, keeping the names
// that chronos owns.
func showNames(ctx context.Context, t *testing.T, s neo4j.SessionWithContext, query string) []string {
	t.Helper()
	result, err := s.Run(ctx, query+" WHERE name STARTS WITH 'chronos_' RETURN name", nil)
	if err != nil {
		t.Fatalf("%s failed: %v", query, err)
	}
	var names []string
	for result.Next(ctx) {
		name, err := getRecordProperty[string](result.Record(), "name")
		if err != nil {
			t.Fatalf("%s yields no name: %v", query, err)
		}
		names = append(names, name)
	}
	if err := result.Err(); err != nil {
		t.Fatalf("%s failed: %v", query, err)
	}
	return names
}

func TestBootstrapDatabaseNames(t *testing.T) {
	d := dbtest.SetupNeo4j(t)

	tests := []struct {
		name      string
		database  string
		wantPanic bool
	}{
		{name: "Empty", wantPanic: true},
		{name: "DefaultDatabase", database: "neo4j", wantPanic: true},
		{name: "SystemPrefix", database: "systemchronos", wantPanic: true},
		{name: "UnderscorePrefix", database: "_chronos", wantPanic: true},
		{name: "TooShort", database: "ab"},
		{name: "Underscore", database: "chronos_world"},
		{name: "Slash", database: "chronos/world"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); (r != nil) != tt.wantPanic {
					t.Errorf("BootstrapDatabase(%q) panic = %v, want panic %v", tt.database, r, tt.wantPanic)
				}
			}()
			if err := BootstrapDatabase(context.Background(), d, tt.database); err == nil {
				t.Errorf("BootstrapDatabase(%q) succeeded, want error", tt.database)
			}
		})
	}
}
