package chronos_test

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielorbach/go-component"
	"gocloud.dev/pubsub"

	"github.com/chronos-atlas/chronos"
	"github.com/chronos-atlas/chronos/memengine"
)

func Example() {
	ctx := context.Background()
	store := chronos.New(memengine.New())

	// Every project starts with a root universe and its canonical spacetime.
	b, err := store.BootstrapProject(ctx, "tolkien", "Arda")
	if err != nil {
		panic(err)
	}
	frodo, err := store.CreateEntity(ctx, "tolkien", chronos.TypeCharacter, b.Universe.ID)
	if err != nil {
		panic(err)
	}
	if _, err := store.RecordFact(ctx, frodo.ID, b.Canon.ID, chronos.AttrName, chronos.String("Frodo"), 0); err != nil {
		panic(err)
	}
	if _, err := store.RecordFact(ctx, frodo.ID, b.Canon.ID, chronos.AttrStatus, chronos.String("dead"), 200); err != nil {
		panic(err)
	}

	// A divergent spacetime inherits everything canon knew up to tick 100.
	shire, err := store.CreateSpacetime(ctx, "tolkien", "Shire Forever", b.Canon.ID, 100)
	if err != nil {
		panic(err)
	}

	for _, st := range []chronos.Spacetime{b.Canon, shire} {
		name, _, err := store.Name(ctx, frodo.ID, st.ID, 300)
		if err != nil {
			panic(err)
		}
		status, err := store.Status(ctx, frodo.ID, st.ID, 300)
		if err != nil {
			panic(err)
		}
		fmt.Printf("%s in %s at 300: %s\n", name, st.Name, status)
	}
	// Output:
	// Frodo in Canon at 300: dead
	// Frodo in Shire Forever at 300: alive
}

// The following example demonstrates the flow of using TrackAttribute to keep
// the names of a project up to date. This code is for illustration purposes
// only and is not meant to be executed as is.
func ExampleTrackAttribute() {
	// Normally, a component is given a linker that is used to open an interest
	// in the change feed of a Store. For this example, we assume the outcome of
	// that process is stored at the following variables.
	var (
		store   *chronos.Store
		changes *pubsub.Subscription
		canon   chronos.EntityID
	)

	names := chronos.NewAttributeView(chronos.AttrName, canon, chronos.Forever)
	component.RunProc(func(l *component.L) {
		if err := names.Load(l.Context(), store, "tolkien"); err != nil {
			l.Fatal(err)
		}
		l.Fork("track names", chronos.TrackAttribute(names, store, changes))
		l.Go("something to do", func(l *component.L) {
			for id, name := range names.All() {
				l.Logf("Entity %v is named %v", id, name)
			}
		})
	})
}

// ExampleWatch is an example [component.Descriptor] of a component that
// follows the change feed of a Store.
func ExampleWatch() {
	changedInterest := "chronos.changed"

	d := &component.Descriptor{
		Name: "chronos-auditor",
		Doc:  "....",
		Bootstrap: func(l *component.L, target component.Linker, options any) error {
			logger := component.Logger(l.Context())

			logger.Debug("Opening interest subscription...", slog.String("topic-name", changedInterest))
			changes, err := target.LinkInterest(l.GraceContext(), changedInterest)
			if err != nil {
				return fmt.Errorf("open interest %q: %w", changedInterest, err)
			}
			l.CleanupBackground(changes.Shutdown)

			l.Fork("audit", chronos.Watch(changes, func(ctx context.Context, c chronos.Changed) error {
				component.Logger(ctx).Info("Store changed",
					slog.String("project", string(c.Project)),
					slog.Any("subject", c.Subject()),
					slog.Time("timestamp", c.Timestamp),
				)
				return nil
			}))
			return nil
		},
		Interests: []string{changedInterest},
	}

	fmt.Print(d)
}
