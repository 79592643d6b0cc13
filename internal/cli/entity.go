package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chronos-atlas/chronos"
)

func (a *app) entityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Create and list the entities of the project",
	}
	cmd.AddCommand(a.entityCreateCommand(), a.entityListCommand())
	return cmd
}

func (a *app) entityCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <type>",
		Short: "Register an entity under a parent (default the universe)",
		Long: `Registers an entity of the given type under --parent, which defaults to
the root universe of the project. With --name, the name of the entity is
recorded as a fact in --spacetime at tick --at.

Types: ` + strings.Join(entityTypeNames(), ", "),
		Args: cobra.ExactArgs(1),
		RunE: a.withStore(a.runEntityCreate),
	}
	cmd.Flags().String("parent", "", "parent entity id")
	cmd.Flags().String("name", "", "name to record for the entity")
	addSpacetimeFlag(cmd)
	addAtFlag(cmd, 0, "tick from which the name is valid")
	return cmd
}

func entityTypeNames() []string {
	names := make([]string, 0, len(chronos.EntityTypes))
	for _, typ := range chronos.EntityTypes {
		if typ != chronos.TypeUniverse && typ != chronos.TypeSpacetime {
			names = append(names, string(typ))
		}
	}
	return names
}

func (a *app) runEntityCreate(cmd *cobra.Command, args []string, store *chronos.Store) error {
	ctx := cmd.Context()
	typ, err := chronos.ParseEntityType(args[0])
	if err != nil {
		return err
	}

	var parent chronos.EntityID
	if s, _ := cmd.Flags().GetString("parent"); s != "" {
		if parent, err = parseID("parent", s); err != nil {
			return err
		}
	} else {
		b, err := store.BootstrapProject(ctx, a.project(), "")
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		parent = b.Universe.ID
	}

	e, err := store.CreateEntity(ctx, a.project(), typ, parent)
	if err != nil {
		return fmt.Errorf("create entity: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), e.ID)

	if name, _ := cmd.Flags().GetString("name"); name != "" {
		spacetime, err := a.spacetimeFlag(ctx, cmd, store)
		if err != nil {
			return err
		}
		at, err := tickFlag(cmd)
		if err != nil {
			return err
		}
		if _, err := store.RecordFact(ctx, e.ID, spacetime, chronos.AttrName, chronos.String(name), at); err != nil {
			return fmt.Errorf("record name: %w", err)
		}
	}
	return nil
}

func (a *app) entityListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the hierarchy of the project with the names of its entities",
		Args:  cobra.NoArgs,
		RunE:  a.withStore(a.runEntityList),
	}
	addSpacetimeFlag(cmd)
	addAtFlag(cmd, chronos.Forever, "tick at which names are resolved")
	return cmd
}

func (a *app) runEntityList(cmd *cobra.Command, _ []string, store *chronos.Store) error {
	ctx := cmd.Context()
	spacetime, err := a.spacetimeFlag(ctx, cmd, store)
	if err != nil {
		return err
	}
	at, err := tickFlag(cmd)
	if err != nil {
		return err
	}

	tree, err := store.Tree(ctx, a.project())
	if err != nil {
		return fmt.Errorf("list entities: %w", err)
	}
	names := chronos.NewAttributeView(chronos.AttrName, spacetime, at)
	if err := names.Load(ctx, store, a.project()); err != nil {
		return fmt.Errorf("resolve names: %w", err)
	}
	spacetimes, err := store.Spacetimes(ctx, a.project())
	if err != nil {
		return fmt.Errorf("list spacetimes: %w", err)
	}
	o := &outliner{w: cmd.OutOrStdout(), names: names, spacetimes: make(map[chronos.EntityID]string, len(spacetimes))}
	for _, st := range spacetimes {
		o.spacetimes[st.ID] = st.Name
	}
	chronos.Walk(o, tree)
	return nil
}

// An outliner prints every entity it visits on its own line, indented by its
// depth in the hierarchy.
type outliner struct {
	w          io.Writer
	names      *chronos.AttributeView
	spacetimes map[chronos.EntityID]string // Spacetimes are named on creation.
	depth      int
}

func (o *outliner) Visit(e *chronos.Entity) chronos.Visitor {
	if e == nil {
		return nil
	}
	label := "(unnamed)"
	if name, ok := o.names.Find(e.ID); ok {
		label = name.String()
	} else if name, ok := o.spacetimes[e.ID]; ok {
		label = name
	}
	fmt.Fprintf(o.w, "%s%s %s [%s]\n", strings.Repeat("  ", o.depth), e.ID, label, e.Type)
	child := *o
	child.depth++
	return &child
}
