package cli

import (
	"fmt"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chronos-atlas/chronos"
)

func (a *app) stateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state <entity>",
		Short: "Print the effective attributes of an entity at a tick",
		Long: `Resolves every attribute of the entity as seen from --spacetime (default
the canon) at tick --at (default forever), following the ancestry of the
spacetime up to each branch point.`,
		Args: cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, store *chronos.Store) error {
			ctx := cmd.Context()
			entity, spacetime, at, err := a.viewpoint(cmd, args[0], store)
			if err != nil {
				return err
			}
			state, err := store.State(ctx, entity, spacetime, at)
			if err != nil {
				return fmt.Errorf("resolve state: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ATTRIBUTE\tVALUE")
			for _, attr := range slices.Sorted(maps.Keys(state)) {
				fmt.Fprintf(tw, "%s\t%s\n", attr, describe(state[attr]))
			}
			return tw.Flush()
		}),
	}
	addSpacetimeFlag(cmd)
	addAtFlag(cmd, chronos.Forever, "tick of the viewpoint")
	return cmd
}

func (a *app) statusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <entity>",
		Short: "Print whether an entity is alive, dead, unborn or retired at a tick",
		Args:  cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, store *chronos.Store) error {
			entity, spacetime, at, err := a.viewpoint(cmd, args[0], store)
			if err != nil {
				return err
			}
			status, err := store.Status(cmd.Context(), entity, spacetime, at)
			if err != nil {
				return fmt.Errorf("resolve status: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		}),
	}
	addSpacetimeFlag(cmd)
	addAtFlag(cmd, chronos.Forever, "tick of the viewpoint")
	return cmd
}

// viewpoint parses the entity argument along with the spacetime and tick
// flags.
func (a *app) viewpoint(cmd *cobra.Command, arg string, store *chronos.Store) (entity, spacetime chronos.EntityID, at chronos.Tick, err error) {
	if entity, err = parseID("entity", arg); err != nil {
		return
	}
	if spacetime, err = a.spacetimeFlag(cmd.Context(), cmd, store); err != nil {
		return
	}
	at, err = tickFlag(cmd)
	return
}
