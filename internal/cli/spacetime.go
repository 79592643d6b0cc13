package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chronos-atlas/chronos"
)

func (a *app) spacetimeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spacetime",
		Short: "Branch and inspect the timelines of the project",
	}
	cmd.AddCommand(a.spacetimeCreateCommand(), a.spacetimeListCommand(), a.spacetimeChainCommand())
	return cmd
}

func (a *app) spacetimeCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name> --at <tick>",
		Short: "Branch a spacetime off another one (default the canon)",
		Long: `Creates a spacetime that inherits the facts of --from (default the canon)
that are valid at or before the branch tick --at, and diverges afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, store *chronos.Store) error {
			ctx := cmd.Context()
			parent, err := a.fromFlag(cmd, store)
			if err != nil {
				return err
			}
			at, err := tickFlag(cmd)
			if err != nil {
				return err
			}
			st, err := store.CreateSpacetime(ctx, a.project(), args[0], parent, at)
			if err != nil {
				return fmt.Errorf("create spacetime: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), st.ID)
			return nil
		}),
	}
	cmd.Flags().String("from", "", "parent spacetime id (default the canon)")
	addAtFlag(cmd, 0, "branch tick")
	_ = cmd.MarkFlagRequired(flagAt)
	return cmd
}

func (a *app) fromFlag(cmd *cobra.Command, store *chronos.Store) (chronos.EntityID, error) {
	if s, _ := cmd.Flags().GetString("from"); s != "" {
		return parseID("parent spacetime", s)
	}
	canon, err := store.Canon(cmd.Context(), a.project())
	if err != nil {
		return chronos.EntityID{}, fmt.Errorf("project %q has no canon, run bootstrap first: %w", a.project(), err)
	}
	return canon.ID, nil
}

func (a *app) spacetimeListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the spacetimes of the project in creation order",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, _ []string, store *chronos.Store) error {
			spacetimes, err := store.Spacetimes(cmd.Context(), a.project())
			if err != nil {
				return fmt.Errorf("list spacetimes: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPARENT\tBRANCH")
			for _, st := range spacetimes {
				parent, branch := "-", "-"
				if !st.IsCanonical() {
					parent, branch = st.ParentSpacetime.String(), fmt.Sprint(st.BranchTime)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", st.ID, st.Name, parent, branch)
			}
			return tw.Flush()
		}),
	}
}

func (a *app) spacetimeChainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chain <spacetime>",
		Short: "Print the ancestry of a spacetime, nearest first, with horizons",
		Args:  cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, store *chronos.Store) error {
			id, err := parseID("spacetime", args[0])
			if err != nil {
				return err
			}
			chain, err := store.AncestryChain(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("ancestry: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SPACETIME\tNAME\tHORIZON")
			for _, link := range chain {
				horizon := "forever"
				if link.Horizon != chronos.Forever {
					horizon = fmt.Sprint(link.Horizon)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", link.Spacetime.ID, link.Spacetime.Name, horizon)
			}
			return tw.Flush()
		}),
	}
}
