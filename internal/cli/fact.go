package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chronos-atlas/chronos"
)

func (a *app) factCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fact",
		Short: "Record and list the facts of an entity",
	}
	cmd.AddCommand(a.factRecordCommand(), a.factListCommand())
	return cmd
}

func (a *app) factRecordCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record <entity> <attribute> (--string|--number|--bool|--ref) <value>",
		Short: "Append a fact about an entity to a spacetime (default the canon)",
		Long: `Records that the attribute of the entity holds the value from tick --at
onwards, in --spacetime (default the canon). Facts are never updated: record
a new fact at a later tick to change the value.`,
		Args: cobra.ExactArgs(2),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, store *chronos.Store) error {
			ctx := cmd.Context()
			entity, err := parseID("entity", args[0])
			if err != nil {
				return err
			}
			value, err := valueFlag(cmd)
			if err != nil {
				return err
			}
			spacetime, err := a.spacetimeFlag(ctx, cmd, store)
			if err != nil {
				return err
			}
			at, err := tickFlag(cmd)
			if err != nil {
				return err
			}
			f, err := store.RecordFact(ctx, entity, spacetime, args[1], value, at)
			if err != nil {
				return fmt.Errorf("record fact: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), f.ID)
			return nil
		}),
	}
	addValueFlags(cmd)
	addSpacetimeFlag(cmd)
	addAtFlag(cmd, 0, "tick from which the fact is valid")
	return cmd
}

func (a *app) factListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <entity>",
		Short: "List the facts recorded about an entity in one spacetime",
		Long: `Lists the facts recorded about the entity in --spacetime itself (default
the canon), ordered by attribute then tick. Inherited facts are not listed;
see the state command for the resolved view.`,
		Args: cobra.ExactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, store *chronos.Store) error {
			ctx := cmd.Context()
			entity, err := parseID("entity", args[0])
			if err != nil {
				return err
			}
			spacetime, err := a.spacetimeFlag(ctx, cmd, store)
			if err != nil {
				return err
			}
			facts, err := store.RawFacts(ctx, entity, spacetime)
			if err != nil {
				return fmt.Errorf("list facts: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ATTRIBUTE\tFROM\tVALUE")
			for _, f := range facts {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", f.Attribute, f.ValidFrom, describe(f.Value))
			}
			return tw.Flush()
		}),
	}
	addSpacetimeFlag(cmd)
	return cmd
}
