package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chronos-atlas/chronos"
)

func (a *app) initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database, or apply pending migrations to it",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, _ []string, _ *chronos.Store) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Initialised %s\n", a.cfg.Database)
			return nil
		}),
	}
}

func (a *app) bootstrapCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap [name...]",
		Short: "Create the universe and canon of the project, unless they exist",
		Long: `Creates the root universe of the project, named after the arguments
(default "` + chronos.DefaultProjectName + `"), and its canonical spacetime.
Running bootstrap again on the same project changes nothing.`,
		RunE: a.withStore(func(cmd *cobra.Command, args []string, store *chronos.Store) error {
			b, err := store.BootstrapProject(cmd.Context(), a.project(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Project:  %s\n", a.project())
			fmt.Fprintf(out, "Universe: %s\n", b.Universe.ID)
			fmt.Fprintf(out, "Canon:    %s\n", b.Canon.ID)
			return nil
		}),
	}
}
