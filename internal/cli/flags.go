package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chronos-atlas/chronos"
)

// Flags shared by several commands.
const (
	flagSpacetime = "spacetime"
	flagAt        = "at"
)

func addSpacetimeFlag(cmd *cobra.Command) {
	cmd.Flags().String(flagSpacetime, "", "spacetime id (default the project's canon)")
}

func addAtFlag(cmd *cobra.Command, def chronos.Tick, usage string) {
	cmd.Flags().Int64(flagAt, int64(def), usage)
}

func tickFlag(cmd *cobra.Command) (chronos.Tick, error) {
	at, err := cmd.Flags().GetInt64(flagAt)
	if err != nil {
		return 0, err
	}
	return chronos.Tick(at), nil
}

// spacetimeFlag returns the spacetime named by --spacetime, or the canon of
// the project when the flag is unset.
func (a *app) spacetimeFlag(ctx context.Context, cmd *cobra.Command, store *chronos.Store) (chronos.EntityID, error) {
	s, _ := cmd.Flags().GetString(flagSpacetime)
	if s != "" {
		return parseID("spacetime", s)
	}
	canon, err := store.Canon(ctx, a.project())
	if err != nil {
		return chronos.EntityID{}, fmt.Errorf("project %q has no canon, run bootstrap first: %w", a.project(), err)
	}
	return canon.ID, nil
}

func parseID(what, s string) (chronos.EntityID, error) {
	id, err := chronos.ParseEntityID(s)
	if err != nil {
		return chronos.EntityID{}, fmt.Errorf("invalid %s id %q: %w", what, s, err)
	}
	return id, nil
}

// Value flags of fact record; exactly one must be set.
const (
	flagString = "string"
	flagNumber = "number"
	flagBool   = "bool"
	flagRef    = "ref"
)

func addValueFlags(cmd *cobra.Command) {
	cmd.Flags().String(flagString, "", "text value")
	cmd.Flags().Float64(flagNumber, 0, "numeric value")
	cmd.Flags().Bool(flagBool, false, "boolean value")
	cmd.Flags().String(flagRef, "", "id of the referenced entity")
	cmd.MarkFlagsMutuallyExclusive(flagString, flagNumber, flagBool, flagRef)
	cmd.MarkFlagsOneRequired(flagString, flagNumber, flagBool, flagRef)
}

func valueFlag(cmd *cobra.Command) (chronos.Value, error) {
	flags := cmd.Flags()
	switch {
	case flags.Changed(flagString):
		s, err := flags.GetString(flagString)
		return chronos.String(s), err
	case flags.Changed(flagNumber):
		n, err := flags.GetFloat64(flagNumber)
		return chronos.Number(n), err
	case flags.Changed(flagBool):
		b, err := flags.GetBool(flagBool)
		return chronos.Bool(b), err
	case flags.Changed(flagRef):
		s, err := flags.GetString(flagRef)
		if err != nil {
			return nil, err
		}
		id, err := parseID("referenced entity", s)
		if err != nil {
			return nil, err
		}
		return chronos.Ref(id), nil
	}
	return nil, fmt.Errorf("one of --%s, --%s, --%s or --%s is required", flagString, flagNumber, flagBool, flagRef)
}

// describe formats a value along with its kind.
func describe(v chronos.Value) string {
	return fmt.Sprintf("%v (%v)", v, v.Kind())
}
