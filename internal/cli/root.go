// Package cli implements the chronos command-line tool on a local SQLite
// database.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/danielorbach/go-component"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chronos-atlas/chronos"
	"github.com/chronos-atlas/chronos/internal/config"
	"github.com/chronos-atlas/chronos/sqliteengine"
)

// app carries the state shared by the commands of one invocation.
type app struct {
	v   *viper.Viper
	cfg config.Config
}

// NewCommand returns the root command of the chronos tool. Every call returns
// an independent command tree with its own configuration.
func NewCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "chronos",
		Short: "Branching, time-indexed fact store for world building",
		Long: `Chronos records facts about the entities of a fictional world along a
timeline, and lets alternative timelines (spacetimes) branch off at any tick
without copying the history they inherit.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initConfig,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default .chronos.yaml)")
	flags.String("db", config.DefaultDatabase, "SQLite database path")
	flags.StringP("project", "p", config.DefaultProject, "project to operate on")
	flags.BoolP("verbose", "v", false, "verbose output")
	_ = a.v.BindPFlag("db", flags.Lookup("db"))
	_ = a.v.BindPFlag("project", flags.Lookup("project"))
	_ = a.v.BindPFlag("verbose", flags.Lookup("verbose"))

	root.AddCommand(
		a.initCommand(),
		a.bootstrapCommand(),
		a.entityCommand(),
		a.spacetimeCommand(),
		a.factCommand(),
		a.stateCommand(),
		a.statusCommand(),
	)
	return root
}

// Execute runs the tool with the process arguments and returns its exit code.
func Execute(ctx context.Context) int {
	cmd := NewCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return 1
	}
	return 0
}

func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else {
		a.v.SetConfigName(".chronos")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home)
		}
	}

	a.v.SetEnvPrefix("CHRONOS")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	// It's fine if no config file is found; we use defaults. An explicit file
	// must exist though.
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(component.InjectLogger(ctx, logger.With("project", cfg.Project)))
	return nil
}

func (a *app) project() chronos.ProjectID {
	return chronos.ProjectID(a.cfg.Project)
}

// openStore opens the configured database, applying pending migrations. The
// caller must call the returned function once done with the store.
func (a *app) openStore(ctx context.Context) (*chronos.Store, func(), error) {
	if dir := filepath.Dir(a.cfg.Database); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	engine, err := sqliteengine.Open(ctx, a.cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	closeEngine := func() {
		if err := engine.Close(); err != nil {
			component.Logger(ctx).Error("Failed to close database", "error", err, "db", a.cfg.Database)
		}
	}

	opts := []chronos.Option{chronos.WithMaxAncestryDepth(a.cfg.MaxAncestryDepth)}
	if a.cfg.ResolveConcurrency > 0 {
		opts = append(opts, chronos.WithResolveConcurrency(a.cfg.ResolveConcurrency))
	}
	store := chronos.New(engine, opts...)
	if err := store.Init(ctx); err != nil {
		closeEngine()
		return nil, nil, err
	}
	return store, closeEngine, nil
}

// withStore adapts a function using the store to the signature of RunE.
func (a *app) withStore(run func(cmd *cobra.Command, args []string, store *chronos.Store) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, done, err := a.openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer done()
		return run(cmd, args, store)
	}
}
