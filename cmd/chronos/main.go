// Command chronos manages branching, time-indexed worlds stored in SQLite.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/chronos-atlas/chronos/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
