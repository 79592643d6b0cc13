package dbtest

import (
	"flag"
	"os"
	"os/signal"
)

// Inspect prevents containers from being torn down immediately after a test
// fails, so that the database can be inspected manually.
//
// The container is still reaped by testcontainers after some time.
var Inspect = flag.Bool("dbtest.inspect", false, "keep test databases around for inspection after a failed test completes")

// waitForInspection blocks until the user sends a SIGINT (Ctrl+C).
func waitForInspection() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	defer signal.Stop(c)
	<-c
}
