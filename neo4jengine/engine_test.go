package neo4jengine

import (
	"testing"

	"github.com/chronos-atlas/chronos/enginetest"
	"github.com/chronos-atlas/chronos/internal/dbtest"
)

func TestEngine(t *testing.T) {
	driver := dbtest.SetupNeo4j(t)
	enginetest.Run(t, NewEngine(driver, "neo4j"))
}

func TestEngineOnBootstrappedDatabase(t *testing.T) {
	driver := dbtest.SetupNeo4j(t)
	if err := BootstrapDatabase(t.Context(), driver, "chronos-enginetest"); err != nil {
		t.Fatal("BootstrapDatabase failed:", err)
	}
	enginetest.Run(t, NewEngine(driver, "chronos-enginetest"))
}
