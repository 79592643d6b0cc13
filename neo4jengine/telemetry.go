package neo4jengine

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/chronos-atlas/chronos/neo4jengine")
var meter = otel.Meter("github.com/chronos-atlas/chronos/neo4jengine")

var (
	// corruptedGraphCounter counts the commands that found the graph in a
	// state that chronos never writes, right before the engine panics.
	corruptedGraphCounter metric.Int64Counter
)

func init() {
	// A failure here is a programming error in the instrument definition.
	var err error
	corruptedGraphCounter, err = meter.Int64Counter(
		"chronos.neo4j.corrupted_graph",
		metric.WithDescription("number of commands that found a corrupted chronos graph"),
	)
	if err != nil {
		s := fmt.Sprintf("neo4jengine: failed to init 'chronos.neo4j.corrupted_graph' instrument: %v", err)
		panic(s)
	}
}
