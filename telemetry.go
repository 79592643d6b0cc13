package chronos

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/chronos-atlas/chronos")
var meter = otel.Meter("github.com/chronos-atlas/chronos")

const (
	// operationName is the attribute key that associates each record with the
	// Store operation that produced it (e.g. "record fact"). This enables
	// analysis of commandDuration and commandFailures both across all operations
	// and per operation.
	operationName = "chronos.operation"
)

var (
	// commandDuration measures the duration of a single successful Store
	// operation, including the time spent in the engine.
	//
	// Each record is associated with the operationName.
	commandDuration metric.Float64Histogram
	// commandFailures measures the number of failed Store operations.
	//
	// Each record is associated with the operationName.
	commandFailures metric.Int64Counter
	// publishFailures counts Changed notifications that could not be sent to the
	// configured topic. The command they describe was acknowledged regardless.
	publishFailures metric.Int64Counter
	// resolveDepth records the length of the ancestry chain walked by each
	// state resolution.
	resolveDepth metric.Int64Histogram
)

func init() {
	var err error
	commandDuration, err = meter.Float64Histogram(
		"chronos.command.duration",
		metric.WithDescription("The duration of a single successful store operation, including the time spent in the storage engine."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("chronos: failed to init 'chronos.command.duration' instrument")
	}

	commandFailures, err = meter.Int64Counter(
		"chronos.command.failures",
		metric.WithDescription("The number of store operations that have failed."),
	)
	if err != nil {
		panic("chronos: failed to init 'chronos.command.failures' instrument")
	}

	publishFailures, err = meter.Int64Counter(
		"chronos.publish.failures",
		metric.WithDescription("The number of change notifications that could not be published."),
	)
	if err != nil {
		panic("chronos: failed to init 'chronos.publish.failures' instrument")
	}

	resolveDepth, err = meter.Int64Histogram(
		"chronos.resolve.depth",
		metric.WithDescription("The number of spacetimes in the ancestry chain walked by a state resolution."),
	)
	if err != nil {
		panic("chronos: failed to init 'chronos.resolve.depth' instrument")
	}
}

// startOperation starts a span for the named Store operation. The returned
// function ends the span and measures the operation: if it succeeded we record
// its duration, if it failed we increment the failure counter and mark the span
// as failed.
//
// According to [metric] documentation, [metric.WithAttributeSet] should be used
// instead of [metric.WithAttributes] for performance optimization.
func startOperation(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attrs...))
	start := time.Now()
	return ctx, func(err error) {
		defer span.End()
		set := attribute.NewSet(attribute.String(operationName, op))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			commandFailures.Add(ctx, 1, metric.WithAttributeSet(set))
			return
		}
		// We use floating-point division here for higher precision (instead of the
		// Millisecond method).
		duration := float64(time.Since(start)) / float64(time.Millisecond)
		commandDuration.Record(ctx, duration, metric.WithAttributeSet(set))
	}
}

func projectAttr(p ProjectID) attribute.KeyValue {
	return attribute.String("chronos.project", string(p))
}

func entityAttr(key string, id EntityID) attribute.KeyValue {
	return attribute.Stringer(key, id)
}
