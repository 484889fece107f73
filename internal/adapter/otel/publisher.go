package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/claimflow/internal/domain"
)

// TracingPublisher wraps a domain.EventPublisher with OpenTelemetry tracing
// and counts published events by type and outcome.
type TracingPublisher struct {
	next      domain.EventPublisher
	tracer    trace.Tracer
	published metric.Int64Counter
}

// Compile-time check: TracingPublisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*TracingPublisher)(nil)

// NewTracingPublisher creates a tracing decorator around the given publisher.
func NewTracingPublisher(next domain.EventPublisher) *TracingPublisher {
	counter, err := otel.Meter(tracerName).Int64Counter("claimflow.events.published",
		metric.WithDescription("Claim lifecycle events handed to the event queue."),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		otel.Handle(err)
		counter = noop.Int64Counter{}
	}

	return &TracingPublisher{
		next:      next,
		tracer:    otel.Tracer(tracerName),
		published: counter,
	}
}

func (p *TracingPublisher) Publish(ctx context.Context, event domain.Event, claim domain.Claim) error {
	ctx, span := p.tracer.Start(ctx, "EventPublisher.Publish",
		trace.WithAttributes(
			attribute.String("event.type", string(event)),
			attribute.String("claim.id", claim.ID),
			attribute.String("claim.number", claim.ClaimNumber),
			attribute.String("claim.status", string(claim.Status)),
		),
	)
	defer span.End()

	outcome := "ok"
	err := p.next.Publish(ctx, event, claim)
	if err != nil {
		recordError(span, err)
		outcome = "error"
	}

	p.published.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event.type", string(event)),
		attribute.String("outcome", outcome),
	))
	return err
}
