package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/claimflow/internal/domain"
)

const tracerName = "github.com/neomorfeo/claimflow/internal/adapter/otel"

// TracingRepository wraps a domain.ClaimRepository with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingRepository struct {
	next   domain.ClaimRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRepository implements domain.ClaimRepository.
var _ domain.ClaimRepository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next domain.ClaimRepository) *TracingRepository {
	return &TracingRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

// TracingStore adds a span around each transaction and traces the
// repository handed to the transaction body.
type TracingStore struct {
	*TracingRepository
	tx domain.Transactor
}

// Compile-time check: TracingStore implements domain.ClaimStore.
var _ domain.ClaimStore = (*TracingStore)(nil)

// NewTracingStore creates a tracing decorator around the given store.
func NewTracingStore(next domain.ClaimStore) *TracingStore {
	return &TracingStore{
		TracingRepository: NewTracingRepository(next),
		tx:                next,
	}
}

func (s *TracingStore) InTx(ctx context.Context, fn func(context.Context, domain.ClaimRepository) error) error {
	ctx, span := s.tracer.Start(ctx, "ClaimStore.InTx")
	defer span.End()

	err := s.tx.InTx(ctx, func(ctx context.Context, repo domain.ClaimRepository) error {
		return fn(ctx, &TracingRepository{next: repo, tracer: s.tracer})
	})
	recordError(span, err)
	return err
}

func (r *TracingRepository) FindByID(ctx context.Context, id string) (domain.Claim, error) {
	ctx, span := r.tracer.Start(ctx, "ClaimRepository.FindByID",
		trace.WithAttributes(attribute.String("claim.id", id)),
	)
	defer span.End()

	claim, err := r.next.FindByID(ctx, id)
	recordError(span, err)
	return claim, err
}

func (r *TracingRepository) FindByClaimNumber(ctx context.Context, claimNumber string) (domain.Claim, error) {
	ctx, span := r.tracer.Start(ctx, "ClaimRepository.FindByClaimNumber",
		trace.WithAttributes(attribute.String("claim.number", claimNumber)),
	)
	defer span.End()

	claim, err := r.next.FindByClaimNumber(ctx, claimNumber)
	recordError(span, err)
	return claim, err
}

func (r *TracingRepository) ExistsByClaimNumber(ctx context.Context, claimNumber string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "ClaimRepository.ExistsByClaimNumber",
		trace.WithAttributes(attribute.String("claim.number", claimNumber)),
	)
	defer span.End()

	exists, err := r.next.ExistsByClaimNumber(ctx, claimNumber)
	recordError(span, err)
	span.SetAttributes(attribute.Bool("result.exists", exists))
	return exists, err
}

func (r *TracingRepository) Save(ctx context.Context, claim domain.Claim) (domain.Claim, error) {
	ctx, span := r.tracer.Start(ctx, "ClaimRepository.Save",
		trace.WithAttributes(
			attribute.String("claim.number", claim.ClaimNumber),
			attribute.String("claim.status", string(claim.Status)),
			attribute.Bool("claim.insert", claim.ID == ""),
		),
	)
	defer span.End()

	saved, err := r.next.Save(ctx, claim)
	if err != nil {
		recordError(span, err)
		return saved, err
	}
	span.SetAttributes(attribute.String("claim.id", saved.ID))
	return saved, nil
}

func (r *TracingRepository) Delete(ctx context.Context, claim domain.Claim) error {
	ctx, span := r.tracer.Start(ctx, "ClaimRepository.Delete",
		trace.WithAttributes(
			attribute.String("claim.id", claim.ID),
			attribute.String("claim.number", claim.ClaimNumber),
		),
	)
	defer span.End()

	err := r.next.Delete(ctx, claim)
	recordError(span, err)
	return err
}

func (r *TracingRepository) Query(ctx context.Context, filter domain.SearchFilter, page domain.PageRequest) (domain.Page, error) {
	ctx, span := r.tracer.Start(ctx, "ClaimRepository.Query",
		trace.WithAttributes(
			attribute.Int("page.number", page.Page),
			attribute.Int("page.size", page.Size),
			attribute.String("page.sort", page.Sort.Field),
		),
	)
	defer span.End()

	if filter.Status != nil {
		span.SetAttributes(attribute.String("filter.status", string(*filter.Status)))
	}
	if filter.PolicyNumber != "" {
		span.SetAttributes(attribute.String("filter.policy_number", filter.PolicyNumber))
	}

	result, err := r.next.Query(ctx, filter, page)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(
			attribute.Int("result.count", len(result.Items)),
			attribute.Int("result.total", result.Total),
		)
	}
	return result, err
}

func (r *TracingRepository) CountByStatus(ctx context.Context, status domain.Status) (int, error) {
	ctx, span := r.tracer.Start(ctx, "ClaimRepository.CountByStatus",
		trace.WithAttributes(attribute.String("claim.status", string(status))),
	)
	defer span.End()

	n, err := r.next.CountByStatus(ctx, status)
	recordError(span, err)
	return n, err
}

func (r *TracingRepository) StatisticsByStatus(ctx context.Context, status domain.Status) (domain.StatusStatistics, error) {
	ctx, span := r.tracer.Start(ctx, "ClaimRepository.StatisticsByStatus",
		trace.WithAttributes(attribute.String("claim.status", string(status))),
	)
	defer span.End()

	stats, err := r.next.StatisticsByStatus(ctx, status)
	recordError(span, err)
	return stats, err
}

func recordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
