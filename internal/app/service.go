package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neomorfeo/claimflow/internal/domain"
)

// ClaimService orchestrates claim lifecycle operations. It is the only
// component that mutates claims; every mutation runs in one store transaction.
type ClaimService struct {
	store     domain.ClaimStore
	publisher domain.EventPublisher
	validator domain.TransitionValidator
	numbers   *ClaimNumberGenerator

	now    func() time.Time
	rand   RandomSource
	logger *slog.Logger
}

// Option configures a ClaimService.
type Option func(*ClaimService)

// WithClock overrides the time source used for validation and claim numbers.
func WithClock(now func() time.Time) Option {
	return func(s *ClaimService) { s.now = now }
}

// WithRandomSource overrides the source used to draw claim numbers.
func WithRandomSource(src RandomSource) Option {
	return func(s *ClaimService) { s.rand = src }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *ClaimService) { s.logger = logger }
}

// NewClaimService creates a service with the given adapters.
func NewClaimService(store domain.ClaimStore, publisher domain.EventPublisher, validator domain.TransitionValidator, opts ...Option) *ClaimService {
	s := &ClaimService{
		store:     store,
		publisher: publisher,
		validator: validator,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.numbers = NewClaimNumberGenerator(s.rand, s.now, s.logger)
	return s
}

// Create validates a new claim, assigns it a claim number and persists it.
func (s *ClaimService) Create(ctx context.Context, input domain.NewClaim) (domain.Claim, error) {
	claim := input.Claim()

	if claim.Status == "" {
		claim.Status = domain.StatusSubmitted
	} else if !claim.Status.Valid() || claim.Status.IsTerminal() {
		return domain.Claim{}, &domain.ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("%q is not a valid starting status", claim.Status),
		}
	}

	if err := domain.ValidateClaim(claim, s.now().UTC()); err != nil {
		return domain.Claim{}, err
	}

	// A concurrent writer can take the number between the existence check
	// and the insert; the store reports that as a conflict and we draw again.
	// Collisions and conflicts spend the same budget of draws.
	var saved domain.Claim
	remaining := MaxClaimNumberAttempts
	for {
		err := s.store.InTx(ctx, func(ctx context.Context, repo domain.ClaimRepository) error {
			number, used, err := s.numbers.generate(ctx, repo, remaining)
			remaining -= used
			if err != nil {
				return err
			}
			claim.ClaimNumber = number

			saved, err = repo.Save(ctx, claim)
			if err != nil {
				return err
			}

			return s.publish(ctx, domain.EventSubmit, saved)
		})

		var conflict *domain.ClaimNumberConflictError
		if errors.As(err, &conflict) {
			s.logger.DebugContext(ctx, "claim number taken at insert", "claim_number", conflict.ClaimNumber, "draws_left", remaining)
			if remaining > 0 {
				continue
			}
			err = &domain.ClaimNumberExhaustedError{Attempts: MaxClaimNumberAttempts}
		}
		if err != nil {
			return domain.Claim{}, s.fail(ctx, "create", err, "policy_number", claim.PolicyNumber)
		}
		break
	}

	s.logger.InfoContext(ctx, "claim created",
		"claim_id", saved.ID,
		"claim_number", saved.ClaimNumber,
		"policy_number", saved.PolicyNumber,
	)
	return saved, nil
}

// GetByID returns a claim by its store identifier.
func (s *ClaimService) GetByID(ctx context.Context, id string) (domain.Claim, error) {
	claim, err := s.store.FindByID(ctx, id)
	if err != nil {
		return domain.Claim{}, classify("find by id", err)
	}
	return claim, nil
}

// GetByClaimNumber returns a claim by its business identifier.
func (s *ClaimService) GetByClaimNumber(ctx context.Context, claimNumber string) (domain.Claim, error) {
	claim, err := s.store.FindByClaimNumber(ctx, claimNumber)
	if err != nil {
		return domain.Claim{}, classify("find by claim number", err)
	}
	return claim, nil
}

// Update applies a partial change to a non-terminal claim. A status in the
// patch must be a legal transition; the merged claim is fully re-validated.
func (s *ClaimService) Update(ctx context.Context, id string, patch domain.ClaimPatch) (domain.Claim, error) {
	var updated domain.Claim
	err := s.store.InTx(ctx, func(ctx context.Context, repo domain.ClaimRepository) error {
		existing, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}

		if existing.Status.IsTerminal() {
			return &domain.TerminalStateError{ClaimID: existing.ID, Status: existing.Status}
		}

		event := domain.EventAmend
		if patch.Status != nil {
			next, err := s.validator.Apply(ctx, existing.Status, *patch.Status)
			if err != nil {
				return err
			}
			event, _ = domain.EventFor(existing.Status, next)
		}

		merged := patch.Apply(existing)
		if err := domain.ValidateClaim(merged, s.now().UTC()); err != nil {
			return err
		}

		updated, err = repo.Save(ctx, merged)
		if err != nil {
			return err
		}

		return s.publish(ctx, event, updated)
	})
	if err != nil {
		return domain.Claim{}, s.fail(ctx, "update", err, "claim_id", id)
	}

	s.logger.InfoContext(ctx, "claim updated", "claim_id", updated.ID, "claim_number", updated.ClaimNumber)
	return updated, nil
}

// TransitionStatus moves a claim along one edge of the lifecycle.
func (s *ClaimService) TransitionStatus(ctx context.Context, id string, status domain.Status) (domain.Claim, error) {
	var (
		updated  domain.Claim
		previous domain.Status
	)
	err := s.store.InTx(ctx, func(ctx context.Context, repo domain.ClaimRepository) error {
		claim, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		previous = claim.Status

		next, err := s.validator.Apply(ctx, claim.Status, status)
		if err != nil {
			return err
		}
		event, _ := domain.EventFor(claim.Status, next)

		claim.Status = next
		updated, err = repo.Save(ctx, claim)
		if err != nil {
			return err
		}

		return s.publish(ctx, event, updated)
	})
	if err != nil {
		return domain.Claim{}, s.fail(ctx, "transition", err, "claim_id", id, "requested_status", string(status))
	}

	s.logger.InfoContext(ctx, "claim status changed",
		"claim_id", updated.ID,
		"claim_number", updated.ClaimNumber,
		"from", string(previous),
		"to", string(updated.Status),
	)
	return updated, nil
}

// Delete removes a claim that is still in StatusSubmitted. Claims that have
// progressed must be cancelled through the workflow instead.
func (s *ClaimService) Delete(ctx context.Context, id string) error {
	var deleted domain.Claim
	err := s.store.InTx(ctx, func(ctx context.Context, repo domain.ClaimRepository) error {
		claim, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}

		if claim.Status != domain.StatusSubmitted {
			return &domain.OperationNotAllowedError{Operation: "delete", ClaimID: claim.ID, Status: claim.Status}
		}

		if err := repo.Delete(ctx, claim); err != nil {
			return err
		}
		deleted = claim

		return s.publish(ctx, domain.EventWithdraw, claim)
	})
	if err != nil {
		return s.fail(ctx, "delete", err, "claim_id", id)
	}

	s.logger.InfoContext(ctx, "claim deleted", "claim_id", deleted.ID, "claim_number", deleted.ClaimNumber)
	return nil
}

// Search returns one page of claims matching the filter.
func (s *ClaimService) Search(ctx context.Context, filter domain.SearchFilter, page domain.PageRequest) (domain.Page, error) {
	page, err := page.Normalize()
	if err != nil {
		return domain.Page{}, err
	}

	result, err := s.store.Query(ctx, filter, page)
	if err != nil {
		return domain.Page{}, classify("query", err)
	}
	return result, nil
}

// CountByStatus returns how many claims are currently in status.
func (s *ClaimService) CountByStatus(ctx context.Context, status domain.Status) (int, error) {
	n, err := s.store.CountByStatus(ctx, status)
	if err != nil {
		return 0, classify("count by status", err)
	}
	return n, nil
}

// StatisticsByStatus aggregates the amounts of the claims in status.
func (s *ClaimService) StatisticsByStatus(ctx context.Context, status domain.Status) (domain.StatusStatistics, error) {
	stats, err := s.store.StatisticsByStatus(ctx, status)
	if err != nil {
		return domain.StatusStatistics{}, classify("statistics by status", err)
	}
	return stats, nil
}

// ValidNextStates returns the statuses the claim can move to next.
func (s *ClaimService) ValidNextStates(ctx context.Context, id string) ([]domain.Status, error) {
	claim, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return claim.Status.ValidNextStates(), nil
}

func (s *ClaimService) publish(ctx context.Context, event domain.Event, claim domain.Claim) error {
	if err := s.publisher.Publish(ctx, event, claim); err != nil {
		return fmt.Errorf("publishing event %q: %w", event, err)
	}
	return nil
}

// fail classifies err and logs store failures; rule violations are the
// caller's concern and are returned without logging.
func (s *ClaimService) fail(ctx context.Context, op string, err error, attrs ...any) error {
	err = classify(op, err)

	var storeErr *domain.StoreError
	if errors.As(err, &storeErr) {
		s.logger.ErrorContext(ctx, "claim "+op+" failed", append(attrs, "error", err)...)
	}
	return err
}

// classify passes typed domain errors through and wraps everything else as
// a StoreError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var (
		validationErr *domain.ValidationError
		transitionErr *domain.TransitionError
		terminalErr   *domain.TerminalStateError
		notAllowedErr *domain.OperationNotAllowedError
		exhaustedErr  *domain.ClaimNumberExhaustedError
		conflictErr   *domain.ClaimNumberConflictError
		storeErr      *domain.StoreError
	)
	switch {
	case errors.Is(err, domain.ErrClaimNotFound),
		errors.As(err, &validationErr),
		errors.As(err, &transitionErr),
		errors.As(err, &terminalErr),
		errors.As(err, &notAllowedErr),
		errors.As(err, &exhaustedErr),
		errors.As(err, &conflictErr),
		errors.As(err, &storeErr):
		return err
	}

	return &domain.StoreError{Op: op, Err: err}
}
