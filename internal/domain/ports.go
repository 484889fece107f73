package domain

import "context"

// ClaimRepository defines the persistence contract for claims.
// Lookups report a missing claim with an error matching ErrClaimNotFound.
type ClaimRepository interface {
	FindByID(ctx context.Context, id string) (Claim, error)
	FindByClaimNumber(ctx context.Context, claimNumber string) (Claim, error)
	ExistsByClaimNumber(ctx context.Context, claimNumber string) (bool, error)
	// Save inserts the claim when its ID is empty and updates it otherwise.
	// A duplicate claim number yields *ClaimNumberConflictError.
	Save(ctx context.Context, claim Claim) (Claim, error)
	Delete(ctx context.Context, claim Claim) error
	Query(ctx context.Context, filter SearchFilter, page PageRequest) (Page, error)
	CountByStatus(ctx context.Context, status Status) (int, error)
	StatisticsByStatus(ctx context.Context, status Status) (StatusStatistics, error)
}

// Transactor runs fn inside a single store transaction. The repository and
// context handed to fn are bound to that transaction; returning an error
// rolls it back.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, repo ClaimRepository) error) error
}

// ClaimStore is the full persistence collaborator used by the engine.
type ClaimStore interface {
	ClaimRepository
	Transactor
}

// EventPublisher defines the contract for emitting domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event Event, claim Claim) error
}

// TransitionValidator checks a requested status change and returns the
// resulting status, or a *TransitionError when the edge does not exist.
type TransitionValidator interface {
	Apply(ctx context.Context, current, requested Status) (Status, error)
}
