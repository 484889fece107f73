package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/claimflow/internal/adapter/sqlite"
	"github.com/neomorfeo/claimflow/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// ClaimEventArgs carries a claim lifecycle event to the job queue.
// River serializes it as JSON into its job table. It includes a snapshot of
// the claim at publish time, so the worker never needs to query the claims table.
type ClaimEventArgs struct {
	Event        string `json:"event"`
	ClaimID      string `json:"claim_id"`
	ClaimNumber  string `json:"claim_number"`
	PolicyNumber string `json:"policy_number"`
	Status       string `json:"status"`
	ClaimAmount  string `json:"claim_amount"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (ClaimEventArgs) Kind() string { return "claim.event" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a claim event as an async job. Inside a claim store
// transaction the job is inserted on that transaction, so it is only
// visible to workers once the claim change commits.
func (p *Publisher) Publish(ctx context.Context, event domain.Event, claim domain.Claim) error {
	args := ClaimEventArgs{
		Event:        string(event),
		ClaimID:      claim.ID,
		ClaimNumber:  claim.ClaimNumber,
		PolicyNumber: claim.PolicyNumber,
		Status:       string(claim.Status),
		ClaimAmount:  claim.ClaimAmount.StringFixed(2),
	}
	opts := &river.InsertOpts{Tags: []string{string(event)}}

	var err error
	if tx, ok := sqlite.TxFromContext(ctx); ok {
		_, err = p.client.InsertTx(ctx, tx, args, opts)
	} else {
		_, err = p.client.Insert(ctx, args, opts)
	}
	if err != nil {
		return fmt.Errorf("enqueuing claim event job: %w", err)
	}
	return nil
}
