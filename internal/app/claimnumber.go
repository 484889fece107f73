package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/neomorfeo/claimflow/internal/domain"
)

// MaxClaimNumberAttempts bounds how many candidates are tried before giving up.
const MaxClaimNumberAttempts = 10

const (
	claimNumberMin  = 100000
	claimNumberSpan = 900000 // 100000..999999 inclusive
)

// RandomSource draws a uniform integer in [0, n).
type RandomSource interface {
	IntN(n int) int
}

// globalSource uses the goroutine-safe top-level functions of math/rand/v2.
type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// ClaimNumberLookup is the slice of the store the generator needs.
type ClaimNumberLookup interface {
	ExistsByClaimNumber(ctx context.Context, claimNumber string) (bool, error)
}

// ClaimNumberGenerator produces claim numbers of the form CLM-<year>-<6 digits>.
type ClaimNumberGenerator struct {
	rand   RandomSource
	now    func() time.Time
	logger *slog.Logger
}

// NewClaimNumberGenerator creates a generator. A nil source or clock falls
// back to math/rand/v2 and time.Now.
func NewClaimNumberGenerator(src RandomSource, now func() time.Time, logger *slog.Logger) *ClaimNumberGenerator {
	if src == nil {
		src = globalSource{}
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ClaimNumberGenerator{rand: src, now: now, logger: logger}
}

// Candidate draws one claim number without checking uniqueness.
func (g *ClaimNumberGenerator) Candidate() string {
	year := g.now().UTC().Year()
	return fmt.Sprintf("CLM-%d-%06d", year, claimNumberMin+g.rand.IntN(claimNumberSpan))
}

// Generate returns a claim number that lookup does not know about yet.
func (g *ClaimNumberGenerator) Generate(ctx context.Context, lookup ClaimNumberLookup) (string, error) {
	number, _, err := g.generate(ctx, lookup, MaxClaimNumberAttempts)
	return number, err
}

// generate draws at most budget candidates and reports how many it used.
func (g *ClaimNumberGenerator) generate(ctx context.Context, lookup ClaimNumberLookup, budget int) (string, int, error) {
	for used := 1; used <= budget; used++ {
		candidate := g.Candidate()

		exists, err := lookup.ExistsByClaimNumber(ctx, candidate)
		if err != nil {
			return "", used, &domain.StoreError{Op: "exists by claim number", Err: err}
		}
		if !exists {
			return candidate, used, nil
		}

		g.logger.DebugContext(ctx, "claim number collision", "claim_number", candidate)
	}

	return "", budget, &domain.ClaimNumberExhaustedError{Attempts: MaxClaimNumberAttempts}
}
