package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Paging defaults.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// SearchFilter holds optional criteria for querying claims.
// Zero-valued fields match every claim; present fields are AND-combined.
type SearchFilter struct {
	PolicyNumber  string
	Status        *Status
	ClaimantEmail string
	// AmountAbove matches claims whose amount is strictly greater.
	AmountAbove *decimal.Decimal
	// CreatedFrom and CreatedTo bound CreatedAt inclusively.
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	// NameContains is a case-insensitive substring of the claimant name.
	NameContains string
}

// Matches reports whether c satisfies every present criterion.
func (f SearchFilter) Matches(c Claim) bool {
	if f.PolicyNumber != "" && c.PolicyNumber != f.PolicyNumber {
		return false
	}
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	if f.ClaimantEmail != "" && c.ClaimantEmail != f.ClaimantEmail {
		return false
	}
	if f.AmountAbove != nil && !c.ClaimAmount.GreaterThan(*f.AmountAbove) {
		return false
	}
	if f.CreatedFrom != nil && c.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && c.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	if f.NameContains != "" &&
		!strings.Contains(strings.ToLower(c.ClaimantName), strings.ToLower(f.NameContains)) {
		return false
	}
	return true
}

// SortFields lists the claim fields a query can be ordered by.
var SortFields = []string{
	"id",
	"claim_number",
	"policy_number",
	"claimant_name",
	"claimant_email",
	"claimant_phone",
	"description",
	"claim_amount",
	"status",
	"incident_date",
	"created_at",
	"updated_at",
}

// Sort orders query results by one claim field.
type Sort struct {
	Field      string
	Descending bool
}

// PageRequest selects a zero-based page of results.
type PageRequest struct {
	Page int
	Size int
	Sort Sort
}

// Normalize fills defaults and rejects unknown sort fields.
func (p PageRequest) Normalize() (PageRequest, error) {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.Sort.Field == "" {
		p.Sort = Sort{Field: "created_at", Descending: true}
	}
	for _, f := range SortFields {
		if f == p.Sort.Field {
			return p, nil
		}
	}
	return PageRequest{}, &ValidationError{Field: "sort_by", Reason: "unknown sort field " + p.Sort.Field}
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Page is one slice of a query result.
type Page struct {
	Items []Claim
	Total int
	Page  int
	Size  int
}

// TotalPages returns how many pages the full result spans.
func (p Page) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return (p.Total + p.Size - 1) / p.Size
}
