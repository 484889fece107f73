package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Claim is the core domain entity: a single insurance claim tracked through its lifecycle.
// ID, CreatedAt and UpdatedAt are assigned by the store.
type Claim struct {
	ID            string
	ClaimNumber   string
	PolicyNumber  string
	ClaimantName  string
	ClaimantEmail string
	ClaimantPhone string
	Description   string
	ClaimAmount   decimal.Decimal
	Status        Status
	IncidentDate  time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewClaim carries the caller-supplied fields for a claim that does not exist yet.
// A nil Status means the claim starts in StatusSubmitted.
type NewClaim struct {
	PolicyNumber  string
	ClaimantName  string
	ClaimantEmail string
	ClaimantPhone string
	Description   string
	ClaimAmount   decimal.Decimal
	IncidentDate  time.Time
	Status        *Status
}

// Claim builds a candidate claim from the input. The status is copied as
// given; defaulting is the caller's job.
func (n NewClaim) Claim() Claim {
	c := Claim{
		PolicyNumber:  n.PolicyNumber,
		ClaimantName:  n.ClaimantName,
		ClaimantEmail: n.ClaimantEmail,
		ClaimantPhone: n.ClaimantPhone,
		Description:   n.Description,
		ClaimAmount:   n.ClaimAmount,
		IncidentDate:  n.IncidentDate.UTC(),
	}
	if n.Status != nil {
		c.Status = *n.Status
	}
	return c
}

// ClaimPatch describes a partial update. Nil fields leave the claim untouched.
type ClaimPatch struct {
	PolicyNumber  *string
	ClaimantName  *string
	ClaimantEmail *string
	ClaimantPhone *string
	Description   *string
	ClaimAmount   *decimal.Decimal
	IncidentDate  *time.Time
	Status        *Status
}

// Apply returns a copy of c with the present patch fields applied.
// ID, ClaimNumber and CreatedAt are never changed.
func (p ClaimPatch) Apply(c Claim) Claim {
	if p.PolicyNumber != nil {
		c.PolicyNumber = *p.PolicyNumber
	}
	if p.ClaimantName != nil {
		c.ClaimantName = *p.ClaimantName
	}
	if p.ClaimantEmail != nil {
		c.ClaimantEmail = *p.ClaimantEmail
	}
	if p.ClaimantPhone != nil {
		c.ClaimantPhone = *p.ClaimantPhone
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.ClaimAmount != nil {
		c.ClaimAmount = *p.ClaimAmount
	}
	if p.IncidentDate != nil {
		c.IncidentDate = p.IncidentDate.UTC()
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	return c
}

// StatusStatistics aggregates the claims currently in one status.
type StatusStatistics struct {
	Status  Status
	Count   int
	Total   decimal.Decimal
	Average decimal.Decimal
}
