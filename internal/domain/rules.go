package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// maxIncidentYears bounds how far in the past an incident may lie.
const maxIncidentYears = 2

// Amounts carry at most two fraction digits and eight integer digits.
const amountScale = 2

var maxClaimAmount = decimal.RequireFromString("99999999.99")

// ValidateClaim applies the business rules to a candidate claim. Rules run in
// a fixed order and the first violation is returned as a *ValidationError.
func ValidateClaim(c Claim, now time.Time) error {
	if !c.ClaimAmount.IsPositive() {
		return &ValidationError{Field: "claim_amount", Reason: "claim amount must be greater than zero"}
	}

	if !c.ClaimAmount.Equal(c.ClaimAmount.Round(amountScale)) {
		return &ValidationError{Field: "claim_amount", Reason: "claim amount cannot have more than 2 decimal places"}
	}

	if c.ClaimAmount.GreaterThan(maxClaimAmount) {
		return &ValidationError{Field: "claim_amount", Reason: "claim amount cannot exceed 99999999.99"}
	}

	if c.IncidentDate.After(now) {
		return &ValidationError{Field: "incident_date", Reason: "incident date cannot be in the future"}
	}

	if c.IncidentDate.Before(now.AddDate(-maxIncidentYears, 0, 0)) {
		return &ValidationError{Field: "incident_date", Reason: "incident date cannot be more than 2 years old"}
	}

	return nil
}
