package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"

	"github.com/neomorfeo/claimflow/internal/app"
	"github.com/neomorfeo/claimflow/internal/domain"
)

// ClaimResponse is the API representation of a claim.
type ClaimResponse struct {
	ID                string `json:"id" doc:"Store identifier"`
	ClaimNumber       string `json:"claim_number" doc:"Business identifier (CLM-<year>-<6 digits>)"`
	PolicyNumber      string `json:"policy_number" doc:"Insurance policy the claim is filed against"`
	ClaimantName      string `json:"claimant_name" doc:"Name of the person filing the claim"`
	ClaimantEmail     string `json:"claimant_email" doc:"Claimant contact email"`
	ClaimantPhone     string `json:"claimant_phone,omitempty" doc:"Claimant contact phone"`
	Description       string `json:"description" doc:"What happened"`
	ClaimAmount       string `json:"claim_amount" doc:"Requested amount, two decimal places" example:"2500.00"`
	Status            string `json:"status" doc:"Lifecycle state"`
	StatusDescription string `json:"status_description" doc:"Human-readable lifecycle state"`
	IncidentDate      string `json:"incident_date" doc:"When the incident happened (RFC 3339)"`
	CreatedAt         string `json:"created_at" doc:"Creation timestamp (RFC 3339)"`
	UpdatedAt         string `json:"updated_at" doc:"Last update timestamp (RFC 3339)"`
}

func toClaimResponse(c domain.Claim) ClaimResponse {
	return ClaimResponse{
		ID:                c.ID,
		ClaimNumber:       c.ClaimNumber,
		PolicyNumber:      c.PolicyNumber,
		ClaimantName:      c.ClaimantName,
		ClaimantEmail:     c.ClaimantEmail,
		ClaimantPhone:     c.ClaimantPhone,
		Description:       c.Description,
		ClaimAmount:       c.ClaimAmount.StringFixed(2),
		Status:            string(c.Status),
		StatusDescription: c.Status.Description(),
		IncidentDate:      c.IncidentDate.UTC().Format(time.RFC3339),
		CreatedAt:         c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// --- Create Claim ---

type CreateClaimInput struct {
	Body struct {
		PolicyNumber  string    `json:"policy_number" minLength:"5" maxLength:"50" doc:"Insurance policy number"`
		ClaimantName  string    `json:"claimant_name" minLength:"2" maxLength:"100" doc:"Claimant full name"`
		ClaimantEmail string    `json:"claimant_email" format:"email" maxLength:"100" doc:"Claimant email"`
		ClaimantPhone string    `json:"claimant_phone,omitempty" pattern:"^[+]?[0-9\\s\\-\\(\\)]{10,20}$" doc:"Claimant phone"`
		Description   string    `json:"description" minLength:"10" maxLength:"1000" doc:"What happened"`
		ClaimAmount   string    `json:"claim_amount" pattern:"^\\d{1,8}(\\.\\d{1,2})?$" example:"2500.00" doc:"Requested amount"`
		IncidentDate  time.Time `json:"incident_date" doc:"When the incident happened (RFC 3339)"`
		Status        string    `json:"status,omitempty" enum:"SUBMITTED,UNDER_REVIEW,APPROVED" doc:"Initial status, SUBMITTED when omitted"`
	}
}

type ClaimOutput struct {
	Body ClaimResponse
}

// --- Get Claim ---

type GetClaimInput struct {
	ID string `path:"id" doc:"Claim ID"`
}

type GetClaimByNumberInput struct {
	ClaimNumber string `path:"claimNumber" doc:"Claim number"`
}

// --- Search Claims ---

type SearchClaimsInput struct {
	PolicyNumber  string `query:"policy_number" required:"false" doc:"Exact policy number"`
	Status        string `query:"status" required:"false" enum:"SUBMITTED,UNDER_REVIEW,APPROVED,REJECTED,PAID,CANCELLED" doc:"Lifecycle state"`
	ClaimantEmail string `query:"claimant_email" required:"false" doc:"Exact claimant email"`
	AmountAbove   string `query:"amount_above" required:"false" pattern:"^\\d{1,8}(\\.\\d{1,2})?$" doc:"Amount strictly greater than"`
	CreatedFrom   string `query:"created_from" required:"false" format:"date-time" doc:"Created at or after (RFC 3339)"`
	CreatedTo     string `query:"created_to" required:"false" format:"date-time" doc:"Created at or before (RFC 3339)"`
	Name          string `query:"name" required:"false" doc:"Case-insensitive claimant name fragment"`
	Page          int    `query:"page" required:"false" minimum:"0" default:"0" doc:"Zero-based page"`
	Size          int    `query:"size" required:"false" minimum:"1" maximum:"100" default:"10" doc:"Page size"`
	SortBy        string `query:"sort_by" required:"false" default:"created_at" doc:"Claim field to order by"`
	SortDirection string `query:"sort_direction" required:"false" enum:"asc,desc" default:"desc" doc:"Sort direction"`
}

type SearchClaimsOutput struct {
	Body struct {
		Items      []ClaimResponse `json:"items"`
		Total      int             `json:"total" doc:"Matches across all pages"`
		Page       int             `json:"page"`
		Size       int             `json:"size"`
		TotalPages int             `json:"total_pages"`
	}
}

// --- Update Claim ---

type UpdateClaimInput struct {
	ID   string `path:"id" doc:"Claim ID"`
	Body struct {
		PolicyNumber  *string    `json:"policy_number,omitempty" minLength:"5" maxLength:"50"`
		ClaimantName  *string    `json:"claimant_name,omitempty" minLength:"2" maxLength:"100"`
		ClaimantEmail *string    `json:"claimant_email,omitempty" format:"email" maxLength:"100"`
		ClaimantPhone *string    `json:"claimant_phone,omitempty" pattern:"^[+]?[0-9\\s\\-\\(\\)]{10,20}$"`
		Description   *string    `json:"description,omitempty" minLength:"10" maxLength:"1000"`
		ClaimAmount   *string    `json:"claim_amount,omitempty" pattern:"^\\d{1,8}(\\.\\d{1,2})?$"`
		IncidentDate  *time.Time `json:"incident_date,omitempty"`
		Status        *string    `json:"status,omitempty" enum:"SUBMITTED,UNDER_REVIEW,APPROVED,REJECTED,PAID,CANCELLED"`
	}
}

// --- Transition ---

type ChangeStatusInput struct {
	ID   string `path:"id" doc:"Claim ID"`
	Body struct {
		Status string `json:"status" enum:"SUBMITTED,UNDER_REVIEW,APPROVED,REJECTED,PAID,CANCELLED" doc:"Requested status"`
	}
}

type FireEventInput struct {
	ID   string `path:"id" doc:"Claim ID"`
	Body struct {
		Event string `json:"event" enum:"review,approve,reject,pay,cancel" doc:"Lifecycle event to trigger"`
	}
}

type TransitionsOutput struct {
	Body struct {
		ClaimID         string   `json:"claim_id"`
		ValidNextStates []string `json:"valid_next_states" doc:"Statuses reachable in one step"`
	}
}

// --- Statistics ---

type StatisticsInput struct {
	Status string `query:"status" required:"true" enum:"SUBMITTED,UNDER_REVIEW,APPROVED,REJECTED,PAID,CANCELLED" doc:"Lifecycle state"`
}

type StatisticsOutput struct {
	Body struct {
		Status        string `json:"status"`
		Count         int    `json:"count"`
		TotalAmount   string `json:"total_amount"`
		AverageAmount string `json:"average_amount"`
	}
}

// Register adds all claim API routes to the Huma API.
func Register(api huma.API, svc *app.ClaimService) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-claim",
		Method:        http.MethodPost,
		Path:          "/api/v1/claims",
		Summary:       "File a new claim",
		Tags:          []string{"Claims"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateClaimInput) (*ClaimOutput, error) {
		amount, err := parseAmount("claim_amount", input.Body.ClaimAmount)
		if err != nil {
			return nil, toHumaError(err)
		}

		newClaim := domain.NewClaim{
			PolicyNumber:  input.Body.PolicyNumber,
			ClaimantName:  input.Body.ClaimantName,
			ClaimantEmail: input.Body.ClaimantEmail,
			ClaimantPhone: input.Body.ClaimantPhone,
			Description:   input.Body.Description,
			ClaimAmount:   amount,
			IncidentDate:  input.Body.IncidentDate,
		}
		if input.Body.Status != "" {
			s := domain.Status(input.Body.Status)
			newClaim.Status = &s
		}

		claim, err := svc.Create(ctx, newClaim)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ClaimOutput{Body: toClaimResponse(claim)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "search-claims",
		Method:      http.MethodGet,
		Path:        "/api/v1/claims",
		Summary:     "Search claims",
		Tags:        []string{"Claims"},
	}, func(ctx context.Context, input *SearchClaimsInput) (*SearchClaimsOutput, error) {
		filter, err := input.filter()
		if err != nil {
			return nil, toHumaError(err)
		}

		page, err := svc.Search(ctx, filter, domain.PageRequest{
			Page: input.Page,
			Size: input.Size,
			Sort: domain.Sort{Field: input.SortBy, Descending: input.SortDirection != "asc"},
		})
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &SearchClaimsOutput{}
		out.Body.Items = make([]ClaimResponse, len(page.Items))
		for i, c := range page.Items {
			out.Body.Items[i] = toClaimResponse(c)
		}
		out.Body.Total = page.Total
		out.Body.Page = page.Page
		out.Body.Size = page.Size
		out.Body.TotalPages = page.TotalPages()
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "claim-statistics",
		Method:      http.MethodGet,
		Path:        "/api/v1/claims/statistics",
		Summary:     "Count and amount totals for one status",
		Tags:        []string{"Claims"},
	}, func(ctx context.Context, input *StatisticsInput) (*StatisticsOutput, error) {
		stats, err := svc.StatisticsByStatus(ctx, domain.Status(input.Status))
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &StatisticsOutput{}
		out.Body.Status = string(stats.Status)
		out.Body.Count = stats.Count
		out.Body.TotalAmount = stats.Total.StringFixed(2)
		out.Body.AverageAmount = stats.Average.StringFixed(2)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-claim",
		Method:      http.MethodGet,
		Path:        "/api/v1/claims/{id}",
		Summary:     "Get a claim by ID",
		Tags:        []string{"Claims"},
	}, func(ctx context.Context, input *GetClaimInput) (*ClaimOutput, error) {
		claim, err := svc.GetByID(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ClaimOutput{Body: toClaimResponse(claim)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-claim-by-number",
		Method:      http.MethodGet,
		Path:        "/api/v1/claims/number/{claimNumber}",
		Summary:     "Get a claim by claim number",
		Tags:        []string{"Claims"},
	}, func(ctx context.Context, input *GetClaimByNumberInput) (*ClaimOutput, error) {
		claim, err := svc.GetByClaimNumber(ctx, input.ClaimNumber)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ClaimOutput{Body: toClaimResponse(claim)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-claim",
		Method:      http.MethodPut,
		Path:        "/api/v1/claims/{id}",
		Summary:     "Update fields of an open claim",
		Description: "Absent fields keep their values. A status change must follow the lifecycle.",
		Tags:        []string{"Claims"},
	}, func(ctx context.Context, input *UpdateClaimInput) (*ClaimOutput, error) {
		patch, err := input.patch()
		if err != nil {
			return nil, toHumaError(err)
		}

		claim, err := svc.Update(ctx, input.ID, patch)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ClaimOutput{Body: toClaimResponse(claim)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-claim-status",
		Method:      http.MethodPatch,
		Path:        "/api/v1/claims/{id}/status",
		Summary:     "Move a claim to another status",
		Tags:        []string{"Claims"},
	}, func(ctx context.Context, input *ChangeStatusInput) (*ClaimOutput, error) {
		claim, err := svc.TransitionStatus(ctx, input.ID, domain.Status(input.Body.Status))
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ClaimOutput{Body: toClaimResponse(claim)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "fire-claim-event",
		Method:      http.MethodPost,
		Path:        "/api/v1/claims/{id}/events",
		Summary:     "Trigger a lifecycle event",
		Tags:        []string{"Claims"},
	}, func(ctx context.Context, input *FireEventInput) (*ClaimOutput, error) {
		target, ok := domain.TargetOf(domain.Event(input.Body.Event))
		if !ok {
			return nil, toHumaError(&domain.ValidationError{Field: "event", Reason: "unknown event " + input.Body.Event})
		}

		claim, err := svc.TransitionStatus(ctx, input.ID, target)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ClaimOutput{Body: toClaimResponse(claim)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-claim-transitions",
		Method:      http.MethodGet,
		Path:        "/api/v1/claims/{id}/transitions",
		Summary:     "List the statuses a claim can move to",
		Tags:        []string{"Claims"},
	}, func(ctx context.Context, input *GetClaimInput) (*TransitionsOutput, error) {
		next, err := svc.ValidNextStates(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &TransitionsOutput{}
		out.Body.ClaimID = input.ID
		out.Body.ValidNextStates = make([]string, len(next))
		for i, s := range next {
			out.Body.ValidNextStates[i] = string(s)
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-claim",
		Method:        http.MethodDelete,
		Path:          "/api/v1/claims/{id}",
		Summary:       "Delete a claim that has not been reviewed yet",
		Tags:          []string{"Claims"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *GetClaimInput) (*struct{}, error) {
		if err := svc.Delete(ctx, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		return nil, nil
	})
}

func (in *SearchClaimsInput) filter() (domain.SearchFilter, error) {
	f := domain.SearchFilter{
		PolicyNumber:  in.PolicyNumber,
		ClaimantEmail: in.ClaimantEmail,
		NameContains:  in.Name,
	}

	if in.Status != "" {
		s := domain.Status(in.Status)
		f.Status = &s
	}
	if in.AmountAbove != "" {
		amount, err := parseAmount("amount_above", in.AmountAbove)
		if err != nil {
			return domain.SearchFilter{}, err
		}
		f.AmountAbove = &amount
	}
	if in.CreatedFrom != "" {
		t, err := parseTime("created_from", in.CreatedFrom)
		if err != nil {
			return domain.SearchFilter{}, err
		}
		f.CreatedFrom = &t
	}
	if in.CreatedTo != "" {
		t, err := parseTime("created_to", in.CreatedTo)
		if err != nil {
			return domain.SearchFilter{}, err
		}
		f.CreatedTo = &t
	}
	return f, nil
}

func (in *UpdateClaimInput) patch() (domain.ClaimPatch, error) {
	b := in.Body
	p := domain.ClaimPatch{
		PolicyNumber:  b.PolicyNumber,
		ClaimantName:  b.ClaimantName,
		ClaimantEmail: b.ClaimantEmail,
		ClaimantPhone: b.ClaimantPhone,
		Description:   b.Description,
		IncidentDate:  b.IncidentDate,
	}

	if b.ClaimAmount != nil {
		amount, err := parseAmount("claim_amount", *b.ClaimAmount)
		if err != nil {
			return domain.ClaimPatch{}, err
		}
		p.ClaimAmount = &amount
	}
	if b.Status != nil {
		s := domain.Status(*b.Status)
		p.Status = &s
	}
	return p, nil
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, &domain.ValidationError{Field: field, Reason: "must be a decimal amount"}
	}
	return d, nil
}

func parseTime(field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: field, Reason: "must be an RFC 3339 timestamp"}
	}
	return t, nil
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrClaimNotFound) {
		return huma.Error404NotFound(err.Error())
	}

	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return huma.Error422UnprocessableEntity("validation failed", &huma.ErrorDetail{
			Message:  vErr.Reason,
			Location: vErr.Field,
		})
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	var terminalErr *domain.TerminalStateError
	if errors.As(err, &terminalErr) {
		return huma.Error409Conflict(terminalErr.Error())
	}

	var notAllowedErr *domain.OperationNotAllowedError
	if errors.As(err, &notAllowedErr) {
		return huma.Error409Conflict(notAllowedErr.Error())
	}

	var conflictErr *domain.ClaimNumberConflictError
	if errors.As(err, &conflictErr) {
		return huma.Error409Conflict(conflictErr.Error())
	}

	var exhaustedErr *domain.ClaimNumberExhaustedError
	if errors.As(err, &exhaustedErr) {
		return huma.Error503ServiceUnavailable(exhaustedErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
