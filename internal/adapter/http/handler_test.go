package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/neomorfeo/claimflow/internal/adapter/fsm"
	adapter "github.com/neomorfeo/claimflow/internal/adapter/http"
	"github.com/neomorfeo/claimflow/internal/adapter/sqlite"
	"github.com/neomorfeo/claimflow/internal/app"
	"github.com/neomorfeo/claimflow/internal/domain"
)

// noopPublisher is a no-op EventPublisher for tests.
type noopPublisher struct{}

func (p *noopPublisher) Publish(_ context.Context, _ domain.Event, _ domain.Claim) error {
	return nil
}

// newTestServer creates a full-stack httptest.Server with SQLite in-memory.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating test repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	svc := app.NewClaimService(repo, &noopPublisher{}, fsm.New(),
		app.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("claimflow", "0.1.0"))
	adapter.Register(api, svc)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv
}

// doRequest performs an HTTP request with context (avoids noctx linter).
func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d (body: %s)", resp.StatusCode, want, body)
	}
}

type claimFields struct {
	Policy   string
	Name     string
	Email    string
	Amount   string
	Incident time.Time
}

func claimBody(f claimFields) string {
	if f.Policy == "" {
		f.Policy = "POL-12345"
	}
	if f.Name == "" {
		f.Name = "Jane Doe"
	}
	if f.Email == "" {
		f.Email = "jane@example.com"
	}
	if f.Amount == "" {
		f.Amount = "2500.00"
	}
	if f.Incident.IsZero() {
		f.Incident = time.Now().UTC().AddDate(0, 0, -3)
	}
	incident := f.Incident.Format(time.RFC3339)
	return fmt.Sprintf(`{
		"policy_number": %q,
		"claimant_name": %q,
		"claimant_email": %q,
		"claimant_phone": "+1 (555) 010-0100",
		"description": "Rear-ended at a stop light on Main Street",
		"claim_amount": %q,
		"incident_date": %q
	}`, f.Policy, f.Name, f.Email, f.Amount, incident)
}

// mustCreateClaim files a claim via the API and returns its response.
func mustCreateClaim(t *testing.T, srv *httptest.Server, f claimFields) adapter.ClaimResponse {
	t.Helper()

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/claims", claimBody(f))
	expectStatus(t, resp, http.StatusCreated)
	return decode[adapter.ClaimResponse](t, resp)
}

func changeStatus(t *testing.T, srv *httptest.Server, id, status string) *http.Response {
	t.Helper()
	return doRequest(t, http.MethodPatch, srv.URL+"/api/v1/claims/"+id+"/status", fmt.Sprintf(`{"status":%q}`, status))
}

// --- Create ---

func TestCreate(t *testing.T) {
	srv := newTestServer(t)
	claim := mustCreateClaim(t, srv, claimFields{})

	if claim.ID == "" {
		t.Error("ID should not be empty")
	}
	if !strings.HasPrefix(claim.ClaimNumber, fmt.Sprintf("CLM-%d-", time.Now().UTC().Year())) {
		t.Errorf("ClaimNumber = %q, want CLM-<year>-######", claim.ClaimNumber)
	}
	if claim.Status != "SUBMITTED" {
		t.Errorf("Status = %q, want %q", claim.Status, "SUBMITTED")
	}
	if claim.StatusDescription == "" {
		t.Error("StatusDescription should not be empty")
	}
	if claim.ClaimAmount != "2500.00" {
		t.Errorf("ClaimAmount = %q, want %q", claim.ClaimAmount, "2500.00")
	}
	if claim.CreatedAt == "" {
		t.Error("CreatedAt should not be empty")
	}
}

func TestCreate_InvalidFields(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"short policy", claimBody(claimFields{Policy: "P1"})},
		{"bad email", claimBody(claimFields{Email: "not-an-email"})},
		{"too many decimals", claimBody(claimFields{Amount: "10.001"})},
		{"too many digits", claimBody(claimFields{Amount: "123456789"})},
		{"missing fields", `{"policy_number":"POL-12345"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/claims", tc.body)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
			}
		})
	}
}

func TestCreate_ZeroAmountNamesField(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/claims", claimBody(claimFields{Amount: "0.00"}))
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	problem := decode[huma.ErrorModel](t, resp)
	if len(problem.Errors) != 1 || problem.Errors[0].Location != "claim_amount" {
		t.Errorf("errors = %+v, want one detail for claim_amount", problem.Errors)
	}
}

func TestCreate_FutureIncident(t *testing.T) {
	srv := newTestServer(t)

	body := claimBody(claimFields{Incident: time.Now().UTC().AddDate(0, 0, 3)})

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/claims", body)
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	problem := decode[huma.ErrorModel](t, resp)
	if len(problem.Errors) != 1 || problem.Errors[0].Location != "incident_date" {
		t.Errorf("errors = %+v, want one detail for incident_date", problem.Errors)
	}
}

// --- Get ---

func TestGetByID(t *testing.T) {
	srv := newTestServer(t)
	created := mustCreateClaim(t, srv, claimFields{})

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/claims/"+created.ID, "")
	expectStatus(t, resp, http.StatusOK)

	got := decode[adapter.ClaimResponse](t, resp)
	if got.ClaimNumber != created.ClaimNumber {
		t.Errorf("ClaimNumber = %q, want %q", got.ClaimNumber, created.ClaimNumber)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/claims/nonexistent", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestGetByClaimNumber(t *testing.T) {
	srv := newTestServer(t)
	created := mustCreateClaim(t, srv, claimFields{})

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/claims/number/"+created.ClaimNumber, "")
	expectStatus(t, resp, http.StatusOK)

	got := decode[adapter.ClaimResponse](t, resp)
	if got.ID != created.ID {
		t.Errorf("ID = %q, want %q", got.ID, created.ID)
	}

	missing := doRequest(t, http.MethodGet, srv.URL+"/api/v1/claims/number/CLM-1999-000000", "")
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", missing.StatusCode, http.StatusNotFound)
	}
}

// --- Update ---

func TestUpdate_Partial(t *testing.T) {
	srv := newTestServer(t)
	created := mustCreateClaim(t, srv, claimFields{})

	resp := doRequest(t, http.MethodPut, srv.URL+"/api/v1/claims/"+created.ID,
		`{"claim_amount":"3100.50","description":"Rear-ended, bumper and trunk replaced"}`)
	expectStatus(t, resp, http.StatusOK)

	got := decode[adapter.ClaimResponse](t, resp)
	if got.ClaimAmount != "3100.50" {
		t.Errorf("ClaimAmount = %q, want %q", got.ClaimAmount, "3100.50")
	}
	if got.ClaimantName != created.ClaimantName {
		t.Errorf("ClaimantName = %q, want unchanged %q", got.ClaimantName, created.ClaimantName)
	}
	if got.ClaimNumber != created.ClaimNumber || got.CreatedAt != created.CreatedAt {
		t.Error("claim number and creation time must not change")
	}
}

func TestUpdate_TerminalClaim(t *testing.T) {
	srv := newTestServer(t)
	created := mustCreateClaim(t, srv, claimFields{})

	resp := changeStatus(t, srv, created.ID, "CANCELLED")
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = doRequest(t, http.MethodPut, srv.URL+"/api/v1/claims/"+created.ID, `{"claimant_name":"Jane Smith"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestUpdate_IllegalStatus(t *testing.T) {
	srv := newTestServer(t)
	created := mustCreateClaim(t, srv, claimFields{})

	resp := doRequest(t, http.MethodPut, srv.URL+"/api/v1/claims/"+created.ID, `{"status":"PAID"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
}

// --- Status changes ---

func TestChangeStatus_HappyPath(t *testing.T) {
	srv := newTestServer(t)
	created := mustCreateClaim(t, srv, claimFields{})

	for _, status := range []string{"UNDER_REVIEW", "APPROVED", "PAID"} {
		resp := changeStatus(t, srv, created.ID, status)
		expectStatus(t, resp, http.StatusOK)

		got := decode[adapter.ClaimResponse](t, resp)
		if got.Status != status {
			t.Errorf("Status = %q, want %q", got.Status, status)
		}
	}
}

func TestChangeStatus_Invalid(t *testing.T) {
	srv := newTestServer(t)
	created := mustCreateClaim(t, srv, claimFields{})

	resp := changeStatus(t, srv, created.ID, "APPROVED")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestChangeStatus_UnknownValue(t *testing.T) {
	srv := newTestServer(t)
	created := mustCreateClaim(t, srv, claimFields{})

	resp := changeStatus(t, srv, created.ID, "ARCHIVED")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestFireEvent(t *testing.T) {
	srv := newTestServer(t)
	created := mustCreateClaim(t, srv, claimFields{})

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/claims/"+created.ID+"/events", `{"event":"review"}`)
	expectStatus(t, resp, http.StatusOK)

	got := decode[adapter.ClaimResponse](t, resp)
	if got.Status != "UNDER_REVIEW" {
		t.Errorf("Status = %q, want %q", got.Status, "UNDER_REVIEW")
	}

	// Paying requires approval first.
	resp = doRequest(t, http.MethodPost, srv.URL+"/api/v1/claims/"+created.ID+"/events", `{"event":"pay"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestTransitions(t *testing.T) {
	srv := newTestServer(t)
	created := mustCreateClaim(t, srv, claimFields{})

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/claims/"+created.ID+"/transitions", "")
	expectStatus(t, resp, http.StatusOK)

	got := decode[struct {
		ClaimID         string   `json:"claim_id"`
		ValidNextStates []string `json:"valid_next_states"`
	}](t, resp)

	want := []string{"UNDER_REVIEW", "CANCELLED"}
	if strings.Join(got.ValidNextStates, ",") != strings.Join(want, ",") {
		t.Errorf("ValidNextStates = %v, want %v", got.ValidNextStates, want)
	}
}

// --- Delete ---

func TestDelete(t *testing.T) {
	srv := newTestServer(t)
	created := mustCreateClaim(t, srv, claimFields{})

	resp := doRequest(t, http.MethodDelete, srv.URL+"/api/v1/claims/"+created.ID, "")
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/claims/"+created.ID, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status after delete = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestDelete_AfterReview(t *testing.T) {
	srv := newTestServer(t)
	created := mustCreateClaim(t, srv, claimFields{})

	resp := changeStatus(t, srv, created.ID, "UNDER_REVIEW")
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = doRequest(t, http.MethodDelete, srv.URL+"/api/v1/claims/"+created.ID, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

// --- Search and statistics ---

type searchPage struct {
	Items      []adapter.ClaimResponse `json:"items"`
	Total      int                     `json:"total"`
	Page       int                     `json:"page"`
	Size       int                     `json:"size"`
	TotalPages int                     `json:"total_pages"`
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t)

	mustCreateClaim(t, srv, claimFields{Policy: "POL-AAAAA", Name: "Alice Smith", Amount: "100.00"})
	mustCreateClaim(t, srv, claimFields{Policy: "POL-AAAAA", Name: "Bob Jones", Amount: "12000.00"})
	mustCreateClaim(t, srv, claimFields{Policy: "POL-BBBBB", Name: "Carol Smithers", Amount: "20000.00"})

	cases := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 3},
		{"policy", "?policy_number=POL-AAAAA", 2},
		{"name", "?name=smith", 2},
		{"amount above", "?amount_above=12000", 1},
		{"status", "?status=SUBMITTED", 3},
		{"combined", "?policy_number=POL-AAAAA&name=bob", 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/claims"+tc.query, "")
			expectStatus(t, resp, http.StatusOK)

			page := decode[searchPage](t, resp)
			if page.Total != tc.want || len(page.Items) != tc.want {
				t.Errorf("got %d items / total %d, want %d", len(page.Items), page.Total, tc.want)
			}
		})
	}
}

func TestSearch_Paging(t *testing.T) {
	srv := newTestServer(t)
	for _, amount := range []string{"100.00", "200.00", "300.00"} {
		mustCreateClaim(t, srv, claimFields{Amount: amount})
	}

	resp := doRequest(t, http.MethodGet,
		srv.URL+"/api/v1/claims?size=2&page=1&sort_by=claim_amount&sort_direction=asc", "")
	expectStatus(t, resp, http.StatusOK)

	page := decode[searchPage](t, resp)
	if page.Total != 3 || page.TotalPages != 2 || page.Page != 1 || page.Size != 2 {
		t.Errorf("page = %+v", page)
	}
	if len(page.Items) != 1 || page.Items[0].ClaimAmount != "300.00" {
		t.Errorf("items = %+v, want the 300.00 claim", page.Items)
	}
}

func TestSearch_UnknownSortField(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/claims?sort_by=bogus", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestStatistics(t *testing.T) {
	srv := newTestServer(t)
	mustCreateClaim(t, srv, claimFields{Amount: "100.00"})
	mustCreateClaim(t, srv, claimFields{Amount: "300.00"})

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/claims/statistics?status=SUBMITTED", "")
	expectStatus(t, resp, http.StatusOK)

	got := decode[struct {
		Status        string `json:"status"`
		Count         int    `json:"count"`
		TotalAmount   string `json:"total_amount"`
		AverageAmount string `json:"average_amount"`
	}](t, resp)

	if got.Count != 2 || got.TotalAmount != "400.00" || got.AverageAmount != "200.00" {
		t.Errorf("statistics = %+v", got)
	}
}
