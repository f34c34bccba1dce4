package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pairfecto/backend/internal/domain"
	"github.com/pairfecto/backend/internal/usecase/concierge"
	"github.com/pairfecto/backend/internal/usecase/health"
	"github.com/pairfecto/backend/internal/usecase/recommend"
)

// --- Mocks ---

type mockQuery struct {
	resp domain.QueryResponse
	err  error
	req  domain.QueryRequest
}

func (m *mockQuery) Query(ctx context.Context, req domain.QueryRequest) (domain.QueryResponse, recommend.Trace, error) {
	m.req = req
	if _, ok := domain.IdentityFromContext(ctx); !ok {
		return domain.QueryResponse{}, recommend.Trace{}, domain.ErrUnauthenticated
	}
	return m.resp, recommend.Trace{}, m.err
}

type mockUsers struct {
	prefs domain.Preferences
	err   error
}

func (m *mockUsers) GetOrCreate(_ context.Context, id domain.Identity) (domain.User, error) {
	return domain.User{UID: id.UID}, m.err
}

func (m *mockUsers) UpdatePreferences(_ context.Context, _ string, prefs domain.Preferences) error {
	m.prefs = prefs
	return m.err
}

type mockAccounts struct{}

func (mockAccounts) GetOrCreate(_ context.Context, id domain.Identity) (domain.Account, error) {
	return domain.Account{ID: "a1", GoogleUserID: id.UID}, nil
}

func (mockAccounts) Delete(context.Context, domain.Identity) error { return nil }

type mockPartners struct {
	partner domain.Partner
	err     error
}

func (m *mockPartners) Get(context.Context, string) (domain.Partner, error) { return m.partner, m.err }

func (m *mockPartners) GetByID(context.Context, string, string) (domain.Partner, error) {
	return m.partner, m.err
}

func (m *mockPartners) Create(_ context.Context, gid string, in domain.PartnerCreate) (domain.Partner, error) {
	if err := in.Validate(); err != nil {
		return domain.Partner{}, err
	}
	return domain.Partner{ID: "p1", GoogleUserID: gid, Name: in.Name}, nil
}

func (m *mockPartners) Delete(context.Context, string, string) error { return m.err }

type mockConcierge struct {
	photo    []byte
	photoErr error
	query    string
}

func (m *mockConcierge) Query(_ context.Context, q string) (domain.PlaceMatchResponse, error) {
	m.query = q
	return domain.PlaceMatchResponse{Restaurants: []domain.MatchedPlace{{Name: "Echo"}}}, nil
}

func (m *mockConcierge) Photo(context.Context, string) ([]byte, error) { return m.photo, m.photoErr }

type mockHealth struct{ status health.Status }

func (m mockHealth) Check(context.Context) health.Report {
	return health.Report{Status: m.status, Checks: map[string]health.CheckResult{}}
}

type fixture struct {
	query     *mockQuery
	users     *mockUsers
	partners  *mockPartners
	concierge *mockConcierge
	handler   http.Handler
}

func newFixture(t *testing.T, ratePerMin int) *fixture {
	t.Helper()
	f := &fixture{
		query:     &mockQuery{},
		users:     &mockUsers{},
		partners:  &mockPartners{},
		concierge: &mockConcierge{},
	}
	srv := NewServer(Services{
		Query:     f.query,
		Users:     f.users,
		Accounts:  mockAccounts{},
		Partners:  f.partners,
		Concierge: f.concierge,
		Health:    mockHealth{status: health.Healthy},
	}, zap.NewNop())

	r := chi.NewRouter()
	srv.Register(r, Options{
		Identity:        HeaderIdentityMiddleware(),
		CORSOrigins:     []string{"*"},
		QueryRatePerMin: ratePerMin,
	})
	f.handler = r
	return f
}

func (f *fixture) do(method, path, body string, uid string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set(UIDHeader, uid)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return e
}

// --- /query ---

func TestQuery_OK(t *testing.T) {
	f := newFixture(t, 0)
	f.query.resp = domain.QueryResponse{Results: []domain.RankedResult{{Name: "Trattoria"}}}

	rr := f.do(http.MethodPost, "/query", `{"text":"romantic Italian dinner","location":{"lat":1,"lng":2}}`, "u1")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	var resp domain.QueryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Name != "Trattoria" {
		t.Errorf("unexpected body %+v", resp)
	}
	if f.query.req.Location == nil || f.query.req.Location.Lng != 2 {
		t.Errorf("location not forwarded: %+v", f.query.req)
	}
}

func TestQuery_EmptyResultsRenderAsArray(t *testing.T) {
	f := newFixture(t, 0)
	rr := f.do(http.MethodPost, "/query", `{"text":"x"}`, "u1")
	if !strings.Contains(rr.Body.String(), `"results":[]`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestQuery_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  ErrorCode
	}{
		{"vector store", fmt.Errorf("vector search: %w", domain.ErrVectorStoreUnavailable), http.StatusServiceUnavailable, CodeVectorStoreUnavailable},
		{"document store", fmt.Errorf("load: %w", domain.ErrDocumentStoreUnavailable), http.StatusServiceUnavailable, CodeDocumentStoreUnavailable},
		{"invalid", fmt.Errorf("%w: text is required", domain.ErrInvalidInput), http.StatusBadRequest, CodeValidationFailed},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternalError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 0)
			f.query.err = tc.err
			rr := f.do(http.MethodPost, "/query", `{"text":"x"}`, "u1")
			if rr.Code != tc.wantCode {
				t.Fatalf("got %d, want %d", rr.Code, tc.wantCode)
			}
			e := decodeError(t, rr)
			if e.Code != tc.wantErr {
				t.Errorf("code = %q, want %q", e.Code, tc.wantErr)
			}
			if tc.wantErr == CodeInternalError && e.Message != "internal error" {
				t.Errorf("internal detail leaked: %q", e.Message)
			}
		})
	}
}

func TestQuery_BadBodies(t *testing.T) {
	f := newFixture(t, 0)

	rr := f.do(http.MethodPost, "/query", `{"text":`, "u1")
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != CodeBadRequest {
		t.Errorf("malformed json: got %d", rr.Code)
	}

	rr = f.do(http.MethodPost, "/query", `{"text":"x","location":{"lat":1}}`, "u1")
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != CodeValidationFailed {
		t.Errorf("partial location: got %d", rr.Code)
	}
}

func TestQuery_MissingUID(t *testing.T) {
	f := newFixture(t, 0)
	rr := f.do(http.MethodPost, "/query", `{"text":"x"}`, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestQuery_RateLimited(t *testing.T) {
	f := newFixture(t, 2)
	for i := range 2 {
		if rr := f.do(http.MethodPost, "/query", `{"text":"x"}`, "u1"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, rr.Code)
		}
	}
	rr := f.do(http.MethodPost, "/query", `{"text":"x"}`, "u1")
	if rr.Code != http.StatusTooManyRequests || decodeError(t, rr).Code != CodeRateLimited {
		t.Fatalf("got %d, want 429", rr.Code)
	}
	// limits are per caller
	if rr := f.do(http.MethodPost, "/query", `{"text":"x"}`, "u2"); rr.Code != http.StatusOK {
		t.Errorf("other caller: got %d", rr.Code)
	}
}

// --- profile routes ---

func TestUserRoutes(t *testing.T) {
	f := newFixture(t, 0)

	rr := f.do(http.MethodGet, "/user", "", "u1")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"preferences":{}`) {
		t.Errorf("GET /user: %d %s", rr.Code, rr.Body.String())
	}

	rr = f.do(http.MethodPost, "/user/prefs", `{"me":{"cuisines":["Thai"]},"partner":"n/a"}`, "u1")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("POST /user/prefs: got %d", rr.Code)
	}
	if _, ok := f.users.prefs["me"].(map[string]any); !ok {
		t.Errorf("prefs not forwarded: %+v", f.users.prefs)
	}
}

func TestPartnerRoutes(t *testing.T) {
	f := newFixture(t, 0)

	f.partners.err = domain.ErrNotFound
	rr := f.do(http.MethodGet, "/partners", "", "g1")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "null" {
		t.Errorf("missing partner: %d %s", rr.Code, rr.Body.String())
	}

	rr = f.do(http.MethodGet, "/partners/abc", "", "g1")
	if rr.Code != http.StatusNotFound {
		t.Errorf("GET /partners/{id}: got %d", rr.Code)
	}

	f.partners.err = nil
	rr = f.do(http.MethodPost, "/partners", `{"name":"Sam","preferences":{"diets":["Carnivore"]}}`, "g1")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid partner: got %d", rr.Code)
	}

	rr = f.do(http.MethodPost, "/partners", `{"name":"Sam","preferences":{"diets":["Vegan"]}}`, "g1")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"id":"p1"`) {
		t.Errorf("create partner: %d %s", rr.Code, rr.Body.String())
	}

	if rr := f.do(http.MethodDelete, "/partners/p1", "", "g1"); rr.Code != http.StatusNoContent {
		t.Errorf("delete partner: got %d", rr.Code)
	}
}

func TestAccountAndTokenRoutes(t *testing.T) {
	f := newFixture(t, 0)

	rr := f.do(http.MethodGet, "/accounts", "", "g1")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"google_user_id":"g1"`) {
		t.Errorf("GET /accounts: %d %s", rr.Code, rr.Body.String())
	}
	if rr := f.do(http.MethodDelete, "/accounts", "", "g1"); rr.Code != http.StatusNoContent {
		t.Errorf("DELETE /accounts: got %d", rr.Code)
	}

	rr = f.do(http.MethodGet, "/token/verify", "", "g1")
	if rr.Code != http.StatusOK || rr.Body.Len() != 0 {
		t.Errorf("token verify: %d %q", rr.Code, rr.Body.String())
	}
	if rr := f.do(http.MethodGet, "/token/verify", "", ""); rr.Code == http.StatusOK {
		t.Error("token verify must require identity")
	}
}

// --- restaurants ---

func TestRestaurantQuery(t *testing.T) {
	f := newFixture(t, 0)
	rr := f.do(http.MethodPost, "/restaurants/query", `{"user_query":"sushi in Oakland"}`, "g1")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"restaurants":[`) {
		t.Errorf("got %d %s", rr.Code, rr.Body.String())
	}
	if f.concierge.query != "sushi in Oakland" {
		t.Errorf("query = %q", f.concierge.query)
	}
}

func TestRestaurantPhoto(t *testing.T) {
	tests := []struct {
		name     string
		photo    []byte
		err      error
		wantCode int
		wantType string
		wantBody string
	}{
		{"image", []byte{0xff, 0xd8}, nil, http.StatusOK, "image/jpeg", "\xff\xd8"},
		{"no photo", nil, concierge.ErrNoPhoto, http.StatusNotFound, "text/plain; charset=utf-8", "No photo available."},
		{"upstream", nil, domain.ErrUpstreamUnavailable, http.StatusBadGateway, "text/plain; charset=utf-8", "Failed to retrieve photo."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 0)
			f.concierge.photo, f.concierge.photoErr = tc.photo, tc.err

			// no identity needed
			rr := f.do(http.MethodGet, "/restaurants/place-1/photo", "", "")
			if rr.Code != tc.wantCode {
				t.Fatalf("got %d, want %d", rr.Code, tc.wantCode)
			}
			if ct := rr.Header().Get("Content-Type"); ct != tc.wantType {
				t.Errorf("content type = %q", ct)
			}
			if rr.Body.String() != tc.wantBody {
				t.Errorf("body = %q", rr.Body.String())
			}
		})
	}
}

// --- operational ---

func TestHealth(t *testing.T) {
	f := newFixture(t, 0)
	rr := f.do(http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Errorf("got %d %s", rr.Code, rr.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, 0)
	req := httptest.NewRequest(http.MethodOptions, "/query", http.NoBody)
	req.Header.Set("Origin", "https://app.pairfecto.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing allow-origin, headers: %v", rr.Header())
	}
}
