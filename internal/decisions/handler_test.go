package decisions_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-compliance/meridian/internal/authz"
	"github.com/meridian-compliance/meridian/internal/decisions"
	"github.com/meridian-compliance/meridian/internal/directory"
	_ "github.com/meridian-compliance/meridian/testing"
)

type fakeRepo struct {
	accounts    map[int64]directory.Account
	assignments map[int64][]int64
}

func (r *fakeRepo) GetAccount(ctx context.Context, id int64) (*directory.Account, error) {
	account, ok := r.accounts[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return &account, nil
}

func (r *fakeRepo) ListAssignedClientIDs(ctx context.Context, accountID int64) ([]int64, error) {
	return r.assignments[accountID], nil
}

func (r *fakeRepo) ListAssignments(ctx context.Context, accountID int64, limit, offset int) ([]directory.ClientAssignment, error) {
	var assignments []directory.ClientAssignment
	for _, clientID := range r.assignments[accountID] {
		assignments = append(assignments, directory.ClientAssignment{AccountID: accountID, ClientID: clientID, GrantedAt: time.Now()})
	}
	return assignments, nil
}

func (r *fakeRepo) CountAssignments(ctx context.Context, accountID int64) (int, error) {
	return len(r.assignments[accountID]), nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	repo := &fakeRepo{
		accounts: map[int64]directory.Account{
			1: {ID: 1, Role: authz.RoleViewer, TenantID: 1, IsActive: true},
			2: {ID: 2, Role: authz.RoleClientPortalUser, TenantID: 1, IsActive: true},
			3: {ID: 3, Role: authz.RoleFirmAdmin, TenantID: 1, IsActive: true},
			7: {ID: 7, Role: authz.RoleFirmAdmin, TenantID: 2, IsActive: true},
		},
		assignments: map[int64][]int64{2: {1, 5, 10}},
	}
	directorySvc := directory.NewService(repo)
	service := decisions.NewService(directorySvc, newTestLogger(), nil)
	handler := decisions.NewHandler(newTestLogger(), service, directorySvc, decisions.Middleware{Logger: newTestLogger()})
	router := chi.NewRouter()
	router.Route("/v1", handler.MountRoutes)
	return router
}

func asActor(req *http.Request, actor authz.Actor) *http.Request {
	return req.WithContext(authz.WithActor(req.Context(), actor))
}

func TestCheckEndpointSelf(t *testing.T) {
	router := newTestRouter(t)
	viewer := authz.Actor{UserID: "1", Role: authz.RoleViewer, TenantID: 1}

	req := httptest.NewRequest(http.MethodPost, "/v1/decisions", strings.NewReader(`{"user_id":"1","module":"clients","action":"view"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, asActor(req, viewer))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var decision struct {
		DecisionID string `json:"decision_id"`
		Allowed    bool   `json:"allowed"`
		Reason     string `json:"reason"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected allowed decision, got %+v", decision)
	}
	if decision.DecisionID == "" {
		t.Fatalf("expected decision id")
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/decisions", strings.NewReader(`{"user_id":"1","module":"clients","action":"delete"}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, asActor(req, viewer))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected denial, got %+v", decision)
	}
	if !strings.Contains(decision.Reason, "Viewer") {
		t.Fatalf("expected reason to mention the role, got %q", decision.Reason)
	}
}

func TestCheckEndpointRequiresActor(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/decisions", strings.NewReader(`{"user_id":"1","module":"clients","action":"view"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestCheckEndpointAboutOtherAccount(t *testing.T) {
	router := newTestRouter(t)
	body := `{"user_id":"2","module":"documents","action":"view"}`

	req := httptest.NewRequest(http.MethodPost, "/v1/decisions", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, asActor(req, authz.Actor{UserID: "1", Role: authz.RoleViewer, TenantID: 1}))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("viewer inspecting another account: expected 403, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/decisions", strings.NewReader(body))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, asActor(req, authz.Actor{UserID: "3", Role: authz.RoleFirmAdmin, TenantID: 1}))
	if rr.Code != http.StatusOK {
		t.Fatalf("firm admin inspecting another account: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCheckEndpointValidation(t *testing.T) {
	router := newTestRouter(t)
	admin := authz.Actor{UserID: "3", Role: authz.RoleFirmAdmin, TenantID: 1}

	req := httptest.NewRequest(http.MethodPost, "/v1/decisions", strings.NewReader(`{"user_id":"3"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, asActor(req, admin))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "module") {
		t.Fatalf("expected validation detail to name the field, got %s", rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/decisions", strings.NewReader(`{not-json`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, asActor(req, admin))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rr.Code)
	}
}

func TestActorEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/actor", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, asActor(req, authz.Actor{UserID: "2", Role: authz.RoleClientPortalUser, TenantID: 1}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var response struct {
		UserID       string              `json:"user_id"`
		Role         string              `json:"role"`
		TenantID     int64               `json:"tenant_id"`
		Unrestricted bool                `json:"unrestricted"`
		Capabilities map[string][]string `json:"capabilities"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Role != "ClientPortalUser" || response.TenantID != 1 || response.Unrestricted {
		t.Fatalf("unexpected actor response %+v", response)
	}
	if len(response.Capabilities["documents"]) == 0 {
		t.Fatalf("expected documents capability, got %+v", response.Capabilities)
	}
}

func TestRolesEndpoints(t *testing.T) {
	router := newTestRouter(t)
	admin := authz.Actor{UserID: "3", Role: authz.RoleFirmAdmin, TenantID: 1}

	req := httptest.NewRequest(http.MethodGet, "/v1/roles", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, asActor(req, authz.Actor{UserID: "1", Role: authz.RoleViewer, TenantID: 1}))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("viewer listing roles: expected 403, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/roles", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, asActor(req, admin))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var listing struct {
		Roles []struct {
			Role         string `json:"role"`
			Unrestricted bool   `json:"unrestricted"`
		} `json:"roles"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(listing.Roles) != 7 {
		t.Fatalf("expected 7 roles, got %d", len(listing.Roles))
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/roles/SuperAdmin", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, asActor(req, admin))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"unrestricted":true`) {
		t.Fatalf("expected unrestricted profile, got %s", rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/roles/Intruder", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, asActor(req, admin))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown role, got %d", rr.Code)
	}
}

func TestAccountClientsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	portal := authz.Actor{UserID: "2", Role: authz.RoleClientPortalUser, TenantID: 1}
	admin := authz.Actor{UserID: "3", Role: authz.RoleFirmAdmin, TenantID: 1}

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/2/clients", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, asActor(req, portal))
	if rr.Code != http.StatusOK {
		t.Fatalf("portal reading own assignments: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var response struct {
		AccountID int64   `json:"account_id"`
		ClientIDs []int64 `json:"client_ids"`
		Total     int     `json:"total"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(response.ClientIDs) != 3 || response.Total != 3 {
		t.Fatalf("unexpected assignment listing %+v", response)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/accounts/1/clients", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, asActor(req, portal))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("portal reading someone else: expected 403, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/accounts/2/clients", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, asActor(req, admin))
	if rr.Code != http.StatusOK {
		t.Fatalf("admin reading portal assignments: expected 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/accounts/2/clients", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, asActor(req, authz.Actor{UserID: "7", Role: authz.RoleFirmAdmin, TenantID: 2}))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("cross-tenant read: expected 403, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "different tenant") {
		t.Fatalf("expected tenant denial, got %s", rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/accounts/99/clients", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, asActor(req, admin))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown account: expected 404, got %d", rr.Code)
	}
}
