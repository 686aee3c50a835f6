package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"stellartourism.org/internal/auth"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

type staticOwners struct {
	owners map[string]string
}

func (s staticOwners) OwnsResource(ctx context.Context, userID, resourceType, resourceID string) (bool, error) {
	return s.owners[resourceType+"/"+resourceID] == userID, nil
}

func newTestAPI(t *testing.T, opts ...auth.ServiceOption) *apiClient {
	t.Helper()

	store := auth.NewFileBlacklistStore(filepath.Join(t.TempDir(), "blacklist.json"))
	base := []auth.ServiceOption{
		auth.WithCompactionCooldown(0),
		auth.WithBcryptCost(bcrypt.MinCost),
		auth.WithOwnershipStore(staticOwners{owners: map[string]string{
			"reservas/res-1": "user-1",
		}}),
	}
	svc, err := auth.NewService([]byte("test-secret"), store, append(base, opts...)...)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}

	api := New(ReadyProbe{}, svc, "test")
	api.rateBurst = 100
	api.ratePerSec = 100
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, headers map[string]string) *http.Response {
	return c.do(http.MethodGet, path, nil, headers)
}

func (c *apiClient) obtainToken(user string, roles []string) string {
	c.t.Helper()
	resp := c.post("/v1/auth/token", map[string]any{
		"user":  user,
		"roles": roles,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected token status: %d", resp.StatusCode)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode token response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.Token
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
}

func TestIssueTokenValidation(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/token", map[string]any{"roles": []string{"user"}}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing user: expected 400, got %d", resp.StatusCode)
	}

	resp = api.post("/v1/auth/token", map[string]any{"user": "u", "ttl_seconds": -5}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative ttl: expected 400, got %d", resp.StatusCode)
	}

	resp = api.get("/v1/auth/token", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET: expected 405, got %d", resp.StatusCode)
	}
}

func TestResourceRoutesRequireAuth(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/v1/reservas/res-1", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["code"] != "authentication_required" {
		t.Fatalf("unexpected error code: %v", body["code"])
	}
}

func TestResourceRoutesEnforceOwnership(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("user-1", []string{"user"})
	authz := map[string]string{"Authorization": "Bearer " + token}

	// Owned booking clears the guard; the route itself is unrouted, so the
	// mux answers 404 rather than 401/403.
	resp := api.get("/v1/reservas/res-1", authz)
	resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		t.Fatalf("owned booking must pass the guard, got %d", resp.StatusCode)
	}

	resp = api.get("/v1/reservas/res-2", authz)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign booking: expected 403, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["code"] != "permission_denied" {
		t.Fatalf("unexpected error code: %v", body["code"])
	}
}

func TestRevokeInvalidatesToken(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("user-1", []string{"user"})
	authz := map[string]string{"Authorization": "Bearer " + token}

	resp := api.post("/v1/auth/revoke", nil, authz)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revoke: expected 200, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["status"] != "revoked" {
		t.Fatalf("unexpected body: %v", body)
	}

	resp = api.get("/v1/reservas/res-1", authz)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked token: expected 401, got %d", resp.StatusCode)
	}
}

func TestRevokeFromBody(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("user-1", []string{"user"})

	resp := api.post("/v1/auth/revoke", map[string]any{"token": token}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRevokeRequiresToken(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/revoke", map[string]any{}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPasswordStrengthEndpoint(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/password/strength", map[string]any{"password": "Abc12345!"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	report := decode[auth.StrengthReport](t, resp)
	if !report.Strong || report.Score != 5 {
		t.Fatalf("unexpected report: %+v", report)
	}

	resp = api.post("/v1/auth/password/strength", map[string]any{"password": "abc"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	report = decode[auth.StrengthReport](t, resp)
	if report.Strong || report.Score != 1 || len(report.Errors) != 4 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestOpenAPISpecServed(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/openapi.yaml", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/yaml; charset=utf-8" {
		t.Fatalf("unexpected content type: %s", ct)
	}
}
