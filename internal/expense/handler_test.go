package expense

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/expenseflow/expenseflow/internal/directory"
	"github.com/expenseflow/expenseflow/internal/shared"
)

type handlerFixture struct {
	*fixture
	router http.Handler
	tokens *shared.TokenManager
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := newFixture(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens := shared.NewTokenManager(client, "test:token", time.Hour)
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	auth := shared.AuthMiddleware{Tokens: tokens, Logger: logger}
	h := NewHandler(logger, f.service, auth)

	r := chi.NewRouter()
	r.Route("/api/expenses", h.MountRoutes)
	return &handlerFixture{fixture: f, router: r, tokens: tokens}
}

func (hf *handlerFixture) login(t *testing.T, u directory.User) string {
	t.Helper()
	token, err := hf.tokens.Issue(context.Background(), principalOf(u))
	require.NoError(t, err)
	return token
}

func (hf *handlerFixture) doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	hf.router.ServeHTTP(rec, req)
	return rec
}

func submitBody() map[string]any {
	return map[string]any{
		"amount":      1200.0,
		"currency":    "INR",
		"category":    "Travel",
		"description": "client visit",
		"date":        "2025-03-01",
	}
}

func TestSubmitEndpoint(t *testing.T) {
	hf := newHandlerFixture(t)
	token := hf.login(t, hf.employee)

	rec := hf.doJSON(t, http.MethodPost, "/api/expenses/", token, submitBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp claimResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, StatusPending, resp.Status)
	require.Len(t, resp.ApprovalPath, 2)
	require.Equal(t, hf.manager.ID, resp.ApprovalPath[0].ApproverID)
}

func TestSubmitRequiresAuth(t *testing.T) {
	hf := newHandlerFixture(t)

	rec := hf.doJSON(t, http.MethodPost, "/api/expenses/", "", submitBody())
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitRejectsMalformedPayload(t *testing.T) {
	hf := newHandlerFixture(t)
	token := hf.login(t, hf.employee)

	body := submitBody()
	body["amount"] = -5.0
	rec := hf.doJSON(t, http.MethodPost, "/api/expenses/", token, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAllPendingRequiresAdminRole(t *testing.T) {
	hf := newHandlerFixture(t)
	employeeToken := hf.login(t, hf.employee)
	managerToken := hf.login(t, hf.manager)
	adminToken := hf.login(t, hf.admin)

	rec := hf.doJSON(t, http.MethodPost, "/api/expenses/", employeeToken, submitBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = hf.doJSON(t, http.MethodGet, "/api/expenses/all-pending", managerToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = hf.doJSON(t, http.MethodGet, "/api/expenses/all-pending", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []ClaimProjection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, hf.manager.Name, list[0].CurrentApprover)
}

func TestForceStatusRequiresAdminRole(t *testing.T) {
	hf := newHandlerFixture(t)
	employeeToken := hf.login(t, hf.employee)
	managerToken := hf.login(t, hf.manager)
	adminToken := hf.login(t, hf.admin)

	rec := hf.doJSON(t, http.MethodPost, "/api/expenses/", employeeToken, submitBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var claim claimResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claim))

	override := map[string]string{"status": "Approved", "comments": "quarter close"}

	rec = hf.doJSON(t, http.MethodPut, "/api/expenses/"+claim.ID.String()+"/force-status", managerToken, override)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = hf.doJSON(t, http.MethodPut, "/api/expenses/"+claim.ID.String()+"/force-status", adminToken, override)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated claimResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Equal(t, StatusApproved, updated.Status)
}

func TestDecideOutOfTurnForbidden(t *testing.T) {
	hf := newHandlerFixture(t)
	employeeToken := hf.login(t, hf.employee)
	adminToken := hf.login(t, hf.admin)

	rec := hf.doJSON(t, http.MethodPost, "/api/expenses/", employeeToken, submitBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var claim claimResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claim))

	// The admin is the second step; the manager has not decided yet.
	rec = hf.doJSON(t, http.MethodPut, "/api/expenses/"+claim.ID.String()+"/status", adminToken,
		map[string]string{"status": "Approved"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}
