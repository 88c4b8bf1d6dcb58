package directory

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

	"github.com/expenseflow/expenseflow/internal/shared"
)

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

type directoryHandlerFixture struct {
	repo   *memoryDirRepo
	router http.Handler
	tokens *shared.TokenManager
	admin  User
}

func newDirectoryHandlerFixture(t *testing.T) *directoryHandlerFixture {
	t.Helper()
	repo := newMemoryDirRepo()
	_, admin := seedTenant(t, repo)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens := shared.NewTokenManager(client, "test:token", time.Hour)
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	auth := shared.AuthMiddleware{Tokens: tokens, Logger: logger}
	h := NewHandler(logger, NewService(repo), plainHasher{}, auth)

	r := chi.NewRouter()
	r.Route("/api/users", h.MountRoutes)
	r.Route("/api/analytics", h.MountAnalyticsRoutes)
	return &directoryHandlerFixture{repo: repo, router: r, tokens: tokens, admin: admin}
}

func (f *directoryHandlerFixture) login(t *testing.T, u User) string {
	t.Helper()
	token, err := f.tokens.Issue(context.Background(),
		shared.Principal{UserID: u.ID, Name: u.Name, Role: u.Role, CompanyID: u.CompanyID})
	require.NoError(t, err)
	return token
}

func (f *directoryHandlerFixture) doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
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
	f.router.ServeHTTP(rec, req)
	return rec
}

func createUserBody(role string) map[string]string {
	return map[string]string{
		"name":     "Meera Nair",
		"email":    "meera@acme.example",
		"password": "long enough",
		"role":     role,
	}
}

func TestCreateUserEndpointAdminOnly(t *testing.T) {
	f := newDirectoryHandlerFixture(t)
	adminToken := f.login(t, f.admin)

	rec := f.doJSON(t, http.MethodPost, "/api/users/", adminToken, createUserBody("Manager"))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "Manager", created.Role)

	manager, err := f.repo.GetUser(context.Background(), f.admin.CompanyID, created.ID)
	require.NoError(t, err)
	require.Equal(t, "hashed:long enough", manager.PasswordHash)

	// The freshly created manager cannot provision accounts.
	managerToken := f.login(t, manager)
	rec = f.doJSON(t, http.MethodPost, "/api/users/", managerToken, createUserBody("Employee"))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateUserEndpointRequiresAuth(t *testing.T) {
	f := newDirectoryHandlerFixture(t)

	rec := f.doJSON(t, http.MethodPost, "/api/users/", "", createUserBody("Manager"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListManagersVisibleToAllRoles(t *testing.T) {
	f := newDirectoryHandlerFixture(t)
	adminToken := f.login(t, f.admin)

	rec := f.doJSON(t, http.MethodPost, "/api/users/", adminToken, createUserBody("Manager"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	manager, err := f.repo.GetUser(context.Background(), f.admin.CompanyID, created.ID)
	require.NoError(t, err)
	managerToken := f.login(t, manager)

	rec = f.doJSON(t, http.MethodGet, "/api/users/managers", managerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var managers []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &managers))
	require.Len(t, managers, 1)
	require.Equal(t, "Meera Nair", managers[0]["name"])
}

func TestAnalyticsRoutesGatedByRole(t *testing.T) {
	f := newDirectoryHandlerFixture(t)
	adminToken := f.login(t, f.admin)

	rec := f.doJSON(t, http.MethodPost, "/api/users/", adminToken, createUserBody("Manager"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	manager, err := f.repo.GetUser(context.Background(), f.admin.CompanyID, created.ID)
	require.NoError(t, err)
	managerToken := f.login(t, manager)

	rec = f.doJSON(t, http.MethodGet, "/api/analytics/admin-summary", managerToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.doJSON(t, http.MethodGet, "/api/analytics/manager-summary", adminToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.doJSON(t, http.MethodGet, "/api/analytics/admin-summary", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
