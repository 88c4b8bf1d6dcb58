package auth

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
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/expenseflow/expenseflow/internal/directory"
	"github.com/expenseflow/expenseflow/internal/fx"
	"github.com/expenseflow/expenseflow/internal/shared"
)

type memoryDirectory struct {
	users     map[string]directory.User
	companies []directory.Company
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{users: make(map[string]directory.User)}
}

func (m *memoryDirectory) FindUserByEmail(_ context.Context, email string) (directory.User, error) {
	user, ok := m.users[email]
	if !ok {
		return directory.User{}, directory.ErrNotFound
	}
	return user, nil
}

func (m *memoryDirectory) CreateCompanyWithAdmin(_ context.Context, company directory.Company, admin directory.User) (directory.Company, directory.User, error) {
	if _, ok := m.users[admin.Email]; ok {
		return directory.Company{}, directory.User{}, directory.ErrDuplicateEmail
	}
	company.ID = uuid.New()
	if company.DefaultCurrency == "" {
		company.DefaultCurrency = "INR"
	}
	normalized, err := fx.NormalizeCode(company.DefaultCurrency)
	if err != nil {
		return directory.Company{}, directory.User{}, directory.ErrValidation
	}
	company.DefaultCurrency = normalized
	m.companies = append(m.companies, company)
	admin.ID = uuid.New()
	admin.CompanyID = company.ID
	admin.Role = shared.RoleAdmin
	m.users[admin.Email] = admin
	return company, admin, nil
}

func newTestHandler(t *testing.T) (*Handler, *memoryDirectory) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens := shared.NewTokenManager(client, "test:token", time.Hour)
	dir := newMemoryDirectory()
	service := NewService(dir, tokens)
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	auth := shared.AuthMiddleware{Tokens: tokens, Logger: logger}
	return NewHandler(logger, service, auth), dir
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/auth", h.MountRoutes)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
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
	router.ServeHTTP(rec, req)
	return rec
}

func signupBody() map[string]string {
	return map[string]string{
		"companyName": "Acme Traders",
		"name":        "Asha Rao",
		"email":       "asha@acme.example",
		"password":    "correct horse",
	}
}

func TestSignupCreatesAdminSession(t *testing.T) {
	h, dir := newTestHandler(t)
	router := newRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/signup", "", signupBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	require.Equal(t, shared.RoleAdmin, resp.User.Role)

	stored, ok := dir.users["asha@acme.example"]
	require.True(t, ok)
	require.NotEqual(t, "correct horse", stored.PasswordHash)
}

func TestSignupNormalizesDefaultCurrency(t *testing.T) {
	h, dir := newTestHandler(t)
	router := newRouter(h)

	body := signupBody()
	body["defaultCurrency"] = "usd"
	rec := doJSON(t, router, http.MethodPost, "/api/auth/signup", "", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, dir.companies, 1)
	require.Equal(t, "USD", dir.companies[0].DefaultCurrency)
}

func TestSignupRejectsUnknownCurrency(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newRouter(h)

	body := signupBody()
	body["defaultCurrency"] = "us1"
	rec := doJSON(t, router, http.MethodPost, "/api/auth/signup", "", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignupDuplicateEmail(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/signup", "", signupBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/auth/signup", "", signupBody())
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/signup", "", signupBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "asha@acme.example",
		"password": "wrong horse",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginAndMe(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/signup", "", signupBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "asha@acme.example",
		"password": "correct horse",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = doJSON(t, router, http.MethodGet, "/api/auth/me", resp.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var me shared.Principal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.Equal(t, resp.User.UserID, me.UserID)
	require.Equal(t, "Asha Rao", me.Name)
}

func TestLogoutRevokesToken(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/signup", "", signupBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = doJSON(t, router, http.MethodPost, "/api/auth/logout", resp.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/auth/me", resp.Token, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeWithoutToken(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newRouter(h)

	rec := doJSON(t, router, http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
