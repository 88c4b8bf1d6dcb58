package directory

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/expenseflow/expenseflow/internal/platform/httpx"
	"github.com/expenseflow/expenseflow/internal/shared"
)

// Handler manages user and company endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	hasher    PasswordHasher
	auth      shared.AuthMiddleware
	validator *validator.Validate
}

// PasswordHasher hashes plaintext passwords for storage.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, hasher PasswordHasher, auth shared.AuthMiddleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		hasher:    hasher,
		auth:      auth,
		validator: validator.New(),
	}
}

// MountRoutes registers directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAuth)
		r.Get("/managers", h.handleListManagers)

		r.Group(func(r chi.Router) {
			r.Use(h.auth.RequireRole(shared.RoleAdmin))
			r.Post("/", h.handleCreateUser)
			r.Get("/", h.handleListUsers)
		})
	})
}

// MountAnalyticsRoutes registers the role head-count summaries.
func (h *Handler) MountAnalyticsRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAuth)
		r.With(h.auth.RequireRole(shared.RoleAdmin)).Get("/admin-summary", h.handleAdminSummary)
		r.With(h.auth.RequireRole(shared.RoleManager)).Get("/manager-summary", h.handleManagerSummary)
	})
}

type createUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=Employee Manager"`
	Manager  string `json:"manager" validate:"omitempty,uuid4"`
}

type userResponse struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	CompanyID uuid.UUID  `json:"company"`
	ManagerID *uuid.UUID `json:"manager,omitempty"`
}

func toUserResponse(u User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		CompanyID: u.CompanyID,
		ManagerID: u.ManagerID,
	}
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.logger.Error("hash password", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	input := CreateUserInput{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         shared.Role(req.Role),
	}
	if req.Manager != "" {
		managerID, err := uuid.Parse(req.Manager)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid manager id")
			return
		}
		input.ManagerID = &managerID
	}

	user, err := h.service.CreateUser(r.Context(), *principal, input)
	if err != nil {
		h.respondError(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	users, err := h.service.ListUsers(r.Context(), *principal)
	if err != nil {
		h.respondError(w, "list users", err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleListManagers(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	managers, err := h.service.ListManagers(r.Context(), *principal)
	if err != nil {
		h.respondError(w, "list managers", err)
		return
	}
	type managerResponse struct {
		ID   uuid.UUID `json:"_id"`
		Name string    `json:"name"`
	}
	out := make([]managerResponse, 0, len(managers))
	for _, m := range managers {
		out = append(out, managerResponse{ID: m.ID, Name: m.Name})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleAdminSummary(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	summary, err := h.service.AdminSummary(r.Context(), *principal)
	if err != nil {
		h.respondError(w, "admin summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleManagerSummary(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	summary, err := h.service.ManagerSummary(r.Context(), *principal)
	if err != nil {
		h.respondError(w, "manager summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		httpx.RespondError(w, httpx.ErrValidation)
	case errors.Is(err, ErrDuplicateEmail):
		httpx.RespondError(w, httpx.ErrDuplicate)
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
