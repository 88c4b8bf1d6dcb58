package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/expenseflow/expenseflow/internal/directory"
	"github.com/expenseflow/expenseflow/internal/platform/httpx"
	"github.com/expenseflow/expenseflow/internal/shared"
)

// Handler exposes authentication endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	auth     shared.AuthMiddleware
	validate *validator.Validate
}

// NewHandler constructs the auth HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, auth shared.AuthMiddleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		auth:     auth,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes attaches auth routes to the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/signup", h.signup)
	r.Post("/login", h.login)
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAuth)
		r.Post("/logout", h.logout)
		r.Get("/me", h.me)
	})
}

type signupRequest struct {
	CompanyName     string `json:"companyName" validate:"required,min=2,max=120"`
	DefaultCurrency string `json:"defaultCurrency" validate:"omitempty,len=3"`
	Name            string `json:"name" validate:"required,min=2,max=120"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Token string           `json:"token"`
	User  shared.Principal `json:"user"`
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, token, err := h.service.Signup(r.Context(), SignupInput{
		CompanyName:     req.CompanyName,
		DefaultCurrency: req.DefaultCurrency,
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
	})
	if err != nil {
		if errors.Is(err, directory.ErrDuplicateEmail) {
			httpx.Problem(w, http.StatusConflict, "Duplicate Email", "an account with this email already exists")
			return
		}
		if errors.Is(err, directory.ErrValidation) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("auth: signup failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "could not create account")
		return
	}
	httpx.JSON(w, http.StatusCreated, sessionResponse{Token: token, User: principalOf(user)})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Invalid Credentials", "email or password is incorrect")
			return
		}
		h.logger.Error("auth: login failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "could not log in")
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{Token: token, User: principalOf(user)})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token := shared.BearerToken(r)
	if token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			h.logger.Warn("auth: logout failed", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no active session")
		return
	}
	httpx.JSON(w, http.StatusOK, principal)
}

func principalOf(user directory.User) shared.Principal {
	return shared.Principal{
		UserID:    user.ID,
		Name:      user.Name,
		Role:      user.Role,
		CompanyID: user.CompanyID,
	}
}
