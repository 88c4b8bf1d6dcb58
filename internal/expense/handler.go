package expense

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/expenseflow/expenseflow/internal/directory"
	"github.com/expenseflow/expenseflow/internal/platform/httpx"
	"github.com/expenseflow/expenseflow/internal/shared"
)

// Handler manages expense claim endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	auth      shared.AuthMiddleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, auth shared.AuthMiddleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		auth:      auth,
		validator: validator.New(),
	}
}

// MountRoutes registers expense routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAuth)

		r.Post("/", h.handleSubmit)
		r.Get("/my-expenses", h.handleMyExpenses)
		r.Get("/{id}", h.handleGet)
		r.Get("/pending-for-me", h.handlePendingForMe)
		r.Get("/completed", h.handleCompleted)
		r.Put("/{id}/status", h.handleDecide)

		r.Group(func(r chi.Router) {
			r.Use(h.auth.RequireRole(shared.RoleAdmin))
			r.Get("/all-pending", h.handleAllPending)
			r.Put("/{id}/force-status", h.handleOverride)
		})
	})
}

type submitRequest struct {
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Currency    string  `json:"currency" validate:"required,len=3"`
	Category    string  `json:"category" validate:"required,oneof=Travel Food Supplies Other"`
	Description string  `json:"description" validate:"required"`
	Date        string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type decisionRequest struct {
	Status   string `json:"status" validate:"required,oneof=Approved Rejected"`
	Comments string `json:"comments"`
}

type claimResponse struct {
	ID                   uuid.UUID      `json:"id"`
	SubmittedBy          uuid.UUID      `json:"submittedBy"`
	Amount               float64        `json:"amount"`
	Currency             string         `json:"currency"`
	Category             Category       `json:"category"`
	Description          string         `json:"description"`
	ClaimDate            time.Time      `json:"date"`
	Status               Status         `json:"status"`
	ApprovalPath         []ApprovalStep `json:"approvalPath"`
	CurrentApproverIndex int            `json:"currentApproverIndex"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
}

func toClaimResponse(c Claim) claimResponse {
	return claimResponse{
		ID:                   c.ID,
		SubmittedBy:          c.SubmittedBy,
		Amount:               c.Amount,
		Currency:             c.Currency,
		Category:             c.Category,
		Description:          c.Description,
		ClaimDate:            c.ClaimDate,
		Status:               c.Status,
		ApprovalPath:         c.ApprovalPath,
		CurrentApproverIndex: c.CurrentApproverIndex,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	var req submitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := SubmitInput{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Category:    Category(req.Category),
		Description: req.Description,
	}
	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid date")
			return
		}
		input.ClaimDate = date
	}

	claim, err := h.service.Submit(r.Context(), *principal, input)
	if err != nil {
		h.respondError(w, "submit claim", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toClaimResponse(claim))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	claimID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	claim, err := h.service.Get(r.Context(), *principal, claimID)
	if err != nil {
		h.respondError(w, "get claim", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toClaimResponse(claim))
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	claimID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	claim, err := h.service.Decide(r.Context(), *principal, claimID, Decision(req.Status), req.Comments)
	if err != nil {
		h.respondError(w, "decide claim", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toClaimResponse(claim))
}

func (h *Handler) handleOverride(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	claimID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	claim, err := h.service.Override(r.Context(), *principal, claimID, Decision(req.Status), req.Comments)
	if err != nil {
		h.respondError(w, "override claim", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toClaimResponse(claim))
}

func (h *Handler) handleMyExpenses(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, "my expenses", h.service.MyExpenses)
}

func (h *Handler) handlePendingForMe(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, "pending for approver", h.service.PendingForApprover)
}

func (h *Handler) handleAllPending(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, "all pending", h.service.AllPending)
}

func (h *Handler) handleCompleted(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, "completed", h.service.Completed)
}

type listFn func(ctx context.Context, principal shared.Principal) ([]ClaimProjection, error)

func (h *Handler) respondList(w http.ResponseWriter, r *http.Request, op string, list listFn) {
	principal := shared.PrincipalFromContext(r.Context())
	claims, err := list(r.Context(), *principal)
	if err != nil {
		h.respondError(w, op, err)
		return
	}
	if claims == nil {
		claims = []ClaimProjection{}
	}
	httpx.JSON(w, http.StatusOK, claims)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		httpx.RespondError(w, httpx.ErrValidation)
	case errors.Is(err, ErrNotCurrentApprover), errors.Is(err, ErrAdminOnly):
		httpx.RespondError(w, httpx.ErrForbidden)
	case errors.Is(err, ErrClaimFinalized):
		httpx.RespondError(w, httpx.ErrConflict)
	case errors.Is(err, ErrNoManagerAssigned), errors.Is(err, ErrNoAdminConfigured):
		httpx.RespondError(w, httpx.ErrUnprocessable)
	case errors.Is(err, ErrNotFound), errors.Is(err, directory.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
