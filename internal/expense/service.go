package expense

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/expenseflow/expenseflow/internal/directory"
	"github.com/expenseflow/expenseflow/internal/fx"
	"github.com/expenseflow/expenseflow/internal/shared"
)

// RepositoryPort describes claim persistence used by Service. Mutate applies
// a read-modify-write against a single claim as one atomic unit; the mutator
// runs against the freshly locked row so concurrent decisions serialize and
// the loser fails its precondition check deterministically.
type RepositoryPort interface {
	Create(ctx context.Context, claim Claim) error
	Get(ctx context.Context, companyID, claimID uuid.UUID) (Claim, error)
	Mutate(ctx context.Context, companyID, claimID uuid.UUID, mutator func(Claim) (Claim, error)) (Claim, error)
	ListPendingForApprover(ctx context.Context, companyID, approverID uuid.UUID) ([]Claim, error)
	ListPending(ctx context.Context, companyID uuid.UUID) ([]Claim, error)
	ListCompleted(ctx context.Context, companyID uuid.UUID) ([]Claim, error)
	ListBySubmitter(ctx context.Context, companyID, submitterID uuid.UUID) ([]Claim, error)
}

// DirectoryPort exposes the user/org lookups the workflow needs.
type DirectoryPort interface {
	GetUser(ctx context.Context, companyID, userID uuid.UUID) (directory.User, error)
	GetCompanyAdmin(ctx context.Context, companyID uuid.UUID) (directory.User, error)
	GetCompany(ctx context.Context, companyID uuid.UUID) (directory.Company, error)
}

// ConverterPort resolves FX rates for presentation views.
type ConverterPort interface {
	Rates(ctx context.Context, pairs []fx.Pair) map[string]float64
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// WarmupPort schedules background rate-cache warmups for currency pairs.
type WarmupPort interface {
	EnqueueFXWarmup(ctx context.Context, pairs [][2]string) error
}

// Service orchestrates the expense approval workflow.
type Service struct {
	repo      RepositoryPort
	directory DirectoryPort
	converter ConverterPort
	audit     AuditPort
	warmup    WarmupPort
	now       func() time.Time
}

// NewService constructs the expense service. warmup may be nil when no
// background queue is available.
func NewService(repo RepositoryPort, dir DirectoryPort, converter ConverterPort, audit AuditPort, warmup WarmupPort) *Service {
	return &Service{repo: repo, directory: dir, converter: converter, audit: audit, warmup: warmup, now: time.Now}
}

// SubmitInput describes a new claim payload.
type SubmitInput struct {
	Amount      float64
	Currency    string
	Category    Category
	Description string
	ClaimDate   time.Time
}

// Submit validates the payload, builds the approval path from the
// organizational hierarchy and persists the claim in one create. Nothing is
// persisted when path construction fails.
func (s *Service) Submit(ctx context.Context, principal shared.Principal, input SubmitInput) (Claim, error) {
	if input.Amount <= 0 {
		return Claim{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	currency, err := fx.NormalizeCode(input.Currency)
	if err != nil {
		return Claim{}, fmt.Errorf("%w: %s", ErrValidation, input.Currency)
	}
	if !ValidCategory(input.Category) {
		return Claim{}, fmt.Errorf("%w: unknown category %q", ErrValidation, input.Category)
	}
	if input.Description == "" {
		return Claim{}, fmt.Errorf("%w: description required", ErrValidation)
	}

	submitter, err := s.directory.GetUser(ctx, principal.CompanyID, principal.UserID)
	if err != nil {
		return Claim{}, err
	}

	var manager *Approver
	if submitter.ManagerID != nil {
		managerUser, err := s.directory.GetUser(ctx, principal.CompanyID, *submitter.ManagerID)
		if err != nil {
			return Claim{}, fmt.Errorf("resolve manager: %w", err)
		}
		manager = &Approver{ID: managerUser.ID, Name: managerUser.Name}
	}

	var admin *Approver
	adminUser, err := s.directory.GetCompanyAdmin(ctx, principal.CompanyID)
	switch {
	case err == nil:
		admin = &Approver{ID: adminUser.ID, Name: adminUser.Name}
	case errors.Is(err, directory.ErrNoAdmin):
		// leave nil; the builder reports ErrNoAdminConfigured
	default:
		return Claim{}, err
	}

	path, err := BuildApprovalPath(manager, admin)
	if err != nil {
		return Claim{}, err
	}

	now := s.now()
	claimDate := input.ClaimDate
	if claimDate.IsZero() {
		claimDate = now
	}
	claim := Claim{
		ID:                   uuid.New(),
		CompanyID:            principal.CompanyID,
		SubmittedBy:          submitter.ID,
		SubmitterName:        submitter.Name,
		Amount:               input.Amount,
		Currency:             currency,
		Category:             input.Category,
		Description:          input.Description,
		ClaimDate:            claimDate,
		Status:               StatusPending,
		ApprovalPath:         path,
		CurrentApproverIndex: 0,
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.repo.Create(ctx, claim); err != nil {
		return Claim{}, err
	}

	s.recordAudit(ctx, principal, "CLAIM_SUBMIT", claim.ID, map[string]any{
		"amount": claim.Amount, "currency": claim.Currency, "steps": len(path),
	})
	s.scheduleWarmup(ctx, claim)
	return claim, nil
}

// scheduleWarmup pre-fetches the claim's conversion rate in the background so
// the first listing after a cross-currency submission hits a warm cache. Best
// effort; queue failures never fail the submission.
func (s *Service) scheduleWarmup(ctx context.Context, claim Claim) {
	if s.warmup == nil {
		return
	}
	company, err := s.directory.GetCompany(ctx, claim.CompanyID)
	if err != nil || company.DefaultCurrency == claim.Currency {
		return
	}
	_ = s.warmup.EnqueueFXWarmup(ctx, [][2]string{{claim.Currency, company.DefaultCurrency}})
}

// Decide applies an in-order approver decision as a single atomic
// read-modify-write against the claim document.
func (s *Service) Decide(ctx context.Context, principal shared.Principal, claimID uuid.UUID, decision Decision, comments string) (Claim, error) {
	updated, err := s.repo.Mutate(ctx, principal.CompanyID, claimID, func(claim Claim) (Claim, error) {
		return ApplyDecision(claim, principal.UserID, decision, comments, s.now())
	})
	if err != nil {
		return Claim{}, err
	}
	s.recordAudit(ctx, principal, "CLAIM_DECIDE", claimID, map[string]any{
		"decision": string(decision), "status": string(updated.Status), "step": updated.CurrentApproverIndex,
	})
	return updated, nil
}

// Override force-finalizes a claim regardless of whose turn it is. Callers
// gate the route by role already; the service re-checks as a backstop.
func (s *Service) Override(ctx context.Context, principal shared.Principal, claimID uuid.UUID, decision Decision, comments string) (Claim, error) {
	if !principal.IsAdmin() {
		return Claim{}, ErrAdminOnly
	}
	updated, err := s.repo.Mutate(ctx, principal.CompanyID, claimID, func(claim Claim) (Claim, error) {
		return ForceFinalize(claim, decision, comments, s.now())
	})
	if err != nil {
		return Claim{}, err
	}
	s.recordAudit(ctx, principal, "CLAIM_OVERRIDE", claimID, map[string]any{
		"decision": string(decision), "status": string(updated.Status),
	})
	return updated, nil
}

// Get fetches a single claim within the caller's tenant.
func (s *Service) Get(ctx context.Context, principal shared.Principal, claimID uuid.UUID) (Claim, error) {
	return s.repo.Get(ctx, principal.CompanyID, claimID)
}

func (s *Service) recordAudit(ctx context.Context, principal shared.Principal, action string, claimID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  principal.UserID,
		Action:   action,
		Entity:   "expense_claim",
		EntityID: claimID.String(),
		Meta:     meta,
	})
}
