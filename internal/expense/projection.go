package expense

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/expenseflow/expenseflow/internal/fx"
	"github.com/expenseflow/expenseflow/internal/shared"
)

// ClaimProjection is the presentation shape of a claim: every persisted field
// plus amounts normalized into the company's reporting currency. Computed
// fields are never written back to the claim record.
type ClaimProjection struct {
	ID                   uuid.UUID      `json:"id"`
	SubmittedBy          uuid.UUID      `json:"submittedBy"`
	SubmitterName        string         `json:"submitterName"`
	Amount               float64        `json:"amount"`
	Currency             string         `json:"currency"`
	Category             Category       `json:"category"`
	Description          string         `json:"description"`
	ClaimDate            time.Time      `json:"date"`
	Status               Status         `json:"status"`
	ApprovalPath         []ApprovalStep `json:"approvalPath"`
	CurrentApproverIndex int            `json:"currentApproverIndex"`
	CurrentApprover      string         `json:"currentApprover,omitempty"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`

	CompanyCurrency string   `json:"companyCurrency"`
	ConvertedAmount *float64 `json:"convertedAmount,omitempty"`
	ConversionError bool     `json:"conversionError,omitempty"`
}

// PendingForApprover lists claims currently waiting on the principal,
// oldest claim date first.
func (s *Service) PendingForApprover(ctx context.Context, principal shared.Principal) ([]ClaimProjection, error) {
	claims, err := s.repo.ListPendingForApprover(ctx, principal.CompanyID, principal.UserID)
	if err != nil {
		return nil, err
	}
	return s.project(ctx, principal, claims)
}

// AllPending lists every pending claim in the tenant, newest first, naming
// the current approver for visibility.
func (s *Service) AllPending(ctx context.Context, principal shared.Principal) ([]ClaimProjection, error) {
	claims, err := s.repo.ListPending(ctx, principal.CompanyID)
	if err != nil {
		return nil, err
	}
	return s.project(ctx, principal, claims)
}

// Completed lists the tenant's terminal claims, most recently decided first.
func (s *Service) Completed(ctx context.Context, principal shared.Principal) ([]ClaimProjection, error) {
	claims, err := s.repo.ListCompleted(ctx, principal.CompanyID)
	if err != nil {
		return nil, err
	}
	return s.project(ctx, principal, claims)
}

// MyExpenses lists the principal's own submission history, newest first.
func (s *Service) MyExpenses(ctx context.Context, principal shared.Principal) ([]ClaimProjection, error) {
	claims, err := s.repo.ListBySubmitter(ctx, principal.CompanyID, principal.UserID)
	if err != nil {
		return nil, err
	}
	return s.project(ctx, principal, claims)
}

// project normalizes amounts for a batch of claims. Conversion requests are
// deduplicated by currency pair and resolved with bounded concurrency; a
// provider failure flags the affected claims instead of failing the listing,
// so claim status always reaches the caller.
func (s *Service) project(ctx context.Context, principal shared.Principal, claims []Claim) ([]ClaimProjection, error) {
	company, err := s.directory.GetCompany(ctx, principal.CompanyID)
	if err != nil {
		return nil, err
	}

	pairs := make([]fx.Pair, 0, len(claims))
	for _, claim := range claims {
		pairs = append(pairs, fx.Pair{From: claim.Currency, To: company.DefaultCurrency})
	}
	var rates map[string]float64
	if s.converter != nil {
		rates = s.converter.Rates(ctx, pairs)
	}

	out := make([]ClaimProjection, 0, len(claims))
	for _, claim := range claims {
		out = append(out, buildProjection(claim, company.DefaultCurrency, rates))
	}
	return out, nil
}

func buildProjection(claim Claim, companyCurrency string, rates map[string]float64) ClaimProjection {
	p := ClaimProjection{
		ID:                   claim.ID,
		SubmittedBy:          claim.SubmittedBy,
		SubmitterName:        claim.SubmitterName,
		Amount:               claim.Amount,
		Currency:             claim.Currency,
		Category:             claim.Category,
		Description:          claim.Description,
		ClaimDate:            claim.ClaimDate,
		Status:               claim.Status,
		ApprovalPath:         claim.ApprovalPath,
		CurrentApproverIndex: claim.CurrentApproverIndex,
		CurrentApprover:      claim.CurrentApproverName(),
		CreatedAt:            claim.CreatedAt,
		UpdatedAt:            claim.UpdatedAt,
		CompanyCurrency:      companyCurrency,
	}

	pair := fx.Pair{From: claim.Currency, To: companyCurrency}
	if pair.Same() {
		amount := claim.Amount
		p.ConvertedAmount = &amount
		return p
	}
	if rate, ok := rates[pair.Key()]; ok {
		converted := fx.Round2(claim.Amount * rate)
		p.ConvertedAmount = &converted
		return p
	}
	p.ConversionError = true
	return p
}
