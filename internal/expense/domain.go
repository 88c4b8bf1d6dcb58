package expense

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Claim lifecycle statuses. A step and the overall claim share the same set.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// Decision is a terminal choice made by an approver.
type Decision string

const (
	DecisionApproved Decision = "Approved"
	DecisionRejected Decision = "Rejected"
)

// ValidDecision reports whether the value is a known decision.
func ValidDecision(d Decision) bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Category enumerates expense categories.
type Category string

const (
	CategoryTravel   Category = "Travel"
	CategoryFood     Category = "Food"
	CategorySupplies Category = "Supplies"
	CategoryOther    Category = "Other"
)

// ValidCategory reports whether the value is a known category.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryTravel, CategoryFood, CategorySupplies, CategoryOther:
		return true
	}
	return false
}

// ApprovalStep is one entry in a claim's approval path. Steps are
// materialized once at submission and mutated exactly once each.
type ApprovalStep struct {
	ApproverID   uuid.UUID  `json:"approver_id"`
	ApproverName string     `json:"approver_name"`
	Status       Status     `json:"status"`
	Comments     string     `json:"comments,omitempty"`
	ActionAt     *time.Time `json:"action_at,omitempty"`
}

// Claim is the persisted expense claim document. Derived presentation fields
// (converted amounts) never live here; see ClaimProjection.
type Claim struct {
	ID                   uuid.UUID
	CompanyID            uuid.UUID
	SubmittedBy          uuid.UUID
	SubmitterName        string
	Amount               float64
	Currency             string
	Category             Category
	Description          string
	ClaimDate            time.Time
	Status               Status
	ApprovalPath         []ApprovalStep
	CurrentApproverIndex int
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Final reports whether the claim reached a terminal status.
func (c Claim) Final() bool {
	return c.Status != StatusPending
}

// CurrentStep returns the sole step eligible for action, or nil once the
// claim is terminal or the index is out of range.
func (c Claim) CurrentStep() *ApprovalStep {
	if c.Final() {
		return nil
	}
	if c.CurrentApproverIndex < 0 || c.CurrentApproverIndex >= len(c.ApprovalPath) {
		return nil
	}
	return &c.ApprovalPath[c.CurrentApproverIndex]
}

// CurrentApproverName names whoever may act next, for admin overview listings.
func (c Claim) CurrentApproverName() string {
	if step := c.CurrentStep(); step != nil {
		return step.ApproverName
	}
	return ""
}

var (
	// ErrNotFound indicates the claim does not exist within the tenant.
	ErrNotFound = errors.New("expense: claim not found")
	// ErrValidation indicates invalid submission input.
	ErrValidation = errors.New("expense: invalid input")
	// ErrClaimFinalized occurs when acting on an already-terminal claim.
	ErrClaimFinalized = errors.New("expense: claim already finalized")
	// ErrNotCurrentApprover occurs when an approver acts out of turn.
	ErrNotCurrentApprover = errors.New("expense: not the current approver")
	// ErrNoManagerAssigned indicates the submitter has no manager configured.
	ErrNoManagerAssigned = errors.New("expense: no manager assigned")
	// ErrNoAdminConfigured indicates the company has no admin user.
	ErrNoAdminConfigured = errors.New("expense: no admin configured")
	// ErrAdminOnly occurs when a non-admin invokes the force override.
	ErrAdminOnly = errors.New("expense: admin role required")
)
