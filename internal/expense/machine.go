package expense

import (
	"time"

	"github.com/google/uuid"
)

// overridePrefix marks comments written by an admin force-finalize so they
// are distinguishable from ordinary step approvals in history views.
const overridePrefix = "[admin override] "

// ApplyDecision advances a claim by one approver action and returns the
// updated copy. The input claim is never mutated.
//
// Preconditions: the claim must still be Pending and the actor must be the
// approver at CurrentApproverIndex. A stale retry against an already-actioned
// step fails with ErrNotCurrentApprover rather than silently re-applying.
func ApplyDecision(claim Claim, actor uuid.UUID, decision Decision, comments string, now time.Time) (Claim, error) {
	if !ValidDecision(decision) {
		return Claim{}, ErrValidation
	}
	if claim.Final() {
		return Claim{}, ErrClaimFinalized
	}
	step := claim.CurrentStep()
	if step == nil {
		return Claim{}, ErrClaimFinalized
	}
	if step.ApproverID != actor {
		return Claim{}, ErrNotCurrentApprover
	}

	next := cloneClaim(claim)
	at := now
	current := &next.ApprovalPath[next.CurrentApproverIndex]
	current.Status = Status(decision)
	current.Comments = comments
	current.ActionAt = &at

	switch decision {
	case DecisionRejected:
		// Terminal: later steps stay Pending and are never evaluated.
		next.Status = StatusRejected
	case DecisionApproved:
		if next.CurrentApproverIndex == len(next.ApprovalPath)-1 {
			next.Status = StatusApproved
		} else {
			next.CurrentApproverIndex++
		}
	}
	next.UpdatedAt = now
	return next, nil
}

// ForceFinalize sets a terminal status outside the normal in-order sequence.
// It bypasses the current-approver check but still refuses to rewrite an
// already-terminal claim. The override annotation lands on the last step of
// the path regardless of that step's prior status.
func ForceFinalize(claim Claim, decision Decision, comments string, now time.Time) (Claim, error) {
	if !ValidDecision(decision) {
		return Claim{}, ErrValidation
	}
	if claim.Final() {
		return Claim{}, ErrClaimFinalized
	}
	if len(claim.ApprovalPath) == 0 {
		return Claim{}, ErrValidation
	}

	next := cloneClaim(claim)
	at := now
	last := &next.ApprovalPath[len(next.ApprovalPath)-1]
	last.Status = Status(decision)
	last.Comments = overridePrefix + comments
	last.ActionAt = &at
	next.Status = Status(decision)
	next.UpdatedAt = now
	return next, nil
}

func cloneClaim(claim Claim) Claim {
	next := claim
	next.ApprovalPath = append([]ApprovalStep(nil), claim.ApprovalPath...)
	return next
}
