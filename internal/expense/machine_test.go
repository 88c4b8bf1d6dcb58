package expense

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var actionTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func twoStepClaim() (Claim, uuid.UUID, uuid.UUID) {
	manager := uuid.New()
	admin := uuid.New()
	claim := Claim{
		ID:        uuid.New(),
		CompanyID: uuid.New(),
		Status:    StatusPending,
		ApprovalPath: []ApprovalStep{
			{ApproverID: manager, ApproverName: "Meera", Status: StatusPending},
			{ApproverID: admin, ApproverName: "Arjun", Status: StatusPending},
		},
	}
	return claim, manager, admin
}

func TestApproveAdvancesToNextStep(t *testing.T) {
	claim, manager, admin := twoStepClaim()

	next, err := ApplyDecision(claim, manager, DecisionApproved, "ok", actionTime)
	require.NoError(t, err)
	require.Equal(t, StatusPending, next.Status)
	require.Equal(t, 1, next.CurrentApproverIndex)
	require.Equal(t, StatusApproved, next.ApprovalPath[0].Status)
	require.Equal(t, "ok", next.ApprovalPath[0].Comments)
	require.NotNil(t, next.ApprovalPath[0].ActionAt)
	require.Equal(t, StatusPending, next.ApprovalPath[1].Status)
	require.Equal(t, admin, next.CurrentStep().ApproverID)
}

func TestApproveLastStepFinalizes(t *testing.T) {
	claim, manager, admin := twoStepClaim()

	next, err := ApplyDecision(claim, manager, DecisionApproved, "", actionTime)
	require.NoError(t, err)
	final, err := ApplyDecision(next, admin, DecisionApproved, "looks fine", actionTime)
	require.NoError(t, err)

	require.Equal(t, StatusApproved, final.Status)
	require.True(t, final.Final())
	require.Nil(t, final.CurrentStep())
	require.Equal(t, StatusApproved, final.ApprovalPath[1].Status)
}

func TestRejectIsTerminal(t *testing.T) {
	claim, manager, admin := twoStepClaim()

	next, err := ApplyDecision(claim, manager, DecisionRejected, "missing receipt", actionTime)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, next.Status)
	require.Equal(t, StatusRejected, next.ApprovalPath[0].Status)
	// Later steps stay untouched.
	require.Equal(t, StatusPending, next.ApprovalPath[1].Status)
	require.Nil(t, next.ApprovalPath[1].ActionAt)

	_, err = ApplyDecision(next, admin, DecisionApproved, "", actionTime)
	require.ErrorIs(t, err, ErrClaimFinalized)
}

func TestOutOfTurnApproverRejected(t *testing.T) {
	claim, _, admin := twoStepClaim()

	_, err := ApplyDecision(claim, admin, DecisionApproved, "", actionTime)
	require.ErrorIs(t, err, ErrNotCurrentApprover)

	_, err = ApplyDecision(claim, uuid.New(), DecisionApproved, "", actionTime)
	require.ErrorIs(t, err, ErrNotCurrentApprover)
}

func TestStaleRetryAfterAdvanceRejected(t *testing.T) {
	claim, manager, _ := twoStepClaim()

	next, err := ApplyDecision(claim, manager, DecisionApproved, "", actionTime)
	require.NoError(t, err)

	// The manager already actioned step 0; a duplicate attempt must not
	// re-apply against step 1.
	_, err = ApplyDecision(next, manager, DecisionApproved, "", actionTime)
	require.ErrorIs(t, err, ErrNotCurrentApprover)
}

func TestApplyDecisionRejectsUnknownDecision(t *testing.T) {
	claim, manager, _ := twoStepClaim()

	_, err := ApplyDecision(claim, manager, Decision("Maybe"), "", actionTime)
	require.ErrorIs(t, err, ErrValidation)
}

func TestApplyDecisionDoesNotMutateInput(t *testing.T) {
	claim, manager, _ := twoStepClaim()

	_, err := ApplyDecision(claim, manager, DecisionApproved, "ok", actionTime)
	require.NoError(t, err)

	require.Equal(t, StatusPending, claim.Status)
	require.Equal(t, 0, claim.CurrentApproverIndex)
	require.Equal(t, StatusPending, claim.ApprovalPath[0].Status)
	require.Empty(t, claim.ApprovalPath[0].Comments)
}

func TestExactlyOneActiveApprover(t *testing.T) {
	claim, manager, admin := twoStepClaim()

	// At every non-terminal state, exactly one step is actionable.
	require.Equal(t, manager, claim.CurrentStep().ApproverID)

	next, err := ApplyDecision(claim, manager, DecisionApproved, "", actionTime)
	require.NoError(t, err)
	require.Equal(t, admin, next.CurrentStep().ApproverID)

	final, err := ApplyDecision(next, admin, DecisionRejected, "", actionTime)
	require.NoError(t, err)
	require.Nil(t, final.CurrentStep())
}

func TestForceFinalizeAnnotatesLastStep(t *testing.T) {
	claim, _, _ := twoStepClaim()

	next, err := ForceFinalize(claim, DecisionApproved, "year-end cleanup", actionTime)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, next.Status)

	last := next.ApprovalPath[len(next.ApprovalPath)-1]
	require.Equal(t, StatusApproved, last.Status)
	require.Equal(t, "[admin override] year-end cleanup", last.Comments)
	require.NotNil(t, last.ActionAt)

	// The first step was never actioned and stays Pending.
	require.Equal(t, StatusPending, next.ApprovalPath[0].Status)
}

func TestForceFinalizeRejectsTerminalClaim(t *testing.T) {
	claim, manager, _ := twoStepClaim()

	rejected, err := ApplyDecision(claim, manager, DecisionRejected, "", actionTime)
	require.NoError(t, err)

	_, err = ForceFinalize(rejected, DecisionApproved, "undo", actionTime)
	require.ErrorIs(t, err, ErrClaimFinalized)
}

func TestForceFinalizeReject(t *testing.T) {
	claim, _, _ := twoStepClaim()

	next, err := ForceFinalize(claim, DecisionRejected, "policy breach", actionTime)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, next.Status)
	require.Equal(t, "[admin override] policy breach", next.ApprovalPath[1].Comments)
}
