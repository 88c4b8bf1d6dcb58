package expense

import "github.com/google/uuid"

// Approver is one identity in an approval chain.
type Approver struct {
	ID   uuid.UUID
	Name string
}

// BuildApprovalPath constructs the ordered approver sequence for a new claim:
// the submitter's direct manager first, then the company admin, with the
// admin step omitted when both are the same person. The function is pure;
// resolving the manager and admin identities is the caller's job.
func BuildApprovalPath(manager, admin *Approver) ([]ApprovalStep, error) {
	if manager == nil {
		return nil, ErrNoManagerAssigned
	}
	if admin == nil {
		return nil, ErrNoAdminConfigured
	}

	path := []ApprovalStep{{
		ApproverID:   manager.ID,
		ApproverName: manager.Name,
		Status:       StatusPending,
	}}
	if admin.ID != manager.ID {
		path = append(path, ApprovalStep{
			ApproverID:   admin.ID,
			ApproverName: admin.Name,
			Status:       StatusPending,
		})
	}
	return path, nil
}
