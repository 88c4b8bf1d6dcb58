package expense

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/expenseflow/expenseflow/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence. The approval path is
// stored as a jsonb document on the claim row, so every state transition is
// a single-row write.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const claimColumns = `id, company_id, submitted_by, submitter_name, amount, currency, category,
description, claim_date, status, approval_path, current_approver_index, version, created_at, updated_at`

// Create inserts a new claim with its full approval path.
func (r *Repository) Create(ctx context.Context, claim Claim) error {
	pathJSON, err := json.Marshal(claim.ApprovalPath)
	if err != nil {
		return fmt.Errorf("expense: marshal path: %w", err)
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO expense_claims (`+claimColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		claim.ID, claim.CompanyID, claim.SubmittedBy, claim.SubmitterName, claim.Amount, claim.Currency,
		claim.Category, claim.Description, claim.ClaimDate, claim.Status, pathJSON,
		claim.CurrentApproverIndex, claim.Version, claim.CreatedAt, claim.UpdatedAt)
	return err
}

// Get fetches a claim scoped to a company.
func (r *Repository) Get(ctx context.Context, companyID, claimID uuid.UUID) (Claim, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+claimColumns+` FROM expense_claims WHERE id=$1 AND company_id=$2`, claimID, companyID)
	return scanClaim(row)
}

// Mutate runs the mutator against the row under a FOR UPDATE lock and writes
// the result back in the same transaction. Two racing decisions serialize on
// the row lock; the second sees the first one's result and fails its own
// precondition check instead of double-advancing the approval index.
func (r *Repository) Mutate(ctx context.Context, companyID, claimID uuid.UUID, mutator func(Claim) (Claim, error)) (Claim, error) {
	var updated Claim
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+claimColumns+` FROM expense_claims WHERE id=$1 AND company_id=$2 FOR UPDATE`, claimID, companyID)
		claim, err := scanClaim(row)
		if err != nil {
			return err
		}

		next, err := mutator(claim)
		if err != nil {
			return err
		}
		next.Version = claim.Version + 1

		pathJSON, err := json.Marshal(next.ApprovalPath)
		if err != nil {
			return fmt.Errorf("expense: marshal path: %w", err)
		}
		tag, err := tx.Exec(ctx, `UPDATE expense_claims
SET status=$1, approval_path=$2, current_approver_index=$3, version=$4, updated_at=$5
WHERE id=$6 AND company_id=$7 AND version=$8`,
			next.Status, pathJSON, next.CurrentApproverIndex, next.Version, next.UpdatedAt,
			claimID, companyID, claim.Version)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		updated = next
		return nil
	})
	if err != nil {
		return Claim{}, err
	}
	return updated, nil
}

// ListPendingForApprover returns pending claims whose current step names the
// approver, oldest claim date first.
func (r *Repository) ListPendingForApprover(ctx context.Context, companyID, approverID uuid.UUID) ([]Claim, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+claimColumns+` FROM expense_claims
WHERE company_id=$1 AND status=$2
  AND approval_path -> current_approver_index ->> 'approver_id' = $3
ORDER BY claim_date ASC`, companyID, StatusPending, approverID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectClaims(rows)
}

// ListPending returns every pending claim in the tenant, newest first.
func (r *Repository) ListPending(ctx context.Context, companyID uuid.UUID) ([]Claim, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+claimColumns+` FROM expense_claims
WHERE company_id=$1 AND status=$2 ORDER BY created_at DESC`, companyID, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectClaims(rows)
}

// ListCompleted returns terminal claims, most recently decided first.
func (r *Repository) ListCompleted(ctx context.Context, companyID uuid.UUID) ([]Claim, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+claimColumns+` FROM expense_claims
WHERE company_id=$1 AND status IN ($2, $3) ORDER BY updated_at DESC`, companyID, StatusApproved, StatusRejected)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectClaims(rows)
}

// ListBySubmitter returns a user's own claims, newest claim date first.
func (r *Repository) ListBySubmitter(ctx context.Context, companyID, submitterID uuid.UUID) ([]Claim, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+claimColumns+` FROM expense_claims
WHERE company_id=$1 AND submitted_by=$2 ORDER BY claim_date DESC`, companyID, submitterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectClaims(rows)
}

// PendingCurrencyPairs lists distinct (claim currency, reporting currency)
// pairs across all tenants' pending claims, for the cache warmup job.
func (r *Repository) PendingCurrencyPairs(ctx context.Context) ([][2]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT e.currency, c.default_currency
FROM expense_claims e JOIN companies c ON c.id = e.company_id
WHERE e.status=$1 AND e.currency <> c.default_currency`, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pairs [][2]string
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, err
		}
		pairs = append(pairs, [2]string{from, to})
	}
	return pairs, rows.Err()
}

func scanClaim(row pgx.Row) (Claim, error) {
	var c Claim
	var pathJSON []byte
	err := row.Scan(&c.ID, &c.CompanyID, &c.SubmittedBy, &c.SubmitterName, &c.Amount, &c.Currency,
		&c.Category, &c.Description, &c.ClaimDate, &c.Status, &pathJSON,
		&c.CurrentApproverIndex, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Claim{}, ErrNotFound
		}
		return Claim{}, err
	}
	if err := json.Unmarshal(pathJSON, &c.ApprovalPath); err != nil {
		return Claim{}, fmt.Errorf("expense: unmarshal path: %w", err)
	}
	return c, nil
}

func collectClaims(rows pgx.Rows) ([]Claim, error) {
	var claims []Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return claims, nil
}
