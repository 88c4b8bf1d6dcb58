package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/expenseflow/expenseflow/internal/platform/db"
	"github.com/expenseflow/expenseflow/internal/shared"
)

// Repository provides PostgreSQL backed persistence for users and companies.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, name, email, password_hash, role, company_id, manager_id`

func scanUser(row pgx.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CompanyID, &u.ManagerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// GetUser fetches a user scoped to a company.
func (r *Repository) GetUser(ctx context.Context, companyID, userID uuid.UUID) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1 AND company_id=$2`, userID, companyID)
	return scanUser(row)
}

// FindUserByEmail fetches a user across tenants; email is globally unique.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	return scanUser(row)
}

// GetCompanyAdmin returns the company's admin user.
func (r *Repository) GetCompanyAdmin(ctx context.Context, companyID uuid.UUID) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE company_id=$1 AND role=$2 ORDER BY id LIMIT 1`, companyID, shared.RoleAdmin)
	u, err := scanUser(row)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrNoAdmin
	}
	return u, err
}

// GetCompany fetches a company record.
func (r *Repository) GetCompany(ctx context.Context, companyID uuid.UUID) (Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx, `SELECT id, name, default_currency FROM companies WHERE id=$1`, companyID).
		Scan(&c.ID, &c.Name, &c.DefaultCurrency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrNotFound
		}
		return Company{}, err
	}
	return c, nil
}

// CreateUser inserts a user record.
func (r *Repository) CreateUser(ctx context.Context, u User) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO users (id, name, email, password_hash, role, company_id, manager_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.CompanyID, u.ManagerID)
	return mapUniqueViolation(err)
}

// CreateCompanyWithAdmin inserts a company and its first admin user in one
// transaction; either both exist afterwards or neither does.
func (r *Repository) CreateCompanyWithAdmin(ctx context.Context, company Company, admin User) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO companies (id, name, default_currency) VALUES ($1, $2, $3)`,
			company.ID, company.Name, company.DefaultCurrency); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO users (id, name, email, password_hash, role, company_id, manager_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, admin.ID, admin.Name, admin.Email, admin.PasswordHash, admin.Role, admin.CompanyID, admin.ManagerID)
		return mapUniqueViolation(err)
	})
}

// ListUsers returns every user in the company.
func (r *Repository) ListUsers(ctx context.Context, companyID uuid.UUID) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE company_id=$1 ORDER BY name`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// ListByRole returns users of a given role in the company.
func (r *Repository) ListByRole(ctx context.Context, companyID uuid.UUID, role shared.Role) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE company_id=$1 AND role=$2 ORDER BY name`, companyID, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// CountByRole counts company users holding a role.
func (r *Repository) CountByRole(ctx context.Context, companyID uuid.UUID, role shared.Role) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE company_id=$1 AND role=$2`, companyID, role).Scan(&n)
	return n, err
}

// CountSubordinates counts users reporting to a manager.
func (r *Repository) CountSubordinates(ctx context.Context, managerID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE manager_id=$1`, managerID).Scan(&n)
	return n, err
}

func collectUsers(rows pgx.Rows) ([]User, error) {
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CompanyID, &u.ManagerID); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateEmail
	}
	return err
}
