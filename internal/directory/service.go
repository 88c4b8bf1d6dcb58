package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/expenseflow/expenseflow/internal/fx"
	"github.com/expenseflow/expenseflow/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	GetUser(ctx context.Context, companyID, userID uuid.UUID) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	GetCompanyAdmin(ctx context.Context, companyID uuid.UUID) (User, error)
	GetCompany(ctx context.Context, companyID uuid.UUID) (Company, error)
	CreateUser(ctx context.Context, u User) error
	CreateCompanyWithAdmin(ctx context.Context, company Company, admin User) error
	ListUsers(ctx context.Context, companyID uuid.UUID) ([]User, error)
	ListByRole(ctx context.Context, companyID uuid.UUID, role shared.Role) ([]User, error)
	CountByRole(ctx context.Context, companyID uuid.UUID, role shared.Role) (int, error)
	CountSubordinates(ctx context.Context, managerID uuid.UUID) (int, error)
}

// Service wraps directory business rules.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a directory service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// GetUser fetches a user within the caller's tenant.
func (s *Service) GetUser(ctx context.Context, companyID, userID uuid.UUID) (User, error) {
	return s.repo.GetUser(ctx, companyID, userID)
}

// FindUserByEmail fetches a user by login email.
func (s *Service) FindUserByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.FindUserByEmail(ctx, email)
}

// GetCompanyAdmin returns the tenant's admin user.
func (s *Service) GetCompanyAdmin(ctx context.Context, companyID uuid.UUID) (User, error) {
	return s.repo.GetCompanyAdmin(ctx, companyID)
}

// GetCompany returns the tenant record.
func (s *Service) GetCompany(ctx context.Context, companyID uuid.UUID) (Company, error) {
	return s.repo.GetCompany(ctx, companyID)
}

// CreateCompanyWithAdmin provisions a new tenant and its first admin user.
func (s *Service) CreateCompanyWithAdmin(ctx context.Context, company Company, admin User) (Company, User, error) {
	if company.Name == "" || admin.Name == "" || admin.Email == "" || admin.PasswordHash == "" {
		return Company{}, User{}, ErrValidation
	}
	company.ID = uuid.New()
	if company.DefaultCurrency == "" {
		company.DefaultCurrency = "INR"
	}
	// The reporting currency is compared against normalized claim
	// currencies, so it must be stored in canonical form too.
	normalized, err := fx.NormalizeCode(company.DefaultCurrency)
	if err != nil {
		return Company{}, User{}, fmt.Errorf("%w: unknown currency %q", ErrValidation, company.DefaultCurrency)
	}
	company.DefaultCurrency = normalized
	admin.ID = uuid.New()
	admin.Role = shared.RoleAdmin
	admin.CompanyID = company.ID
	admin.ManagerID = nil
	if err := s.repo.CreateCompanyWithAdmin(ctx, company, admin); err != nil {
		return Company{}, User{}, err
	}
	return company, admin, nil
}

// CreateUserInput describes an admin-provisioned account.
type CreateUserInput struct {
	Name         string
	Email        string
	PasswordHash string
	Role         shared.Role
	ManagerID    *uuid.UUID
}

// CreateUser provisions an Employee or Manager inside the caller's company.
// Employees must reference a manager within the same tenant.
func (s *Service) CreateUser(ctx context.Context, principal shared.Principal, input CreateUserInput) (User, error) {
	if input.Name == "" || input.Email == "" || input.PasswordHash == "" {
		return User{}, ErrValidation
	}
	if !shared.ValidRole(input.Role) || input.Role == shared.RoleAdmin {
		return User{}, fmt.Errorf("%w: role must be Employee or Manager", ErrValidation)
	}

	user := User{
		ID:           uuid.New(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		CompanyID:    principal.CompanyID,
	}
	if input.Role == shared.RoleEmployee {
		if input.ManagerID == nil {
			return User{}, fmt.Errorf("%w: employee requires a manager", ErrValidation)
		}
		manager, err := s.repo.GetUser(ctx, principal.CompanyID, *input.ManagerID)
		if err != nil {
			return User{}, fmt.Errorf("%w: manager not found", ErrValidation)
		}
		user.ManagerID = &manager.ID
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// ListUsers returns the tenant directory listing.
func (s *Service) ListUsers(ctx context.Context, principal shared.Principal) ([]User, error) {
	return s.repo.ListUsers(ctx, principal.CompanyID)
}

// ListManagers returns the tenant's managers, for assignment pickers.
func (s *Service) ListManagers(ctx context.Context, principal shared.Principal) ([]User, error) {
	return s.repo.ListByRole(ctx, principal.CompanyID, shared.RoleManager)
}

// AdminSummary carries tenant-wide role head-counts.
type AdminSummary struct {
	EmployeeCount int `json:"employeeCount"`
	ManagerCount  int `json:"managerCount"`
}

// AdminSummary counts employees and managers across the tenant.
func (s *Service) AdminSummary(ctx context.Context, principal shared.Principal) (AdminSummary, error) {
	employees, err := s.repo.CountByRole(ctx, principal.CompanyID, shared.RoleEmployee)
	if err != nil {
		return AdminSummary{}, err
	}
	managers, err := s.repo.CountByRole(ctx, principal.CompanyID, shared.RoleManager)
	if err != nil {
		return AdminSummary{}, err
	}
	return AdminSummary{EmployeeCount: employees, ManagerCount: managers}, nil
}

// ManagerSummary carries a manager's direct-report head-count.
type ManagerSummary struct {
	SubordinateCount int `json:"subordinateCount"`
}

// ManagerSummary counts users reporting to the principal.
func (s *Service) ManagerSummary(ctx context.Context, principal shared.Principal) (ManagerSummary, error) {
	n, err := s.repo.CountSubordinates(ctx, principal.UserID)
	if err != nil {
		return ManagerSummary{}, err
	}
	return ManagerSummary{SubordinateCount: n}, nil
}
