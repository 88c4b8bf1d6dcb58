// Package directory manages the user and company records the approval
// workflow resolves approvers from.
package directory

import (
	"errors"

	"github.com/google/uuid"

	"github.com/expenseflow/expenseflow/internal/shared"
)

// User is a member of exactly one company.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         shared.Role
	CompanyID    uuid.UUID
	ManagerID    *uuid.UUID
}

// Company is the tenant boundary. DefaultCurrency is the normalization
// target for every cross-currency presentation within the tenant.
type Company struct {
	ID              uuid.UUID
	Name            string
	DefaultCurrency string
}

var (
	// ErrNotFound indicates a missing user or company.
	ErrNotFound = errors.New("directory: not found")
	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("directory: email already registered")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("directory: invalid input")
	// ErrNoAdmin indicates the company has no admin user configured.
	ErrNoAdmin = errors.New("directory: no admin configured")
)
