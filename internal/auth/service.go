// Package auth issues and revokes bearer tokens for directory users.
package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/expenseflow/expenseflow/internal/directory"
	"github.com/expenseflow/expenseflow/internal/shared"
)

// DirectoryPort exposes the account operations auth needs.
type DirectoryPort interface {
	FindUserByEmail(ctx context.Context, email string) (directory.User, error)
	CreateCompanyWithAdmin(ctx context.Context, company directory.Company, admin directory.User) (directory.Company, directory.User, error)
}

// Service wraps authentication business rules.
type Service struct {
	directory DirectoryPort
	tokens    *shared.TokenManager
}

// NewService constructs a new Service.
func NewService(dir DirectoryPort, tokens *shared.TokenManager) *Service {
	return &Service{directory: dir, tokens: tokens}
}

// BcryptHasher hashes passwords with bcrypt at the default cost.
type BcryptHasher struct{}

// Hash returns the bcrypt hash of a plaintext password.
func (BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (directory.User, error) {
	user, err := s.directory.FindUserByEmail(ctx, email)
	if err != nil {
		return directory.User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return directory.User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}

// SignupInput describes the first-user registration payload.
type SignupInput struct {
	CompanyName     string
	DefaultCurrency string
	Name            string
	Email           string
	Password        string
}

// Signup provisions a new company whose first user is its Admin, then logs
// that user in.
func (s *Service) Signup(ctx context.Context, input SignupInput) (directory.User, string, error) {
	if _, err := s.directory.FindUserByEmail(ctx, input.Email); err == nil {
		return directory.User{}, "", directory.ErrDuplicateEmail
	} else if !errors.Is(err, directory.ErrNotFound) {
		return directory.User{}, "", err
	}

	hash, err := BcryptHasher{}.Hash(input.Password)
	if err != nil {
		return directory.User{}, "", err
	}
	_, admin, err := s.directory.CreateCompanyWithAdmin(ctx,
		directory.Company{Name: input.CompanyName, DefaultCurrency: input.DefaultCurrency},
		directory.User{Name: input.Name, Email: input.Email, PasswordHash: hash},
	)
	if err != nil {
		return directory.User{}, "", err
	}

	token, err := s.issueToken(ctx, admin)
	if err != nil {
		return directory.User{}, "", err
	}
	return admin, token, nil
}

// Login authenticates credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (directory.User, string, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return directory.User{}, "", err
	}
	token, err := s.issueToken(ctx, user)
	if err != nil {
		return directory.User{}, "", err
	}
	return user, token, nil
}

// Logout revokes a bearer token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

func (s *Service) issueToken(ctx context.Context, user directory.User) (string, error) {
	return s.tokens.Issue(ctx, shared.Principal{
		UserID:    user.ID,
		Name:      user.Name,
		Role:      user.Role,
		CompanyID: user.CompanyID,
	})
}
