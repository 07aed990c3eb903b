package auth

import (
	"context"

	"github.com/mistapp/backend/internal/models"
)

// AuthServiceInterface defines the contract for authentication operations.
// This enables mocking for unit tests without requiring a real database.
type AuthServiceInterface interface {
	// Verification codes
	RequestEmailCode(ctx context.Context, email string) error
	ValidateEmailCode(ctx context.Context, email, code string) error
	RequestPhoneCode(ctx context.Context, email, phoneNumber string) error
	ValidatePhoneCode(ctx context.Context, phoneNumber, code string) error

	// Registration and login
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	RequestPhoneLogin(ctx context.Context, phoneNumber string) error
	ValidatePhoneLogin(ctx context.Context, phoneNumber, code string) (*AuthResponse, error)

	// Token operations
	GenerateToken(user *models.User) (*AuthResponse, error)
	ValidateToken(ctx context.Context, tokenString string) (*models.User, error)

	// Password reset
	RequestPasswordReset(ctx context.Context, email string) error
	ValidatePasswordReset(ctx context.Context, email, code string) error
	FinalizePasswordReset(ctx context.Context, email, code, password string) error
}

// Ensure Service implements AuthServiceInterface
var _ AuthServiceInterface = (*Service)(nil)
