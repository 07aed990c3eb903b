package auth

import (
	"context"
	"sync"
	"time"

	"github.com/mistapp/backend/internal/models"
)

// MockCall records a method call for assertion
type MockCall struct {
	Method string
	Args   []interface{}
}

// MockAuthService is a mock implementation of AuthServiceInterface for
// testing. Tokens are "mock_token_<user id>" for users added with AddUser.
type MockAuthService struct {
	mu sync.Mutex

	Calls []MockCall

	// Configurable function overrides
	RegisterFunc      func(req RegisterRequest) (*AuthResponse, error)
	LoginFunc         func(req LoginRequest) (*AuthResponse, error)
	ValidateTokenFunc func(tokenString string) (*models.User, error)

	// Default error to return
	DefaultError error

	// Pre-configured users for testing, keyed by id
	Users map[string]*models.User
}

// NewMockAuthService creates a new mock auth service with sensible defaults
func NewMockAuthService() *MockAuthService {
	return &MockAuthService{
		Calls: make([]MockCall, 0),
		Users: make(map[string]*models.User),
	}
}

func (m *MockAuthService) recordCall(method string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
}

// GetCallsForMethod returns calls for a specific method
func (m *MockAuthService) GetCallsForMethod(method string) []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []MockCall
	for _, call := range m.Calls {
		if call.Method == method {
			result = append(result, call)
		}
	}
	return result
}

// AssertCalled checks if a method was called at least once
func (m *MockAuthService) AssertCalled(method string) bool {
	return len(m.GetCallsForMethod(method)) > 0
}

// AddUser adds a test user to the mock service
func (m *MockAuthService) AddUser(user *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users[user.ID] = user
}

func (m *MockAuthService) lookup(pred func(*models.User) bool) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if pred(u) {
			return u
		}
	}
	return nil
}

func (m *MockAuthService) RequestEmailCode(ctx context.Context, email string) error {
	m.recordCall("RequestEmailCode", email)
	return m.DefaultError
}

func (m *MockAuthService) ValidateEmailCode(ctx context.Context, email, code string) error {
	m.recordCall("ValidateEmailCode", email, code)
	return m.DefaultError
}

func (m *MockAuthService) RequestPhoneCode(ctx context.Context, email, phoneNumber string) error {
	m.recordCall("RequestPhoneCode", email, phoneNumber)
	return m.DefaultError
}

func (m *MockAuthService) ValidatePhoneCode(ctx context.Context, phoneNumber, code string) error {
	m.recordCall("ValidatePhoneCode", phoneNumber, code)
	return m.DefaultError
}

func (m *MockAuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	m.recordCall("Register", req)
	if m.RegisterFunc != nil {
		return m.RegisterFunc(req)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	if m.lookup(func(u *models.User) bool { return u.Email == req.Email }) != nil {
		return nil, ErrUserExists
	}

	user := &models.User{ID: "mock_" + req.Username, Email: req.Email, Username: req.Username}
	m.AddUser(user)
	return m.GenerateToken(user)
}

func (m *MockAuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	m.recordCall("Login", req)
	if m.LoginFunc != nil {
		return m.LoginFunc(req)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	user := m.lookup(func(u *models.User) bool {
		return u.Email == req.EmailOrUsername || u.Username == req.EmailOrUsername
	})
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	return m.GenerateToken(user)
}

func (m *MockAuthService) RequestPhoneLogin(ctx context.Context, phoneNumber string) error {
	m.recordCall("RequestPhoneLogin", phoneNumber)
	return m.DefaultError
}

func (m *MockAuthService) ValidatePhoneLogin(ctx context.Context, phoneNumber, code string) (*AuthResponse, error) {
	m.recordCall("ValidatePhoneLogin", phoneNumber, code)
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	user := m.lookup(func(u *models.User) bool { return u.PhoneNumber != nil && *u.PhoneNumber == phoneNumber })
	if user == nil {
		return nil, ErrUserNotFound
	}
	return m.GenerateToken(user)
}

func (m *MockAuthService) GenerateToken(user *models.User) (*AuthResponse, error) {
	return &AuthResponse{
		Token:     "mock_token_" + user.ID,
		User:      user,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

func (m *MockAuthService) ValidateToken(ctx context.Context, tokenString string) (*models.User, error) {
	m.recordCall("ValidateToken", tokenString)
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(tokenString)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	user := m.lookup(func(u *models.User) bool { return "mock_token_"+u.ID == tokenString })
	if user == nil {
		return nil, ErrInvalidToken
	}
	return user, nil
}

func (m *MockAuthService) RequestPasswordReset(ctx context.Context, email string) error {
	m.recordCall("RequestPasswordReset", email)
	return m.DefaultError
}

func (m *MockAuthService) ValidatePasswordReset(ctx context.Context, email, code string) error {
	m.recordCall("ValidatePasswordReset", email, code)
	return m.DefaultError
}

func (m *MockAuthService) FinalizePasswordReset(ctx context.Context, email, code, password string) error {
	m.recordCall("FinalizePasswordReset", email, code)
	return m.DefaultError
}

// Ensure MockAuthService implements AuthServiceInterface
var _ AuthServiceInterface = (*MockAuthService)(nil)
