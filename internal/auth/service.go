package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrUsernameExists     = errors.New("username already taken")
	ErrPhoneExists        = errors.New("phone number already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrBanned             = errors.New("email is banned")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrCodeExpired        = errors.New("verification code expired")
	ErrEmailNotValidated  = errors.New("email not validated")
	ErrPhoneNotValidated  = errors.New("phone number not validated")
	ErrInvalidToken       = errors.New("invalid token")
)

// EmailSender delivers verification and reset codes by email
type EmailSender interface {
	SendVerificationCode(ctx context.Context, email, code string) error
	SendPasswordResetCode(ctx context.Context, email, code string) error
}

// SMSSender delivers verification codes by text message
type SMSSender interface {
	SendCode(ctx context.Context, phoneNumber, code string) error
}

// Config holds token and code settings
type Config struct {
	JWTSecret []byte
	TokenTTL  time.Duration
	CodeTTL   time.Duration
	// TestCodes makes every issued code equal StaticCode
	TestCodes  bool
	StaticCode string
}

// Service handles all authentication operations
type Service struct {
	db    *gorm.DB
	users repository.UserRepository
	cfg   Config
	email EmailSender
	sms   SMSSender
	now   func() time.Time
}

// NewService creates a new authentication service. email and sms may be
// nil, in which case codes are only logged.
func NewService(db *gorm.DB, cfg Config, email EmailSender, sms SMSSender) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 30 * 24 * time.Hour
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	return &Service{
		db:    db,
		users: repository.NewUserRepository(db),
		cfg:   cfg,
		email: email,
		sms:   sms,
		now:   time.Now,
	}
}

// AuthResponse represents authentication response
type AuthResponse struct {
	Token     string       `json:"token"`
	User      *models.User `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// RegisterRequest represents a registration after email (and optionally
// phone) validation
type RegisterRequest struct {
	Email       string     `json:"email" binding:"required,email"`
	Username    string     `json:"username" binding:"required,min=1,max=150"`
	Password    string     `json:"password" binding:"required,min=8"`
	FirstName   string     `json:"first_name" binding:"max=150"`
	LastName    string     `json:"last_name" binding:"max=150"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Sex         string     `json:"sex,omitempty"`
	PhoneNumber string     `json:"phone_number,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty" binding:"omitempty,min=-90,max=90"`
	Longitude   *float64   `json:"longitude,omitempty" binding:"omitempty,min=-180,max=180"`
}

// LoginRequest accepts either an email or a username
type LoginRequest struct {
	EmailOrUsername string `json:"email_or_username" binding:"required"`
	Password        string `json:"password" binding:"required"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) checkNotBanned(ctx context.Context, email string) error {
	banned, err := s.users.IsBanned(ctx, email)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if banned {
		return ErrBanned
	}
	return nil
}

// Register creates the user and their mistbox in one transaction
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if err := s.checkNotBanned(ctx, email); err != nil {
		return nil, err
	}

	var emailAuth models.EmailAuthentication
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&emailAuth).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !emailAuth.Validated) {
		return nil, ErrEmailNotValidated
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	var phone *string
	if req.PhoneNumber != "" {
		var phoneAuth models.PhoneNumberAuthentication
		err := s.db.WithContext(ctx).Where("phone_number = ?", req.PhoneNumber).First(&phoneAuth).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && (!phoneAuth.Validated || phoneAuth.Email != email)) {
			return nil, ErrPhoneNotValidated
		} else if err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		phone = &req.PhoneNumber
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if _, err := s.users.GetUserByUsername(ctx, req.Username); err == nil {
		return nil, ErrUsernameExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if phone != nil {
		if _, err := s.users.GetUserByPhone(ctx, *phone); err == nil {
			return nil, ErrPhoneExists
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Email:        email,
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: string(hashedPassword),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		DateOfBirth:  req.DateOfBirth,
		Sex:          req.Sex,
		PhoneNumber:  phone,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Create(&models.Mistbox{UserID: user.ID, OpensLeft: models.DefaultMistboxOpens}).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrUserExists
	} else if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.Log.Info("User registered", logger.WithUserID(user.ID), zap.String("username", user.Username))
	return s.GenerateToken(&user)
}

// Login authenticates with email or username and password
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	user, err := s.users.GetUserByLogin(ctx, req.EmailOrUsername)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := s.checkNotBanned(ctx, user.Email); err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.GenerateToken(user)
}

// GenerateToken creates a JWT and auth response for a user
func (s *Service) GenerateToken(user *models.User) (*AuthResponse, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.TokenTTL)

	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"email":    user.Email,
		"username": user.Username,
		"exp":      expiresAt.Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &AuthResponse{
		Token:     tokenString,
		User:      user,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken validates a JWT and returns the current user. Tokens of
// banned users are rejected with ErrBanned.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*models.User, error) {
	userID, err := ParseToken(tokenString, s.cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := s.checkNotBanned(ctx, user.Email); err != nil {
		return nil, err
	}
	return user, nil
}

// ParseToken verifies an HS256 token signed with secret and returns its
// user id. It does not touch the database.
func ParseToken(tokenString string, secret []byte) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}
