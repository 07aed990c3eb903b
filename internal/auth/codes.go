package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const codeDigits = 6

func (s *Service) newCode() (string, error) {
	if s.cfg.TestCodes && s.cfg.StaticCode != "" {
		return s.cfg.StaticCode, nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

// checkCode verifies a submitted code against the stored one and its age
func (s *Service) checkCode(stored, submitted string, codeTime float64) error {
	if stored == "" || stored != submitted {
		return ErrInvalidCode
	}
	age := models.EpochOf(s.now()) - codeTime
	if age >= s.cfg.CodeTTL.Seconds() {
		return ErrCodeExpired
	}
	return nil
}

func refreshColumns(key string) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: key}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "code_time", "validated", "validation_time"}),
	}
}

// RequestEmailCode issues a registration code for an email that is neither
// banned nor already registered.
func (s *Service) RequestEmailCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := s.checkNotBanned(ctx, email); err != nil {
		return err
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return ErrUserExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("database error: %w", err)
	}

	code, err := s.newCode()
	if err != nil {
		return err
	}
	row := models.EmailAuthentication{Email: email, Code: code, CodeTime: models.EpochOf(s.now())}
	if err := s.db.WithContext(ctx).Clauses(refreshColumns("email")).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to store email code: %w", err)
	}

	if s.email == nil {
		logger.Log.Debug("Email sender not configured", zap.String("email", email))
		return nil
	}
	return s.email.SendVerificationCode(ctx, email, code)
}

// ValidateEmailCode marks the email as validated
func (s *Service) ValidateEmailCode(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	var row models.EmailAuthentication
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidCode
		}
		return fmt.Errorf("database error: %w", err)
	}
	if err := s.checkCode(row.Code, code, row.CodeTime); err != nil {
		return err
	}

	validated := models.EpochOf(s.now())
	return s.db.WithContext(ctx).Model(&row).Updates(map[string]interface{}{
		"validated":       true,
		"validation_time": validated,
	}).Error
}

// RequestPhoneCode sends a registration code to a phone number. The email
// must already be validated.
func (s *Service) RequestPhoneCode(ctx context.Context, email, phoneNumber string) error {
	email = normalizeEmail(email)
	var emailAuth models.EmailAuthentication
	err := s.db.WithContext(ctx).Where("email = ? AND validated = ?", email, true).First(&emailAuth).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrEmailNotValidated
	} else if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if _, err := s.users.GetUserByPhone(ctx, phoneNumber); err == nil {
		return ErrPhoneExists
	}

	return s.sendPhoneCode(ctx, email, phoneNumber)
}

func (s *Service) sendPhoneCode(ctx context.Context, email, phoneNumber string) error {
	code, err := s.newCode()
	if err != nil {
		return err
	}
	row := models.PhoneNumberAuthentication{
		Email:       email,
		PhoneNumber: phoneNumber,
		Code:        code,
		CodeTime:    models.EpochOf(s.now()),
	}
	onConflict := refreshColumns("phone_number")
	onConflict.DoUpdates = clause.AssignmentColumns([]string{"email", "code", "code_time", "validated", "validation_time"})
	if err := s.db.WithContext(ctx).Clauses(onConflict).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to store phone code: %w", err)
	}

	if s.sms == nil {
		logger.Log.Debug("SMS sender not configured", zap.String("phone_number", phoneNumber))
		return nil
	}
	return s.sms.SendCode(ctx, phoneNumber, code)
}

// ValidatePhoneCode marks the phone number as validated
func (s *Service) ValidatePhoneCode(ctx context.Context, phoneNumber, code string) error {
	_, err := s.validatePhone(ctx, phoneNumber, code)
	return err
}

func (s *Service) validatePhone(ctx context.Context, phoneNumber, code string) (*models.PhoneNumberAuthentication, error) {
	var row models.PhoneNumberAuthentication
	if err := s.db.WithContext(ctx).Where("phone_number = ?", phoneNumber).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if err := s.checkCode(row.Code, code, row.CodeTime); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&row).Updates(map[string]interface{}{
		"validated":       true,
		"validation_time": models.EpochOf(s.now()),
	}).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &row, nil
}

// RequestPhoneLogin sends a login code to a registered phone number
func (s *Service) RequestPhoneLogin(ctx context.Context, phoneNumber string) error {
	user, err := s.users.GetUserByPhone(ctx, phoneNumber)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	} else if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if err := s.checkNotBanned(ctx, user.Email); err != nil {
		return err
	}
	return s.sendPhoneCode(ctx, user.Email, phoneNumber)
}

// ValidatePhoneLogin exchanges a phone login code for a token
func (s *Service) ValidatePhoneLogin(ctx context.Context, phoneNumber, code string) (*AuthResponse, error) {
	user, err := s.users.GetUserByPhone(ctx, phoneNumber)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if err := s.checkNotBanned(ctx, user.Email); err != nil {
		return nil, err
	}
	if _, err := s.validatePhone(ctx, phoneNumber, code); err != nil {
		return nil, err
	}
	return s.GenerateToken(user)
}

// RequestPasswordReset emails a reset code to a registered user
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if _, err := s.users.GetUserByEmail(ctx, email); errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	} else if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if err := s.checkNotBanned(ctx, email); err != nil {
		return err
	}

	code, err := s.newCode()
	if err != nil {
		return err
	}
	row := models.PasswordReset{Email: email, Code: code, CodeTime: models.EpochOf(s.now())}
	if err := s.db.WithContext(ctx).Clauses(refreshColumns("email")).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to store reset code: %w", err)
	}

	if s.email == nil {
		logger.Log.Debug("Email sender not configured", zap.String("email", email))
		return nil
	}
	return s.email.SendPasswordResetCode(ctx, email, code)
}

// ValidatePasswordReset checks the reset code and marks it validated
func (s *Service) ValidatePasswordReset(ctx context.Context, email, code string) error {
	_, err := s.findReset(ctx, email, code)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.PasswordReset{}).
		Where("email = ?", normalizeEmail(email)).
		Updates(map[string]interface{}{
			"validated":       true,
			"validation_time": models.EpochOf(s.now()),
		}).Error
}

// FinalizePasswordReset sets a new password. The code must have been
// validated and still be inside its window.
func (s *Service) FinalizePasswordReset(ctx context.Context, email, code, password string) error {
	reset, err := s.findReset(ctx, email, code)
	if err != nil {
		return err
	}
	if !reset.Validated {
		return ErrInvalidCode
	}

	user, err := s.users.GetUserByEmail(ctx, reset.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	} else if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
			Update("password_hash", string(hashedPassword)).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", reset.ID).Delete(&models.PasswordReset{}).Error
	})
}

func (s *Service) findReset(ctx context.Context, email, code string) (*models.PasswordReset, error) {
	var row models.PasswordReset
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCode
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if err := s.checkCode(row.Code, code, row.CodeTime); err != nil {
		return nil, err
	}
	return &row, nil
}
