package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mistapp/backend/internal/auth"
	"github.com/mistapp/backend/internal/dto"
	apierrors "github.com/mistapp/backend/internal/errors"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/util"
	"go.uber.org/zap"
)

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type emailCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

type phoneCodeRequest struct {
	Email       string `json:"email" binding:"required,email"`
	PhoneNumber string `json:"phone_number" binding:"required"`
}

type phoneRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
}

type phoneValidateRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
	Code        string `json:"code" binding:"required"`
}

type finalizeResetRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Code     string `json:"code" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// respondAuthError maps auth service errors to API errors
func respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrBanned):
		util.RespondWithAPIError(c, apierrors.Banned())
	case errors.Is(err, auth.ErrUserExists):
		util.RespondValidationError(c, "email", "a user with this email already exists")
	case errors.Is(err, auth.ErrUsernameExists):
		util.RespondValidationError(c, "username", "a user with this username already exists")
	case errors.Is(err, auth.ErrPhoneExists):
		util.RespondValidationError(c, "phone_number", "a user with this phone number already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		util.RespondValidationError(c, "non_field_errors", "unable to log in with provided credentials")
	case errors.Is(err, auth.ErrInvalidCode):
		util.RespondValidationError(c, "code", "invalid code")
	case errors.Is(err, auth.ErrCodeExpired):
		util.RespondValidationError(c, "code", "code has expired, request a new one")
	case errors.Is(err, auth.ErrEmailNotValidated):
		util.RespondValidationError(c, "email", "email has not been validated")
	case errors.Is(err, auth.ErrPhoneNotValidated):
		util.RespondValidationError(c, "phone_number", "phone number has not been validated")
	case errors.Is(err, auth.ErrUserNotFound):
		util.RespondNotFound(c, "user")
	case errors.Is(err, auth.ErrInvalidToken):
		util.RespondUnauthorized(c, "invalid token")
	default:
		logger.Log.Error("Auth operation failed", zap.Error(err), zap.String("path", c.FullPath()))
		util.RespondInternalError(c, "authentication service error")
	}
}

func respondToken(c *gin.Context, status int, resp *auth.AuthResponse) {
	c.JSON(status, gin.H{
		"token":      resp.Token,
		"expires_at": resp.ExpiresAt,
		"user":       dto.ToUserDetailResponse(resp.User),
	})
}

// RequestEmailCode sends a verification code to an unregistered email
// POST /api/v1/auth/email-codes
func (h *Handlers) RequestEmailCode(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.RequestEmailCode(c.Request.Context(), req.Email); err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"email": req.Email})
}

// ValidateEmailCode marks an email as validated
// POST /api/v1/auth/email-codes/validate
func (h *Handlers) ValidateEmailCode(c *gin.Context) {
	var req emailCodeRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.ValidateEmailCode(c.Request.Context(), req.Email, req.Code); err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": req.Email, "validated": true})
}

// RequestPhoneCode texts a verification code for a validated email
// POST /api/v1/auth/phone-codes
func (h *Handlers) RequestPhoneCode(c *gin.Context) {
	var req phoneCodeRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.RequestPhoneCode(c.Request.Context(), req.Email, req.PhoneNumber); err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"email": req.Email, "phone_number": req.PhoneNumber})
}

// POST /api/v1/auth/phone-codes/validate
func (h *Handlers) ValidatePhoneCode(c *gin.Context) {
	var req phoneValidateRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.ValidatePhoneCode(c.Request.Context(), req.PhoneNumber, req.Code); err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"phone_number": req.PhoneNumber, "validated": true})
}

// Register creates an account for a validated email
// POST /api/v1/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	respondToken(c, http.StatusCreated, resp)
}

// Login authenticates with an email or username and a password
// POST /api/v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	respondToken(c, http.StatusOK, resp)
}

// POST /api/v1/auth/login/phone
func (h *Handlers) RequestPhoneLogin(c *gin.Context) {
	var req phoneRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.RequestPhoneLogin(c.Request.Context(), req.PhoneNumber); err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"phone_number": req.PhoneNumber})
}

// POST /api/v1/auth/login/phone/validate
func (h *Handlers) ValidatePhoneLogin(c *gin.Context) {
	var req phoneValidateRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.auth.ValidatePhoneLogin(c.Request.Context(), req.PhoneNumber, req.Code)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	respondToken(c, http.StatusOK, resp)
}

// RequestPasswordReset emails a reset code
// POST /api/v1/auth/password-reset
func (h *Handlers) RequestPasswordReset(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"email": req.Email})
}

// POST /api/v1/auth/password-reset/validate
func (h *Handlers) ValidatePasswordReset(c *gin.Context) {
	var req emailCodeRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.ValidatePasswordReset(c.Request.Context(), req.Email, req.Code); err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": req.Email, "validated": true})
}

// FinalizePasswordReset sets the new password
// POST /api/v1/auth/password-reset/finalize
func (h *Handlers) FinalizePasswordReset(c *gin.Context) {
	var req finalizeResetRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.FinalizePasswordReset(c.Request.Context(), req.Email, req.Code, req.Password); err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": req.Email})
}

// Me returns the authenticated user
// GET /api/v1/auth/me
func (h *Handlers) Me(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.ToUserDetailResponse(user))
}
