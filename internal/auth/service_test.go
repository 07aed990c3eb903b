package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mistapp/backend/internal/database"
	"github.com/mistapp/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// codeRecorder captures codes instead of delivering them
type codeRecorder struct {
	mu    sync.Mutex
	codes map[string]string
}

func newCodeRecorder() *codeRecorder {
	return &codeRecorder{codes: make(map[string]string)}
}

func (r *codeRecorder) record(to, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[to] = code
	return nil
}

func (r *codeRecorder) get(to string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codes[to]
}

func (r *codeRecorder) SendVerificationCode(ctx context.Context, email, code string) error {
	return r.record(email, code)
}

func (r *codeRecorder) SendPasswordResetCode(ctx context.Context, email, code string) error {
	return r.record("reset:"+email, code)
}

func (r *codeRecorder) SendCode(ctx context.Context, phoneNumber, code string) error {
	return r.record(phoneNumber, code)
}

// AuthServiceTestSuite contains auth service tests
type AuthServiceTestSuite struct {
	suite.Suite
	db          *gorm.DB
	codes       *codeRecorder
	authService *Service
	ctx         context.Context
}

func (suite *AuthServiceTestSuite) SetupTest() {
	db, err := database.Open("sqlite", ":memory:", false)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), database.MigrateDB(db))

	suite.db = db
	suite.ctx = context.Background()
	suite.codes = newCodeRecorder()
	suite.authService = NewService(db, Config{JWTSecret: []byte("test_jwt_secret_key")}, suite.codes, suite.codes)
}

func (suite *AuthServiceTestSuite) TearDownTest() {
	if sqlDB, err := suite.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (suite *AuthServiceTestSuite) register(email, username string) *AuthResponse {
	require.NoError(suite.T(), suite.authService.RequestEmailCode(suite.ctx, email))
	require.NoError(suite.T(), suite.authService.ValidateEmailCode(suite.ctx, email, suite.codes.get(normalizeEmail(email))))
	resp, err := suite.authService.Register(suite.ctx, RegisterRequest{
		Email:    email,
		Username: username,
		Password: "correct horse",
	})
	require.NoError(suite.T(), err)
	return resp
}

func (suite *AuthServiceTestSuite) TestRegistrationFlow() {
	t := suite.T()

	require.NoError(t, suite.authService.RequestEmailCode(suite.ctx, "New@Example.com"))
	code := suite.codes.get("new@example.com")
	assert.Len(t, code, codeDigits)

	assert.ErrorIs(t, suite.authService.ValidateEmailCode(suite.ctx, "new@example.com", "000000x"), ErrInvalidCode)

	_, err := suite.authService.Register(suite.ctx, RegisterRequest{Email: "new@example.com", Username: "new", Password: "correct horse"})
	assert.ErrorIs(t, err, ErrEmailNotValidated)

	require.NoError(t, suite.authService.ValidateEmailCode(suite.ctx, "new@example.com", code))
	resp, err := suite.authService.Register(suite.ctx, RegisterRequest{Email: "new@example.com", Username: "new", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "new@example.com", resp.User.Email)

	var box models.Mistbox
	require.NoError(t, suite.db.Where("user_id = ?", resp.User.ID).First(&box).Error)
	assert.Equal(t, models.DefaultMistboxOpens, box.OpensLeft)

	user, err := suite.authService.ValidateToken(suite.ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)

	assert.ErrorIs(t, suite.authService.RequestEmailCode(suite.ctx, "new@example.com"), ErrUserExists)
}

func (suite *AuthServiceTestSuite) TestExpiredCode() {
	t := suite.T()
	require.NoError(t, suite.authService.RequestEmailCode(suite.ctx, "late@example.com"))

	suite.authService.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	err := suite.authService.ValidateEmailCode(suite.ctx, "late@example.com", suite.codes.get("late@example.com"))
	assert.ErrorIs(t, err, ErrCodeExpired)
}

func (suite *AuthServiceTestSuite) TestLogin() {
	t := suite.T()
	suite.register("kai@example.com", "kai")

	resp, err := suite.authService.Login(suite.ctx, LoginRequest{EmailOrUsername: "KAI", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "kai", resp.User.Username)

	_, err = suite.authService.Login(suite.ctx, LoginRequest{EmailOrUsername: "kai@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = suite.authService.Login(suite.ctx, LoginRequest{EmailOrUsername: "nobody", Password: "x"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func (suite *AuthServiceTestSuite) TestBannedEmail() {
	t := suite.T()
	resp := suite.register("bad@example.com", "bad")
	require.NoError(t, suite.db.Create(&models.Ban{Email: "bad@example.com"}).Error)

	_, err := suite.authService.ValidateToken(suite.ctx, resp.Token)
	assert.ErrorIs(t, err, ErrBanned)

	_, err = suite.authService.Login(suite.ctx, LoginRequest{EmailOrUsername: "bad", Password: "correct horse"})
	assert.ErrorIs(t, err, ErrBanned)

	require.NoError(t, suite.db.Create(&models.Ban{Email: "other@example.com"}).Error)
	assert.ErrorIs(t, suite.authService.RequestEmailCode(suite.ctx, "Other@example.com"), ErrBanned)
}

func (suite *AuthServiceTestSuite) TestPhoneRegistrationAndLogin() {
	t := suite.T()
	phone := "+15105550100"

	assert.ErrorIs(t, suite.authService.RequestPhoneCode(suite.ctx, "p@example.com", phone), ErrEmailNotValidated)

	require.NoError(t, suite.authService.RequestEmailCode(suite.ctx, "p@example.com"))
	require.NoError(t, suite.authService.ValidateEmailCode(suite.ctx, "p@example.com", suite.codes.get("p@example.com")))
	require.NoError(t, suite.authService.RequestPhoneCode(suite.ctx, "p@example.com", phone))
	require.NoError(t, suite.authService.ValidatePhoneCode(suite.ctx, phone, suite.codes.get(phone)))

	resp, err := suite.authService.Register(suite.ctx, RegisterRequest{
		Email: "p@example.com", Username: "p", Password: "correct horse", PhoneNumber: phone,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.User.PhoneNumber)

	require.NoError(t, suite.authService.RequestPhoneLogin(suite.ctx, phone))
	login, err := suite.authService.ValidatePhoneLogin(suite.ctx, phone, suite.codes.get(phone))
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)

	assert.ErrorIs(t, suite.authService.RequestPhoneLogin(suite.ctx, "+10000000000"), ErrUserNotFound)
}

func (suite *AuthServiceTestSuite) TestPasswordReset() {
	t := suite.T()
	suite.register("r@example.com", "r")

	assert.ErrorIs(t, suite.authService.RequestPasswordReset(suite.ctx, "ghost@example.com"), ErrUserNotFound)

	require.NoError(t, suite.authService.RequestPasswordReset(suite.ctx, "r@example.com"))
	code := suite.codes.get("reset:r@example.com")

	assert.ErrorIs(t, suite.authService.FinalizePasswordReset(suite.ctx, "r@example.com", code, "new password"), ErrInvalidCode)

	require.NoError(t, suite.authService.ValidatePasswordReset(suite.ctx, "r@example.com", code))
	require.NoError(t, suite.authService.FinalizePasswordReset(suite.ctx, "r@example.com", code, "new password"))

	_, err := suite.authService.Login(suite.ctx, LoginRequest{EmailOrUsername: "r", Password: "new password"})
	assert.NoError(t, err)
}

func (suite *AuthServiceTestSuite) TestStaticTestCodes() {
	suite.authService.cfg.TestCodes = true
	suite.authService.cfg.StaticCode = "123456"

	require.NoError(suite.T(), suite.authService.RequestEmailCode(suite.ctx, "load@example.com"))
	assert.Equal(suite.T(), "123456", suite.codes.get("load@example.com"))
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	svc := NewService(nil, Config{JWTSecret: []byte("one")}, nil, nil)
	resp, err := svc.GenerateToken(&models.User{ID: "u1"})
	require.NoError(t, err)

	id, err := ParseToken(resp.Token, []byte("one"))
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = ParseToken(resp.Token, []byte("two"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMockAuthServiceTokens(t *testing.T) {
	m := NewMockAuthService()
	m.AddUser(&models.User{ID: "u1", Email: "u1@example.com", Username: "u1"})

	resp, err := m.Login(context.Background(), LoginRequest{EmailOrUsername: "u1", Password: "x"})
	require.NoError(t, err)

	user, err := m.ValidateToken(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.True(t, m.AssertCalled("ValidateToken"))
}
