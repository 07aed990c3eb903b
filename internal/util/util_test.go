package util

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mistapp/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestExtractMentions(t *testing.T) {
	assert.Equal(t, []string{"alice", "bob"}, ExtractMentions("hi @Alice, and @bob! @alice @"))
	assert.Empty(t, ExtractMentions("no mentions here"))
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, 5, ParseInt("5", 1))
	assert.Equal(t, 1, ParseInt("x", 1))
	assert.Equal(t, 2.5, ParseFloat("2.5", 0))

	v, err := ParseOptionalFloat("")
	assert.NoError(t, err)
	assert.Nil(t, v)

	v, err = ParseOptionalFloat(" 3.25 ")
	require.NoError(t, err)
	assert.Equal(t, 3.25, *v)

	_, err = ParseOptionalFloat("abc")
	assert.Error(t, err)

	assert.Equal(t, []string{"a", "b"}, ParseList("a, ,b,"))
	assert.Nil(t, ParseList(""))
}

func TestActingAs(t *testing.T) {
	user := &models.User{ID: "u1"}
	assert.True(t, ActingAs(user, "u1"))
	assert.False(t, ActingAs(user, "u2"))
	user.IsSuperuser = true
	assert.True(t, ActingAs(user, "u2"))
}

func TestHandleDBError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
	}{
		{gorm.ErrRecordNotFound, http.StatusNotFound},
		{fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), http.StatusBadRequest},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		assert.True(t, HandleDBError(c, tc.err, "vote", "voter", "post"))
		assert.Equal(t, tc.status, w.Code)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	HandleDBError(c, gorm.ErrDuplicatedKey, "vote", "voter", "post")

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Contains(t, body.Fields, "non_field_errors")
}

func TestGetUserFromContextUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := GetUserFromContext(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
