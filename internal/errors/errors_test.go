package errors

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorIsFieldKeyed(t *testing.T) {
	err := ValidationError("email", "this field is required")
	assert.Equal(t, http.StatusBadRequest, err.Status)

	body, jerr := json.Marshal(err)
	require.NoError(t, jerr)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "VALIDATION_ERROR", decoded["code"])
	fields := decoded["fields"].(map[string]interface{})
	assert.Contains(t, fields, "email")
	assert.NotContains(t, decoded, "Status")
}

func TestDuplicateMessage(t *testing.T) {
	err := Duplicate("voter", "post")
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, []string{"the fields voter, post must make a unique set"}, err.Fields["non_field_errors"])
	assert.Contains(t, err.Error(), "non_field_errors")
}

func TestStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NotFound("post").Status)
	assert.Equal(t, http.StatusForbidden, Forbidden("no").Status)
	assert.Equal(t, http.StatusUnauthorized, Banned().Status)
	assert.Equal(t, http.StatusTooManyRequests, ErrRateLimited.StatusCode())
	assert.Equal(t, http.StatusInternalServerError, ErrorCode("UNKNOWN").StatusCode())
	assert.Equal(t, "rate limit exceeded", RateLimited("").Message)
}
