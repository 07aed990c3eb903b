package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToken(t *testing.T) {
	a, err := newToken()
	require.NoError(t, err)
	b, err := newToken()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestCloseNil(t *testing.T) {
	var rc *RedisClient
	assert.NoError(t, rc.Close())
}

func TestNewRedisClientUnreachable(t *testing.T) {
	// port 1 refuses connections on loopback
	rc, err := NewRedisClient("127.0.0.1", "1", "")
	assert.Error(t, err)
	assert.Nil(t, rc)
}
