package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file::memory:")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 8001, cfg.Server.RelayPort)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Auth.CodeTTL)
	assert.Equal(t, 3, cfg.Jobs.MistboxDailyOpens)
	assert.Equal(t, 17, cfg.Jobs.DigestHourUTC)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Search.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "Postgres")
	t.Setenv("PORT", "9000")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("SYSTEM_VOTERS", "a, b,,c ")
	t.Setenv("AUTH_TEST_CODES", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Jobs.SystemVoters)
	assert.True(t, cfg.Auth.TestCodes)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Environment: "development",
		Server:      ServerConfig{Port: 8000, RelayPort: 8001},
		Database:    DatabaseConfig{Driver: "sqlite", URL: "file::memory:"},
		Jobs:        JobsConfig{MistboxDailyOpens: 3, DigestHourUTC: 17},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())
	cfg.Database.Driver = "sqlite"

	cfg.Server.RelayPort = 8000
	assert.Error(t, cfg.Validate())
	cfg.Server.RelayPort = 8001

	cfg.Environment = "production"
	cfg.Auth.JWTSecret = "short"
	assert.Error(t, cfg.Validate())

	cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
	assert.NoError(t, cfg.Validate())
}

func TestSecretFallback(t *testing.T) {
	cfg := &Config{}
	assert.NotEmpty(t, cfg.Secret())

	cfg.Auth.JWTSecret = "configured"
	assert.Equal(t, []byte("configured"), cfg.Secret())
}
