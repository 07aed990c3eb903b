package kernel

import (
	"context"
	"errors"
	"testing"

	"github.com/mistapp/backend/internal/auth"
	"github.com/mistapp/backend/internal/config"
	"github.com/mistapp/backend/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	k := New()
	err := k.Validate()
	require.Error(t, err)

	var initErr *InitializationError
	require.True(t, errors.As(err, &initErr))
	assert.Len(t, initErr.MissingDeps, 2)

	db, err := database.Open("sqlite", ":memory:", false)
	require.NoError(t, err)
	k.SetDB(db).SetAuthService(auth.NewMockAuthService())
	assert.NoError(t, k.Validate())
	assert.Nil(t, k.Search())
	assert.Nil(t, k.Cache())
}

func TestCleanupRunsInReverseOrder(t *testing.T) {
	k := New()
	var order []int
	boom := errors.New("boom")

	k.OnCleanup(func(context.Context) error { order = append(order, 1); return nil })
	k.OnCleanup(func(context.Context) error { order = append(order, 2); return boom })
	k.OnCleanup(func(context.Context) error { order = append(order, 3); return nil })

	err := k.Cleanup(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{3, 2, 1}, order)

	// hooks run once
	require.NoError(t, k.Cleanup(context.Background()))
	assert.Len(t, order, 3)
}

func TestBuildWithOnlyDatabase(t *testing.T) {
	cfg := &config.Config{
		Environment: "test",
		Database:    config.DatabaseConfig{Driver: "sqlite", URL: ":memory:"},
		Auth:        config.AuthConfig{TestCodes: true, StaticCode: "123456"},
	}

	k, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, k.DB())
	assert.NotNil(t, k.Auth())
	assert.NotNil(t, k.Push())
	assert.Nil(t, k.Cache())
	assert.Nil(t, k.Search())
	assert.Nil(t, k.Uploader())
	assert.NoError(t, k.Cleanup(context.Background()))
}

func TestBuildRejectsUnknownDriver(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: "mysql", URL: "x"}}
	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}
