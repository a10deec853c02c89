package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.StorageBackend)
	assert.Equal(t, "@every 1m", cfg.SessionCleanupCron)
	assert.Positive(t, cfg.HashWorkers)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")
	t.Setenv("STORAGE_BACKEND", "ftp")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigS3NeedsBucket(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")
	t.Setenv("STORAGE_BACKEND", "s3")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestAdminMailNeedsPassword(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")
	t.Setenv("ADMIN_MAIL", "admin@example.org")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestNewStoreLocal(t *testing.T) {
	dir := t.TempDir() + "/media"
	store, err := NewStore(context.Background(), &Config{StorageBackend: "local", MediaPath: dir})
	require.NoError(t, err)
	assert.NotNil(t, store)
	assert.DirExists(t, dir)
}

func TestNewStoreUnknown(t *testing.T) {
	_, err := NewStore(context.Background(), &Config{StorageBackend: "tape"})
	assert.Error(t, err)
}

func TestInTestMode(t *testing.T) {
	t.Setenv("NOODLE_TEST_MODE", "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv("NOODLE_TEST_MODE", "")
	RefreshTestMode()
	assert.False(t, InTestMode())
}
