package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook/daybook/internal/storage"
	"github.com/daybook/daybook/internal/storage/storagetest"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewSQLiteStore(context.Background(), ":memory:", storage.Options{})
	require.NoError(t, err, "failed to create test store")
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestSQLiteStore(t *testing.T) {
	storagetest.Run(t, setupTestDB)
}

func TestSQLiteStore_CloseIsIdempotent(t *testing.T) {
	store, err := storage.NewSQLiteStore(context.Background(), ":memory:", storage.Options{})
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestSQLiteStore_FileDatabase(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/daybook.db"

	store, err := storage.NewSQLiteStore(ctx, path, storage.Options{})
	require.NoError(t, err)
	store.Close()

	// Reopening applies no migrations and keeps the schema.
	store, err = storage.NewSQLiteStore(ctx, path, storage.Options{})
	require.NoError(t, err)
	defer store.Close()

	version, err := storage.GetCurrentVersion(ctx, store.DB())
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}
