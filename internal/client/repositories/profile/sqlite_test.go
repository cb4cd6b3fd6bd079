package profile

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/avdeyev/catchdex/internal/client/models"
	"github.com/avdeyev/catchdex/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE profiles (
  account_id INTEGER PRIMARY KEY,
  username TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
`)
	require.NoError(t, err)

	return db
}

func TestUpsertGetDelete(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	p := &models.Profile{
		AccountID: 42,
		Username:  "ash",
		CreatedAt: time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, r.Upsert(ctx, p))

	got, err := r.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	p.Username = "ash_k"
	require.NoError(t, r.Upsert(ctx, p))
	got, err = r.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "ash_k", got.Username)

	require.NoError(t, r.Delete(ctx, 42))
	_, err = r.GetByID(ctx, 42)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
