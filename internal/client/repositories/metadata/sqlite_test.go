package metadata

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE metadata (key TEXT PRIMARY KEY, value BLOB);`)
	require.NoError(t, err)

	return db
}

func TestSetGetDelete(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeyAuthToken, []byte("tok-1")))

	v, err := r.Get(ctx, KeyAuthToken)
	require.NoError(t, err)
	assert.Equal(t, []byte("tok-1"), v)

	// overwrite
	require.NoError(t, r.Set(ctx, KeyAuthToken, []byte("tok-2")))
	v, err = r.Get(ctx, KeyAuthToken)
	require.NoError(t, err)
	assert.Equal(t, []byte("tok-2"), v)

	require.NoError(t, r.Delete(ctx, KeyAuthToken))
	v, err = r.Get(ctx, KeyAuthToken)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestGet_MissingKeyReturnsNil(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	v, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestClear(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeySession, []byte("{}")))
	require.NoError(t, r.Set(ctx, KeyLastOnlineAt, []byte("0")))
	require.NoError(t, r.Clear(ctx))

	for _, key := range []string{KeySession, KeyLastOnlineAt} {
		v, err := r.Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, v)
	}
}
