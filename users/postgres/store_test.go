package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankauskaite/fittrack/users"
	"github.com/rankauskaite/fittrack/users/postgres"
)

// Integration tests run against a real database. Point FITTRACK_TEST_DB_URL
// at a disposable instance with schema.sql applied; the tests are skipped
// otherwise.
func setupStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("FITTRACK_TEST_DB_URL")
	if dsn == "" {
		t.Skip("FITTRACK_TEST_DB_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(context.Background(), `TRUNCATE users`)
	require.NoError(t, err)

	return postgres.New(pool)
}

func TestStore_UpsertAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	user := &users.User{
		Username:     "tadas",
		PasswordHash: "hash",
		Role:         users.RoleMember,
		DateJoined:   time.Now().UTC(),
	}
	require.NoError(t, store.Upsert(ctx, user))
	require.NotEmpty(t, user.ID)

	got, err := store.GetByUsername(ctx, "tadas")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, users.RoleMember, got.Role)
	assert.Nil(t, got.RefreshToken)

	_, err = store.GetByUsername(ctx, "nobody")
	require.ErrorIs(t, err, users.ErrNotFound)
}

func TestStore_RefreshTokenLifecycle(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	user := &users.User{Username: "tadas", PasswordHash: "hash", Role: users.RoleMember, DateJoined: time.Now().UTC()}
	require.NoError(t, store.Upsert(ctx, user))

	first := "refresh-1"
	exp := time.Now().Add(time.Hour).UTC()
	require.NoError(t, store.SetRefreshToken(ctx, user.ID, &first, &exp))

	got, err := store.GetByRefreshToken(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	// Rotation lands only when presenting the live value.
	require.NoError(t, store.RotateRefreshToken(ctx, user.ID, first, "refresh-2", exp))
	err = store.RotateRefreshToken(ctx, user.ID, first, "refresh-3", exp)
	require.ErrorIs(t, err, users.ErrStaleRefreshToken)

	_, err = store.GetByRefreshToken(ctx, first)
	require.ErrorIs(t, err, users.ErrNotFound)

	require.NoError(t, store.SetRefreshToken(ctx, user.ID, nil, nil))
	got, err = store.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RefreshToken)
	assert.Nil(t, got.RefreshTokenExp)
}

func TestStore_List(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, name := range []string{"ona", "egle", "tadas"} {
		require.NoError(t, store.Upsert(ctx, &users.User{
			Username:     name,
			PasswordHash: "hash",
			Role:         users.RoleMember,
			DateJoined:   time.Now().UTC(),
		}))
	}

	all, err := store.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "egle", all[0].Username)

	page, err := store.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "ona", page[0].Username)
}
